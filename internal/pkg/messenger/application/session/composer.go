package session

import (
	"strings"
	"time"

	"github.com/Arisha-27/KalaSetu/internal/infrastructure/realtime"
	messenger "github.com/Arisha-27/KalaSetu/internal/pkg/messenger/application/domain"
)

// Composer accepts free-text input for the session. A send inserts an
// optimistic timeline entry immediately, forwards the payload to the live
// channel, and clears both the draft and any pending suggestion.
type Composer struct {
	s *Session
}

// SetDraft replaces the current input text.
func (c *Composer) SetDraft(text string) {
	c.s.mu.Lock()
	c.s.draft = text
	c.s.mu.Unlock()
}

// Draft returns the current input text.
func (c *Composer) Draft() string {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return c.s.draft
}

// Send validates and ships the current draft.
//
// Rejections are local no-ops with no network call and no timeline change:
// messenger.ErrEmptyMessage for blank drafts, realtime.ErrNotOpen when the
// channel is not open, ErrSessionClosed after teardown.
func (c *Composer) Send() error {
	s := c.s
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	text := strings.TrimSpace(s.draft)
	if text == "" {
		s.mu.Unlock()
		return messenger.ErrEmptyMessage
	}
	ch := s.channel
	if ch == nil || ch.State() != realtime.StateOpen {
		s.mu.Unlock()
		return realtime.ErrNotOpen
	}

	opt, err := messenger.NewOptimisticMessage(s.conversationID, s.participantID, text, time.Now().UTC())
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if err := ch.Send(s.conversationID, text); err != nil {
		// Refused by the channel (e.g. it closed underneath us): leave the
		// timeline untouched so state matches what actually went out.
		s.mu.Unlock()
		return err
	}

	s.timeline.Merge(opt)
	s.draft = ""
	s.slot.Clear()
	s.mu.Unlock()

	s.store.Publish(Update{Kind: UpdateTimeline})
	s.store.Publish(Update{Kind: UpdateSuggestion})
	return nil
}

// AcceptSuggestion copies the pending suggestion into the draft and clears
// the slot, without sending. It reports whether a suggestion was available.
func (c *Composer) AcceptSuggestion() bool {
	s := c.s
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	text, ok := s.slot.Take()
	if ok {
		s.draft = text
	}
	s.mu.Unlock()

	if ok {
		s.store.Publish(Update{Kind: UpdateSuggestion})
	}
	return ok
}
