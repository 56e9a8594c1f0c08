package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/Arisha-27/KalaSetu/internal/infrastructure/realtime"
	"github.com/Arisha-27/KalaSetu/internal/observability"
	messenger "github.com/Arisha-27/KalaSetu/internal/pkg/messenger/application/domain"
)

// ErrSessionClosed is returned for operations on a torn-down session.
var ErrSessionClosed = errors.New("session: closed")

// LiveChannel is the session's view of one realtime connection generation.
// realtime.Channel satisfies it; tests substitute fakes.
type LiveChannel interface {
	Events() <-chan realtime.Event
	Send(conversationID, text string) error
	State() realtime.State
	Done() <-chan struct{}
	Close()
}

// HistoryLoader reads the durable log for a conversation, oldest first.
type HistoryLoader interface {
	Load(ctx context.Context, conversationID string) ([]messenger.Message, error)
}

// Config carries the externally-resolved session parameters. ConversationID,
// ParticipantID and Role are required preconditions; the session refuses to
// start without them.
type Config struct {
	ConversationID string
	ParticipantID  string
	Role           messenger.Role
	Loader         HistoryLoader // optional; nil degrades to an empty history
	Logger         *slog.Logger
}

// Session is one conversation session: it owns the timeline, the suggestion
// slot and the current live channel generation. Every mutation, whether from
// the history pass, a live event or a user send, goes through one serialized
// path.
//
// History load and live delivery run concurrently; events that land before
// the history pass completes stay in the timeline and are reordered behind
// the durable rows when ApplyHistory runs.
type Session struct {
	conversationID string
	participantID  string
	role           messenger.Role

	timeline *messenger.Timeline
	slot     *messenger.SuggestionSlot
	store    *UpdateStore
	loader   HistoryLoader
	log      *slog.Logger

	mu      sync.Mutex
	channel LiveChannel
	draft   string
	closed  bool
}

// New validates the session parameters and builds an idle session. Attach a
// live channel and run LoadHistory to bring it to life.
func New(cfg Config) (*Session, error) {
	if cfg.ConversationID == "" || cfg.ParticipantID == "" || cfg.Role == "" {
		return nil, messenger.ErrMissingSession
	}
	log := cfg.Logger
	if log == nil {
		log = observability.WithComponent("session")
	}
	return &Session{
		conversationID: cfg.ConversationID,
		participantID:  cfg.ParticipantID,
		role:           cfg.Role,
		timeline:       messenger.NewTimeline(cfg.ParticipantID),
		slot:           messenger.NewSuggestionSlot(cfg.Role),
		store:          NewUpdateStore(),
		loader:         cfg.Loader,
		log:            log.With("conversation_id", cfg.ConversationID, "participant_id", cfg.ParticipantID),
	}, nil
}

// Attach installs a live channel generation and starts pumping its events
// into the session. Any previous generation is closed first; events it still
// has queued become inert.
func (s *Session) Attach(ch LiveChannel) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	prev := s.channel
	s.channel = ch
	s.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	go s.pump(ch)
	s.store.Publish(Update{Kind: UpdateConnection})
	return nil
}

// LoadHistory runs the history pass and merges the result into the timeline.
// A retrieval failure degrades to whatever is already visible (an empty
// timeline at session start) and is reported for diagnostics only; the live
// channel keeps running either way. Safe to call again on reconnect.
func (s *Session) LoadHistory(ctx context.Context) error {
	var rows []messenger.Message
	var loadErr error
	if s.loader != nil {
		rows, loadErr = s.loader.Load(ctx, s.conversationID)
		if loadErr != nil {
			s.log.Warn("history load failed, continuing with empty history", "error", loadErr)
			rows = nil
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.timeline.ApplyHistory(rows)
	s.mu.Unlock()

	s.store.Publish(Update{Kind: UpdateTimeline})
	return loadErr
}

// Close tears the session down: the live channel is released and any event
// still in flight from it is discarded. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	ch := s.channel
	s.channel = nil
	s.mu.Unlock()

	if ch != nil {
		ch.Close()
	}
	s.store.Publish(Update{Kind: UpdateConnection})
}

// Messages returns the merged, ordered, deduplicated timeline.
func (s *Session) Messages() []messenger.Message {
	return s.timeline.Messages()
}

// Suggestion returns the pending AI suggestion, if the role may see one.
func (s *Session) Suggestion() (string, bool) {
	return s.slot.Value()
}

// ConnectionState reports the current channel generation's state; a session
// with no channel attached counts as closed for send purposes.
func (s *Session) ConnectionState() realtime.State {
	s.mu.Lock()
	ch := s.channel
	closed := s.closed
	s.mu.Unlock()
	if closed || ch == nil {
		return realtime.StateClosed
	}
	return ch.State()
}

// Subscribe registers an observer for session updates and returns a disposer.
func (s *Session) Subscribe(fn func(Update)) func() {
	return s.store.Subscribe(fn)
}

// Composer returns the input surface bound to this session.
func (s *Session) Composer() *Composer {
	return &Composer{s: s}
}

// ConversationID returns the immutable conversation identity.
func (s *Session) ConversationID() string { return s.conversationID }

// ParticipantID returns the immutable local participant identity.
func (s *Session) ParticipantID() string { return s.participantID }

// Role returns the local participant's role.
func (s *Session) Role() messenger.Role { return s.role }

// pump moves events from one channel generation into the session until the
// generation's stream ends.
func (s *Session) pump(ch LiveChannel) {
	for ev := range ch.Events() {
		s.apply(ch, ev)
	}

	s.mu.Lock()
	current := !s.closed && s.channel == ch
	s.mu.Unlock()
	if current {
		s.log.Info("live channel closed")
		s.store.Publish(Update{Kind: UpdateConnection})
	}
}

// apply is the single mutation path for inbound events. Events from a closed
// session or a superseded channel generation are dropped.
func (s *Session) apply(ch LiveChannel, ev realtime.Event) {
	s.mu.Lock()
	if s.closed || s.channel != ch {
		s.mu.Unlock()
		return
	}

	var kind UpdateKind
	switch ev.Kind {
	case realtime.EventMessage:
		s.timeline.Merge(messenger.NewLiveMessage(s.conversationID, ev.SenderID, ev.Text, ev.Timestamp))
		kind = UpdateTimeline
	case realtime.EventSuggestion:
		if !s.role.Assistive() {
			s.mu.Unlock()
			return
		}
		s.slot.Replace(ev.Text)
		kind = UpdateSuggestion
	default:
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.store.Publish(Update{Kind: kind})
}
