package messenger

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Domain-level errors for messenger behaviors
var (
	ErrEmptyMessage   = errors.New("messenger: empty message body")
	ErrMissingSession = errors.New("messenger: conversation_id and participant_id are required")
)

// Origin marks where a timeline entry came from.
// Rendering must never key off it; alignment is decided purely by comparing
// SenderID against the local participant.
type Origin int16

const (
	OriginPersisted  Origin = 0 // loaded from the durable message log
	OriginLive       Origin = 1 // delivered over the realtime channel
	OriginOptimistic Origin = 2 // inserted locally before server confirmation
)

// Message is a single entry in a conversation timeline.
//
// ServerID is the durable identifier once the server knows the message; it is
// empty for entries delivered over the live channel (the wire frame carries no
// id) and for optimistic entries. LocalID is a placeholder identity generated
// client-side so every entry is addressable before confirmation.
type Message struct {
	ServerID       string    `db:"id"`
	LocalID        string    `db:"-"`
	ConversationID string    `db:"conversation_id"`
	SenderID       string    `db:"sender_id"`
	Text           string    `db:"original_text"`
	CreatedAt      time.Time `db:"created_at"`
	Origin         Origin    `db:"-"`
}

// ID returns the server identifier when known, falling back to the local one.
func (m Message) ID() string {
	if m.ServerID != "" {
		return m.ServerID
	}
	return m.LocalID
}

// NewOptimisticMessage builds a locally-identified entry for a send that has
// not been acknowledged yet. The body is trimmed; an empty body is invalid.
func NewOptimisticMessage(conversationID, senderID, text string, now time.Time) (Message, error) {
	if conversationID == "" || senderID == "" {
		return Message{}, ErrMissingSession
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Message{}, ErrEmptyMessage
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Message{
		LocalID:        uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           trimmed,
		CreatedAt:      now,
		Origin:         OriginOptimistic,
	}, nil
}

// NewLiveMessage builds an entry for a `message` event received over the
// realtime channel.
func NewLiveMessage(conversationID, senderID, text string, ts time.Time) Message {
	return Message{
		LocalID:        uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		CreatedAt:      ts,
		Origin:         OriginLive,
	}
}
