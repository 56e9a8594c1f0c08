package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// EventKind discriminates the inbound tagged-union frames.
type EventKind string

const (
	EventMessage    EventKind = "message"
	EventSuggestion EventKind = "suggestion"
)

// Event is a decoded inbound frame. SenderID and Timestamp are only set for
// message events.
type Event struct {
	Kind      EventKind
	SenderID  string
	Text      string
	Timestamp time.Time
}

// ErrMalformedEvent marks an inbound frame that cannot be parsed or is missing
// required fields. Such frames are dropped and logged, never fatal.
var ErrMalformedEvent = errors.New("realtime: malformed event frame")

// errIgnoredFrame marks frame types the client does not consume (e.g. the
// gateway's "connected" ack). Ignored silently at debug level.
var errIgnoredFrame = errors.New("realtime: ignored frame type")

type inboundFrame struct {
	Type      string    `json:"type"`
	SenderID  string    `json:"sender_id"`
	Text      string    `json:"text"`
	Timestamp frameTime `json:"timestamp"`
}

type outboundFrame struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

// frameTime accepts either an RFC 3339 string or a unix-seconds number, since
// gateway implementations have shipped both.
type frameTime struct {
	time.Time
}

func (t *frameTime) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			parsed, err = time.Parse(time.RFC3339, raw)
		}
		if err != nil {
			return err
		}
		t.Time = parsed
		return nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	whole, frac := math.Modf(secs)
	t.Time = time.Unix(int64(whole), int64(frac*float64(time.Second))).UTC()
	return nil
}

// decodeEvent parses one inbound frame into an Event.
func decodeEvent(data []byte) (Event, error) {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	switch EventKind(f.Type) {
	case EventMessage:
		if f.SenderID == "" || f.Text == "" || f.Timestamp.IsZero() {
			return Event{}, fmt.Errorf("%w: message frame missing sender_id, text or timestamp", ErrMalformedEvent)
		}
		return Event{Kind: EventMessage, SenderID: f.SenderID, Text: f.Text, Timestamp: f.Timestamp.Time}, nil
	case EventSuggestion:
		if f.Text == "" {
			return Event{}, fmt.Errorf("%w: suggestion frame missing text", ErrMalformedEvent)
		}
		return Event{Kind: EventSuggestion, Text: f.Text}, nil
	case "":
		return Event{}, fmt.Errorf("%w: frame has no type", ErrMalformedEvent)
	default:
		return Event{}, fmt.Errorf("%w: %s", errIgnoredFrame, f.Type)
	}
}
