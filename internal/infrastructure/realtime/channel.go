package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Arisha-27/KalaSetu/internal/observability"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	pongWait   = 60 * time.Second
)

// State is the connection lifecycle of a Channel.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrNotOpen is returned for actions that require an open channel.
var ErrNotOpen = errors.New("realtime: channel is not open")

// Channel is one client-side generation of the live conversation stream.
//
// A channel moves connecting -> open on a successful handshake, and reaches
// closed on handshake failure, any transport error, or Close. Closed is
// terminal: reconnecting means constructing a fresh Channel for the same
// participant, which keeps message ordering unambiguous across generations.
//
// Inbound frames are surfaced on Events; the channel never reconnects or
// retries on its own.
type Channel struct {
	ID            string
	ParticipantID string

	endpoint string
	log      *slog.Logger

	mu sync.Mutex
	ws *websocket.Conn

	state      atomic.Int32
	events     chan Event
	send       chan []byte
	done       chan struct{}
	closeOnce  sync.Once
	eventsOnce sync.Once
}

// NewChannel prepares a channel for the given gateway base URL and
// participant. The endpoint follows the gateway contract: {base}/ws/{id}.
// The returned channel is in StateConnecting until Connect is called.
func NewChannel(gatewayURL, participantID string, log *slog.Logger) *Channel {
	if log == nil {
		log = observability.WithComponent("realtime")
	}
	c := &Channel{
		ID:            uuid.NewString(),
		ParticipantID: participantID,
		endpoint:      strings.TrimRight(gatewayURL, "/") + "/ws/" + url.PathEscape(participantID),
		log:           log,
		events:        make(chan Event, 128),
		send:          make(chan []byte, 128),
		done:          make(chan struct{}),
	}
	c.state.Store(int32(StateConnecting))
	return c
}

// Connect performs the websocket handshake and starts the read and write
// loops. On failure the channel transitions to closed and cannot be reused.
func (c *Channel) Connect(ctx context.Context) error {
	if c.State() != StateConnecting {
		return ErrNotOpen
	}

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, c.endpoint, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		c.shutdown(websocket.CloseAbnormalClosure, "handshake failed")
		return fmt.Errorf("realtime: dial %s: %w", c.endpoint, err)
	}

	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()

	if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen)) {
		// Closed while the handshake was in flight.
		_ = ws.Close()
		return ErrNotOpen
	}

	go c.readLoop(ws)
	go c.writeLoop(ws)
	return nil
}

// State returns the current connection state.
func (c *Channel) State() State {
	return State(c.state.Load())
}

// Events is the inbound stream. It is closed once the channel is torn down
// and no further events will be delivered.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Done is closed when the channel reaches the closed state.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Send enqueues one outbound message frame. It fails with ErrNotOpen unless
// the channel is open. If the gateway is slow and the buffer fills, the
// channel is closed to keep backpressure bounded.
func (c *Channel) Send(conversationID, text string) error {
	if c.State() != StateOpen {
		return ErrNotOpen
	}
	payload, err := json.Marshal(outboundFrame{ConversationID: conversationID, Text: text})
	if err != nil {
		return fmt.Errorf("realtime: encode frame: %w", err)
	}
	select {
	case <-c.done:
		return ErrNotOpen
	case c.send <- payload:
		return nil
	default:
		c.shutdown(websocket.CloseGoingAway, "send buffer full")
		return errors.New("realtime: send buffer exceeded")
	}
}

// Close releases the underlying transport. It is safe to call from any exit
// path and any number of times.
func (c *Channel) Close() {
	c.shutdown(websocket.CloseNormalClosure, "session closed")
}

func (c *Channel) shutdown(code int, reason string) {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		close(c.done)

		c.mu.Lock()
		ws := c.ws
		c.mu.Unlock()
		if ws == nil {
			// Never connected: nobody will close the event stream for us.
			c.closeEvents()
			return
		}
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = ws.Close()
	})
}

func (c *Channel) closeEvents() {
	c.eventsOnce.Do(func() {
		close(c.events)
	})
}

func (c *Channel) readLoop(ws *websocket.Conn) {
	defer func() {
		c.shutdown(websocket.CloseAbnormalClosure, "read loop exit")
		c.closeEvents()
	}()

	ws.SetReadLimit(1 << 20)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) &&
				!errors.Is(err, websocket.ErrCloseSent) {
				c.log.Debug("read loop terminated", "channel_id", c.ID, "error", err)
			}
			return
		}

		ev, err := decodeEvent(data)
		if err != nil {
			if errors.Is(err, errIgnoredFrame) {
				c.log.Debug("ignoring frame", "channel_id", c.ID, "error", err)
			} else {
				c.log.Warn("dropping malformed frame", "channel_id", c.ID, "error", err)
			}
			continue
		}

		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}

func (c *Channel) writeLoop(ws *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			if err := c.writeMessage(ws, payload); err != nil {
				c.shutdown(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.writePing(ws); err != nil {
				c.shutdown(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}

func (c *Channel) writeMessage(ws *websocket.Conn, payload []byte) error {
	if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *Channel) writePing(ws *websocket.Conn) error {
	if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return ws.WriteMessage(websocket.PingMessage, nil)
}
