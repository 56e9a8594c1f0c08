// Package realtimetest provides an in-process stand-in for the conversation
// gateway, for exercising the client channel without a real deployment. The
// production gateway itself is an external contract; this fake only speaks
// the same frames.
package realtimetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// SentFrame is one outbound frame the fake gateway received from a client.
type SentFrame struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

// Gateway is a scripted websocket gateway. Tests connect clients against
// URL(), push inbound frames with Push/PushRaw, and inspect what clients sent
// with Sent.
type Gateway struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*websocket.Conn
	sent  []SentFrame

	// Echo makes the gateway reflect every received message back to its
	// sender as a `message` event, the way the production gateway confirms
	// sends.
	Echo bool
}

// New starts the fake gateway on an ephemeral port.
func New() *Gateway {
	gin.SetMode(gin.TestMode)

	g := &Gateway{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[string]*websocket.Conn),
	}

	r := gin.New()
	r.GET("/ws/:participantId", g.handleSocket)
	g.srv = httptest.NewServer(r)
	return g
}

// URL returns the ws:// base URL clients should dial.
func (g *Gateway) URL() string {
	return "ws" + strings.TrimPrefix(g.srv.URL, "http")
}

// Push delivers frame (marshaled to JSON) to the given participant.
func (g *Gateway) Push(participantID string, frame any) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return g.PushRaw(participantID, payload)
}

// PushRaw delivers a raw text frame to the given participant.
func (g *Gateway) PushRaw(participantID string, payload []byte) error {
	g.mu.Lock()
	conn := g.conns[participantID]
	g.mu.Unlock()
	if conn == nil {
		return errNotConnected
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// Sent returns a copy of all frames received from clients so far.
func (g *Gateway) Sent() []SentFrame {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]SentFrame, len(g.sent))
	copy(out, g.sent)
	return out
}

// WaitConnected blocks until the participant has an active socket or the
// timeout elapses.
func (g *Gateway) WaitConnected(participantID string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		g.mu.Lock()
		_, ok := g.conns[participantID]
		g.mu.Unlock()
		if ok {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

// Disconnect drops the participant's socket from the server side, simulating
// network-level termination.
func (g *Gateway) Disconnect(participantID string) {
	g.mu.Lock()
	conn := g.conns[participantID]
	delete(g.conns, participantID)
	g.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// Close shuts the gateway down and drops all sockets.
func (g *Gateway) Close() {
	g.mu.Lock()
	conns := g.conns
	g.conns = make(map[string]*websocket.Conn)
	g.mu.Unlock()
	for _, conn := range conns {
		_ = conn.Close()
	}
	g.srv.Close()
}

func (g *Gateway) handleSocket(c *gin.Context) {
	participantID := c.Param("participantId")
	if participantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "participant id is required"})
		return
	}

	ws, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	g.mu.Lock()
	if prev := g.conns[participantID]; prev != nil {
		_ = prev.Close()
	}
	g.conns[participantID] = ws
	g.mu.Unlock()

	// Handshake ack, same shape the production gateway uses.
	_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"connected"}`))

	ws.SetPingHandler(func(appData string) error {
		return ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			g.mu.Lock()
			if g.conns[participantID] == ws {
				delete(g.conns, participantID)
			}
			g.mu.Unlock()
			_ = ws.Close()
			return
		}

		var frame SentFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}

		g.mu.Lock()
		g.sent = append(g.sent, frame)
		echo := g.Echo
		g.mu.Unlock()

		if echo {
			_ = ws.WriteJSON(map[string]any{
				"type":      "message",
				"sender_id": participantID,
				"text":      frame.Text,
				"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
			})
		}
	}
}

type notConnectedError struct{}

func (notConnectedError) Error() string { return "realtimetest: participant not connected" }

var errNotConnected = notConnectedError{}
