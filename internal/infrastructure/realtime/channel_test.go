package realtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Arisha-27/KalaSetu/internal/infrastructure/realtime"
	"github.com/Arisha-27/KalaSetu/internal/infrastructure/realtime/realtimetest"
)

func dialTestChannel(t *testing.T, gw *realtimetest.Gateway, participantID string) *realtime.Channel {
	t.Helper()
	ch := realtime.NewChannel(gw.URL(), participantID, nil)
	require.Equal(t, realtime.StateConnecting, ch.State())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ch.Connect(ctx))
	require.Equal(t, realtime.StateOpen, ch.State())
	require.True(t, gw.WaitConnected(participantID, time.Second))
	return ch
}

func nextEvent(t *testing.T, ch *realtime.Channel) realtime.Event {
	t.Helper()
	select {
	case ev, ok := <-ch.Events():
		require.True(t, ok, "event stream closed unexpectedly")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return realtime.Event{}
	}
}

func TestChannelDeliversMessageAndSuggestionEvents(t *testing.T) {
	gw := realtimetest.New()
	defer gw.Close()

	ch := dialTestChannel(t, gw, "artisan-1")
	defer ch.Close()

	when := time.Date(2025, 6, 1, 12, 0, 20, 0, time.UTC)
	require.NoError(t, gw.Push("artisan-1", map[string]any{
		"type":      "message",
		"sender_id": "buyer-2",
		"text":      "hey",
		"timestamp": when.Format(time.RFC3339),
	}))

	ev := nextEvent(t, ch)
	require.Equal(t, realtime.EventMessage, ev.Kind)
	require.Equal(t, "buyer-2", ev.SenderID)
	require.Equal(t, "hey", ev.Text)
	require.True(t, ev.Timestamp.Equal(when))

	require.NoError(t, gw.Push("artisan-1", map[string]any{
		"type": "suggestion",
		"text": "Thanks for your order!",
	}))

	ev = nextEvent(t, ch)
	require.Equal(t, realtime.EventSuggestion, ev.Kind)
	require.Equal(t, "Thanks for your order!", ev.Text)
}

func TestChannelAcceptsUnixTimestamps(t *testing.T) {
	gw := realtimetest.New()
	defer gw.Close()

	ch := dialTestChannel(t, gw, "artisan-1")
	defer ch.Close()

	require.NoError(t, gw.Push("artisan-1", map[string]any{
		"type":      "message",
		"sender_id": "buyer-2",
		"text":      "hey",
		"timestamp": 1748779220,
	}))

	ev := nextEvent(t, ch)
	require.Equal(t, realtime.EventMessage, ev.Kind)
	require.Equal(t, int64(1748779220), ev.Timestamp.Unix())
}

func TestChannelDropsMalformedFramesAndContinues(t *testing.T) {
	gw := realtimetest.New()
	defer gw.Close()

	ch := dialTestChannel(t, gw, "artisan-1")
	defer ch.Close()

	// Not JSON, missing fields, unknown type: all dropped without killing
	// the stream.
	require.NoError(t, gw.PushRaw("artisan-1", []byte("not-json")))
	require.NoError(t, gw.PushRaw("artisan-1", []byte(`{"type":"message","text":"no sender"}`)))
	require.NoError(t, gw.PushRaw("artisan-1", []byte(`{"type":"presence","text":"x"}`)))

	require.NoError(t, gw.Push("artisan-1", map[string]any{
		"type":      "message",
		"sender_id": "buyer-2",
		"text":      "still alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}))

	ev := nextEvent(t, ch)
	require.Equal(t, "still alive", ev.Text)
}

func TestChannelSendReachesGateway(t *testing.T) {
	gw := realtimetest.New()
	defer gw.Close()

	ch := dialTestChannel(t, gw, "artisan-1")
	defer ch.Close()

	require.NoError(t, ch.Send("conv-1", "hello there"))

	require.Eventually(t, func() bool {
		return len(gw.Sent()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	sent := gw.Sent()[0]
	require.Equal(t, "conv-1", sent.ConversationID)
	require.Equal(t, "hello there", sent.Text)
}

func TestChannelEchoRoundTrip(t *testing.T) {
	gw := realtimetest.New()
	defer gw.Close()
	gw.Echo = true

	ch := dialTestChannel(t, gw, "artisan-1")
	defer ch.Close()

	require.NoError(t, ch.Send("conv-1", "ping"))

	ev := nextEvent(t, ch)
	require.Equal(t, realtime.EventMessage, ev.Kind)
	require.Equal(t, "artisan-1", ev.SenderID)
	require.Equal(t, "ping", ev.Text)
	require.False(t, ev.Timestamp.IsZero())
}

func TestChannelCloseIsTerminal(t *testing.T) {
	gw := realtimetest.New()
	defer gw.Close()

	ch := dialTestChannel(t, gw, "artisan-1")
	ch.Close()

	require.Equal(t, realtime.StateClosed, ch.State())
	select {
	case <-ch.Done():
	default:
		t.Fatal("Done should be closed after Close")
	}

	require.ErrorIs(t, ch.Send("conv-1", "too late"), realtime.ErrNotOpen)

	// The event stream drains and terminates.
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch.Events():
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	// Closing again is a no-op.
	ch.Close()
}

func TestChannelServerDisconnectTransitionsToClosed(t *testing.T) {
	gw := realtimetest.New()
	defer gw.Close()

	ch := dialTestChannel(t, gw, "artisan-1")
	gw.Disconnect("artisan-1")

	select {
	case <-ch.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not observe server disconnect")
	}
	require.Equal(t, realtime.StateClosed, ch.State())
}

func TestChannelHandshakeFailure(t *testing.T) {
	ch := realtime.NewChannel("ws://127.0.0.1:1", "artisan-1", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := ch.Connect(ctx)
	require.Error(t, err)
	require.Equal(t, realtime.StateClosed, ch.State())

	// Terminal: a fresh instance is required to retry.
	require.ErrorIs(t, ch.Connect(ctx), realtime.ErrNotOpen)

	// The event stream is closed so consumers cannot hang.
	_, ok := <-ch.Events()
	require.False(t, ok)
}
