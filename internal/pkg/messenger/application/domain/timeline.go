package messenger

import (
	"sync"
	"time"
)

// EchoMatchWindow bounds how far apart in time an optimistic entry and its
// server echo may be and still be treated as the same message. The wire
// contract carries no correlation token, so reconciliation is best-effort:
// sender equality plus exact text equality within this window.
const EchoMatchWindow = 5 * time.Second

// Timeline owns the single ordered, duplicate-free sequence of messages shown
// for one conversation session. It is safe for concurrent use, but all
// mutations are expected to funnel through one session instance.
//
// Ordering: once ApplyHistory has run, the sequence starts with the durable
// log sorted ascending by creation time; later entries are kept in arrival
// order. Entries that arrive before history completes are buffered in the
// sequence and pushed after the history block when it lands.
type Timeline struct {
	mu      sync.RWMutex
	localID string
	entries []Message
	loaded  bool
}

// NewTimeline constructs an empty timeline for the given local participant.
// The local identity is needed for the optimistic-replacement rule: only
// echoes of the local participant's own sends may replace optimistic entries.
func NewTimeline(localParticipantID string) *Timeline {
	return &Timeline{localID: localParticipantID}
}

// Merge applies the incoming message to the sequence.
//
// Rules, in order:
//  1. An incoming entry whose server identifier matches an existing entry
//     replaces it in place. No two entries with the same server id are ever
//     simultaneously visible.
//  2. An incoming non-optimistic entry from the local participant that echoes
//     an optimistic entry (same sender, same text, within EchoMatchWindow)
//     replaces the earliest such entry in place, preserving its position.
//  3. Otherwise the entry is appended.
func (t *Timeline) Merge(m Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mergeLocked(m)
}

func (t *Timeline) mergeLocked(m Message) {
	if m.ServerID != "" {
		for i := range t.entries {
			if t.entries[i].ServerID == m.ServerID {
				t.entries[i] = m
				return
			}
		}
	}
	if m.Origin != OriginOptimistic && m.SenderID == t.localID {
		for i := range t.entries {
			if t.echoesLocked(t.entries[i], m) {
				t.entries[i] = m
				return
			}
		}
	}
	t.entries = append(t.entries, m)
}

// echoesLocked reports whether existing is an optimistic entry that incoming
// confirms.
func (t *Timeline) echoesLocked(existing, incoming Message) bool {
	if existing.Origin != OriginOptimistic {
		return false
	}
	if existing.SenderID != incoming.SenderID || existing.Text != incoming.Text {
		return false
	}
	delta := incoming.CreatedAt.Sub(existing.CreatedAt)
	if delta < 0 {
		delta = -delta
	}
	return delta <= EchoMatchWindow
}

// ApplyHistory installs the durable message log at the front of the sequence.
// rows must already be sorted ascending by creation time. Entries that arrived
// over the live channel (or were sent optimistically) before the load finished
// are kept after the history block, minus any that the history already covers:
// same server id, or same sender and text within EchoMatchWindow of a row.
//
// Safe to call again on reconnect to reconcile a delivery gap; the same
// dedup rules apply.
func (t *Timeline) ApplyHistory(rows []Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	merged := make([]Message, 0, len(rows)+len(t.entries))
	merged = append(merged, rows...)

	for _, e := range t.entries {
		if e.Origin == OriginPersisted {
			// Earlier history pass; rows supersede it.
			if !containsServerID(rows, e.ServerID) {
				merged = append(merged, e)
			}
			continue
		}
		if coveredByHistory(rows, e) {
			continue
		}
		merged = append(merged, e)
	}

	t.entries = merged
	t.loaded = true
}

// HistoryLoaded reports whether a history pass has completed.
func (t *Timeline) HistoryLoaded() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.loaded
}

// Messages returns a copy of the current sequence.
func (t *Timeline) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of visible entries.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

func containsServerID(rows []Message, id string) bool {
	if id == "" {
		return false
	}
	for _, r := range rows {
		if r.ServerID == id {
			return true
		}
	}
	return false
}

// coveredByHistory reports whether a buffered live/optimistic entry is already
// represented by a durable row. Live frames carry no server id, so the check
// falls back to the same sender+text+window heuristic used for echoes.
func coveredByHistory(rows []Message, e Message) bool {
	for _, r := range rows {
		if e.SenderID != r.SenderID || e.Text != r.Text {
			continue
		}
		delta := r.CreatedAt.Sub(e.CreatedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta <= EchoMatchWindow {
			return true
		}
	}
	return false
}
