package session

import "sync"

// UpdateKind says which part of the session changed.
type UpdateKind int

const (
	UpdateTimeline UpdateKind = iota
	UpdateSuggestion
	UpdateConnection
)

// Update is delivered to subscribers after a session mutation.
type Update struct {
	Kind UpdateKind
}

// UpdateStore is an explicit observer registry passed by reference to whoever
// renders the session. Subscribe returns a disposer; there is no process-wide
// dispatch state.
type UpdateStore struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Update)
}

func NewUpdateStore() *UpdateStore {
	return &UpdateStore{subs: make(map[int]func(Update))}
}

// Subscribe registers fn and returns a function that removes it again.
// Disposing twice is harmless.
func (s *UpdateStore) Subscribe(fn func(Update)) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Publish invokes every subscriber with u. Callbacks run outside the store
// lock so they may re-enter the session.
func (s *UpdateStore) Publish(u Update) {
	s.mu.Lock()
	fns := make([]func(Update), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(u)
	}
}
