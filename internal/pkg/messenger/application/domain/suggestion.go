package messenger

import "sync"

// SuggestionSlot holds at most one pending AI reply suggestion for the
// session. Last write wins; there is no queue.
//
// The slot enforces the assistive capability at the data layer: a slot built
// for a role without the capability never stores a value, so no rendering
// path can ever observe one. Suppressing display alone would leave the text
// reachable through the slot, which is a privacy boundary, not a UI hint.
type SuggestionSlot struct {
	mu        sync.Mutex
	assistive bool
	text      string
	set       bool
}

// NewSuggestionSlot builds a slot gated by the given role.
func NewSuggestionSlot(role Role) *SuggestionSlot {
	return &SuggestionSlot{assistive: role.Assistive()}
}

// Replace installs a new suggestion, discarding any previous one. It is a
// no-op when the role lacks the assistive capability.
func (s *SuggestionSlot) Replace(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.assistive {
		return
	}
	s.text = text
	s.set = true
}

// Value returns the pending suggestion without consuming it.
func (s *SuggestionSlot) Value() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.assistive || !s.set {
		return "", false
	}
	return s.text, true
}

// Take returns the pending suggestion and clears the slot.
func (s *SuggestionSlot) Take() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.assistive || !s.set {
		return "", false
	}
	text := s.text
	s.text = ""
	s.set = false
	return text, true
}

// Clear discards any pending suggestion.
func (s *SuggestionSlot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = ""
	s.set = false
}
