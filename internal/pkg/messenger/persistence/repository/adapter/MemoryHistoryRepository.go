package adapter

import (
	"context"
	"sort"
	"sync"

	messenger "github.com/Arisha-27/KalaSetu/internal/pkg/messenger/application/domain"
)

// MemoryHistoryRepository keeps the durable log in memory. Used by tests and
// by the terminal front when no database is configured.
type MemoryHistoryRepository struct {
	mu   sync.Mutex
	rows map[string][]messenger.Message // conversationID -> rows
	err  error
}

func NewMemoryHistoryRepository() *MemoryHistoryRepository {
	return &MemoryHistoryRepository{rows: make(map[string][]messenger.Message)}
}

// Seed appends rows for a conversation.
func (r *MemoryHistoryRepository) Seed(conversationID string, msgs ...messenger.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		m.Origin = messenger.OriginPersisted
		r.rows[conversationID] = append(r.rows[conversationID], m)
	}
}

// FailWith makes every subsequent read return err, simulating an unreachable
// store.
func (r *MemoryHistoryRepository) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *MemoryHistoryRepository) ListByConversation(ctx context.Context, conversationID string) ([]messenger.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := make([]messenger.Message, len(r.rows[conversationID]))
	copy(out, r.rows[conversationID])
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
