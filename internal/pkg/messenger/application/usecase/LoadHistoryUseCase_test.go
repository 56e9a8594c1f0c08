package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cacheport "github.com/Arisha-27/KalaSetu/internal/infrastructure/cache/port"
	messenger "github.com/Arisha-27/KalaSetu/internal/pkg/messenger/application/domain"
	"github.com/Arisha-27/KalaSetu/internal/pkg/messenger/application/usecase"
	"github.com/Arisha-27/KalaSetu/internal/pkg/messenger/persistence/repository/adapter"
)

// memCache is a map-backed stand-in for the redis adapter.
type memCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string]string)}
}

func (c *memCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return "", cacheport.ErrMiss
	}
	return v, nil
}

func (c *memCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Del(ctx context.Context, keys ...string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := c.data[k]; ok {
			delete(c.data, k)
			n++
		}
	}
	return n, nil
}

func (c *memCache) Ping(ctx context.Context) error { return nil }
func (c *memCache) Close() error                   { return nil }

func seedRepo() *adapter.MemoryHistoryRepository {
	repo := adapter.NewMemoryHistoryRepository()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo.Seed("conv-1",
		messenger.Message{ServerID: "2", ConversationID: "conv-1", SenderID: "buyer-2", Text: "is it in stock?", CreatedAt: base.Add(20 * time.Second)},
		messenger.Message{ServerID: "1", ConversationID: "conv-1", SenderID: "artisan-1", Text: "hi", CreatedAt: base.Add(10 * time.Second)},
	)
	return repo
}

func TestLoadHistoryReturnsRowsOldestFirst(t *testing.T) {
	uc := usecase.NewLoadHistoryUseCase(seedRepo())

	msgs, err := uc.Execute(context.Background(), usecase.LoadHistoryInput{ConversationID: "conv-1"})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "hi", msgs[0].Text)
	require.Equal(t, "is it in stock?", msgs[1].Text)
	for _, m := range msgs {
		require.Equal(t, messenger.OriginPersisted, m.Origin)
	}
}

func TestLoadHistoryRequiresConversationID(t *testing.T) {
	uc := usecase.NewLoadHistoryUseCase(seedRepo())
	_, err := uc.Execute(context.Background(), usecase.LoadHistoryInput{})
	require.Error(t, err)
}

func TestLoadHistoryFailureReportsRetrievalError(t *testing.T) {
	repo := seedRepo()
	repo.FailWith(errors.New("connection refused"))
	uc := usecase.NewLoadHistoryUseCase(repo)

	_, err := uc.Execute(context.Background(), usecase.LoadHistoryInput{ConversationID: "conv-1"})
	require.ErrorIs(t, err, usecase.ErrRetrieval)
}

func TestLoadHistoryFallsBackToCachedSnapshot(t *testing.T) {
	repo := seedRepo()
	cache := newMemCache()
	uc := usecase.NewLoadHistoryUseCase(repo).WithCache(cache, time.Minute)

	// First load succeeds and fills the snapshot.
	first, err := uc.Execute(context.Background(), usecase.LoadHistoryInput{ConversationID: "conv-1"})
	require.NoError(t, err)
	require.Len(t, first, 2)

	// Store goes away; the snapshot serves instead of an empty timeline.
	repo.FailWith(errors.New("connection refused"))
	second, err := uc.Execute(context.Background(), usecase.LoadHistoryInput{ConversationID: "conv-1"})
	require.NoError(t, err)
	require.Len(t, second, 2)
	require.Equal(t, first[0].Text, second[0].Text)
	require.Equal(t, messenger.OriginPersisted, second[0].Origin)
}

func TestLoadHistoryFailureWithoutSnapshotStillFails(t *testing.T) {
	repo := seedRepo()
	repo.FailWith(errors.New("connection refused"))
	uc := usecase.NewLoadHistoryUseCase(repo).WithCache(newMemCache(), time.Minute)

	_, err := uc.Execute(context.Background(), usecase.LoadHistoryInput{ConversationID: "conv-1"})
	require.ErrorIs(t, err, usecase.ErrRetrieval)
}
