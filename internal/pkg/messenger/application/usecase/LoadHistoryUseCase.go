package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	cacheport "github.com/Arisha-27/KalaSetu/internal/infrastructure/cache/port"
	"github.com/Arisha-27/KalaSetu/internal/observability"
	messenger "github.com/Arisha-27/KalaSetu/internal/pkg/messenger/application/domain"
	repository "github.com/Arisha-27/KalaSetu/internal/pkg/messenger/persistence/repository/port"
)

// LoadHistoryInput carries the parameters for one history fetch.
type LoadHistoryInput struct {
	ConversationID string
}

// LoadHistoryUseCase fetches the full message log for a conversation, oldest
// first. When a cache is configured, the last successful snapshot is kept per
// conversation so a retrieval failure (or a reconnect re-fetch racing a flaky
// store) degrades to slightly stale history instead of an empty timeline.
// Hexagonal: depends on repository and cache ports only.
type LoadHistoryUseCase struct {
	Repo     repository.HistoryRepository
	Cache    cacheport.Cache // optional
	CacheTTL time.Duration
}

func NewLoadHistoryUseCase(repo repository.HistoryRepository) *LoadHistoryUseCase {
	return &LoadHistoryUseCase{Repo: repo, CacheTTL: 15 * time.Minute}
}

// WithCache attaches a snapshot cache.
func (uc *LoadHistoryUseCase) WithCache(c cacheport.Cache, ttl time.Duration) *LoadHistoryUseCase {
	uc.Cache = c
	if ttl > 0 {
		uc.CacheTTL = ttl
	}
	return uc
}

// Execute returns the conversation's messages tagged OriginPersisted.
// On repository failure it falls back to the cached snapshot when one exists,
// otherwise it reports ErrRetrieval.
func (uc *LoadHistoryUseCase) Execute(ctx context.Context, in LoadHistoryInput) ([]messenger.Message, error) {
	if in.ConversationID == "" {
		return nil, fmt.Errorf("conversationId is required")
	}

	msgs, err := uc.Repo.ListByConversation(ctx, in.ConversationID)
	if err != nil {
		if cached, ok := uc.snapshot(ctx, in.ConversationID); ok {
			observability.WithComponent("history").Warn("durable log unreachable, serving cached snapshot",
				"conversation_id", in.ConversationID, "error", err)
			return cached, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}

	uc.storeSnapshot(ctx, in.ConversationID, msgs)
	return msgs, nil
}

// Load adapts Execute to the session.HistoryLoader shape.
func (uc *LoadHistoryUseCase) Load(ctx context.Context, conversationID string) ([]messenger.Message, error) {
	return uc.Execute(ctx, LoadHistoryInput{ConversationID: conversationID})
}

func snapshotKey(conversationID string) string {
	return "messenger:history:" + conversationID
}

func (uc *LoadHistoryUseCase) snapshot(ctx context.Context, conversationID string) ([]messenger.Message, bool) {
	if uc.Cache == nil {
		return nil, false
	}
	raw, err := uc.Cache.Get(ctx, snapshotKey(conversationID))
	if err != nil {
		return nil, false
	}
	var msgs []messenger.Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		return nil, false
	}
	for i := range msgs {
		msgs[i].Origin = messenger.OriginPersisted
	}
	return msgs, true
}

func (uc *LoadHistoryUseCase) storeSnapshot(ctx context.Context, conversationID string, msgs []messenger.Message) {
	if uc.Cache == nil {
		return
	}
	raw, err := json.Marshal(msgs)
	if err != nil {
		return
	}
	// Best-effort: a cache outage must not affect the fetch.
	_ = uc.Cache.Set(ctx, snapshotKey(conversationID), string(raw), uc.CacheTTL)
}
