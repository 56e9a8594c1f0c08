package repository

import (
	"context"

	messenger "github.com/Arisha-27/KalaSetu/internal/pkg/messenger/application/domain"
)

// HistoryRepository defines the durable-log read side of the messenger.
// Implementations return all rows for a conversation ordered by creation time
// ascending, tagged OriginPersisted.
type HistoryRepository interface {
	ListByConversation(ctx context.Context, conversationID string) ([]messenger.Message, error)
}
