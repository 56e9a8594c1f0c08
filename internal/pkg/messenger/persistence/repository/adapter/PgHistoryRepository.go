package adapter

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	messenger "github.com/Arisha-27/KalaSetu/internal/pkg/messenger/application/domain"
)

// PgHistoryRepository reads the messages table (Supabase Postgres) directly
// through pgx. Column names follow the storefront schema: original_text holds
// the body as typed by the sender.
type PgHistoryRepository struct {
	pool *pgxpool.Pool
}

func NewPgHistoryRepository(pool *pgxpool.Pool) *PgHistoryRepository {
	return &PgHistoryRepository{pool: pool}
}

func (r *PgHistoryRepository) ListByConversation(ctx context.Context, conversationID string) ([]messenger.Message, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgHistoryRepository: nil pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, conversation_id::text, sender_id::text, original_text, created_at
		FROM messages
		WHERE conversation_id = $1::uuid
		ORDER BY created_at ASC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []messenger.Message
	for rows.Next() {
		var m messenger.Message
		if err := rows.Scan(&m.ServerID, &m.ConversationID, &m.SenderID, &m.Text, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Origin = messenger.OriginPersisted
		msgs = append(msgs, m)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return msgs, nil
}
