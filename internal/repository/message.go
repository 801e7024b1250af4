package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/wirechat/gateway-go/internal/model"
)

// ErrDuplicateMessage is returned by Create when a message with the same
// (tenant_id, external_id) has already been persisted.
var ErrDuplicateMessage = duplicateMessageError{}

type duplicateMessageError struct{}

func (duplicateMessageError) Error() string { return "message already ingested" }

type MessageRepository interface {
	FindByConversationID(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, error)
	Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error)
	CountByTenantIDSince(ctx context.Context, tenantID string, since time.Time) (int, error)
}

type messageRepo struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) FindByConversationID(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT * FROM messages
		WHERE conversation_id = $1
		ORDER BY sent_at DESC
		LIMIT $2 OFFSET $3
	`, conversationID, limit, offset)
	return msgs, err
}

// Create inserts exactly one row per (tenant_id, external_id). The unique
// index is the idempotency guard: a concurrent duplicate delivery loses the
// insert race and gets ErrDuplicateMessage instead of a second row.
func (r *messageRepo) Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error) {
	var msg model.Message
	err := r.db.GetContext(ctx, &msg, `
		INSERT INTO messages
			(tenant_id, conversation_id, customer_id, external_id,
			 direction, sender_address, body, raw_kind, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING *
	`, params.TenantID, params.ConversationID, params.CustomerID, params.ExternalID,
		params.Direction, params.SenderAddress, params.Body, params.RawKind, params.SentAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrDuplicateMessage
		}
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepo) CountByTenantIDSince(ctx context.Context, tenantID string, since time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM messages WHERE tenant_id = $1 AND created_at >= $2
	`, tenantID, since)
	return count, err
}
