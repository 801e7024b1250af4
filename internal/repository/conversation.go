package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/wirechat/gateway-go/internal/model"
)

type ConversationRepository interface {
	FindByID(ctx context.Context, id string) (*model.Conversation, error)
	FindOpenByCustomerID(ctx context.Context, tenantID, customerID string) (*model.Conversation, error)
	Create(ctx context.Context, tenantID, customerID string) (*model.Conversation, error)
	TouchLastMessage(ctx context.Context, id string, at time.Time) error
	Close(ctx context.Context, id string) error
	CloseIdleSince(ctx context.Context, cutoff time.Time) (int64, error)
}

type conversationRepo struct {
	db *sqlx.DB
}

func NewConversationRepository(db *sqlx.DB) ConversationRepository {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT * FROM conversations WHERE id = $1`, id)
	return HandleNotFound(&conv, err)
}

// FindOpenByCustomerID returns the single open conversation for a customer,
// or nil when none exists. The partial unique index on
// (tenant_id, customer_id) WHERE status = 'open' keeps "single" honest.
func (r *conversationRepo) FindOpenByCustomerID(ctx context.Context, tenantID, customerID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, `
		SELECT * FROM conversations
		WHERE tenant_id = $1 AND customer_id = $2 AND status = 'open'
	`, tenantID, customerID)
	return HandleNotFound(&conv, err)
}

func (r *conversationRepo) Create(ctx context.Context, tenantID, customerID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, `
		INSERT INTO conversations (tenant_id, customer_id, status)
		VALUES ($1, $2, 'open')
		RETURNING *
	`, tenantID, customerID)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) TouchLastMessage(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET last_message_at = $2 WHERE id = $1
	`, id, at)
	return err
}

func (r *conversationRepo) Close(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET
			status = 'closed',
			closed_at = NOW()
		WHERE id = $1 AND status = 'open'
	`, id)
	return err
}

func (r *conversationRepo) CloseIdleSince(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET
			status = 'closed',
			closed_at = NOW()
		WHERE status = 'open'
		AND COALESCE(last_message_at, created_at) < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
