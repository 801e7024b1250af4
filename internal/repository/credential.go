package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/wirechat/gateway-go/internal/model"
)

type CredentialRepository interface {
	FindByTenantID(ctx context.Context, tenantID string) (*model.StoredCredential, error)
	Upsert(ctx context.Context, tenantID, ciphertext string, version int) error
	Delete(ctx context.Context, tenantID string) error
}

type credentialRepo struct {
	db *sqlx.DB
}

func NewCredentialRepository(db *sqlx.DB) CredentialRepository {
	return &credentialRepo{db: db}
}

func (r *credentialRepo) FindByTenantID(ctx context.Context, tenantID string) (*model.StoredCredential, error) {
	var cred model.StoredCredential
	err := r.db.GetContext(ctx, &cred, `
		SELECT * FROM credentials WHERE tenant_id = $1
	`, tenantID)
	return HandleNotFound(&cred, err)
}

// Upsert is last-writer-wins: the transport layer is the sole writer per
// tenant and always hands us monotonically newer state.
func (r *credentialRepo) Upsert(ctx context.Context, tenantID, ciphertext string, version int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credentials (tenant_id, ciphertext, version)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id) DO UPDATE SET
			ciphertext = EXCLUDED.ciphertext,
			version = EXCLUDED.version,
			updated_at = NOW()
	`, tenantID, ciphertext, version)
	return err
}

func (r *credentialRepo) Delete(ctx context.Context, tenantID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE tenant_id = $1`, tenantID)
	return err
}
