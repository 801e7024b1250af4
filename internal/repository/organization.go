package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/wirechat/gateway-go/internal/model"
)

type OrganizationRepository interface {
	FindByID(ctx context.Context, id string) (*model.Organization, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.Organization, error)
	UpdateConnectionStatus(ctx context.Context, id string, status model.ConnectionStatus) error
}

type organizationRepo struct {
	db *sqlx.DB
}

func NewOrganizationRepository(db *sqlx.DB) OrganizationRepository {
	return &organizationRepo{db: db}
}

func (r *organizationRepo) FindByID(ctx context.Context, id string) (*model.Organization, error) {
	var org model.Organization
	err := r.db.GetContext(ctx, &org, `SELECT * FROM organizations WHERE id = $1`, id)
	return HandleNotFound(&org, err)
}

func (r *organizationRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Organization, error) {
	var org model.Organization
	err := r.db.GetContext(ctx, &org, `
		SELECT * FROM organizations WHERE api_token_hash = $1
	`, tokenHash)
	return HandleNotFound(&org, err)
}

func (r *organizationRepo) UpdateConnectionStatus(ctx context.Context, id string, status model.ConnectionStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE organizations SET
			connection_status = $2,
			updated_at = NOW()
		WHERE id = $1
	`, id, status)
	return err
}
