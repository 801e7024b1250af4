package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/wirechat/gateway-go/internal/model"
)

type CustomerRepository interface {
	Upsert(ctx context.Context, params model.UpsertCustomerParams) (*model.Customer, error)
	CountByTenantID(ctx context.Context, tenantID string) (int, error)
}

type customerRepo struct {
	db *sqlx.DB
}

func NewCustomerRepository(db *sqlx.DB) CustomerRepository {
	return &customerRepo{db: db}
}

func (r *customerRepo) Upsert(ctx context.Context, params model.UpsertCustomerParams) (*model.Customer, error) {
	var customer model.Customer
	err := r.db.GetContext(ctx, &customer, `
		INSERT INTO customers (tenant_id, address, display_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, address) DO UPDATE SET
			display_name = COALESCE(EXCLUDED.display_name, customers.display_name),
			last_seen_at = NOW()
		RETURNING *
	`, params.TenantID, params.Address, params.DisplayName)
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *customerRepo) CountByTenantID(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM customers WHERE tenant_id = $1
	`, tenantID)
	return count, err
}
