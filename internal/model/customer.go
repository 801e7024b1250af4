package model

import "time"

type Customer struct {
	ID          string    `db:"id" json:"id"`
	TenantID    string    `db:"tenant_id" json:"tenantId"`
	Address     string    `db:"address" json:"address"`
	DisplayName *string   `db:"display_name" json:"displayName,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	LastSeenAt  time.Time `db:"last_seen_at" json:"lastSeenAt"`
}

type UpsertCustomerParams struct {
	TenantID    string
	Address     string
	DisplayName *string
}
