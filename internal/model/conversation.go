package model

import "time"

type ConversationStatus string

const (
	ConversationStatusOpen   ConversationStatus = "open"
	ConversationStatusClosed ConversationStatus = "closed"
)

type Conversation struct {
	ID            string             `db:"id" json:"id"`
	TenantID      string             `db:"tenant_id" json:"tenantId"`
	CustomerID    string             `db:"customer_id" json:"customerId"`
	Status        ConversationStatus `db:"status" json:"status"`
	LastMessageAt *time.Time         `db:"last_message_at" json:"lastMessageAt,omitempty"`
	ClosedAt      *time.Time         `db:"closed_at" json:"closedAt,omitempty"`
	CreatedAt     time.Time          `db:"created_at" json:"createdAt"`
}
