package model

import "time"

type MessageDirection string

const (
	MessageDirectionInbound  MessageDirection = "inbound"
	MessageDirectionOutbound MessageDirection = "outbound"
)

type Message struct {
	ID             string           `db:"id" json:"id"`
	TenantID       string           `db:"tenant_id" json:"tenantId"`
	ConversationID string           `db:"conversation_id" json:"conversationId"`
	CustomerID     string           `db:"customer_id" json:"customerId"`
	ExternalID     string           `db:"external_id" json:"externalId"`
	Direction      MessageDirection `db:"direction" json:"direction"`
	SenderAddress  string           `db:"sender_address" json:"senderAddress"`
	Body           string           `db:"body" json:"body"`
	RawKind        string           `db:"raw_kind" json:"rawKind"`
	SentAt         time.Time        `db:"sent_at" json:"sentAt"`
	CreatedAt      time.Time        `db:"created_at" json:"createdAt"`
}

type CreateMessageParams struct {
	TenantID       string
	ConversationID string
	CustomerID     string
	ExternalID     string
	Direction      MessageDirection
	SenderAddress  string
	Body           string
	RawKind        string
	SentAt         time.Time
}
