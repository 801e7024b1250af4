package model

import "time"

// ConnectionStatus is the externally visible status mirrored to the
// organization record. Coarser than ConnectionState on purpose: outside
// consumers only care whether the tenant can exchange messages.
type ConnectionStatus string

const (
	ConnectionStatusConnected    ConnectionStatus = "connected"
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
	ConnectionStatusPending      ConnectionStatus = "pending"
)

type Organization struct {
	ID               string           `db:"id" json:"id"`
	Name             string           `db:"name" json:"name"`
	APITokenHash     string           `db:"api_token_hash" json:"-"`
	ConnectionStatus ConnectionStatus `db:"connection_status" json:"connectionStatus"`
	CreatedAt        time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updatedAt"`
}
