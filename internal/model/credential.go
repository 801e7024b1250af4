package model

import (
	"encoding/json"
	"time"
)

// Credential is the durable authentication material for one tenant's
// connection. The blob is opaque to the gateway: it is handed wholesale
// to the transport layer on dial and replaced wholesale on rotation.
type Credential struct {
	Blob    json.RawMessage
	Version int
}

// StoredCredential is the at-rest row; the blob is AES-GCM encrypted
// before it reaches the database.
type StoredCredential struct {
	TenantID   string    `db:"tenant_id"`
	Ciphertext string    `db:"ciphertext"`
	Version    int       `db:"version"`
	UpdatedAt  time.Time `db:"updated_at"`
}
