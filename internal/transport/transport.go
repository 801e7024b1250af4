// Package transport is the boundary to the external chat network. The wire
// protocol behind the socket is opaque to the rest of the gateway: sessions
// only see typed lifecycle and message events.
package transport

import (
	"context"
	"time"

	"github.com/wirechat/gateway-go/internal/model"
)

// CloseReason classifies why a socket stopped delivering events.
type CloseReason string

const (
	// CloseReasonTransient covers network blips and server-side restarts;
	// the session may reconnect with the same credential.
	CloseReasonTransient CloseReason = "transient"
	// CloseReasonLoggedOut means the network rejected or revoked the
	// credential; reconnecting requires fresh pairing.
	CloseReasonLoggedOut CloseReason = "logged_out"
)

// InboundMessage is one message delivered by the network. Created by the
// socket read loop, consumed exactly once by the ingestion pipeline, never
// mutated after creation.
type InboundMessage struct {
	ExternalID    string
	SenderAddress string
	SenderName    *string
	Body          string
	RawKind       string
	SentAt        time.Time
}

// Event is a lifecycle or message event emitted by a Socket. Events for one
// socket are delivered strictly in wire order.
type Event interface {
	isEvent()
}

// PairingEvent carries a fresh pairing challenge (QR payload). Each new
// challenge supersedes the previous one.
type PairingEvent struct {
	Challenge []byte
}

// OpenEvent signals a completed handshake; the connection is usable.
type OpenEvent struct{}

// CredentialEvent signals credential rotation; the new material must be
// persisted before the old one is forgotten.
type CredentialEvent struct {
	Credential model.Credential
}

// MessageEvent carries one inbound message.
type MessageEvent struct {
	Message InboundMessage
}

// ClosedEvent is the final event on a socket's event channel.
type ClosedEvent struct {
	Reason CloseReason
	Err    error
}

func (PairingEvent) isEvent()    {}
func (OpenEvent) isEvent()       {}
func (CredentialEvent) isEvent() {}
func (MessageEvent) isEvent()    {}
func (ClosedEvent) isEvent()     {}

// Socket is one tenant's duplex channel to the chat network.
type Socket interface {
	// Events returns the socket's event stream. The channel is closed after
	// a ClosedEvent has been delivered.
	Events() <-chan Event
	// SendText sends a text message to a recipient address.
	SendText(ctx context.Context, to, body string) error
	// Close tears the socket down. Safe to call more than once.
	Close() error
}

// Dialer establishes sockets. A nil credential requests a pairing flow;
// otherwise the stored credential is presented for resumption.
type Dialer interface {
	Dial(ctx context.Context, tenantID string, cred *model.Credential) (Socket, error)
}
