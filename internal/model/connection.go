package model

// ConnectionState is the lifecycle state of one tenant's connection session.
type ConnectionState string

const (
	ConnectionStateIdle            ConnectionState = "idle"
	ConnectionStateConnecting      ConnectionState = "connecting"
	ConnectionStateAwaitingPairing ConnectionState = "awaiting_pairing"
	ConnectionStateOpen            ConnectionState = "open"
	ConnectionStateClosing         ConnectionState = "closing"
	ConnectionStateLoggedOut       ConnectionState = "logged_out"
	ConnectionStateFailed          ConnectionState = "failed"
)

// Terminal reports whether the session can never leave this state on its own.
func (s ConnectionState) Terminal() bool {
	return s == ConnectionStateLoggedOut || s == ConnectionStateFailed
}
