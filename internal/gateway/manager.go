package gateway

import (
	"context"

	"github.com/rs/zerolog/log"

	apperrors "github.com/wirechat/gateway-go/internal/errors"
	"github.com/wirechat/gateway-go/internal/model"
)

// Manager is the contract the HTTP layer talks to. It owns the registry and
// builds sessions with shared dependencies; all methods return quickly, with
// I/O-bound work running on session goroutines.
type Manager struct {
	registry *Registry
	deps     SessionDeps
}

func NewManager(deps SessionDeps) *Manager {
	m := &Manager{
		registry: NewRegistry(),
		deps:     deps,
	}
	// Terminal sessions take themselves out of the registry.
	m.deps.OnTerminal = m.registry.Remove
	return m
}

// CreateSession registers and starts a connection session for a tenant.
// Returns ALREADY_EXISTS while one is registered, whatever its state.
func (m *Manager) CreateSession(ctx context.Context, tenantID string) error {
	session := NewSession(tenantID, m.deps)
	if err := m.registry.Add(tenantID, session); err != nil {
		return err
	}

	log.Info().Str("tenantId", tenantID).Msg("session created")
	session.Start()
	return nil
}

// GetState returns the session's lifecycle state.
func (m *Manager) GetState(tenantID string) (model.ConnectionState, error) {
	session, ok := m.registry.Get(tenantID)
	if !ok {
		return "", apperrors.NotFound("session")
	}
	return session.State(), nil
}

// GetPairingChallenge returns the pending challenge, or nil when the session
// is past (or not yet at) pairing.
func (m *Manager) GetPairingChallenge(tenantID string) ([]byte, error) {
	session, ok := m.registry.Get(tenantID)
	if !ok {
		return nil, apperrors.NotFound("session")
	}
	return session.PairingChallenge(), nil
}

// RequestDisconnect performs an explicit logout and removes the session.
func (m *Manager) RequestDisconnect(ctx context.Context, tenantID string) error {
	session, ok := m.registry.Get(tenantID)
	if !ok {
		return apperrors.NotFound("session")
	}
	session.Disconnect(ctx)
	return nil
}

// SendText relays an outbound text through the tenant's open session.
func (m *Manager) SendText(ctx context.Context, tenantID, to, body string) error {
	session, ok := m.registry.Get(tenantID)
	if !ok {
		return apperrors.NotFound("session")
	}
	return session.SendText(ctx, to, body)
}

// ActiveSessions returns the number of registered sessions.
func (m *Manager) ActiveSessions() int {
	return m.registry.Len()
}

// Shutdown closes every session's socket without logging tenants out, so
// credentials survive for reconnection after restart.
func (m *Manager) Shutdown() {
	sessions := m.registry.Snapshot()
	for _, session := range sessions {
		session.Shutdown()
	}
	log.Info().Int("count", len(sessions)).Msg("sessions shut down")
}
