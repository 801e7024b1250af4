package gateway

import (
	"sync"

	apperrors "github.com/wirechat/gateway-go/internal/errors"
)

// Registry is the process-wide map of tenant id to connection session.
// The mutex covers only map insert/lookup/remove; it is never held across
// socket I/O, and session fields are never touched from here.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Add registers a session for a tenant. An existing registration wins:
// duplicate creation attempts get ALREADY_EXISTS and the running session
// is left untouched.
func (r *Registry) Add(tenantID string, session *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[tenantID]; exists {
		return apperrors.AlreadyExists("session")
	}
	r.sessions[tenantID] = session
	return nil
}

func (r *Registry) Get(tenantID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[tenantID]
	return session, ok
}

func (r *Registry) Remove(tenantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, tenantID)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Snapshot returns the current sessions without holding the lock during
// iteration by callers.
func (r *Registry) Snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		out = append(out, session)
	}
	return out
}
