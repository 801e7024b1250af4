// Package status mirrors session connection status onto the organization
// store. Best-effort: a failed write is logged and dropped, never retried,
// and never blocks a lifecycle transition.
package status

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wirechat/gateway-go/internal/model"
	"github.com/wirechat/gateway-go/internal/repository"
)

type Reporter struct {
	orgs    repository.OrganizationRepository
	timeout time.Duration
}

func NewReporter(orgs repository.OrganizationRepository, timeout time.Duration) *Reporter {
	return &Reporter{orgs: orgs, timeout: timeout}
}

// SetConnectionStatus implements gateway.StatusReporter. Returns
// immediately; the write happens on its own goroutine.
func (r *Reporter) SetConnectionStatus(tenantID string, connStatus model.ConnectionStatus) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := r.orgs.UpdateConnectionStatus(ctx, tenantID, connStatus); err != nil {
			log.Error().
				Str("tenantId", tenantID).
				Str("status", string(connStatus)).
				Err(err).
				Msg("status: update organization")
			return
		}

		log.Debug().
			Str("tenantId", tenantID).
			Str("status", string(connStatus)).
			Msg("organization status updated")
	}()
}
