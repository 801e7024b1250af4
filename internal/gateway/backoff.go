package gateway

import (
	"time"

	"github.com/wirechat/gateway-go/internal/transport"
)

// Backoff computes reconnection delays. Pure and deterministic so the retry
// policy is testable in isolation from any session.
type Backoff struct {
	Base       time.Duration
	Max        time.Duration
	MaxRetries int
}

// NextDelay returns the wait before reconnection attempt retryCount
// (1-based). Delays double per attempt and are capped at Max.
func (b Backoff) NextDelay(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}

	delay := b.Base
	for i := 1; i < retryCount; i++ {
		delay *= 2
		if delay >= b.Max {
			return b.Max
		}
	}
	if delay > b.Max {
		return b.Max
	}
	return delay
}

// ShouldRetry reports whether another reconnection attempt is allowed.
// A revoked credential is never retried; transient failures are retried
// until the ceiling.
func (b Backoff) ShouldRetry(retryCount int, reason transport.CloseReason) bool {
	if reason == transport.CloseReasonLoggedOut {
		return false
	}
	return retryCount < b.MaxRetries
}
