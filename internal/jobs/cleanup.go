package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wirechat/gateway-go/internal/repository"
)

// CleanupJob closes conversations that have gone quiet, so the one-open-
// conversation-per-customer invariant starts a fresh thread when a customer
// returns after a long absence.
type CleanupJob struct {
	conversations repository.ConversationRepository
	idleTTL       time.Duration
	interval      time.Duration
	done          chan struct{}
}

func NewCleanupJob(conversations repository.ConversationRepository, idleTTL, interval time.Duration) *CleanupJob {
	return &CleanupJob{
		conversations: conversations,
		idleTTL:       idleTTL,
		interval:      interval,
		done:          make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-j.idleTTL)
	count, err := j.conversations.CloseIdleSince(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("failed to close idle conversations")
	} else if count > 0 {
		log.Info().Int64("count", count).Msg("closed idle conversations")
	}
}
