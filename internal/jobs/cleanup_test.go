package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wirechat/gateway-go/internal/model"
)

type fakeConversationRepo struct {
	mu      sync.Mutex
	cutoffs []time.Time
	count   int64
	err     error
}

func (f *fakeConversationRepo) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	return nil, nil
}

func (f *fakeConversationRepo) FindOpenByCustomerID(ctx context.Context, tenantID, customerID string) (*model.Conversation, error) {
	return nil, nil
}

func (f *fakeConversationRepo) Create(ctx context.Context, tenantID, customerID string) (*model.Conversation, error) {
	return nil, nil
}

func (f *fakeConversationRepo) TouchLastMessage(ctx context.Context, id string, at time.Time) error {
	return nil
}

func (f *fakeConversationRepo) Close(ctx context.Context, id string) error {
	return nil
}

func (f *fakeConversationRepo) CloseIdleSince(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.count, f.err
}

func (f *fakeConversationRepo) calls() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Time, len(f.cutoffs))
	copy(out, f.cutoffs)
	return out
}

func TestCleanupJobRunsImmediatelyAndOnTicks(t *testing.T) {
	repo := &fakeConversationRepo{count: 3}
	job := NewCleanupJob(repo, 24*time.Hour, 20*time.Millisecond)

	job.Start()
	defer job.Stop()

	require.Eventually(t, func() bool {
		return len(repo.calls()) >= 2
	}, 2*time.Second, 5*time.Millisecond, "expected the initial run plus at least one tick")
}

func TestCleanupJobCutoffHonorsTTL(t *testing.T) {
	repo := &fakeConversationRepo{}
	ttl := 48 * time.Hour
	job := NewCleanupJob(repo, ttl, time.Hour)

	before := time.Now().Add(-ttl)
	job.Start()
	defer job.Stop()

	require.Eventually(t, func() bool {
		return len(repo.calls()) >= 1
	}, 2*time.Second, 5*time.Millisecond)
	after := time.Now().Add(-ttl)

	cutoff := repo.calls()[0]
	assert.False(t, cutoff.Before(before))
	assert.False(t, cutoff.After(after))
}

func TestCleanupJobStopHaltsTicks(t *testing.T) {
	repo := &fakeConversationRepo{}
	job := NewCleanupJob(repo, 24*time.Hour, 10*time.Millisecond)

	job.Start()
	require.Eventually(t, func() bool {
		return len(repo.calls()) >= 1
	}, 2*time.Second, 5*time.Millisecond)
	job.Stop()

	settled := len(repo.calls())
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, len(repo.calls()), settled+1, "ticks must stop after Stop")
}

func TestCleanupJobSurvivesRepositoryError(t *testing.T) {
	repo := &fakeConversationRepo{err: errors.New("deadlock detected")}
	job := NewCleanupJob(repo, 24*time.Hour, 15*time.Millisecond)

	job.Start()
	defer job.Stop()

	// The job keeps ticking after a failed sweep.
	require.Eventually(t, func() bool {
		return len(repo.calls()) >= 3
	}, 2*time.Second, 5*time.Millisecond)
}
