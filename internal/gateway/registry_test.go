package gateway

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wirechat/gateway-go/internal/errors"
)

func TestRegistryAddRejectsDuplicate(t *testing.T) {
	r := NewRegistry()

	first := &Session{tenantID: "org-1"}
	require.NoError(t, r.Add("org-1", first))

	err := r.Add("org-1", &Session{tenantID: "org-1"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeAlreadyExists))

	// The original registration survives.
	got, ok := r.Get("org-1")
	require.True(t, ok)
	assert.Same(t, first, got)
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Add("org-1", &Session{tenantID: "org-1"}))
	r.Remove("org-1")

	_, ok := r.Get("org-1")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())

	// Removing an absent tenant is a no-op.
	r.Remove("org-1")
}

func TestRegistryConcurrentCreateSingleWinner(t *testing.T) {
	r := NewRegistry()

	const attempts = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Add("org-1", &Session{tenantID: "org-1"}); err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, 1, r.Len())
}

func TestRegistrySnapshot(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add("org-1", &Session{tenantID: "org-1"}))
	require.NoError(t, r.Add("org-2", &Session{tenantID: "org-2"}))

	assert.Len(t, r.Snapshot(), 2)
}
