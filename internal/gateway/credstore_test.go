package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wirechat/gateway-go/internal/model"
)

const testEncryptionKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

type memCredentialRepo struct {
	mu   sync.Mutex
	rows map[string]*model.StoredCredential
}

func newMemCredentialRepo() *memCredentialRepo {
	return &memCredentialRepo{rows: make(map[string]*model.StoredCredential)}
}

func (r *memCredentialRepo) FindByTenantID(ctx context.Context, tenantID string) (*model.StoredCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[tenantID]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

func (r *memCredentialRepo) Upsert(ctx context.Context, tenantID, ciphertext string, version int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[tenantID] = &model.StoredCredential{
		TenantID:   tenantID,
		Ciphertext: ciphertext,
		Version:    version,
	}
	return nil
}

func (r *memCredentialRepo) Delete(ctx context.Context, tenantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, tenantID)
	return nil
}

func TestEncryptingStoreRoundTrip(t *testing.T) {
	repo := newMemCredentialRepo()
	store := NewEncryptingStore(repo, testEncryptionKey)

	cred := model.Credential{Blob: json.RawMessage(`{"noiseKey":"abc"}`), Version: 4}
	require.NoError(t, store.Save(context.Background(), "org-1", cred))

	// The at-rest row must not expose the plaintext blob.
	row, err := repo.FindByTenantID(context.Background(), "org-1")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.NotContains(t, row.Ciphertext, "noiseKey")

	loaded, err := store.Load(context.Background(), "org-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.JSONEq(t, `{"noiseKey":"abc"}`, string(loaded.Blob))
	assert.Equal(t, 4, loaded.Version)
}

func TestEncryptingStorePlaintextWithoutKey(t *testing.T) {
	repo := newMemCredentialRepo()
	store := NewEncryptingStore(repo, "")

	cred := model.Credential{Blob: json.RawMessage(`{"k":"v"}`), Version: 1}
	require.NoError(t, store.Save(context.Background(), "org-1", cred))

	row, err := repo.FindByTenantID(context.Background(), "org-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":"v"}`, row.Ciphertext)

	loaded, err := store.Load(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Version)
}

func TestEncryptingStoreLoadMissing(t *testing.T) {
	store := NewEncryptingStore(newMemCredentialRepo(), testEncryptionKey)

	loaded, err := store.Load(context.Background(), "org-unknown")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestEncryptingStoreLoadWrongKey(t *testing.T) {
	repo := newMemCredentialRepo()
	writer := NewEncryptingStore(repo, testEncryptionKey)
	require.NoError(t, writer.Save(context.Background(), "org-1",
		model.Credential{Blob: json.RawMessage(`{"k":"v"}`), Version: 1}))

	otherKey := "0000000000000000000000000000000000000000000000000000000000000000"
	reader := NewEncryptingStore(repo, otherKey)

	_, err := reader.Load(context.Background(), "org-1")
	require.Error(t, err)
}

func TestEncryptingStoreClear(t *testing.T) {
	repo := newMemCredentialRepo()
	store := NewEncryptingStore(repo, testEncryptionKey)

	require.NoError(t, store.Save(context.Background(), "org-1",
		model.Credential{Blob: json.RawMessage(`{"k":"v"}`), Version: 1}))
	require.NoError(t, store.Clear(context.Background(), "org-1"))

	loaded, err := store.Load(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
