package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wirechat/gateway-go/internal/model"
	"github.com/wirechat/gateway-go/internal/repository"
	"github.com/wirechat/gateway-go/internal/util"
)

// CredentialStore persists per-tenant authentication material across process
// restarts. Safe for concurrent use across tenants; writes within a tenant
// are last-writer-wins.
type CredentialStore interface {
	Load(ctx context.Context, tenantID string) (*model.Credential, error)
	Save(ctx context.Context, tenantID string, cred model.Credential) error
	Clear(ctx context.Context, tenantID string) error
}

// EncryptingStore stores credential blobs in Postgres, AES-GCM encrypted
// when an encryption key is configured. An empty key stores blobs verbatim,
// which Config.Validate only permits outside production.
type EncryptingStore struct {
	repo   repository.CredentialRepository
	hexKey string
}

func NewEncryptingStore(repo repository.CredentialRepository, hexKey string) *EncryptingStore {
	return &EncryptingStore{repo: repo, hexKey: hexKey}
}

func (s *EncryptingStore) Load(ctx context.Context, tenantID string) (*model.Credential, error) {
	row, err := s.repo.FindByTenantID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	if row == nil {
		return nil, nil
	}

	blob := []byte(row.Ciphertext)
	if s.hexKey != "" {
		blob, err = util.Decrypt(s.hexKey, row.Ciphertext)
		if err != nil {
			return nil, fmt.Errorf("decrypt credential for tenant %s: %w", tenantID, err)
		}
	}

	return &model.Credential{
		Blob:    json.RawMessage(blob),
		Version: row.Version,
	}, nil
}

func (s *EncryptingStore) Save(ctx context.Context, tenantID string, cred model.Credential) error {
	ciphertext := string(cred.Blob)
	if s.hexKey != "" {
		encoded, err := util.Encrypt(s.hexKey, cred.Blob)
		if err != nil {
			return fmt.Errorf("encrypt credential for tenant %s: %w", tenantID, err)
		}
		ciphertext = encoded
	}

	if err := s.repo.Upsert(ctx, tenantID, ciphertext, cred.Version); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (s *EncryptingStore) Clear(ctx context.Context, tenantID string) error {
	if err := s.repo.Delete(ctx, tenantID); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}
