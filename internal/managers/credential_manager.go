package managers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yksirotta/credflow/internal/cipher"
	"github.com/yksirotta/credflow/pkg/domain"
)

type credentialManager struct {
	repository domain.CredentialRepository
	cipher     *cipher.Cipher
}

func NewCredentialManager(repository domain.CredentialRepository, cipher *cipher.Cipher) domain.CredentialManager {
	return &credentialManager{
		repository: repository,
		cipher:     cipher,
	}
}

func (m *credentialManager) GetCredential(ctx context.Context, id string) (domain.Credential, error) {
	credential, err := m.repository.Load(ctx, id)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("failed to load credential: %w", err)
	}

	return credential, nil
}

func (m *credentialManager) GetDecryptedCredential(ctx context.Context, id string) (domain.DecryptedCredentialData, error) {
	credential, err := m.repository.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}

	data, err := m.cipher.Decrypt(credential.EncryptedData)
	if err != nil {
		var decryptionErr *domain.CredentialDecryptionError
		if errors.As(err, &decryptionErr) {
			decryptionErr.CredentialID = id
		}
		return nil, err
	}

	return data, nil
}

// UpdateCredentialData re-encrypts and saves the whole payload. Partial
// updates are not supported; encryption always replaces the blob.
func (m *credentialManager) UpdateCredentialData(ctx context.Context, id string, data domain.DecryptedCredentialData) error {
	credential, err := m.repository.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load credential: %w", err)
	}

	encrypted, err := m.cipher.Encrypt(data)
	if err != nil {
		return fmt.Errorf("failed to encrypt credential data: %w", err)
	}

	credential.EncryptedData = encrypted

	if err := m.repository.Save(ctx, credential); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	return nil
}

// CredentialGetter decodes decrypted credential data into a typed struct for
// custom authenticate hooks that want field access without map plumbing.
type CredentialGetter[T any] struct {
	manager domain.CredentialManager
}

func NewCredentialGetter[T any](manager domain.CredentialManager) *CredentialGetter[T] {
	return &CredentialGetter[T]{
		manager: manager,
	}
}

func (g *CredentialGetter[T]) GetDecryptedCredential(ctx context.Context, id string) (T, error) {
	var zero T

	data, err := g.manager.GetDecryptedCredential(ctx, id)
	if err != nil {
		return zero, err
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return zero, fmt.Errorf("failed to marshal credential data: %w", err)
	}

	var result T
	if err := json.Unmarshal(raw, &result); err != nil {
		return zero, fmt.Errorf("failed to unmarshal credential: %w", err)
	}

	return result, nil
}
