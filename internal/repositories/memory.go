package repositories

import (
	"context"
	"sync"

	"github.com/yksirotta/credflow/pkg/domain"
)

// MemoryCredentialRepository is an in-process store used by tests and the
// CLI self-check. Saves replace the whole row, last write wins.
type MemoryCredentialRepository struct {
	mu          sync.RWMutex
	credentials map[string]domain.Credential
}

func NewMemoryCredentialRepository() *MemoryCredentialRepository {
	return &MemoryCredentialRepository{
		credentials: map[string]domain.Credential{},
	}
}

func (r *MemoryCredentialRepository) Load(ctx context.Context, id string) (domain.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	credential, ok := r.credentials[id]
	if !ok {
		return domain.Credential{}, domain.ErrCredentialNotFound
	}

	credential.EncryptedData = append([]byte(nil), credential.EncryptedData...)

	return credential, nil
}

func (r *MemoryCredentialRepository) Save(ctx context.Context, credential domain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	credential.EncryptedData = append([]byte(nil), credential.EncryptedData...)
	r.credentials[credential.ID] = credential

	return nil
}
