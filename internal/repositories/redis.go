package repositories

import (
	"context"
	"fmt"

	"github.com/yksirotta/credflow/pkg/domain"

	"github.com/redis/go-redis/v9"
)

const credentialKeyPrefix = "credflow:credential:"

// RedisCredentialRepository stores each credential as a Redis hash. HSet
// replaces fields atomically per key, which gives the row-level
// last-write-wins semantics the store contract asks for.
type RedisCredentialRepository struct {
	client *redis.Client
}

func NewRedisCredentialRepository(client *redis.Client) *RedisCredentialRepository {
	return &RedisCredentialRepository{client: client}
}

func (r *RedisCredentialRepository) Load(ctx context.Context, id string) (domain.Credential, error) {
	fields, err := r.client.HGetAll(ctx, credentialKeyPrefix+id).Result()
	if err != nil {
		return domain.Credential{}, fmt.Errorf("failed to load credential %s: %w", id, err)
	}

	if len(fields) == 0 {
		return domain.Credential{}, domain.ErrCredentialNotFound
	}

	return domain.Credential{
		ID:            fields["id"],
		Name:          fields["name"],
		TypeName:      fields["type_name"],
		EncryptedData: []byte(fields["encrypted_data"]),
	}, nil
}

func (r *RedisCredentialRepository) Save(ctx context.Context, credential domain.Credential) error {
	key := credentialKeyPrefix + credential.ID

	err := r.client.HSet(ctx, key,
		"id", credential.ID,
		"name", credential.Name,
		"type_name", credential.TypeName,
		"encrypted_data", credential.EncryptedData,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to save credential %s: %w", credential.ID, err)
	}

	return nil
}
