package initialization

import (
	"fmt"

	"github.com/yksirotta/credflow/internal/cipher"
	"github.com/yksirotta/credflow/internal/managers"
	"github.com/yksirotta/credflow/internal/pipeline"
	"github.com/yksirotta/credflow/internal/repositories"
	"github.com/yksirotta/credflow/internal/transport"
	"github.com/yksirotta/credflow/pkg/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Container wires the credential pipeline from configuration.
type Container struct {
	config      *Config
	cipher      *cipher.Cipher
	repository  domain.CredentialRepository
	credentials domain.CredentialManager
	tokens      *managers.OAuth2TokenManager
}

func NewContainer() (*Container, error) {
	config, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	container := &Container{config: config}

	if config.EncryptionKey != "" {
		container.cipher, err = cipher.NewCipher(config.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("invalid encryption key: %w", err)
		}
	}

	return container, nil
}

func (c *Container) GetConfig() *Config {
	return c.config
}

// BuildPipeline assembles the full credential resolution pipeline. The
// registry and display evaluator are collaborator-supplied; everything else
// comes from configuration.
func (c *Container) BuildPipeline(registry domain.NodeTypeRegistry, display domain.DisplayConditionEvaluator) (*pipeline.Pipeline, error) {
	if c.cipher == nil {
		return nil, fmt.Errorf("no encryption key configured")
	}

	repository := c.buildRepository()
	credentialManager := managers.NewCredentialManager(repository, c.cipher)
	tokenManager := managers.NewOAuth2TokenManager(credentialManager, nil)

	c.repository = repository
	c.credentials = credentialManager
	c.tokens = tokenManager

	return pipeline.NewPipeline(pipeline.Dependencies{
		CredentialManager: credentialManager,
		Registry:          registry,
		Transport:         &transport.HTTPTransport{DefaultTimeout: c.config.RequestTimeout},
		TokenManager:      tokenManager,
		DisplayEvaluator:  display,
	}), nil
}

func (c *Container) buildRepository() domain.CredentialRepository {
	if c.config.RedisAddress == "" {
		log.Warn().Msg("No Redis address configured, using in-memory credential repository")
		return repositories.NewMemoryCredentialRepository()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     c.config.RedisAddress,
		Password: c.config.RedisPassword,
		DB:       c.config.RedisDB,
	})

	return repositories.NewRedisCredentialRepository(client)
}
