package initialization

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all pipeline configuration.
type Config struct {
	// EncryptionKey is the base64-encoded 32-byte instance key all
	// credential blobs are sealed with.
	EncryptionKey string

	// RedisAddress selects the Redis credential repository when set; empty
	// means the in-memory repository (development and self-checks only).
	RedisAddress  string
	RedisPassword string
	RedisDB       int

	// RequestTimeout is the default outbound call timeout applied when a
	// request descriptor carries none.
	RequestTimeout time.Duration

	Debug bool
}

// LoadConfig loads configuration from a config file and environment
// variables.
func LoadConfig() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envMappings := map[string]string{
		"EncryptionKey":  "CREDFLOW_ENCRYPTION_KEY",
		"RedisAddress":   "CREDFLOW_REDIS_ADDRESS",
		"RedisPassword":  "CREDFLOW_REDIS_PASSWORD",
		"RedisDB":        "CREDFLOW_REDIS_DB",
		"RequestTimeout": "CREDFLOW_REQUEST_TIMEOUT",
		"Debug":          "CREDFLOW_DEBUG",
	}

	for configKey, envVar := range envMappings {
		if err := v.BindEnv(configKey, envVar); err != nil {
			log.Warn().Err(err).Msgf("Failed to bind environment variable %s for %s", envVar, configKey)
		}
	}

	v.SetConfigName("credflow_config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.credflow")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; environment variables and defaults apply.
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("RequestTimeout", 30*time.Second)
	v.SetDefault("RedisDB", 0)
	v.SetDefault("Debug", false)
}
