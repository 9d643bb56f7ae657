package initialization

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all connector runtime configuration
type Config struct {
	// Connector identity
	ConnectorID string

	// Credential record store
	RedisAddress  string
	RedisPassword string
	RedisDB       int

	// Vendor token endpoint
	TokenURL     string
	ClientID     string
	ClientSecret string

	// Peer connector lookup
	PeerBaseURL    string
	PeerSigningKey string

	// Lifecycle tuning
	LockTimeoutSeconds int
	RefreshErrorLimit  int
}

// LoadConfig loads configuration from files and environment variables
func LoadConfig() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envMappings := map[string]string{
		"ConnectorID":        "CONNECTOR_ID",
		"RedisAddress":       "REDIS_ADDRESS",
		"RedisPassword":      "REDIS_PASSWORD",
		"RedisDB":            "REDIS_DB",
		"TokenURL":           "TOKEN_URL",
		"ClientID":           "CLIENT_ID",
		"ClientSecret":       "CLIENT_SECRET",
		"PeerBaseURL":        "PEER_BASE_URL",
		"PeerSigningKey":     "PEER_SIGNING_KEY",
		"LockTimeoutSeconds": "LOCK_TIMEOUT_SECONDS",
		"RefreshErrorLimit":  "REFRESH_ERROR_LIMIT",
	}

	for configKey, envVar := range envMappings {
		if err := v.BindEnv(configKey, envVar); err != nil {
			log.Warn().Err(err).Msgf("Failed to bind environment variable %s for %s", envVar, configKey)
		}
	}

	v.SetConfigName("connectry_config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.connectry")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug().Msg("Config file not found, using environment variables and defaults")
	} else {
		log.Info().Msgf("Using config file: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("RedisAddress", "localhost:6379")
	v.SetDefault("RedisDB", 0)
	v.SetDefault("LockTimeoutSeconds", 30)
	v.SetDefault("RefreshErrorLimit", 5)
}

// LockTimeout returns the configured advisory lock timeout as a duration.
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutSeconds) * time.Second
}
