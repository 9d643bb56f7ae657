package initialization

import (
	"github.com/connectry/connectry/internal/managers"
	"github.com/connectry/connectry/internal/oauth"
	"github.com/connectry/connectry/internal/storage"
	"github.com/connectry/connectry/pkg/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Container wires the connector runtime: record store, token refresher,
// peer lookup, and the lifecycle manager.
type Container struct {
	config       *Config
	recordStore  domain.CredentialRecordStore
	tokenManager *managers.TokenLifecycleManager
}

func NewContainer() (*Container, error) {
	config, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("connector_id", config.ConnectorID).
		Str("redis_address", config.RedisAddress).
		Msg("Initializing connector container")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddress,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	recordStore := storage.NewRedisRecordStore(redisClient)

	refresher := oauth.NewEndpointRefresher(oauth.Config{
		TokenURL:     config.TokenURL,
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
	})

	peerFetcher := managers.NewHTTPPeerTokenFetcher(managers.HTTPPeerTokenFetcherConfig{
		EndpointBaseURL: config.PeerBaseURL,
		ConnectorID:     config.ConnectorID,
		SigningKey:      []byte(config.PeerSigningKey),
	})

	lifecycleConfig := managers.DefaultTokenLifecycleConfig()
	lifecycleConfig.LockTimeout = config.LockTimeout()
	lifecycleConfig.RefreshErrorLimit = config.RefreshErrorLimit

	tokenManager := managers.NewTokenLifecycleManager(managers.TokenLifecycleManagerDependencies{
		RecordStore: recordStore,
		Refresher:   refresher,
		PeerFetcher: peerFetcher,
		Config:      lifecycleConfig,
	})

	return &Container{
		config:       config,
		recordStore:  recordStore,
		tokenManager: tokenManager,
	}, nil
}

func (c *Container) GetConfig() *Config {
	return c.config
}

func (c *Container) GetRecordStore() domain.CredentialRecordStore {
	return c.recordStore
}

func (c *Container) GetTokenManager() *managers.TokenLifecycleManager {
	return c.tokenManager
}
