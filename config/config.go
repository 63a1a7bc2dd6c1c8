// Package config reads service settings from the environment.
package config

import (
	"blogging/utils"
	"fmt"
	"time"
)

type AppMode string

const (
	ServerMode AppMode = "server"
	WorkerMode AppMode = "worker"
)

type StorageMode string

const (
	InMemory StorageMode = "inmemory"
	Mongo    StorageMode = "mongo"
	Postgres StorageMode = "postgres"
	Cached   StorageMode = "cached"
)

type Config struct {
	AppMode     AppMode
	ServerPort  string
	StorageMode StorageMode
	// CacheBackend is the persistent storage behind the redis cache in cached mode.
	CacheBackend StorageMode

	MongoURL    string
	MongoDBName string
	DatabaseDSN string

	RedisURL string
	CacheTTL time.Duration
	// BrokerURL enables the machinery dispatcher when set.
	BrokerURL string

	SecretKey         string
	AccessTokenTTL    time.Duration
	OpenAPIValidation bool
	LogLevel          string
}

// Load reads the config, failing when a setting required by the chosen modes is missing.
func Load() (*Config, error) {
	var err error
	cfg := &Config{
		AppMode:      AppMode(utils.GetEnvVarWithDefault("APP_MODE", string(ServerMode))),
		ServerPort:   utils.GetEnvVarWithDefault("SERVER_PORT", "8080"),
		StorageMode:  StorageMode(utils.GetEnvVarWithDefault("STORAGE_MODE", string(InMemory))),
		CacheBackend: StorageMode(utils.GetEnvVarWithDefault("CACHE_BACKEND", string(Mongo))),
		MongoURL:     utils.GetEnvVarWithDefault("MONGO_URL", ""),
		MongoDBName:  utils.GetEnvVarWithDefault("MONGO_DBNAME", ""),
		DatabaseDSN:  utils.GetEnvVarWithDefault("DATABASE_DSN", ""),
		RedisURL:     utils.GetEnvVarWithDefault("REDIS_URL", ""),
		BrokerURL:    utils.GetEnvVarWithDefault("BROKER_URL", ""),
		LogLevel:     utils.GetEnvVarWithDefault("LOG_LEVEL", "info"),
	}

	if cfg.CacheTTL, err = utils.GetDurationEnvVar("CACHE_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.AccessTokenTTL, err = utils.GetDurationEnvVar("ACCESS_TOKEN_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.OpenAPIValidation, err = utils.GetBoolEnvVar("OPENAPI_VALIDATION", true); err != nil {
		return nil, err
	}

	switch cfg.AppMode {
	case ServerMode:
		if cfg.SecretKey, err = utils.GetEnvVar("SECRET_KEY"); err != nil {
			return nil, err
		}
	case WorkerMode:
		if cfg.BrokerURL == "" {
			return nil, fmt.Errorf("'BROKER_URL' is required in %s mode", WorkerMode)
		}
	default:
		return nil, fmt.Errorf("invalid 'APP_MODE' %q", cfg.AppMode)
	}

	if err := cfg.validateStorage(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validateStorage() error {
	backend := c.StorageMode
	switch c.StorageMode {
	case InMemory:
		if c.AppMode == WorkerMode {
			return fmt.Errorf("%s mode needs a shared storage, not %s", WorkerMode, InMemory)
		}
		if c.BrokerURL != "" {
			return fmt.Errorf("'BROKER_URL' needs a shared storage, not %s: no worker can reach it", InMemory)
		}
		return nil
	case Mongo, Postgres:
	case Cached:
		if c.RedisURL == "" {
			return fmt.Errorf("'REDIS_URL' was not specified for '%s' STORAGE_MODE", Cached)
		}
		backend = c.CacheBackend
	default:
		return fmt.Errorf("invalid 'STORAGE_MODE' %q", c.StorageMode)
	}

	switch backend {
	case Mongo:
		if c.MongoURL == "" || c.MongoDBName == "" {
			return fmt.Errorf("'MONGO_URL' and 'MONGO_DBNAME' are required for %s storage", Mongo)
		}
	case Postgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("'DATABASE_DSN' is required for %s storage", Postgres)
		}
	default:
		return fmt.Errorf("invalid 'CACHE_BACKEND' %q", c.CacheBackend)
	}
	return nil
}

func (c *Config) Addr() string {
	return "0.0.0.0:" + c.ServerPort
}
