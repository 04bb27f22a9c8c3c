// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"strconv"
	"strings"
	"time"
)

// Storage backend drivers accepted by [KV.Driver] and [Blob.Driver].
const (
	DriverBolt     = "bolt"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMinio    = "minio"
)

// Defaults applied after all sources are merged.
const (
	DefaultQuotaMB         = 50
	DefaultHTTPAddress     = ":8787"
	DefaultBoltPath        = "everclaw.db"
	DefaultProvisionLimit  = 5
	DefaultProvisionWindow = time.Minute
	DefaultShutdownTimeout = 10 * time.Second
	DefaultLogLevel        = "debug"
)

// StructuredConfig is the top-level configuration container for the everclaw
// server. It is populated by merging values from a .env file, environment
// variables, command-line flags, and an optional JSON file.
//
// Struct tags:
//   - envPrefix: prefix applied to all nested env tag lookups (caarlos0/env).
//   - env: direct environment variable name for scalar fields.
type StructuredConfig struct {
	// App holds vault policy and process-wide settings.
	App App `envPrefix:"APP_"`

	// Server holds network, timeout and rate-limit settings of the HTTP API.
	Server Server `envPrefix:"SERVER_"`

	// Storage selects and configures the key-value and blob backends.
	Storage Storage `envPrefix:"STORAGE_"`

	// Workers holds configuration for background maintenance workers.
	Workers Workers `envPrefix:"WORKERS_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// App holds application-level configuration values.
type App struct {
	// VaultQuotaMB is the per-vault storage ceiling in megabytes. It is kept
	// as a string so that an unparseable value falls back to the default
	// instead of failing startup.
	// Env: APP_VAULT_QUOTA_MB
	VaultQuotaMB string `env:"VAULT_QUOTA_MB"`

	// LogLevel is a zerolog level name ("debug", "info", ...).
	// Env: APP_LOG_LEVEL
	LogLevel string `env:"LOG_LEVEL"`

	// Version is exposed via the /version endpoint.
	// Env: APP_VERSION
	Version string `env:"VERSION"`

	// Environment is a free-form deployment label ("production", "dev").
	// Env: APP_ENVIRONMENT
	Environment string `env:"ENVIRONMENT"`
}

// Server holds settings for the inbound HTTP transport.
type Server struct {
	// HTTPAddress is the TCP address the HTTP server listens on.
	// Env: SERVER_ADDRESS
	HTTPAddress string `env:"ADDRESS"`

	// RequestTimeout bounds a single inbound request. Zero disables it.
	// Env: SERVER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`

	// ShutdownTimeout bounds graceful shutdown.
	// Env: SERVER_SHUTDOWN_TIMEOUT
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`

	// ProvisionLimit is the number of provisioning requests allowed per
	// client IP within ProvisionWindow.
	// Env: SERVER_PROVISION_LIMIT
	ProvisionLimit int `env:"PROVISION_LIMIT"`

	// ProvisionWindow is the fixed window of the provisioning limit.
	// Env: SERVER_PROVISION_WINDOW
	ProvisionWindow time.Duration `env:"PROVISION_WINDOW"`

	// RateLimitRPS is the sustained per-IP request rate for vault routes.
	// Zero disables the limiter.
	// Env: SERVER_RATE_LIMIT_RPS
	RateLimitRPS float64 `env:"RATE_LIMIT_RPS"`

	// RateLimitBurst is the token bucket size of the per-IP limiter.
	// Env: SERVER_RATE_LIMIT_BURST
	RateLimitBurst int `env:"RATE_LIMIT_BURST"`
}

// Storage groups the configuration of all persistence backends.
type Storage struct {
	// KV is the key-value store holding credential records, usage counters
	// and rate-limit windows.
	KV KV `envPrefix:"KV_"`

	// Blob is the object store holding encrypted vault blobs.
	Blob Blob `envPrefix:"BLOB_"`

	// Bolt configures the embedded bbolt database shared by the bolt drivers.
	Bolt Bolt `envPrefix:"BOLT_"`
}

// KV selects the key-value backend.
type KV struct {
	// Driver is one of bolt, redis, postgres, sqlite.
	// Env: STORAGE_KV_DRIVER
	Driver string `env:"DRIVER"`

	// DSN is the SQL connection string for the postgres and sqlite drivers.
	// Env: STORAGE_KV_DSN
	DSN string `env:"DSN"`

	// Env: STORAGE_KV_REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR"`
	// Env: STORAGE_KV_REDIS_PASSWORD
	RedisPassword string `env:"REDIS_PASSWORD"`
	// Env: STORAGE_KV_REDIS_DB
	RedisDB int `env:"REDIS_DB"`
}

// Blob selects the object-store backend.
type Blob struct {
	// Driver is one of bolt, minio.
	// Env: STORAGE_BLOB_DRIVER
	Driver string `env:"DRIVER"`

	// Env: STORAGE_BLOB_MINIO_ENDPOINT
	MinioEndpoint string `env:"MINIO_ENDPOINT"`
	// Env: STORAGE_BLOB_MINIO_ACCESS_KEY
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	// Env: STORAGE_BLOB_MINIO_SECRET_KEY
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	// Env: STORAGE_BLOB_MINIO_BUCKET
	MinioBucket string `env:"MINIO_BUCKET"`
	// Env: STORAGE_BLOB_MINIO_USE_SSL
	MinioUseSSL bool `env:"MINIO_USE_SSL"`
}

// Bolt configures the embedded database file.
type Bolt struct {
	// Path is the bbolt database file.
	// Env: STORAGE_BOLT_PATH
	Path string `env:"PATH"`
}

// Workers holds configuration for background workers.
type Workers struct {
	// LimiterCleanupInterval is how often idle per-IP limiters are evicted.
	// Env: WORKERS_LIMITER_CLEANUP_INTERVAL
	LimiterCleanupInterval time.Duration `env:"LIMITER_CLEANUP_INTERVAL"`

	// LimiterIdleTTL is how long an unused per-IP limiter is kept.
	// Env: WORKERS_LIMITER_IDLE_TTL
	LimiterIdleTTL time.Duration `env:"LIMITER_IDLE_TTL"`

	// ExpirySweepInterval is how often expired key-value entries are purged
	// from backends without native expiry.
	// Env: WORKERS_EXPIRY_SWEEP_INTERVAL
	ExpirySweepInterval time.Duration `env:"EXPIRY_SWEEP_INTERVAL"`
}

// QuotaBytes returns the vault quota in bytes. Unset, unparseable or
// non-positive values fall back to [DefaultQuotaMB].
func (a App) QuotaBytes() int64 {
	mb, err := strconv.ParseInt(strings.TrimSpace(a.VaultQuotaMB), 10, 64)
	if err != nil || mb <= 0 {
		mb = DefaultQuotaMB
	}
	return mb * 1024 * 1024
}

// UsesBolt reports whether either backend needs the embedded database.
func (s Storage) UsesBolt() bool {
	return s.KV.Driver == DriverBolt || s.Blob.Driver == DriverBolt
}

// GetStructuredConfig loads, merges, and validates the server configuration
// from all available sources in the following priority order (last source
// wins for non-zero fields):
//  1. .env file in the working directory (exported into the environment)
//  2. Environment variables
//  3. Command-line flags
//  4. JSON file (path resolved from sources 2 and 3)
func GetStructuredConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withDotEnv().
		withEnv().
		withFlags(osArgs()).
		withJSON().
		build()
}

func (cfg *StructuredConfig) applyDefaults() {
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = DefaultLogLevel
	}
	if cfg.Server.HTTPAddress == "" {
		cfg.Server.HTTPAddress = DefaultHTTPAddress
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.ProvisionLimit == 0 {
		cfg.Server.ProvisionLimit = DefaultProvisionLimit
	}
	if cfg.Server.ProvisionWindow == 0 {
		cfg.Server.ProvisionWindow = DefaultProvisionWindow
	}
	if cfg.Server.RateLimitRPS > 0 && cfg.Server.RateLimitBurst == 0 {
		cfg.Server.RateLimitBurst = int(cfg.Server.RateLimitRPS) * 2
		if cfg.Server.RateLimitBurst < 1 {
			cfg.Server.RateLimitBurst = 1
		}
	}
	if cfg.Storage.KV.Driver == "" {
		cfg.Storage.KV.Driver = DriverBolt
	}
	if cfg.Storage.Blob.Driver == "" {
		cfg.Storage.Blob.Driver = DriverBolt
	}
	if cfg.Storage.Bolt.Path == "" {
		cfg.Storage.Bolt.Path = DefaultBoltPath
	}
	if cfg.Workers.LimiterCleanupInterval == 0 {
		cfg.Workers.LimiterCleanupInterval = time.Minute
	}
	if cfg.Workers.LimiterIdleTTL == 0 {
		cfg.Workers.LimiterIdleTTL = 10 * time.Minute
	}
	if cfg.Workers.ExpirySweepInterval == 0 {
		cfg.Workers.ExpirySweepInterval = 5 * time.Minute
	}
}
