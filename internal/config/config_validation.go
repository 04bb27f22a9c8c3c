// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"fmt"

	"github.com/rs/zerolog"
)

// validate checks that the final merged [StructuredConfig] satisfies all
// application invariants before it is used at startup.
func (cfg *StructuredConfig) validate() error {
	if _, err := zerolog.ParseLevel(cfg.App.LogLevel); err != nil {
		return fmt.Errorf("%w: log level %q", ErrInvalidAppConfigs, cfg.App.LogLevel)
	}

	if cfg.Server.ProvisionLimit < 0 || cfg.Server.ProvisionWindow < 0 {
		return fmt.Errorf("%w: provisioning limit and window must not be negative", ErrInvalidServerConfigs)
	}
	if cfg.Server.RateLimitRPS < 0 || cfg.Server.RateLimitBurst < 0 {
		return fmt.Errorf("%w: rate limit must not be negative", ErrInvalidServerConfigs)
	}

	return cfg.Storage.validate()
}

func (s Storage) validate() error {
	switch s.KV.Driver {
	case DriverBolt:
	case DriverRedis:
		if s.KV.RedisAddr == "" {
			return fmt.Errorf("%w: redis driver requires an address", ErrInvalidStorageConfigs)
		}
	case DriverPostgres, DriverSQLite:
		if s.KV.DSN == "" {
			return fmt.Errorf("%w: %s driver requires a DSN", ErrInvalidStorageConfigs, s.KV.Driver)
		}
	default:
		return fmt.Errorf("%w: unknown kv driver %q", ErrInvalidStorageConfigs, s.KV.Driver)
	}

	switch s.Blob.Driver {
	case DriverBolt:
	case DriverMinio:
		if s.Blob.MinioEndpoint == "" || s.Blob.MinioBucket == "" {
			return fmt.Errorf("%w: minio driver requires an endpoint and a bucket", ErrInvalidStorageConfigs)
		}
	default:
		return fmt.Errorf("%w: unknown blob driver %q", ErrInvalidStorageConfigs, s.Blob.Driver)
	}

	if s.UsesBolt() && s.Bolt.Path == "" {
		return fmt.Errorf("%w: bolt driver requires a path", ErrInvalidStorageConfigs)
	}

	return nil
}

func (cfg *ClientConfig) validate() error {
	if cfg.URL == "" {
		return fmt.Errorf("%w: server URL is empty", ErrInvalidClientConfigs)
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidClientConfigs)
	}
	return nil
}
