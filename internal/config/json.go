package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StructuredJSONConfig is the on-disk shape of the optional JSON config file.
type StructuredJSONConfig struct {
	App struct {
		VaultQuotaMB string `json:"vault_quota_mb"`
		LogLevel     string `json:"log_level"`
		Version      string `json:"version"`
		Environment  string `json:"environment"`
	} `json:"app,omitempty"`

	Server struct {
		HTTPAddress     string   `json:"http_address"`
		RequestTimeout  Duration `json:"request_timeout"`
		ShutdownTimeout Duration `json:"shutdown_timeout"`
		ProvisionLimit  int      `json:"provision_limit"`
		ProvisionWindow Duration `json:"provision_window"`
		RateLimitRPS    float64  `json:"rate_limit_rps"`
		RateLimitBurst  int      `json:"rate_limit_burst"`
	} `json:"server,omitempty"`

	Storage struct {
		KV struct {
			Driver        string `json:"driver"`
			DSN           string `json:"dsn"`
			RedisAddr     string `json:"redis_addr"`
			RedisPassword string `json:"redis_password"`
			RedisDB       int    `json:"redis_db"`
		} `json:"kv,omitempty"`

		Blob struct {
			Driver         string `json:"driver"`
			MinioEndpoint  string `json:"minio_endpoint"`
			MinioAccessKey string `json:"minio_access_key"`
			MinioSecretKey string `json:"minio_secret_key"`
			MinioBucket    string `json:"minio_bucket"`
			MinioUseSSL    bool   `json:"minio_use_ssl"`
		} `json:"blob,omitempty"`

		Bolt struct {
			Path string `json:"path"`
		} `json:"bolt,omitempty"`
	} `json:"storage,omitempty"`

	Workers struct {
		LimiterCleanupInterval Duration `json:"limiter_cleanup_interval"`
		LimiterIdleTTL         Duration `json:"limiter_idle_ttl"`
		ExpirySweepInterval    Duration `json:"expiry_sweep_interval"`
	} `json:"workers,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		App: App{
			VaultQuotaMB: jsonCfg.App.VaultQuotaMB,
			LogLevel:     jsonCfg.App.LogLevel,
			Version:      jsonCfg.App.Version,
			Environment:  jsonCfg.App.Environment,
		},
		Server: Server{
			HTTPAddress:     jsonCfg.Server.HTTPAddress,
			RequestTimeout:  time.Duration(jsonCfg.Server.RequestTimeout),
			ShutdownTimeout: time.Duration(jsonCfg.Server.ShutdownTimeout),
			ProvisionLimit:  jsonCfg.Server.ProvisionLimit,
			ProvisionWindow: time.Duration(jsonCfg.Server.ProvisionWindow),
			RateLimitRPS:    jsonCfg.Server.RateLimitRPS,
			RateLimitBurst:  jsonCfg.Server.RateLimitBurst,
		},
		Storage: Storage{
			KV: KV{
				Driver:        jsonCfg.Storage.KV.Driver,
				DSN:           jsonCfg.Storage.KV.DSN,
				RedisAddr:     jsonCfg.Storage.KV.RedisAddr,
				RedisPassword: jsonCfg.Storage.KV.RedisPassword,
				RedisDB:       jsonCfg.Storage.KV.RedisDB,
			},
			Blob: Blob{
				Driver:         jsonCfg.Storage.Blob.Driver,
				MinioEndpoint:  jsonCfg.Storage.Blob.MinioEndpoint,
				MinioAccessKey: jsonCfg.Storage.Blob.MinioAccessKey,
				MinioSecretKey: jsonCfg.Storage.Blob.MinioSecretKey,
				MinioBucket:    jsonCfg.Storage.Blob.MinioBucket,
				MinioUseSSL:    jsonCfg.Storage.Blob.MinioUseSSL,
			},
			Bolt: Bolt{
				Path: jsonCfg.Storage.Bolt.Path,
			},
		},
		Workers: Workers{
			LimiterCleanupInterval: time.Duration(jsonCfg.Workers.LimiterCleanupInterval),
			LimiterIdleTTL:         time.Duration(jsonCfg.Workers.LimiterIdleTTL),
			ExpirySweepInterval:    time.Duration(jsonCfg.Workers.ExpirySweepInterval),
		},
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling
// from strings like "1h", "30s" as well as raw nanosecond numbers.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
