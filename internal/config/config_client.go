package config

import (
	"flag"
	"fmt"
	"io"
	"time"
)

// DefaultClientTimeout bounds a single vaultctl request when no timeout is
// configured.
const DefaultClientTimeout = 30 * time.Second

// ClientConfig holds the vaultctl settings. Unlike the server config it is
// read from unprefixed EVERCLAW_* variables, which is what the agent skill
// exports.
type ClientConfig struct {
	// URL is the base URL of the everclaw server.
	// Env: EVERCLAW_URL
	URL string `env:"EVERCLAW_URL"`

	// APIKey is the vault credential sent as the bearer token.
	// Env: EVERCLAW_API_KEY
	APIKey string `env:"EVERCLAW_API_KEY"`

	// Timeout bounds one request.
	// Env: EVERCLAW_TIMEOUT
	Timeout time.Duration `env:"EVERCLAW_TIMEOUT"`
}

// GetClientConfig loads the vaultctl config from a .env file, the environment
// and the leading global flags of args. Flags win over the environment.
//
// Flags:
//
//	-url server base URL
//	-key vault API key
//	-timeout request timeout (e.g., "10s")
//
// It returns the config and the arguments left after the global flags,
// which start with the subcommand name.
func GetClientConfig(args []string) (*ClientConfig, []string, error) {
	if err := loadDotEnv(); err != nil {
		return nil, nil, err
	}

	cfg := &ClientConfig{}
	if err := parseEnv(cfg); err != nil {
		return nil, nil, err
	}

	fs := flag.NewFlagSet("vaultctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	url := fs.String("url", "", "Server base URL")
	key := fs.String("key", "", "Vault API key")
	timeout := fs.Duration("timeout", 0, "Request timeout")

	if err := fs.Parse(args); err != nil {
		return nil, nil, fmt.Errorf("error parsing flags: %w", err)
	}

	if *url != "" {
		cfg.URL = *url
	}
	if *key != "" {
		cfg.APIKey = *key
	}
	if *timeout != 0 {
		cfg.Timeout = *timeout
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultClientTimeout
	}

	if err := cfg.validate(); err != nil {
		return nil, nil, err
	}

	return cfg, fs.Args(), nil
}
