package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/tlxue/everclaw/internal/config"
	"github.com/tlxue/everclaw/internal/logger"
	"github.com/tlxue/everclaw/internal/store"
)

const provisionLimitKeyPrefix = "ratelimit:provision:"

// provisionLimiter counts provisioning attempts per client in the key-value
// store. Each attempt rewrites the counter with a fresh TTL, so the window
// restarts on every counted attempt.
type provisionLimiter struct {
	kv     store.KeyValueStore
	limit  int
	window time.Duration
	logger *logger.Logger
}

// NewProvisionLimiter returns a ProvisionLimiter allowing cfg.ProvisionLimit
// attempts per cfg.ProvisionWindow.
func NewProvisionLimiter(kv store.KeyValueStore, cfg config.Server, logger *logger.Logger) ProvisionLimiter {
	return &provisionLimiter{
		kv:     kv,
		limit:  cfg.ProvisionLimit,
		window: cfg.ProvisionWindow,
		logger: logger,
	}
}

func (l *provisionLimiter) Allow(ctx context.Context, clientID string) error {
	if clientID == "" {
		clientID = "unknown"
	}
	key := provisionLimitKeyPrefix + clientID

	count := 0
	raw, err := l.kv.Get(ctx, key)
	switch {
	case errors.Is(err, store.ErrKeyNotFound):
	case err != nil:
		logger.FromContext(ctx).Err(err).Str("client", clientID).Msg("reading provision counter failed")
		return fmt.Errorf("provision limiter: %w", err)
	default:
		// A corrupted counter restarts the window.
		count, _ = strconv.Atoi(raw)
	}

	if count >= l.limit {
		logger.FromContext(ctx).Warn().Str("client", clientID).Int("count", count).Msg("provision rate limit hit")
		return rateLimited()
	}

	if err = l.kv.Put(ctx, key, strconv.Itoa(count+1), l.window); err != nil {
		logger.FromContext(ctx).Err(err).Str("client", clientID).Msg("writing provision counter failed")
		return fmt.Errorf("provision limiter: %w", err)
	}
	return nil
}
