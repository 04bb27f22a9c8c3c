package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/tlxue/everclaw/internal/logger"
)

// RedisKV is a [ConditionalStore] backed by Redis. Expiry is delegated to
// Redis key TTLs and compare-and-swap uses WATCH/MULTI.
type RedisKV struct {
	client *redis.Client
	logger *logger.Logger
}

var _ ConditionalStore = (*RedisKV)(nil)

// RedisOptions selects the Redis server and logical database.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisKV connects to Redis and verifies the connection with PING.
func NewRedisKV(ctx context.Context, opts RedisOptions, log *logger.Logger) (*RedisKV, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		log.Err(err).Str("addr", opts.Addr).Msg("error connecting redis (ping)")
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info().Str("addr", opts.Addr).Msg("connected to redis successfully")

	return &RedisKV{client: client, logger: log}, nil
}

func (s *RedisKV) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

func (s *RedisKV) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisKV) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// CompareAndSwap watches key, checks its current value and writes inside a
// MULTI block. A concurrent write to key aborts the transaction and is
// reported as a failed swap.
func (s *RedisKV) CompareAndSwap(ctx context.Context, key string, old *string, value string) (bool, error) {
	swapped := false

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Result()
		exists := true
		if errors.Is(err, redis.Nil) {
			exists = false
		} else if err != nil {
			return err
		}

		if old == nil && exists {
			return nil
		}
		if old != nil && (!exists || current != *old) {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, value, 0)
			return nil
		})
		if err != nil {
			return err
		}
		swapped = true
		return nil
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis cas %s: %w", key, err)
	}
	return swapped, nil
}

func (s *RedisKV) Close() error {
	return s.client.Close()
}
