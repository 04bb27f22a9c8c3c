// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package workers

import (
	"context"
	"sync"
	"time"

	"github.com/tlxue/everclaw/internal/config"
	"github.com/tlxue/everclaw/internal/logger"
	"github.com/tlxue/everclaw/internal/metrics"
	"github.com/tlxue/everclaw/internal/store"
)

type Workers struct {
	workers []Worker
}

// NewWorkers builds the maintenance workers that apply to this deployment.
// limiter may be nil when per-IP rate limiting is disabled; kv gets a
// sweeper only when it keeps expired entries on disk.
func NewWorkers(limiter IdleEvictor, kv store.KeyValueStore, cfg config.Workers, logger *logger.Logger) *Workers {
	w := &Workers{}

	if limiter != nil {
		w.workers = append(w.workers, NewLimiterJanitor(limiter, cfg.LimiterCleanupInterval, cfg.LimiterIdleTTL, logger))
	}
	if expiring, ok := kv.(store.ExpiringStore); ok {
		w.workers = append(w.workers, NewExpirySweeper(expiring, cfg.ExpirySweepInterval, logger))
	}

	logger.Info().Int("workers", len(w.workers)).Msg("workers created")
	return w
}

// Run starts every worker and blocks until all of them return.
func (w *Workers) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, worker := range w.workers {
		wg.Go(func() {
			worker.Run(ctx)
		})
	}
	wg.Wait()
}

// LimiterJanitor periodically evicts idle rate-limiter buckets.
type LimiterJanitor struct {
	limiter  IdleEvictor
	interval time.Duration
	ttl      time.Duration
	logger   *logger.Logger
}

func NewLimiterJanitor(limiter IdleEvictor, interval, ttl time.Duration, logger *logger.Logger) *LimiterJanitor {
	return &LimiterJanitor{limiter: limiter, interval: interval, ttl: ttl, logger: logger}
}

func (j *LimiterJanitor) Run(ctx context.Context) {
	tick(ctx, j.interval, func() {
		if n := j.limiter.EvictIdle(j.ttl); n > 0 {
			j.logger.Debug().Int("evicted", n).Msg("idle rate limiters evicted")
		}
	})
}

// ExpirySweeper periodically deletes expired key-value entries, such as
// closed provisioning windows, from stores without native expiry.
type ExpirySweeper struct {
	store    store.ExpiringStore
	interval time.Duration
	logger   *logger.Logger
}

func NewExpirySweeper(kv store.ExpiringStore, interval time.Duration, logger *logger.Logger) *ExpirySweeper {
	return &ExpirySweeper{store: kv, interval: interval, logger: logger}
}

func (s *ExpirySweeper) Run(ctx context.Context) {
	tick(ctx, s.interval, func() {
		s.sweep(ctx)
	})
}

func (s *ExpirySweeper) sweep(ctx context.Context) {
	n, err := s.store.PurgeExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Err(err).Str("func", "*ExpirySweeper.sweep").Msg("error purging expired entries")
		}
		return
	}
	metrics.AddExpiredSwept(n)
	if n > 0 {
		s.logger.Debug().Int64("purged", n).Msg("expired entries purged")
	}
}

// tick calls fn every interval until ctx is done. A non-positive interval
// disables the job.
func tick(ctx context.Context, interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
