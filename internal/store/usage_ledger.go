// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/tlxue/everclaw/internal/logger"
)

const (
	usageKeyPrefix = "usage:"

	// usageSwapAttempts bounds the compare-and-swap loop of Apply before it
	// falls back to an unconditional write.
	usageSwapAttempts = 16
)

type usageLedger struct {
	kv     KeyValueStore
	logger *logger.Logger
}

// NewUsageLedger keeps each vault's usage as a decimal string under
// "usage:{vaultId}". When kv is a [ConditionalStore], Apply is a
// compare-and-swap loop and concurrent updates are not lost; otherwise it
// is a plain read-modify-write.
func NewUsageLedger(kv KeyValueStore, log *logger.Logger) UsageLedger {
	return &usageLedger{kv: kv, logger: log}
}

func (l *usageLedger) Read(ctx context.Context, vaultID string) (int64, error) {
	raw, err := l.kv.Get(ctx, usageKeyPrefix+vaultID)
	if errors.Is(err, ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read usage: %w", err)
	}
	return l.parse(vaultID, raw), nil
}

func (l *usageLedger) Set(ctx context.Context, vaultID string, bytes int64) error {
	if err := l.kv.Put(ctx, usageKeyPrefix+vaultID, formatUsage(bytes), 0); err != nil {
		return fmt.Errorf("write usage: %w", err)
	}
	return nil
}

func (l *usageLedger) Apply(ctx context.Context, vaultID string, delta int64) (int64, error) {
	if cs, ok := l.kv.(ConditionalStore); ok {
		next, swapped, err := l.applyConditional(ctx, cs, vaultID, delta)
		if err != nil || swapped {
			return next, err
		}
		l.logger.Warn().
			Str("vault_id", vaultID).
			Int64("delta", delta).
			Msg("usage compare-and-swap kept losing; falling back to unconditional write")
	}

	current, err := l.Read(ctx, vaultID)
	if err != nil {
		return 0, err
	}
	next := clampUsage(current + delta)
	return next, l.Set(ctx, vaultID, next)
}

func (l *usageLedger) applyConditional(ctx context.Context, cs ConditionalStore, vaultID string, delta int64) (int64, bool, error) {
	key := usageKeyPrefix + vaultID

	for attempt := 0; attempt < usageSwapAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, false, err
		}

		var (
			old     *string
			current int64
		)
		raw, err := cs.Get(ctx, key)
		switch {
		case errors.Is(err, ErrKeyNotFound):
		case err != nil:
			return 0, false, fmt.Errorf("read usage: %w", err)
		default:
			old = &raw
			current = l.parse(vaultID, raw)
		}

		next := clampUsage(current + delta)
		swapped, err := cs.CompareAndSwap(ctx, key, old, formatUsage(next))
		if err != nil {
			return 0, false, fmt.Errorf("swap usage: %w", err)
		}
		if swapped {
			return next, true, nil
		}
	}
	return 0, false, nil
}

func (l *usageLedger) Reset(ctx context.Context, vaultID string) error {
	return l.Set(ctx, vaultID, 0)
}

func (l *usageLedger) parse(vaultID, raw string) int64 {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		l.logger.Warn().Str("vault_id", vaultID).Str("raw", raw).Msg("usage counter is not a number; reading as 0")
		return 0
	}
	return n
}

func formatUsage(n int64) string {
	return strconv.FormatInt(n, 10)
}

func clampUsage(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
