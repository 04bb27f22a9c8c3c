// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tlxue/everclaw/internal/logger"
)

// SQLKV is a [ConditionalStore] over the kv_entries table. It works with
// both the PostgreSQL and the SQLite connections; expiry is stored as unix
// milliseconds and checked on read.
type SQLKV struct {
	db      *DB
	queries kvQueries
	now     func() time.Time
	logger  *logger.Logger
}

var (
	_ ConditionalStore = (*SQLKV)(nil)
	_ ExpiringStore    = (*SQLKV)(nil)
)

// NewSQLKV returns a key-value store over db. The schema must already be
// migrated with [DB.Migrate].
func NewSQLKV(db *DB) *SQLKV {
	log := db.logger
	if log == nil {
		log = logger.Nop()
	}
	return &SQLKV{
		db:      db,
		queries: newKVQueries(db.placeholder),
		now:     time.Now,
		logger:  log,
	}
}

func (s *SQLKV) Get(ctx context.Context, key string) (string, error) {
	query, args, err := s.queries.get(key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	var (
		value     string
		expiresAt sql.NullInt64
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		s.logger.Err(err).Str("key", key).Msg("kv get failed")
		return "", fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	if expiresAt.Valid && expiresAt.Int64 <= s.nowMillis() {
		return "", ErrKeyNotFound
	}
	return value, nil
}

func (s *SQLKV) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	var expiresAt *int64
	if ttl > 0 {
		at := s.now().Add(ttl).UnixMilli()
		expiresAt = &at
	}

	query, args, err := s.queries.upsert(key, value, expiresAt)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
		s.logger.Err(err).Str("key", key).Msg("kv put failed")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return nil
}

func (s *SQLKV) Delete(ctx context.Context, key string) error {
	query, args, err := s.queries.delete(key)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return nil
}

// CompareAndSwap is a single conditional statement: an upsert that only
// replaces an expired row when old is nil, an UPDATE guarded by the old
// value otherwise. One affected row means the swap happened. Only a
// serialization conflict counts as a lost race; connection and busy errors
// are returned so that the caller sees them at once.
func (s *SQLKV) CompareAndSwap(ctx context.Context, key string, old *string, value string) (bool, error) {
	var (
		query string
		args  []any
		err   error
	)
	if old == nil {
		query, args, err = s.queries.insertIfAbsent(key, value, s.nowMillis())
	} else {
		query, args, err = s.queries.swap(key, *old, value, s.nowMillis())
	}
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if s.db.classify(err) == Conflict {
			s.logger.Warn().Err(err).Str("key", key).Msg("kv compare-and-swap lost a serialization conflict")
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return n == 1, nil
}

// PurgeExpired deletes every expired row and returns how many were removed.
func (s *SQLKV) PurgeExpired(ctx context.Context) (int64, error) {
	query, args, err := s.queries.deleteExpired(s.nowMillis())
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return res.RowsAffected()
}

func (s *SQLKV) Close() error {
	return s.db.Close()
}

func (s *SQLKV) nowMillis() int64 {
	return s.now().UnixMilli()
}
