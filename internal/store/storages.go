// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.etcd.io/bbolt"

	"github.com/tlxue/everclaw/internal/config"
	"github.com/tlxue/everclaw/internal/logger"
)

// Storages aggregates the repositories the services depend on together
// with the raw key-value store used for rate-limit windows.
type Storages struct {
	KV          KeyValueStore
	Credentials CredentialRepository
	Usage       UsageLedger
	Objects     VaultObjects

	closers []io.Closer
}

// NewStorages opens the configured backends. The bbolt file is opened once
// and shared when both drivers are "bolt".
func NewStorages(ctx context.Context, cfg config.Storage, log *logger.Logger) (*Storages, error) {
	s := &Storages{}

	var boltDB *bbolt.DB
	if cfg.UsesBolt() {
		db, err := OpenBolt(cfg.Bolt.Path)
		if err != nil {
			return nil, err
		}
		boltDB = db
		s.closers = append(s.closers, db)
		log.Info().Str("path", cfg.Bolt.Path).Msg("opened bolt database")
	}

	kv, err := newKeyValueStore(ctx, cfg.KV, boltDB, log)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.closers = append(s.closers, kv)

	blobs, err := newBlobBackend(ctx, cfg.Blob, boltDB, log)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.closers = append(s.closers, blobs)

	s.KV = kv
	s.Credentials = NewCredentialRepository(kv, log)
	s.Usage = NewUsageLedger(kv, log)
	s.Objects = NewVaultObjects(blobs, log)

	return s, nil
}

func newKeyValueStore(ctx context.Context, cfg config.KV, boltDB *bbolt.DB, log *logger.Logger) (KeyValueStore, error) {
	switch cfg.Driver {
	case config.DriverBolt:
		return NewBoltKV(boltDB), nil

	case config.DriverRedis:
		return NewRedisKV(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, log)

	case config.DriverPostgres, config.DriverSQLite:
		var (
			db  *DB
			err error
		)
		if cfg.Driver == config.DriverPostgres {
			db, err = NewConnectPostgres(ctx, cfg.DSN, log)
		} else {
			db, err = NewConnectSQLite(ctx, cfg.DSN, log)
		}
		if err != nil {
			return nil, err
		}
		if err = db.Migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
		return NewSQLKV(db), nil
	}

	return nil, fmt.Errorf("%w: kv %q", ErrUnknownDriver, cfg.Driver)
}

func newBlobBackend(ctx context.Context, cfg config.Blob, boltDB *bbolt.DB, log *logger.Logger) (BlobBackend, error) {
	switch cfg.Driver {
	case config.DriverBolt:
		return NewBoltBlobs(boltDB), nil

	case config.DriverMinio:
		return NewMinioBlobs(ctx, MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		}, log)
	}

	return nil, fmt.Errorf("%w: blob %q", ErrUnknownDriver, cfg.Driver)
}

// Close releases every backend in reverse order of opening.
func (s *Storages) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
