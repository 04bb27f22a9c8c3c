// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package adapter provides the client side of the everclaw HTTP API.
//
// The primary abstraction is [VaultClient], which vaultctl uses to talk to a
// running server. The package ships one implementation built on resty
// ([NewHTTPVaultClient]).
//
// Failed responses are decoded from the JSON error envelope into [*APIError],
// which unwraps to one of the sentinel values in errors.go so that callers
// can use [errors.Is] (e.g. [ErrQuotaExceeded] for 413, [ErrUnauthorized]
// for 401).
package adapter

import (
	"context"

	"github.com/tlxue/everclaw/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/adapter_mock.go -package=mock

// VaultClient defines the operations exposed by an everclaw server. All vault
// operations are authenticated with the API key the client was built with.
type VaultClient interface {
	// Health reports whether the server answers GET /health.
	Health(ctx context.Context) error

	// Provision creates a vault. It is the only call that works without an
	// API key.
	Provision(ctx context.Context, req models.ProvisionRequest) (models.ProvisionResult, error)

	// Get downloads and returns the decrypted file at path.
	Get(ctx context.Context, path string) (models.File, error)

	// Put stores content at path, replacing any previous object.
	Put(ctx context.Context, path string, content []byte, contentType string) (models.WriteResult, error)

	// Append adds content to the end of the file at path, creating it when
	// missing.
	Append(ctx context.Context, path string, content []byte, contentType string) (models.WriteResult, error)

	// Delete removes the file at path. Deleting a missing file succeeds.
	Delete(ctx context.Context, path string) (models.DeleteResult, error)

	// List returns one page of the vault listing. An empty cursor starts from
	// the beginning; limit <= 0 lets the server pick its default.
	List(ctx context.Context, cursor string, limit int) (models.ListPage, error)

	// Status returns the vault summary.
	Status(ctx context.Context) (models.VaultStatus, error)

	// Purge deletes every file in the vault.
	Purge(ctx context.Context) (models.PurgeResult, error)

	// Batch uploads several text files in one request. A response in which
	// every file failed is returned as a result, not as an error; inspect
	// [models.BatchResult.OK].
	Batch(ctx context.Context, req models.BatchRequest) (models.BatchResult, error)
}
