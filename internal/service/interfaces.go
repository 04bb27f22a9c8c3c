package service

//go:generate mockgen -source=interfaces.go -destination=../mock/service_mock.go -package=mock

import (
	"context"
	"io"

	"github.com/tlxue/everclaw/models"
)

// RegistryService issues vault credentials and resolves them back to the
// vault they own.
type RegistryService interface {
	// Provision creates a vault. When req.APIKey is nil a credential is
	// generated; otherwise it must be "ec-" followed by 64 lowercase hex
	// characters. The credential is returned once and never stored.
	Provision(ctx context.Context, req models.ProvisionRequest) (models.ProvisionResult, error)

	// Resolve authenticates credential and returns the vault it owns or an
	// INVALID_API_KEY [VaultError].
	Resolve(ctx context.Context, credential string) (models.VaultIdentity, error)
}

// VaultService implements the encrypted object operations of one vault.
// Every operation expects an identity obtained from [RegistryService.Resolve].
type VaultService interface {
	Get(ctx context.Context, vault models.VaultIdentity, path string) (models.File, error)

	// Put replaces the object at path. declaredLength is the size announced
	// by the transport, or -1 when unknown.
	Put(ctx context.Context, vault models.VaultIdentity, path string, body io.Reader, declaredLength int64, contentType string) (models.WriteResult, error)

	// Append joins body to the existing plaintext with a newline, or creates
	// the object when it does not exist.
	Append(ctx context.Context, vault models.VaultIdentity, path string, body io.Reader, contentType string) (models.WriteResult, error)

	Delete(ctx context.Context, vault models.VaultIdentity, path string) (models.DeleteResult, error)
	BatchPut(ctx context.Context, vault models.VaultIdentity, req models.BatchRequest) (models.BatchResult, error)

	// List returns one page of objects. A zero limit selects the default
	// page size; other values are clamped to [1, 1000].
	List(ctx context.Context, vault models.VaultIdentity, cursor string, limit int) (models.ListPage, error)

	// Status traverses the entire vault listing.
	Status(ctx context.Context, vault models.VaultIdentity) (models.VaultStatus, error)

	// Purge deletes every object of the vault and resets its usage.
	Purge(ctx context.Context, vault models.VaultIdentity) (models.PurgeResult, error)
}

// ProvisionLimiter bounds how often one client may provision vaults.
type ProvisionLimiter interface {
	// Allow counts one attempt by clientID and returns a RATE_LIMITED
	// [VaultError] once the window allowance is spent.
	Allow(ctx context.Context, clientID string) error
}

// AppInfoService exposes build and deployment information.
type AppInfoService interface {
	GetAppVersion(ctx context.Context) string
	GetEnvironment(ctx context.Context) string
}
