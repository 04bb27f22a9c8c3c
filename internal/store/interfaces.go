package store

//go:generate mockgen -source=interfaces.go -destination=../mock/store_mock.go -package=mock

import (
	"context"
	"time"

	"github.com/tlxue/everclaw/models"
)

// KeyValueStore is a string key-value store with optional per-key expiry.
// Reads of a missing or expired key return [ErrKeyNotFound].
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	// Put stores value under key. A zero ttl never expires.
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// ConditionalStore is a [KeyValueStore] with an atomic compare-and-swap.
// Backends that cannot offer one implement only [KeyValueStore].
type ConditionalStore interface {
	KeyValueStore

	// CompareAndSwap stores value under key if the current value equals
	// *old. A nil old matches only an absent key. It reports whether the
	// swap happened.
	CompareAndSwap(ctx context.Context, key string, old *string, value string) (bool, error)
}

// ExpiringStore is a [KeyValueStore] that keeps expired entries until they
// are swept. Backends with native expiry do not implement it.
type ExpiringStore interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// ObjectMeta describes a stored blob.
type ObjectMeta struct {
	Key         string
	Size        int64
	Uploaded    time.Time
	ContentType string
}

// ListOptions selects one page of a prefix listing. Cursor is the opaque
// value returned by the previous page, or empty for the first page.
type ListOptions struct {
	Prefix string
	Cursor string
	Limit  int
}

// ListResult is one page of a prefix listing in ascending key order.
type ListResult struct {
	Objects   []ObjectMeta
	Truncated bool
	Cursor    string
}

// BlobBackend is a flat object store addressed by string keys.
type BlobBackend interface {
	// Get returns the blob bytes and metadata or [ErrObjectNotFound].
	Get(ctx context.Context, key string) ([]byte, ObjectMeta, error)
	// Head returns metadata only or [ErrObjectNotFound].
	Head(ctx context.Context, key string) (ObjectMeta, error)
	// Put creates or replaces a blob.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Delete removes the given keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
	// List returns one page of keys under opts.Prefix.
	List(ctx context.Context, opts ListOptions) (ListResult, error)
	Close() error
}

// CredentialRepository maps credential hashes to vault records.
type CredentialRepository interface {
	// Save writes the record under the credential hash, replacing any
	// existing one.
	Save(ctx context.Context, credentialHash string, record models.CredentialRecord) error
	// Find returns [ErrCredentialNotFound] for an unknown hash and
	// [ErrMalformedCredentialRecord] when the stored value cannot be used.
	Find(ctx context.Context, credentialHash string) (models.CredentialRecord, error)
}

// UsageLedger tracks the stored byte total of each vault.
type UsageLedger interface {
	// Read returns the recorded usage. Missing or unparseable values read
	// as 0.
	Read(ctx context.Context, vaultID string) (int64, error)
	// Set overwrites the recorded usage.
	Set(ctx context.Context, vaultID string, bytes int64) error
	// Apply adds delta to the recorded usage, clamping at 0, and returns
	// the new value.
	Apply(ctx context.Context, vaultID string, delta int64) (int64, error)
	// Reset sets the recorded usage to 0.
	Reset(ctx context.Context, vaultID string) error
}

// ObjectPage is one page of a vault listing with vault-relative paths.
type ObjectPage struct {
	Objects   []models.ObjectInfo
	Truncated bool
	Cursor    string
}

// VaultObjects stores encrypted blobs under a per-vault namespace. Paths
// are vault-relative and never carry the namespace prefix.
type VaultObjects interface {
	// Get returns the stored blob and its content type or
	// [ErrObjectNotFound].
	Get(ctx context.Context, vaultID, path string) ([]byte, string, error)
	// Size returns the stored blob size and whether the object exists.
	Size(ctx context.Context, vaultID, path string) (int64, bool, error)
	Put(ctx context.Context, vaultID, path string, blob []byte, contentType string) error
	Delete(ctx context.Context, vaultID, path string) error
	// List returns one page of the vault's objects.
	List(ctx context.Context, vaultID, cursor string, limit int) (ObjectPage, error)
	// Walk calls fn for every page of the vault's objects until the listing
	// is exhausted or fn returns an error.
	Walk(ctx context.Context, vaultID string, fn func(page []models.ObjectInfo) error) error
	// Purge deletes every object of the vault and returns how many were
	// removed.
	Purge(ctx context.Context, vaultID string) (int, error)
}
