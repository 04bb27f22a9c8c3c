// Package utils provides general-purpose helpers shared by the server and the
// vaultctl client: typed context keys, JSON response writing and the resty
// HTTP client.
package utils

import (
	"context"

	"github.com/tlxue/everclaw/models"
)

// contextKey is a private type for context keys.
// Using a dedicated type instead of a plain string prevents key collisions
// with other packages that may use string-based keys in the context.
type contextKey string

// String returns the string representation of the context key.
func (c contextKey) String() string {
	return string(c)
}

// VaultCtxKey is the key under which the auth middleware stores the resolved
// [models.VaultIdentity].
var VaultCtxKey = contextKey("vault")

// WithVault returns a copy of ctx carrying vault.
func WithVault(ctx context.Context, vault models.VaultIdentity) context.Context {
	return context.WithValue(ctx, VaultCtxKey, vault)
}

// GetVaultFromContext retrieves the authenticated vault identity.
//
// ok is false when the value is missing or has an unexpected type, which
// means the request did not pass through the auth middleware.
func GetVaultFromContext(ctx context.Context) (models.VaultIdentity, bool) {
	vault, ok := ctx.Value(VaultCtxKey).(models.VaultIdentity)
	return vault, ok
}
