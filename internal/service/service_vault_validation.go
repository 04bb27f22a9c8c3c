package service

import (
	"context"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/tlxue/everclaw/models"
)

// MaxPathLength is the longest vault-relative path accepted.
const MaxPathLength = 1024

// VaultValidationService rejects malformed paths before they reach the
// storage layer.
type VaultValidationService struct {
	inner VaultService
}

func NewVaultValidationService() VaultServiceWrapper {
	return &VaultValidationService{}
}

func (v *VaultValidationService) Wrap(inner VaultService) VaultService {
	v.inner = inner
	return v
}

func (v *VaultValidationService) Get(ctx context.Context, vault models.VaultIdentity, path string) (models.File, error) {
	if err := ValidatePath(path); err != nil {
		return models.File{}, err
	}
	return v.inner.Get(ctx, vault, path)
}

func (v *VaultValidationService) Put(ctx context.Context, vault models.VaultIdentity, path string, body io.Reader, declaredLength int64, contentType string) (models.WriteResult, error) {
	if err := ValidatePath(path); err != nil {
		return models.WriteResult{}, err
	}
	return v.inner.Put(ctx, vault, path, body, declaredLength, contentType)
}

func (v *VaultValidationService) Append(ctx context.Context, vault models.VaultIdentity, path string, body io.Reader, contentType string) (models.WriteResult, error) {
	if err := ValidatePath(path); err != nil {
		return models.WriteResult{}, err
	}
	return v.inner.Append(ctx, vault, path, body, contentType)
}

func (v *VaultValidationService) Delete(ctx context.Context, vault models.VaultIdentity, path string) (models.DeleteResult, error) {
	if err := ValidatePath(path); err != nil {
		return models.DeleteResult{}, err
	}
	return v.inner.Delete(ctx, vault, path)
}

// BatchPut checks only paths that are present; missing fields are reported
// by the wrapped service with the batch-specific messages.
func (v *VaultValidationService) BatchPut(ctx context.Context, vault models.VaultIdentity, req models.BatchRequest) (models.BatchResult, error) {
	for _, f := range req.Files {
		if f.Path == "" {
			continue
		}
		if err := ValidatePath(f.Path); err != nil {
			return models.BatchResult{}, err
		}
	}
	return v.inner.BatchPut(ctx, vault, req)
}

func (v *VaultValidationService) List(ctx context.Context, vault models.VaultIdentity, cursor string, limit int) (models.ListPage, error) {
	return v.inner.List(ctx, vault, cursor, limit)
}

func (v *VaultValidationService) Status(ctx context.Context, vault models.VaultIdentity) (models.VaultStatus, error) {
	return v.inner.Status(ctx, vault)
}

func (v *VaultValidationService) Purge(ctx context.Context, vault models.VaultIdentity) (models.PurgeResult, error) {
	return v.inner.Purge(ctx, vault)
}

// ValidatePath checks that path can be used as an object key suffix.
func ValidatePath(path string) error {
	const hint = "Use a relative path such as notes/today.md"

	switch {
	case path == "":
		return validationError("Path is required", hint)
	case len(path) > MaxPathLength:
		return validationError("Path is too long", hint)
	case !utf8.ValidString(path):
		return validationError("Path must be valid UTF-8", hint)
	case strings.ContainsRune(path, 0):
		return validationError("Path must not contain NUL bytes", hint)
	}
	return nil
}
