package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tlxue/everclaw/internal/logger"
	"github.com/tlxue/everclaw/models"
)

// MaxListLimit is the largest page a blob listing returns.
const MaxListLimit = 1000

type vaultObjects struct {
	blobs  BlobBackend
	logger *logger.Logger
}

// NewVaultObjects namespaces every vault under "vaults/{vaultId}/" of blobs.
func NewVaultObjects(blobs BlobBackend, log *logger.Logger) VaultObjects {
	return &vaultObjects{blobs: blobs, logger: log}
}

// VaultPrefix returns the key prefix every object of the vault lives under.
func VaultPrefix(vaultID string) string {
	return "vaults/" + vaultID + "/"
}

// ObjectKey returns the backend key of a vault-relative path.
func ObjectKey(vaultID, path string) string {
	return VaultPrefix(vaultID) + path
}

func (o *vaultObjects) Get(ctx context.Context, vaultID, path string) ([]byte, string, error) {
	data, meta, err := o.blobs.Get(ctx, ObjectKey(vaultID, path))
	if err != nil {
		return nil, "", err
	}
	return data, meta.ContentType, nil
}

func (o *vaultObjects) Size(ctx context.Context, vaultID, path string) (int64, bool, error) {
	meta, err := o.blobs.Head(ctx, ObjectKey(vaultID, path))
	if errors.Is(err, ErrObjectNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return meta.Size, true, nil
}

func (o *vaultObjects) Put(ctx context.Context, vaultID, path string, blob []byte, contentType string) error {
	return o.blobs.Put(ctx, ObjectKey(vaultID, path), blob, contentType)
}

func (o *vaultObjects) Delete(ctx context.Context, vaultID, path string) error {
	return o.blobs.Delete(ctx, ObjectKey(vaultID, path))
}

func (o *vaultObjects) List(ctx context.Context, vaultID, cursor string, limit int) (ObjectPage, error) {
	prefix := VaultPrefix(vaultID)
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}

	res, err := o.blobs.List(ctx, ListOptions{Prefix: prefix, Cursor: cursor, Limit: limit})
	if err != nil {
		return ObjectPage{}, err
	}

	page := ObjectPage{
		Objects:   make([]models.ObjectInfo, 0, len(res.Objects)),
		Truncated: res.Truncated,
		Cursor:    res.Cursor,
	}
	for _, m := range res.Objects {
		page.Objects = append(page.Objects, models.ObjectInfo{
			Path:     strings.TrimPrefix(m.Key, prefix),
			Size:     m.Size,
			Uploaded: m.Uploaded,
		})
	}
	return page, nil
}

func (o *vaultObjects) Walk(ctx context.Context, vaultID string, fn func(page []models.ObjectInfo) error) error {
	cursor := ""
	for {
		page, err := o.List(ctx, vaultID, cursor, MaxListLimit)
		if err != nil {
			return err
		}
		if len(page.Objects) > 0 {
			if err = fn(page.Objects); err != nil {
				return err
			}
		}
		if !page.Truncated {
			return nil
		}
		cursor = page.Cursor
	}
}

// Purge deletes page by page. Cursors are key based, so removing the keys
// of a page does not disturb the position of the next one.
func (o *vaultObjects) Purge(ctx context.Context, vaultID string) (int, error) {
	prefix := VaultPrefix(vaultID)
	deleted := 0

	err := o.Walk(ctx, vaultID, func(page []models.ObjectInfo) error {
		keys := make([]string, 0, len(page))
		for _, obj := range page {
			keys = append(keys, prefix+obj.Path)
		}
		if err := o.blobs.Delete(ctx, keys...); err != nil {
			return fmt.Errorf("purge %s: %w", vaultID, err)
		}
		deleted += len(keys)
		return nil
	})
	if err != nil {
		o.logger.Err(err).Str("vault_id", vaultID).Int("deleted", deleted).Msg("purge stopped early")
		return deleted, err
	}
	return deleted, nil
}
