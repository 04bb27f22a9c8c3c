// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tlxue/everclaw/internal/app"
	"github.com/tlxue/everclaw/internal/config"
	"github.com/tlxue/everclaw/internal/crypto"
	"github.com/tlxue/everclaw/internal/logger"
	"github.com/tlxue/everclaw/internal/store"
	"github.com/tlxue/everclaw/models"
)

const (
	// DefaultListLimit is the page size used when a listing names none.
	DefaultListLimit = 100
	// MaxListLimit is the largest page a listing returns.
	MaxListLimit = store.MaxListLimit

	// MaxBatchFiles is the largest number of files in one batch.
	MaxBatchFiles = 20
	// MaxBatchBytes bounds the summed plaintext of one batch.
	MaxBatchBytes = 5 * 1024 * 1024

	// DefaultContentType is recorded when the caller names none.
	DefaultContentType = "application/octet-stream"
)

var errBodyTooLarge = errors.New("body exceeds limit")

// vaultService is the concrete implementation of VaultService.
//
// Every mutation reads the usage counter and the prior object size, checks
// the quota, writes the object and only then records the size change. The
// counter is changed with [store.UsageLedger.Apply], so concurrent writers
// to different paths never lose each other's deltas.
type vaultService struct {
	objects store.VaultObjects
	usage   store.UsageLedger
	cipher  crypto.Cipher

	// quota is the per-vault ceiling in ciphertext bytes.
	quota int64

	logger *logger.Logger
}

// NewVaultService constructs a VaultService with the quota from cfg.
func NewVaultService(objects store.VaultObjects, usage store.UsageLedger, cipher crypto.Cipher, cfg config.App, logger *logger.Logger) VaultService {
	return &vaultService{
		objects: objects,
		usage:   usage,
		cipher:  cipher,
		quota:   cfg.QuotaBytes(),
		logger:  logger,
	}
}

func (s *vaultService) Get(ctx context.Context, vault models.VaultIdentity, path string) (models.File, error) {
	log := logger.FromContext(ctx)

	blob, contentType, err := s.objects.Get(ctx, vault.VaultID, path)
	if errors.Is(err, store.ErrObjectNotFound) {
		return models.File{}, fileNotFound(path)
	}
	if err != nil {
		log.Err(err).Str("vault_id", vault.VaultID).Str("path", path).Msg("reading object failed")
		return models.File{}, fmt.Errorf("get %q: %w", path, err)
	}

	plaintext, err := s.cipher.Decrypt(vault.Credential, blob)
	if err != nil {
		log.Warn().Err(err).Str("vault_id", vault.VaultID).Str("path", path).Msg("object failed to decrypt")
		return models.File{}, decryptFailed("Failed to decrypt file - data may be corrupted", err)
	}

	if contentType == "" {
		contentType = DefaultContentType
	}
	return models.File{Path: path, Content: plaintext, ContentType: contentType}, nil
}

func (s *vaultService) Put(ctx context.Context, vault models.VaultIdentity, path string, body io.Reader, declaredLength int64, contentType string) (models.WriteResult, error) {
	log := logger.FromContext(ctx)

	if declaredLength > s.quota {
		return models.WriteResult{}, quotaExceeded("Upload exceeds vault quota")
	}

	plaintext, err := readLimited(body, s.quota)
	if errors.Is(err, errBodyTooLarge) {
		return models.WriteResult{}, quotaExceeded("Upload exceeds vault quota")
	}
	if err != nil {
		return models.WriteResult{}, fmt.Errorf("read upload: %w", err)
	}

	blob, err := s.cipher.Encrypt(vault.Credential, plaintext)
	if err != nil {
		log.Err(err).Str("vault_id", vault.VaultID).Msg("encryption failed")
		return models.WriteResult{}, fmt.Errorf("encrypt %q: %w", path, err)
	}

	usage, oldSize, err := s.usageAndSize(ctx, vault.VaultID, path)
	if err != nil {
		log.Err(err).Str("vault_id", vault.VaultID).Str("path", path).Msg("reading usage failed")
		return models.WriteResult{}, err
	}

	delta := int64(len(blob)) - oldSize
	if usage+delta > s.quota {
		return models.WriteResult{}, quotaExceeded("Vault storage quota exceeded")
	}

	return s.persist(ctx, vault.VaultID, path, blob, contentType, delta, int64(len(plaintext)))
}

func (s *vaultService) Append(ctx context.Context, vault models.VaultIdentity, path string, body io.Reader, contentType string) (models.WriteResult, error) {
	log := logger.FromContext(ctx)

	addition, err := readLimited(body, s.quota)
	if errors.Is(err, errBodyTooLarge) {
		return models.WriteResult{}, quotaExceeded("Result exceeds vault quota")
	}
	if err != nil {
		return models.WriteResult{}, fmt.Errorf("read append body: %w", err)
	}
	if len(addition) == 0 {
		return models.WriteResult{}, validationError("Empty content", "Provide content to append")
	}

	var (
		usage    int64
		existing []byte
		found    bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		usage, err = s.usage.Read(gctx, vault.VaultID)
		return err
	})
	g.Go(func() error {
		blob, _, err := s.objects.Get(gctx, vault.VaultID, path)
		if errors.Is(err, store.ErrObjectNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		existing, found = blob, true
		return nil
	})
	if err = g.Wait(); err != nil {
		log.Err(err).Str("vault_id", vault.VaultID).Str("path", path).Msg("reading append state failed")
		return models.WriteResult{}, fmt.Errorf("append %q: %w", path, err)
	}

	combined := addition
	oldSize := int64(0)
	if found {
		oldSize = int64(len(existing))

		prior, err := s.cipher.Decrypt(vault.Credential, existing)
		if err != nil {
			log.Warn().Err(err).Str("vault_id", vault.VaultID).Str("path", path).Msg("existing object failed to decrypt")
			return models.WriteResult{}, decryptFailed("Failed to decrypt existing file - data may be corrupted", err)
		}

		combined = make([]byte, 0, len(prior)+1+len(addition))
		combined = append(combined, prior...)
		combined = append(combined, '\n')
		combined = append(combined, addition...)
	}

	if int64(len(combined)) > s.quota {
		return models.WriteResult{}, quotaExceeded("Result exceeds vault quota")
	}

	blob, err := s.cipher.Encrypt(vault.Credential, combined)
	if err != nil {
		log.Err(err).Str("vault_id", vault.VaultID).Msg("encryption failed")
		return models.WriteResult{}, fmt.Errorf("encrypt %q: %w", path, err)
	}

	delta := int64(len(blob)) - oldSize
	if usage+delta > s.quota {
		return models.WriteResult{}, quotaExceeded("Vault storage quota exceeded")
	}

	return s.persist(ctx, vault.VaultID, path, blob, contentType, delta, int64(len(combined)))
}

func (s *vaultService) Delete(ctx context.Context, vault models.VaultIdentity, path string) (models.DeleteResult, error) {
	log := logger.FromContext(ctx)

	size, found, err := s.objects.Size(ctx, vault.VaultID, path)
	if err != nil {
		log.Err(err).Str("vault_id", vault.VaultID).Str("path", path).Msg("reading object size failed")
		return models.DeleteResult{}, fmt.Errorf("delete %q: %w", path, err)
	}
	if !found {
		return models.DeleteResult{}, fileNotFound(path)
	}

	if err = s.objects.Delete(ctx, vault.VaultID, path); err != nil {
		log.Err(err).Str("vault_id", vault.VaultID).Str("path", path).Msg("deleting object failed")
		return models.DeleteResult{}, fmt.Errorf("delete %q: %w", path, err)
	}

	if _, err = s.usage.Apply(ctx, vault.VaultID, -size); err != nil {
		log.Err(err).Str("vault_id", vault.VaultID).Int64("size", size).Msg("usage update after delete failed")
		return models.DeleteResult{}, fmt.Errorf("delete %q: %w", path, err)
	}

	return models.DeleteResult{Deleted: path}, nil
}

// BatchPut validates the whole batch before writing anything, then stores
// the files in order against a running usage total. A file that would
// overflow the quota or fails to store is reported and skipped.
func (s *vaultService) BatchPut(ctx context.Context, vault models.VaultIdentity, req models.BatchRequest) (models.BatchResult, error) {
	log := logger.FromContext(ctx)

	if err := validateBatch(req.Files); err != nil {
		return models.BatchResult{}, err
	}

	usage, sizes, err := s.usageAndSizes(ctx, vault.VaultID, req.Files)
	if err != nil {
		log.Err(err).Str("vault_id", vault.VaultID).Msg("reading batch state failed")
		return models.BatchResult{}, err
	}

	result := models.BatchResult{Results: make([]models.BatchFileResult, 0, len(req.Files))}
	running := usage
	var applied int64

	for _, f := range req.Files {
		content := []byte(*f.Content)

		blob, err := s.cipher.Encrypt(vault.Credential, content)
		if err != nil {
			log.Err(err).Str("vault_id", vault.VaultID).Str("path", f.Path).Msg("batch encryption failed")
			result.Results = append(result.Results, models.BatchFileResult{Path: f.Path, Error: app.MsgBatchEncryptionFailed})
			result.Failed++
			continue
		}

		delta := int64(len(blob)) - sizes[f.Path]
		if running+delta > s.quota {
			result.Results = append(result.Results, models.BatchFileResult{Path: f.Path, Error: app.MsgBatchWouldExceedQuota})
			result.Failed++
			continue
		}

		contentType := f.ContentType
		if contentType == "" {
			contentType = DefaultContentType
		}
		if err = s.objects.Put(ctx, vault.VaultID, f.Path, blob, contentType); err != nil {
			log.Err(err).Str("vault_id", vault.VaultID).Str("path", f.Path).Msg("batch write failed")
			result.Results = append(result.Results, models.BatchFileResult{Path: f.Path, Error: app.MsgBatchWriteFailed})
			result.Failed++
			continue
		}

		// A later entry for the same path replaces this blob, not the
		// original one.
		sizes[f.Path] = int64(len(blob))
		running += delta
		applied += delta

		size := int64(len(content))
		result.Results = append(result.Results, models.BatchFileResult{Path: f.Path, OK: true, Size: &size})
		result.Uploaded++
	}

	result.Usage = running
	if applied != 0 {
		if result.Usage, err = s.usage.Apply(ctx, vault.VaultID, applied); err != nil {
			log.Err(err).Str("vault_id", vault.VaultID).Int64("delta", applied).Msg("usage update after batch failed")
			return models.BatchResult{}, fmt.Errorf("batch usage update: %w", err)
		}
	}

	result.OK = result.Failed == 0
	result.Quota = s.quota
	return result, nil
}

func (s *vaultService) List(ctx context.Context, vault models.VaultIdentity, cursor string, limit int) (models.ListPage, error) {
	var (
		page  store.ObjectPage
		usage int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		page, err = s.objects.List(gctx, vault.VaultID, cursor, clampListLimit(limit))
		return err
	})
	g.Go(func() error {
		var err error
		usage, err = s.usage.Read(gctx, vault.VaultID)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, store.ErrInvalidCursor) {
			return models.ListPage{}, validationError("Invalid cursor", "Restart the listing without a cursor")
		}
		logger.FromContext(ctx).Err(err).Str("vault_id", vault.VaultID).Msg("listing failed")
		return models.ListPage{}, fmt.Errorf("list: %w", err)
	}

	out := models.ListPage{
		Objects:   page.Objects,
		Truncated: page.Truncated,
		Usage:     usage,
		Quota:     s.quota,
	}
	if out.Objects == nil {
		out.Objects = []models.ObjectInfo{}
	}
	if page.Truncated {
		out.Cursor = page.Cursor
	}
	return out, nil
}

// Status walks every page of the listing, so its cost grows with the
// number of objects in the vault.
func (s *vaultService) Status(ctx context.Context, vault models.VaultIdentity) (models.VaultStatus, error) {
	log := logger.FromContext(ctx)

	usage, err := s.usage.Read(ctx, vault.VaultID)
	if err != nil {
		log.Err(err).Str("vault_id", vault.VaultID).Msg("reading usage failed")
		return models.VaultStatus{}, fmt.Errorf("status: %w", err)
	}

	status := models.VaultStatus{VaultID: vault.VaultID, Usage: usage, Quota: s.quota}
	var lastSynced time.Time

	err = s.objects.Walk(ctx, vault.VaultID, func(page []models.ObjectInfo) error {
		status.FileCount += len(page)
		for _, obj := range page {
			if obj.Uploaded.After(lastSynced) {
				lastSynced = obj.Uploaded
			}
		}
		return nil
	})
	if err != nil {
		log.Err(err).Str("vault_id", vault.VaultID).Msg("walking vault failed")
		return models.VaultStatus{}, fmt.Errorf("status: %w", err)
	}

	if !lastSynced.IsZero() {
		status.LastSynced = &lastSynced
	}
	return status, nil
}

func (s *vaultService) Purge(ctx context.Context, vault models.VaultIdentity) (models.PurgeResult, error) {
	log := logger.FromContext(ctx)

	deleted, err := s.objects.Purge(ctx, vault.VaultID)
	if err != nil {
		log.Err(err).Str("vault_id", vault.VaultID).Int("deleted", deleted).Msg("purge failed")
		return models.PurgeResult{}, fmt.Errorf("purge: %w", err)
	}

	if err = s.usage.Reset(ctx, vault.VaultID); err != nil {
		log.Err(err).Str("vault_id", vault.VaultID).Msg("usage reset after purge failed")
		return models.PurgeResult{}, fmt.Errorf("purge: %w", err)
	}

	log.Info().Str("vault_id", vault.VaultID).Int("deleted", deleted).Msg("vault purged")
	return models.PurgeResult{Deleted: deleted}, nil
}

// persist writes blob and records delta. The object is written first; if the
// ledger update then fails the object stays and the error is returned.
func (s *vaultService) persist(ctx context.Context, vaultID, path string, blob []byte, contentType string, delta, plaintextSize int64) (models.WriteResult, error) {
	log := logger.FromContext(ctx)

	if contentType == "" {
		contentType = DefaultContentType
	}
	if err := s.objects.Put(ctx, vaultID, path, blob, contentType); err != nil {
		log.Err(err).Str("vault_id", vaultID).Str("path", path).Msg("writing object failed")
		return models.WriteResult{}, fmt.Errorf("write %q: %w", path, err)
	}

	usage, err := s.usage.Apply(ctx, vaultID, delta)
	if err != nil {
		log.Err(err).Str("vault_id", vaultID).Int64("delta", delta).Msg("usage update failed")
		return models.WriteResult{}, fmt.Errorf("write %q: %w", path, err)
	}

	return models.WriteResult{Path: path, Size: plaintextSize, Usage: usage, Quota: s.quota}, nil
}

// usageAndSize reads the usage counter and the stored size of path
// concurrently. A missing object has size 0.
func (s *vaultService) usageAndSize(ctx context.Context, vaultID, path string) (usage, size int64, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		usage, err = s.usage.Read(gctx, vaultID)
		return err
	})
	g.Go(func() error {
		var err error
		size, _, err = s.objects.Size(gctx, vaultID, path)
		return err
	})
	if err = g.Wait(); err != nil {
		return 0, 0, fmt.Errorf("read usage of %q: %w", path, err)
	}
	return usage, size, nil
}

// usageAndSizes reads the usage counter and the stored size of every batch
// path concurrently.
func (s *vaultService) usageAndSizes(ctx context.Context, vaultID string, files []models.BatchFile) (int64, map[string]int64, error) {
	var usage int64
	sizes := make([]int64, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		usage, err = s.usage.Read(gctx, vaultID)
		return err
	})
	for i, f := range files {
		g.Go(func() error {
			size, _, err := s.objects.Size(gctx, vaultID, f.Path)
			sizes[i] = size
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, nil, fmt.Errorf("read batch state: %w", err)
	}

	byPath := make(map[string]int64, len(files))
	for i, f := range files {
		byPath[f.Path] = sizes[i]
	}
	return usage, byPath, nil
}

func validateBatch(files []models.BatchFile) error {
	if files == nil {
		return validationError("Request must include a 'files' array", "Send { files: [{ path, content, contentType? }] }")
	}
	if len(files) == 0 {
		return validationError("Files array cannot be empty", "Include at least one file in the files array")
	}
	if len(files) > MaxBatchFiles {
		return &VaultError{
			Kind:    KindBatchLimitExceeded,
			Message: fmt.Sprintf("Batch limited to %d files", MaxBatchFiles),
			Hint:    fmt.Sprintf("Split your upload into batches of %d files or fewer", MaxBatchFiles),
		}
	}

	total := 0
	for _, f := range files {
		if f.Path == "" {
			return validationError("Each file must have a 'path' string", "Ensure all files have a valid path field")
		}
		if f.Content == nil {
			return validationError(
				fmt.Sprintf("File '%s' must have a 'content' string", f.Path),
				"Ensure all files have a valid content field",
			)
		}
		total += len(*f.Content)
	}

	if total > MaxBatchBytes {
		return BatchTooLargeError()
	}
	return nil
}

func clampListLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultListLimit
	case limit < 1:
		return 1
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}

// readLimited reads r fully, failing with errBodyTooLarge once more than
// limit bytes arrive.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if r == nil {
		return []byte{}, nil
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}
