// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlxue/everclaw/internal/crypto"
	"github.com/tlxue/everclaw/models"
)

// ── Put / Get ─────────────────────────────────────────────────────────────────

func TestVaultService_PutGet_Hello(t *testing.T) {
	h := newVaultHarness(t, "")
	ctx := context.Background()

	res, err := h.svc.Put(ctx, testVault, "notes.txt", strings.NewReader("hello"), 5, "text/plain")
	require.NoError(t, err)

	assert.Equal(t, models.WriteResult{Path: "notes.txt", Size: 5, Usage: 33, Quota: 50 * mib}, res)
	assert.EqualValues(t, 33, h.currentUsage(t))

	file, err := h.svc.Get(ctx, testVault, "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), file.Content)
	assert.Equal(t, "text/plain", file.ContentType)
}

func TestVaultService_Put_DefaultContentType(t *testing.T) {
	h := newVaultHarness(t, "")
	ctx := context.Background()

	_, err := h.svc.Put(ctx, testVault, "blob.bin", bytes.NewReader([]byte{1, 2, 3}), -1, "")
	require.NoError(t, err)

	file, err := h.svc.Get(ctx, testVault, "blob.bin")
	require.NoError(t, err)
	assert.Equal(t, DefaultContentType, file.ContentType)
}

func TestVaultService_Put_OverwriteAdjustsUsage(t *testing.T) {
	h := newVaultHarness(t, "")
	ctx := context.Background()

	_, err := h.svc.Put(ctx, testVault, "a.txt", strings.NewReader("hello"), -1, "")
	require.NoError(t, err)
	res, err := h.svc.Put(ctx, testVault, "a.txt", strings.NewReader("hi"), -1, "")
	require.NoError(t, err)

	assert.EqualValues(t, 2+crypto.Overhead, res.Usage)
	assert.EqualValues(t, 2+crypto.Overhead, h.currentUsage(t))
}

// failingReader fails the test when read.
type failingReader struct{ t *testing.T }

func (r failingReader) Read([]byte) (int, error) {
	r.t.Error("body must not be read")
	return 0, errors.New("unexpected read")
}

func TestVaultService_Put_DeclaredLengthOverQuota_FailsFast(t *testing.T) {
	h := newVaultHarness(t, "1")

	_, err := h.svc.Put(context.Background(), testVault, "big", failingReader{t}, mib+1, "")

	require.ErrorIs(t, err, ErrQuotaExceeded)
	var ve *VaultError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Upload exceeds vault quota", ve.Message)
	assert.Equal(t, hintFreeSpace, ve.Hint)
}

func TestVaultService_Put_UndeclaredBodyOverQuota(t *testing.T) {
	h := newVaultHarness(t, "1")

	_, err := h.svc.Put(context.Background(), testVault, "big", bytes.NewReader(make([]byte, mib+1)), -1, "")

	require.ErrorIs(t, err, ErrQuotaExceeded)
	assert.EqualValues(t, 0, h.currentUsage(t))
}

func TestVaultService_Put_OverQuotaLeavesStateUnchanged(t *testing.T) {
	h := newVaultHarness(t, "1")
	ctx := context.Background()

	// Ciphertext of exactly the quota is still accepted.
	first := bytes.Repeat([]byte("x"), mib-crypto.Overhead)
	res, err := h.svc.Put(ctx, testVault, "full.bin", bytes.NewReader(first), int64(len(first)), "")
	require.NoError(t, err)
	require.EqualValues(t, mib, res.Usage)

	_, err = h.svc.Put(ctx, testVault, "one-more.txt", strings.NewReader("x"), 1, "")
	require.ErrorIs(t, err, ErrQuotaExceeded)

	assert.EqualValues(t, mib, h.currentUsage(t))
	_, err = h.svc.Get(ctx, testVault, "one-more.txt")
	assert.ErrorIs(t, err, ErrFileNotFound)

	page, err := h.svc.List(ctx, testVault, "", 0)
	require.NoError(t, err)
	require.Len(t, page.Objects, 1)
	assert.Equal(t, "full.bin", page.Objects[0].Path)
}

func TestVaultService_Get_NotFound(t *testing.T) {
	h := newVaultHarness(t, "")

	_, err := h.svc.Get(context.Background(), testVault, "missing.txt")

	var ve *VaultError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, KindFileNotFound, ve.Kind)
	assert.Equal(t, "Not found: missing.txt", ve.Message)
	assert.Equal(t, "File may not have been backed up yet", ve.Hint)
}

func TestVaultService_Get_WrongCredential(t *testing.T) {
	h := newVaultHarness(t, "")
	ctx := context.Background()

	_, err := h.svc.Put(ctx, testVault, "secret.txt", strings.NewReader("secret"), -1, "")
	require.NoError(t, err)

	intruder := testVault
	intruder.Credential = otherCredential
	_, err = h.svc.Get(ctx, intruder, "secret.txt")

	require.ErrorIs(t, err, ErrDecryptFailed)
	assert.ErrorIs(t, err, crypto.ErrDecryptFailed)
}

func TestVaultService_Get_CorruptBlob(t *testing.T) {
	h := newVaultHarness(t, "")
	ctx := context.Background()

	require.NoError(t, h.objects.Put(ctx, testVaultID, "corrupt", []byte("short"), ""))

	_, err := h.svc.Get(ctx, testVault, "corrupt")
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

// ── Append ────────────────────────────────────────────────────────────────────

func TestVaultService_Append_CreatesThenJoinsWithNewline(t *testing.T) {
	h := newVaultHarness(t, "")
	ctx := context.Background()

	res, err := h.svc.Append(ctx, testVault, "log.txt", strings.NewReader("a"), "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Size)
	assert.EqualValues(t, 1+crypto.Overhead, res.Usage)

	res, err = h.svc.Append(ctx, testVault, "log.txt", strings.NewReader("b"), "")
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Size)
	assert.EqualValues(t, 3+crypto.Overhead, res.Usage)

	file, err := h.svc.Get(ctx, testVault, "log.txt")
	require.NoError(t, err)
	assert.Equal(t, "a\nb", string(file.Content))
	assert.EqualValues(t, 3+crypto.Overhead, h.currentUsage(t))
}

func TestVaultService_Append_EmptyBody(t *testing.T) {
	h := newVaultHarness(t, "")

	_, err := h.svc.Append(context.Background(), testVault, "log.txt", strings.NewReader(""), "")

	var ve *VaultError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, KindValidation, ve.Kind)
	assert.Equal(t, "Provide content to append", ve.Hint)
}

func TestVaultService_Append_CorruptExistingIsNotTreatedAsEmpty(t *testing.T) {
	h := newVaultHarness(t, "")
	ctx := context.Background()

	garbage := bytes.Repeat([]byte{0x42}, 64)
	require.NoError(t, h.objects.Put(ctx, testVaultID, "log.txt", garbage, ""))

	_, err := h.svc.Append(ctx, testVault, "log.txt", strings.NewReader("more"), "")
	require.ErrorIs(t, err, ErrDecryptFailed)

	stored, _, err := h.objects.Get(ctx, testVaultID, "log.txt")
	require.NoError(t, err)
	assert.Equal(t, garbage, stored)
	assert.EqualValues(t, 0, h.currentUsage(t))
}

func TestVaultService_Append_ResultOverQuota(t *testing.T) {
	h := newVaultHarness(t, "1")
	ctx := context.Background()

	half := bytes.Repeat([]byte("y"), mib/2)
	_, err := h.svc.Put(ctx, testVault, "log.txt", bytes.NewReader(half), -1, "")
	require.NoError(t, err)
	before := h.currentUsage(t)

	_, err = h.svc.Append(ctx, testVault, "log.txt", bytes.NewReader(half), "")

	var ve *VaultError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, KindQuotaExceeded, ve.Kind)
	assert.Equal(t, "Result exceeds vault quota", ve.Message)
	assert.Equal(t, before, h.currentUsage(t))

	file, err := h.svc.Get(ctx, testVault, "log.txt")
	require.NoError(t, err)
	assert.Len(t, file.Content, mib/2)
}

func TestVaultService_Append_StoredSizeOverQuota(t *testing.T) {
	h := newVaultHarness(t, "1")
	ctx := context.Background()

	other := bytes.Repeat([]byte("z"), mib-crypto.Overhead-10)
	_, err := h.svc.Put(ctx, testVault, "other.bin", bytes.NewReader(other), -1, "")
	require.NoError(t, err)

	_, err = h.svc.Append(ctx, testVault, "log.txt", strings.NewReader("too much"), "")

	var ve *VaultError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Vault storage quota exceeded", ve.Message)
	_, err = h.svc.Get(ctx, testVault, "log.txt")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

// ── Delete ────────────────────────────────────────────────────────────────────

func TestVaultService_Delete_TwiceNeverDoubleDecrements(t *testing.T) {
	h := newVaultHarness(t, "")
	ctx := context.Background()

	_, err := h.svc.Put(ctx, testVault, "keep.txt", strings.NewReader("keep"), -1, "")
	require.NoError(t, err)
	_, err = h.svc.Put(ctx, testVault, "drop.txt", strings.NewReader("drop me"), -1, "")
	require.NoError(t, err)

	res, err := h.svc.Delete(ctx, testVault, "drop.txt")
	require.NoError(t, err)
	assert.Equal(t, "drop.txt", res.Deleted)
	assert.EqualValues(t, 4+crypto.Overhead, h.currentUsage(t))

	_, err = h.svc.Delete(ctx, testVault, "drop.txt")
	require.ErrorIs(t, err, ErrFileNotFound)
	assert.EqualValues(t, 4+crypto.Overhead, h.currentUsage(t))
}

func TestVaultService_Delete_FloorsAtZero(t *testing.T) {
	h := newVaultHarness(t, "")
	ctx := context.Background()

	// An object the ledger never saw.
	require.NoError(t, h.objects.Put(ctx, testVaultID, "orphan", make([]byte, 100), ""))

	_, err := h.svc.Delete(ctx, testVault, "orphan")
	require.NoError(t, err)
	assert.EqualValues(t, 0, h.currentUsage(t))
}

// ── BatchPut ──────────────────────────────────────────────────────────────────

func batchOf(n int, content string) []models.BatchFile {
	files := make([]models.BatchFile, n)
	for i := range files {
		files[i] = models.BatchFile{Path: fmt.Sprintf("f%02d.txt", i), Content: strPtr(content)}
	}
	return files
}

func TestVaultService_BatchPut_Success(t *testing.T) {
	h := newVaultHarness(t, "")
	ctx := context.Background()

	files := []models.BatchFile{
		{Path: "a.md", Content: strPtr("alpha"), ContentType: "text/markdown"},
		{Path: "b.txt", Content: strPtr("")},
	}
	res, err := h.svc.BatchPut(ctx, testVault, models.BatchRequest{Files: files})
	require.NoError(t, err)

	assert.True(t, res.OK)
	assert.Equal(t, 2, res.Uploaded)
	assert.Equal(t, 0, res.Failed)
	assert.EqualValues(t, 5+0+2*crypto.Overhead, res.Usage)
	assert.EqualValues(t, 50*mib, res.Quota)
	assert.Equal(t, []models.BatchFileResult{
		{Path: "a.md", OK: true, Size: sizePtr(5)},
		{Path: "b.txt", OK: true, Size: sizePtr(0)},
	}, res.Results)
	assert.Equal(t, res.Usage, h.currentUsage(t))

	file, err := h.svc.Get(ctx, testVault, "a.md")
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(file.Content))
	assert.Equal(t, "text/markdown", file.ContentType)
}

func TestVaultService_BatchPut_EmptyFileReportsZeroSize(t *testing.T) {
	h := newVaultHarness(t, "")

	res, err := h.svc.BatchPut(context.Background(), testVault, models.BatchRequest{Files: []models.BatchFile{
		{Path: "empty.txt", Content: strPtr("")},
	}})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)

	raw, err := json.Marshal(res.Results[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"path":"empty.txt","ok":true,"size":0}`, string(raw))
}

func TestVaultService_BatchPut_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		files    []models.BatchFile
		kind     ErrorKind
		message  string
		tooLarge bool
	}{
		{
			name:    "missing files",
			files:   nil,
			kind:    KindValidation,
			message: "Request must include a 'files' array",
		},
		{
			name:    "empty files",
			files:   []models.BatchFile{},
			kind:    KindValidation,
			message: "Files array cannot be empty",
		},
		{
			name:    "21 files",
			files:   batchOf(21, "x"),
			kind:    KindBatchLimitExceeded,
			message: "Batch limited to 20 files",
		},
		{
			name:    "missing path",
			files:   []models.BatchFile{{Path: "ok", Content: strPtr("1")}, {Content: strPtr("2")}},
			kind:    KindValidation,
			message: "Each file must have a 'path' string",
		},
		{
			name:    "missing content",
			files:   []models.BatchFile{{Path: "ok", Content: strPtr("1")}, {Path: "nothing"}},
			kind:    KindValidation,
			message: "File 'nothing' must have a 'content' string",
		},
		{
			name: "aggregate over 5MB",
			files: []models.BatchFile{
				{Path: "a", Content: strPtr(strings.Repeat("a", 3*mib))},
				{Path: "b", Content: strPtr(strings.Repeat("b", 2*mib+1))},
			},
			kind:     KindBatchLimitExceeded,
			message:  "Batch total exceeds 5MB limit",
			tooLarge: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newVaultHarness(t, "")

			_, err := h.svc.BatchPut(context.Background(), testVault, models.BatchRequest{Files: tt.files})

			var ve *VaultError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.kind, ve.Kind)
			assert.Equal(t, tt.message, ve.Message)
			assert.NotEmpty(t, ve.Hint)
			assert.Equal(t, tt.tooLarge, errors.Is(err, ErrBatchPayloadTooLarge))

			_, count := h.storedTotal(t)
			assert.Zero(t, count, "nothing may be written")
			assert.EqualValues(t, 0, h.currentUsage(t))
		})
	}
}

func TestVaultService_BatchPut_ExactlyFiveMB(t *testing.T) {
	h := newVaultHarness(t, "")

	files := []models.BatchFile{{Path: "five", Content: strPtr(strings.Repeat("5", MaxBatchBytes))}}
	res, err := h.svc.BatchPut(context.Background(), testVault, models.BatchRequest{Files: files})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Uploaded)
}

func TestVaultService_BatchPut_SkipsFilesOverQuota(t *testing.T) {
	h := newVaultHarness(t, "1")
	ctx := context.Background()

	big := strings.Repeat("b", 600*1024)
	files := []models.BatchFile{
		{Path: "big1", Content: strPtr(big)},
		{Path: "big2", Content: strPtr(big)},
		{Path: "small", Content: strPtr("s")},
	}
	res, err := h.svc.BatchPut(ctx, testVault, models.BatchRequest{Files: files})
	require.NoError(t, err)

	assert.False(t, res.OK)
	assert.Equal(t, 2, res.Uploaded)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, models.BatchFileResult{Path: "big2", Error: "Would exceed quota"}, res.Results[1])
	assert.True(t, res.Results[2].OK)

	want := int64(len(big) + 1 + 2*crypto.Overhead)
	assert.Equal(t, want, res.Usage)
	assert.Equal(t, want, h.currentUsage(t))

	_, err = h.svc.Get(ctx, testVault, "big2")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestVaultService_BatchPut_DuplicatePathCountsLastWrite(t *testing.T) {
	h := newVaultHarness(t, "")
	ctx := context.Background()

	files := []models.BatchFile{
		{Path: "same", Content: strPtr("first version")},
		{Path: "same", Content: strPtr("v2")},
	}
	res, err := h.svc.BatchPut(ctx, testVault, models.BatchRequest{Files: files})
	require.NoError(t, err)

	assert.EqualValues(t, 2+crypto.Overhead, res.Usage)
	total, count := h.storedTotal(t)
	assert.Equal(t, 1, count)
	assert.Equal(t, total, h.currentUsage(t))
}

func TestVaultService_BatchPut_ReplacesExistingObjects(t *testing.T) {
	h := newVaultHarness(t, "")
	ctx := context.Background()

	_, err := h.svc.Put(ctx, testVault, "a", strings.NewReader("a much longer original body"), -1, "")
	require.NoError(t, err)

	res, err := h.svc.BatchPut(ctx, testVault, models.BatchRequest{Files: []models.BatchFile{{Path: "a", Content: strPtr("short")}}})
	require.NoError(t, err)

	assert.EqualValues(t, 5+crypto.Overhead, res.Usage)
	assert.EqualValues(t, 5+crypto.Overhead, h.currentUsage(t))
}

// ── List ──────────────────────────────────────────────────────────────────────

func putFiles(t *testing.T, svc VaultService, paths ...string) {
	t.Helper()
	for _, p := range paths {
		_, err := svc.Put(context.Background(), testVault, p, strings.NewReader("content of "+p), -1, "")
		require.NoError(t, err)
	}
}

func TestVaultService_List_Pagination(t *testing.T) {
	h := newVaultHarness(t, "")
	ctx := context.Background()
	putFiles(t, h.svc, "a.txt", "b/c.txt", "d.txt")

	first, err := h.svc.List(ctx, testVault, "", 2)
	require.NoError(t, err)
	require.Len(t, first.Objects, 2)
	assert.True(t, first.Truncated)
	assert.NotEmpty(t, first.Cursor)
	assert.Equal(t, "a.txt", first.Objects[0].Path)
	assert.Equal(t, "b/c.txt", first.Objects[1].Path)
	assert.Equal(t, h.currentUsage(t), first.Usage)
	assert.EqualValues(t, 50*mib, first.Quota)

	second, err := h.svc.List(ctx, testVault, first.Cursor, 2)
	require.NoError(t, err)
	require.Len(t, second.Objects, 1)
	assert.Equal(t, "d.txt", second.Objects[0].Path)
	assert.False(t, second.Truncated)
	assert.Empty(t, second.Cursor)
}

func TestVaultService_List_LimitClamping(t *testing.T) {
	h := newVaultHarness(t, "")
	ctx := context.Background()
	putFiles(t, h.svc, "1", "2", "3")

	tests := []struct {
		limit int
		want  int
	}{
		{limit: 0, want: 3},
		{limit: -7, want: 1},
		{limit: 1, want: 1},
		{limit: 5000, want: 3},
	}
	for _, tt := range tests {
		page, err := h.svc.List(ctx, testVault, "", tt.limit)
		require.NoError(t, err)
		assert.Len(t, page.Objects, tt.want, "limit %d", tt.limit)
	}

	assert.Equal(t, DefaultListLimit, clampListLimit(0))
	assert.Equal(t, MaxListLimit, clampListLimit(1001))
}

func TestVaultService_List_EmptyVault(t *testing.T) {
	h := newVaultHarness(t, "")

	page, err := h.svc.List(context.Background(), testVault, "", 0)

	require.NoError(t, err)
	assert.NotNil(t, page.Objects)
	assert.Empty(t, page.Objects)
	assert.False(t, page.Truncated)
}

func TestVaultService_List_InvalidCursor(t *testing.T) {
	h := newVaultHarness(t, "")

	_, err := h.svc.List(context.Background(), testVault, "!!not-a-cursor!!", 10)

	assert.ErrorIs(t, err, ErrValidation)
}

// ── Status / Purge ────────────────────────────────────────────────────────────

func TestVaultService_Status(t *testing.T) {
	h := newVaultHarness(t, "")
	ctx := context.Background()

	empty, err := h.svc.Status(ctx, testVault)
	require.NoError(t, err)
	assert.Equal(t, models.VaultStatus{VaultID: testVaultID, Quota: 50 * mib}, empty)

	putFiles(t, h.svc, "x", "y", "z")

	status, err := h.svc.Status(ctx, testVault)
	require.NoError(t, err)
	assert.Equal(t, 3, status.FileCount)
	assert.Equal(t, h.currentUsage(t), status.Usage)
	require.NotNil(t, status.LastSynced)
	assert.False(t, status.LastSynced.IsZero())
}

func TestVaultService_Purge(t *testing.T) {
	h := newVaultHarness(t, "")
	ctx := context.Background()
	putFiles(t, h.svc, "1", "2", "3", "4", "5")

	res, err := h.svc.Purge(ctx, testVault)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Deleted)
	assert.EqualValues(t, 0, h.currentUsage(t))

	page, err := h.svc.List(ctx, testVault, "", 0)
	require.NoError(t, err)
	assert.Empty(t, page.Objects)

	again, err := h.svc.Purge(ctx, testVault)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Deleted)
}

func TestVaultService_VaultsAreIsolated(t *testing.T) {
	h := newVaultHarness(t, "")
	ctx := context.Background()

	other := models.VaultIdentity{VaultID: "vault-zzzz-zzzz-zzzz", Name: "other", Credential: otherCredential}
	_, err := h.svc.Put(ctx, other, "shared-name.txt", strings.NewReader("theirs"), -1, "")
	require.NoError(t, err)
	putFiles(t, h.svc, "shared-name.txt")

	res, err := h.svc.Purge(ctx, testVault)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)

	file, err := h.svc.Get(ctx, other, "shared-name.txt")
	require.NoError(t, err)
	assert.Equal(t, "theirs", string(file.Content))
}

// ── Quota invariant ───────────────────────────────────────────────────────────

// TestVaultService_QuotaInvariant runs a random sequence of mutations and
// checks after each accepted one that usage stays within the quota and
// matches the bytes actually stored.
func TestVaultService_QuotaInvariant(t *testing.T) {
	h := newVaultHarness(t, "1")
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(7, 42))
	paths := []string{"a", "b", "c", "d", "e"}

	for step := 0; step < 200; step++ {
		path := paths[rng.IntN(len(paths))]
		body := bytes.Repeat([]byte{'q'}, rng.IntN(300*1024)+1)

		var err error
		switch rng.IntN(4) {
		case 0:
			_, err = h.svc.Put(ctx, testVault, path, bytes.NewReader(body), int64(len(body)), "")
		case 1:
			_, err = h.svc.Append(ctx, testVault, path, bytes.NewReader(body[:min(len(body), 1024)]), "")
		case 2:
			_, err = h.svc.Delete(ctx, testVault, path)
		case 3:
			_, err = h.svc.BatchPut(ctx, testVault, models.BatchRequest{Files: []models.BatchFile{
				{Path: path, Content: strPtr(string(body))},
				{Path: paths[rng.IntN(len(paths))], Content: strPtr("tail")},
			}})
		}
		if err != nil {
			require.Truef(t, errors.Is(err, ErrQuotaExceeded) || errors.Is(err, ErrFileNotFound),
				"step %d: unexpected error %v", step, err)
		}

		usage := h.currentUsage(t)
		total, _ := h.storedTotal(t)
		require.LessOrEqualf(t, usage, int64(mib), "step %d", step)
		require.Equalf(t, total, usage, "step %d", step)
	}
}
