package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/tlxue/everclaw/internal/mock"
	"github.com/tlxue/everclaw/models"
)

// ── VaultValidationService ────────────────────────────────────────────────────

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		valid bool
	}{
		{"simple", "notes.txt", true},
		{"nested", "a/b/c.md", true},
		{"unicode", "日記/today.md", true},
		{"empty", "", false},
		{"too long", strings.Repeat("p", MaxPathLength+1), false},
		{"max length", strings.Repeat("p", MaxPathLength), true},
		{"invalid utf8", "bad\xff", false},
		{"nul byte", "a\x00b", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestVaultValidationService_RejectsBeforeDelegating(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mock.NewMockVaultService(ctrl)
	svc := NewVaultValidationService().Wrap(inner)
	ctx := context.Background()

	_, err := svc.Get(ctx, testVault, "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Put(ctx, testVault, "", strings.NewReader("x"), 1, "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Append(ctx, testVault, "a\x00", strings.NewReader("x"), "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Delete(ctx, testVault, "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.BatchPut(ctx, testVault, models.BatchRequest{Files: []models.BatchFile{{Path: "bad\xff", Content: strPtr("")}}})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestVaultValidationService_Delegates(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mock.NewMockVaultService(ctrl)
	svc := NewVaultValidationService().Wrap(inner)
	ctx := context.Background()

	inner.EXPECT().Get(ctx, testVault, "ok.txt").Return(models.File{Path: "ok.txt"}, nil)
	inner.EXPECT().List(ctx, testVault, "c", 5).Return(models.ListPage{Truncated: true}, nil)
	inner.EXPECT().Status(ctx, testVault).Return(models.VaultStatus{FileCount: 2}, nil)
	inner.EXPECT().Purge(ctx, testVault).Return(models.PurgeResult{Deleted: 2}, nil)
	// Missing paths are left for the batch-specific message.
	req := models.BatchRequest{Files: []models.BatchFile{{Content: strPtr("x")}}}
	inner.EXPECT().BatchPut(ctx, testVault, req).Return(models.BatchResult{}, ErrValidation)

	file, err := svc.Get(ctx, testVault, "ok.txt")
	require.NoError(t, err)
	assert.Equal(t, "ok.txt", file.Path)

	page, err := svc.List(ctx, testVault, "c", 5)
	require.NoError(t, err)
	assert.True(t, page.Truncated)

	status, err := svc.Status(ctx, testVault)
	require.NoError(t, err)
	assert.Equal(t, 2, status.FileCount)

	purged, err := svc.Purge(ctx, testVault)
	require.NoError(t, err)
	assert.Equal(t, 2, purged.Deleted)

	_, err = svc.BatchPut(ctx, testVault, req)
	assert.ErrorIs(t, err, ErrValidation)
}

// ── VaultMetricsService ───────────────────────────────────────────────────────

func TestVaultMetricsService_PassesThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mock.NewMockVaultService(ctrl)
	svc := NewVaultMetricsService().Wrap(inner)
	ctx := context.Background()

	body := strings.NewReader("abc")
	want := models.WriteResult{Path: "p", Size: 3, Usage: 31, Quota: 10}
	inner.EXPECT().Put(ctx, testVault, "p", body, int64(3), "text/plain").Return(want, nil)
	inner.EXPECT().Delete(ctx, testVault, "p").Return(models.DeleteResult{}, fileNotFound("p"))

	got, err := svc.Put(ctx, testVault, "p", body, 3, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = svc.Delete(ctx, testVault, "p")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, "ok", outcomeOf(nil))
	assert.Equal(t, "QUOTA_EXCEEDED", outcomeOf(quotaExceeded("x")))
	assert.Equal(t, "internal", outcomeOf(errors.New("boom")))
}
