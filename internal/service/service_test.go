package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tlxue/everclaw/internal/config"
	"github.com/tlxue/everclaw/internal/crypto"
	"github.com/tlxue/everclaw/internal/logger"
	"github.com/tlxue/everclaw/internal/store"
	"github.com/tlxue/everclaw/models"
)

// ── helpers ───────────────────────────────────────────────────────────────────

const (
	testCredential  = "ec-0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	otherCredential = "ec-fedcba9876543210fedcba9876543210fedcba9876543210fedcba9876543210"
	testVaultID     = "vault-abcd-efgh-ijkl"

	mib = 1024 * 1024
)

var testVault = models.VaultIdentity{VaultID: testVaultID, Name: "default", Credential: testCredential}

// vaultHarness is a vault service over a real bbolt database.
type vaultHarness struct {
	svc     VaultService
	kv      *store.BoltKV
	objects store.VaultObjects
	usage   store.UsageLedger
}

func newVaultHarness(t *testing.T, quotaMB string) *vaultHarness {
	t.Helper()

	db, err := store.OpenBolt(filepath.Join(t.TempDir(), "vault.db"))
	require.NoError(t, err)
	db.NoSync = true
	t.Cleanup(func() { _ = db.Close() })

	log := logger.Nop()
	kv := store.NewBoltKV(db)
	objects := store.NewVaultObjects(store.NewBoltBlobs(db), log)
	usage := store.NewUsageLedger(kv, log)

	return &vaultHarness{
		svc:     NewVaultService(objects, usage, crypto.NewCipher(), config.App{VaultQuotaMB: quotaMB}, log),
		kv:      kv,
		objects: objects,
		usage:   usage,
	}
}

func (h *vaultHarness) currentUsage(t *testing.T) int64 {
	t.Helper()
	u, err := h.usage.Read(context.Background(), testVaultID)
	require.NoError(t, err)
	return u
}

// storedTotal sums the ciphertext sizes of every object in the test vault.
func (h *vaultHarness) storedTotal(t *testing.T) (total int64, count int) {
	t.Helper()
	err := h.objects.Walk(context.Background(), testVaultID, func(page []models.ObjectInfo) error {
		for _, obj := range page {
			total += obj.Size
		}
		count += len(page)
		return nil
	})
	require.NoError(t, err)
	return total, count
}

func strPtr(s string) *string { return &s }

func sizePtr(n int64) *int64 { return &n }
