package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

// ── helpers ───────────────────────────────────────────────────────────────────

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func openTestBolt(t *testing.T) *bbolt.DB {
	t.Helper()
	db, err := OpenBolt(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	db.NoSync = true
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func ptr(s string) *string { return &s }
