package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlxue/everclaw/internal/logger"
)

// ── helpers ───────────────────────────────────────────────────────────────────

// plainKV is a map-backed KeyValueStore without compare-and-swap.
type plainKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newPlainKV() *plainKV { return &plainKV{data: map[string]string{}} }

func (p *plainKV) Get(_ context.Context, key string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.data[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

func (p *plainKV) Put(_ context.Context, key, value string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data[key] = value
	return nil
}

func (p *plainKV) Delete(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.data, key)
	return nil
}

func (p *plainKV) Close() error { return nil }

// losingKV never wins a compare-and-swap.
type losingKV struct {
	*plainKV
	attempts int
}

func (l *losingKV) CompareAndSwap(context.Context, string, *string, string) (bool, error) {
	l.attempts++
	return false, nil
}

// ── tests ─────────────────────────────────────────────────────────────────────

func TestUsageLedger_ReadDefaults(t *testing.T) {
	ctx := context.Background()
	kv := newPlainKV()
	ledger := NewUsageLedger(kv, logger.Nop())

	n, err := ledger.Read(ctx, "v")
	require.NoError(t, err)
	assert.Zero(t, n)

	kv.data["usage:v"] = "garbage"
	n, err = ledger.Read(ctx, "v")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUsageLedger_ApplyClampsAtZero(t *testing.T) {
	backends := map[string]func(t *testing.T) KeyValueStore{
		"conditional": func(t *testing.T) KeyValueStore { kv, _ := newTestBoltKV(t); return kv },
		"plain":       func(*testing.T) KeyValueStore { return newPlainKV() },
	}

	for name, mk := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ledger := NewUsageLedger(mk(t), logger.Nop())

			n, err := ledger.Apply(ctx, "v", 100)
			require.NoError(t, err)
			assert.Equal(t, int64(100), n)

			n, err = ledger.Apply(ctx, "v", -30)
			require.NoError(t, err)
			assert.Equal(t, int64(70), n)

			n, err = ledger.Apply(ctx, "v", -500)
			require.NoError(t, err)
			assert.Zero(t, n)

			got, err := ledger.Read(ctx, "v")
			require.NoError(t, err)
			assert.Zero(t, got)
		})
	}
}

func TestUsageLedger_SetAndReset(t *testing.T) {
	ctx := context.Background()
	kv := newPlainKV()
	ledger := NewUsageLedger(kv, logger.Nop())

	require.NoError(t, ledger.Set(ctx, "v", 1234))
	assert.Equal(t, "1234", kv.data["usage:v"])

	require.NoError(t, ledger.Reset(ctx, "v"))
	assert.Equal(t, "0", kv.data["usage:v"])
}

func TestUsageLedger_ConcurrentApplyIsNotLost(t *testing.T) {
	ctx := context.Background()
	kv, _ := newTestBoltKV(t)
	ledger := NewUsageLedger(kv, logger.Nop())

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Apply(ctx, "v", 33)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := ledger.Read(ctx, "v")
	require.NoError(t, err)
	assert.Equal(t, int64(workers*33), n)
}

func TestUsageLedger_FallsBackAfterLosingSwaps(t *testing.T) {
	ctx := context.Background()
	kv := &losingKV{plainKV: newPlainKV()}
	kv.data["usage:v"] = "10"
	ledger := NewUsageLedger(kv, logger.Nop())

	n, err := ledger.Apply(ctx, "v", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(15), n)
	assert.Equal(t, usageSwapAttempts, kv.attempts)
	assert.Equal(t, "15", kv.data["usage:v"])
}

func TestUsageLedger_ApplyHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	kv, _ := newTestBoltKV(t)

	_, err := NewUsageLedger(kv, logger.Nop()).Apply(ctx, "v", 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUsageLedger_ApplySurfacesConnectionFailure(t *testing.T) {
	kv, mock, _ := newTestSQLKV(t)
	ledger := NewUsageLedger(kv, logger.Nop())

	mock.ExpectQuery("SELECT entry_value, expires_at FROM kv_entries WHERE entry_key = ").
		WithArgs("usage:vault-1").
		WillReturnRows(sqlmock.NewRows([]string{"entry_value", "expires_at"}).AddRow("10", nil))
	mock.ExpectExec("UPDATE kv_entries").
		WillReturnError(pgError(pgerrcode.ConnectionFailure))

	_, err := ledger.Apply(context.Background(), "vault-1", 5)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExecutingStatement)
	assert.NoError(t, mock.ExpectationsWereMet(), "no retry and no unconditional write after the failure")
}
