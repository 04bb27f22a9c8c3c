package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tlxue/everclaw/internal/config"
	"github.com/tlxue/everclaw/internal/logger"
	"github.com/tlxue/everclaw/internal/mock"
	"github.com/tlxue/everclaw/internal/store"
	"go.uber.org/mock/gomock"
)

// fakeEvictor records EvictIdle calls.
type fakeEvictor struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (f *fakeEvictor) EvictIdle(ttl time.Duration) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ttl)
	return 1
}

func (f *fakeEvictor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// countingWorker blocks until ctx is done and counts its runs.
type countingWorker struct {
	runs atomic.Int32
}

func (w *countingWorker) Run(ctx context.Context) {
	w.runs.Add(1)
	<-ctx.Done()
}

// ── Workers ──────────────────────────────────────────────────────────────────

func TestWorkers_RunStartsAllAndStopsOnCancel(t *testing.T) {
	w1, w2 := &countingWorker{}, &countingWorker{}
	ws := &Workers{workers: []Worker{w1, w2}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ws.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return w1.runs.Load() == 1 && w2.runs.Load() == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWorkers_RunEmpty(t *testing.T) {
	ws := &Workers{}

	// returns immediately without workers
	ws.Run(context.Background())
}

func TestNewWorkers_Selection(t *testing.T) {
	boltDB, err := store.OpenBolt(t.TempDir() + "/kv.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = boltDB.Close() })

	ctrl := gomock.NewController(t)
	plainKV := mock.NewMockKeyValueStore(ctrl)
	cfg := config.Workers{LimiterCleanupInterval: time.Minute, LimiterIdleTTL: time.Minute, ExpirySweepInterval: time.Minute}

	tests := []struct {
		name    string
		limiter IdleEvictor
		kv      store.KeyValueStore
		want    int
	}{
		{"nothing to maintain", nil, plainKV, 0},
		{"limiter only", &fakeEvictor{}, plainKV, 1},
		{"expiring store only", nil, store.NewBoltKV(boltDB), 1},
		{"both", &fakeEvictor{}, store.NewBoltKV(boltDB), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := NewWorkers(tt.limiter, tt.kv, cfg, logger.Nop())
			assert.Len(t, ws.workers, tt.want)
		})
	}
}

// ── LimiterJanitor ───────────────────────────────────────────────────────────

func TestLimiterJanitor_EvictsPeriodically(t *testing.T) {
	evictor := &fakeEvictor{}
	j := NewLimiterJanitor(evictor, 5*time.Millisecond, 42*time.Second, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go j.Run(ctx)

	require.Eventually(t, func() bool { return evictor.count() >= 2 }, time.Second, 5*time.Millisecond)

	evictor.mu.Lock()
	defer evictor.mu.Unlock()
	assert.Equal(t, 42*time.Second, evictor.calls[0])
}

func TestLimiterJanitor_ZeroIntervalDisables(t *testing.T) {
	evictor := &fakeEvictor{}
	j := NewLimiterJanitor(evictor, 0, time.Second, logger.Nop())

	// returns immediately instead of ticking
	j.Run(context.Background())

	assert.Zero(t, evictor.count())
}

// ── ExpirySweeper ────────────────────────────────────────────────────────────

func TestExpirySweeper_Sweeps(t *testing.T) {
	ctrl := gomock.NewController(t)
	kv := mock.NewMockExpiringStore(ctrl)

	var calls atomic.Int32
	kv.EXPECT().PurgeExpired(gomock.Any()).DoAndReturn(func(context.Context) (int64, error) {
		calls.Add(1)
		return 3, nil
	}).MinTimes(1)

	s := NewExpirySweeper(kv, 5*time.Millisecond, logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestExpirySweeper_ErrorIsNotFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	kv := mock.NewMockExpiringStore(ctrl)
	gomock.InOrder(
		kv.EXPECT().PurgeExpired(gomock.Any()).Return(int64(0), assert.AnError),
		kv.EXPECT().PurgeExpired(gomock.Any()).Return(int64(2), nil),
	)

	s := NewExpirySweeper(kv, time.Hour, logger.Nop())
	s.sweep(context.Background())
	s.sweep(context.Background())
}

func TestExpirySweeper_BoltEndToEnd(t *testing.T) {
	boltDB, err := store.OpenBolt(t.TempDir() + "/kv.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = boltDB.Close() })

	kv := store.NewBoltKV(boltDB)
	ctx := context.Background()
	require.NoError(t, kv.Put(ctx, "ratelimit:provision:1.2.3.4", "1", time.Millisecond))
	require.NoError(t, kv.Put(ctx, "usage:vault-a", "10", 0))

	time.Sleep(5 * time.Millisecond)
	NewExpirySweeper(kv, time.Hour, logger.Nop()).sweep(ctx)

	n, err := kv.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "already swept")

	v, err := kv.Get(ctx, "usage:vault-a")
	require.NoError(t, err)
	assert.Equal(t, "10", v)
}
