package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/tlxue/everclaw/internal/config"
	"github.com/tlxue/everclaw/internal/logger"
	"github.com/tlxue/everclaw/internal/mock"
	"github.com/tlxue/everclaw/internal/store"
)

var limiterConfig = config.Server{ProvisionLimit: 5, ProvisionWindow: time.Minute}

func TestProvisionLimiter_Counts(t *testing.T) {
	tests := []struct {
		name    string
		stored  string
		getErr  error
		wantPut string
		limited bool
	}{
		{name: "first attempt", getErr: store.ErrKeyNotFound, wantPut: "1"},
		{name: "fourth attempt", stored: "3", wantPut: "4"},
		{name: "fifth attempt", stored: "4", wantPut: "5"},
		{name: "sixth attempt", stored: "5", limited: true},
		{name: "corrupt counter", stored: "many", wantPut: "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			kv := mock.NewMockKeyValueStore(ctrl)
			limiter := NewProvisionLimiter(kv, limiterConfig, logger.Nop())

			kv.EXPECT().Get(gomock.Any(), "ratelimit:provision:203.0.113.9").Return(tt.stored, tt.getErr)
			if !tt.limited {
				kv.EXPECT().Put(gomock.Any(), "ratelimit:provision:203.0.113.9", tt.wantPut, time.Minute).Return(nil)
			}

			err := limiter.Allow(context.Background(), "203.0.113.9")

			if tt.limited {
				var ve *VaultError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, KindRateLimited, ve.Kind)
				assert.Equal(t, "Too many requests. Try again later.", ve.Message)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestProvisionLimiter_UnknownClient(t *testing.T) {
	ctrl := gomock.NewController(t)
	kv := mock.NewMockKeyValueStore(ctrl)
	limiter := NewProvisionLimiter(kv, limiterConfig, logger.Nop())

	kv.EXPECT().Get(gomock.Any(), "ratelimit:provision:unknown").Return("", store.ErrKeyNotFound)
	kv.EXPECT().Put(gomock.Any(), "ratelimit:provision:unknown", "1", time.Minute).Return(nil)

	require.NoError(t, limiter.Allow(context.Background(), ""))
}

func TestProvisionLimiter_StorageErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	kv := mock.NewMockKeyValueStore(ctrl)
	limiter := NewProvisionLimiter(kv, limiterConfig, logger.Nop())

	kv.EXPECT().Get(gomock.Any(), gomock.Any()).Return("", errStorage)
	err := limiter.Allow(context.Background(), "a")
	require.ErrorIs(t, err, errStorage)
	assert.NotErrorIs(t, err, ErrRateLimited)

	kv.EXPECT().Get(gomock.Any(), gomock.Any()).Return("", store.ErrKeyNotFound)
	kv.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errStorage)
	assert.ErrorIs(t, limiter.Allow(context.Background(), "a"), errStorage)
}

func TestProvisionLimiter_OverBolt(t *testing.T) {
	h := newVaultHarness(t, "")
	limiter := NewProvisionLimiter(h.kv, limiterConfig, logger.Nop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, limiter.Allow(ctx, "198.51.100.1"), "attempt %d", i+1)
	}
	assert.ErrorIs(t, limiter.Allow(ctx, "198.51.100.1"), ErrRateLimited)

	// Other clients have their own window.
	assert.NoError(t, limiter.Allow(ctx, "198.51.100.2"))
}
