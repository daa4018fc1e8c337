package services_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/opsdesk/opsdesk/internal/models"
	"github.com/opsdesk/opsdesk/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func testIPBlockConfig() services.IPBlockConfig {
	return services.IPBlockConfig{
		Threshold:     5,
		BlockDuration: 15 * time.Minute,
		AttemptWindow: 15 * time.Minute,
	}
}

func TestIPBlockService_BlocksAtThreshold(t *testing.T) {
	var upserted *models.BlockedIP
	repo := &services.MockBlockedIPRepository{
		UpsertFunc: func(ctx context.Context, block *models.BlockedIP) (*models.BlockedIP, error) {
			upserted = block
			return block, nil
		},
	}

	service := services.NewIPBlockService(repo, testIPBlockConfig(), testLogger())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		blocked, err := service.RecordFailedAttempt(ctx, "10.0.0.5")
		require.NoError(t, err)
		assert.False(t, blocked, "attempt %d should not block", i+1)
	}

	blocked, err := service.RecordFailedAttempt(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.True(t, blocked, "5th failure must block")

	require.NotNil(t, upserted)
	assert.Equal(t, "10.0.0.5", upserted.IPAddress)
	assert.Equal(t, 5, upserted.FailedCount)
	assert.True(t, upserted.ExpiresAt.After(upserted.BlockedAt))
}

func TestIPBlockService_RemainingAttempts(t *testing.T) {
	service := services.NewIPBlockService(&services.MockBlockedIPRepository{}, testIPBlockConfig(), testLogger())
	ctx := context.Background()

	assert.Equal(t, 5, service.RemainingAttempts("10.0.0.5"))

	_, err := service.RecordFailedAttempt(ctx, "10.0.0.5")
	require.NoError(t, err)
	_, err = service.RecordFailedAttempt(ctx, "10.0.0.5")
	require.NoError(t, err)

	assert.Equal(t, 3, service.RemainingAttempts("10.0.0.5"))
	assert.Equal(t, 5, service.RemainingAttempts("10.0.0.6"), "counters are per address")
}

func TestIPBlockService_RemainingAttemptsFloorsAtZero(t *testing.T) {
	service := services.NewIPBlockService(&services.MockBlockedIPRepository{}, testIPBlockConfig(), testLogger())
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := service.RecordFailedAttempt(ctx, "10.0.0.5")
		require.NoError(t, err)
	}

	assert.Equal(t, 0, service.RemainingAttempts("10.0.0.5"))
}

func TestIPBlockService_ResetClearsCounter(t *testing.T) {
	service := services.NewIPBlockService(&services.MockBlockedIPRepository{}, testIPBlockConfig(), testLogger())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := service.RecordFailedAttempt(ctx, "10.0.0.5")
		require.NoError(t, err)
	}

	service.ResetAttempts("10.0.0.5")

	assert.Equal(t, 5, service.RemainingAttempts("10.0.0.5"))

	// Counting starts over: one more failure is nowhere near a block.
	blocked, err := service.RecordFailedAttempt(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestIPBlockService_IsBlocked(t *testing.T) {
	repo := &services.MockBlockedIPRepository{
		GetActiveByIPFunc: func(ctx context.Context, ip string) (*models.BlockedIP, error) {
			if ip == "10.0.0.5" {
				return &models.BlockedIP{IPAddress: ip, ExpiresAt: time.Now().Add(10 * time.Minute)}, nil
			}
			return nil, nil
		},
	}

	service := services.NewIPBlockService(repo, testIPBlockConfig(), testLogger())
	ctx := context.Background()

	blocked, err := service.IsBlocked(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.True(t, blocked)

	blocked, err = service.IsBlocked(ctx, "10.0.0.6")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestIPBlockService_IsBlockedFailsClosed(t *testing.T) {
	repo := &services.MockBlockedIPRepository{
		GetActiveByIPFunc: func(ctx context.Context, ip string) (*models.BlockedIP, error) {
			return nil, context.DeadlineExceeded
		},
	}

	service := services.NewIPBlockService(repo, testIPBlockConfig(), testLogger())

	_, err := service.IsBlocked(context.Background(), "10.0.0.5")
	assert.ErrorIs(t, err, models.ErrInternalServer)
}

func TestIPBlockService_Unblock(t *testing.T) {
	deleted := false
	repo := &services.MockBlockedIPRepository{
		DeleteByIPFunc: func(ctx context.Context, ip string) (bool, error) {
			deleted = true
			return true, nil
		},
	}

	service := services.NewIPBlockService(repo, testIPBlockConfig(), testLogger())

	removed, err := service.Unblock(context.Background(), "10.0.0.5")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.True(t, deleted)
}

func TestIPBlockService_UnblockMissingIsNotAnError(t *testing.T) {
	service := services.NewIPBlockService(&services.MockBlockedIPRepository{}, testIPBlockConfig(), testLogger())

	removed, err := service.Unblock(context.Background(), "10.0.0.99")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestIPBlockService_ListCleansExpiredFirst(t *testing.T) {
	cleaned := false
	repo := &services.MockBlockedIPRepository{
		DeleteExpiredFunc: func(ctx context.Context) (int64, error) {
			cleaned = true
			return 2, nil
		},
		ListAllFunc: func(ctx context.Context) ([]*models.BlockedIP, error) {
			return []*models.BlockedIP{
				{
					ID:        "b1",
					IPAddress: "10.0.0.5",
					ExpiresAt: time.Now().Add(10 * time.Minute),
				},
			}, nil
		},
	}

	service := services.NewIPBlockService(repo, testIPBlockConfig(), testLogger())

	blocks, err := service.List(context.Background())
	require.NoError(t, err)
	assert.True(t, cleaned, "expired rows are purged before listing")
	require.Len(t, blocks, 1)
	assert.Equal(t, "10.0.0.5", blocks[0].IPAddress)
	assert.Greater(t, blocks[0].SecondsRemaining, 0)
}
