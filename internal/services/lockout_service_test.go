package services_test

import (
	"context"
	"testing"

	"github.com/opsdesk/opsdesk/internal/models"
	"github.com/opsdesk/opsdesk/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockoutService_RecordFailedAttempt(t *testing.T) {
	repo := &services.MockLockoutRepository{
		RecordFailedAttemptFunc: func(ctx context.Context, userID string, lockThreshold int) (int, bool, error) {
			assert.Equal(t, 5, lockThreshold)
			return 2, false, nil
		},
	}

	service := services.NewLockoutService(repo, 5, testLogger())

	res, err := service.RecordFailedAttempt(context.Background(), "user_1")
	require.NoError(t, err)
	assert.False(t, res.Locked)
	assert.Equal(t, 3, res.RemainingAttempts)
}

func TestLockoutService_LocksAtThreshold(t *testing.T) {
	repo := &services.MockLockoutRepository{
		RecordFailedAttemptFunc: func(ctx context.Context, userID string, lockThreshold int) (int, bool, error) {
			return 5, true, nil
		},
	}

	service := services.NewLockoutService(repo, 5, testLogger())

	res, err := service.RecordFailedAttempt(context.Background(), "user_1")
	require.NoError(t, err)
	assert.True(t, res.Locked)
	assert.Equal(t, 0, res.RemainingAttempts)
}

func TestLockoutService_RemainingFloorsAtZero(t *testing.T) {
	repo := &services.MockLockoutRepository{
		RecordFailedAttemptFunc: func(ctx context.Context, userID string, lockThreshold int) (int, bool, error) {
			return 8, true, nil
		},
	}

	service := services.NewLockoutService(repo, 5, testLogger())

	res, err := service.RecordFailedAttempt(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, 0, res.RemainingAttempts)
}

func TestLockoutService_StoreFailureIsGeneric(t *testing.T) {
	repo := &services.MockLockoutRepository{
		RecordFailedAttemptFunc: func(ctx context.Context, userID string, lockThreshold int) (int, bool, error) {
			return 0, false, context.DeadlineExceeded
		},
	}

	service := services.NewLockoutService(repo, 5, testLogger())

	_, err := service.RecordFailedAttempt(context.Background(), "user_1")
	assert.ErrorIs(t, err, models.ErrInternalServer)
}

func TestLockoutService_Unlock(t *testing.T) {
	var unlockedID string
	repo := &services.MockLockoutRepository{
		UnlockFunc: func(ctx context.Context, userID string) (bool, error) {
			unlockedID = userID
			return true, nil
		},
	}

	service := services.NewLockoutService(repo, 5, testLogger())

	ok, err := service.Unlock(context.Background(), "user_1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "user_1", unlockedID)
}

func TestLockoutService_UnlockMissingUser(t *testing.T) {
	repo := &services.MockLockoutRepository{
		UnlockFunc: func(ctx context.Context, userID string) (bool, error) {
			return false, nil
		},
	}

	service := services.NewLockoutService(repo, 5, testLogger())

	ok, err := service.Unlock(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLockoutService_Lock(t *testing.T) {
	var lookedUpID string
	repo := &services.MockLockoutRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			lookedUpID = id
			return &models.User{ID: id, Username: "mallory", Role: "user"}, nil
		},
		LockFunc: func(ctx context.Context, userID string) (bool, error) {
			return true, nil
		},
	}

	service := services.NewLockoutService(repo, 5, testLogger())

	ok, err := service.Lock(context.Background(), "user_1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "user_1", lookedUpID)
}

func TestLockoutService_LockMissingUser(t *testing.T) {
	lockCalled := false
	repo := &services.MockLockoutRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return nil, models.ErrNotFound
		},
		LockFunc: func(ctx context.Context, userID string) (bool, error) {
			lockCalled = true
			return false, nil
		},
	}

	service := services.NewLockoutService(repo, 5, testLogger())

	ok, err := service.Lock(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, lockCalled, "lock should not be attempted for a missing user")
}
