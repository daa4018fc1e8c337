package services

import (
	"context"
	"time"

	"github.com/opsdesk/opsdesk/internal/models"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByUsernameFunc func(ctx context.Context, username string) (*models.User, error)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

// MockBlockedIPRepository implements BlockedIPRepository for testing
type MockBlockedIPRepository struct {
	UpsertFunc        func(ctx context.Context, block *models.BlockedIP) (*models.BlockedIP, error)
	GetActiveByIPFunc func(ctx context.Context, ip string) (*models.BlockedIP, error)
	DeleteByIPFunc    func(ctx context.Context, ip string) (bool, error)
	DeleteByIDFunc    func(ctx context.Context, id string) (bool, error)
	DeleteExpiredFunc func(ctx context.Context) (int64, error)
	ListAllFunc       func(ctx context.Context) ([]*models.BlockedIP, error)
}

func (m *MockBlockedIPRepository) Upsert(ctx context.Context, block *models.BlockedIP) (*models.BlockedIP, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, block)
	}
	return block, nil
}

func (m *MockBlockedIPRepository) GetActiveByIP(ctx context.Context, ip string) (*models.BlockedIP, error) {
	if m.GetActiveByIPFunc != nil {
		return m.GetActiveByIPFunc(ctx, ip)
	}
	return nil, nil
}

func (m *MockBlockedIPRepository) DeleteByIP(ctx context.Context, ip string) (bool, error) {
	if m.DeleteByIPFunc != nil {
		return m.DeleteByIPFunc(ctx, ip)
	}
	return false, nil
}

func (m *MockBlockedIPRepository) DeleteByID(ctx context.Context, id string) (bool, error) {
	if m.DeleteByIDFunc != nil {
		return m.DeleteByIDFunc(ctx, id)
	}
	return false, nil
}

func (m *MockBlockedIPRepository) DeleteExpired(ctx context.Context) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx)
	}
	return 0, nil
}

func (m *MockBlockedIPRepository) ListAll(ctx context.Context) ([]*models.BlockedIP, error) {
	if m.ListAllFunc != nil {
		return m.ListAllFunc(ctx)
	}
	return []*models.BlockedIP{}, nil
}

// MockLockoutRepository implements LockoutRepository for testing
type MockLockoutRepository struct {
	GetByIDFunc             func(ctx context.Context, id string) (*models.User, error)
	RecordFailedAttemptFunc func(ctx context.Context, userID string, lockThreshold int) (int, bool, error)
	ResetFailedAttemptsFunc func(ctx context.Context, userID string) error
	LockFunc                func(ctx context.Context, userID string) (bool, error)
	UnlockFunc              func(ctx context.Context, userID string) (bool, error)
}

func (m *MockLockoutRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return &models.User{ID: id, Username: "someone", Role: "user"}, nil
}

func (m *MockLockoutRepository) RecordFailedAttempt(ctx context.Context, userID string, lockThreshold int) (int, bool, error) {
	if m.RecordFailedAttemptFunc != nil {
		return m.RecordFailedAttemptFunc(ctx, userID, lockThreshold)
	}
	return 1, false, nil
}

func (m *MockLockoutRepository) ResetFailedAttempts(ctx context.Context, userID string) error {
	if m.ResetFailedAttemptsFunc != nil {
		return m.ResetFailedAttemptsFunc(ctx, userID)
	}
	return nil
}

func (m *MockLockoutRepository) Lock(ctx context.Context, userID string) (bool, error) {
	if m.LockFunc != nil {
		return m.LockFunc(ctx, userID)
	}
	return true, nil
}

func (m *MockLockoutRepository) Unlock(ctx context.Context, userID string) (bool, error) {
	if m.UnlockFunc != nil {
		return m.UnlockFunc(ctx, userID)
	}
	return true, nil
}

// MockSessionRepository implements SessionRepository for testing
type MockSessionRepository struct {
	CreateFunc         func(ctx context.Context, session *models.Session) (*models.Session, error)
	SlideFunc          func(ctx context.Context, token string, newExpiresAt time.Time) (*models.PublicUser, error)
	DeleteByTokenFunc  func(ctx context.Context, token string) error
	DeleteByUserIDFunc func(ctx context.Context, userID string) (int64, error)
	DeleteExpiredFunc  func(ctx context.Context) (int64, error)
}

func (m *MockSessionRepository) Create(ctx context.Context, session *models.Session) (*models.Session, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, session)
	}
	session.ID = "session_1"
	return session, nil
}

func (m *MockSessionRepository) Slide(ctx context.Context, token string, newExpiresAt time.Time) (*models.PublicUser, error) {
	if m.SlideFunc != nil {
		return m.SlideFunc(ctx, token, newExpiresAt)
	}
	return nil, nil
}

func (m *MockSessionRepository) DeleteByToken(ctx context.Context, token string) error {
	if m.DeleteByTokenFunc != nil {
		return m.DeleteByTokenFunc(ctx, token)
	}
	return nil
}

func (m *MockSessionRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	if m.DeleteByUserIDFunc != nil {
		return m.DeleteByUserIDFunc(ctx, userID)
	}
	return 0, nil
}

func (m *MockSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx)
	}
	return 0, nil
}

// MockIPBlocker implements IPBlocker for testing the orchestrator
type MockIPBlocker struct {
	IsBlockedFunc           func(ctx context.Context, ip string) (bool, error)
	RecordFailedAttemptFunc func(ctx context.Context, ip string) (bool, error)
	RemainingAttemptsFunc   func(ip string) int
	ResetAttemptsFunc       func(ip string)
}

func (m *MockIPBlocker) IsBlocked(ctx context.Context, ip string) (bool, error) {
	if m.IsBlockedFunc != nil {
		return m.IsBlockedFunc(ctx, ip)
	}
	return false, nil
}

func (m *MockIPBlocker) RecordFailedAttempt(ctx context.Context, ip string) (bool, error) {
	if m.RecordFailedAttemptFunc != nil {
		return m.RecordFailedAttemptFunc(ctx, ip)
	}
	return false, nil
}

func (m *MockIPBlocker) RemainingAttempts(ip string) int {
	if m.RemainingAttemptsFunc != nil {
		return m.RemainingAttemptsFunc(ip)
	}
	return 5
}

func (m *MockIPBlocker) ResetAttempts(ip string) {
	if m.ResetAttemptsFunc != nil {
		m.ResetAttemptsFunc(ip)
	}
}

// MockAccountLocker implements AccountLocker for testing the orchestrator
type MockAccountLocker struct {
	RecordFailedAttemptFunc func(ctx context.Context, userID string) (*LockoutResult, error)
	ResetAttemptsFunc       func(ctx context.Context, userID string) error
}

func (m *MockAccountLocker) RecordFailedAttempt(ctx context.Context, userID string) (*LockoutResult, error) {
	if m.RecordFailedAttemptFunc != nil {
		return m.RecordFailedAttemptFunc(ctx, userID)
	}
	return &LockoutResult{Locked: false, RemainingAttempts: 4}, nil
}

func (m *MockAccountLocker) ResetAttempts(ctx context.Context, userID string) error {
	if m.ResetAttemptsFunc != nil {
		return m.ResetAttemptsFunc(ctx, userID)
	}
	return nil
}

// MockSessionCreator implements SessionCreator for testing the orchestrator
type MockSessionCreator struct {
	CreateFunc  func(ctx context.Context, user *models.PublicUser) (*models.Session, error)
	DestroyFunc func(ctx context.Context, token string) error
}

func (m *MockSessionCreator) Create(ctx context.Context, user *models.PublicUser) (*models.Session, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return &models.Session{
		ID:        "session_1",
		UserID:    user.ID,
		Token:     "test-token",
		ExpiresAt: time.Now().Add(30 * time.Minute),
	}, nil
}

func (m *MockSessionCreator) Destroy(ctx context.Context, token string) error {
	if m.DestroyFunc != nil {
		return m.DestroyFunc(ctx, token)
	}
	return nil
}

// AllowAllLimiter is a LoginLimiter that never denies
type AllowAllLimiter struct{}

func (AllowAllLimiter) Allow(limit int, key string) bool { return true }

// DenyAllLimiter is a LoginLimiter that always denies
type DenyAllLimiter struct{}

func (DenyAllLimiter) Allow(limit int, key string) bool { return false }
