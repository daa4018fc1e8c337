package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/opsdesk/opsdesk/internal/models"
	pkglogger "github.com/opsdesk/opsdesk/pkg/logger"
)

// LockoutRepository defines the user-store operations the account
// lockout logic needs. Increments are atomic at the store layer so
// concurrent failures cannot race past the threshold.
type LockoutRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	RecordFailedAttempt(ctx context.Context, userID string, lockThreshold int) (failedAttempts int, locked bool, err error)
	ResetFailedAttempts(ctx context.Context, userID string) error
	Lock(ctx context.Context, userID string) (bool, error)
	Unlock(ctx context.Context, userID string) (bool, error)
}

// LockoutResult reports the outcome of recording a failed attempt.
type LockoutResult struct {
	Locked            bool
	RemainingAttempts int
}

// LockoutService tracks failed logins per account and locks the account
// indefinitely once the threshold is reached. Only an explicit unlock
// reopens it.
type LockoutService struct {
	repo      LockoutRepository
	threshold int
	logger    *slog.Logger
}

func NewLockoutService(repo LockoutRepository, threshold int, logger *slog.Logger) *LockoutService {
	return &LockoutService{
		repo:      repo,
		threshold: threshold,
		logger:    logger,
	}
}

// RecordFailedAttempt bumps the account's failure counter. When the
// counter reaches the threshold the account is locked in the same store
// operation.
func (s *LockoutService) RecordFailedAttempt(ctx context.Context, userID string) (*LockoutResult, error) {
	failed, locked, err := s.repo.RecordFailedAttempt(ctx, userID, s.threshold)
	if err != nil {
		s.logger.Error("failed to record account failure", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	remaining := s.threshold - failed
	if remaining < 0 {
		remaining = 0
	}

	if locked {
		s.logger.Warn("account locked after repeated failures",
			slog.String("user_id", userID),
			slog.Int("failed_attempts", failed))
	}

	return &LockoutResult{Locked: locked, RemainingAttempts: remaining}, nil
}

// ResetAttempts zeroes the failure counter after a successful login.
func (s *LockoutService) ResetAttempts(ctx context.Context, userID string) error {
	if err := s.repo.ResetFailedAttempts(ctx, userID); err != nil {
		s.logger.Error("failed to reset account failures", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	return nil
}

// Lock locks an account without requiring a threshold breach (admin
// override). Returns false when the user does not exist.
func (s *LockoutService) Lock(ctx context.Context, userID string) (bool, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, nil
		}
		s.logger.Error("failed to look up account for lock", slog.String("user_id", userID), slog.Any("error", err))
		return false, models.ErrInternalServer
	}

	locked, err := s.repo.Lock(ctx, userID)
	if err != nil {
		s.logger.Error("failed to lock account", slog.String("user_id", userID), slog.Any("error", err))
		return false, models.ErrInternalServer
	}

	if locked {
		s.logger.Warn("account locked by administrator",
			slog.String("user_id", userID),
			slog.String("username", pkglogger.SanitizedUsername(user.Username)))
	}

	return locked, nil
}

// Unlock reopens an account, resetting the failure counter and the lock
// flag in one atomic store operation.
func (s *LockoutService) Unlock(ctx context.Context, userID string) (bool, error) {
	unlocked, err := s.repo.Unlock(ctx, userID)
	if err != nil {
		s.logger.Error("failed to unlock account", slog.String("user_id", userID), slog.Any("error", err))
		return false, models.ErrInternalServer
	}

	return unlocked, nil
}
