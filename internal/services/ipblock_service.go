package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/opsdesk/opsdesk/internal/models"
	"github.com/opsdesk/opsdesk/internal/security"
)

// BlockedIPRepository defines the durable-store operations for IP blocks.
type BlockedIPRepository interface {
	Upsert(ctx context.Context, block *models.BlockedIP) (*models.BlockedIP, error)
	GetActiveByIP(ctx context.Context, ip string) (*models.BlockedIP, error)
	DeleteByIP(ctx context.Context, ip string) (bool, error)
	DeleteByID(ctx context.Context, id string) (bool, error)
	DeleteExpired(ctx context.Context) (int64, error)
	ListAll(ctx context.Context) ([]*models.BlockedIP, error)
}

// IPBlockConfig holds the per-IP blocking knobs.
type IPBlockConfig struct {
	Threshold     int           // failures before the address is blocked
	BlockDuration time.Duration // how long the block row lives
	AttemptWindow time.Duration // evaluation window for the ephemeral counter
}

// IPBlockService escalates repeated login failures from one address into
// a timed block. Failure counts live in a process-local windowed counter;
// only the resulting block rows are durable.
type IPBlockService struct {
	repo     BlockedIPRepository
	attempts *security.AttemptCounter
	config   IPBlockConfig
	logger   *slog.Logger
}

func NewIPBlockService(repo BlockedIPRepository, config IPBlockConfig, logger *slog.Logger) *IPBlockService {
	return &IPBlockService{
		repo:     repo,
		attempts: security.NewAttemptCounter(config.AttemptWindow),
		config:   config,
		logger:   logger,
	}
}

// IsBlocked reports whether an unexpired block row exists for ip.
func (s *IPBlockService) IsBlocked(ctx context.Context, ip string) (bool, error) {
	block, err := s.repo.GetActiveByIP(ctx, ip)
	if err != nil {
		s.logger.Error("failed to look up ip block", slog.String("ip_address", ip), slog.Any("error", err))
		return false, models.ErrInternalServer
	}

	return block != nil, nil
}

// RecordFailedAttempt counts a failure for ip and, once the in-window
// count reaches the threshold, writes (or refreshes) the block row.
// Returns true when the address is now blocked.
func (s *IPBlockService) RecordFailedAttempt(ctx context.Context, ip string) (bool, error) {
	count := s.attempts.Increment(ip)
	if count < s.config.Threshold {
		return false, nil
	}

	block := &models.BlockedIP{
		IPAddress:   ip,
		Reason:      "too many failed login attempts",
		FailedCount: count,
		BlockedAt:   time.Now(),
		ExpiresAt:   time.Now().Add(s.config.BlockDuration),
	}

	if _, err := s.repo.Upsert(ctx, block); err != nil {
		s.logger.Error("failed to persist ip block", slog.String("ip_address", ip), slog.Any("error", err))
		return false, models.ErrInternalServer
	}

	s.logger.Warn("ip address blocked",
		slog.String("ip_address", ip),
		slog.Int("failed_count", count),
		slog.Duration("block_duration", s.config.BlockDuration))

	return true, nil
}

// RemainingAttempts returns how many failures ip has left before a
// block, floored at 0.
func (s *IPBlockService) RemainingAttempts(ip string) int {
	remaining := s.config.Threshold - s.attempts.Count(ip)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ResetAttempts clears the ephemeral counter for ip, called after a
// successful login.
func (s *IPBlockService) ResetAttempts(ip string) {
	s.attempts.Reset(ip)
}

// Unblock removes the block row for an address and clears its counter.
// Returns false when no row existed.
func (s *IPBlockService) Unblock(ctx context.Context, ip string) (bool, error) {
	removed, err := s.repo.DeleteByIP(ctx, ip)
	if err != nil {
		s.logger.Error("failed to unblock ip", slog.String("ip_address", ip), slog.Any("error", err))
		return false, models.ErrInternalServer
	}

	s.attempts.Reset(ip)

	return removed, nil
}

// UnblockByID removes a block row by id. The ephemeral counter for the
// address is left to lapse with its window.
func (s *IPBlockService) UnblockByID(ctx context.Context, id string) (bool, error) {
	removed, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to unblock ip by id", slog.String("id", id), slog.Any("error", err))
		return false, models.ErrInternalServer
	}

	return removed, nil
}

// CleanExpired purges lapsed block rows and lapsed counter windows.
func (s *IPBlockService) CleanExpired(ctx context.Context) (int64, error) {
	s.attempts.Sweep()

	deleted, err := s.repo.DeleteExpired(ctx)
	if err != nil {
		s.logger.Error("failed to clean expired ip blocks", slog.Any("error", err))
		return 0, models.ErrInternalServer
	}

	return deleted, nil
}

// BlockedIPResponse is the admin-facing view of a block row.
type BlockedIPResponse struct {
	ID               string    `json:"id"`
	IPAddress        string    `json:"ip_address"`
	Reason           string    `json:"reason"`
	FailedCount      int       `json:"failed_count"`
	BlockedAt        time.Time `json:"blocked_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	SecondsRemaining int       `json:"seconds_remaining"`
}

// List returns all active block rows with computed time remaining.
// Expired rows are purged first so the listing never shows dead blocks.
func (s *IPBlockService) List(ctx context.Context) ([]*BlockedIPResponse, error) {
	if _, err := s.CleanExpired(ctx); err != nil {
		return nil, err
	}

	blocks, err := s.repo.ListAll(ctx)
	if err != nil {
		s.logger.Error("failed to list blocked ips", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	out := make([]*BlockedIPResponse, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, &BlockedIPResponse{
			ID:               b.ID,
			IPAddress:        b.IPAddress,
			Reason:           b.Reason,
			FailedCount:      b.FailedCount,
			BlockedAt:        b.BlockedAt,
			ExpiresAt:        b.ExpiresAt,
			SecondsRemaining: b.SecondsRemaining(),
		})
	}

	return out, nil
}
