package background

import (
	"context"
	"log/slog"
	"time"
)

// SessionSweeper removes expired sessions from the durable store and
// the cache mirror.
type SessionSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// BlockSweeper removes lapsed IP block rows and counter windows.
type BlockSweeper interface {
	CleanExpired(ctx context.Context) (int64, error)
}

// CleanupManager periodically sweeps expired sessions and lapsed IP
// blocks. Expiry is enforced at read time regardless; the sweep only
// keeps the tables from growing without bound.
type CleanupManager struct {
	sessions SessionSweeper
	ipBlocks BlockSweeper
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	sessions SessionSweeper,
	ipBlocks BlockSweeper,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		sessions: sessions,
		ipBlocks: ipBlocks,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// runCleanup sweeps both stores; a failure in one does not skip the other.
func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	sessionsDeleted, err := cm.sessions.SweepExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to sweep expired sessions", slog.Any("error", err))
	}

	blocksDeleted, err := cm.ipBlocks.CleanExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to clean expired ip blocks", slog.Any("error", err))
	}

	if sessionsDeleted > 0 || blocksDeleted > 0 {
		cm.logger.Info("cleanup completed",
			slog.Int64("sessions_deleted", sessionsDeleted),
			slog.Int64("ip_blocks_deleted", blocksDeleted))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
