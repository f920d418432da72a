package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/otpgate/otpgate/internal/repositories"
)

// CleanupManager periodically clears expired OTP challenges and lapsed
// account locks from the database
type CleanupManager struct {
	accountRepo *repositories.AccountRepository
	logger      *slog.Logger
	interval    time.Duration
	stopCh      chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	accountRepo *repositories.AccountRepository,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		accountRepo: accountRepo,
		logger:      logger,
		interval:    interval,
		stopCh:      make(chan struct{}),
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

// runCleanup clears expired challenges and lapsed locks
func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	challenges, err := cm.accountRepo.ClearExpiredChallenges(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to clear expired challenges", slog.Any("error", err))
	} else if challenges > 0 {
		cm.logger.Info("expired challenge cleanup completed", slog.Int64("rows_cleared", challenges))
	}

	locks, err := cm.accountRepo.ClearLapsedLocks(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to clear lapsed locks", slog.Any("error", err))
	} else if locks > 0 {
		cm.logger.Info("lapsed lock cleanup completed", slog.Int64("rows_cleared", locks))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
