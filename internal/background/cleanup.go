package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/Ibrahim99575/authentication-system/internal/repositories"
)

// CleanupManager periodically prunes the auth attempt ledger and expired
// password reset tokens from the database
type CleanupManager struct {
	attemptRepo *repositories.AuthAttemptRepository
	resetRepo   *repositories.PasswordResetRepository
	logger      *slog.Logger
	interval    time.Duration
	retention   time.Duration
	stopCh      chan struct{}
}

// NewCleanupManager creates a new cleanup manager. retention is how long
// auth attempt rows are kept before pruning.
func NewCleanupManager(
	attemptRepo *repositories.AuthAttemptRepository,
	resetRepo *repositories.PasswordResetRepository,
	logger *slog.Logger,
	interval time.Duration,
	retention time.Duration,
) *CleanupManager {
	return &CleanupManager{
		attemptRepo: attemptRepo,
		resetRepo:   resetRepo,
		logger:      logger,
		interval:    interval,
		retention:   retention,
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

// runCleanup prunes expired rows from both tables
func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cm.logger.Info("starting database cleanup")

	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().Add(-cm.retention)
	attemptsDeleted, err := cm.attemptRepo.DeleteOlderThan(cleanupCtx, cutoff)
	if err != nil {
		cm.logger.Error("failed to prune auth attempts", slog.Any("error", err))
	} else if attemptsDeleted > 0 {
		cm.logger.Info("auth attempt cleanup completed", slog.Int64("rows_deleted", attemptsDeleted))
	}

	tokensDeleted, err := cm.resetRepo.CleanupExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to prune password reset tokens", slog.Any("error", err))
	} else if tokensDeleted > 0 {
		cm.logger.Info("reset token cleanup completed", slog.Int64("rows_deleted", tokensDeleted))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
