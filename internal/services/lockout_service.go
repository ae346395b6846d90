package services

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"

	"github.com/Ibrahim99575/authentication-system/internal/models"
)

// LockoutRepository defines the attempt-ledger operations lockout decisions
// are derived from
type LockoutRepository interface {
	RecordAttempt(ctx context.Context, attempt *models.AuthAttempt) error
	CountFailuresByUsername(ctx context.Context, username string, since time.Time) (int, error)
	CountFailuresByIP(ctx context.Context, ipAddress string, since time.Time) (int, error)
	CountFailuresByDevice(ctx context.Context, fingerprint string, since time.Time) (int, error)
	LastSuccessTime(ctx context.Context, username string) (*time.Time, error)
}

// LockoutUserStore is the slice of the user repository the lockout service
// needs to stamp and clear account locks
type LockoutUserStore interface {
	SetLockedUntil(ctx context.Context, id string, until *time.Time) error
}

// LockoutConfig holds configuration for account lockout behavior
type LockoutConfig struct {
	MaxFailedAttempts int
	MaxIPFailures     int
	MaxDeviceFailures int
	LockoutDuration   time.Duration
	Window            time.Duration
}

// LockoutService decides whether a login attempt may proceed and maintains
// the locked_until stamp on user rows. Failure counts come from the
// append-only attempt ledger rather than a mutable per-user counter: a
// successful login implicitly resets the count because only failures after
// the last success are considered.
type LockoutService struct {
	attempts LockoutRepository
	users    LockoutUserStore
	config   LockoutConfig
	logger   *slog.Logger
}

// NewLockoutService creates a new LockoutService
func NewLockoutService(attempts LockoutRepository, users LockoutUserStore, config LockoutConfig, logger *slog.Logger) *LockoutService {
	return &LockoutService{
		attempts: attempts,
		users:    users,
		config:   config,
		logger:   logger,
	}
}

// CheckLockout checks whether a login attempt should be allowed.
// Returns (allowed bool, lockoutDuration *time.Duration, err error).
// If allowed=false with a duration, the account itself is locked; if
// allowed=false with models.ErrRateLimitExceeded, the source IP or device
// has crossed its cap.
func (s *LockoutService) CheckLockout(ctx context.Context, username, ipAddress, userAgent string) (bool, *time.Duration, error) {
	fingerprint := deviceFingerprint(ipAddress, userAgent)

	// 1. Account-based lockout, counted since the last successful login
	failedCount, err := s.attempts.CountFailuresByUsername(ctx, username, s.failureWindowStart(ctx, username))
	if err != nil {
		s.logger.Error("failed to check account lockout", slog.Any("error", err))
		// A ledger read failure allows the attempt; only counted thresholds deny.
		return true, nil, nil
	}

	if failedCount >= s.config.MaxFailedAttempts {
		lockoutDuration := s.config.LockoutDuration
		s.logger.Warn("account locked out",
			slog.String("username", username),
			slog.Int("failed_attempts", failedCount),
			slog.Duration("lockout_duration", lockoutDuration))
		return false, &lockoutDuration, nil
	}

	// 2. IP-based cap, window-scoped across accounts
	ipFailures, err := s.attempts.CountFailuresByIP(ctx, ipAddress, time.Now().Add(-s.config.Window))
	if err != nil {
		s.logger.Error("failed to check IP failure count", slog.Any("error", err))
		return true, nil, nil
	}

	if ipFailures >= s.config.MaxIPFailures {
		s.logger.Warn("IP rate limited",
			slog.String("ip_address", ipAddress),
			slog.Int("failed_attempts", ipFailures))
		return false, nil, models.ErrRateLimitExceeded
	}

	// 3. Device-based cap
	deviceFailures, err := s.attempts.CountFailuresByDevice(ctx, fingerprint, time.Now().Add(-s.config.Window))
	if err != nil {
		s.logger.Error("failed to check device failure count", slog.Any("error", err))
		return true, nil, nil
	}

	if deviceFailures >= s.config.MaxDeviceFailures {
		s.logger.Warn("device rate limited",
			slog.String("device_fingerprint", fingerprint),
			slog.Int("failed_attempts", deviceFailures))
		return false, nil, models.ErrRateLimitExceeded
	}

	return true, nil, nil
}

// RecordAttempt appends one ledger row and applies the lockout threshold: a
// failure that crosses the configured limit stamps locked_until on the user
// row, a success clears any standing lock.
func (s *LockoutService) RecordAttempt(ctx context.Context, attempt *models.AuthAttempt) error {
	if attempt.DeviceFingerprint == "" {
		attempt.DeviceFingerprint = deviceFingerprint(attempt.IPAddress, attempt.UserAgent)
	}

	if err := s.attempts.RecordAttempt(ctx, attempt); err != nil {
		return fmt.Errorf("failed to record auth attempt: %w", err)
	}

	// Locks only apply to known accounts; attempts against unknown
	// usernames still land in the ledger for the IP/device caps.
	if attempt.UserID == nil {
		return nil
	}

	if attempt.Succeeded() {
		if err := s.users.SetLockedUntil(ctx, *attempt.UserID, nil); err != nil {
			s.logger.Error("failed to clear account lock",
				slog.String("user_id", *attempt.UserID),
				slog.Any("error", err))
		}
		return nil
	}

	failedCount, err := s.attempts.CountFailuresByUsername(ctx, attempt.Username, s.failureWindowStart(ctx, attempt.Username))
	if err != nil {
		s.logger.Error("failed to count failures after attempt", slog.Any("error", err))
		return nil
	}

	if failedCount >= s.config.MaxFailedAttempts {
		lockedUntil := time.Now().Add(s.config.LockoutDuration)
		if err := s.users.SetLockedUntil(ctx, *attempt.UserID, &lockedUntil); err != nil {
			s.logger.Error("failed to stamp account lock",
				slog.String("user_id", *attempt.UserID),
				slog.Any("error", err))
			return nil
		}
		s.logger.Warn("account lock stamped",
			slog.String("user_id", *attempt.UserID),
			slog.Int("failed_attempts", failedCount),
			slog.Time("locked_until", lockedUntil))
	}

	return nil
}

// failureWindowStart returns the moment failure counting begins: the lookback
// window bound, moved forward to the last successful login when that is more
// recent.
func (s *LockoutService) failureWindowStart(ctx context.Context, username string) time.Time {
	since := time.Now().Add(-s.config.Window)

	lastSuccess, err := s.attempts.LastSuccessTime(ctx, username)
	if err != nil {
		s.logger.Error("failed to look up last successful login", slog.Any("error", err))
		return since
	}
	if lastSuccess != nil && lastSuccess.After(since) {
		return *lastSuccess
	}
	return since
}

// deviceFingerprint creates a hash of IP + User-Agent for device identification
func deviceFingerprint(ipAddress, userAgent string) string {
	data := []byte(fmt.Sprintf("%s:%s", ipAddress, userAgent))
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)[:32]
}
