package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Ibrahim99575/authentication-system/internal/database"
	"github.com/Ibrahim99575/authentication-system/internal/models"
)

// AuthAttemptRepository handles the authentication attempt ledger
type AuthAttemptRepository struct {
	db *database.DB
}

// NewAuthAttemptRepository creates a new AuthAttemptRepository
func NewAuthAttemptRepository(db *database.DB) *AuthAttemptRepository {
	return &AuthAttemptRepository{db: db}
}

// RecordAttempt appends one attempt to the ledger. The ledger is append-only:
// nothing updates or rewrites rows after insert.
func (r *AuthAttemptRepository) RecordAttempt(ctx context.Context, attempt *models.AuthAttempt) error {
	query := `
		INSERT INTO auth_attempts
			(user_id, username, auth_type, result, modality, similarity_score, threshold_used,
			 failure_reason, ip_address, user_agent, device_fingerprint, processing_time_ms, token_issued)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		attempt.UserID,
		attempt.Username,
		attempt.AuthType,
		attempt.Result,
		attempt.Modality,
		attempt.SimilarityScore,
		attempt.ThresholdUsed,
		attempt.FailureReason,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.DeviceFingerprint,
		attempt.ProcessingTimeMs,
		attempt.TokenIssued,
	).Scan(&attempt.ID, &attempt.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to record auth attempt: %w", err)
	}

	return nil
}

// CountFailuresByUsername returns failed attempts for a username since a point in time
func (r *AuthAttemptRepository) CountFailuresByUsername(ctx context.Context, username string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM auth_attempts
		WHERE username = $1 AND result = $2 AND created_at >= $3
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, username, models.AuthResultFailure, since).Scan(&count)
	return count, err
}

// CountFailuresByIP returns failed attempts from an IP since a point in time
func (r *AuthAttemptRepository) CountFailuresByIP(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM auth_attempts
		WHERE ip_address = $1 AND result = $2 AND created_at >= $3
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, ipAddress, models.AuthResultFailure, since).Scan(&count)
	return count, err
}

// CountFailuresByDevice returns failed attempts from a device fingerprint since a point in time
func (r *AuthAttemptRepository) CountFailuresByDevice(ctx context.Context, fingerprint string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM auth_attempts
		WHERE device_fingerprint = $1 AND result = $2 AND created_at >= $3
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, fingerprint, models.AuthResultFailure, since).Scan(&count)
	return count, err
}

// LastFailureTime returns the most recent failure timestamp for a username,
// or nil when there is none in the window
func (r *AuthAttemptRepository) LastFailureTime(ctx context.Context, username string, since time.Time) (*time.Time, error) {
	query := `
		SELECT created_at FROM auth_attempts
		WHERE username = $1 AND result = $2 AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT 1
	`

	var failureTime time.Time
	err := r.db.Pool.QueryRow(ctx, query, username, models.AuthResultFailure, since).Scan(&failureTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &failureTime, nil
}

// LastSuccessTime returns the most recent successful attempt timestamp for a
// username, or nil when there has never been one
func (r *AuthAttemptRepository) LastSuccessTime(ctx context.Context, username string) (*time.Time, error) {
	query := `
		SELECT created_at FROM auth_attempts
		WHERE username = $1 AND result = $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	var successTime time.Time
	err := r.db.Pool.QueryRow(ctx, query, username, models.AuthResultSuccess).Scan(&successTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &successTime, nil
}

// CountByUser returns total, successful and failed attempt counts for a user
func (r *AuthAttemptRepository) CountByUser(ctx context.Context, userID string) (total, successful, failed int, err error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE result = $2),
			COUNT(*) FILTER (WHERE result = $3)
		FROM auth_attempts
		WHERE user_id = $1
	`

	err = r.db.Pool.QueryRow(ctx, query, userID, models.AuthResultSuccess, models.AuthResultFailure).
		Scan(&total, &successful, &failed)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count auth attempts: %w", err)
	}

	return total, successful, failed, nil
}

// DeleteOlderThan prunes ledger rows past the retention horizon and reports
// how many were removed
func (r *AuthAttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM auth_attempts WHERE created_at < $1`

	commandTag, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune auth attempts: %w", err)
	}

	return commandTag.RowsAffected(), nil
}
