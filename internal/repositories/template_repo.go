package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Ibrahim99575/authentication-system/internal/database"
	"github.com/Ibrahim99575/authentication-system/internal/models"
)

// BiometricTemplateRepository defines template persistence operations
type BiometricTemplateRepository interface {
	Create(ctx context.Context, template *models.BiometricTemplate) error
	GetByID(ctx context.Context, templateID string) (*models.BiometricTemplate, error)
	GetActiveByUserAndModality(ctx context.Context, userID, modality string) ([]models.BiometricTemplate, error)
	ListSummaries(ctx context.Context, userID string) ([]models.TemplateSummary, error)
	CountActive(ctx context.Context, userID string) (int, error)
	CountAll(ctx context.Context, userID string) (int, error)
	RecordUse(ctx context.Context, templateID string) error
	DeactivateByModality(ctx context.Context, userID, modality string) (int64, error)
	DeleteOwned(ctx context.Context, templateID, userID string) error
	SetPrimary(ctx context.Context, templateID, userID string) error
	GetStatus(ctx context.Context, userID string) (*models.BiometricStatus, error)
}

// templateRepoImpl implements BiometricTemplateRepository
type templateRepoImpl struct {
	db *database.DB
}

// NewBiometricTemplateRepository creates a new template repository
func NewBiometricTemplateRepository(db *database.DB) BiometricTemplateRepository {
	return &templateRepoImpl{db: db}
}

const templateColumns = `id, user_id, modality, payload_encrypted, payload_nonce,
	template_hash, template_version, quality_score, confidence_score,
	is_active, is_primary, verification_count, last_used_at,
	enrollment_device, enrollment_ip, source_hash, created_at, updated_at`

func scanTemplateRow(scanner rowScanner) (*models.BiometricTemplate, error) {
	var t models.BiometricTemplate

	err := scanner.Scan(
		&t.ID, &t.UserID, &t.Modality, &t.PayloadEncrypted, &t.PayloadNonce,
		&t.TemplateHash, &t.TemplateVersion, &t.QualityScore, &t.ConfidenceScore,
		&t.IsActive, &t.IsPrimary, &t.VerificationCount, &t.LastUsedAt,
		&t.EnrollmentDevice, &t.EnrollmentIP, &t.SourceHash, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &t, nil
}

// Create inserts a new template and fills in the generated fields. When the
// template arrives marked primary, the prior primary of the same modality is
// cleared in the same transaction so no commit point sees two primaries.
func (r *templateRepoImpl) Create(ctx context.Context, template *models.BiometricTemplate) error {
	query := `
		INSERT INTO biometric_templates
			(user_id, modality, payload_encrypted, payload_nonce, template_hash,
			 template_version, quality_score, confidence_score, is_active, is_primary,
			 enrollment_device, enrollment_ip, source_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at
	`

	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if template.IsPrimary {
			if _, err := tx.Exec(ctx,
				`UPDATE biometric_templates SET is_primary = FALSE, updated_at = NOW()
				 WHERE user_id = $1 AND modality = $2 AND is_primary = TRUE`,
				template.UserID, template.Modality,
			); err != nil {
				return fmt.Errorf("failed to clear previous primary: %w", err)
			}
		}

		err := tx.QueryRow(ctx, query,
			template.UserID,
			template.Modality,
			template.PayloadEncrypted,
			template.PayloadNonce,
			template.TemplateHash,
			template.TemplateVersion,
			template.QualityScore,
			template.ConfidenceScore,
			template.IsActive,
			template.IsPrimary,
			template.EnrollmentDevice,
			template.EnrollmentIP,
			template.SourceHash,
		).Scan(&template.ID, &template.CreatedAt, &template.UpdatedAt)

		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) {
				switch pgErr.Code {
				case "23503": // Foreign key violation
					return models.ErrNotFound
				case "23505": // Unique violation on the active-primary index
					return models.ErrConflict
				}
			}
			return fmt.Errorf("failed to create biometric template: %w", err)
		}

		return nil
	})
}

// GetByID retrieves a template by ID
func (r *templateRepoImpl) GetByID(ctx context.Context, templateID string) (*models.BiometricTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM biometric_templates WHERE id = $1`
	return scanTemplateRow(r.db.Pool.QueryRow(ctx, query, templateID))
}

// GetActiveByUserAndModality retrieves the active comparison set for one
// modality in enrollment order. The id tiebreak keeps the order total even
// for rows created in the same instant, which is what makes best-match
// tie-breaking deterministic.
func (r *templateRepoImpl) GetActiveByUserAndModality(ctx context.Context, userID, modality string) ([]models.BiometricTemplate, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM biometric_templates
		WHERE user_id = $1 AND modality = $2 AND is_active = TRUE
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, userID, modality)
	if err != nil {
		return nil, fmt.Errorf("failed to query biometric templates: %w", err)
	}
	defer rows.Close()

	var templates []models.BiometricTemplate
	for rows.Next() {
		t, err := scanTemplateRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan biometric template: %w", err)
		}
		templates = append(templates, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating biometric templates: %w", err)
	}

	return templates, nil
}

// ListSummaries lists a user's templates without payload bytes, newest
// first. Inactive templates are included so callers can see retired
// enrollments; the active-only filter belongs to verification lookups.
func (r *templateRepoImpl) ListSummaries(ctx context.Context, userID string) ([]models.TemplateSummary, error) {
	query := `
		SELECT id, modality, template_version, quality_score, confidence_score,
		       is_active, is_primary, verification_count, last_used_at, created_at
		FROM biometric_templates
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query template summaries: %w", err)
	}
	defer rows.Close()

	summaries := make([]models.TemplateSummary, 0)
	for rows.Next() {
		var s models.TemplateSummary
		if err := rows.Scan(
			&s.ID, &s.Modality, &s.TemplateVersion, &s.QualityScore, &s.ConfidenceScore,
			&s.IsActive, &s.IsPrimary, &s.VerificationCount, &s.LastUsedAt, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan template summary: %w", err)
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating template summaries: %w", err)
	}

	return summaries, nil
}

// CountActive returns the number of active templates a user holds
func (r *templateRepoImpl) CountActive(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM biometric_templates WHERE user_id = $1 AND is_active = TRUE`

	var count int
	if err := r.db.Pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active templates: %w", err)
	}
	return count, nil
}

// CountAll returns the number of templates a user holds, active or not
func (r *templateRepoImpl) CountAll(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM biometric_templates WHERE user_id = $1`

	var count int
	if err := r.db.Pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count templates: %w", err)
	}
	return count, nil
}

// RecordUse bumps the verification counter and last-used timestamp. Called
// only after a successful match.
func (r *templateRepoImpl) RecordUse(ctx context.Context, templateID string) error {
	query := `
		UPDATE biometric_templates
		SET verification_count = verification_count + 1, last_used_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`

	commandTag, err := r.db.Pool.Exec(ctx, query, templateID)
	if err != nil {
		return fmt.Errorf("failed to record template use: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// DeactivateByModality retires every active template of one modality.
// Primary designation is cleared along with activation so only live
// templates can carry it.
func (r *templateRepoImpl) DeactivateByModality(ctx context.Context, userID, modality string) (int64, error) {
	query := `
		UPDATE biometric_templates
		SET is_active = FALSE, is_primary = FALSE, updated_at = NOW()
		WHERE user_id = $1 AND modality = $2 AND is_active = TRUE
	`

	commandTag, err := r.db.Pool.Exec(ctx, query, userID, modality)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate templates: %w", err)
	}

	return commandTag.RowsAffected(), nil
}

// DeleteOwned removes a template only if it belongs to the given user.
// Missing and not-owned are indistinguishable to the caller.
func (r *templateRepoImpl) DeleteOwned(ctx context.Context, templateID, userID string) error {
	query := `DELETE FROM biometric_templates WHERE id = $1 AND user_id = $2`

	commandTag, err := r.db.Pool.Exec(ctx, query, templateID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete biometric template: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// SetPrimary promotes one active template to primary for its modality. The
// clear-then-set runs in a transaction so the one-primary-per-modality rule
// holds at every commit point.
func (r *templateRepoImpl) SetPrimary(ctx context.Context, templateID, userID string) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var modality string
		var isActive bool

		err := tx.QueryRow(ctx,
			`SELECT modality, is_active FROM biometric_templates WHERE id = $1 AND user_id = $2`,
			templateID, userID,
		).Scan(&modality, &isActive)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return models.ErrNotFound
			}
			return fmt.Errorf("failed to load template for promotion: %w", err)
		}

		if !isActive {
			return models.ErrBadRequest
		}

		if _, err := tx.Exec(ctx,
			`UPDATE biometric_templates SET is_primary = FALSE, updated_at = NOW()
			 WHERE user_id = $1 AND modality = $2 AND is_primary = TRUE AND id <> $3`,
			userID, modality, templateID,
		); err != nil {
			return fmt.Errorf("failed to clear previous primary: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE biometric_templates SET is_primary = TRUE, updated_at = NOW() WHERE id = $1`,
			templateID,
		); err != nil {
			return fmt.Errorf("failed to set primary template: %w", err)
		}

		return nil
	})
}

// GetStatus aggregates a user's enrollment state in one round trip plus a
// primary lookup.
func (r *templateRepoImpl) GetStatus(ctx context.Context, userID string) (*models.BiometricStatus, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_active),
			COUNT(*) FILTER (WHERE is_active AND modality = $2),
			COUNT(*) FILTER (WHERE is_active AND modality = $3),
			MAX(created_at) FILTER (WHERE is_active),
			AVG(quality_score) FILTER (WHERE is_active)
		FROM biometric_templates
		WHERE user_id = $1
	`

	status := &models.BiometricStatus{}
	err := r.db.Pool.QueryRow(ctx, query, userID, models.ModalityFace, models.ModalityFingerprint).Scan(
		&status.TotalTemplates,
		&status.ActiveTemplates,
		&status.FaceTemplates,
		&status.FingerprintTemplates,
		&status.LastEnrollment,
		&status.EnrollmentQualityAvg,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate template status: %w", err)
	}
	status.IsEnrolled = status.ActiveTemplates > 0

	// The status surface carries a single primary id; with per-modality
	// primaries the most recently designated one wins.
	var primaryID string
	err = r.db.Pool.QueryRow(ctx,
		`SELECT id FROM biometric_templates
		 WHERE user_id = $1 AND is_active = TRUE AND is_primary = TRUE
		 ORDER BY updated_at DESC LIMIT 1`,
		userID,
	).Scan(&primaryID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to resolve primary template: %w", err)
	}
	if err == nil {
		status.PrimaryTemplateID = &primaryID
	}

	return status, nil
}
