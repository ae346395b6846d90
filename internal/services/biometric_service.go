package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Ibrahim99575/authentication-system/internal/biometric"
	"github.com/Ibrahim99575/authentication-system/internal/models"
	"github.com/Ibrahim99575/authentication-system/internal/repositories"
	pkglogger "github.com/Ibrahim99575/authentication-system/pkg/logger"
)

// BiometricUserStore is the slice of the user repository the biometric
// service needs to maintain the enrollment flag
type BiometricUserStore interface {
	SetEnrolled(ctx context.Context, id string, enrolled bool) error
}

// ThresholdConfig holds the modality default thresholds applied when the
// caller does not override
type ThresholdConfig struct {
	FaceThreshold        float64
	FingerprintThreshold float64
}

// EnrollParams carries one enrollment request into the service
type EnrollParams struct {
	UserID          string
	Modality        string
	Payload         string // base64-encoded sample
	ReplaceExisting bool
	DeviceInfo      *string
	IPAddress       string
}

// VerifyParams carries one verification request into the service
type VerifyParams struct {
	UserID    string
	Modality  string
	Payload   string   // base64-encoded sample
	Threshold *float64 // optional override of the modality default
	IPAddress string
}

// BiometricService drives the enrollment and verification pipeline:
// decode, extract, score, decide, persist. Every call is atomic end-to-end;
// no intermediate state survives between requests. A false Success on the
// returned result is a normal negative outcome, while returned errors mean
// the input was rejected or the system failed.
type BiometricService struct {
	templates   repositories.BiometricTemplateRepository
	users       BiometricUserStore
	cipher      *biometric.TemplateCipher
	extractors  map[string]biometric.Extractor
	thresholds  ThresholdConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewBiometricService creates a new BiometricService. Extractors are indexed
// by their reported modality.
func NewBiometricService(
	templates repositories.BiometricTemplateRepository,
	users BiometricUserStore,
	cipher *biometric.TemplateCipher,
	extractors []biometric.Extractor,
	thresholds ThresholdConfig,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *BiometricService {
	byModality := make(map[string]biometric.Extractor, len(extractors))
	for _, e := range extractors {
		byModality[e.Modality()] = e
	}

	return &BiometricService{
		templates:   templates,
		users:       users,
		cipher:      cipher,
		extractors:  byModality,
		thresholds:  thresholds,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Enroll extracts the best-quality sample from the payload and persists it
// as a new active primary template for the modality. With ReplaceExisting
// the prior active templates of that modality are retired first; otherwise
// they stay active and only lose primary designation.
func (s *BiometricService) Enroll(ctx context.Context, params EnrollParams) (*models.BiometricResult, error) {
	start := time.Now()

	extractor, err := s.extractorFor(params.Modality)
	if err != nil {
		return nil, err
	}

	raw, err := biometric.DecodePayload(params.Payload)
	if err != nil {
		return nil, err
	}

	samples := extractor.Extract(raw)
	if len(samples) == 0 {
		return &models.BiometricResult{
			Success:          false,
			Message:          noSignalMessage(params.Modality),
			FaceDetected:     false,
			ProcessingTimeMs: elapsedMs(start),
		}, nil
	}

	// Highest quality wins; a strict comparison keeps the first sample on ties.
	best := samples[0]
	for _, sample := range samples[1:] {
		if sample.Quality > best.Quality {
			best = sample
		}
	}

	plaintext, err := best.Vector.Marshal()
	if err != nil {
		s.logger.Error("failed to serialize feature vector", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	ciphertext, nonce, err := s.cipher.Encrypt(plaintext)
	if err != nil {
		s.logger.Error("failed to encrypt template", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if params.ReplaceExisting {
		retired, err := s.templates.DeactivateByModality(ctx, params.UserID, params.Modality)
		if err != nil {
			s.logger.Error("failed to retire prior templates",
				slog.String("user_id", params.UserID),
				slog.String("modality", params.Modality),
				slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		if retired > 0 {
			s.logger.Info("retired prior templates",
				slog.String("user_id", params.UserID),
				slog.String("modality", params.Modality),
				slog.Int64("count", retired))
		}
	}

	template := &models.BiometricTemplate{
		UserID:           params.UserID,
		Modality:         params.Modality,
		PayloadEncrypted: ciphertext,
		PayloadNonce:     nonce,
		TemplateHash:     biometric.PayloadHash(plaintext),
		TemplateVersion:  models.TemplateVersion,
		QualityScore:     best.Quality,
		ConfidenceScore:  extractor.EnrollmentConfidence(),
		IsActive:         true,
		IsPrimary:        true,
		EnrollmentDevice: params.DeviceInfo,
		EnrollmentIP:     optionalString(params.IPAddress),
		SourceHash:       biometric.PayloadHash(raw),
	}

	if err := s.templates.Create(ctx, template); err != nil {
		s.logger.Error("failed to persist template",
			slog.String("user_id", params.UserID),
			slog.String("modality", params.Modality),
			slog.Any("error", err))
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, models.ErrInternalServer
	}

	if err := s.users.SetEnrolled(ctx, params.UserID, true); err != nil {
		s.logger.Error("failed to set enrollment flag",
			slog.String("user_id", params.UserID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("biometric template enrolled",
		slog.String("user_id", params.UserID),
		slog.String("modality", params.Modality),
		slog.String("template_id", template.ID),
		slog.Float64("quality_score", best.Quality))
	s.auditLogger.LogEnrollment("biometric_enrolled", params.UserID, params.Modality, params.IPAddress, true)

	quality := best.Quality
	return &models.BiometricResult{
		Success:          true,
		Message:          "Biometric template enrolled successfully",
		FaceDetected:     true,
		QualityScore:     &quality,
		ProcessingTimeMs: elapsedMs(start),
		TemplateID:       &template.ID,
	}, nil
}

// Verify scores the payload against every active template of the modality
// and accepts when the single best score clears the effective threshold.
// The comparison keeps a global maximum across all extracted samples and
// all templates; templates are iterated in enrollment order, so the
// earliest-enrolled template wins score ties.
func (s *BiometricService) Verify(ctx context.Context, params VerifyParams) (*models.BiometricResult, error) {
	start := time.Now()

	extractor, err := s.extractorFor(params.Modality)
	if err != nil {
		return nil, err
	}

	threshold := s.effectiveThreshold(params.Modality, params.Threshold)

	templates, err := s.templates.GetActiveByUserAndModality(ctx, params.UserID, params.Modality)
	if err != nil {
		s.logger.Error("failed to load templates for verification",
			slog.String("user_id", params.UserID),
			slog.String("modality", params.Modality),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if len(templates) == 0 {
		return &models.BiometricResult{
			Success:          false,
			Message:          "No biometric templates found for user",
			ThresholdUsed:    &threshold,
			FaceDetected:     false,
			ProcessingTimeMs: elapsedMs(start),
		}, nil
	}

	raw, err := biometric.DecodePayload(params.Payload)
	if err != nil {
		return nil, err
	}

	samples := extractor.Extract(raw)
	if len(samples) == 0 {
		return &models.BiometricResult{
			Success:          false,
			Message:          noSignalMessage(params.Modality),
			ThresholdUsed:    &threshold,
			FaceDetected:     false,
			ProcessingTimeMs: elapsedMs(start),
		}, nil
	}

	bestScore := 0.0
	var bestTemplate *models.BiometricTemplate

	for i := range templates {
		template := &templates[i]

		plaintext, err := s.cipher.Decrypt(template.PayloadEncrypted, template.PayloadNonce)
		if err != nil {
			// An undecryptable template (rotated secret, corrupt row) is
			// skipped rather than failing the whole comparison.
			s.logger.Error("failed to decrypt template",
				slog.String("template_id", template.ID),
				slog.Any("error", err))
			continue
		}

		stored, err := biometric.UnmarshalVector(plaintext)
		if err != nil {
			s.logger.Error("failed to deserialize template vector",
				slog.String("template_id", template.ID),
				slog.Any("error", err))
			continue
		}

		for _, sample := range samples {
			if score := biometric.CosineSimilarity(stored, sample.Vector); score > bestScore {
				bestScore = score
				bestTemplate = template
			}
		}
	}

	success := bestScore >= threshold

	var matchedID *string
	if success && bestTemplate != nil {
		matchedID = &bestTemplate.ID
		// Usage stats are best-effort; a failed counter bump never turns a
		// correct accept into a reject.
		if err := s.templates.RecordUse(ctx, bestTemplate.ID); err != nil {
			s.logger.Error("failed to record template use",
				slog.String("template_id", bestTemplate.ID),
				slog.Any("error", err))
		}
	}

	score := bestScore
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:       "biometric_verification",
		UserID:          params.UserID,
		IPAddress:       params.IPAddress,
		Modality:        params.Modality,
		SimilarityScore: &score,
		Success:         success,
	})

	message := "Verification failed"
	if success {
		message = "Verification successful"
	}

	return &models.BiometricResult{
		Success:          success,
		Message:          message,
		SimilarityScore:  &score,
		ThresholdUsed:    &threshold,
		FaceDetected:     true,
		ProcessingTimeMs: elapsedMs(start),
		TemplateID:       matchedID,
	}, nil
}

// Status aggregates the user's enrollment state.
func (s *BiometricService) Status(ctx context.Context, userID string) (*models.BiometricStatus, error) {
	status, err := s.templates.GetStatus(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load biometric status",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return status, nil
}

// ListTemplates lists the user's templates, payload bytes excluded.
func (s *BiometricService) ListTemplates(ctx context.Context, userID string) ([]models.TemplateSummary, error) {
	summaries, err := s.templates.ListSummaries(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list templates",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return summaries, nil
}

// DeleteTemplate removes one of the user's templates and recomputes the
// enrollment flag. Templates belonging to other users are indistinguishable
// from missing ones.
func (s *BiometricService) DeleteTemplate(ctx context.Context, userID, templateID, ipAddress string) error {
	if err := s.templates.DeleteOwned(ctx, templateID, userID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to delete template",
			slog.String("template_id", templateID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	remaining, err := s.templates.CountActive(ctx, userID)
	if err != nil {
		s.logger.Error("failed to count templates after deletion",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.users.SetEnrolled(ctx, userID, remaining > 0); err != nil {
		s.logger.Error("failed to recompute enrollment flag",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("biometric template deleted",
		slog.String("user_id", userID),
		slog.String("template_id", templateID))
	s.auditLogger.LogEnrollment("biometric_template_deleted", userID, "", ipAddress, true)

	return nil
}

// SetPrimary promotes one of the user's active templates to primary for its
// modality.
func (s *BiometricService) SetPrimary(ctx context.Context, userID, templateID, ipAddress string) error {
	if err := s.templates.SetPrimary(ctx, templateID, userID); err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			return models.ErrNotFound
		case errors.Is(err, models.ErrBadRequest):
			// Inactive templates cannot be primary.
			return fmt.Errorf("%w: template is not active", models.ErrConflict)
		default:
			s.logger.Error("failed to set primary template",
				slog.String("template_id", templateID),
				slog.Any("error", err))
			return models.ErrInternalServer
		}
	}

	s.logger.Info("primary template changed",
		slog.String("user_id", userID),
		slog.String("template_id", templateID))
	s.auditLogger.LogEnrollment("biometric_primary_changed", userID, "", ipAddress, true)

	return nil
}

func (s *BiometricService) extractorFor(modality string) (biometric.Extractor, error) {
	extractor, ok := s.extractors[modality]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported modality %q", models.ErrBadRequest, modality)
	}
	return extractor, nil
}

func (s *BiometricService) effectiveThreshold(modality string, override *float64) float64 {
	if override != nil {
		return *override
	}
	if modality == models.ModalityFingerprint {
		return s.thresholds.FingerprintThreshold
	}
	return s.thresholds.FaceThreshold
}

func noSignalMessage(modality string) string {
	if modality == models.ModalityFingerprint {
		return "Failed to extract fingerprint features"
	}
	return "No valid face encoding could be extracted"
}

func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
