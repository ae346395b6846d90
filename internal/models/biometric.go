package models

import (
	"time"
)

// Biometric modalities
const (
	ModalityFace        = "face"
	ModalityFingerprint = "fingerprint"
)

// ValidModality reports whether m names a supported biometric modality.
func ValidModality(m string) bool {
	return m == ModalityFace || m == ModalityFingerprint
}

// TemplateVersion identifies the feature vector layout stored in templates.
const TemplateVersion = "1.0"

// BiometricTemplate is the stored representation of one enrolled biometric
// sample. The feature vector is held only in encrypted form; plaintext exists
// transiently inside the verification comparison loop.
type BiometricTemplate struct {
	ID                string
	UserID            string
	Modality          string
	PayloadEncrypted  []byte // AES-256-GCM ciphertext of the serialized feature vector
	PayloadNonce      []byte // GCM nonce (12 bytes)
	TemplateHash      string // sha256 hex of the plaintext serialized vector, for dedup/equality only
	TemplateVersion   string
	QualityScore      float64
	ConfidenceScore   float64
	IsActive          bool
	IsPrimary         bool
	VerificationCount int
	LastUsedAt        *time.Time
	EnrollmentDevice  *string
	EnrollmentIP      *string
	SourceHash        string // sha256 hex of the raw decoded payload the vector came from
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TemplateSummary is the non-sensitive projection of a template exposed to
// callers. It never carries payload bytes, encrypted or otherwise.
type TemplateSummary struct {
	ID                string     `json:"id"`
	Modality          string     `json:"modality"`
	TemplateVersion   string     `json:"template_version"`
	QualityScore      float64    `json:"quality_score"`
	ConfidenceScore   float64    `json:"confidence_score"`
	IsActive          bool       `json:"is_active"`
	IsPrimary         bool       `json:"is_primary"`
	VerificationCount int        `json:"verification_count"`
	LastUsedAt        *time.Time `json:"last_used,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Summary strips a template down to its exposable fields.
func (t *BiometricTemplate) Summary() TemplateSummary {
	return TemplateSummary{
		ID:                t.ID,
		Modality:          t.Modality,
		TemplateVersion:   t.TemplateVersion,
		QualityScore:      t.QualityScore,
		ConfidenceScore:   t.ConfidenceScore,
		IsActive:          t.IsActive,
		IsPrimary:         t.IsPrimary,
		VerificationCount: t.VerificationCount,
		LastUsedAt:        t.LastUsedAt,
		CreatedAt:         t.CreatedAt,
	}
}

// BiometricResult is the outcome of one enrollment or verification call.
// A false Success with a populated score/threshold is a normal negative
// outcome (below threshold, nothing enrolled), not a system error.
type BiometricResult struct {
	Success         bool     `json:"success"`
	Message         string   `json:"message"`
	SimilarityScore *float64 `json:"similarity_score,omitempty"`
	ThresholdUsed   *float64 `json:"threshold_used,omitempty"`
	// FaceDetected doubles as a generic signal-detected flag for
	// fingerprint payloads.
	FaceDetected     bool     `json:"face_detected"`
	QualityScore     *float64 `json:"quality_score,omitempty"`
	ProcessingTimeMs int64    `json:"processing_time_ms"`
	TemplateID       *string  `json:"template_id,omitempty"`
}

// BiometricStatus aggregates a user's enrollment state.
type BiometricStatus struct {
	IsEnrolled           bool       `json:"is_enrolled"`
	TotalTemplates       int        `json:"total_templates"`
	ActiveTemplates      int        `json:"active_templates"`
	FaceTemplates        int        `json:"face_templates"`
	FingerprintTemplates int        `json:"fingerprint_templates"`
	PrimaryTemplateID    *string    `json:"primary_template_id,omitempty"`
	LastEnrollment       *time.Time `json:"last_enrollment,omitempty"`
	EnrollmentQualityAvg *float64   `json:"enrollment_quality_avg,omitempty"`
}
