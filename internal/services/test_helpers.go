package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/Ibrahim99575/authentication-system/internal/biometric"
	"github.com/Ibrahim99575/authentication-system/internal/models"
	pkglogger "github.com/Ibrahim99575/authentication-system/pkg/logger"
)

// NewTestLogger returns a logger that discards everything
func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewTestAuditLogger returns an audit logger backed by a discarding logger
func NewTestAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(NewTestLogger())
}

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	CreateFunc          func(ctx context.Context, user *models.User) (*models.User, error)
	GetByIDFunc         func(ctx context.Context, id string) (*models.User, error)
	GetByUsernameFunc   func(ctx context.Context, username string) (*models.User, error)
	GetByEmailFunc      func(ctx context.Context, email string) (*models.User, error)
	GetByLoginFunc      func(ctx context.Context, identifier string) (*models.User, error)
	UpdateProfileFunc   func(ctx context.Context, id string, fullName string, phone, avatarURL *string) (*models.User, error)
	UpdatePasswordFunc  func(ctx context.Context, id, passwordHash string) error
	UpdateLastLoginFunc func(ctx context.Context, id string) error
	SetLockedUntilFunc  func(ctx context.Context, id string, until *time.Time) error
	SetEnrolledFunc     func(ctx context.Context, id string, enrolled bool) error
	DeactivateFunc      func(ctx context.Context, id string) error
	DeleteFunc          func(ctx context.Context, id string) error
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	created := *user
	created.ID = "user_" + user.Username + "_test"
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	return &created, nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByLogin(ctx context.Context, identifier string) (*models.User, error) {
	if m.GetByLoginFunc != nil {
		return m.GetByLoginFunc(ctx, identifier)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) UpdateProfile(ctx context.Context, id string, fullName string, phone, avatarURL *string) (*models.User, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, id, fullName, phone, avatarURL)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, id, passwordHash)
	}
	return nil
}

func (m *MockUserRepository) UpdateLastLogin(ctx context.Context, id string) error {
	if m.UpdateLastLoginFunc != nil {
		return m.UpdateLastLoginFunc(ctx, id)
	}
	return nil
}

func (m *MockUserRepository) SetLockedUntil(ctx context.Context, id string, until *time.Time) error {
	if m.SetLockedUntilFunc != nil {
		return m.SetLockedUntilFunc(ctx, id, until)
	}
	return nil
}

func (m *MockUserRepository) SetEnrolled(ctx context.Context, id string, enrolled bool) error {
	if m.SetEnrolledFunc != nil {
		return m.SetEnrolledFunc(ctx, id, enrolled)
	}
	return nil
}

func (m *MockUserRepository) Deactivate(ctx context.Context, id string) error {
	if m.DeactivateFunc != nil {
		return m.DeactivateFunc(ctx, id)
	}
	return nil
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// MockTemplateRepository implements repositories.BiometricTemplateRepository
// for testing. It also serves as a TemplateCounter.
type MockTemplateRepository struct {
	CreateFunc                     func(ctx context.Context, template *models.BiometricTemplate) error
	GetByIDFunc                    func(ctx context.Context, templateID string) (*models.BiometricTemplate, error)
	GetActiveByUserAndModalityFunc func(ctx context.Context, userID, modality string) ([]models.BiometricTemplate, error)
	ListSummariesFunc              func(ctx context.Context, userID string) ([]models.TemplateSummary, error)
	CountActiveFunc                func(ctx context.Context, userID string) (int, error)
	CountAllFunc                   func(ctx context.Context, userID string) (int, error)
	RecordUseFunc                  func(ctx context.Context, templateID string) error
	DeactivateByModalityFunc       func(ctx context.Context, userID, modality string) (int64, error)
	DeleteOwnedFunc                func(ctx context.Context, templateID, userID string) error
	SetPrimaryFunc                 func(ctx context.Context, templateID, userID string) error
	GetStatusFunc                  func(ctx context.Context, userID string) (*models.BiometricStatus, error)
}

func (m *MockTemplateRepository) Create(ctx context.Context, template *models.BiometricTemplate) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, template)
	}
	// Auto-generate ID for testing
	template.ID = "tpl_" + template.UserID + "_test"
	template.CreatedAt = time.Now()
	template.UpdatedAt = template.CreatedAt
	return nil
}

func (m *MockTemplateRepository) GetByID(ctx context.Context, templateID string) (*models.BiometricTemplate, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, templateID)
	}
	return nil, models.ErrNotFound
}

func (m *MockTemplateRepository) GetActiveByUserAndModality(ctx context.Context, userID, modality string) ([]models.BiometricTemplate, error) {
	if m.GetActiveByUserAndModalityFunc != nil {
		return m.GetActiveByUserAndModalityFunc(ctx, userID, modality)
	}
	return []models.BiometricTemplate{}, nil
}

func (m *MockTemplateRepository) ListSummaries(ctx context.Context, userID string) ([]models.TemplateSummary, error) {
	if m.ListSummariesFunc != nil {
		return m.ListSummariesFunc(ctx, userID)
	}
	return []models.TemplateSummary{}, nil
}

func (m *MockTemplateRepository) CountActive(ctx context.Context, userID string) (int, error) {
	if m.CountActiveFunc != nil {
		return m.CountActiveFunc(ctx, userID)
	}
	return 0, nil
}

func (m *MockTemplateRepository) CountAll(ctx context.Context, userID string) (int, error) {
	if m.CountAllFunc != nil {
		return m.CountAllFunc(ctx, userID)
	}
	return 0, nil
}

func (m *MockTemplateRepository) RecordUse(ctx context.Context, templateID string) error {
	if m.RecordUseFunc != nil {
		return m.RecordUseFunc(ctx, templateID)
	}
	return nil
}

func (m *MockTemplateRepository) DeactivateByModality(ctx context.Context, userID, modality string) (int64, error) {
	if m.DeactivateByModalityFunc != nil {
		return m.DeactivateByModalityFunc(ctx, userID, modality)
	}
	return 0, nil
}

func (m *MockTemplateRepository) DeleteOwned(ctx context.Context, templateID, userID string) error {
	if m.DeleteOwnedFunc != nil {
		return m.DeleteOwnedFunc(ctx, templateID, userID)
	}
	return nil
}

func (m *MockTemplateRepository) SetPrimary(ctx context.Context, templateID, userID string) error {
	if m.SetPrimaryFunc != nil {
		return m.SetPrimaryFunc(ctx, templateID, userID)
	}
	return nil
}

func (m *MockTemplateRepository) GetStatus(ctx context.Context, userID string) (*models.BiometricStatus, error) {
	if m.GetStatusFunc != nil {
		return m.GetStatusFunc(ctx, userID)
	}
	return &models.BiometricStatus{}, nil
}

// MockLockoutRepository implements LockoutRepository for testing
type MockLockoutRepository struct {
	RecordAttemptFunc           func(ctx context.Context, attempt *models.AuthAttempt) error
	CountFailuresByUsernameFunc func(ctx context.Context, username string, since time.Time) (int, error)
	CountFailuresByIPFunc       func(ctx context.Context, ipAddress string, since time.Time) (int, error)
	CountFailuresByDeviceFunc   func(ctx context.Context, fingerprint string, since time.Time) (int, error)
	LastSuccessTimeFunc         func(ctx context.Context, username string) (*time.Time, error)
	RecordedAttempts            []*models.AuthAttempt
}

func (m *MockLockoutRepository) RecordAttempt(ctx context.Context, attempt *models.AuthAttempt) error {
	if m.RecordAttemptFunc != nil {
		return m.RecordAttemptFunc(ctx, attempt)
	}
	m.RecordedAttempts = append(m.RecordedAttempts, attempt)
	return nil
}

func (m *MockLockoutRepository) CountFailuresByUsername(ctx context.Context, username string, since time.Time) (int, error) {
	if m.CountFailuresByUsernameFunc != nil {
		return m.CountFailuresByUsernameFunc(ctx, username, since)
	}
	return 0, nil
}

func (m *MockLockoutRepository) CountFailuresByIP(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	if m.CountFailuresByIPFunc != nil {
		return m.CountFailuresByIPFunc(ctx, ipAddress, since)
	}
	return 0, nil
}

func (m *MockLockoutRepository) CountFailuresByDevice(ctx context.Context, fingerprint string, since time.Time) (int, error) {
	if m.CountFailuresByDeviceFunc != nil {
		return m.CountFailuresByDeviceFunc(ctx, fingerprint, since)
	}
	return 0, nil
}

func (m *MockLockoutRepository) LastSuccessTime(ctx context.Context, username string) (*time.Time, error) {
	if m.LastSuccessTimeFunc != nil {
		return m.LastSuccessTimeFunc(ctx, username)
	}
	return nil, nil
}

// MockLockoutGuard implements LockoutGuard for testing
type MockLockoutGuard struct {
	CheckLockoutFunc  func(ctx context.Context, username, ipAddress, userAgent string) (bool, *time.Duration, error)
	RecordAttemptFunc func(ctx context.Context, attempt *models.AuthAttempt) error
	RecordedAttempts  []*models.AuthAttempt
}

func (m *MockLockoutGuard) CheckLockout(ctx context.Context, username, ipAddress, userAgent string) (bool, *time.Duration, error) {
	if m.CheckLockoutFunc != nil {
		return m.CheckLockoutFunc(ctx, username, ipAddress, userAgent)
	}
	return true, nil, nil
}

func (m *MockLockoutGuard) RecordAttempt(ctx context.Context, attempt *models.AuthAttempt) error {
	if m.RecordAttemptFunc != nil {
		return m.RecordAttemptFunc(ctx, attempt)
	}
	m.RecordedAttempts = append(m.RecordedAttempts, attempt)
	return nil
}

// MockBiometricAuthenticator implements BiometricAuthenticator for testing
type MockBiometricAuthenticator struct {
	EnrollFunc func(ctx context.Context, params EnrollParams) (*models.BiometricResult, error)
	VerifyFunc func(ctx context.Context, params VerifyParams) (*models.BiometricResult, error)
}

func (m *MockBiometricAuthenticator) Enroll(ctx context.Context, params EnrollParams) (*models.BiometricResult, error) {
	if m.EnrollFunc != nil {
		return m.EnrollFunc(ctx, params)
	}
	quality := 0.9
	return &models.BiometricResult{
		Success:      true,
		Message:      "Biometric template enrolled successfully",
		FaceDetected: true,
		QualityScore: &quality,
	}, nil
}

func (m *MockBiometricAuthenticator) Verify(ctx context.Context, params VerifyParams) (*models.BiometricResult, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, params)
	}
	score := 0.95
	threshold := 0.6
	return &models.BiometricResult{
		Success:         true,
		Message:         "Verification successful",
		SimilarityScore: &score,
		ThresholdUsed:   &threshold,
		FaceDetected:    true,
	}, nil
}

// MockTimingDelay implements DelayWaiter for testing
type MockTimingDelay struct {
	WaitFromFunc func(startTime time.Time, success bool)
}

func (m *MockTimingDelay) WaitFrom(startTime time.Time, success bool) {
	if m.WaitFromFunc != nil {
		m.WaitFromFunc(startTime, success)
	}
}

// MockPasswordResetRepository implements PasswordResetRepository for testing
type MockPasswordResetRepository struct {
	CreateFunc                  func(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*models.PasswordResetToken, error)
	GetByTokenHashFunc          func(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error)
	MarkAsUsedFunc              func(ctx context.Context, id string) error
	InvalidatePendingByUserFunc func(ctx context.Context, userID string) error
}

func (m *MockPasswordResetRepository) Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*models.PasswordResetToken, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, userID, tokenHash, expiresAt)
	}
	return &models.PasswordResetToken{ID: "reset_123", UserID: userID, TokenHash: tokenHash, ExpiresAt: expiresAt, CreatedAt: time.Now()}, nil
}

func (m *MockPasswordResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	if m.GetByTokenHashFunc != nil {
		return m.GetByTokenHashFunc(ctx, tokenHash)
	}
	return nil, models.ErrNotFound
}

func (m *MockPasswordResetRepository) MarkAsUsed(ctx context.Context, id string) error {
	if m.MarkAsUsedFunc != nil {
		return m.MarkAsUsedFunc(ctx, id)
	}
	return nil
}

func (m *MockPasswordResetRepository) InvalidatePendingByUser(ctx context.Context, userID string) error {
	if m.InvalidatePendingByUserFunc != nil {
		return m.InvalidatePendingByUserFunc(ctx, userID)
	}
	return nil
}

// MockEmailService implements EmailService for testing
type MockEmailService struct {
	SendPasswordResetEmailFunc func(ctx context.Context, email, token string, expiresAt time.Time) error
}

func (m *MockEmailService) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.SendPasswordResetEmailFunc != nil {
		return m.SendPasswordResetEmailFunc(ctx, email, token, expiresAt)
	}
	return nil
}

// MockAttemptStats implements AttemptStatsSource for testing
type MockAttemptStats struct {
	CountByUserFunc func(ctx context.Context, userID string) (total, successful, failed int, err error)
}

func (m *MockAttemptStats) CountByUser(ctx context.Context, userID string) (total, successful, failed int, err error) {
	if m.CountByUserFunc != nil {
		return m.CountByUserFunc(ctx, userID)
	}
	return 0, 0, 0, nil
}

// MockExtractor implements biometric.Extractor for testing
type MockExtractor struct {
	ExtractFunc  func(raw []byte) []biometric.Sample
	ModalityName string
	Confidence   float64
}

func (m *MockExtractor) Extract(raw []byte) []biometric.Sample {
	if m.ExtractFunc != nil {
		return m.ExtractFunc(raw)
	}
	return nil
}

func (m *MockExtractor) Modality() string {
	if m.ModalityName != "" {
		return m.ModalityName
	}
	return models.ModalityFace
}

func (m *MockExtractor) EnrollmentConfidence() float64 {
	if m.Confidence != 0 {
		return m.Confidence
	}
	return 0.9
}

// ============================================================================
// Test Data Builders
// ============================================================================

// NewTestUser creates an active, verified user for testing
func NewTestUser(id, username, email string) *models.User {
	now := time.Now()
	return &models.User{
		ID:         id,
		Username:   username,
		Email:      email,
		FullName:   "Test User",
		IsActive:   true,
		IsVerified: true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// NewTestUserWithPassword creates a user with the given password hash
func NewTestUserWithPassword(id, username, email, passwordHash string) *models.User {
	user := NewTestUser(id, username, email)
	user.PasswordHash = passwordHash
	return user
}

// NewTestUserLocked creates a user locked for the next 30 minutes
func NewTestUserLocked(id, username, email string) *models.User {
	user := NewTestUser(id, username, email)
	lockedUntil := time.Now().Add(30 * time.Minute)
	user.LockedUntil = &lockedUntil
	return user
}

// NewTestUserInactive creates a deactivated user
func NewTestUserInactive(id, username, email string) *models.User {
	user := NewTestUser(id, username, email)
	user.IsActive = false
	return user
}

// NewTestUserEnrolled creates a user with the enrollment flag set
func NewTestUserEnrolled(id, username, email string) *models.User {
	user := NewTestUser(id, username, email)
	user.IsEnrolled = true
	return user
}

// NewTestTemplate creates an active biometric template
func NewTestTemplate(id, userID, modality string, encrypted, nonce []byte) *models.BiometricTemplate {
	now := time.Now()
	return &models.BiometricTemplate{
		ID:               id,
		UserID:           userID,
		Modality:         modality,
		PayloadEncrypted: encrypted,
		PayloadNonce:     nonce,
		TemplateVersion:  models.TemplateVersion,
		QualityScore:     0.8,
		ConfidenceScore:  0.9,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// NewTestResetToken creates a valid reset token expiring in one hour
func NewTestResetToken(id, userID string) *models.PasswordResetToken {
	return &models.PasswordResetToken{
		ID:        id,
		UserID:    userID,
		TokenHash: "hash_" + id,
		ExpiresAt: time.Now().Add(1 * time.Hour),
		CreatedAt: time.Now(),
	}
}

// NewTestResetTokenExpired creates an expired reset token
func NewTestResetTokenExpired(id, userID string) *models.PasswordResetToken {
	token := NewTestResetToken(id, userID)
	token.ExpiresAt = time.Now().Add(-1 * time.Hour)
	return token
}

// NewTestResetTokenUsed creates an already redeemed reset token
func NewTestResetTokenUsed(id, userID string) *models.PasswordResetToken {
	token := NewTestResetToken(id, userID)
	usedAt := time.Now().Add(-10 * time.Minute)
	token.UsedAt = &usedAt
	return token
}
