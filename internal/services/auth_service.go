package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Ibrahim99575/authentication-system/internal/auth"
	"github.com/Ibrahim99575/authentication-system/internal/biometric"
	"github.com/Ibrahim99575/authentication-system/internal/models"
	pkgauth "github.com/Ibrahim99575/authentication-system/pkg/auth"
	pkglogger "github.com/Ibrahim99575/authentication-system/pkg/logger"
)

// LockoutGuard gates login attempts and maintains the attempt ledger
type LockoutGuard interface {
	CheckLockout(ctx context.Context, username, ipAddress, userAgent string) (bool, *time.Duration, error)
	RecordAttempt(ctx context.Context, attempt *models.AuthAttempt) error
}

// BiometricAuthenticator is the slice of the biometric service the auth
// flows depend on
type BiometricAuthenticator interface {
	Enroll(ctx context.Context, params EnrollParams) (*models.BiometricResult, error)
	Verify(ctx context.Context, params VerifyParams) (*models.BiometricResult, error)
}

// DelayWaiter equalizes failure latency against account enumeration
type DelayWaiter interface {
	WaitFrom(startTime time.Time, success bool)
}

// AuthService handles registration, login, and token lifecycle
type AuthService struct {
	users       UserRepository
	tm          *auth.TokenManager
	lockout     LockoutGuard
	biometrics  BiometricAuthenticator
	timing      DelayWaiter
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	users UserRepository,
	tm *auth.TokenManager,
	lockout LockoutGuard,
	biometrics BiometricAuthenticator,
	timing DelayWaiter,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		users:       users,
		tm:          tm,
		lockout:     lockout,
		biometrics:  biometrics,
		timing:      timing,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// UserResponse represents a user in HTTP responses
type UserResponse struct {
	ID         string     `json:"id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	FullName   string     `json:"full_name,omitempty"`
	Phone      *string    `json:"phone,omitempty"`
	AvatarURL  *string    `json:"avatar_url,omitempty"`
	IsActive   bool       `json:"is_active"`
	IsVerified bool       `json:"is_verified"`
	IsEnrolled bool       `json:"is_enrolled"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TokenPair is one issued session: bearer access token plus refresh token
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int64         `json:"expires_in"` // access token lifetime in seconds
	User         *UserResponse `json:"user"`
}

// AuthResponse is the envelope returned by registration and login operations
type AuthResponse struct {
	Success          bool          `json:"success"`
	Message          string        `json:"message"`
	User             *UserResponse `json:"user,omitempty"`
	Token            *TokenPair    `json:"token,omitempty"`
	BiometricScore   *float64      `json:"biometric_score,omitempty"`
	ProcessingTimeMs *int64        `json:"processing_time_ms,omitempty"`
}

// RegisterParams carries one registration request
type RegisterParams struct {
	Username  string
	Email     string
	Password  string
	FullName  string
	Phone     *string
	IPAddress string
	UserAgent string
}

// LoginParams carries one password login request
type LoginParams struct {
	Identifier string // username or email
	Password   string
	IPAddress  string
	UserAgent  string
}

// BiometricLoginParams carries one combined password+biometric login request
type BiometricLoginParams struct {
	LoginParams
	Modality  string
	Payload   string
	Threshold *float64
}

// Register creates a new user account. No session is issued; the caller
// logs in separately.
func (s *AuthService) Register(ctx context.Context, params RegisterParams) (*AuthResponse, error) {
	user, err := s.createUser(ctx, params)
	if err != nil {
		return nil, err
	}

	s.recordAttempt(ctx, &models.AuthAttempt{
		UserID:    &user.ID,
		Username:  user.Username,
		AuthType:  models.AuthTypeRegistration,
		Result:    models.AuthResultSuccess,
		IPAddress: params.IPAddress,
		UserAgent: params.UserAgent,
	})
	s.auditLogger.LogAccountAction("user_registered", user.ID, params.IPAddress, nil)

	return &AuthResponse{
		Success: true,
		Message: "User registered successfully",
		User:    toUserResponse(user),
	}, nil
}

// RegisterWithBiometric creates a new user account, enrolls the supplied
// biometric sample, and issues a first session. A failed enrollment does not
// roll back the registration; the account simply starts without a template.
func (s *AuthService) RegisterWithBiometric(ctx context.Context, params RegisterParams, modality, payload string) (*AuthResponse, error) {
	start := time.Now()

	user, err := s.createUser(ctx, params)
	if err != nil {
		return nil, err
	}

	enrollment, err := s.biometrics.Enroll(ctx, EnrollParams{
		UserID:    user.ID,
		Modality:  modality,
		Payload:   payload,
		IPAddress: params.IPAddress,
	})
	if err != nil {
		s.logger.Warn("enrollment during registration rejected",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	} else if enrollment.Success {
		user.IsEnrolled = true
	} else {
		s.logger.Info("enrollment during registration yielded no template",
			slog.String("user_id", user.ID),
			slog.String("reason", enrollment.Message))
	}

	pair, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}

	s.recordAttempt(ctx, &models.AuthAttempt{
		UserID:      &user.ID,
		Username:    user.Username,
		AuthType:    models.AuthTypeRegistration,
		Result:      models.AuthResultSuccess,
		Modality:    &modality,
		IPAddress:   params.IPAddress,
		UserAgent:   params.UserAgent,
		TokenIssued: true,
	})
	s.auditLogger.LogAccountAction("user_registered", user.ID, params.IPAddress, map[string]string{"modality": modality})

	processing := elapsedMs(start)
	return &AuthResponse{
		Success:          true,
		Message:          "User registered with biometric data successfully",
		User:             toUserResponse(user),
		Token:            pair,
		ProcessingTimeMs: &processing,
	}, nil
}

// Login authenticates by username-or-email plus password. All credential
// failures collapse to ErrUnauthorized and take the same equalized time;
// only lockouts are distinguishable.
func (s *AuthService) Login(ctx context.Context, params LoginParams) (*AuthResponse, error) {
	start := time.Now()

	user, err := s.authenticate(ctx, params, models.AuthTypePassword, start)
	if err != nil {
		return nil, err
	}

	pair, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}
	s.finishLogin(ctx, user, models.AuthTypePassword, params, start, nil, nil)

	processing := elapsedMs(start)
	return &AuthResponse{
		Success:          true,
		Message:          "Login successful",
		User:             toUserResponse(user),
		Token:            pair,
		ProcessingTimeMs: &processing,
	}, nil
}

// LoginWithBiometric authenticates with both factors: the password must
// match and the biometric payload must clear its threshold. The biometric
// stage only runs once the password stage has passed, so its failure message
// reveals nothing about credential validity.
func (s *AuthService) LoginWithBiometric(ctx context.Context, params BiometricLoginParams) (*AuthResponse, error) {
	start := time.Now()

	user, err := s.authenticate(ctx, params.LoginParams, models.AuthTypeCombined, start)
	if err != nil {
		return nil, err
	}

	verification, err := s.biometrics.Verify(ctx, VerifyParams{
		UserID:    user.ID,
		Modality:  params.Modality,
		Payload:   params.Payload,
		Threshold: params.Threshold,
		IPAddress: params.IPAddress,
	})
	if err != nil {
		// Input rejections (malformed payload, unknown modality) surface
		// as-is; they are caller mistakes, not failed matches.
		if errors.Is(err, models.ErrBadRequest) || errors.Is(err, biometric.ErrMalformedPayload) {
			return nil, err
		}
		return nil, models.ErrInternalServer
	}

	if !verification.Success {
		reason := "biometric_verification_failed"
		s.recordAttempt(ctx, &models.AuthAttempt{
			UserID:           &user.ID,
			Username:         user.Username,
			AuthType:         models.AuthTypeCombined,
			Result:           models.AuthResultFailure,
			Modality:         &params.Modality,
			SimilarityScore:  verification.SimilarityScore,
			ThresholdUsed:    verification.ThresholdUsed,
			FailureReason:    &reason,
			IPAddress:        params.IPAddress,
			UserAgent:        params.UserAgent,
			ProcessingTimeMs: elapsedMs(start),
		})
		s.timing.WaitFrom(start, false)
		return nil, models.ErrBiometricVerificationFailed
	}

	pair, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}
	s.finishLogin(ctx, user, models.AuthTypeCombined, params.LoginParams, start, &params.Modality, verification)

	processing := elapsedMs(start)
	return &AuthResponse{
		Success:          true,
		Message:          "Biometric login successful",
		User:             toUserResponse(user),
		Token:            pair,
		BiometricScore:   verification.SimilarityScore,
		ProcessingTimeMs: &processing,
	}, nil
}

// RefreshToken exchanges a valid refresh token for a fresh pair.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken = strings.TrimSpace(refreshToken); refreshToken == "" {
		return nil, models.ErrUnauthorized
	}

	claims, err := s.tm.ValidateRefreshToken(refreshToken)
	if err != nil {
		s.logger.Info("refresh token validation failed", slog.Any("error", err))
		return nil, models.ErrUnauthorized
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to load user for token refresh",
			slog.String("user_id", claims.UserID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !user.IsActive || user.IsLocked() {
		s.logger.Info("token refresh blocked by account state", slog.String("user_id", user.ID))
		return nil, models.ErrUnauthorized
	}

	pair, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("token refreshed", slog.String("user_id", user.ID))
	return pair, nil
}

// VerifyToken validates an access token and returns the account it belongs
// to.
func (s *AuthService) VerifyToken(ctx context.Context, accessToken string) (*UserResponse, error) {
	claims, err := s.tm.ValidateToken(accessToken)
	if err != nil {
		return nil, models.ErrUnauthorized
	}
	if claims.Type != models.TokenTypeAccess {
		return nil, models.ErrUnauthorized
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to load user for token verification",
			slog.String("user_id", claims.UserID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return toUserResponse(user), nil
}

// Logout ends a session. Sessions are stateless JWTs, so this only audits
// the event; the client discards its tokens.
func (s *AuthService) Logout(ctx context.Context, accessToken, ipAddress string) error {
	claims, err := s.tm.ValidateToken(accessToken)
	if err != nil {
		return models.ErrUnauthorized
	}

	s.logger.Info("user logged out", slog.String("user_id", claims.UserID))
	s.auditLogger.LogAccountAction("user_logged_out", claims.UserID, ipAddress, nil)
	return nil
}

// authenticate runs the shared credential stage of both login flows:
// account lookup, lockout gate, state checks, password comparison. Every
// failure is recorded in the ledger and latency-equalized before returning.
func (s *AuthService) authenticate(ctx context.Context, params LoginParams, authType string, start time.Time) (*models.User, error) {
	identifier := strings.ToLower(strings.TrimSpace(params.Identifier))
	if identifier == "" || params.Password == "" {
		return nil, models.ErrUnauthorized
	}

	user, lookupErr := s.users.GetByLogin(ctx, identifier)
	if lookupErr != nil && !errors.Is(lookupErr, models.ErrNotFound) {
		s.logger.Error("failed to look up user for login", slog.Any("error", lookupErr))
		return nil, models.ErrInternalServer
	}

	// Failures are bucketed per account, keyed by the canonical username, so
	// logging in by email and by username share one lockout count. Unknown
	// identifiers get their own bucket under the typed form.
	ledgerName := identifier
	if lookupErr == nil {
		ledgerName = user.Username
	}

	allowed, _, lockErr := s.lockout.CheckLockout(ctx, ledgerName, params.IPAddress, params.UserAgent)
	if !allowed {
		if lockErr != nil {
			return nil, lockErr
		}
		return nil, models.ErrAccountLocked
	}

	if lookupErr != nil {
		s.recordFailure(ctx, nil, ledgerName, authType, "invalid_credentials", params, start)
		s.timing.WaitFrom(start, false)
		return nil, models.ErrUnauthorized
	}

	if user.IsLocked() {
		s.recordFailure(ctx, &user.ID, ledgerName, authType, "account_locked", params, start)
		return nil, models.ErrAccountLocked
	}

	// A disabled account answers exactly like a wrong password.
	if !user.IsActive {
		s.recordFailure(ctx, &user.ID, ledgerName, authType, "account_disabled", params, start)
		s.timing.WaitFrom(start, false)
		return nil, models.ErrUnauthorized
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, params.Password); err != nil {
		s.recordFailure(ctx, &user.ID, ledgerName, authType, "invalid_credentials", params, start)
		s.timing.WaitFrom(start, false)
		return nil, models.ErrUnauthorized
	}

	return user, nil
}

// createUser validates and persists a new account. Username and email
// conflicts are checked up front so the caller gets a specific rejection
// rather than a bare constraint violation.
func (s *AuthService) createUser(ctx context.Context, params RegisterParams) (*models.User, error) {
	username := strings.ToLower(strings.TrimSpace(params.Username))
	email := strings.ToLower(strings.TrimSpace(params.Email))

	if username == "" {
		return nil, fmt.Errorf("%w: username is required", models.ErrBadRequest)
	}
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", models.ErrBadRequest)
	}
	if err := pkgauth.ValidatePassword(params.Password); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, fmt.Errorf("%w: username already registered", models.ErrConflict)
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check username availability", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: email already registered", models.ErrConflict)
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check email availability", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	passwordHash, err := pkgauth.HashPassword(params.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user, err := s.users.Create(ctx, &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     strings.TrimSpace(params.FullName),
		Phone:        params.Phone,
		IsActive:     true,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("email", pkglogger.SanitizedEmail(user.Email)))

	return user, nil
}

func (s *AuthService) issueTokens(user *models.User) (*TokenPair, error) {
	accessToken, err := s.tm.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		s.logger.Error("failed to generate access token",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	refreshToken, err := s.tm.GenerateRefreshToken(user.ID, user.Username)
	if err != nil {
		s.logger.Error("failed to generate refresh token",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.tm.AccessTokenTTL().Seconds()),
		User:         toUserResponse(user),
	}, nil
}

// finishLogin runs the bookkeeping shared by every successful login.
func (s *AuthService) finishLogin(ctx context.Context, user *models.User, authType string, params LoginParams, start time.Time, modality *string, verification *models.BiometricResult) {
	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Error("failed to update last login",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	}
	now := time.Now()
	user.LastLogin = &now

	attempt := &models.AuthAttempt{
		UserID:           &user.ID,
		Username:         user.Username,
		AuthType:         authType,
		Result:           models.AuthResultSuccess,
		Modality:         modality,
		IPAddress:        params.IPAddress,
		UserAgent:        params.UserAgent,
		ProcessingTimeMs: elapsedMs(start),
		TokenIssued:      true,
	}
	if verification != nil {
		attempt.SimilarityScore = verification.SimilarityScore
		attempt.ThresholdUsed = verification.ThresholdUsed
	}
	s.recordAttempt(ctx, attempt)

	s.logger.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("auth_type", authType))
}

func (s *AuthService) recordFailure(ctx context.Context, userID *string, username, authType, reason string, params LoginParams, start time.Time) {
	s.recordAttempt(ctx, &models.AuthAttempt{
		UserID:           userID,
		Username:         username,
		AuthType:         authType,
		Result:           models.AuthResultFailure,
		FailureReason:    &reason,
		IPAddress:        params.IPAddress,
		UserAgent:        params.UserAgent,
		ProcessingTimeMs: elapsedMs(start),
	})
}

// recordAttempt writes the ledger row and mirrors it into the audit stream.
// Ledger write failures are logged, never surfaced: a full audit trail is
// not worth failing a correct authentication decision.
func (s *AuthService) recordAttempt(ctx context.Context, attempt *models.AuthAttempt) {
	if err := s.lockout.RecordAttempt(ctx, attempt); err != nil {
		s.logger.Error("failed to record auth attempt", slog.Any("error", err))
	}

	event := pkglogger.AuditEvent{
		EventType: "auth_" + attempt.AuthType,
		Username:  pkglogger.SanitizedIdentifier(attempt.Username),
		IPAddress: attempt.IPAddress,
		UserAgent: attempt.UserAgent,
		Success:   attempt.Succeeded(),
	}
	if attempt.UserID != nil {
		event.UserID = *attempt.UserID
	}
	if attempt.FailureReason != nil {
		event.FailureReason = *attempt.FailureReason
	}
	if attempt.Modality != nil {
		event.Modality = *attempt.Modality
	}
	event.SimilarityScore = attempt.SimilarityScore
	s.auditLogger.LogAuthAttempt(event)
}

func toUserResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:         user.ID,
		Username:   user.Username,
		Email:      user.Email,
		FullName:   user.FullName,
		Phone:      user.Phone,
		AvatarURL:  user.AvatarURL,
		IsActive:   user.IsActive,
		IsVerified: user.IsVerified,
		IsEnrolled: user.IsEnrolled,
		LastLogin:  user.LastLogin,
		CreatedAt:  user.CreatedAt,
		UpdatedAt:  user.UpdatedAt,
	}
}
