package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Ibrahim99575/authentication-system/internal/models"
	pkgauth "github.com/Ibrahim99575/authentication-system/pkg/auth"
	pkglogger "github.com/Ibrahim99575/authentication-system/pkg/logger"
)

// PasswordResetRepository defines the interface for reset token operations
type PasswordResetRepository interface {
	Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*models.PasswordResetToken, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error)
	MarkAsUsed(ctx context.Context, id string) error
	InvalidatePendingByUser(ctx context.Context, userID string) error
}

// PasswordResetService handles the request/confirm reset flow. Tokens are
// random 32-byte values sent to the user in plain form and stored only as
// sha256 hashes.
type PasswordResetService struct {
	resets      PasswordResetRepository
	users       UserRepository
	email       EmailService
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	tokenExpiry time.Duration
}

// NewPasswordResetService creates a new PasswordResetService
func NewPasswordResetService(
	resets PasswordResetRepository,
	users UserRepository,
	email EmailService,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
	tokenExpiry time.Duration,
) *PasswordResetService {
	return &PasswordResetService{
		resets:      resets,
		users:       users,
		email:       email,
		logger:      logger,
		auditLogger: auditLogger,
		tokenExpiry: tokenExpiry,
	}
}

// RequestReset issues a reset token for the account behind the email, if
// one exists. The outcome is identical whether or not the address is known;
// callers can always report "check your inbox".
func (s *PasswordResetService) RequestReset(ctx context.Context, email, ipAddress string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fmt.Errorf("%w: email is required", models.ErrBadRequest)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email",
				slog.String("email", pkglogger.SanitizedEmail(email)))
			return nil
		}
		s.logger.Error("failed to look up user for password reset", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if !user.IsActive {
		s.logger.Info("password reset requested for inactive account",
			slog.String("user_id", user.ID))
		return nil
	}

	// One live token per account: a new request supersedes older ones.
	if err := s.resets.InvalidatePendingByUser(ctx, user.ID); err != nil {
		s.logger.Error("failed to invalidate pending reset tokens",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		s.logger.Error("failed to generate reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}
	plainToken := base64.URLEncoding.EncodeToString(tokenBytes)
	hash := sha256.Sum256([]byte(plainToken))
	tokenHash := hex.EncodeToString(hash[:])

	expiresAt := time.Now().Add(s.tokenExpiry)
	if _, err := s.resets.Create(ctx, user.ID, tokenHash, expiresAt); err != nil {
		s.logger.Error("failed to store reset token",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.email.SendPasswordResetEmail(ctx, user.Email, plainToken, expiresAt); err != nil {
		s.logger.Error("failed to send reset email",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("password reset token issued", slog.String("user_id", user.ID))
	s.auditLogger.LogAccountAction("password_reset_requested", user.ID, ipAddress, nil)
	return nil
}

// ConfirmReset redeems a reset token and sets the new password. The token
// is claimed before the password changes, so a token can never authorize
// two resets.
func (s *PasswordResetService) ConfirmReset(ctx context.Context, plainToken, newPassword, ipAddress string) error {
	if plainToken == "" {
		return models.ErrUnauthorized
	}

	hash := sha256.Sum256([]byte(plainToken))
	tokenHash := hex.EncodeToString(hash[:])

	token, err := s.resets.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("reset token not found")
			return models.ErrUnauthorized
		}
		s.logger.Error("failed to look up reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if !token.IsValid() {
		s.logger.Info("rejected expired or used reset token", slog.String("token_id", token.ID))
		return models.ErrUnauthorized
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return err
	}

	if err := s.resets.MarkAsUsed(ctx, token.ID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Another request claimed the token first.
			return models.ErrUnauthorized
		}
		s.logger.Error("failed to claim reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	passwordHash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash new password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.users.UpdatePassword(ctx, token.UserID, passwordHash); err != nil {
		s.logger.Error("failed to update password from reset",
			slog.String("user_id", token.UserID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	// A completed reset also lifts any standing lockout.
	if err := s.users.SetLockedUntil(ctx, token.UserID, nil); err != nil {
		s.logger.Error("failed to clear account lock after reset",
			slog.String("user_id", token.UserID),
			slog.Any("error", err))
	}

	s.logger.Info("password reset completed", slog.String("user_id", token.UserID))
	s.auditLogger.LogPasswordChange(token.UserID, ipAddress, true)
	return nil
}
