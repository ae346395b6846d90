package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Ibrahim99575/authentication-system/internal/models"
	pkgauth "github.com/Ibrahim99575/authentication-system/pkg/auth"
	pkglogger "github.com/Ibrahim99575/authentication-system/pkg/logger"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByLogin(ctx context.Context, identifier string) (*models.User, error)
	UpdateProfile(ctx context.Context, id string, fullName string, phone, avatarURL *string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id string) error
	SetLockedUntil(ctx context.Context, id string, until *time.Time) error
	SetEnrolled(ctx context.Context, id string, enrolled bool) error
	Deactivate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// AttemptStatsSource aggregates the attempt ledger for the stats endpoint
type AttemptStatsSource interface {
	CountByUser(ctx context.Context, userID string) (total, successful, failed int, err error)
}

// TemplateCounter reports how many biometric templates a user holds
type TemplateCounter interface {
	CountAll(ctx context.Context, userID string) (int, error)
}

// ProfileUpdate carries the optional profile fields; nil means unchanged
type ProfileUpdate struct {
	FullName  *string
	Phone     *string
	AvatarURL *string
}

// UserService handles profile, password, and account lifecycle operations
type UserService struct {
	users       UserRepository
	attempts    AttemptStatsSource
	templates   TemplateCounter
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewUserService creates a new UserService
func NewUserService(users UserRepository, attempts AttemptStatsSource, templates TemplateCounter, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *UserService {
	return &UserService{
		users:       users,
		attempts:    attempts,
		templates:   templates,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// GetProfile retrieves the user's own profile
func (s *UserService) GetProfile(ctx context.Context, userID string) (*UserResponse, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toUserResponse(user), nil
}

// UpdateProfile applies the provided profile fields and returns the fresh
// profile. Unset fields keep their current values.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*UserResponse, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	fullName := user.FullName
	if update.FullName != nil {
		fullName = *update.FullName
	}
	phone := user.Phone
	if update.Phone != nil {
		phone = update.Phone
	}
	avatarURL := user.AvatarURL
	if update.AvatarURL != nil {
		avatarURL = update.AvatarURL
	}

	updated, err := s.users.UpdateProfile(ctx, userID, fullName, phone, avatarURL)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to update profile", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("profile updated", slog.String("user_id", userID))
	return toUserResponse(updated), nil
}

// ChangePassword verifies the current password and replaces it. Reusing the
// current password is rejected.
func (s *UserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword, ipAddress string) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		s.logger.Info("password change rejected: current password mismatch", slog.String("user_id", userID))
		s.auditLogger.LogPasswordChange(userID, ipAddress, false)
		return models.ErrUnauthorized
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return err
	}

	if newPassword == currentPassword {
		return fmt.Errorf("%w: new password must be different from current password", models.ErrBadRequest)
	}

	passwordHash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash new password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.users.UpdatePassword(ctx, userID, passwordHash); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to update password", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("password changed", slog.String("user_id", userID))
	s.auditLogger.LogPasswordChange(userID, ipAddress, true)
	return nil
}

// GetStats aggregates the user's authentication history from the attempt
// ledger and template store.
func (s *UserService) GetStats(ctx context.Context, userID string) (*models.UserStats, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	total, successful, failed, err := s.attempts.CountByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to aggregate attempt stats", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	enrollments, err := s.templates.CountAll(ctx, userID)
	if err != nil {
		s.logger.Error("failed to count enrollments", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &models.UserStats{
		TotalLogins:          total,
		SuccessfulLogins:     successful,
		FailedLogins:         failed,
		LastLogin:            user.LastLogin,
		AccountAgeDays:       int(time.Since(user.CreatedAt).Hours() / 24),
		BiometricEnrollments: enrollments,
	}, nil
}

// Deactivate disables the account. Templates stay in place; a reactivated
// account resumes with its enrollments intact.
func (s *UserService) Deactivate(ctx context.Context, userID, ipAddress string) error {
	if err := s.users.Deactivate(ctx, userID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to deactivate account", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("account deactivated", slog.String("user_id", userID))
	s.auditLogger.LogAccountAction("account_deactivated", userID, ipAddress, nil)
	return nil
}

// Delete permanently removes the account. Biometric templates cascade with
// the row; ledger entries survive with their user reference cleared.
func (s *UserService) Delete(ctx context.Context, userID, ipAddress string) error {
	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to delete account", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("account deleted", slog.String("user_id", userID))
	s.auditLogger.LogAccountAction("account_deleted", userID, ipAddress, nil)
	return nil
}

func (s *UserService) getUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("user not found", slog.String("user_id", userID))
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return user, nil
}
