package models

import (
	"time"
)

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	FullName     string
	Phone        *string
	AvatarURL    *string
	IsActive     bool
	IsVerified   bool
	IsEnrolled   bool       // true iff the user has at least one active biometric template
	LockedUntil  *time.Time // Temporary account lock expiration
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsLocked reports whether the account is currently locked out.
func (u *User) IsLocked() bool {
	return u.LockedUntil != nil && u.LockedUntil.After(time.Now())
}

// UserStats summarizes a user's authentication history.
type UserStats struct {
	TotalLogins          int        `json:"total_logins"`
	SuccessfulLogins     int        `json:"successful_logins"`
	FailedLogins         int        `json:"failed_logins"`
	LastLogin            *time.Time `json:"last_login"`
	AccountAgeDays       int        `json:"account_age_days"`
	BiometricEnrollments int        `json:"biometric_enrollments"`
}
