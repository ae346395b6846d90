package models

import (
	"time"
)

// Authentication attempt types
const (
	AuthTypePassword     = "password"
	AuthTypeBiometric    = "biometric"
	AuthTypeCombined     = "combined"
	AuthTypeRegistration = "registration"
)

// Authentication attempt results
const (
	AuthResultSuccess = "success"
	AuthResultFailure = "failure"
)

// AuthAttempt is one row of the append-only authentication ledger. Rows are
// written once at the end of an attempt and never updated; the background
// cleanup job ages them out past the retention window.
type AuthAttempt struct {
	ID                string
	UserID            *string // nil when the submitted username matched no account
	Username          string
	AuthType          string
	Result            string
	Modality          *string  // set for biometric/combined attempts
	SimilarityScore   *float64 // best score observed, if the biometric stage ran
	ThresholdUsed     *float64
	FailureReason     *string
	IPAddress         string
	UserAgent         string
	DeviceFingerprint string // sha256 of ip + user agent, for per-device lockout
	ProcessingTimeMs  int64
	TokenIssued       bool
	CreatedAt         time.Time
}

// Succeeded reports whether the attempt ended in an issued session.
func (a *AuthAttempt) Succeeded() bool {
	return a.Result == AuthResultSuccess
}
