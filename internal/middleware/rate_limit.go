package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/Ibrahim99575/authentication-system/internal/auth"
	pkghttp "github.com/Ibrahim99575/authentication-system/pkg/http"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
}

// DefaultAuthRateLimit returns default rate limit config for auth endpoints (5 requests per minute)
func DefaultAuthRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 5,
	}
}

// AuthenticatedRateLimitConfig holds per-user rate limits by operation class.
// Biometric operations run the full extraction pipeline per request, so they
// get the tightest budget.
type AuthenticatedRateLimitConfig struct {
	ReadOperationsPerMinute      int
	WriteOperationsPerMinute     int
	BiometricOperationsPerMinute int
}

// DefaultAuthenticatedRateLimit returns default per-user limits
func DefaultAuthenticatedRateLimit() AuthenticatedRateLimitConfig {
	return AuthenticatedRateLimitConfig{
		ReadOperationsPerMinute:      100,
		WriteOperationsPerMinute:     30,
		BiometricOperationsPerMinute: 10,
	}
}

// RateLimitByIP creates a middleware that rate limits requests by client IP.
// Keys come from ExtractClientIP, so forwarding headers only count when the
// connection is from a configured proxy; spoofed headers cannot mint fresh
// buckets.
func RateLimitByIP(config RateLimitConfig, ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"Rate limit exceeded"}`))
		}),
	)
}

// RateLimitByUserID creates a middleware that rate limits authenticated
// requests per user. Requests without user claims fall back to IP keying.
// Buckets are segmented by operation class so a burst of reads cannot
// starve biometric calls.
func RateLimitByUserID(config AuthenticatedRateLimitConfig, operationClass string, ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	limit := config.ReadOperationsPerMinute
	switch operationClass {
	case "write":
		limit = config.WriteOperationsPerMinute
	case "biometric":
		limit = config.BiometricOperationsPerMinute
	}

	return httprate.Limit(
		limit,
		1*time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if claims := auth.GetUserFromContext(r); claims != nil && claims.UserID != "" {
				return operationClass + ":" + claims.UserID, nil
			}
			return pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate_limit_exceeded","message":"Too many requests"}`))
		}),
	)
}
