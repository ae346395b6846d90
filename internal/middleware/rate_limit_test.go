package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Ibrahim99575/authentication-system/internal/auth"
	"github.com/Ibrahim99575/authentication-system/internal/models"
)

func requestWithClaims(userID string) *http.Request {
	req := httptest.NewRequest("GET", "/test", nil)
	claims := &models.TokenClaims{UserID: userID, Type: models.TokenTypeAccess}
	return req.WithContext(context.WithValue(req.Context(), auth.UserContextKey, claims))
}

// TestRateLimitByUserID_ExtractsUserIDFromContext verifies that rate limiting keys on the context user
func TestRateLimitByUserID_ExtractsUserIDFromContext(t *testing.T) {
	config := AuthenticatedRateLimitConfig{
		ReadOperationsPerMinute:      100,
		WriteOperationsPerMinute:     30,
		BiometricOperationsPerMinute: 10,
	}
	middleware := RateLimitByUserID(config, "read", nil)

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, requestWithClaims("user-123"))

	if recorder.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", recorder.Code)
	}
}

// TestRateLimitByUserID_FallbackToIPWhenNoUserID verifies fallback to IP-based keying when no user is present
func TestRateLimitByUserID_FallbackToIPWhenNoUserID(t *testing.T) {
	config := AuthenticatedRateLimitConfig{
		ReadOperationsPerMinute: 100,
	}
	middleware := RateLimitByUserID(config, "read", nil)

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "192.168.1.1:8080"
	recorder := httptest.NewRecorder()

	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", recorder.Code)
	}
}

// TestRateLimitByUserID_EnforcesReadLimit verifies the read operation budget
func TestRateLimitByUserID_EnforcesReadLimit(t *testing.T) {
	config := AuthenticatedRateLimitConfig{
		ReadOperationsPerMinute: 100,
	}
	middleware := RateLimitByUserID(config, "read", nil)

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 100; i++ {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, requestWithClaims("user-read-test"))

		if recorder.Code != http.StatusOK {
			t.Errorf("request %d failed with status %d, expected 200", i+1, recorder.Code)
		}
	}

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, requestWithClaims("user-read-test"))

	if recorder.Code != http.StatusTooManyRequests {
		t.Errorf("expected status %d (too many requests), got %d", http.StatusTooManyRequests, recorder.Code)
	}
}

// TestRateLimitByUserID_EnforcesWriteLimit verifies the write operation budget
func TestRateLimitByUserID_EnforcesWriteLimit(t *testing.T) {
	config := AuthenticatedRateLimitConfig{
		WriteOperationsPerMinute: 30,
	}
	middleware := RateLimitByUserID(config, "write", nil)

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 30; i++ {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, requestWithClaims("user-write-test"))

		if recorder.Code != http.StatusOK {
			t.Errorf("request %d failed with status %d, expected 200", i+1, recorder.Code)
		}
	}

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, requestWithClaims("user-write-test"))

	if recorder.Code != http.StatusTooManyRequests {
		t.Errorf("expected status %d (too many requests), got %d", http.StatusTooManyRequests, recorder.Code)
	}
}

// TestRateLimitByUserID_EnforcesBiometricLimit verifies the tight biometric budget
func TestRateLimitByUserID_EnforcesBiometricLimit(t *testing.T) {
	config := AuthenticatedRateLimitConfig{
		BiometricOperationsPerMinute: 10,
	}
	middleware := RateLimitByUserID(config, "biometric", nil)

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 10; i++ {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, requestWithClaims("user-bio-test"))

		if recorder.Code != http.StatusOK {
			t.Errorf("request %d failed with status %d, expected 200", i+1, recorder.Code)
		}
	}

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, requestWithClaims("user-bio-test"))

	if recorder.Code != http.StatusTooManyRequests {
		t.Errorf("expected status %d (too many requests), got %d", http.StatusTooManyRequests, recorder.Code)
	}
}

// TestRateLimitByUserID_Returns429AfterLimit verifies the HTTP 429 response format
func TestRateLimitByUserID_Returns429AfterLimit(t *testing.T) {
	config := AuthenticatedRateLimitConfig{
		WriteOperationsPerMinute: 1,
	}
	middleware := RateLimitByUserID(config, "write", nil)

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, requestWithClaims("user-429-test"))

	if recorder.Code != http.StatusOK {
		t.Errorf("first request failed with status %d", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, requestWithClaims("user-429-test"))

	if recorder.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", recorder.Code)
	}

	contentType := recorder.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", contentType)
	}

	body := recorder.Body.String()
	if body != `{"error":"rate_limit_exceeded","message":"Too many requests"}` {
		t.Errorf("unexpected response body: %s", body)
	}
}

// TestRateLimitByIP_IgnoresSpoofedForwardingHeaders verifies that rotating
// X-Forwarded-For values cannot mint fresh buckets on a direct connection
func TestRateLimitByIP_IgnoresSpoofedForwardingHeaders(t *testing.T) {
	middleware := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 3}, nil)

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/login", nil)
		req.RemoteAddr = "203.0.113.10:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i+1))
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Errorf("request %d failed with status %d", i+1, recorder.Code)
		}
	}

	// Fourth request with yet another forged header still lands in the same bucket
	req := httptest.NewRequest("POST", "/login", nil)
	req.RemoteAddr = "203.0.113.10:4000"
	req.Header.Set("X-Forwarded-For", "10.0.0.99")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 for same RemoteAddr regardless of headers, got %d", recorder.Code)
	}
}

// TestRateLimitByUserID_IsolatesUserBuckets verifies separate rate limits per user
func TestRateLimitByUserID_IsolatesUserBuckets(t *testing.T) {
	config := AuthenticatedRateLimitConfig{
		ReadOperationsPerMinute: 10,
	}
	middleware := RateLimitByUserID(config, "read", nil)

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// User A exhausts their bucket
	for i := 0; i < 10; i++ {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, requestWithClaims("user-a-isolation"))
		if recorder.Code != http.StatusOK {
			t.Errorf("user A request %d failed", i+1)
		}
	}

	// User B still has a full bucket
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, requestWithClaims("user-b-isolation"))

	if recorder.Code != http.StatusOK {
		t.Errorf("user B should have independent rate limit, got status %d", recorder.Code)
	}
}

// TestRateLimitByUserID_SegmentsOperationClasses verifies that read and
// biometric budgets for the same user do not share a bucket
func TestRateLimitByUserID_SegmentsOperationClasses(t *testing.T) {
	config := AuthenticatedRateLimitConfig{
		ReadOperationsPerMinute:      5,
		BiometricOperationsPerMinute: 5,
	}
	readLimiter := RateLimitByUserID(config, "read", nil)
	biometricLimiter := RateLimitByUserID(config, "biometric", nil)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	readHandler := readLimiter(ok)
	biometricHandler := biometricLimiter(ok)

	// Exhaust the read bucket
	for i := 0; i < 5; i++ {
		recorder := httptest.NewRecorder()
		readHandler.ServeHTTP(recorder, requestWithClaims("user-segment-test"))
		if recorder.Code != http.StatusOK {
			t.Errorf("read request %d failed", i+1)
		}
	}

	recorder := httptest.NewRecorder()
	readHandler.ServeHTTP(recorder, requestWithClaims("user-segment-test"))
	if recorder.Code != http.StatusTooManyRequests {
		t.Errorf("read bucket should be exhausted, got %d", recorder.Code)
	}

	// Biometric bucket for the same user is untouched
	recorder = httptest.NewRecorder()
	biometricHandler.ServeHTTP(recorder, requestWithClaims("user-segment-test"))
	if recorder.Code != http.StatusOK {
		t.Errorf("biometric bucket should be independent, got status %d", recorder.Code)
	}
}
