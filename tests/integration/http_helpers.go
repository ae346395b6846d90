package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Ibrahim99575/authentication-system/internal/auth"
	"github.com/Ibrahim99575/authentication-system/internal/biometric"
	"github.com/Ibrahim99575/authentication-system/internal/config"
	"github.com/Ibrahim99575/authentication-system/internal/database"
	"github.com/Ibrahim99575/authentication-system/internal/handlers"
	middlewareCustom "github.com/Ibrahim99575/authentication-system/internal/middleware"
	"github.com/Ibrahim99575/authentication-system/internal/routes"
	"github.com/Ibrahim99575/authentication-system/internal/services"
	pkghttp "github.com/Ibrahim99575/authentication-system/pkg/http"
	pkglogger "github.com/Ibrahim99575/authentication-system/pkg/logger"
)

// SentEmail represents a captured email message
type SentEmail struct {
	To      string
	Subject string
	Body    string
}

// MockEmailService captures sent emails for test assertions
type MockEmailService struct {
	SentEmails []SentEmail
	mu         sync.Mutex
}

// SendPasswordResetEmail records the email
func (m *MockEmailService) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SentEmails = append(m.SentEmails, SentEmail{
		To:      email,
		Subject: "Reset your password",
		Body:    "Reset token: " + token,
	})
	return nil
}

// GetLastEmail returns the most recent email sent
func (m *MockEmailService) GetLastEmail() *SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.SentEmails) == 0 {
		return nil
	}
	return &m.SentEmails[len(m.SentEmails)-1]
}

// TestServer wraps httptest.Server with database and all dependencies
type TestServer struct {
	Server       *httptest.Server
	DB           *database.DB
	EmailService *MockEmailService
	Config       *config.Config
}

// NewTestServer initializes a complete HTTP server with real database and
// mocked email delivery. The wiring mirrors the production entrypoint.
func NewTestServer(db *database.DB) *TestServer {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:          "test-secret-32-characters-long-for-testing",
			AccessTokenExpiry:  15 * time.Minute,
			RefreshTokenExpiry: 7 * 24 * time.Hour,
			MaxFailedAttempts:  5,
			MaxIPFailures:      20,
			MaxDeviceFailures:  10,
			LockoutDuration:    15 * time.Minute,
			LockoutWindow:      1 * time.Hour,
			// Keep failed-login pauses out of the test clock
			TimingDelayBaseMs:    1,
			TimingDelayRandomMs:  0,
			ResetTokenExpiry:     1 * time.Hour,
			AttemptRetentionDays: 90,
			CleanupInterval:      1 * time.Hour,
		},
		Biometric: config.BiometricConfig{
			EncryptionSecret:     "test-secret-32-characters-long-for-testing",
			FaceThreshold:        0.6,
			FingerprintThreshold: 0.75,
			FrameLimit:           10,
			FaceSize:             64,
		},
		Server: config.ServerConfig{
			Port:           "0",
			Env:            "test",
			AllowedOrigins: []string{},
			TrustedProxies: []string{},
		},
	}

	userRepo, templateRepo, attemptRepo, resetRepo := InitializeRepositories(db)

	mockEmail := &MockEmailService{
		SentEmails: []SentEmail{},
	}

	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)

	auditLogger := pkglogger.NewAuditLogger(logger)

	lockoutConfig := services.LockoutConfig{
		MaxFailedAttempts: cfg.Auth.MaxFailedAttempts,
		MaxIPFailures:     cfg.Auth.MaxIPFailures,
		MaxDeviceFailures: cfg.Auth.MaxDeviceFailures,
		LockoutDuration:   cfg.Auth.LockoutDuration,
		Window:            cfg.Auth.LockoutWindow,
	}
	lockoutService := services.NewLockoutService(attemptRepo, userRepo, lockoutConfig, logger)

	timingDelay := auth.NewTimingDelay(cfg.Auth.TimingDelayBaseMs, cfg.Auth.TimingDelayRandomMs)

	templateCipher, err := biometric.NewTemplateCipher(cfg.Biometric.EncryptionSecret)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize template cipher: %v", err))
	}
	extractors := []biometric.Extractor{
		biometric.NewFaceExtractor(cfg.Biometric.FrameLimit, cfg.Biometric.FaceSize),
		biometric.NewFingerprintExtractor(),
	}
	thresholds := services.ThresholdConfig{
		FaceThreshold:        cfg.Biometric.FaceThreshold,
		FingerprintThreshold: cfg.Biometric.FingerprintThreshold,
	}
	biometricService := services.NewBiometricService(templateRepo, userRepo, templateCipher, extractors, thresholds, logger, auditLogger)

	authService := services.NewAuthService(userRepo, tokenManager, lockoutService, biometricService, timingDelay, logger, auditLogger)
	userService := services.NewUserService(userRepo, attemptRepo, templateRepo, logger, auditLogger)
	passwordResetService := services.NewPasswordResetService(resetRepo, userRepo, mockEmail, logger, auditLogger, cfg.Auth.ResetTokenExpiry)

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(authService, passwordResetService, ipConfig)
	biometricHandler := handlers.NewBiometricHandler(biometricService, ipConfig)
	userHandler := handlers.NewUserHandler(userService, ipConfig)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(r, authHandler, biometricHandler, userHandler, tokenManager, userRepo, ipConfig)

	server := httptest.NewServer(r)

	return &TestServer{
		Server:       server,
		DB:           db,
		EmailService: mockEmail,
		Config:       cfg,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	url := ts.Server.URL + path

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// RequestWithAuth makes an authenticated HTTP request with access token
func (ts *TestServer) RequestWithAuth(method, path, accessToken string, body interface{}) (*http.Response, error) {
	headers := map[string]string{
		"Authorization": "Bearer " + accessToken,
	}
	return ts.Request(method, path, body, headers)
}

// ParseJSONResponse parses JSON response body into target struct
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// ExtractTokensFromResponse extracts the token pair from an auth response
// body of the shape {"token": {"access_token": ..., "refresh_token": ...}}
func ExtractTokensFromResponse(resp *http.Response) (accessToken, refreshToken string, err error) {
	defer resp.Body.Close()

	var authResp map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return "", "", fmt.Errorf("failed to parse response: %w", err)
	}

	pair, ok := authResp["token"].(map[string]interface{})
	if !ok {
		return "", "", fmt.Errorf("response carries no token pair")
	}
	if access, ok := pair["access_token"].(string); ok {
		accessToken = access
	}
	if refresh, ok := pair["refresh_token"].(string); ok {
		refreshToken = refresh
	}

	return accessToken, refreshToken, nil
}

// GetErrorMessage extracts error message from error response
func GetErrorMessage(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	var errResp map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return "", err
	}
	if msg, ok := errResp["message"].(string); ok {
		return msg, nil
	}
	return "", nil
}
