package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/Ibrahim99575/authentication-system/internal/auth"
	"github.com/Ibrahim99575/authentication-system/internal/models"
	"github.com/Ibrahim99575/authentication-system/internal/services"
	pkghttp "github.com/Ibrahim99575/authentication-system/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds user claims to request context for testing authenticated endpoints
func WithAuthContext(req *http.Request, userID, username string) *http.Request {
	claims := &models.TokenClaims{
		UserID:   userID,
		Username: username,
		Type:     models.TokenTypeAccess,
	}
	ctx := context.WithValue(req.Context(), auth.UserContextKey, claims)
	return req.WithContext(ctx)
}

// WithChiRouteContext adds chi URL parameters to request context for testing
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	RegisterFunc              func(ctx context.Context, params services.RegisterParams) (*services.AuthResponse, error)
	RegisterWithBiometricFunc func(ctx context.Context, params services.RegisterParams, modality, payload string) (*services.AuthResponse, error)
	LoginFunc                 func(ctx context.Context, params services.LoginParams) (*services.AuthResponse, error)
	LoginWithBiometricFunc    func(ctx context.Context, params services.BiometricLoginParams) (*services.AuthResponse, error)
	RefreshTokenFunc          func(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	VerifyTokenFunc           func(ctx context.Context, accessToken string) (*services.UserResponse, error)
	LogoutFunc                func(ctx context.Context, accessToken, ipAddress string) error
}

func (m *MockAuthService) Register(ctx context.Context, params services.RegisterParams) (*services.AuthResponse, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrConflict
	}
	return m.RegisterFunc(ctx, params)
}

func (m *MockAuthService) RegisterWithBiometric(ctx context.Context, params services.RegisterParams, modality, payload string) (*services.AuthResponse, error) {
	if m.RegisterWithBiometricFunc == nil {
		return nil, models.ErrConflict
	}
	return m.RegisterWithBiometricFunc(ctx, params, modality, payload)
}

func (m *MockAuthService) Login(ctx context.Context, params services.LoginParams) (*services.AuthResponse, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, params)
}

func (m *MockAuthService) LoginWithBiometric(ctx context.Context, params services.BiometricLoginParams) (*services.AuthResponse, error) {
	if m.LoginWithBiometricFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginWithBiometricFunc(ctx, params)
}

func (m *MockAuthService) RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error) {
	if m.RefreshTokenFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.RefreshTokenFunc(ctx, refreshToken)
}

func (m *MockAuthService) VerifyToken(ctx context.Context, accessToken string) (*services.UserResponse, error) {
	if m.VerifyTokenFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.VerifyTokenFunc(ctx, accessToken)
}

func (m *MockAuthService) Logout(ctx context.Context, accessToken, ipAddress string) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx, accessToken, ipAddress)
}

// MockPasswordResetService implements PasswordResetServiceInterface for testing
type MockPasswordResetService struct {
	RequestResetFunc func(ctx context.Context, email, ipAddress string) error
	ConfirmResetFunc func(ctx context.Context, plainToken, newPassword, ipAddress string) error
}

func (m *MockPasswordResetService) RequestReset(ctx context.Context, email, ipAddress string) error {
	if m.RequestResetFunc == nil {
		return nil
	}
	return m.RequestResetFunc(ctx, email, ipAddress)
}

func (m *MockPasswordResetService) ConfirmReset(ctx context.Context, plainToken, newPassword, ipAddress string) error {
	if m.ConfirmResetFunc == nil {
		return nil
	}
	return m.ConfirmResetFunc(ctx, plainToken, newPassword, ipAddress)
}

// MockBiometricService implements BiometricServiceInterface for testing
type MockBiometricService struct {
	EnrollFunc         func(ctx context.Context, params services.EnrollParams) (*models.BiometricResult, error)
	VerifyFunc         func(ctx context.Context, params services.VerifyParams) (*models.BiometricResult, error)
	StatusFunc         func(ctx context.Context, userID string) (*models.BiometricStatus, error)
	ListTemplatesFunc  func(ctx context.Context, userID string) ([]models.TemplateSummary, error)
	DeleteTemplateFunc func(ctx context.Context, userID, templateID, ipAddress string) error
	SetPrimaryFunc     func(ctx context.Context, userID, templateID, ipAddress string) error
}

func (m *MockBiometricService) Enroll(ctx context.Context, params services.EnrollParams) (*models.BiometricResult, error) {
	if m.EnrollFunc == nil {
		return &models.BiometricResult{Success: true, Message: "Biometric template enrolled successfully"}, nil
	}
	return m.EnrollFunc(ctx, params)
}

func (m *MockBiometricService) Verify(ctx context.Context, params services.VerifyParams) (*models.BiometricResult, error) {
	if m.VerifyFunc == nil {
		return &models.BiometricResult{Success: true, Message: "Verification successful"}, nil
	}
	return m.VerifyFunc(ctx, params)
}

func (m *MockBiometricService) Status(ctx context.Context, userID string) (*models.BiometricStatus, error) {
	if m.StatusFunc == nil {
		return &models.BiometricStatus{}, nil
	}
	return m.StatusFunc(ctx, userID)
}

func (m *MockBiometricService) ListTemplates(ctx context.Context, userID string) ([]models.TemplateSummary, error) {
	if m.ListTemplatesFunc == nil {
		return []models.TemplateSummary{}, nil
	}
	return m.ListTemplatesFunc(ctx, userID)
}

func (m *MockBiometricService) DeleteTemplate(ctx context.Context, userID, templateID, ipAddress string) error {
	if m.DeleteTemplateFunc == nil {
		return nil
	}
	return m.DeleteTemplateFunc(ctx, userID, templateID, ipAddress)
}

func (m *MockBiometricService) SetPrimary(ctx context.Context, userID, templateID, ipAddress string) error {
	if m.SetPrimaryFunc == nil {
		return nil
	}
	return m.SetPrimaryFunc(ctx, userID, templateID, ipAddress)
}

// MockUserService implements UserServiceInterface for testing
type MockUserService struct {
	GetProfileFunc     func(ctx context.Context, userID string) (*services.UserResponse, error)
	UpdateProfileFunc  func(ctx context.Context, userID string, update services.ProfileUpdate) (*services.UserResponse, error)
	ChangePasswordFunc func(ctx context.Context, userID, currentPassword, newPassword, ipAddress string) error
	GetStatsFunc       func(ctx context.Context, userID string) (*models.UserStats, error)
	DeactivateFunc     func(ctx context.Context, userID, ipAddress string) error
	DeleteFunc         func(ctx context.Context, userID, ipAddress string) error
}

func (m *MockUserService) GetProfile(ctx context.Context, userID string) (*services.UserResponse, error) {
	if m.GetProfileFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetProfileFunc(ctx, userID)
}

func (m *MockUserService) UpdateProfile(ctx context.Context, userID string, update services.ProfileUpdate) (*services.UserResponse, error) {
	if m.UpdateProfileFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateProfileFunc(ctx, userID, update)
}

func (m *MockUserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword, ipAddress string) error {
	if m.ChangePasswordFunc == nil {
		return nil
	}
	return m.ChangePasswordFunc(ctx, userID, currentPassword, newPassword, ipAddress)
}

func (m *MockUserService) GetStats(ctx context.Context, userID string) (*models.UserStats, error) {
	if m.GetStatsFunc == nil {
		return &models.UserStats{}, nil
	}
	return m.GetStatsFunc(ctx, userID)
}

func (m *MockUserService) Deactivate(ctx context.Context, userID, ipAddress string) error {
	if m.DeactivateFunc == nil {
		return nil
	}
	return m.DeactivateFunc(ctx, userID, ipAddress)
}

func (m *MockUserService) Delete(ctx context.Context, userID, ipAddress string) error {
	if m.DeleteFunc == nil {
		return nil
	}
	return m.DeleteFunc(ctx, userID, ipAddress)
}
