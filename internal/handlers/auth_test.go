package handlers_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ibrahim99575/authentication-system/internal/biometric"
	"github.com/Ibrahim99575/authentication-system/internal/handlers"
	"github.com/Ibrahim99575/authentication-system/internal/models"
	"github.com/Ibrahim99575/authentication-system/internal/services"
)

func TestRegister_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		RegisterFunc: func(ctx context.Context, params services.RegisterParams) (*services.AuthResponse, error) {
			assert.Equal(t, "johndoe", params.Username)
			assert.Equal(t, "john@example.com", params.Email)
			return &services.AuthResponse{
				Success: true,
				Message: "User registered successfully",
				User:    &services.UserResponse{ID: "user123", Username: "johndoe"},
			}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/register", handlers.RegisterRequest{
		Username: "johndoe",
		Email:    "john@example.com",
		Password: "SecurePassword123!",
	})

	w := httptest.NewRecorder()
	handler.Register(w, req)

	var resp services.AuthResponse
	handlers.AssertJSONResponse(t, w, 201, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "user123", resp.User.ID)
	assert.Nil(t, resp.Token)
}

func TestRegister_Conflict(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		RegisterFunc: func(ctx context.Context, params services.RegisterParams) (*services.AuthResponse, error) {
			return nil, models.ErrConflict
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/register", handlers.RegisterRequest{
		Username: "johndoe",
		Email:    "john@example.com",
		Password: "SecurePassword123!",
	})

	w := httptest.NewRecorder()
	handler.Register(w, req)

	handlers.AssertErrorResponse(t, w, 409, "conflict")
}

func TestRegister_MissingFields(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/register", handlers.RegisterRequest{
		Username: "johndoe",
	})

	w := httptest.NewRecorder()
	handler.Register(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestRegister_UsernameTooShort(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/register", handlers.RegisterRequest{
		Username: "ab",
		Email:    "john@example.com",
		Password: "SecurePassword123!",
	})

	w := httptest.NewRecorder()
	handler.Register(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestRegisterBiometric_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		RegisterWithBiometricFunc: func(ctx context.Context, params services.RegisterParams, modality, payload string) (*services.AuthResponse, error) {
			assert.Equal(t, "face", modality)
			assert.Equal(t, "dmlkZW8=", payload)
			return &services.AuthResponse{
				Success: true,
				Message: "User registered with biometric data successfully",
				User:    &services.UserResponse{ID: "user123", IsEnrolled: true},
				Token:   &services.TokenPair{AccessToken: "access_token_123", TokenType: "bearer"},
			}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/register-biometric", handlers.BiometricRegisterRequest{
		Username:         "johndoe",
		Email:            "john@example.com",
		Password:         "SecurePassword123!",
		Modality:         "face",
		BiometricPayload: "dmlkZW8=",
	})

	w := httptest.NewRecorder()
	handler.RegisterBiometric(w, req)

	var resp services.AuthResponse
	handlers.AssertJSONResponse(t, w, 201, &resp)
	assert.NotNil(t, resp.Token)
	assert.True(t, resp.User.IsEnrolled)
}

func TestRegisterBiometric_UnsupportedModality(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/register-biometric", handlers.BiometricRegisterRequest{
		Username:         "johndoe",
		Email:            "john@example.com",
		Password:         "SecurePassword123!",
		Modality:         "iris",
		BiometricPayload: "dmlkZW8=",
	})

	w := httptest.NewRecorder()
	handler.RegisterBiometric(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestLogin_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, params services.LoginParams) (*services.AuthResponse, error) {
			assert.Equal(t, "johndoe", params.Identifier)
			return &services.AuthResponse{
				Success: true,
				Message: "Login successful",
				Token:   &services.TokenPair{AccessToken: "access_token_123", RefreshToken: "refresh_token_123", TokenType: "bearer"},
			}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Username: "JohnDoe",
		Password: "SecurePassword123!",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp services.AuthResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "access_token_123", resp.Token.AccessToken)
}

func TestLogin_AuthenticationFailed(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, params services.LoginParams) (*services.AuthResponse, error) {
			return nil, models.ErrUnauthorized
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Username: "johndoe",
		Password: "wrongpassword",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestLogin_AccountLocked(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, params services.LoginParams) (*services.AuthResponse, error) {
			return nil, models.ErrAccountLocked
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Username: "johndoe",
		Password: "SecurePassword123!",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 429, "rate_limit_exceeded")
}

func TestLogin_RateLimitExceeded(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, params services.LoginParams) (*services.AuthResponse, error) {
			return nil, models.ErrRateLimitExceeded
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Username: "johndoe",
		Password: "SecurePassword123!",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 429, "rate_limit_exceeded")
}

func TestLoginBiometric_Success(t *testing.T) {
	score := 0.91
	mockAuth := &handlers.MockAuthService{
		LoginWithBiometricFunc: func(ctx context.Context, params services.BiometricLoginParams) (*services.AuthResponse, error) {
			assert.Equal(t, "face", params.Modality)
			return &services.AuthResponse{
				Success:        true,
				Message:        "Biometric login successful",
				Token:          &services.TokenPair{AccessToken: "access_token_123", TokenType: "bearer"},
				BiometricScore: &score,
			}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login-biometric", handlers.BiometricLoginRequest{
		Username:         "johndoe",
		Password:         "SecurePassword123!",
		Modality:         "face",
		BiometricPayload: "dmlkZW8=",
	})

	w := httptest.NewRecorder()
	handler.LoginBiometric(w, req)

	var resp services.AuthResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.NotNil(t, resp.BiometricScore)
	assert.InDelta(t, 0.91, *resp.BiometricScore, 0.0001)
}

func TestLoginBiometric_BiometricRejected(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginWithBiometricFunc: func(ctx context.Context, params services.BiometricLoginParams) (*services.AuthResponse, error) {
			return nil, models.ErrBiometricVerificationFailed
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login-biometric", handlers.BiometricLoginRequest{
		Username:         "johndoe",
		Password:         "SecurePassword123!",
		Modality:         "face",
		BiometricPayload: "dmlkZW8=",
	})

	w := httptest.NewRecorder()
	handler.LoginBiometric(w, req)

	handlers.AssertErrorResponse(t, w, 401, "biometric_verification_failed")
}

func TestLoginBiometric_MalformedPayload(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginWithBiometricFunc: func(ctx context.Context, params services.BiometricLoginParams) (*services.AuthResponse, error) {
			return nil, biometric.ErrMalformedPayload
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login-biometric", handlers.BiometricLoginRequest{
		Username:         "johndoe",
		Password:         "SecurePassword123!",
		Modality:         "face",
		BiometricPayload: "not base64!!!",
	})

	w := httptest.NewRecorder()
	handler.LoginBiometric(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestLoginBiometric_ThresholdOutOfRange(t *testing.T) {
	badThreshold := 1.5
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login-biometric", handlers.BiometricLoginRequest{
		Username:         "johndoe",
		Password:         "SecurePassword123!",
		Modality:         "face",
		BiometricPayload: "dmlkZW8=",
		Threshold:        &badThreshold,
	})

	w := httptest.NewRecorder()
	handler.LoginBiometric(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestRefreshToken_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		RefreshTokenFunc: func(ctx context.Context, refreshToken string) (*services.TokenPair, error) {
			assert.Equal(t, "refresh_token_123", refreshToken)
			return &services.TokenPair{
				AccessToken:  "new_access_token",
				RefreshToken: "new_refresh_token",
				TokenType:    "bearer",
			}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/refresh", handlers.RefreshTokenRequest{
		RefreshToken: "refresh_token_123",
	})

	w := httptest.NewRecorder()
	handler.RefreshToken(w, req)

	var pair services.TokenPair
	handlers.AssertJSONResponse(t, w, 200, &pair)
	assert.Equal(t, "new_access_token", pair.AccessToken)
}

func TestRefreshToken_Invalid(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		RefreshTokenFunc: func(ctx context.Context, refreshToken string) (*services.TokenPair, error) {
			return nil, models.ErrUnauthorized
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/refresh", handlers.RefreshTokenRequest{
		RefreshToken: "expired_token",
	})

	w := httptest.NewRecorder()
	handler.RefreshToken(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestVerifyToken_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		VerifyTokenFunc: func(ctx context.Context, accessToken string) (*services.UserResponse, error) {
			assert.Equal(t, "valid_token", accessToken)
			return &services.UserResponse{ID: "user123", Username: "johndoe"}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, nil)
	req := handlers.NewTestRequest(t, "GET", "/auth/verify", nil)
	req.Header.Set("Authorization", "Bearer valid_token")

	w := httptest.NewRecorder()
	handler.VerifyToken(w, req)

	var resp services.UserResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "user123", resp.ID)
}

func TestVerifyToken_MissingHeader(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, nil, nil)
	req := handlers.NewTestRequest(t, "GET", "/auth/verify", nil)

	w := httptest.NewRecorder()
	handler.VerifyToken(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestVerifyToken_MalformedHeader(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, nil, nil)
	req := handlers.NewTestRequest(t, "GET", "/auth/verify", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	w := httptest.NewRecorder()
	handler.VerifyToken(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestLogout_Success(t *testing.T) {
	logoutCalled := false
	mockAuth := &handlers.MockAuthService{
		LogoutFunc: func(ctx context.Context, accessToken, ipAddress string) error {
			logoutCalled = true
			assert.Equal(t, "valid_token", accessToken)
			return nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer valid_token")

	w := httptest.NewRecorder()
	handler.Logout(w, req)

	var resp map[string]string
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "Logout successful", resp["message"])
	assert.True(t, logoutCalled)
}

func TestLogout_InvalidToken(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LogoutFunc: func(ctx context.Context, accessToken, ipAddress string) error {
			return models.ErrUnauthorized
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer bad_token")

	w := httptest.NewRecorder()
	handler.Logout(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestRequestPasswordReset_AlwaysAccepted(t *testing.T) {
	requested := false
	mockResets := &handlers.MockPasswordResetService{
		RequestResetFunc: func(ctx context.Context, email, ipAddress string) error {
			requested = true
			assert.Equal(t, "john@example.com", email)
			return nil
		},
	}

	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, mockResets, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/password-reset/request", handlers.PasswordResetRequestBody{
		Email: "john@example.com",
	})

	w := httptest.NewRecorder()
	handler.RequestPasswordReset(w, req)

	var resp map[string]string
	handlers.AssertJSONResponse(t, w, 202, &resp)
	assert.True(t, requested)
}

func TestRequestPasswordReset_InvalidEmail(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, &handlers.MockPasswordResetService{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/password-reset/request", handlers.PasswordResetRequestBody{
		Email: "not-an-email",
	})

	w := httptest.NewRecorder()
	handler.RequestPasswordReset(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestConfirmPasswordReset_Success(t *testing.T) {
	mockResets := &handlers.MockPasswordResetService{
		ConfirmResetFunc: func(ctx context.Context, plainToken, newPassword, ipAddress string) error {
			assert.Equal(t, "reset-token-abc", plainToken)
			assert.Equal(t, "BrandNewPassword456!", newPassword)
			return nil
		},
	}

	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, mockResets, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/password-reset/confirm", handlers.PasswordResetConfirmBody{
		Token:       "reset-token-abc",
		NewPassword: "BrandNewPassword456!",
	})

	w := httptest.NewRecorder()
	handler.ConfirmPasswordReset(w, req)

	var resp map[string]string
	handlers.AssertJSONResponse(t, w, 200, &resp)
}

func TestConfirmPasswordReset_InvalidToken(t *testing.T) {
	mockResets := &handlers.MockPasswordResetService{
		ConfirmResetFunc: func(ctx context.Context, plainToken, newPassword, ipAddress string) error {
			return models.ErrUnauthorized
		},
	}

	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, mockResets, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/password-reset/confirm", handlers.PasswordResetConfirmBody{
		Token:       "expired-token",
		NewPassword: "BrandNewPassword456!",
	})

	w := httptest.NewRecorder()
	handler.ConfirmPasswordReset(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}
