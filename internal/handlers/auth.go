package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Ibrahim99575/authentication-system/internal/biometric"
	"github.com/Ibrahim99575/authentication-system/internal/models"
	"github.com/Ibrahim99575/authentication-system/internal/services"
	pkgauth "github.com/Ibrahim99575/authentication-system/pkg/auth"
	pkghttp "github.com/Ibrahim99575/authentication-system/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Register(ctx context.Context, params services.RegisterParams) (*services.AuthResponse, error)
	RegisterWithBiometric(ctx context.Context, params services.RegisterParams, modality, payload string) (*services.AuthResponse, error)
	Login(ctx context.Context, params services.LoginParams) (*services.AuthResponse, error)
	LoginWithBiometric(ctx context.Context, params services.BiometricLoginParams) (*services.AuthResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	VerifyToken(ctx context.Context, accessToken string) (*services.UserResponse, error)
	Logout(ctx context.Context, accessToken, ipAddress string) error
}

// PasswordResetServiceInterface defines the interface for password reset flows
type PasswordResetServiceInterface interface {
	RequestReset(ctx context.Context, email, ipAddress string) error
	ConfirmReset(ctx context.Context, plainToken, newPassword, ipAddress string) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	resets   PasswordResetServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, resets PasswordResetServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		resets:   resets,
		ipConfig: ipConfig,
	}
}

// Request DTOs

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Username string  `json:"username" validate:"required,min=3,max=50"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required"`
	FullName string  `json:"full_name" validate:"omitempty,max=100"`
	Phone    *string `json:"phone" validate:"omitempty,max=20"`
}

// BiometricRegisterRequest represents the request body for registration with
// an inline biometric enrollment
type BiometricRegisterRequest struct {
	Username         string  `json:"username" validate:"required,min=3,max=50"`
	Email            string  `json:"email" validate:"required,email"`
	Password         string  `json:"password" validate:"required"`
	FullName         string  `json:"full_name" validate:"omitempty,max=100"`
	Phone            *string `json:"phone" validate:"omitempty,max=20"`
	Modality         string  `json:"modality" validate:"required,oneof=face fingerprint"`
	BiometricPayload string  `json:"biometric_payload" validate:"required"`
}

// LoginRequest represents the request body for password login. Username
// accepts either the username or the registered email address.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// BiometricLoginRequest represents the request body for combined
// password-plus-biometric login
type BiometricLoginRequest struct {
	Username         string   `json:"username" validate:"required"`
	Password         string   `json:"password" validate:"required"`
	Modality         string   `json:"modality" validate:"required,oneof=face fingerprint"`
	BiometricPayload string   `json:"biometric_payload" validate:"required"`
	Threshold        *float64 `json:"threshold" validate:"omitempty,gt=0,lte=1"`
}

// RefreshTokenRequest represents the request body for token refresh
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// PasswordResetRequestBody represents the request body for initiating a
// password reset
type PasswordResetRequestBody struct {
	Email string `json:"email" validate:"required,email"`
}

// PasswordResetConfirmBody represents the request body for completing a
// password reset
type PasswordResetConfirmBody struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// Register handles user registration
// @Summary Register a new user
// @Accept json
// @Param request body RegisterRequest true "Register request"
// @Produce json
// @Success 201 {object} services.AuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	resp, err := h.service.Register(r.Context(), h.registerParams(r, req))
	if err != nil {
		h.writeRegisterError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// RegisterBiometric handles user registration with an inline biometric
// enrollment. Enrollment failure does not fail the registration; the
// response reports the enrollment outcome alongside the created account.
// @Summary Register a new user with biometric enrollment
// @Accept json
// @Param request body BiometricRegisterRequest true "Biometric register request"
// @Produce json
// @Success 201 {object} services.AuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/register-biometric [post]
func (h *AuthHandler) RegisterBiometric(w http.ResponseWriter, r *http.Request) {
	var req BiometricRegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	params := h.registerParams(r, RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Phone:    req.Phone,
	})

	resp, err := h.service.RegisterWithBiometric(r.Context(), params, req.Modality, req.BiometricPayload)
	if err != nil {
		h.writeRegisterError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Login handles password login
// @Summary Login with username and password
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} services.AuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	resp, err := h.service.Login(r.Context(), services.LoginParams{
		Identifier: strings.ToLower(strings.TrimSpace(req.Username)),
		Password:   req.Password,
		IPAddress:  pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent:  r.Header.Get("User-Agent"),
	})
	if err != nil {
		h.writeLoginError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// LoginBiometric handles combined password-plus-biometric login. Both
// factors must pass; a biometric rejection after a correct password is
// reported distinctly so clients can prompt for a fresh capture.
// @Summary Login with password and biometric verification
// @Accept json
// @Param request body BiometricLoginRequest true "Biometric login request"
// @Produce json
// @Success 200 {object} services.AuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/login-biometric [post]
func (h *AuthHandler) LoginBiometric(w http.ResponseWriter, r *http.Request) {
	var req BiometricLoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	resp, err := h.service.LoginWithBiometric(r.Context(), services.BiometricLoginParams{
		LoginParams: services.LoginParams{
			Identifier: strings.ToLower(strings.TrimSpace(req.Username)),
			Password:   req.Password,
			IPAddress:  pkghttp.ExtractClientIP(r, h.ipConfig),
			UserAgent:  r.Header.Get("User-Agent"),
		},
		Modality:  req.Modality,
		Payload:   req.BiometricPayload,
		Threshold: req.Threshold,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrBiometricVerificationFailed):
			pkghttp.WriteError(w, http.StatusUnauthorized, "biometric_verification_failed", "Biometric verification failed")
		case errors.Is(err, biometric.ErrMalformedPayload):
			pkghttp.WriteBadRequest(w, "Biometric payload is not valid base64")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Unsupported biometric modality. Supported: face, fingerprint")
		default:
			h.writeLoginError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// RefreshToken handles token refresh
// @Summary Refresh access token
// @Accept json
// @Param request body RefreshTokenRequest true "Refresh token request"
// @Produce json
// @Success 200 {object} services.TokenPair
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/refresh [post]
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	pair, err := h.service.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			pkghttp.WriteUnauthorized(w, "Invalid refresh token")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// VerifyToken handles access token introspection. The token travels in the
// Authorization header, same as for protected routes.
// @Summary Verify current access token and return user info
// @Security BearerAuth
// @Produce json
// @Success 200 {object} services.UserResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/verify [get]
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		pkghttp.WriteUnauthorized(w, "Missing or malformed authorization header")
		return
	}

	user, err := h.service.VerifyToken(r.Context(), token)
	if err != nil {
		pkghttp.WriteUnauthorized(w, "Invalid token")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// Logout handles user logout. Sessions are stateless, so this validates the
// token and records the logout; clients discard their tokens.
// @Summary Logout the current user
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 401 {object} ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		pkghttp.WriteUnauthorized(w, "Missing or malformed authorization header")
		return
	}

	if err := h.service.Logout(r.Context(), token, pkghttp.ExtractClientIP(r, h.ipConfig)); err != nil {
		pkghttp.WriteUnauthorized(w, "Invalid token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Logout successful",
	})
}

// RequestPasswordReset handles initiation of a password reset. The response
// is identical whether or not the email is registered.
// @Summary Request a password reset email
// @Accept json
// @Param request body PasswordResetRequestBody true "Password reset request"
// @Produce json
// @Success 202 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Router /auth/password-reset/request [post]
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequestBody

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.resets.RequestReset(r.Context(), req.Email, pkghttp.ExtractClientIP(r, h.ipConfig)); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "If an account exists with this email, a password reset link will be sent.",
	})
}

// ConfirmPasswordReset handles completion of a password reset with the
// emailed token
// @Summary Confirm a password reset
// @Accept json
// @Param request body PasswordResetConfirmBody true "Password reset confirmation"
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/password-reset/confirm [post]
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetConfirmBody

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	err := h.resets.ConfirmReset(r.Context(), req.Token, req.NewPassword, pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		var validationErr *pkgauth.PasswordValidationError
		switch {
		case errors.As(err, &validationErr):
			pkghttp.WriteError(w, http.StatusBadRequest, "invalid_password", validationErr.Error())
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Invalid or expired reset token")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Password has been reset successfully",
	})
}

// Helpers

func (h *AuthHandler) registerParams(r *http.Request, req RegisterRequest) services.RegisterParams {
	return services.RegisterParams{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FullName:  strings.TrimSpace(req.FullName),
		Phone:     req.Phone,
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.Header.Get("User-Agent"),
	}
}

func (h *AuthHandler) writeRegisterError(w http.ResponseWriter, err error) {
	var validationErr *pkgauth.PasswordValidationError
	switch {
	case errors.As(err, &validationErr):
		pkghttp.WriteError(w, http.StatusBadRequest, "invalid_password", validationErr.Error())
	case errors.Is(err, models.ErrConflict):
		// Does not reveal which identifier collided
		pkghttp.WriteConflict(w, "Username or email already registered")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid registration data")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

func (h *AuthHandler) writeLoginError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrAccountLocked),
		errors.Is(err, models.ErrRateLimitExceeded):
		pkghttp.WriteTooManyRequests(w, "Too many failed login attempts. Please try again later.")
	case errors.Is(err, models.ErrUnauthorized):
		// Wrong password, unknown user, and disabled account all read the same
		pkghttp.WriteUnauthorized(w, "Invalid username or password")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Username and password are required")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// bearerToken extracts the token from the Authorization header, or returns
// an empty string when the header is missing or not a Bearer scheme.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// writeJSON writes a JSON response body with the given status code
func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
