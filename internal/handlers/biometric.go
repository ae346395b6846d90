package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Ibrahim99575/authentication-system/internal/auth"
	"github.com/Ibrahim99575/authentication-system/internal/biometric"
	"github.com/Ibrahim99575/authentication-system/internal/models"
	"github.com/Ibrahim99575/authentication-system/internal/services"
	pkghttp "github.com/Ibrahim99575/authentication-system/pkg/http"
)

// BiometricServiceInterface defines the interface for biometric business logic
type BiometricServiceInterface interface {
	Enroll(ctx context.Context, params services.EnrollParams) (*models.BiometricResult, error)
	Verify(ctx context.Context, params services.VerifyParams) (*models.BiometricResult, error)
	Status(ctx context.Context, userID string) (*models.BiometricStatus, error)
	ListTemplates(ctx context.Context, userID string) ([]models.TemplateSummary, error)
	DeleteTemplate(ctx context.Context, userID, templateID, ipAddress string) error
	SetPrimary(ctx context.Context, userID, templateID, ipAddress string) error
}

// BiometricHandler handles biometric enrollment and verification HTTP requests
type BiometricHandler struct {
	service  BiometricServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewBiometricHandler creates a new BiometricHandler
func NewBiometricHandler(service BiometricServiceInterface, ipConfig *pkghttp.IPConfig) *BiometricHandler {
	return &BiometricHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// Request DTOs

// EnrollRequest represents the request body for biometric enrollment
type EnrollRequest struct {
	Modality         string  `json:"modality" validate:"required,oneof=face fingerprint"`
	BiometricPayload string  `json:"biometric_payload" validate:"required"`
	ReplaceExisting  bool    `json:"replace_existing"`
	DeviceInfo       *string `json:"device_info" validate:"omitempty,max=255"`
}

// VerifyRequest represents the request body for biometric verification
type VerifyRequest struct {
	Modality         string   `json:"modality" validate:"required,oneof=face fingerprint"`
	BiometricPayload string   `json:"biometric_payload" validate:"required"`
	Threshold        *float64 `json:"threshold" validate:"omitempty,gt=0,lte=1"`
}

// TemplateListResponse represents the template listing response
type TemplateListResponse struct {
	Templates []models.TemplateSummary `json:"templates"`
	Total     int                      `json:"total"`
}

// Enroll handles biometric template enrollment for the current user.
// A payload that decodes but yields no usable signal is a negative result
// in the body, not an HTTP error.
// @Summary Enroll a biometric template
// @Accept json
// @Security BearerAuth
// @Param request body EnrollRequest true "Enroll request"
// @Produce json
// @Success 200 {object} models.BiometricResult
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /biometric/enroll [post]
func (h *BiometricHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req EnrollRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.Enroll(r.Context(), services.EnrollParams{
		UserID:          claims.UserID,
		Modality:        req.Modality,
		Payload:         req.BiometricPayload,
		ReplaceExisting: req.ReplaceExisting,
		DeviceInfo:      req.DeviceInfo,
		IPAddress:       pkghttp.ExtractClientIP(r, h.ipConfig),
	})
	if err != nil {
		h.writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Verify handles biometric verification for the current user. A
// below-threshold comparison is a negative result in the body, not an
// HTTP error.
// @Summary Verify a biometric sample against enrolled templates
// @Accept json
// @Security BearerAuth
// @Param request body VerifyRequest true "Verify request"
// @Produce json
// @Success 200 {object} models.BiometricResult
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /biometric/verify [post]
func (h *BiometricHandler) Verify(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req VerifyRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.Verify(r.Context(), services.VerifyParams{
		UserID:    claims.UserID,
		Modality:  req.Modality,
		Payload:   req.BiometricPayload,
		Threshold: req.Threshold,
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
	})
	if err != nil {
		h.writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetStatus returns the biometric enrollment status for the current user
// @Summary Get biometric enrollment status
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.BiometricStatus
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /biometric/status [get]
func (h *BiometricHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	status, err := h.service.Status(r.Context(), claims.UserID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to get biometric status")
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// ListTemplates returns the current user's template summaries. Payload
// bytes never leave the store.
// @Summary List biometric templates
// @Security BearerAuth
// @Produce json
// @Success 200 {object} TemplateListResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /biometric/templates [get]
func (h *BiometricHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	templates, err := h.service.ListTemplates(r.Context(), claims.UserID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to get biometric templates")
		return
	}

	writeJSON(w, http.StatusOK, TemplateListResponse{
		Templates: templates,
		Total:     len(templates),
	})
}

// DeleteTemplate deletes one of the current user's templates. Deleting a
// template owned by someone else reads as not found.
// @Summary Delete a biometric template
// @Security BearerAuth
// @Param id path string true "Template ID"
// @Success 204
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /biometric/templates/{id} [delete]
func (h *BiometricHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	templateID := chi.URLParam(r, "id")
	if templateID == "" {
		pkghttp.WriteBadRequest(w, "Template ID is required")
		return
	}

	err := h.service.DeleteTemplate(r.Context(), claims.UserID, templateID, pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Template not found or access denied")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to delete template")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetPrimary marks one of the current user's templates as primary
// @Summary Set a template as primary
// @Security BearerAuth
// @Param id path string true "Template ID"
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /biometric/templates/{id}/set-primary [post]
func (h *BiometricHandler) SetPrimary(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	templateID := chi.URLParam(r, "id")
	if templateID == "" {
		pkghttp.WriteBadRequest(w, "Template ID is required")
		return
	}

	err := h.service.SetPrimary(r.Context(), claims.UserID, templateID, pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Template not found")
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "Cannot set an inactive template as primary")
		default:
			pkghttp.WriteInternalError(w, "Failed to set primary template")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Primary template updated",
	})
}

// writePipelineError maps enrollment/verification pipeline errors. Input
// rejections are 400s; anything else is a system fault.
func (h *BiometricHandler) writePipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, biometric.ErrMalformedPayload):
		pkghttp.WriteError(w, http.StatusBadRequest, "malformed_payload", "Biometric payload is not valid base64")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Unsupported biometric modality. Supported: face, fingerprint")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
