package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"resource-auth-service/internal/models"
	"resource-auth-service/internal/repository"
	"resource-auth-service/internal/service"
	"resource-auth-service/internal/util"
)

// CustomizationHandler exposes the administrator branding surface. Unlike
// the authentication surface, errors here are verbose: only administrators
// reach this path, and field-level feedback is the point.
//
// These routes must be mounted behind the same authorization middleware as
// every other resource-administration write.
type CustomizationHandler struct {
	customizationService *service.CustomizationService
	logger               *zap.Logger
}

func NewCustomizationHandler(customizationService *service.CustomizationService, logger *zap.Logger) *CustomizationHandler {
	return &CustomizationHandler{
		customizationService: customizationService,
		logger:               logger,
	}
}

// RegisterRoutes registers the customization routes.
func (h *CustomizationHandler) RegisterRoutes(router chi.Router) {
	router.Route("/resource/{resourceID}/auth-customization", func(r chi.Router) {
		r.Get("/", h.GetCustomization)
		r.Post("/", h.SetCustomization)
	})
}

// GetCustomization returns the stored branding record for the settings form.
func (h *CustomizationHandler) GetCustomization(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resourceID, ok := h.resourceID(w, r)
	if !ok {
		return
	}

	rec, err := h.customizationService.Get(ctx, resourceID)
	if err != nil {
		statusCode := h.getStatusCode(err)
		h.respondWithError(w, statusCode, err, "Failed to get auth customization")
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(rec, "Auth customization retrieved"))
}

// SetCustomization validates and replaces the whole branding record.
func (h *CustomizationHandler) SetCustomization(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	resourceID, ok := h.resourceID(w, r)
	if !ok {
		return
	}

	var rec models.AuthCustomization
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	rec.ResourceID = resourceID

	if err := h.customizationService.Set(ctx, &rec); err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			h.respondWithJSON(w, http.StatusBadRequest, Response{
				Success: false,
				Error:   verr.Error(),
				Message: "Validation failed",
				Data:    verr,
			})
			return
		}
		statusCode := h.getStatusCode(err)
		h.respondWithError(w, statusCode, err, "Failed to update auth customization")
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(nil, "Auth customization updated successfully"))
	h.logger.Info("Auth customization updated via HTTP",
		util.Int("resource_id", resourceID),
		util.Bool("enabled", rec.Enabled),
		util.Duration("duration", time.Since(startTime)),
	)
}

// Helpers

func (h *CustomizationHandler) resourceID(w http.ResponseWriter, r *http.Request) (int, bool) {
	idStr := chi.URLParam(r, "resourceID")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid resource ID format")
		return 0, false
	}
	return id, true
}

func (h *CustomizationHandler) getStatusCode(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *CustomizationHandler) respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", util.ErrorField(err))
	}
}

func (h *CustomizationHandler) respondWithError(w http.ResponseWriter, statusCode int, err error, message string) {
	h.logger.Warn("HTTP error response",
		util.ErrorField(err),
		util.Int("status_code", statusCode),
		util.String("message", message),
	)
	if statusCode >= http.StatusInternalServerError {
		h.respondWithJSON(w, statusCode, internalErrorResponse(message))
		return
	}
	h.respondWithJSON(w, statusCode, errorResponse(err, message))
}
