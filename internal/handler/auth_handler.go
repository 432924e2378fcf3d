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
	redisrepo "resource-auth-service/internal/repository/redis"
	"resource-auth-service/internal/service"
	"resource-auth-service/internal/util"
)

// AuthHandler exposes the end-user authentication surface. Every denial on
// this surface is the same generic response; specifics live in logs and the
// audit stream only.
type AuthHandler struct {
	authService *service.AuthService
	logger      *zap.Logger
}

func NewAuthHandler(authService *service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, logger: logger}
}

// RegisterRoutes registers the authentication routes.
func (h *AuthHandler) RegisterRoutes(router chi.Router) {
	router.Route("/auth", func(r chi.Router) {
		r.Get("/resource/{resourceID}", h.GetPortal)
		r.Post("/resource/{resourceID}/password", h.AuthWithPassword)
		r.Post("/resource/{resourceID}/pincode", h.AuthWithPincode)
		r.Post("/resource/{resourceID}/whitelist", h.AuthWithWhitelist)
		r.Get("/session/{token}", h.IntrospectSession)
	})
}

type passwordRequest struct {
	Password string `json:"password"`
	Redirect string `json:"redirect,omitempty"`
}

type pincodeRequest struct {
	Pincode  string `json:"pincode"`
	Redirect string `json:"redirect,omitempty"`
}

type whitelistRequest struct {
	Email    string `json:"email"`
	OTP      string `json:"otp,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

type sessionResponse struct {
	Session  string `json:"session"`
	Redirect string `json:"redirect,omitempty"`
}

type whitelistResponse struct {
	OTPSent  bool   `json:"otpSent"`
	Session  string `json:"session,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

// GetPortal returns the portal bootstrap view: offered methods plus the
// sanitized branding in one payload.
func (h *AuthHandler) GetPortal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resourceID, ok := h.resourceID(w, r)
	if !ok {
		return
	}

	view, err := h.authService.GetPortal(ctx, resourceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.respondWithError(w, http.StatusNotFound, err, "Resource not found")
			return
		}
		h.respondWithError(w, http.StatusInternalServerError, err, "Failed to load auth portal")
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(view, "Auth portal loaded"))
}

// AuthWithPassword handles the static-password method.
func (h *AuthHandler) AuthWithPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	resourceID, ok := h.resourceID(w, r)
	if !ok {
		return
	}

	var req passwordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	outcome, err := h.authService.Authenticate(ctx, resourceID, models.MethodPassword, service.AuthPayload{
		Password:   req.Password,
		RemoteAddr: r.RemoteAddr,
	})
	if err != nil {
		h.respondWithDenial(w, resourceID, models.MethodPassword)
		return
	}

	h.respondWithSession(w, outcome.Session, req.Redirect)
	h.logger.Info("Password authentication succeeded via HTTP",
		util.Int("resource_id", resourceID),
		util.Duration("duration", time.Since(startTime)),
	)
}

// AuthWithPincode handles the six-digit PIN method.
func (h *AuthHandler) AuthWithPincode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	resourceID, ok := h.resourceID(w, r)
	if !ok {
		return
	}

	var req pincodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	outcome, err := h.authService.Authenticate(ctx, resourceID, models.MethodPincode, service.AuthPayload{
		Pincode:    req.Pincode,
		RemoteAddr: r.RemoteAddr,
	})
	if err != nil {
		h.respondWithDenial(w, resourceID, models.MethodPincode)
		return
	}

	h.respondWithSession(w, outcome.Session, req.Redirect)
	h.logger.Info("Pincode authentication succeeded via HTTP",
		util.Int("resource_id", resourceID),
		util.Duration("duration", time.Since(startTime)),
	)
}

// AuthWithWhitelist drives the two-step email flow: a body with only an email
// requests a challenge; a body with email and otp submits one.
func (h *AuthHandler) AuthWithWhitelist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resourceID, ok := h.resourceID(w, r)
	if !ok {
		return
	}

	var req whitelistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	outcome, err := h.authService.Authenticate(ctx, resourceID, models.MethodWhitelist, service.AuthPayload{
		Email:      req.Email,
		OTP:        req.OTP,
		RemoteAddr: r.RemoteAddr,
	})
	if err != nil {
		h.respondWithDenial(w, resourceID, models.MethodWhitelist)
		return
	}

	if outcome.OTPSent {
		h.respondWithJSON(w, http.StatusOK, successResponse(whitelistResponse{OTPSent: true}, "OTP sent"))
		return
	}

	resp := whitelistResponse{Session: outcome.Session}
	if req.Redirect != "" {
		if redirect, err := h.authService.BuildRedirectURL(req.Redirect, outcome.Session); err == nil {
			resp.Redirect = redirect
		}
	}
	h.respondWithJSON(w, http.StatusOK, successResponse(resp, "Authentication succeeded"))
}

// IntrospectSession resolves a session token for the fronting proxy.
func (h *AuthHandler) IntrospectSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := chi.URLParam(r, "token")
	if token == "" {
		h.respondWithError(w, http.StatusBadRequest, errors.New("token is required"), "Token is required")
		return
	}

	rec, err := h.authService.IntrospectSession(ctx, token)
	if err != nil {
		if errors.Is(err, redisrepo.ErrSessionNotFound) {
			h.respondWithError(w, http.StatusNotFound, err, "Session not found")
			return
		}
		h.respondWithError(w, http.StatusInternalServerError, err, "Failed to introspect session")
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(rec, "Session found"))
}

// Helpers

func (h *AuthHandler) resourceID(w http.ResponseWriter, r *http.Request) (int, bool) {
	idStr := chi.URLParam(r, "resourceID")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid resource ID format")
		return 0, false
	}
	return id, true
}

func (h *AuthHandler) respondWithSession(w http.ResponseWriter, token, redirectTarget string) {
	resp := sessionResponse{Session: token}
	if redirectTarget != "" {
		if redirect, err := h.authService.BuildRedirectURL(redirectTarget, token); err == nil {
			resp.Redirect = redirect
		}
	}
	h.respondWithJSON(w, http.StatusOK, successResponse(resp, "Authentication succeeded"))
}

// respondWithDenial is the single denial shape for the whole authentication
// surface. It leaks nothing about why the attempt failed.
func (h *AuthHandler) respondWithDenial(w http.ResponseWriter, resourceID int, method models.AuthMethod) {
	h.logger.Debug("Authentication denied via HTTP",
		util.Int("resource_id", resourceID),
		util.String("method", string(method)),
	)
	h.respondWithJSON(w, http.StatusUnauthorized, Response{
		Success: false,
		Error:   "access_denied",
		Message: "Authentication failed",
	})
}

func (h *AuthHandler) respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", util.ErrorField(err))
	}
}

func (h *AuthHandler) respondWithError(w http.ResponseWriter, statusCode int, err error, message string) {
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
