package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Girirajbhatt/careerhub/internal/domain"
	"github.com/Girirajbhatt/careerhub/internal/service"
	"github.com/Girirajbhatt/careerhub/pkg/httputil"
	"github.com/Girirajbhatt/careerhub/pkg/middleware"
	"github.com/Girirajbhatt/careerhub/pkg/validator"
)

// maxBodyBytes caps every identity request body.
const maxBodyBytes = 1 << 20

// AuthHandler handles HTTP requests for session endpoints.
type AuthHandler struct {
	service *service.AuthService
	cookies CookieConfig
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.AuthService, cookies CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, cookies: cookies, logger: logger}
}

// --- Request DTOs ---

// RegisterRequest is the JSON request body for self-registration.
type RegisterRequest struct {
	Handle      string `json:"handle" validate:"required,email,max=254"`
	DisplayName string `json:"display_name" validate:"required,min=1,max=100"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	Role        string `json:"role" validate:"required,oneof=student recruiter"`
}

// LoginRequest is the JSON request body for login.
type LoginRequest struct {
	Handle   string `json:"handle" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

// RefreshTokenRequest is the optional JSON body for token refresh. When it
// is absent the refresh cookie is used.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ChangePasswordRequest is the JSON request body for a password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required,max=72"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

// --- Handlers ---

// Register handles POST /api/v1/user/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req RegisterRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	identity, err := h.service.Register(r.Context(), service.RegisterInput{
		Handle:      req.Handle,
		DisplayName: req.DisplayName,
		Password:    req.Password,
		Role:        domain.Role(req.Role),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, identity, "user registered successfully")
}

// Login handles POST /api/v1/user/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req LoginRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	session, err := h.service.Login(r.Context(), service.LoginInput{
		Handle:   req.Handle,
		Password: req.Password,
		ClientIP: middleware.ClientIP(r),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.cookies.setSession(w, session.Tokens)
	httputil.WriteData(w, http.StatusOK, session, "logged in successfully")
}

// RefreshToken handles POST /api/v1/user/refresh-token
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req RefreshTokenRequest
	if err := validator.Decode(r, &req); err != nil && !errors.Is(err, validator.ErrEmptyBody) {
		httputil.WriteValidationError(w, err)
		return
	}
	if req.RefreshToken == "" {
		req.RefreshToken = refreshTokenFromCookie(r)
	}

	session, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.cookies.clearSession(w)
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.cookies.setSession(w, session.Tokens)
	httputil.WriteData(w, http.StatusOK, session, "access token refreshed")
}

// Logout handles POST /api/v1/user/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), middleware.IdentityIDFromContext(r.Context())); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.cookies.clearSession(w)
	httputil.WriteData(w, http.StatusOK, nil, "logged out successfully")
}

// ChangePassword handles POST /api/v1/user/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req ChangePasswordRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	identityID := middleware.IdentityIDFromContext(r.Context())
	if err := h.service.ChangePassword(r.Context(), identityID, req.CurrentPassword, req.NewPassword); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.cookies.clearSession(w)
	httputil.WriteData(w, http.StatusOK, nil, "password changed, please log in again")
}
