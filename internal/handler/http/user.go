package http

import (
	"log/slog"
	"net/http"

	"github.com/Girirajbhatt/careerhub/internal/service"
	"github.com/Girirajbhatt/careerhub/pkg/httputil"
	"github.com/Girirajbhatt/careerhub/pkg/middleware"
	"github.com/Girirajbhatt/careerhub/pkg/pagination"
	"github.com/Girirajbhatt/careerhub/pkg/validator"
)

// UserHandler handles HTTP requests for the caller's account and the admin
// dashboard.
type UserHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(svc *service.AuthService, logger *slog.Logger) *UserHandler {
	return &UserHandler{service: svc, logger: logger}
}

// UpdateUserRequest is the JSON request body for a profile update.
type UpdateUserRequest struct {
	DisplayName *string `json:"display_name" validate:"omitempty,min=1,max=100"`
}

// GetUser handles GET /api/v1/user/get-user
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	identity, err := h.service.CurrentIdentity(r.Context(), middleware.IdentityIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, identity, "")
}

// UpdateUser handles PATCH /api/v1/user/update-user
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req UpdateUserRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	identity, err := h.service.UpdateProfile(r.Context(), middleware.IdentityIDFromContext(r.Context()), service.UpdateProfileInput{
		DisplayName: req.DisplayName,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, identity, "profile updated")
}

// AdminDashboard handles GET /api/v1/user/admin-dashboard
func (h *UserHandler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.ListIdentities(r.Context(), pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, page, "")
}
