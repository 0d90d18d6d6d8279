package auth

import (
	"log/slog"
	"net/http"

	"github.com/schooladmin/school-admin/internal"
	"github.com/schooladmin/school-admin/internal/transport"
	"github.com/schooladmin/school-admin/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

// Login handles POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	session, err := h.Service.Login(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	h.Log(r.Context()).InfoContext(r.Context(), "user logged in", "user_id", session.User.ID, "role", session.User.Role)
	h.WriteJSON(w, http.StatusOK, session)
}

// Logout handles POST /auth/logout. Tokens are stateless so the client
// discards its copy.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if p, ok := internal.PrincipalFromContext(r.Context()); ok {
		h.Log(r.Context()).InfoContext(r.Context(), "user logged out", "user_id", p.ID)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := internal.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, r, internal.ErrNoToken)
		return
	}
	h.WriteJSON(w, http.StatusOK, MeResponse{Principal: p})
}

// ChangePassword handles POST /auth/change-password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := internal.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, r, internal.ErrNoToken)
		return
	}

	var dto ChangePasswordDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	if err := h.Service.ChangePassword(r.Context(), p.ID, dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}
