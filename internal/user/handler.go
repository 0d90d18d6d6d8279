package user

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/schooladmin/school-admin/internal"
	"github.com/schooladmin/school-admin/internal/transport"
	"github.com/schooladmin/school-admin/pkg/logger"
)

type ServiceAPI interface {
	Create(ctx context.Context, nu NewUser) (*Identity, error)
	GetByID(ctx context.Context, id string) (*Identity, error)
	GetAllUsers(ctx context.Context, page, limit int, filters Filters) (*UserPage, error)
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*Identity, error)
	ToggleStatus(ctx context.Context, id string) (*Identity, error)
	UsernameExists(ctx context.Context, username, excludeID string) (bool, error)
	EmailExists(ctx context.Context, email, excludeID string) (bool, error)
}

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

// ListUsers handles GET /users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := Filters{Search: q.Get("search")}
	if role := q.Get("role"); role != "" {
		parsed, err := ParseRole(role)
		if err != nil {
			h.WriteAppError(w, r, err)
			return
		}
		filters.Role = parsed
	}
	if active := q.Get("is_active"); active != "" {
		b, err := strconv.ParseBool(active)
		if err != nil {
			h.WriteAppError(w, r, internal.NewValidationFieldError("is_active", "is_active must be true or false", internal.ErrCodeValidationFailed))
			return
		}
		filters.IsActive = &b
	}

	page, err := h.Service.GetAllUsers(r.Context(), h.QueryInt(r, "page", 1), h.QueryInt(r, "limit", defaultPageSize), filters)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, page)
}

// CreateUser handles POST /users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	taken, err := h.Service.UsernameExists(r.Context(), req.Username, "")
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	if taken {
		h.WriteAppError(w, r, internal.ErrUsernameTaken)
		return
	}
	taken, err = h.Service.EmailExists(r.Context(), req.Email, "")
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	if taken {
		h.WriteAppError(w, r, internal.ErrEmailTaken)
		return
	}

	created, err := h.Service.Create(r.Context(), req.ToNewUser())
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	h.Log(r.Context()).InfoContext(r.Context(), "user created", "user_id", created.ID, "role", created.Role)
	h.WriteJSON(w, http.StatusCreated, created)
}

// GetUser handles GET /users/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	if u == nil {
		h.WriteAppError(w, r, internal.NewNotFoundError("User not found", internal.ErrCodeRecordNotFound))
		return
	}
	h.WriteJSON(w, http.StatusOK, u)
}

// UpdateUser handles PUT /users/{id}
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	u, err := h.Service.UpdateProfile(r.Context(), chi.URLParam(r, "id"), req.ToProfileUpdate())
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, u)
}

// ToggleStatus handles PATCH /users/{id}/status
func (h *Handler) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if p, ok := internal.PrincipalFromContext(r.Context()); ok && p.ID == id {
		h.WriteAppError(w, r, internal.NewValidationError("You cannot change your own account status", internal.ErrCodeValidationFailed))
		return
	}

	u, err := h.Service.ToggleStatus(r.Context(), id)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	h.Log(r.Context()).InfoContext(r.Context(), "user status changed", "user_id", u.ID, "is_active", u.IsActive)
	h.WriteJSON(w, http.StatusOK, u)
}
