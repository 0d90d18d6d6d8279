package permission

import (
	"log/slog"
	"net/http"

	"github.com/schooladmin/school-admin/internal"
	"github.com/schooladmin/school-admin/internal/transport"
)

// Authorizer guards routes with the permission matrix. It must run after the
// authentication gate has attached a principal.
type Authorizer struct {
	*transport.BaseHandler
	matrix *Matrix
}

func NewAuthorizer(matrix *Matrix, logger *slog.Logger) *Authorizer {
	if matrix == nil {
		matrix = DefaultMatrix()
	}
	return &Authorizer{
		BaseHandler: transport.NewBaseHandler(logger),
		matrix:      matrix,
	}
}

func (a *Authorizer) Matrix() *Matrix {
	return a.matrix
}

// Require rejects requests whose principal lacks action on res.
func (a *Authorizer) Require(res Resource, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.allow(w, r, res, action) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireMethod derives the action from the request method.
func (a *Authorizer) RequireMethod(res Resource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.allow(w, r, res, ActionForMethod(r.Method)) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *Authorizer) allow(w http.ResponseWriter, r *http.Request, res Resource, action Action) bool {
	p, ok := internal.PrincipalFromContext(r.Context())
	if !ok {
		a.Log(r.Context()).WarnContext(r.Context(), "authorization check failed: no principal in context",
			"resource", res, "action", action)
		a.WriteAppError(w, r, internal.ErrNoToken)
		return false
	}

	if !a.matrix.Can(p.Role, res, action) {
		a.Log(r.Context()).WarnContext(r.Context(), "access denied",
			"user_id", p.ID,
			"role", p.Role,
			"resource", res,
			"action", action)
		a.WriteJSON(w, http.StatusForbidden, map[string]string{
			"error":   "FORBIDDEN",
			"message": "Access denied",
		})
		return false
	}
	return true
}
