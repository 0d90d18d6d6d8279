package resource

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi"

	"github.com/schooladmin/school-admin/internal"
	"github.com/schooladmin/school-admin/internal/database"
	"github.com/schooladmin/school-admin/internal/permission"
	"github.com/schooladmin/school-admin/internal/record"
	"github.com/schooladmin/school-admin/internal/transport"
	"github.com/schooladmin/school-admin/pkg/logger"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxBulkRecords  = 500
)

// RecordStore is the part of record.Store the handler drives.
type RecordStore interface {
	Create(ctx context.Context, table string, fields map[string]any) (database.Record, error)
	FindByID(ctx context.Context, table string, id any) (database.Record, error)
	UpdateByID(ctx context.Context, table string, id any, fields map[string]any) (database.Record, error)
	DeleteByID(ctx context.Context, table string, id any) (database.Record, error)
	Search(ctx context.Context, table string, q record.SearchQuery) ([]database.Record, error)
	CountSearch(ctx context.Context, table string, q record.SearchQuery) (int64, error)
	BulkInsert(ctx context.Context, table string, records []map[string]any, exec database.Executor) ([]database.Record, error)
}

type Handler struct {
	*transport.BaseHandler
	store RecordStore
	authz *permission.Authorizer
	defs  []Definition
}

func NewHandler(store RecordStore, authz *permission.Authorizer, defs []Definition) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	if defs == nil {
		defs = Definitions()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		store:       store,
		authz:       authz,
		defs:        defs,
	}
}

type ListResponse struct {
	Data       []database.Record `json:"data"`
	Pagination Pagination        `json:"pagination"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

type BulkRequest struct {
	Records []map[string]any `json:"records"`
}

// RegisterRoutes mounts every definition under /{resource}. Each route is
// guarded by the permission matrix using the request method as the action.
func (h *Handler) RegisterRoutes(r chi.Router) {
	for _, def := range h.defs {
		def := def
		r.Route("/"+string(def.Name), func(r chi.Router) {
			r.Use(h.authz.RequireMethod(def.Name))
			r.Get("/", h.list(def))
			r.Post("/", h.create(def))
			r.Post("/bulk", h.bulkCreate(def))
			r.Get("/export", h.export(def))
			r.Get("/{id}", h.get(def))
			r.Put("/{id}", h.update(def))
			r.Patch("/{id}", h.update(def))
			r.Delete("/{id}", h.delete(def))
		})
	}
}

func (h *Handler) list(def Definition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := h.QueryInt(r, "page", 1)
		if page < 1 {
			page = 1
		}
		limit := h.QueryInt(r, "limit", defaultPageSize)
		if limit < 1 {
			limit = defaultPageSize
		}
		if limit > maxPageSize {
			limit = maxPageSize
		}

		conditions, err := filters(r)
		if err != nil {
			h.WriteAppError(w, r, err)
			return
		}
		order, err := sortOrder(r.URL.Query().Get("sort"))
		if err != nil {
			h.WriteAppError(w, r, err)
			return
		}

		q := record.SearchQuery{
			Fields:     def.SearchFields,
			Term:       r.URL.Query().Get("q"),
			Conditions: conditions,
			OrderBy:    order,
			Limit:      record.Int(limit),
			Offset:     record.Int((page - 1) * limit),
		}

		rows, err := h.store.Search(r.Context(), def.Table, q)
		if err != nil {
			h.WriteAppError(w, r, err)
			return
		}
		total, err := h.store.CountSearch(r.Context(), def.Table, q)
		if err != nil {
			h.WriteAppError(w, r, err)
			return
		}
		if rows == nil {
			rows = []database.Record{}
		}

		h.WriteJSON(w, http.StatusOK, ListResponse{
			Data: rows,
			Pagination: Pagination{
				Page:       page,
				Limit:      limit,
				Total:      total,
				TotalPages: (total + int64(limit) - 1) / int64(limit),
			},
		})
	}
}

func (h *Handler) get(def Definition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := h.store.FindByID(r.Context(), def.Table, chi.URLParam(r, "id"))
		if err != nil {
			h.WriteAppError(w, r, err)
			return
		}
		if rec == nil {
			h.WriteAppError(w, r, notFound(def))
			return
		}
		h.WriteJSON(w, http.StatusOK, rec)
	}
}

func (h *Handler) create(def Definition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var fields map[string]any
		if err := h.DecodeJSON(r, &fields); err != nil {
			h.WriteAppError(w, r, err)
			return
		}
		stripManaged(fields, false)

		rec, err := h.store.Create(r.Context(), def.Table, fields)
		if err != nil {
			h.WriteAppError(w, r, err)
			return
		}
		h.audit(r, "record created", def, rec["id"])
		h.WriteJSON(w, http.StatusCreated, rec)
	}
}

// bulkCreate inserts every record or none.
func (h *Handler) bulkCreate(def Definition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BulkRequest
		if err := h.DecodeJSON(r, &req); err != nil {
			h.WriteAppError(w, r, err)
			return
		}
		if len(req.Records) > maxBulkRecords {
			h.WriteAppError(w, r, internal.NewValidationFieldError("records", "too many records in one request", internal.ErrCodeValidationFailed))
			return
		}
		for _, fields := range req.Records {
			stripManaged(fields, false)
		}

		rows, err := h.store.BulkInsert(r.Context(), def.Table, req.Records, nil)
		if err != nil {
			h.WriteAppError(w, r, err)
			return
		}
		if rows == nil {
			rows = []database.Record{}
		}
		h.audit(r, "records bulk created", def, len(rows))
		h.WriteJSON(w, http.StatusCreated, map[string]any{"data": rows, "count": len(rows)})
	}
}

func (h *Handler) update(def Definition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var fields map[string]any
		if err := h.DecodeJSON(r, &fields); err != nil {
			h.WriteAppError(w, r, err)
			return
		}
		stripManaged(fields, true)

		id := chi.URLParam(r, "id")
		rec, err := h.store.UpdateByID(r.Context(), def.Table, id, fields)
		if err != nil {
			h.WriteAppError(w, r, err)
			return
		}
		if rec == nil {
			h.WriteAppError(w, r, notFound(def))
			return
		}
		h.audit(r, "record updated", def, id)
		h.WriteJSON(w, http.StatusOK, rec)
	}
}

func (h *Handler) delete(def Definition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		rec, err := h.store.DeleteByID(r.Context(), def.Table, id)
		if err != nil {
			h.WriteAppError(w, r, err)
			return
		}
		if rec == nil {
			h.WriteAppError(w, r, notFound(def))
			return
		}
		h.audit(r, "record deleted", def, id)
		h.WriteJSON(w, http.StatusOK, rec)
	}
}

func (h *Handler) audit(r *http.Request, msg string, def Definition, ref any) {
	attrs := []any{"resource", def.Name, "ref", ref}
	if p, ok := internal.PrincipalFromContext(r.Context()); ok {
		attrs = append(attrs, "user_id", p.ID, "role", p.Role)
	}
	h.Log(r.Context()).InfoContext(r.Context(), msg, attrs...)
}

func notFound(def Definition) error {
	return internal.NewNotFoundError(string(def.Name)+" record not found", internal.ErrCodeRecordNotFound)
}

// stripManaged drops columns the store maintains itself.
func stripManaged(fields map[string]any, updating bool) {
	delete(fields, "created_at")
	delete(fields, "updated_at")
	if updating {
		delete(fields, "id")
	}
}

// filters reads filter[column]=value pairs. The literal value "null" matches
// NULL.
func filters(r *http.Request) (map[string]any, error) {
	conditions := map[string]any{}
	for key, values := range r.URL.Query() {
		if !strings.HasPrefix(key, "filter[") || !strings.HasSuffix(key, "]") || len(values) == 0 {
			continue
		}
		column := key[len("filter[") : len(key)-1]
		if err := record.ValidIdentifier(column); err != nil {
			return nil, err
		}
		if values[0] == "null" {
			conditions[column] = nil
			continue
		}
		conditions[column] = values[0]
	}
	return conditions, nil
}

// sortOrder parses "col" or "-col", comma separated.
func sortOrder(raw string) ([]record.Order, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var order []record.Order
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		desc := strings.HasPrefix(part, "-")
		column := strings.TrimPrefix(part, "-")
		if err := record.ValidIdentifier(column); err != nil {
			return nil, err
		}
		if desc {
			order = append(order, record.Desc(column))
		} else {
			order = append(order, record.Asc(column))
		}
	}
	return order, nil
}
