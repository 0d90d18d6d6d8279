package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/schooladmin/school-admin/internal"
	"github.com/schooladmin/school-admin/internal/database"
)

type HealthResponse struct {
	Status     database.HealthStatus            `json:"status"`
	CheckedAt  time.Time                        `json:"checked_at"`
	Components map[string]database.HealthReport `json:"components,omitempty"`
}

type HealthChecker interface {
	HealthCheck(ctx context.Context) database.HealthReport
}

type HealthHandler struct {
	db HealthChecker
}

func NewHealthHandler(db HealthChecker) *HealthHandler {
	return &HealthHandler{db: db}
}

// pingHandler is the liveness probe; it never touches the database.
func (h *HealthHandler) pingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "OK"})
}

// healthCheckHandler is the readiness probe. Component detail such as pool
// statistics is only shown to authenticated callers.
func (h *HealthHandler) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	report := h.db.HealthCheck(ctx)

	resp := HealthResponse{
		Status:    report.Status,
		CheckedAt: time.Now(),
	}
	if _, ok := internal.PrincipalFromContext(r.Context()); ok {
		resp.Components = map[string]database.HealthReport{"postgres": report}
	}

	statusCode := http.StatusOK
	if report.Status == database.HealthUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}
