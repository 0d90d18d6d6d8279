package database

import (
	"context"
	"time"
)

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

type PoolStats struct {
	MaxOpen        int   `json:"max_open"`
	Open           int   `json:"open"`
	InUse          int   `json:"in_use"`
	Idle           int   `json:"idle"`
	WaitCount      int64 `json:"wait_count"`
	WaitDurationMs int64 `json:"wait_duration_ms"`
}

type HealthReport struct {
	Status     HealthStatus `json:"status"`
	Message    string       `json:"message,omitempty"`
	CheckedAt  time.Time    `json:"checked_at"`
	DurationMs int64        `json:"duration_ms"`
	Pool       PoolStats    `json:"pool"`
}

// HealthCheck runs a trivial statement through the pool and reports its
// occupancy. It never fails; problems are reported in the status.
func (m *Manager) HealthCheck(ctx context.Context) HealthReport {
	start := time.Now()
	report := HealthReport{Status: HealthHealthy}

	if _, err := m.Execute(ctx, "SELECT 1", nil); err != nil {
		report.Status = HealthUnhealthy
		report.Message = err.Error()
	}

	report.CheckedAt = time.Now()
	report.DurationMs = time.Since(start).Milliseconds()
	report.Pool = m.Stats()
	return report
}

func (m *Manager) Stats() PoolStats {
	s := m.db.Stats()
	return PoolStats{
		MaxOpen:        s.MaxOpenConnections,
		Open:           s.OpenConnections,
		InUse:          s.InUse,
		Idle:           s.Idle,
		WaitCount:      s.WaitCount,
		WaitDurationMs: s.WaitDuration.Milliseconds(),
	}
}
