package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/schooladmin/school-admin/internal"
	"github.com/schooladmin/school-admin/pkg/logger"
)

const defaultAcquireTimeout = 5 * time.Second

// Record is a generic row keyed by column name.
type Record map[string]any

// Executor runs a parameterized statement and returns the produced rows.
// The pool-backed Manager and the transaction-bound executor handed to
// WithTransaction both satisfy it.
type Executor interface {
	Execute(ctx context.Context, statement string, params []any) ([]Record, error)
}

// Manager owns the connection pool.
type Manager struct {
	db             *sqlx.DB
	acquireTimeout time.Duration
	logger         *slog.Logger
}

type Option func(*Manager)

func WithAcquireTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.acquireTimeout = d
		}
	}
}

func WithLogger(lg *slog.Logger) Option {
	return func(m *Manager) {
		if lg != nil {
			m.logger = lg
		}
	}
}

// New wraps an already configured *sql.DB.
func New(db *sql.DB, driverName string, opts ...Option) *Manager {
	m := &Manager{
		db:             sqlx.NewDb(db, driverName),
		acquireTimeout: defaultAcquireTimeout,
		logger:         logger.LoggerWrapper(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open dials PostgreSQL and applies the pool limits from cfg.
func Open(cfg internal.DatabaseConfig, opts ...Option) (*Manager, error) {
	gdb, err := gorm.Open(
		postgres.New(postgres.Config{
			DSN:                  cfg.GetDSN(),
			PreferSimpleProtocol: true,
		}),
		&gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := internal.WithTimeout(context.Background(), cfg.AcquireTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	opts = append([]Option{WithAcquireTimeout(cfg.AcquireTimeout)}, opts...)
	return New(sqlDB, "pgx", opts...), nil
}

// DB exposes the pool for tooling such as migrations.
func (m *Manager) DB() *sql.DB {
	return m.db.DB
}

func (m *Manager) Close() error {
	return m.db.Close()
}

// acquire checks out a dedicated connection, waiting at most acquireTimeout.
func (m *Manager) acquire(ctx context.Context) (*sqlx.Conn, error) {
	actx, cancel := context.WithTimeout(ctx, m.acquireTimeout)
	defer cancel()

	conn, err := m.db.Connx(actx)
	if err != nil {
		m.logger.Error("database connection unavailable",
			"acquire_timeout", m.acquireTimeout.String(),
			"error", err)
		return nil, internal.NewConnectionError("database connection unavailable", err)
	}
	return conn, nil
}

// Execute runs statement on a pooled connection. Once the connection is held
// the statement runs to completion even if ctx is cancelled, so the
// connection always goes back to the pool in a clean state.
func (m *Manager) Execute(ctx context.Context, statement string, params []any) ([]Record, error) {
	conn, err := m.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return runQuery(context.WithoutCancel(ctx), conn, m.logger, statement, params)
}

// WithTransaction runs work inside BEGIN/COMMIT on one dedicated connection.
// Any error returned by work, or a panic, rolls the transaction back; the
// error is returned unchanged and the panic re-raised.
func (m *Manager) WithTransaction(ctx context.Context, work func(Executor) error) error {
	conn, err := m.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	txCtx := context.WithoutCancel(ctx)
	tx, err := conn.BeginTxx(txCtx, nil)
	if err != nil {
		return classifyError(err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			m.logger.Error("transaction rollback failed", "error", rbErr)
		}
	}()

	if err := work(&txExecutor{tx: tx, ctx: txCtx, logger: m.logger}); err != nil {
		m.logger.Warn("transaction rolled back", "error", err)
		return err
	}

	if err := tx.Commit(); err != nil {
		committed = true // a failed commit has already ended the transaction
		return classifyError(err)
	}
	committed = true
	return nil
}

type txExecutor struct {
	tx     *sqlx.Tx
	ctx    context.Context
	logger *slog.Logger
}

func (t *txExecutor) Execute(ctx context.Context, statement string, params []any) ([]Record, error) {
	// statements inside a transaction share its uncancelable context
	return runQuery(t.ctx, t.tx, t.logger, statement, params)
}

type queryer interface {
	QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error)
}

func runQuery(ctx context.Context, q queryer, lg *slog.Logger, statement string, params []any) ([]Record, error) {
	rows, err := q.QueryxContext(ctx, statement, params...)
	if err != nil {
		appErr := classifyError(err)
		level := slog.LevelError
		if appErr.Type == internal.ErrorTypeValidation {
			level = slog.LevelWarn
		}
		// bound values may hold secrets; only the statement shape is logged
		lg.Log(ctx, level, "statement failed",
			"statement", statement,
			"param_count", len(params),
			"error_type", appErr.Type,
			"error", err)
		return nil, appErr
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return nil, internal.NewQueryError("failed to scan row", err)
		}
		records = append(records, normalize(row))
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError(err)
	}
	return records, nil
}

func normalize(row map[string]interface{}) Record {
	rec := make(Record, len(row))
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			rec[k] = string(b)
			continue
		}
		rec[k] = v
	}
	return rec
}
