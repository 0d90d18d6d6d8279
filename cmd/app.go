package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/schooladmin/school-admin/internal"
	"github.com/schooladmin/school-admin/internal/auth"
	"github.com/schooladmin/school-admin/internal/core/events"
	"github.com/schooladmin/school-admin/internal/database"
	"github.com/schooladmin/school-admin/internal/record"
	"github.com/schooladmin/school-admin/internal/user"
	"github.com/schooladmin/school-admin/pkg/logger"
)

// app is the wired core shared by the server and the CLI commands.
type app struct {
	Config  *internal.Config
	Logger  *slog.Logger
	DB      *database.Manager
	Records *record.Store
	Users   *user.Store
	Tokens  *auth.JWTTokenIssuer
	Events  *events.EventBus
}

func newApp() (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	lg := logger.Configure(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)

	db, err := database.Open(cfg.Database, database.WithLogger(lg))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	hasher, err := user.NewBcryptHasher(cfg.Security.BCryptCost)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize password hasher: %w", err)
	}

	records := record.NewStore(db)
	return &app{
		Config:  cfg,
		Logger:  lg,
		DB:      db,
		Records: records,
		Users:   user.NewStore(records, hasher),
		Tokens:  auth.NewJWTTokenIssuer(cfg.Security.JWTSecret, cfg.Security.JWTIssuer, cfg.Security.AccessTokenDuration),
		Events:  events.NewEventBus(lg),
	}, nil
}

func (a *app) Close() {
	if err := a.DB.Close(); err != nil {
		a.Logger.Error("database close error", "error", err)
	}
}
