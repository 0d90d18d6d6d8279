package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/schooladmin/school-admin/internal/auth"
	"github.com/schooladmin/school-admin/internal/permission"
	"github.com/schooladmin/school-admin/internal/resource"
	"github.com/schooladmin/school-admin/internal/transport/middleware"
	"github.com/schooladmin/school-admin/internal/transport/swagger"
	"github.com/schooladmin/school-admin/internal/user"
)

// Routes collects everything the router needs. Nil handlers are skipped.
type Routes struct {
	Health         HealthChecker
	Gate           *auth.Gate
	Authorizer     *permission.Authorizer
	AuthHandler    *auth.Handler
	UserHandler    *user.Handler
	Resources      *resource.Handler
	AllowedOrigins string
	OpenAPIPath    string
	Logger         *slog.Logger
}

func RegisterAllRoutes(router chi.Router, routes Routes) {
	healthHandler := NewHealthHandler(routes.Health)
	logger := routes.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Apply global middleware
	router.Use(middleware.CORS(routes.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	if routes.OpenAPIPath != "" {
		router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, routes.OpenAPIPath)
		})
		router.Handle("/swagger/*", swagger.Handler())
	}

	// Mount API under /api/v1 to match OpenAPI basePath
	router.Route("/api/v1", func(r chi.Router) {
		if routes.Gate != nil {
			r.With(routes.Gate.Optional).Get("/health", healthHandler.healthCheckHandler)
		} else {
			r.Get("/health", healthHandler.healthCheckHandler)
		}
		r.Get("/ping", healthHandler.pingHandler)

		if routes.AuthHandler != nil {
			r.Post("/auth/login", routes.AuthHandler.Login)
		}

		// Protected routes that require authentication
		r.Group(func(pr chi.Router) {
			pr.Use(routes.Gate.Require)

			if routes.AuthHandler != nil {
				pr.Post("/auth/logout", routes.AuthHandler.Logout)
				pr.Get("/auth/me", routes.AuthHandler.Me)
				pr.Post("/auth/change-password", routes.AuthHandler.ChangePassword)
			}

			if routes.UserHandler != nil {
				pr.Route("/users", func(ur chi.Router) {
					ur.Use(routes.Authorizer.RequireMethod(permission.Settings))
					ur.Get("/", routes.UserHandler.ListUsers)
					ur.Post("/", routes.UserHandler.CreateUser)
					ur.Get("/{id}", routes.UserHandler.GetUser)
					ur.Put("/{id}", routes.UserHandler.UpdateUser)
					ur.Patch("/{id}/status", routes.UserHandler.ToggleStatus)
				})
			}

			if routes.Resources != nil {
				routes.Resources.RegisterRoutes(pr)
			}
		})
	})
}
