package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"

	"github.com/schooladmin/school-admin/internal/auth"
	"github.com/schooladmin/school-admin/internal/permission"
	"github.com/schooladmin/school-admin/internal/resource"
	"github.com/schooladmin/school-admin/internal/transport/rest"
	"github.com/schooladmin/school-admin/internal/transport/swagger"
	"github.com/schooladmin/school-admin/internal/user"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

func startHTTPServer() {
	a, err := newApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	router, err := setupRoutes(a)
	if err != nil {
		a.Logger.Error("failed to set up routes", "error", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", a.Config.Server.Port)
	a.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: a.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       a.Config.Server.ReadTimeout,
		WriteTimeout:      a.Config.Server.WriteTimeout,
		IdleTimeout:       a.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		a.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			a.Logger.Error("Server shutdown error", "error", err)
		}
		if err := a.Events.Wait(ctx); err != nil {
			a.Logger.Warn("event handlers still running at shutdown", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			a.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	a.Logger.Info("Server stopped")
}

func setupRoutes(a *app) (*chi.Mux, error) {
	openAPIPath := a.Config.Server.OpenAPIPath
	if openAPIPath != "" {
		if _, err := swagger.LoadSpec(context.Background(), openAPIPath); err != nil {
			return nil, err
		}
	}

	auth.SubscribeLastLogin(a.Events, a.Users, a.Logger)

	gate := auth.NewGate(a.Tokens, a.Users, a.Events, a.Logger)
	authorizer := permission.NewAuthorizer(permission.DefaultMatrix(), a.Logger)

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, rest.Routes{
		Health:         a.DB,
		Gate:           gate,
		Authorizer:     authorizer,
		AuthHandler:    auth.NewHandler(auth.NewService(a.Users, a.Tokens)),
		UserHandler:    user.NewHandler(a.Users),
		Resources:      resource.NewHandler(a.Records, authorizer, resource.Definitions()),
		AllowedOrigins: a.Config.Server.AllowedOrigins,
		OpenAPIPath:    openAPIPath,
		Logger:         a.Logger,
	})
	return router, nil
}
