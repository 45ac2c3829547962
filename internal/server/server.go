// Package server provides the main server initialization and run logic.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nebari-dev/accessd/internal/api"
	"github.com/nebari-dev/accessd/internal/api/handlers"
	"github.com/nebari-dev/accessd/internal/audit"
	"github.com/nebari-dev/accessd/internal/config"
	"github.com/nebari-dev/accessd/internal/db"
	"github.com/nebari-dev/accessd/internal/logger"
	"github.com/nebari-dev/accessd/internal/policysync"
	"github.com/nebari-dev/accessd/internal/rbac"
	"github.com/nebari-dev/accessd/internal/service"
	"github.com/nebari-dev/accessd/internal/store"
	"gorm.io/gorm"
)

// Config holds the server configuration options.
type Config struct {
	Port    int    // Port to run the server on (0 = use config default)
	Version string // Version string to report
}

// App bundles the components built from configuration. The serve command
// and the admin commands share it.
type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Store    *store.Store
	Bus      policysync.Bus
	Resolver *rbac.Resolver
	Recorder *audit.Recorder
	RBAC     *service.RBACService
}

// Open connects to the database, runs migrations and wires the
// authorization components.
func Open(appCfg *config.Config) (*App, error) {
	matchMode, err := rbac.ParseMatchMode(appCfg.RBAC.MatchMode)
	if err != nil {
		return nil, err
	}
	auditMode, err := audit.ParseMode(appCfg.Audit.Mode)
	if err != nil {
		return nil, err
	}

	// Propagate app log level to database if not explicitly set
	if appCfg.Database.LogLevel == "" {
		appCfg.Database.LogLevel = appCfg.Log.Level
	}

	database, err := db.New(appCfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("Database initialized", "driver", appCfg.Database.Driver)

	if err := db.Migrate(database); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database migrations completed")

	bus, err := policysync.New(appCfg.Sync)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize policy sync: %w", err)
	}
	slog.Info("Policy sync initialized", "type", appCfg.Sync.Type)

	st := store.New(database)
	resolver := rbac.NewResolver(st, rbac.Options{
		MatchMode:   matchMode,
		CacheTTL:    appCfg.RBAC.CacheTTL,
		PublicPaths: appCfg.RBAC.PublicPaths,
		Logger:      slog.Default(),
	})
	resolver.SetBus(bus)
	recorder := audit.NewRecorder(st, auditMode, slog.Default())

	return &App{
		Config:   appCfg,
		DB:       database,
		Store:    st,
		Bus:      bus,
		Resolver: resolver,
		Recorder: recorder,
		RBAC:     service.New(st, recorder, resolver),
	}, nil
}

// Seed installs the baseline catalogue.
func (a *App) Seed(ctx context.Context) error {
	if err := rbac.NewSeeder(a.Store, slog.Default()).InitializeBaseline(ctx); err != nil {
		return err
	}
	a.Resolver.InvalidatePolicy(ctx)
	return nil
}

// Bootstrap prepares the database for serving: it creates the configured
// default admin and, when seeding on start, installs the baseline
// catalogue. A failed seed is logged and leaves the existing catalogue in
// place.
func (a *App) Bootstrap(ctx context.Context) error {
	if err := db.CreateDefaultAdmin(a.DB); err != nil {
		return fmt.Errorf("failed to create default admin user: %w", err)
	}

	if a.Config.RBAC.SeedOnStart {
		if err := a.Seed(ctx); err != nil {
			slog.Error("Failed to seed baseline RBAC data", "error", err)
		}
	}
	return nil
}

// Close releases the bus and the database connection.
func (a *App) Close() error {
	var errs []error
	if a.Bus != nil {
		errs = append(errs, a.Bus.Close())
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	return errors.Join(errs...)
}

// Run starts the server with the given configuration and blocks until the context is canceled.
func Run(ctx context.Context, cfg Config) error {
	// Set version in handlers
	if cfg.Version != "" {
		handlers.Version = cfg.Version
	}

	// Load configuration
	appCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Override port from CLI flag if provided
	if cfg.Port != 0 {
		appCfg.Server.Port = cfg.Port
	}

	// Initialize logger
	logger.Init(appCfg.Log.Format, appCfg.Log.Level)
	slog.Info("Starting accessd server", "version", cfg.Version, "mode", appCfg.Server.Mode)

	app, err := Open(appCfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Bootstrap(ctx); err != nil {
		return err
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go func() {
		if err := app.Resolver.Watch(watchCtx, app.Bus); err != nil {
			slog.Error("Policy sync subscription failed", "error", err)
		}
	}()

	router := api.NewRouter(appCfg, app.DB, app.Resolver, app.RBAC)

	addr := fmt.Sprintf(":%d", appCfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for context cancellation
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}
	slog.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	slog.Info("Server stopped")
	return nil
}

// RunWithSignalHandling starts the server and handles OS signals for graceful shutdown.
func RunWithSignalHandling(cfg Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Run server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(ctx, cfg)
	}()

	// Wait for signal or error
	select {
	case sig := <-quit:
		slog.Info("Received signal", "signal", sig)
		cancel()
		// Wait for server to finish
		return <-errCh
	case err := <-errCh:
		return err
	}
}
