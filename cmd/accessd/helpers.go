package main

import (
	"fmt"

	"github.com/nebari-dev/accessd/internal/config"
	"github.com/nebari-dev/accessd/internal/logger"
	"github.com/nebari-dev/accessd/internal/server"
)

// openApp loads configuration and connects to the database for the admin
// commands. Callers must Close the returned app.
func openApp() (*server.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	// Admin commands print their own output; keep logs to warnings.
	logger.Init(cfg.Log.Format, "warn")
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "error"
	}
	return server.Open(cfg)
}
