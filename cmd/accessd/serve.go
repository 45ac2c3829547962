package main

import (
	"fmt"
	"os"

	"github.com/nebari-dev/accessd/internal/server"
	"github.com/spf13/cobra"
)

var servePort int

// @title accessd API
// @version 1.0
// @description Role-based access control for HTTP APIs
// @host localhost:8460
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the accessd API server",
	Long: `Start the accessd API server.

Examples:
  accessd serve                 # Run with config.yaml and environment
  accessd serve --port 8080     # Override port

Environment variables:
  ACCESSD_SERVER_PORT           Server port (default: 8460)
  ACCESSD_DATABASE_DRIVER       Database driver: sqlite, postgres
  ACCESSD_DATABASE_DSN          Database connection string
  ACCESSD_AUTH_JWT_SECRET       JWT signing secret
  ACCESSD_RBAC_MATCH_MODE       Endpoint matching: contains, prefix
  ACCESSD_RBAC_UNMAPPED_POLICY  Endpoints without policy: allow, deny
  ACCESSD_RBAC_CACHE_TTL        Policy snapshot lifetime, e.g. 30s (0 disables caching)
  ACCESSD_AUDIT_MODE            Audit writes: best_effort, strict
  ACCESSD_SYNC_TYPE             Invalidation transport: memory, valkey
  ACCESSD_SYNC_VALKEY_ADDR      Valkey address (if sync type is valkey)
  ADMIN_EMAIL                   Bootstrap superuser email
  ADMIN_PASSWORD                Bootstrap superuser password`,
	Args: cobra.NoArgs,
	Run:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := server.Config{
		Port:    servePort,
		Version: Version,
	}

	if err := server.RunWithSignalHandling(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
