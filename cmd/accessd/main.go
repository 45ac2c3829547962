package main

import (
	"os"

	"github.com/spf13/cobra"

	_ "github.com/nebari-dev/accessd/docs" // Load swagger docs
)

// Version is set via ldflags at build time
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "accessd",
	Short: "accessd - role-based access control for HTTP APIs",
	Long: `accessd maps API endpoints to resources, HTTP methods to actions, and
decides per request whether the caller's roles grant the matching permission.`,
	Example: `  # Start the API server
  accessd serve

  # Install the baseline roles, actions and resources
  accessd seed

  # Create an operator account and explain a decision for it
  accessd user create --email admin@example.com --password s3cret-pass --superuser
  accessd check --email admin@example.com --path /api/users/profile/ --method PUT`,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "server", Title: "Server Commands:"},
		&cobra.Group{ID: "admin", Title: "Admin Commands:"},
	)

	serveCmd.GroupID = "server"
	seedCmd.GroupID = "admin"
	userCmd.GroupID = "admin"
	checkCmd.GroupID = "admin"

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
