package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/nebari-dev/accessd/internal/models"
	"github.com/nebari-dev/accessd/internal/rbac"
	"github.com/spf13/cobra"
)

var (
	checkEmail  string
	checkPath   string
	checkMethod string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Explain an authorization decision",
	Long: `Resolve whether a user may send a request, using the policy currently stored
in the database. Without --email the request is evaluated as anonymous.`,
	Example: `  accessd check --email manager@example.com --path /api/users/profile/ --method PUT`,
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		app, err := openApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer app.Close()

		var id *rbac.Identity
		if checkEmail != "" {
			var user models.User
			if err := app.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(checkEmail))).First(&user).Error; err != nil {
				fmt.Fprintf(os.Stderr, "Error: user %q not found\n", checkEmail)
				os.Exit(1)
			}
			id = rbac.IdentityFromUser(&user)
		}

		method := strings.ToUpper(checkMethod)
		res, err := app.Resolver.Resolve(cmd.Context(), rbac.Request{Path: checkPath, Route: checkPath, Method: method}, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s %s: %s (%s)\n", method, checkPath, res.Decision, res.Reason)
		if res.Resource != "" {
			fmt.Printf("  resource: %s\n", res.Resource)
		}
		if res.Action != "" {
			fmt.Printf("  action:   %s\n", res.Action)
		}
		if res.Decision == rbac.DecisionNotConfigured {
			fmt.Printf("  unmapped: %s\n", app.Config.RBAC.UnmappedPolicy)
		}
		if !res.Permits(app.Config.RBAC.UnmappedPolicy != "deny") {
			os.Exit(2)
		}
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkEmail, "email", "", "Evaluate as this user")
	checkCmd.Flags().StringVar(&checkPath, "path", "", "Request path (required)")
	checkCmd.Flags().StringVar(&checkMethod, "method", "GET", "HTTP method")
	checkCmd.MarkFlagRequired("path")
}
