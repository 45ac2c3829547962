package main

import (
	"fmt"
	"os"

	"github.com/nebari-dev/accessd/internal/db"
	"github.com/spf13/cobra"
)

var (
	userEmail     string
	userPassword  string
	userFirstName string
	userLastName  string
	userSuperuser bool
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account",
	Long: `Create an account directly in the database. Roles marked as default are
assigned automatically.`,
	Example: `  accessd user create --email ops@example.com --password s3cret-pass --superuser`,
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		app, err := openApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer app.Close()

		user, err := db.CreateUser(app.DB, db.NewUser{
			Email:     userEmail,
			Password:  userPassword,
			FirstName: userFirstName,
			LastName:  userLastName,
			Superuser: userSuperuser,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		// New default-role assignments change the policy.
		app.Resolver.InvalidatePolicy(cmd.Context())

		fmt.Printf("Created user %s (%s)\n", user.Email, user.ID)
	},
}

func init() {
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "Email address (required)")
	userCreateCmd.Flags().StringVar(&userPassword, "password", "", "Password (required)")
	userCreateCmd.Flags().StringVar(&userFirstName, "first-name", "", "First name")
	userCreateCmd.Flags().StringVar(&userLastName, "last-name", "", "Last name")
	userCreateCmd.Flags().BoolVar(&userSuperuser, "superuser", false, "Grant unrestricted access")
	userCreateCmd.MarkFlagRequired("email")
	userCreateCmd.MarkFlagRequired("password")

	userCmd.AddCommand(userCreateCmd)
}
