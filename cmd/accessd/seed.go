package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Install the baseline RBAC catalogue",
	Long: `Create the baseline actions (view, create, edit, delete), resources and
roles if they are missing, and grant every permission to the Administrator role.
Existing rows are left unchanged, so the command is safe to run repeatedly.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		app, err := openApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer app.Close()

		if err := app.Seed(cmd.Context()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to seed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Baseline RBAC data is in place")
	},
}
