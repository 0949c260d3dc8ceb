package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "helpdesk",
	Short:        "Multi-tenant helpdesk API: organizations, users and ticket triage",
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute runs the root command; with no subcommand it serves the API.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().Bool("skip-migrations", false, "do not apply migrations on startup")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}
