package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the meetingbroker application
var rootCmd = &cobra.Command{
	Use:   "meetingbroker",
	Short: "Books sessions on a Google Calendar on behalf of clients",
	Long: `meetingbroker books, lists, amends and cancels sessions on a single
Google Calendar, attaching a Google Meet link to virtual sessions.

It authenticates with a service account key, keyless domain-wide delegation
through the IAM Credentials API, or the ambient workload identity, and serves:
  - A REST API (GET /availability, /bookings and friends)
  - An MCP (Model Context Protocol) server for AI assistants`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "meetingbroker version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "meetingbroker version %s\n", version)
		},
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
	rootCmd.AddCommand(newVersionCmd())
}
