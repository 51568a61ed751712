// Package commands provides the CLI commands for agentrun.
package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/agentrun-ai/agentrun/internal/logging"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "agentrun",
	Short: "agentrun - sandboxed autonomous coding runs",
	Long: `agentrun executes coding tasks through an external agent runtime while
confining file access to explicit read and write whitelists and tracing
every tool call.

Run 'agentrun run "task description"' to execute a task.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env is fine; it only supplies runtime credentials.
		_ = godotenv.Load()

		logging.Init(logging.Config{
			Level:  logging.ParseLevel(logLevel),
			Output: os.Stderr,
		})
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug|info|warn|error)")

	rootCmd.SetVersionTemplate(fmt.Sprintf("agentrun %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(runCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
