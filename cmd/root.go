package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
)

// rootCmd represents the base command for the conductor application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "conductor",
	Short: "Run and supervise pluggable modules",
	Long: `conductor discovers pluggable modules, resolves their declared
dependencies, and drives each through its lifecycle (load, install, start,
stop, uninstall) in dependency order. State transitions are broadcast on a
typed event bus, and modules can be hot reloaded in place, with their
running dependents stopped and restarted around the reload.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the
// application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	// A .env file in the working directory can supply environment
	// overrides; a missing file is fine.
	_ = godotenv.Load()

	rootCmd.SetVersionTemplate(`{{printf "conductor version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitCodeError)
	}
}
