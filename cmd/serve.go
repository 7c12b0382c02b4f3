package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"conductor/internal/app"
)

var (
	// serveDebug enables verbose logging across the application.
	serveDebug bool

	// serveSilent suppresses console log output.
	serveSilent bool

	// serveConfigPath specifies a custom configuration directory path.
	serveConfigPath string
)

// serveCmd starts the module runtime and keeps it running until the
// process receives an interrupt.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load and run all configured modules until interrupted",
	Long: `Starts the conductor runtime: discovers modules from the configured
module paths, loads them, and starts them in dependency order.

The runtime keeps running until it receives SIGINT or SIGTERM, then stops
all modules in reverse dependency order. With hot reload enabled in the
configuration, editing a module manifest reloads that module in place while
its dependents are stopped and restarted around it.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	application, err := app.NewApplication(app.Options{
		Debug:      serveDebug,
		Silent:     serveSilent,
		ConfigPath: serveConfigPath,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().BoolVar(&serveSilent, "silent", false, "Suppress console log output")
	serveCmd.Flags().StringVar(&serveConfigPath, "config-path", "", "Directory containing config.yaml (defaults to ~/.config/conductor)")
}
