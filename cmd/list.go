package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"conductor/internal/app"
)

var (
	listConfigPath string
	listQuiet      bool
)

// listCmd prints the modules the configured source can provide, with their
// declared metadata.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List discoverable modules and their metadata",
	Long: `Discovers all modules from the configured module paths, loads them,
and prints a table of name, version, state, and declared dependencies.
Modules are loaded but not installed or started.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	application, err := app.NewApplication(app.Options{
		Silent:     true,
		ConfigPath: listConfigPath,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	mgr := application.Manager()
	names, err := mgr.Discover(ctx)
	if err != nil {
		return fmt.Errorf("module discovery failed: %w", err)
	}

	if listQuiet {
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	}

	for _, name := range names {
		if err := mgr.LoadModule(ctx, name); err != nil {
			fmt.Fprintf(os.Stderr, "warning: cannot load %s: %v\n", name, err)
		}
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Name", "Version", "State", "Dependencies", "Description"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Description", WidthMax: 48, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, snap := range mgr.List() {
		deps := strings.Join(snap.Metadata.Dependencies, ", ")
		if len(snap.Metadata.OptionalDependencies) > 0 {
			optional := strings.Join(snap.Metadata.OptionalDependencies, ", ")
			if deps != "" {
				deps += ", "
			}
			deps += optional + " (optional)"
		}
		t.AppendRow(table.Row{
			snap.Name,
			snap.Metadata.Version,
			string(snap.State),
			deps,
			snap.Metadata.Description,
		})
	}

	t.Render()
	return nil
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVar(&listConfigPath, "config-path", "", "Directory containing config.yaml (defaults to ~/.config/conductor)")
	listCmd.Flags().BoolVarP(&listQuiet, "quiet", "q", false, "Print module names only")
}
