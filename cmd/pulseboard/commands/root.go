package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pulseboard",
		Short: "Pulseboard - dashboard datasource service",
		Long: `Pulseboard resolves logical datasource names to plugin-backed datasource
instances. Datasources are declared in a YAML config; plugin implementations
are built in or loaded from WASM modules on demand and cached for the
process lifetime.

Features:
  - Template-variable aware name resolution ($var, ${var})
  - Lazy, load-once plugin instantiation with an instance cache
  - WASM plugin modules discovered from manifests
  - Datasource pickers for metric and annotation sources`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "pulseboard.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newSourcesCommand())
	rootCmd.AddCommand(newValidateCommand())

	return rootCmd
}
