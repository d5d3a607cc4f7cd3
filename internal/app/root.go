// Package app wires the tweakctl CLI: catalog loading, planning, restore
// points, state probing, and the maintenance queue behind cobra commands.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/keelworks/tweakctl/internal/catalog"
	"github.com/keelworks/tweakctl/internal/config"
	"github.com/keelworks/tweakctl/internal/script"
)

var (
	dataDir string
	verbose bool

	// RootCmd is the root command for tweakctl.
	RootCmd = &cobra.Command{
		Use:   "tweakctl",
		Short: "Windows configuration tweaks with restore points and a maintenance queue",
		Long: `tweakctl applies reversible Windows configuration tweaks, records restore
points before changing anything, and runs heavier maintenance tasks through
a durable single-worker queue.

Tweaks, tasks, and presets are defined in a declarative catalog; the actual
system changes are made by the PowerShell scripts the catalog references.

Quick Start:
  1. tweakctl status                  # see where the machine stands
  2. tweakctl apply --preset privacy  # apply a preset (restore point saved)
  3. tweakctl revert latest           # changed your mind

Examples:
  # Apply individual tweaks
  tweakctl apply disable-telemetry disable-cortana

  # Preview without running anything
  tweakctl apply --preset gaming --dry-run

  # Queue heavy maintenance
  tweakctl queue add cleanup-disk
  tweakctl queue run

  # Watch for catalog or state changes
  tweakctl watch`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("tweakctl: Windows configuration tweaks with restore points")
			fmt.Println()
			fmt.Println("Run 'tweakctl status' to see the machine state.")
			fmt.Println("Run 'tweakctl --help' for the full reference.")
			return nil
		},
	}
)

func init() {
	RootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default: ~/.tweakctl, or $TWEAKCTL_DATA_DIR)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command.
func Execute() error {
	return RootCmd.Execute()
}

// getPaths resolves the data directory layout and makes sure it exists.
func getPaths() (config.Paths, error) {
	dir := dataDir
	if dir == "" {
		var err error
		dir, err = config.DefaultDir()
		if err != nil {
			return config.Paths{}, fmt.Errorf("failed to resolve data directory: %w", err)
		}
	}
	paths := config.NewPaths(dir)
	if err := paths.Ensure(); err != nil {
		return config.Paths{}, fmt.Errorf("failed to create data directory: %w", err)
	}
	return paths, nil
}

// loadCatalog loads and validates the catalog from the data directory.
func loadCatalog(paths config.Paths) (*catalog.Catalog, error) {
	cat, err := catalog.Load(paths.Catalog())
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return cat, nil
}

// newRunner returns the script runner, resolving catalog-relative script
// paths against the data directory.
func newRunner(paths config.Paths) script.Runner {
	inner := script.NewCmdRunner()
	return script.RunnerFunc(func(ctx context.Context, scriptPath string, params map[string]any) (*script.Result, error) {
		return inner.Invoke(ctx, paths.ResolveScript(scriptPath), params)
	})
}

// newLogger builds the structured logger used by long-running commands.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
