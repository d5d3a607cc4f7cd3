package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keelworks/tweakctl/internal/output"
	"github.com/keelworks/tweakctl/internal/probe"
	"github.com/keelworks/tweakctl/internal/watch"
)

var statusFlagConcurrency int

var statusCmd = &cobra.Command{
	Use:   "status [tweaks...]",
	Short: "Probe and report the observed state of tweaks",
	Long: `Probe the machine's registry state for the named tweaks, or for every
tweak in the catalog that declares detection. Probes run concurrently;
results stream in completion order and are rendered sorted.

Examples:
  tweakctl status
  tweakctl status disable-telemetry disable-cortana
  tweakctl status --concurrency 8`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusFlagConcurrency, "concurrency", watch.DefaultConcurrency, "maximum concurrent probes")
	RootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	paths, err := getPaths()
	if err != nil {
		return err
	}
	cat, err := loadCatalog(paths)
	if err != nil {
		return err
	}

	ids := args
	if len(ids) == 0 {
		for _, t := range cat.Tweaks() {
			if t.HasDetection() {
				ids = append(ids, t.ID)
			}
		}
	}
	if len(ids) == 0 {
		fmt.Println("No tweaks with detection in the catalog.")
		return nil
	}

	prober := probe.New(cat, newRunner(paths), probe.WithCacheDir(paths.StateCache()))
	watcher := watch.New(prober, statusFlagConcurrency)

	spinner := output.NewSpinner(fmt.Sprintf("Probing %d tweaks", len(ids)))
	spinner.Start()

	var states []*probe.TweakState
	for update := range watcher.Watch(cmd.Context(), ids) {
		if update.Err != nil {
			states = append(states, &probe.TweakState{
				TweakID: update.TweakID,
				Errors:  []string{update.Err.Error()},
			})
			continue
		}
		states = append(states, update.State)
	}
	spinner.Stop()

	if err := cmd.Context().Err(); err != nil {
		return err
	}

	fmt.Print(output.RenderStateTable(states))
	return nil
}
