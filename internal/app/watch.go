package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/keelworks/tweakctl/internal/output"
	"github.com/keelworks/tweakctl/internal/probe"
	"github.com/keelworks/tweakctl/internal/watch"
)

var watchFlagConcurrency int

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-probe tweak state whenever the catalog or restore points change",
	Long: `Run in the foreground, probing all tweaks with detection and re-probing
whenever the catalog file or the restore-point directory changes. Stop with
Ctrl-C.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().IntVar(&watchFlagConcurrency, "concurrency", watch.DefaultConcurrency, "maximum concurrent probes")
	RootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	paths, err := getPaths()
	if err != nil {
		return err
	}
	logger := newLogger()

	sweep := func(ctx context.Context) {
		cat, err := loadCatalog(paths)
		if err != nil {
			logger.Error("sweep skipped", "error", err)
			return
		}

		var ids []string
		for _, t := range cat.Tweaks() {
			if t.HasDetection() {
				ids = append(ids, t.ID)
			}
		}
		if len(ids) == 0 {
			logger.Info("no tweaks with detection in the catalog")
			return
		}

		prober := probe.New(cat, newRunner(paths), probe.WithCacheDir(paths.StateCache()))
		watcher := watch.New(prober, watchFlagConcurrency)

		var states []*probe.TweakState
		for update := range watcher.Watch(ctx, ids) {
			if update.Err != nil {
				logger.Warn("probe failed", "tweak", update.TweakID, "error", update.Err)
				continue
			}
			states = append(states, update.State)
		}
		if ctx.Err() != nil {
			return
		}

		fmt.Print(output.RenderStateTable(states))
		logger.Info("sweep complete", "probed", len(states))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	daemon := watch.NewDaemon([]string{paths.Catalog(), paths.RestorePoints()}, sweep, logger)
	if err := daemon.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
