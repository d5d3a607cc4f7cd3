package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces bursts of filesystem events into one sweep.
// Editors and script runs often touch a file several times in quick
// succession.
const debounceWindow = 500 * time.Millisecond

// Daemon re-runs a probe sweep whenever one of the watched paths changes.
// It is used by the foreground watch command: edit the catalog or write a
// restore point and the observed state is re-reconciled.
type Daemon struct {
	paths  []string
	sweep  func(ctx context.Context)
	logger *slog.Logger
}

// NewDaemon creates a daemon that invokes sweep on changes to any of the
// given files or directories.
func NewDaemon(paths []string, sweep func(ctx context.Context), logger *slog.Logger) *Daemon {
	return &Daemon{paths: paths, sweep: sweep, logger: logger}
}

// Run performs an initial sweep, then blocks re-sweeping on filesystem
// changes until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	defer fsw.Close()

	for _, path := range d.paths {
		// Watch the containing directory for files so replaces (write to
		// temp, rename over) are still observed.
		target := path
		if filepath.Ext(path) != "" {
			target = filepath.Dir(path)
		}
		if err := fsw.Add(target); err != nil {
			d.logger.Warn("failed to watch path", "path", target, "error", err)
			continue
		}
		d.logger.Debug("watching path", "path", target)
	}

	d.sweep(ctx)

	var debounce *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("watch daemon stopped")
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			d.logger.Debug("filesystem change", "path", event.Name, "op", event.Op.String())
			if debounce == nil {
				debounce = time.NewTimer(debounceWindow)
			} else {
				debounce.Reset(debounceWindow)
			}
			fire = debounce.C
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			d.logger.Warn("filesystem watcher error", "error", err)
		case <-fire:
			fire = nil
			d.sweep(ctx)
		}
	}
}
