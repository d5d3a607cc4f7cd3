// Package watch fans out state probes for many tweaks with bounded
// concurrency and streams results as they complete. Result ordering is
// completion order, not request order; each requested tweak id reports
// exactly once unless the stream is cancelled.
package watch

import (
	"context"
	"strings"
	"sync"

	"github.com/keelworks/tweakctl/internal/probe"
)

// DefaultConcurrency bounds how many probes run simultaneously when no
// other limit is configured.
const DefaultConcurrency = 4

// TweakProber probes one tweak's observed state.
type TweakProber interface {
	ProbeTweak(ctx context.Context, tweakID string) (*probe.TweakState, error)
}

// Update is one streamed result: a successful state observation or a probe
// failure, never both.
type Update struct {
	TweakID string
	State   *probe.TweakState
	Err     error
}

// Watcher runs concurrent probe sweeps.
type Watcher struct {
	prober      TweakProber
	concurrency int
}

// New creates a watcher. Concurrency values below 1 fall back to the
// default.
func New(prober TweakProber, concurrency int) *Watcher {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Watcher{prober: prober, concurrency: concurrency}
}

// Watch probes the given tweak ids and returns a channel of updates. Ids are
// deduplicated case-insensitively, preserving first-seen order and spelling.
// At most the configured concurrency of probes run at once; the channel is
// closed once every id has reported, or early when ctx is cancelled, in
// which case pending probes stop without writing further results.
func (w *Watcher) Watch(ctx context.Context, tweakIDs []string) <-chan Update {
	ids := dedupe(tweakIDs)

	// Buffered to the request size so probe goroutines never block on a
	// slow consumer.
	updates := make(chan Update, len(ids))
	sem := make(chan struct{}, w.concurrency)

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			if ctx.Err() != nil {
				return
			}

			state, err := w.prober.ProbeTweak(ctx, id)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				updates <- Update{TweakID: id, Err: err}
				return
			}
			updates <- Update{TweakID: id, State: state}
		}(id)
	}

	go func() {
		wg.Wait()
		close(updates)
	}()

	return updates
}

// dedupe removes duplicate ids case-insensitively, keeping the first-seen
// spelling and order.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		key := strings.ToLower(id)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, id)
	}
	return out
}
