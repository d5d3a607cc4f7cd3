package watch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/keelworks/tweakctl/internal/probe"
)

// proberFunc adapts a function to TweakProber.
type proberFunc func(ctx context.Context, tweakID string) (*probe.TweakState, error)

func (f proberFunc) ProbeTweak(ctx context.Context, tweakID string) (*probe.TweakState, error) {
	return f(ctx, tweakID)
}

func collect(ch <-chan Update) []Update {
	var out []Update
	for u := range ch {
		out = append(out, u)
	}
	return out
}

func TestWatchExactlyOncePerDistinctID(t *testing.T) {
	p := proberFunc(func(ctx context.Context, id string) (*probe.TweakState, error) {
		return &probe.TweakState{TweakID: id}, nil
	})

	w := New(p, 0)
	updates := collect(w.Watch(context.Background(), []string{"a", "b", "A", "c"}))

	if len(updates) != 3 {
		t.Fatalf("Expected 3 updates for deduplicated ids, got %d", len(updates))
	}

	seen := make(map[string]int)
	for _, u := range updates {
		seen[strings.ToLower(u.TweakID)]++
		if u.Err != nil {
			t.Errorf("Unexpected failure for %s: %v", u.TweakID, u.Err)
		}
	}
	for _, id := range []string{"a", "b", "c"} {
		if seen[id] != 1 {
			t.Errorf("Expected exactly one update for %s, got %d", id, seen[id])
		}
	}
}

func TestWatchMixesSuccessAndFailure(t *testing.T) {
	p := proberFunc(func(ctx context.Context, id string) (*probe.TweakState, error) {
		if id == "bad" {
			return nil, errors.New("unknown tweak: bad")
		}
		return &probe.TweakState{TweakID: id}, nil
	})

	w := New(p, 2)
	updates := collect(w.Watch(context.Background(), []string{"good", "bad"}))

	if len(updates) != 2 {
		t.Fatalf("Expected 2 updates, got %d", len(updates))
	}
	for _, u := range updates {
		switch u.TweakID {
		case "good":
			if u.State == nil || u.Err != nil {
				t.Errorf("Expected success for good, got %+v", u)
			}
		case "bad":
			if u.Err == nil || u.State != nil {
				t.Errorf("Expected failure for bad, got %+v", u)
			}
		}
	}
}

func TestWatchConcurrencyBound(t *testing.T) {
	var running, peak int32
	var mu sync.Mutex

	p := proberFunc(func(ctx context.Context, id string) (*probe.TweakState, error) {
		n := atomic.AddInt32(&running, 1)
		mu.Lock()
		if n > peak {
			peak = n
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return &probe.TweakState{TweakID: id}, nil
	})

	w := New(p, 2)
	updates := collect(w.Watch(context.Background(), []string{"a", "b", "c", "d", "e"}))

	if len(updates) != 5 {
		t.Fatalf("Expected 5 updates, got %d", len(updates))
	}
	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Errorf("Observed %d concurrent probes, want at most 2", peak)
	}
}

func TestWatchResultsArriveInCompletionOrder(t *testing.T) {
	p := proberFunc(func(ctx context.Context, id string) (*probe.TweakState, error) {
		if id == "slow" {
			time.Sleep(50 * time.Millisecond)
		}
		return &probe.TweakState{TweakID: id}, nil
	})

	w := New(p, 2)
	updates := collect(w.Watch(context.Background(), []string{"slow", "fast"}))

	if len(updates) != 2 {
		t.Fatalf("Expected 2 updates, got %d", len(updates))
	}
	if updates[0].TweakID != "fast" {
		t.Errorf("Expected fast probe to report first, got %s", updates[0].TweakID)
	}
}

func TestWatchCancellationStopsStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{}, 1)
	p := proberFunc(func(ctx context.Context, id string) (*probe.TweakState, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return nil, ctx.Err()
	})

	w := New(p, 1)
	ch := w.Watch(ctx, []string{"a", "b", "c"})

	<-started
	cancel()

	// The channel must close without emitting one update per id.
	updates := collect(ch)
	if len(updates) >= 3 {
		t.Errorf("Expected early termination, got %d updates", len(updates))
	}
}

func TestWatchEmptyInput(t *testing.T) {
	w := New(proberFunc(func(ctx context.Context, id string) (*probe.TweakState, error) {
		t.Fatal("Prober should not run for empty input")
		return nil, nil
	}), 4)

	updates := collect(w.Watch(context.Background(), []string{"", "  "}))
	if len(updates) != 0 {
		t.Errorf("Expected no updates, got %d", len(updates))
	}
}
