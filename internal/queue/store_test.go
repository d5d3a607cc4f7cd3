package queue

import (
	"testing"
	"time"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	started := time.Now().UTC().Truncate(time.Millisecond)
	completed := started.Add(3 * time.Second)
	ops := []*Operation{
		{
			ID:          "01HZX0000000000000000000AA",
			TaskID:      "cleanup-disk",
			Status:      StatusSucceeded,
			Attempts:    1,
			EnqueuedAt:  started.Add(-time.Minute),
			StartedAt:   &started,
			CompletedAt: &completed,
			LastMessage: "Freed 2 GB",
			Output:      []string{"Scanning...", "Freed 2 GB"},
			Parameters:  map[string]any{"Aggressive": true},
		},
		{
			ID:              "01HZX0000000000000000000AB",
			TaskID:          "debloat",
			Status:          StatusPending,
			EnqueuedAt:      started,
			LastMessage:     "Queued",
			CancelRequested: false,
		},
	}

	if err := store.SaveAll(ops); err != nil {
		t.Fatalf("SaveAll failed: %v", err)
	}

	loaded, err := store.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Expected 2 operations, got %d", len(loaded))
	}
	if loaded[0].ID != ops[0].ID || loaded[1].ID != ops[1].ID {
		t.Errorf("Order not preserved: %s, %s", loaded[0].ID, loaded[1].ID)
	}

	got := loaded[0]
	if got.Status != StatusSucceeded || got.Attempts != 1 {
		t.Errorf("Unexpected status/attempts: %s/%d", got.Status, got.Attempts)
	}
	if got.StartedAt == nil || !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt not preserved: %v", got.StartedAt)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(completed) {
		t.Errorf("CompletedAt not preserved: %v", got.CompletedAt)
	}
	if len(got.Output) != 2 || got.Output[1] != "Freed 2 GB" {
		t.Errorf("Output not preserved: %v", got.Output)
	}
	if v, ok := got.Parameters["Aggressive"].(bool); !ok || !v {
		t.Errorf("Parameters not preserved: %v", got.Parameters)
	}
	if loaded[1].StartedAt != nil || loaded[1].CompletedAt != nil {
		t.Errorf("Expected nil timestamps for pending operation")
	}
}

func TestSQLiteStoreSaveAllReplaces(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	now := time.Now().UTC()
	first := []*Operation{
		{ID: "a", TaskID: "t1", Status: StatusPending, EnqueuedAt: now},
		{ID: "b", TaskID: "t2", Status: StatusPending, EnqueuedAt: now},
	}
	if err := store.SaveAll(first); err != nil {
		t.Fatalf("First SaveAll failed: %v", err)
	}

	second := []*Operation{
		{ID: "b", TaskID: "t2", Status: StatusSucceeded, EnqueuedAt: now},
	}
	if err := store.SaveAll(second); err != nil {
		t.Fatalf("Second SaveAll failed: %v", err)
	}

	loaded, err := store.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != "b" || loaded[0].Status != StatusSucceeded {
		t.Errorf("Expected replaced state, got %+v", loaded)
	}
}
