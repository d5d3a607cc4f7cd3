package plan

import (
	"errors"
	"reflect"
	"testing"

	"github.com/keelworks/tweakctl/internal/catalog"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.Tweak{
		{
			ID:      "telemetry",
			Name:    "Disable Telemetry",
			Enable:  &catalog.Operation{Script: "set-telemetry.ps1", Parameters: map[string]any{"Level": 0}},
			Disable: &catalog.Operation{Script: "set-telemetry.ps1", Parameters: map[string]any{"Level": 3}},
		},
		{
			ID:     "game-mode",
			Name:   "Game Mode",
			Enable: &catalog.Operation{Script: "game-mode.ps1"},
		},
	}, nil, nil)
	if err != nil {
		t.Fatalf("Failed to build catalog: %v", err)
	}
	return cat
}

func TestBuildBothSides(t *testing.T) {
	b := NewBuilder(testCatalog(t))

	p, err := b.Build([]Selection{
		{TweakID: "telemetry", TargetState: true, PreviousState: false},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(p.Apply) != 1 || len(p.Revert) != 1 {
		t.Fatalf("Expected 1 apply and 1 revert, got %d/%d", len(p.Apply), len(p.Revert))
	}
	if p.Apply[0].Parameters["Level"] != 0 {
		t.Errorf("Apply should carry enable parameters, got %v", p.Apply[0].Parameters)
	}
	if p.Revert[0].Parameters["Level"] != 3 {
		t.Errorf("Revert should carry disable parameters, got %v", p.Revert[0].Parameters)
	}
	if !p.Apply[0].TargetState || p.Revert[0].TargetState {
		t.Error("Apply/revert target states are swapped")
	}
}

func TestBuildSkipsUndefinedSide(t *testing.T) {
	b := NewBuilder(testCatalog(t))

	// game-mode is enable-only: reverting to "disabled" has no operation.
	p, err := b.Build([]Selection{
		{TweakID: "game-mode", TargetState: true, PreviousState: false},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(p.Apply) != 1 {
		t.Errorf("Expected 1 apply operation, got %d", len(p.Apply))
	}
	if len(p.Revert) != 0 {
		t.Errorf("Expected undefined revert side to be skipped, got %d", len(p.Revert))
	}
}

func TestBuildLengthsBounded(t *testing.T) {
	b := NewBuilder(testCatalog(t))

	selections := []Selection{
		{TweakID: "telemetry", TargetState: true, PreviousState: false},
		{TweakID: "game-mode", TargetState: true, PreviousState: false},
		{TweakID: "game-mode", TargetState: false, PreviousState: true},
	}

	p, err := b.Build(selections)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(p.Apply) > len(selections) || len(p.Revert) > len(selections) {
		t.Errorf("Plan sides exceed input length: %d/%d", len(p.Apply), len(p.Revert))
	}
}

func TestBuildPreservesSelectionOrder(t *testing.T) {
	b := NewBuilder(testCatalog(t))

	p, err := b.Build([]Selection{
		{TweakID: "game-mode", TargetState: true, PreviousState: false},
		{TweakID: "telemetry", TargetState: true, PreviousState: false},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if p.Apply[0].TweakID != "game-mode" || p.Apply[1].TweakID != "telemetry" {
		t.Errorf("Apply order does not follow selection order: %v", p.Apply)
	}
}

func TestBuildUnknownTweak(t *testing.T) {
	b := NewBuilder(testCatalog(t))

	_, err := b.Build([]Selection{{TweakID: "nope", TargetState: true}})
	if !errors.Is(err, ErrUnknownTweak) {
		t.Fatalf("Expected ErrUnknownTweak, got %v", err)
	}
}

func TestMergeParametersOverridePrecedence(t *testing.T) {
	base := map[string]any{"Level": 0, "Scope": "machine"}
	overrides := map[string]any{"LEVEL": 1}

	merged := MergeParameters(base, overrides)

	want := map[string]any{"LEVEL": 1, "Scope": "machine"}
	if !reflect.DeepEqual(merged, want) {
		t.Errorf("Unexpected merge result: %v", merged)
	}

	// Inputs must not be mutated.
	if base["Level"] != 0 {
		t.Error("MergeParameters mutated the base map")
	}
}

func TestMergeParametersEmpty(t *testing.T) {
	if got := MergeParameters(nil, nil); got != nil {
		t.Errorf("Expected nil for empty inputs, got %v", got)
	}
}
