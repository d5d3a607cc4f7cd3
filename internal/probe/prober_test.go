package probe

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/keelworks/tweakctl/internal/catalog"
	"github.com/keelworks/tweakctl/internal/script"
)

func proberCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.Tweak{
		{
			ID:     "telemetry",
			Name:   "Disable Telemetry",
			Enable: &catalog.Operation{Script: "set-telemetry.ps1"},
			Detection: []catalog.ValueDetection{{
				Hive:             "HKLM",
				KeyPath:          `SOFTWARE\Policies\Microsoft\Windows\DataCollection`,
				ValueName:        "AllowTelemetry",
				ValueType:        "DWord",
				RecommendedValue: float64(0),
			}},
		},
		{
			ID:     "no-detect",
			Name:   "No Detection",
			Enable: &catalog.Operation{Script: "x.ps1"},
		},
		{
			ID:     "multi",
			Name:   "Multi Value",
			Enable: &catalog.Operation{Script: "multi.ps1"},
			Detection: []catalog.ValueDetection{
				{Hive: "HKLM", KeyPath: `SOFTWARE\A`, ValueName: "V1", ValueType: "DWord", RecommendedValue: float64(1)},
				{Hive: "HKCU", KeyPath: `SOFTWARE\B`, ValueName: "V2", ValueType: "DWord", RecommendedValue: float64(1)},
			},
		},
	}, nil, nil)
	if err != nil {
		t.Fatalf("Failed to build catalog: %v", err)
	}
	return cat
}

// scriptedRunner returns a runner that replies with canned output per
// registry path.
func scriptedRunner(replies map[string][]string) script.Runner {
	return script.RunnerFunc(func(ctx context.Context, path string, params map[string]any) (*script.Result, error) {
		key, _ := params["Path"].(string)
		if lines, ok := replies[key]; ok {
			return &script.Result{OutputLines: lines, ExitCode: 0}, nil
		}
		return &script.Result{ErrorLines: []string{"value not found"}, ExitCode: 1}, nil
	})
}

func TestProbeTweakMatch(t *testing.T) {
	runner := scriptedRunner(map[string][]string{
		`HKLM\SOFTWARE\Policies\Microsoft\Windows\DataCollection`: {
			"Reading registry...",
			`{"currentValue":0,"currentDisplay":"0","recommendedValue":0,"recommendedDisplay":"0"}`,
		},
	})

	p := New(proberCatalog(t), runner)
	state, err := p.ProbeTweak(context.Background(), "telemetry")
	if err != nil {
		t.Fatalf("ProbeTweak failed: %v", err)
	}

	if !state.HasDetection {
		t.Error("Expected HasDetection")
	}
	if state.IsRecommended == nil || !*state.IsRecommended {
		t.Errorf("Expected recommended state, got %v", state.IsRecommended)
	}
	if len(state.Values) != 1 {
		t.Fatalf("Expected 1 value state, got %d", len(state.Values))
	}
	if state.Values[0].CurrentValue != float64(0) {
		t.Errorf("Unexpected current value: %v", state.Values[0].CurrentValue)
	}
}

func TestProbeTweakMismatch(t *testing.T) {
	runner := scriptedRunner(map[string][]string{
		`HKLM\SOFTWARE\Policies\Microsoft\Windows\DataCollection`: {
			`{"currentValue":3,"currentDisplay":"3","recommendedValue":0,"recommendedDisplay":"0"}`,
		},
	})

	p := New(proberCatalog(t), runner)
	state, err := p.ProbeTweak(context.Background(), "telemetry")
	if err != nil {
		t.Fatalf("ProbeTweak failed: %v", err)
	}
	if state.IsRecommended == nil || *state.IsRecommended {
		t.Errorf("Expected mismatch, got %v", state.IsRecommended)
	}
}

func TestProbeTweakNoPayloadIsUnknown(t *testing.T) {
	runner := script.RunnerFunc(func(ctx context.Context, path string, params map[string]any) (*script.Result, error) {
		return &script.Result{
			OutputLines: []string{"no json here"},
			ErrorLines:  []string{"oops", "oops", ""},
			ExitCode:    1,
		}, nil
	})

	p := New(proberCatalog(t), runner)
	state, err := p.ProbeTweak(context.Background(), "telemetry")
	if err != nil {
		t.Fatalf("ProbeTweak failed: %v", err)
	}

	if state.IsRecommended != nil {
		t.Errorf("Expected unknown match, got %v", *state.IsRecommended)
	}
	if len(state.Values[0].Errors) != 1 || state.Values[0].Errors[0] != "oops" {
		t.Errorf("Expected deduplicated error lines, got %v", state.Values[0].Errors)
	}
}

func TestProbeTweakGenericErrorWhenNoErrorLines(t *testing.T) {
	runner := script.RunnerFunc(func(ctx context.Context, path string, params map[string]any) (*script.Result, error) {
		return &script.Result{OutputLines: []string{"nothing"}, ExitCode: 0}, nil
	})

	p := New(proberCatalog(t), runner)
	state, _ := p.ProbeTweak(context.Background(), "telemetry")
	if len(state.Values[0].Errors) == 0 {
		t.Fatal("Expected a generic error message")
	}
}

func TestProbeTweakWithoutDetection(t *testing.T) {
	p := New(proberCatalog(t), scriptedRunner(nil))
	state, err := p.ProbeTweak(context.Background(), "no-detect")
	if err != nil {
		t.Fatalf("ProbeTweak failed: %v", err)
	}
	if state.HasDetection {
		t.Error("Expected HasDetection to be false")
	}
	if state.IsRecommended != nil {
		t.Error("Expected unknown match without detection")
	}
}

func TestProbeTweakUnknownID(t *testing.T) {
	p := New(proberCatalog(t), scriptedRunner(nil))
	if _, err := p.ProbeTweak(context.Background(), "missing"); err == nil {
		t.Fatal("Expected error for unknown tweak")
	}
}

func TestProbeTweakAggregatesAcrossValues(t *testing.T) {
	// One value matches, the other does not: aggregate must be false.
	runner := scriptedRunner(map[string][]string{
		`HKLM\SOFTWARE\A`: {`{"currentValue":1,"currentDisplay":"1","recommendedValue":1,"recommendedDisplay":"1"}`},
		`HKCU\SOFTWARE\B`: {`{"currentValue":0,"currentDisplay":"0","recommendedValue":1,"recommendedDisplay":"1"}`},
	})

	p := New(proberCatalog(t), runner)
	state, err := p.ProbeTweak(context.Background(), "multi")
	if err != nil {
		t.Fatalf("ProbeTweak failed: %v", err)
	}
	if state.IsRecommended == nil || *state.IsRecommended {
		t.Errorf("Expected aggregate mismatch, got %v", state.IsRecommended)
	}
}

func TestProbeTweakUnknownValueMakesAggregateUnknown(t *testing.T) {
	// One value matches, the other errors: aggregate must be unknown.
	runner := scriptedRunner(map[string][]string{
		`HKLM\SOFTWARE\A`: {`{"currentValue":1,"currentDisplay":"1","recommendedValue":1,"recommendedDisplay":"1"}`},
	})

	p := New(proberCatalog(t), runner)
	state, err := p.ProbeTweak(context.Background(), "multi")
	if err != nil {
		t.Fatalf("ProbeTweak failed: %v", err)
	}
	if state.IsRecommended != nil {
		t.Errorf("Expected unknown aggregate, got %v", *state.IsRecommended)
	}
	if len(state.Errors) == 0 {
		t.Error("Expected aggregated error strings")
	}
}

func TestProbeMirrorsStateToCacheDir(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "state")
	runner := scriptedRunner(map[string][]string{
		`HKLM\SOFTWARE\Policies\Microsoft\Windows\DataCollection`: {
			`{"currentValue":0,"currentDisplay":"0","recommendedValue":0,"recommendedDisplay":"0"}`,
		},
	})

	p := New(proberCatalog(t), runner, WithCacheDir(cacheDir))
	if _, err := p.ProbeTweak(context.Background(), "telemetry"); err != nil {
		t.Fatalf("ProbeTweak failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(cacheDir, "telemetry.json"))
	if err != nil {
		t.Fatalf("Expected mirrored state file: %v", err)
	}
	var mirrored TweakState
	if err := json.Unmarshal(data, &mirrored); err != nil {
		t.Fatalf("Mirrored state is not valid JSON: %v", err)
	}
	if mirrored.TweakID != "telemetry" {
		t.Errorf("Unexpected mirrored tweak id: %s", mirrored.TweakID)
	}
}

func TestProbeValueSnapshots(t *testing.T) {
	runner := scriptedRunner(map[string][]string{
		`HKLM\SOFTWARE\Policies\Microsoft\Windows\DataCollection`: {
			`{"currentValue":0,"currentDisplay":["0","zero"],"recommendedValue":0,"recommendedDisplay":"0",` +
				`"values":[{"path":"HKLM\\SOFTWARE\\X","value":1,"display":"one"}]}`,
		},
	})

	p := New(proberCatalog(t), runner)
	state, _ := p.ProbeTweak(context.Background(), "telemetry")
	vs := state.Values[0]
	if len(vs.CurrentDisplay) != 2 {
		t.Errorf("Expected both display forms, got %v", vs.CurrentDisplay)
	}
	if len(vs.Snapshots) != 1 || vs.Snapshots[0].Display != "one" {
		t.Errorf("Expected raw snapshots, got %v", vs.Snapshots)
	}
}
