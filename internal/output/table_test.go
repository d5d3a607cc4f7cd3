package output

import (
	"strings"
	"testing"
	"time"

	"github.com/keelworks/tweakctl/internal/executor"
	"github.com/keelworks/tweakctl/internal/plan"
	"github.com/keelworks/tweakctl/internal/probe"
	"github.com/keelworks/tweakctl/internal/queue"
	"github.com/keelworks/tweakctl/internal/restore"
)

func boolPtr(v bool) *bool { return &v }

func TestRenderStateTable(t *testing.T) {
	states := []*probe.TweakState{
		{TweakID: "telemetry", HasDetection: true, IsRecommended: boolPtr(true)},
		{TweakID: "cortana", HasDetection: true, IsRecommended: boolPtr(false)},
		{TweakID: "gamebar", HasDetection: true, Errors: []string{"access denied"}},
		{TweakID: "aero-shake", HasDetection: false},
	}

	out := RenderStateTable(states)

	if !strings.Contains(out, "✓ applied") {
		t.Error("Expected applied glyph for matching tweak")
	}
	if !strings.Contains(out, "✗ drifted") {
		t.Error("Expected drifted glyph for mismatching tweak")
	}
	if !strings.Contains(out, "? unknown") {
		t.Error("Expected unknown glyph for errored tweak")
	}
	if !strings.Contains(out, "access denied") {
		t.Error("Expected error note in table")
	}

	// Sorted by id: aero-shake first.
	lines := strings.Split(out, "\n")
	if !strings.HasPrefix(lines[2], "aero-shake") {
		t.Errorf("Expected sorted rows, got %q", lines[2])
	}
}

func TestRenderStateTableEmpty(t *testing.T) {
	if out := RenderStateTable(nil); !strings.Contains(out, "No tweaks") {
		t.Errorf("Unexpected empty output: %q", out)
	}
}

func TestRenderQueueTable(t *testing.T) {
	ops := []*queue.Operation{
		{
			ID:          "01HZX5J8K2M4N6P8R0T2V4X6Z8",
			TaskID:      "cleanup-disk",
			TaskName:    "Cleanup Disk",
			Status:      queue.StatusSucceeded,
			Attempts:    1,
			EnqueuedAt:  time.Now().Add(-2 * time.Hour),
			LastMessage: "Freed 2 GB",
		},
		{
			ID:          "01HZX5J8K2M4N6P8R0T2V4X700",
			TaskID:      "debloat",
			Status:      queue.StatusPending,
			EnqueuedAt:  time.Now().Add(-time.Minute),
			LastMessage: "Waiting for 'Cleanup Disk' to finish",
		},
	}

	out := RenderQueueTable(ops)

	if !strings.Contains(out, "✓ succeeded") {
		t.Error("Expected succeeded status label")
	}
	if !strings.Contains(out, "Cleanup Disk") {
		t.Error("Expected task name")
	}
	// Falls back to the task id when the name is unresolved.
	if !strings.Contains(out, "debloat") {
		t.Error("Expected task id fallback")
	}
	if !strings.Contains(out, "Waiting for 'Cleanup Disk' to finish") {
		t.Error("Expected waiting message")
	}
	// ULIDs are abbreviated.
	if strings.Contains(out, "01HZX5J8K2M4N6P8R0T2V4X6Z8") {
		t.Error("Expected abbreviated operation id")
	}
}

func TestRenderRestorePointTable(t *testing.T) {
	points := []*restore.Point{
		{
			ID:         "20260830T101500_8f14e45f-ceea-4672-950f-01b1c7a0e3a4",
			CreatedUTC: time.Now().Add(-24 * time.Hour),
			Selections: []restore.SelectionSummary{{TweakID: "telemetry", TargetState: true}},
			Operations: []restore.StoredOperation{{ScriptPath: "set-telemetry.ps1"}},
		},
	}

	out := RenderRestorePointTable(points)
	if !strings.Contains(out, "20260830T101500_8f14e45f") {
		t.Errorf("Expected restore point id, got %q", out)
	}
	if out := RenderRestorePointTable(nil); !strings.Contains(out, "No restore points") {
		t.Errorf("Unexpected empty output: %q", out)
	}
}

func TestRenderRestorePointDetail(t *testing.T) {
	p := &restore.Point{
		ID:         "20260830T101500_8f14e45f-ceea-4672-950f-01b1c7a0e3a4",
		CreatedUTC: time.Date(2026, 8, 30, 10, 15, 0, 0, time.UTC),
		Selections: []restore.SelectionSummary{{TweakID: "telemetry", TargetState: true}},
		Operations: []restore.StoredOperation{{
			ScriptPath: "set-telemetry.ps1",
			Parameters: map[string]string{"Level": "3", "Audit": "true"},
		}},
	}

	out := RenderRestorePointDetail(p)
	if !strings.Contains(out, "telemetry") || !strings.Contains(out, "enable") {
		t.Errorf("Expected selection row, got %q", out)
	}
	// Parameters render in sorted key order.
	if !strings.Contains(out, "set-telemetry.ps1 Audit=true Level=3") {
		t.Errorf("Expected deterministic parameter order, got %q", out)
	}
}

func TestRenderExecutionResult(t *testing.T) {
	res := &executor.Result{Summaries: []executor.Summary{
		{Invocation: plan.Invocation{Name: "Disable Telemetry"}, ExitCode: 0},
		{Invocation: plan.Invocation{Name: "Disable Cortana"}, ExitCode: 1, Errors: []string{"registry locked"}},
	}}

	out := RenderExecutionResult(res)
	if !strings.Contains(out, "✓ Disable Telemetry") {
		t.Error("Expected success row")
	}
	if !strings.Contains(out, "✗ Disable Cortana (exit 1)") {
		t.Error("Expected failure row with exit code")
	}
	if !strings.Contains(out, "registry locked") {
		t.Error("Expected error lines under failure")
	}
	if !strings.Contains(out, "1 succeeded, 1 failed") {
		t.Errorf("Expected summary line, got %q", out)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 20); got != "short" {
		t.Errorf("Expected unchanged string, got %q", got)
	}
	if got := truncate("a-very-long-tweak-identifier", 10); got != "a-very-..." {
		t.Errorf("Unexpected truncation: %q", got)
	}
}
