// Package output renders terminal output for tweakctl: state, queue, and
// restore point tables, progress indicators for long script runs, and
// human-readable formatting. Color is dropped automatically when stdout is
// not a terminal or NO_COLOR is set.
package output

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/keelworks/tweakctl/internal/executor"
	"github.com/keelworks/tweakctl/internal/probe"
	"github.com/keelworks/tweakctl/internal/queue"
	"github.com/keelworks/tweakctl/internal/restore"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
	gray   = color.New(color.FgHiBlack)
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// stateGlyph renders the tri-state recommendation match: applied, drifted,
// or unknown.
func stateGlyph(isRecommended *bool) string {
	switch {
	case isRecommended == nil:
		return gray.Sprint("? unknown")
	case *isRecommended:
		return green.Sprint("✓ applied")
	default:
		return red.Sprint("✗ drifted")
	}
}

// RenderStateTable renders the observed state of the given tweaks, sorted
// by tweak id.
func RenderStateTable(states []*probe.TweakState) string {
	if len(states) == 0 {
		return "No tweaks to report.\n"
	}

	sorted := make([]*probe.TweakState, len(states))
	copy(sorted, states)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].TweakID < sorted[j].TweakID
	})

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-28s %-12s %-8s %s\n",
		"Tweak", "State", "Values", "Notes"))
	sb.WriteString(strings.Repeat("─", 72))
	sb.WriteString("\n")

	for _, st := range sorted {
		state := stateGlyph(st.IsRecommended)
		if !st.HasDetection && len(st.Errors) == 0 {
			state = gray.Sprint("—")
		}

		notes := ""
		if n := len(st.Errors); n == 1 {
			notes = st.Errors[0]
		} else if n > 1 {
			notes = fmt.Sprintf("%s (+%d more)", st.Errors[0], n-1)
		}

		sb.WriteString(fmt.Sprintf("%-28s %-12s %-8d %s\n",
			truncate(st.TweakID, 28),
			state,
			len(st.Values),
			truncate(notes, 40)))
	}

	return sb.String()
}

// queueStatusLabel colors a queue status for display.
func queueStatusLabel(s queue.Status) string {
	switch s {
	case queue.StatusSucceeded:
		return green.Sprint("✓ succeeded")
	case queue.StatusFailed:
		return red.Sprint("✗ failed")
	case queue.StatusRunning:
		return yellow.Sprint("▸ running")
	case queue.StatusCancelled:
		return gray.Sprint("– cancelled")
	default:
		return string(s)
	}
}

// RenderQueueTable renders queued operations in submission order.
func RenderQueueTable(ops []*queue.Operation) string {
	if len(ops) == 0 {
		return "Queue is empty.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-12s %-26s %-14s %-9s %-14s %s\n",
		"ID", "Task", "Status", "Attempts", "Enqueued", "Message"))
	sb.WriteString(strings.Repeat("─", 104))
	sb.WriteString("\n")

	for _, op := range ops {
		name := op.TaskName
		if name == "" {
			name = op.TaskID
		}
		sb.WriteString(fmt.Sprintf("%-12s %-26s %-14s %-9d %-14s %s\n",
			shortID(op.ID),
			truncate(name, 26),
			queueStatusLabel(op.Status),
			op.Attempts,
			humanize.Time(op.EnqueuedAt),
			truncate(op.LastMessage, 44)))
	}

	return sb.String()
}

// RenderRestorePointTable renders restore points newest first.
func RenderRestorePointTable(points []*restore.Point) string {
	if len(points) == 0 {
		return "No restore points found.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-40s %-16s %-7s %s\n",
		"ID", "Created", "Tweaks", "Revert Operations"))
	sb.WriteString(strings.Repeat("─", 84))
	sb.WriteString("\n")

	for _, p := range points {
		sb.WriteString(fmt.Sprintf("%-40s %-16s %-7d %d\n",
			truncate(p.ID, 40),
			humanize.Time(p.CreatedUTC),
			len(p.Selections),
			len(p.Operations)))
	}

	return sb.String()
}

// RenderRestorePointDetail renders one restore point's selections and the
// scripts a revert would run.
func RenderRestorePointDetail(p *restore.Point) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Restore point: %s\n", p.ID))
	sb.WriteString(fmt.Sprintf("Created:       %s (%s)\n",
		p.CreatedUTC.Format("2006-01-02 15:04:05 UTC"), humanize.Time(p.CreatedUTC)))

	sb.WriteString("\nSelections:\n")
	for _, sel := range p.Selections {
		target := "disable"
		if sel.TargetState {
			target = "enable"
		}
		sb.WriteString(fmt.Sprintf("  %-28s %s\n", sel.TweakID, target))
	}

	sb.WriteString("\nRevert operations:\n")
	for _, op := range p.Operations {
		sb.WriteString(fmt.Sprintf("  %s", op.ScriptPath))
		for _, k := range sortedParamKeys(op.Parameters) {
			sb.WriteString(fmt.Sprintf(" %s=%s", k, op.Parameters[k]))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// RenderExecutionResult renders the per-script outcome of an apply or
// revert run plus a one-line summary.
func RenderExecutionResult(res *executor.Result) string {
	var sb strings.Builder
	for _, s := range res.Summaries {
		if s.Failed() {
			sb.WriteString(red.Sprintf("✗ %s (exit %d)\n", s.Invocation.Name, s.ExitCode))
			for _, line := range s.Errors {
				sb.WriteString(fmt.Sprintf("    %s\n", line))
			}
		} else {
			sb.WriteString(green.Sprintf("✓ %s\n", s.Invocation.Name))
		}
	}

	succeeded, failed := res.Counts()
	if failed == 0 {
		sb.WriteString(fmt.Sprintf("\n%d succeeded\n", succeeded))
	} else {
		sb.WriteString(fmt.Sprintf("\n%d succeeded, %d failed\n", succeeded, failed))
	}
	return sb.String()
}

// shortID abbreviates ULIDs and GUIDs for table display.
func shortID(id string) string {
	if len(id) <= 10 {
		return id
	}
	return id[:10]
}

func sortedParamKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
