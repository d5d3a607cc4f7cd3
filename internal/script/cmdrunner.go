package script

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-cmd/cmd"
)

// CmdRunner runs scripts as child processes. PowerShell scripts (.ps1) are
// dispatched through powershell with a non-interactive profile; everything
// else is executed directly.
type CmdRunner struct{}

// NewCmdRunner returns a process-backed script runner.
func NewCmdRunner() *CmdRunner {
	return &CmdRunner{}
}

// Invoke runs the script and waits for it to finish or for ctx to be
// cancelled. Cancellation stops the child process and returns ctx's error;
// there is no timeout beyond what the context carries.
func (r *CmdRunner) Invoke(ctx context.Context, scriptPath string, parameters map[string]any) (*Result, error) {
	name, args := command(scriptPath, parameters)

	c := cmd.NewCmdOptions(cmd.Options{
		Buffered:   true,
		BeforeExec: beforeExec(),
	}, name, args...)

	statusCh := c.Start()

	select {
	case <-ctx.Done():
		c.Stop()
		<-statusCh
		return nil, ctx.Err()
	case status := <-statusCh:
		if status.Error != nil {
			return nil, fmt.Errorf("failed to run %s: %w", scriptPath, status.Error)
		}
		return &Result{
			OutputLines: status.Stdout,
			ErrorLines:  status.Stderr,
			ExitCode:    status.Exit,
		}, nil
	}
}

// command resolves the executable and argument list for a script invocation.
func command(scriptPath string, parameters map[string]any) (string, []string) {
	var name string
	var args []string

	if strings.EqualFold(strings.TrimSpace(pathExt(scriptPath)), ".ps1") {
		name = "powershell"
		args = []string{"-NoProfile", "-NonInteractive", "-ExecutionPolicy", "Bypass", "-File", scriptPath}
	} else {
		name = scriptPath
	}

	for _, key := range sortedKeys(parameters) {
		args = append(args, "-"+key, FormatValue(parameters[key]))
	}

	return name, args
}

// pathExt returns the file extension including the dot.
func pathExt(path string) string {
	if idx := strings.LastIndexByte(path, '.'); idx >= 0 {
		return path[idx:]
	}
	return ""
}

// sortedKeys returns parameter names in a deterministic case-insensitive
// order so invocations are reproducible.
func sortedKeys(parameters map[string]any) []string {
	keys := make([]string, 0, len(parameters))
	for k := range parameters {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return strings.ToLower(keys[i]) < strings.ToLower(keys[j])
	})
	return keys
}

// FormatValue renders a scalar or sequence parameter value as a single
// argument string. Sequences are comma-joined, which PowerShell parses back
// into an array.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "True"
		}
		return "False"
	case float64:
		// JSON numbers decode as float64; render integers without a decimal.
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = FormatValue(item)
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(val, ",")
	default:
		return fmt.Sprintf("%v", val)
	}
}
