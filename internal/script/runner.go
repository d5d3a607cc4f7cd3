// Package script provides the boundary to external scripts: run a script
// with named parameters, collect its stdout/stderr lines and exit code, and
// support cooperative cancellation. The core never inspects script contents;
// it only requires exit code 0 for success and, when structured data is
// expected, a final well-formed JSON object embedded in the output.
package script

import "context"

// Result holds the outcome of a script invocation.
type Result struct {
	OutputLines []string
	ErrorLines  []string
	ExitCode    int
}

// Succeeded reports whether the script exited with code 0.
func (r *Result) Succeeded() bool {
	return r.ExitCode == 0
}

// Runner executes an external script with parameters. Implementations never
// retry internally; the caller owns retry policy.
type Runner interface {
	Invoke(ctx context.Context, scriptPath string, parameters map[string]any) (*Result, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, scriptPath string, parameters map[string]any) (*Result, error)

// Invoke calls f.
func (f RunnerFunc) Invoke(ctx context.Context, scriptPath string, parameters map[string]any) (*Result, error) {
	return f(ctx, scriptPath, parameters)
}
