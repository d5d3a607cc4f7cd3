// Package executor runs plan operations strictly in sequence. Tweaks may
// share registry keys or service dependencies, so operations are never
// parallelized, and a failing operation does not abort the plan: partial
// application is left visible rather than silently stopping.
package executor

import (
	"context"
	"errors"

	"github.com/keelworks/tweakctl/internal/plan"
	"github.com/keelworks/tweakctl/internal/script"
)

// faultExitCode marks a summary produced by a runner fault rather than a
// script-reported exit code.
const faultExitCode = -1

// Summary records the outcome of a single operation.
type Summary struct {
	Invocation plan.Invocation
	Output     []string
	Errors     []string
	ExitCode   int
}

// Failed reports whether the operation exited non-zero or faulted.
func (s *Summary) Failed() bool {
	return s.ExitCode != 0
}

// Result aggregates per-operation summaries for one plan run.
type Result struct {
	Summaries []Summary
}

// Success reports whether every operation exited with code 0.
func (r *Result) Success() bool {
	for i := range r.Summaries {
		if r.Summaries[i].Failed() {
			return false
		}
	}
	return true
}

// Counts returns the number of succeeded and failed operations.
func (r *Result) Counts() (succeeded, failed int) {
	for i := range r.Summaries {
		if r.Summaries[i].Failed() {
			failed++
		} else {
			succeeded++
		}
	}
	return succeeded, failed
}

// ErrorLines returns the union of captured error text across operations.
func (r *Result) ErrorLines() []string {
	var lines []string
	for i := range r.Summaries {
		lines = append(lines, r.Summaries[i].Errors...)
	}
	return lines
}

// Executor executes operations through a script runner.
type Executor struct {
	runner script.Runner
}

// New creates an executor backed by the given runner.
func New(runner script.Runner) *Executor {
	return &Executor{runner: runner}
}

// Execute runs the operations in order. A script-reported failure is
// recorded and execution continues with the next operation. A runner fault
// is recorded as a synthetic failed summary with exit code -1. Cancellation
// stops the loop immediately and returns the context error along with the
// summaries collected so far; nothing already executed is rolled back.
func (e *Executor) Execute(ctx context.Context, operations []plan.Invocation) (*Result, error) {
	result := &Result{}

	for _, op := range operations {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		res, err := e.runner.Invoke(ctx, op.ScriptPath, op.Parameters)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return result, err
			}
			result.Summaries = append(result.Summaries, Summary{
				Invocation: op,
				Errors:     []string{err.Error()},
				ExitCode:   faultExitCode,
			})
			continue
		}

		result.Summaries = append(result.Summaries, Summary{
			Invocation: op,
			Output:     res.OutputLines,
			Errors:     res.ErrorLines,
			ExitCode:   res.ExitCode,
		})
	}

	return result, nil
}
