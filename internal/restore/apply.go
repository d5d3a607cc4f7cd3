package restore

import (
	"context"

	"github.com/keelworks/tweakctl/internal/executor"
)

// Apply executes a restore point's stored operations through the same
// executor used for forward application. Revert is not a special code path.
func Apply(ctx context.Context, ex *executor.Executor, point *Point) (*executor.Result, error) {
	return ex.Execute(ctx, point.Invocations())
}
