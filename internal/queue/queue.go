package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/keelworks/tweakctl/internal/catalog"
	"github.com/keelworks/tweakctl/internal/plan"
	"github.com/keelworks/tweakctl/internal/script"
)

// Queue is a durable FIFO queue running maintenance tasks one at a time.
// All methods are safe for concurrent use.
type Queue struct {
	catalog *catalog.Catalog
	runner  script.Runner
	store   Store
	guard   GuardPolicy
	logger  *slog.Logger

	mu            sync.Mutex
	ops           []*Operation
	runningID     string
	cancelRunning context.CancelFunc
	degraded      bool
	degradedErr   error

	// notify wakes the worker when new work arrives; capacity 1 so
	// enqueues never block.
	notify chan struct{}
}

// Option configures a Queue.
type Option func(*Queue)

// WithGuardPolicy sets the policy deciding which tasks need a guard task
// queued ahead of them.
func WithGuardPolicy(p GuardPolicy) Option {
	return func(q *Queue) { q.guard = p }
}

// WithLogger sets the structured logger used for worker events.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// New creates a queue backed by the given store. Operations persisted as
// Running by a previous process are reset to Pending so an interrupted run
// is retried rather than stranded.
func New(cat *catalog.Catalog, runner script.Runner, store Store, opts ...Option) (*Queue, error) {
	q := &Queue{
		catalog: cat,
		runner:  runner,
		store:   store,
		guard:   NoGuard,
		logger:  slog.Default(),
		notify:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}

	ops, err := store.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load queue state: %w", err)
	}

	recovered := 0
	for _, op := range ops {
		if op.Status == StatusRunning {
			// The previous process died mid-run. Attempts stays as
			// recorded; the interrupted attempt already counted.
			op.Status = StatusPending
			op.StartedAt = nil
			recovered++
		}
		if task, ok := cat.Task(op.TaskID); ok {
			op.TaskName = task.Name
		} else {
			op.TaskName = op.TaskID
		}
	}
	q.ops = ops
	q.refreshWaitingLocked()
	if recovered > 0 {
		q.logger.Info("recovered interrupted operations", "count", recovered)
		q.persistLocked()
	}
	if q.nextPendingLocked() != nil {
		q.wake()
	}
	return q, nil
}

// Degraded reports whether the last persistence attempt failed. The queue
// keeps working in memory when the store is unavailable, but state will not
// survive a restart.
func (q *Queue) Degraded() (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.degraded, q.degradedErr
}

// Enqueue appends a run of the given task. If the guard policy names a
// guard task and no live (pending, running, or succeeded) run of it exists
// in the queue, the guard is inserted immediately ahead of the new
// operation.
func (q *Queue) Enqueue(taskID string, parameters map[string]any) (*Operation, error) {
	task, ok := q.catalog.Task(taskID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if guardID, required := q.guard.GuardFor(task.ID); required && !strings.EqualFold(guardID, task.ID) {
		if !q.hasLiveRunLocked(guardID) {
			guardTask, ok := q.catalog.Task(guardID)
			if !ok {
				return nil, fmt.Errorf("%w: guard task %s", ErrUnknownTask, guardID)
			}
			q.ops = append(q.ops, q.newOperation(guardTask, nil))
			q.logger.Info("inserted guard task", "task", guardTask.ID, "for", task.ID)
		}
	}

	op := q.newOperation(task, parameters)
	q.ops = append(q.ops, op)
	q.refreshWaitingLocked()
	q.persistLocked()
	q.wake()
	return op.Clone(), nil
}

// Operations returns copies of all operations in submission order.
func (q *Queue) Operations() []*Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Operation, len(q.ops))
	for i, op := range q.ops {
		out[i] = op.Clone()
	}
	return out
}

// Get returns a copy of the operation with the given id.
func (q *Queue) Get(id string) (*Operation, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	op := q.findLocked(id)
	if op == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return op.Clone(), nil
}

// Cancel cancels the operation with the given id. Pending operations move
// to Cancelled immediately; the running operation has its context cancelled
// and finishes as Cancelled once its script stops. Terminal operations
// cannot be cancelled.
func (q *Queue) Cancel(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	op := q.findLocked(id)
	if op == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	switch op.Status {
	case StatusPending:
		now := time.Now().UTC()
		op.CancelRequested = true
		op.Status = StatusCancelled
		op.CompletedAt = &now
		op.LastMessage = "Cancelled before start"
	case StatusRunning:
		op.CancelRequested = true
		op.LastMessage = "Cancelling"
		if q.cancelRunning != nil {
			q.cancelRunning()
		}
	default:
		return fmt.Errorf("%w: %s is %s", ErrAlreadyFinished, id, op.Status)
	}

	q.refreshWaitingLocked()
	q.persistLocked()
	return nil
}

// Retry moves a failed operation back to Pending. Its output, errors, and
// timestamps are cleared; the attempt count is kept so the history of tries
// stays visible.
func (q *Queue) Retry(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	op := q.findLocked(id)
	if op == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if op.Status != StatusFailed {
		return fmt.Errorf("%w: %s is %s", ErrNotFailed, id, op.Status)
	}

	q.resetForRetryLocked(op)
	q.refreshWaitingLocked()
	q.persistLocked()
	q.wake()
	return nil
}

// RetryFailed retries every failed operation and returns how many were
// requeued.
func (q *Queue) RetryFailed() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	count := 0
	for _, op := range q.ops {
		if op.Status == StatusFailed {
			q.resetForRetryLocked(op)
			count++
		}
	}
	if count > 0 {
		q.refreshWaitingLocked()
		q.persistLocked()
		q.wake()
	}
	return count
}

// Run processes operations until ctx is cancelled. It blocks waiting for
// new work when the queue is empty.
func (q *Queue) Run(ctx context.Context) error {
	for {
		if q.processNext(ctx) {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.notify:
		}
	}
}

// Drain processes operations until none are pending, then returns. It is
// used by the one-shot queue run command.
func (q *Queue) Drain(ctx context.Context) error {
	for q.processNext(ctx) {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// processNext runs the oldest pending operation. It returns false when
// nothing was pending.
func (q *Queue) processNext(ctx context.Context) bool {
	q.mu.Lock()
	op := q.nextPendingLocked()
	if op == nil || ctx.Err() != nil {
		q.mu.Unlock()
		return false
	}

	task, ok := q.catalog.Task(op.TaskID)
	if !ok {
		// The catalog changed between enqueue and run.
		now := time.Now().UTC()
		op.Status = StatusFailed
		op.CompletedAt = &now
		op.Errors = append(op.Errors, fmt.Sprintf("unknown task: %s", op.TaskID))
		op.LastMessage = fmt.Sprintf("unknown task: %s", op.TaskID)
		q.refreshWaitingLocked()
		q.persistLocked()
		q.mu.Unlock()
		return true
	}

	now := time.Now().UTC()
	op.Status = StatusRunning
	op.StartedAt = &now
	op.Attempts++
	op.LastMessage = "Running"

	opCtx, cancel := context.WithCancel(ctx)
	q.runningID = op.ID
	q.cancelRunning = cancel
	q.refreshWaitingLocked()
	q.persistLocked()
	q.logger.Info("running task", "task", op.TaskID, "operation", op.ID, "attempt", op.Attempts)
	q.mu.Unlock()

	params := plan.MergeParameters(task.Parameters, op.Parameters)
	res, err := q.runner.Invoke(opCtx, task.Script, params)
	cancel()

	q.mu.Lock()
	defer q.mu.Unlock()
	q.runningID = ""
	q.cancelRunning = nil

	if res != nil {
		op.Output = append([]string(nil), res.OutputLines...)
		op.Errors = append([]string(nil), res.ErrorLines...)
	}

	done := time.Now().UTC()
	switch {
	case op.CancelRequested:
		op.Status = StatusCancelled
		op.CompletedAt = &done
		op.LastMessage = "Cancelled"
		q.logger.Info("task cancelled", "task", op.TaskID, "operation", op.ID)
	case ctx.Err() != nil:
		// Shutdown, not a per-operation cancel: leave the work pending so
		// the next run resumes it.
		op.Status = StatusPending
		op.StartedAt = nil
		op.Output = nil
		op.Errors = nil
		op.LastMessage = "Queued"
	case err != nil:
		op.Status = StatusFailed
		op.CompletedAt = &done
		op.Errors = append(op.Errors, err.Error())
		op.LastMessage = err.Error()
		q.logger.Warn("task failed to start", "task", op.TaskID, "operation", op.ID, "error", err)
	case res.ExitCode == 0:
		op.Status = StatusSucceeded
		op.CompletedAt = &done
		op.LastMessage = lastMeaningfulLine(op.Output, op.Errors)
		if op.LastMessage == "" {
			op.LastMessage = "Completed"
		}
		q.logger.Info("task succeeded", "task", op.TaskID, "operation", op.ID)
	default:
		op.Status = StatusFailed
		op.CompletedAt = &done
		op.LastMessage = lastMeaningfulLine(op.Output, op.Errors)
		if op.LastMessage == "" {
			op.LastMessage = fmt.Sprintf("exited with code %d", res.ExitCode)
		}
		q.logger.Warn("task failed", "task", op.TaskID, "operation", op.ID, "exit", res.ExitCode)
	}

	q.refreshWaitingLocked()
	q.persistLocked()
	return true
}

func (q *Queue) newOperation(task *catalog.Task, parameters map[string]any) *Operation {
	return &Operation{
		ID:         ulid.Make().String(),
		TaskID:     task.ID,
		TaskName:   task.Name,
		Status:     StatusPending,
		EnqueuedAt: time.Now().UTC(),
		Parameters: parameters,
	}
}

func (q *Queue) findLocked(id string) *Operation {
	for _, op := range q.ops {
		if strings.EqualFold(op.ID, id) {
			return op
		}
	}
	return nil
}

func (q *Queue) nextPendingLocked() *Operation {
	for _, op := range q.ops {
		if op.Status == StatusPending {
			return op
		}
	}
	return nil
}

// hasLiveRunLocked reports whether a pending, running, or succeeded run of
// the task already exists. Failed and cancelled runs do not count: the
// guard did not complete, so it must be queued again.
func (q *Queue) hasLiveRunLocked(taskID string) bool {
	for _, op := range q.ops {
		if !strings.EqualFold(op.TaskID, taskID) {
			continue
		}
		switch op.Status {
		case StatusPending, StatusRunning, StatusSucceeded:
			return true
		}
	}
	return false
}

func (q *Queue) resetForRetryLocked(op *Operation) {
	op.Status = StatusPending
	op.StartedAt = nil
	op.CompletedAt = nil
	op.Output = nil
	op.Errors = nil
	op.CancelRequested = false
	op.LastMessage = ""
}

// refreshWaitingLocked recomputes status messages for pending operations so
// they reflect what they are waiting on.
func (q *Queue) refreshWaitingLocked() {
	runningName := ""
	for _, op := range q.ops {
		if op.Status == StatusRunning {
			runningName = op.TaskName
			break
		}
	}
	for _, op := range q.ops {
		if op.Status != StatusPending {
			continue
		}
		if runningName != "" {
			op.LastMessage = fmt.Sprintf("Waiting for '%s' to finish", runningName)
		} else {
			op.LastMessage = "Queued"
		}
	}
}

// persistLocked rewrites the full queue state. A failure leaves the queue
// operational in memory but flags it degraded.
func (q *Queue) persistLocked() {
	if err := q.store.SaveAll(q.ops); err != nil {
		q.degraded = true
		q.degradedErr = err
		q.logger.Warn("failed to persist queue state", "error", err)
		return
	}
	q.degraded = false
	q.degradedErr = nil
}

func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// lastMeaningfulLine picks the final status line from a script's output:
// the last non-empty line that is not part of a stack trace.
func lastMeaningfulLine(output, errors []string) string {
	lines := make([]string, 0, len(output)+len(errors))
	lines = append(lines, output...)
	lines = append(lines, errors...)
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "at ") || strings.HasPrefix(line, "+ ") {
			continue
		}
		return line
	}
	return ""
}
