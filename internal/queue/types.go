// Package queue sequences long-running maintenance jobs through a durable,
// single-worker FIFO queue with retry, cancellation, and guard dependencies.
// Maintenance jobs are assumed to contend for the same OS resources, so the
// queue is intentionally single-concurrency. Every state transition rewrites
// the full operation list to the store so a process restart can resume
// pending work.
package queue

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a queued operation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions can occur (except Failed,
// which an explicit Retry moves back to Pending).
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

var (
	// ErrUnknownTask is returned when an enqueued task id is not in the
	// catalog.
	ErrUnknownTask = errors.New("unknown task")
	// ErrNotFound is returned when an operation id does not exist.
	ErrNotFound = errors.New("operation not found")
	// ErrNotFailed is returned when Retry targets an operation that is not
	// in the Failed state.
	ErrNotFailed = errors.New("operation is not failed")
	// ErrAlreadyFinished is returned when Cancel targets a terminal
	// operation.
	ErrAlreadyFinished = errors.New("operation already finished")
)

// Operation is one queued run of a maintenance task. It is owned exclusively
// by the queue: mutated only by the worker and by explicit Cancel/Retry
// calls.
type Operation struct {
	ID              string         `json:"id"`
	TaskID          string         `json:"taskId"`
	Status          Status         `json:"status"`
	Attempts        int            `json:"attemptCount"`
	EnqueuedAt      time.Time      `json:"enqueuedAt"`
	StartedAt       *time.Time     `json:"startedAt,omitempty"`
	CompletedAt     *time.Time     `json:"completedAt,omitempty"`
	LastMessage     string         `json:"lastMessage,omitempty"`
	Output          []string       `json:"output,omitempty"`
	Errors          []string       `json:"errors,omitempty"`
	CancelRequested bool           `json:"isCancellationRequested"`
	Parameters      map[string]any `json:"parameters,omitempty"`

	// TaskName is resolved from the catalog for display; it is not part of
	// the persisted record.
	TaskName string `json:"-"`
}

// Clone returns a deep copy safe to hand to callers.
func (o *Operation) Clone() *Operation {
	c := *o
	if o.StartedAt != nil {
		t := *o.StartedAt
		c.StartedAt = &t
	}
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		c.CompletedAt = &t
	}
	if o.Output != nil {
		c.Output = append([]string(nil), o.Output...)
	}
	if o.Errors != nil {
		c.Errors = append([]string(nil), o.Errors...)
	}
	if o.Parameters != nil {
		c.Parameters = make(map[string]any, len(o.Parameters))
		for k, v := range o.Parameters {
			c.Parameters[k] = v
		}
	}
	return &c
}

// Store persists the full operation list after every state transition.
// Implementations replace the stored list wholesale; the queue's in-memory
// list is the working copy and the store is the crash-recovery source.
type Store interface {
	LoadAll() ([]*Operation, error)
	SaveAll(ops []*Operation) error
}

// GuardPolicy decides whether a task must be preceded by a guard task (one
// that must reach a non-failed state before riskier work runs), and which
// task that is.
type GuardPolicy interface {
	GuardFor(taskID string) (guardTaskID string, required bool)
}

// GuardPolicyFunc adapts a function to GuardPolicy.
type GuardPolicyFunc func(taskID string) (string, bool)

// GuardFor calls f.
func (f GuardPolicyFunc) GuardFor(taskID string) (string, bool) {
	return f(taskID)
}

// NoGuard is a policy that never requires a guard task.
var NoGuard = GuardPolicyFunc(func(string) (string, bool) { return "", false })
