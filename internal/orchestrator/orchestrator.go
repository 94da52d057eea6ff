// Package orchestrator decomposes goals into ordered sub-tasks, routes each
// to a role-specialized worker, validates its output, and recovers stuck or
// failed sub-tasks through a periodic watchdog.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/aide/internal/task"
)

// Orchestrator owns the active task set and the sub-task lifecycle. All
// status mutations happen under one state lock shared with the watchdog, so
// a reconciliation pass never observes a half-applied transition.
type Orchestrator struct {
	registry   *task.Registry
	decomposer *Decomposer
	validator  *Validator
	workers    map[task.Role]Worker
	logger     *logging.Logger
	now        func() time.Time

	stateMu sync.Mutex
}

// New creates an orchestrator.
func New(registry *task.Registry, decomposer *Decomposer, validator *Validator) *Orchestrator {
	return &Orchestrator{
		registry:   registry,
		decomposer: decomposer,
		validator:  validator,
		workers:    make(map[task.Role]Worker),
		logger:     logging.New().WithComponent("orchestrator"),
		now:        time.Now,
	}
}

// RegisterWorker routes the worker's role to it. A later registration for
// the same role replaces the earlier one.
func (o *Orchestrator) RegisterWorker(w Worker) {
	o.workers[w.Role()] = w
}

// Registry exposes the active task set (the watchdog reconciles it).
func (o *Orchestrator) Registry() *task.Registry { return o.registry }

// CreateTask decomposes a goal and registers the resulting task. A malformed
// plan fails the whole task immediately; nothing is registered and the error
// carries the concrete reason for the user.
func (o *Orchestrator) CreateTask(ctx context.Context, title, description string, priority int) (*task.Task, error) {
	t := task.New(title, description, priority)
	if err := o.decomposer.Decompose(ctx, t); err != nil {
		t.Status = task.StatusFailed
		t.Result = err.Error()
		o.logger.Error("task decomposition failed", map[string]interface{}{
			"task":  t.ID,
			"error": err.Error(),
		})
		return t, err
	}
	o.registry.Register(t)
	return t, nil
}

// RunTask drives a task's sub-tasks in order until none can start: each
// runnable sub-task is dispatched to its role's worker, its output judged,
// and the verdict applied (done, requeue with retries, or failed).
func (o *Orchestrator) RunTask(ctx context.Context, t *task.Task) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		o.stateMu.Lock()
		st := t.NextRunnable()
		if st == nil {
			status := task.Reduce(t.Status, t.SubTasks)
			o.applyTaskStatus(t, status)
			o.stateMu.Unlock()
			return nil
		}
		st.Status = task.StatusRunning
		st.StartedAt = o.now()
		worker, ok := o.workers[st.Role]
		o.stateMu.Unlock()

		if !ok {
			o.stateMu.Lock()
			st.Status = task.StatusFailed
			st.Validation = &task.Validation{Reason: fmt.Sprintf("no worker registered for role %q", st.Role)}
			o.applyTaskStatus(t, task.Reduce(t.Status, t.SubTasks))
			o.stateMu.Unlock()
			return fmt.Errorf("no worker registered for role %q", st.Role)
		}

		output, err := worker.Execute(ctx, st)
		if err != nil {
			o.logger.Warn("worker execution failed", map[string]interface{}{
				"subtask": st.ID,
				"role":    string(st.Role),
				"error":   err.Error(),
			})
			output = "" // empty output fails validation closed
		}

		o.stateMu.Lock()
		if st.Status != task.StatusRunning {
			// The watchdog already requeued or failed this sub-task as stuck;
			// its late result is dropped.
			o.stateMu.Unlock()
			continue
		}
		st.ActualOutput = output
		st.Status = task.StatusValidating
		o.stateMu.Unlock()

		verdict := o.validator.Validate(ctx, st)

		o.stateMu.Lock()
		o.applyVerdict(st, verdict)
		o.applyTaskStatus(t, task.Reduce(t.Status, t.SubTasks))
		o.stateMu.Unlock()
	}
}

// applyVerdict moves a validating sub-task to done, back to queued (retry),
// or to failed when the retry budget is spent. Caller holds stateMu.
func (o *Orchestrator) applyVerdict(st *task.SubTask, verdict task.Validation) {
	v := verdict
	st.Validation = &v
	if verdict.Passed {
		st.Status = task.StatusDone
		st.CompletedAt = o.now()
		return
	}
	if st.Retries < st.MaxRetries {
		st.Retries++
		st.Status = task.StatusQueued
		st.ActualOutput = ""
		o.logger.Info("sub-task requeued after failing validation", map[string]interface{}{
			"subtask": st.ID,
			"retries": st.Retries,
			"reason":  verdict.Reason,
		})
		return
	}
	st.Status = task.StatusFailed
	st.CompletedAt = o.now()
}

// applyTaskStatus records a reduced task status. Caller holds stateMu.
func (o *Orchestrator) applyTaskStatus(t *task.Task, status string) {
	if status == t.Status {
		return
	}
	t.Status = status
	if t.Finished() {
		t.CompletedAt = o.now()
		if t.Status == task.StatusDone {
			if n := len(t.SubTasks); n > 0 {
				t.Result = t.SubTasks[n-1].ActualOutput
			}
		} else if t.Result == "" {
			t.Result = firstFailureReason(t)
		}
	}
}

// firstFailureReason digs out a concrete reason for a failed task.
func firstFailureReason(t *task.Task) string {
	for _, st := range t.SubTasks {
		if st.Status == task.StatusFailed {
			if st.Validation != nil && st.Validation.Reason != "" {
				return fmt.Sprintf("sub-task %q failed: %s", st.Title, st.Validation.Reason)
			}
			return fmt.Sprintf("sub-task %q failed", st.Title)
		}
	}
	return "task failed"
}
