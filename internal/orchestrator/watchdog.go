package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/aide/internal/notify"
	"github.com/vinayprograms/aide/internal/task"
)

// Watchdog defaults.
const (
	DefaultInterval       = 10 * time.Minute
	DefaultStuckThreshold = 15 * time.Minute
)

// Watchdog reconciles the active task set on a fixed period: sub-tasks
// running past the stuck threshold are marked stuck and immediately retried
// or escalated, task status is rolled up, and finished tasks leave the
// active set. One human-readable report per pass goes to the notifier,
// skipped entirely when nothing changed.
type Watchdog struct {
	orch     *Orchestrator
	notifier notify.Notifier
	logger   *logging.Logger

	Interval       time.Duration
	StuckThreshold time.Duration

	now func() time.Time
}

// NewWatchdog creates a watchdog over the orchestrator's task set.
func NewWatchdog(orch *Orchestrator, notifier notify.Notifier) *Watchdog {
	return &Watchdog{
		orch:           orch,
		notifier:       notifier,
		logger:         logging.New().WithComponent("watchdog"),
		Interval:       DefaultInterval,
		StuckThreshold: DefaultStuckThreshold,
		now:            time.Now,
	}
}

// Run executes reconciliation passes until ctx is done.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs one reconciliation pass over the tasks registered at the
// start of the pass. It returns the report and whether anything changed;
// with no changes there is no report and no notification.
func (w *Watchdog) RunOnce(ctx context.Context) (string, bool) {
	tasks := w.orch.Registry().Active()
	var lines []string

	w.orch.stateMu.Lock()
	for _, t := range tasks {
		lines = append(lines, w.reconcileTask(t)...)
	}
	w.orch.stateMu.Unlock()

	// Finished tasks leave the active set after the pass that saw them.
	for _, t := range tasks {
		if t.Finished() {
			w.orch.Registry().Remove(t.ID)
		}
	}

	if len(lines) == 0 {
		return "", false
	}

	report := fmt.Sprintf("watchdog pass at %s:\n%s",
		w.now().Format(time.RFC3339), strings.Join(lines, "\n"))
	if err := w.notifier.Notify(ctx, "task watchdog report", report); err != nil {
		w.logger.Warn("failed to deliver watchdog report", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return report, true
}

// reconcileTask applies stuck detection and status rollup to one task and
// returns the report lines for what changed. Caller holds the state lock.
func (w *Watchdog) reconcileTask(t *task.Task) []string {
	var lines []string

	if !t.Finished() {
		for _, st := range t.SubTasks {
			if st.Status != task.StatusRunning {
				continue
			}
			if w.now().Sub(st.StartedAt) < w.StuckThreshold {
				continue
			}
			st.Status = task.StatusStuck
			w.logger.Warn("sub-task stuck", map[string]interface{}{
				"task":    t.ID,
				"subtask": st.ID,
				"running": w.now().Sub(st.StartedAt).String(),
			})
			if st.Retries < st.MaxRetries {
				st.Retries++
				st.Status = task.StatusQueued
				st.StartedAt = time.Time{}
				st.ActualOutput = ""
				lines = append(lines, fmt.Sprintf("- %q: sub-task %q stuck, requeued (retry %d/%d)",
					t.Title, st.Title, st.Retries, st.MaxRetries))
			} else {
				st.Status = task.StatusFailed
				st.CompletedAt = w.now()
				if st.Validation == nil {
					st.Validation = &task.Validation{Reason: "stuck past threshold with retries exhausted"}
				}
				lines = append(lines, fmt.Sprintf("- %q: sub-task %q stuck, retries exhausted, failed",
					t.Title, st.Title))
			}
		}

		status := task.Reduce(t.Status, t.SubTasks)
		if status != t.Status {
			w.orch.applyTaskStatus(t, status)
			lines = append(lines, fmt.Sprintf("- %q: task %s", t.Title, t.Status))
		}
	}

	if t.Finished() {
		lines = append(lines, fmt.Sprintf("- %q: removed from active set (%s)", t.Title, t.Status))
	}
	return lines
}
