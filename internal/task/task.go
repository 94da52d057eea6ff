// Package task defines the task and sub-task model for decomposed goals.
package task

import (
	"time"

	"github.com/google/uuid"
)

// Status values for tasks and sub-tasks.
const (
	StatusQueued     = "queued"
	StatusRunning    = "running"
	StatusValidating = "validating"
	StatusDone       = "done"
	StatusFailed     = "failed"
	StatusStuck      = "stuck"
)

// Role identifies a specialized worker a sub-task is routed to.
type Role string

const (
	RolePlanner     Role = "planner" // decomposition and validation authority
	RoleImplementer Role = "implementer"
	RoleReviewer    Role = "reviewer"
	RoleResearcher  Role = "researcher"
	RoleExtractor   Role = "extractor"
)

// KnownRoles lists every role a decomposed sub-task may be assigned to.
var KnownRoles = []Role{RolePlanner, RoleImplementer, RoleReviewer, RoleResearcher, RoleExtractor}

// ValidRole reports whether r is one of the known worker roles.
func ValidRole(r Role) bool {
	for _, known := range KnownRoles {
		if r == known {
			return true
		}
	}
	return false
}

// Validation is the judge's verdict on a sub-task's actual output.
type Validation struct {
	Passed     bool    `json:"passed"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// SubTask is one unit of a decomposed goal. Sub-tasks of a task are ordered;
// a sub-task never starts before its predecessor is done.
type SubTask struct {
	ID             string      `json:"id"`
	ParentTaskID   string      `json:"parent_task_id"`
	Title          string      `json:"title"`
	Role           Role        `json:"role"`
	Priority       int         `json:"priority"`
	Status         string      `json:"status"`
	ExpectedInput  string      `json:"expected_input,omitempty"`
	ExpectedOutput string      `json:"expected_output"`
	ActualOutput   string      `json:"actual_output,omitempty"`
	Validation     *Validation `json:"validation,omitempty"`
	StartedAt      time.Time   `json:"started_at,omitempty"`
	CompletedAt    time.Time   `json:"completed_at,omitempty"`
	Retries        int         `json:"retries"`
	MaxRetries     int         `json:"max_retries"`
}

// Task is a decomposed goal. Once sub-tasks exist its status is always
// derived from them via Reduce, never set independently.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    int        `json:"priority"`
	Status      string     `json:"status"`
	SubTasks    []*SubTask `json:"subtasks"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt time.Time  `json:"completed_at,omitempty"`
	Result      string     `json:"result,omitempty"`
}

// New creates a task with no sub-tasks yet.
func New(title, description string, priority int) *Task {
	return &Task{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		Priority:    priority,
		Status:      StatusQueued,
		CreatedAt:   time.Now(),
	}
}

// NewSubTask creates a queued sub-task belonging to parent.
func (t *Task) NewSubTask(title string, role Role, expectedInput, expectedOutput string, maxRetries int) *SubTask {
	st := &SubTask{
		ID:             uuid.New().String(),
		ParentTaskID:   t.ID,
		Title:          title,
		Role:           role,
		Priority:       t.Priority,
		Status:         StatusQueued,
		ExpectedInput:  expectedInput,
		ExpectedOutput: expectedOutput,
		MaxRetries:     maxRetries,
	}
	t.SubTasks = append(t.SubTasks, st)
	return st
}

// Finished reports whether the task reached a terminal status.
func (t *Task) Finished() bool {
	return t.Status == StatusDone || t.Status == StatusFailed
}

// NextRunnable returns the first queued sub-task whose predecessors are all
// done, or nil when nothing can start. Sub-tasks are strictly sequential.
func (t *Task) NextRunnable() *SubTask {
	for _, st := range t.SubTasks {
		switch st.Status {
		case StatusDone:
			continue
		case StatusQueued:
			return st
		default:
			// predecessor still in flight (running/validating/stuck) or failed
			return nil
		}
	}
	return nil
}

// Reduce computes a task status from its sub-tasks: all done means done, any
// failed means failed, otherwise the current status stands. Pure function so
// the watchdog is the single place that applies it.
func Reduce(current string, subtasks []*SubTask) string {
	if len(subtasks) == 0 {
		return current
	}
	allDone := true
	for _, st := range subtasks {
		if st.Status == StatusFailed {
			return StatusFailed
		}
		if st.Status != StatusDone {
			allDone = false
		}
	}
	if allDone {
		return StatusDone
	}
	return current
}
