package types

import "time"

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusRunning   TaskStatus = "running"   // task loop is active
	TaskStatusCompleted TaskStatus = "completed" // model finished successfully
	TaskStatusFailed    TaskStatus = "failed"    // unrecoverable failure or unsuccessful finish
	TaskStatusAborted   TaskStatus = "aborted"   // caller abort or budget exhaustion
)

// Terminal reports whether the status admits no further work.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusAborted:
		return true
	}
	return false
}

// ActionResult records one executed (or attempted) action. Results are
// appended to the task history and never mutated afterwards.
type ActionResult struct {
	Action   *Action       `json:"action"`
	Success  bool          `json:"success"`
	Error    *ActionError  `json:"error,omitempty"`
	Output   string        `json:"output,omitempty"`
	Page     *PageState    `json:"page,omitempty"`
	Duration time.Duration `json:"duration"`
	At       time.Time     `json:"at"`
}

// TaskResult summarizes a finished task.
type TaskResult struct {
	TaskID      string          `json:"task_id"`
	Instruction string          `json:"instruction"`
	Status      TaskStatus      `json:"status"`
	Reason      string          `json:"reason,omitempty"`
	Steps       int             `json:"steps"`
	Duration    time.Duration   `json:"duration"`
	History     []*ActionResult `json:"history,omitempty"`
}
