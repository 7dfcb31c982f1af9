package models

import "time"

// TaskStatus represents the current state of a task node.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not been dispatched.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInProgress indicates the task has been dispatched to its worker.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCompleted indicates the worker reported success.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the worker reported failure or never replied.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status admits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// TaskNode is one node in a purpose's dependency graph: a task assigned to
// a single worker. Nodes are created by the planning step, mutated only by
// the supervisor, and retained for the life of the purpose.
type TaskNode struct {
	// WorkerID is the agent the task is assigned to. Also the node's key
	// in the dependency graph.
	WorkerID string `json:"workerId"`
	// Task is the opaque task description handed to the worker.
	Task string `json:"task"`
	// Context is additional opaque context for the worker.
	Context string `json:"context,omitempty"`
	// Dependencies lists worker IDs whose tasks must complete first.
	Dependencies []string `json:"dependencies,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Result is the worker's reported output, if any.
	Result string `json:"result,omitempty"`
	// Error describes the failure when Status is failed.
	Error string `json:"error,omitempty"`
	// Retries is the number of re-dispatches already made.
	Retries int `json:"retries,omitempty"`
	// DispatchedAt is when the task was last dispatched.
	DispatchedAt *time.Time `json:"dispatchedAt,omitempty"`
	// CompletedAt is when the task reached a terminal status.
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
