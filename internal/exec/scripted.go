package exec

import (
	"context"
	"fmt"
	"sync"

	"github.com/chrysochos/society/pkg/models"
)

// ScriptedExecutor replays canned responses keyed by task description,
// falling back to echoing the task as a completed result. It backs the
// `society run` dry-run mode and tests.
type ScriptedExecutor struct {
	mu        sync.Mutex
	responses map[string]ScriptedResponse
	calls     []string
}

// ScriptedResponse is one canned answer.
type ScriptedResponse struct {
	Result string
	Status models.TaskStatus
	Err    error
}

// NewScripted creates a ScriptedExecutor with no canned responses.
func NewScripted() *ScriptedExecutor {
	return &ScriptedExecutor{responses: make(map[string]ScriptedResponse)}
}

// Script registers a canned response for an exact task description.
func (e *ScriptedExecutor) Script(task string, resp ScriptedResponse) *ScriptedExecutor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.responses[task] = resp
	return e
}

// RunTask implements WorkerExecutor.
func (e *ScriptedExecutor) RunTask(ctx context.Context, task, taskContext string) (string, models.TaskStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", models.TaskStatusFailed, err
	}

	e.mu.Lock()
	e.calls = append(e.calls, task)
	resp, ok := e.responses[task]
	e.mu.Unlock()

	if !ok {
		return fmt.Sprintf("completed: %s", task), models.TaskStatusCompleted, nil
	}
	if resp.Status == "" {
		resp.Status = models.TaskStatusCompleted
	}
	return resp.Result, resp.Status, resp.Err
}

// Calls returns the task descriptions executed so far, in order.
func (e *ScriptedExecutor) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.calls))
	copy(out, e.calls)
	return out
}
