// Package exec defines the opaque task-execution capability consumed by
// the supervisor and by worker actors. The capability hides whatever
// actually performs the work (a language model, a script, a human); the
// coordination substrate only sees task in, result out.
package exec

import (
	"context"

	"github.com/chrysochos/society/pkg/models"
)

// WorkerExecutor turns a task description into a result. Implementations
// are distinct strategies (worker behavior vs supervisor planning behavior)
// composed into the scheduler rather than inherited from a shared base.
type WorkerExecutor interface {
	// RunTask executes one task and reports its terminal status.
	// A non-nil error means the capability itself failed; the task is
	// treated as failed in that case too.
	RunTask(ctx context.Context, task, taskContext string) (result string, status models.TaskStatus, err error)
}

// ExecutorFunc adapts a function to the WorkerExecutor interface.
type ExecutorFunc func(ctx context.Context, task, taskContext string) (string, models.TaskStatus, error)

// RunTask implements WorkerExecutor.
func (f ExecutorFunc) RunTask(ctx context.Context, task, taskContext string) (string, models.TaskStatus, error) {
	return f(ctx, task, taskContext)
}
