package exec

import (
	"bytes"
	"context"
	"os"
	osexec "os/exec"
	"strings"

	"github.com/chrysochos/society/pkg/models"
)

// CommandExecutor runs each task through a shell command. The task and its
// context are passed in the environment as SOCIETY_TASK and SOCIETY_CONTEXT;
// a zero exit status completes the task, anything else fails it. Stdout is
// the task result.
type CommandExecutor struct {
	// Command is the shell command line, run via sh -c.
	Command string
}

// NewCommand creates a CommandExecutor for the given command line.
func NewCommand(command string) *CommandExecutor {
	return &CommandExecutor{Command: command}
}

// RunTask implements WorkerExecutor.
func (e *CommandExecutor) RunTask(ctx context.Context, task, taskContext string) (string, models.TaskStatus, error) {
	cmd := osexec.CommandContext(ctx, "sh", "-c", e.Command)
	cmd.Env = append(os.Environ(),
		"SOCIETY_TASK="+task,
		"SOCIETY_CONTEXT="+taskContext,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := strings.TrimSpace(stdout.String())
	if err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return result, models.TaskStatusFailed, &CommandError{Detail: detail}
	}
	return result, models.TaskStatusCompleted, nil
}

// CommandError reports a failed task command with its stderr output.
type CommandError struct {
	Detail string
}

func (e *CommandError) Error() string {
	return "task command failed: " + e.Detail
}
