package exec

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/chrysochos/society/pkg/models"
)

func TestScriptedReplaysCannedResponse(t *testing.T) {
	e := NewScripted().Script("deploy", ScriptedResponse{
		Result: "deployed",
		Status: models.TaskStatusCompleted,
	})

	result, status, err := e.RunTask(context.Background(), "deploy", "")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if status != models.TaskStatusCompleted || result != "deployed" {
		t.Fatalf("got %q/%s", result, status)
	}
	if calls := e.Calls(); len(calls) != 1 || calls[0] != "deploy" {
		t.Errorf("calls = %v", calls)
	}
}

func TestScriptedEchoesUnknownTasks(t *testing.T) {
	e := NewScripted()
	result, status, err := e.RunTask(context.Background(), "tidy up", "")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if status != models.TaskStatusCompleted {
		t.Fatalf("status = %s", status)
	}
	if !strings.Contains(result, "tidy up") {
		t.Errorf("result = %q, want echo of the task", result)
	}
}

func TestScriptedHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, status, err := NewScripted().RunTask(ctx, "anything", "")
	if err == nil {
		t.Fatal("expected context error")
	}
	if status != models.TaskStatusFailed {
		t.Errorf("status = %s, want failed", status)
	}
}

func TestCommandExecutorCompletesOnZeroExit(t *testing.T) {
	e := NewCommand(`printf 'did: %s' "$SOCIETY_TASK"`)

	result, status, err := e.RunTask(context.Background(), "sweep", "floor")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if status != models.TaskStatusCompleted {
		t.Fatalf("status = %s", status)
	}
	if result != "did: sweep" {
		t.Errorf("result = %q", result)
	}
}

func TestCommandExecutorFailsOnNonZeroExit(t *testing.T) {
	e := NewCommand(`echo boom >&2; exit 3`)

	_, status, err := e.RunTask(context.Background(), "sweep", "")
	if status != models.TaskStatusFailed {
		t.Fatalf("status = %s, want failed", status)
	}
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("err = %v, want CommandError", err)
	}
	if !strings.Contains(cmdErr.Detail, "boom") {
		t.Errorf("detail = %q, want stderr content", cmdErr.Detail)
	}
}
