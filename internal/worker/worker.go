// Package worker implements the autonomous worker actor: a sequential
// consumer of its own mailbox that executes delegated tasks through an
// opaque executor capability and reports results back over the fabric.
package worker

import (
	"context"
	"encoding/json"

	"github.com/chrysochos/society/internal/exec"
	"github.com/chrysochos/society/internal/fabric"
	"github.com/chrysochos/society/internal/mailbox"
	"github.com/chrysochos/society/pkg/models"
)

// Worker is one agent in the pool. Each worker owns exactly one mailbox
// and processes it sequentially.
type Worker struct {
	identity models.AgentIdentity
	mb       *mailbox.Mailbox
	sender   *fabric.Sender
	executor exec.WorkerExecutor
	logf     func(format string, args ...interface{})
}

// New creates a worker over an already-registered mailbox and a sender
// handle bound to the worker's own identity.
func New(identity models.AgentIdentity, mb *mailbox.Mailbox, sender *fabric.Sender, executor exec.WorkerExecutor) *Worker {
	return &Worker{
		identity: identity,
		mb:       mb,
		sender:   sender,
		executor: executor,
		logf:     func(string, ...interface{}) {},
	}
}

// SetLogf sets the debug logging function.
func (w *Worker) SetLogf(fn func(format string, args ...interface{})) {
	if fn != nil {
		w.logf = fn
	}
}

// ID returns the worker's agent ID.
func (w *Worker) ID() string {
	return w.identity.ID
}

// Run consumes the mailbox until the context is cancelled or a shutdown
// message arrives. Shutdown only stops the consume loop: a task already
// being executed runs under the parent context, finishes, and replies.
func (w *Worker) Run(ctx context.Context) error {
	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	w.mb.OnShutdown(stopLoop)

	for {
		msg, err := w.mb.Next(loopCtx)
		if err != nil {
			if loopCtx.Err() != nil {
				return nil
			}
			return err
		}
		w.handle(ctx, msg)
	}
}

// handle processes one queued message.
func (w *Worker) handle(ctx context.Context, msg models.Message) {
	switch msg.Type {
	case models.TypeTaskAssign, models.TypeQuestion:
		w.execute(ctx, msg)
	default:
		// Guidance and peer chatter carry no reply obligation.
		w.logf("[worker %s] received %s from %s: %s", w.identity.ID, msg.Type, msg.From, msg.Content)
	}
}

// execute runs the delegated task and replies on the message's correlation.
func (w *Worker) execute(ctx context.Context, msg models.Message) {
	assignment := decodeAssignment(msg)
	w.logf("[worker %s] executing task: %s", w.identity.ID, assignment.Task)

	result, status, err := w.executor.RunTask(ctx, assignment.Task, assignment.Context)
	taskResult := models.TaskResult{Status: status, Result: result}
	if err != nil {
		taskResult.Status = models.TaskStatusFailed
		taskResult.Error = err.Error()
	}
	if !taskResult.Status.Terminal() {
		taskResult.Status = models.TaskStatusCompleted
	}

	if msg.CorrelationID == "" {
		// Uncorrelated assignment: report as a status update instead.
		if nerr := w.sender.Notify(msg.From, result); nerr != nil {
			w.logf("[worker %s] notify failed: %v", w.identity.ID, nerr)
		}
		return
	}
	if rerr := w.sender.Respond(msg, taskResult); rerr != nil {
		w.logf("[worker %s] reply failed: %v", w.identity.ID, rerr)
	}
}

// decodeAssignment parses a task payload, tolerating unstructured content.
func decodeAssignment(msg models.Message) models.TaskAssignment {
	var assignment models.TaskAssignment
	if err := json.Unmarshal([]byte(msg.Content), &assignment); err != nil || assignment.Task == "" {
		return models.TaskAssignment{Task: msg.Content}
	}
	return assignment
}
