package supervisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chrysochos/society/pkg/models"
)

// DeadlockError reports a scheduling deadlock: no task is ready, none is
// in flight, and unfinished work remains. Circular dependencies surface
// here rather than hanging the scheduler.
type DeadlockError struct {
	// Unfinished lists the workers whose tasks can never become ready.
	Unfinished []string
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("scheduling deadlock: no runnable tasks, unfinished workers: %s",
		strings.Join(e.Unfinished, ", "))
}

// runWaves dispatches the task graph in dependency-respecting waves. Each
// wave is the full ready set, dispatched concurrently; the next wave starts
// only when the previous one has fully settled.
func (s *Supervisor) runWaves(ctx context.Context) error {
	wave := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.graph.AllTerminal() {
			return nil
		}

		ready := s.graph.Ready()
		if len(ready) == 0 {
			// Nothing ready, nothing in flight (waves settle before the
			// next iteration), work remaining: the graph is wedged.
			return &DeadlockError{Unfinished: s.graph.Unfinished()}
		}

		wave++
		if err := s.cfg.Fabric.Heartbeat(supervisorID); err != nil {
			s.logger.Log("[supervisor] heartbeat: %v", err)
		}
		s.logger.Log("[supervisor] wave %d: dispatching %d tasks", wave, len(ready))
		s.emit(Event{Type: EventWaveStarted, Wave: wave, Message: fmt.Sprintf("%d tasks", len(ready))})

		var wg sync.WaitGroup
		for _, node := range ready {
			wg.Add(1)
			go func(node *models.TaskNode) {
				defer wg.Done()
				s.dispatchTask(ctx, node, wave)
			}(node)
		}
		wg.Wait()

		s.refreshProgress()
		s.persistNodes()

		if err := s.settleFailures(ctx); err != nil {
			return err
		}
	}
}

// dispatchTask sends one task to its worker and blocks until the worker
// replies, the timeout fires, or the context ends. Retries happen inline
// up to the configured budget.
func (s *Supervisor) dispatchTask(ctx context.Context, node *models.TaskNode, wave int) {
	for {
		now := time.Now().UTC()
		node.Status = models.TaskStatusInProgress
		node.DispatchedAt = &now
		s.emit(Event{Type: EventTaskDispatched, WorkerID: node.WorkerID, Wave: wave, Message: node.Task})
		s.logger.Log("[supervisor] wave %d: %s <- %s", wave, node.WorkerID, node.Task)

		result, err := s.requestWithNudge(ctx, node)

		done := time.Now().UTC()
		node.CompletedAt = &done

		switch {
		case err != nil:
			node.Status = models.TaskStatusFailed
			node.Error = err.Error()
		case result.Status == models.TaskStatusCompleted:
			node.Status = models.TaskStatusCompleted
			node.Result = result.Result
			node.Error = ""
		default:
			node.Status = models.TaskStatusFailed
			node.Result = result.Result
			node.Error = result.Error
			if node.Error == "" {
				node.Error = fmt.Sprintf("worker reported status %s", result.Status)
			}
		}

		if node.Status == models.TaskStatusCompleted {
			s.emit(Event{Type: EventTaskCompleted, WorkerID: node.WorkerID, Wave: wave})
			s.logger.Log("[supervisor] %s completed", node.WorkerID)
			return
		}

		if node.Retries < s.cfg.MaxTaskRetries && ctx.Err() == nil {
			node.Retries++
			s.logger.Log("[supervisor] %s failed (%s), retry %d/%d",
				node.WorkerID, node.Error, node.Retries, s.cfg.MaxTaskRetries)
			continue
		}

		s.emit(Event{Type: EventTaskFailed, WorkerID: node.WorkerID, Wave: wave, Error: errors.New(node.Error)})
		s.logger.Log("[supervisor] %s failed: %s", node.WorkerID, node.Error)
		return
	}
}

// requestWithNudge issues the fabric request and, if the worker is silent
// past the stuck threshold, sends it a single guidance message.
func (s *Supervisor) requestWithNudge(ctx context.Context, node *models.TaskNode) (models.TaskResult, error) {
	nudgeCtx, stopNudge := context.WithCancel(ctx)
	defer stopNudge()

	go func() {
		select {
		case <-nudgeCtx.Done():
			return
		case <-time.After(s.cfg.StuckThreshold):
		}
		s.emit(Event{Type: EventTaskStuck, WorkerID: node.WorkerID, Message: node.Task})
		s.logger.Log("[supervisor] %s stuck for %v, nudging", node.WorkerID, s.cfg.StuckThreshold)
		guidance := fmt.Sprintf("still working on %q? report progress or break the task down", node.Task)
		if err := s.sender.Send(node.WorkerID, models.TypeMessage, guidance); err != nil {
			s.logger.Log("[supervisor] nudge to %s failed: %v", node.WorkerID, err)
		}
	}()

	assignment := models.TaskAssignment{Task: node.Task, Context: node.Context}
	return s.sender.Request(ctx, node.WorkerID, assignment, s.cfg.TaskTimeout)
}

// settleFailures resolves the fate of work blocked behind failed tasks.
// Each failed task with pending dependents is escalated to the human:
// "continue" fails the dependents and moves on, "abort" fails the purpose.
// The decision is always explicit, either from the human or from the
// configured timeout policy.
func (s *Supervisor) settleFailures(ctx context.Context) error {
	for _, node := range s.graph.Nodes() {
		if node.Status != models.TaskStatusFailed {
			continue
		}
		blocked := s.pendingDependents(node.WorkerID)
		if len(blocked) == 0 {
			continue
		}

		decision, err := s.escalateFailure(ctx, node, blocked)
		if err != nil {
			return fmt.Errorf("task for %s failed and escalation was not resolved: %w", node.WorkerID, err)
		}
		if decision != "continue" {
			return fmt.Errorf("task for %s failed; human chose %q", node.WorkerID, decision)
		}
		s.failDependents(node.WorkerID)
	}
	return nil
}

// pendingDependents returns the direct dependents of workerID whose tasks
// are still pending.
func (s *Supervisor) pendingDependents(workerID string) []string {
	var blocked []string
	for _, id := range s.graph.Dependents(workerID) {
		if dep := s.graph.Node(id); dep != nil && dep.Status == models.TaskStatusPending {
			blocked = append(blocked, id)
		}
	}
	return blocked
}

// escalateFailure asks the human what to do about a failed task with
// blocked dependents.
func (s *Supervisor) escalateFailure(ctx context.Context, node *models.TaskNode, blocked []string) (string, error) {
	req := &models.EscalationRequest{
		ID:       uuid.New().String(),
		Priority: models.PriorityHigh,
		Question: fmt.Sprintf("task for %s failed (%s); %s are blocked on it. Continue without them or abort?",
			node.WorkerID, node.Error, strings.Join(blocked, ", ")),
		Options:   []string{"continue", "abort"},
		Timestamp: time.Now().UTC(),
	}
	s.persistEscalation(req)
	s.emit(Event{Type: EventEscalationRaised, WorkerID: node.WorkerID, Message: req.Question})

	decision, err := s.escalation.Raise(ctx, req)
	if err != nil {
		return "", err
	}
	s.persistEscalation(req)
	s.emit(Event{Type: EventEscalationResolved, WorkerID: node.WorkerID, Message: decision})
	return decision, nil
}

// failDependents marks every task transitively blocked by workerID as
// failed so the graph can still reach a terminal state.
func (s *Supervisor) failDependents(workerID string) {
	queue := []string{workerID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, id := range s.graph.Dependents(current) {
			node := s.graph.Node(id)
			if node == nil || node.Status != models.TaskStatusPending {
				continue
			}
			now := time.Now().UTC()
			node.Status = models.TaskStatusFailed
			node.Error = fmt.Sprintf("dependency %s failed", current)
			node.CompletedAt = &now
			s.emit(Event{Type: EventTaskFailed, WorkerID: id, Error: errors.New(node.Error)})
			s.logger.Log("[supervisor] %s failed: %s", id, node.Error)
			queue = append(queue, id)
		}
	}
	s.persistNodes()
}
