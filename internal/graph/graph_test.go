package graph

import (
	"testing"

	"github.com/chrysochos/society/pkg/models"
)

func node(worker string, deps ...string) *models.TaskNode {
	return &models.TaskNode{
		WorkerID:     worker,
		Task:         "task for " + worker,
		Dependencies: deps,
		Status:       models.TaskStatusPending,
	}
}

func TestBuildRejectsUnknownDependency(t *testing.T) {
	g := New()
	err := g.Build([]*models.TaskNode{node("a", "ghost")})
	if err == nil {
		t.Fatal("expected error for unknown dependency")
	}
}

func TestBuildRejectsDuplicateWorker(t *testing.T) {
	g := New()
	err := g.Build([]*models.TaskNode{node("a"), node("a")})
	if err == nil {
		t.Fatal("expected error for duplicate worker")
	}
}

func TestReadyRespectsDependencies(t *testing.T) {
	g := New()
	c := node("c", "a", "b")
	if err := g.Build([]*models.TaskNode{node("a"), node("b"), c}); err != nil {
		t.Fatalf("build: %v", err)
	}

	ready := g.Ready()
	if len(ready) != 2 {
		t.Fatalf("expected wave of 2, got %d", len(ready))
	}
	for _, n := range ready {
		if n.WorkerID == "c" {
			t.Fatal("c dispatched before its dependencies completed")
		}
	}

	// Complete only a: c is still blocked.
	g.Node("a").Status = models.TaskStatusCompleted
	g.Node("b").Status = models.TaskStatusInProgress
	if len(g.Ready()) != 0 {
		t.Fatal("c became ready with b still in progress")
	}

	g.Node("b").Status = models.TaskStatusCompleted
	ready = g.Ready()
	if len(ready) != 1 || ready[0].WorkerID != "c" {
		t.Fatalf("expected only c ready, got %v", ready)
	}
}

func TestHasCycle(t *testing.T) {
	g := New()
	if err := g.Build([]*models.TaskNode{node("a", "b"), node("b", "a")}); err != nil {
		t.Fatalf("build: %v", err)
	}
	if !g.HasCycle() {
		t.Fatal("expected cycle to be detected")
	}

	acyclic := New()
	if err := acyclic.Build([]*models.TaskNode{node("a"), node("b", "a")}); err != nil {
		t.Fatalf("build: %v", err)
	}
	if acyclic.HasCycle() {
		t.Fatal("false positive cycle")
	}
}

func TestCyclicGraphHasEmptyReadySet(t *testing.T) {
	g := New()
	g.Build([]*models.TaskNode{node("a", "b"), node("b", "a")})

	if len(g.Ready()) != 0 {
		t.Fatal("cyclic graph produced ready tasks")
	}
	if got := g.Unfinished(); len(got) != 2 {
		t.Fatalf("expected both nodes unfinished, got %v", got)
	}
}

func TestDependents(t *testing.T) {
	g := New()
	g.Build([]*models.TaskNode{node("a"), node("b", "a"), node("c", "a")})

	deps := g.Dependents("a")
	if len(deps) != 2 || deps[0] != "b" || deps[1] != "c" {
		t.Fatalf("expected [b c], got %v", deps)
	}
	if len(g.Dependents("c")) != 0 {
		t.Fatal("expected no dependents for c")
	}
}

func TestCounts(t *testing.T) {
	g := New()
	g.Build([]*models.TaskNode{node("a"), node("b"), node("c")})

	g.Node("a").Status = models.TaskStatusCompleted
	completed, total := g.Counts()
	if completed != 1 || total != 3 {
		t.Fatalf("expected 1/3, got %d/%d", completed, total)
	}

	if g.AllTerminal() {
		t.Fatal("graph reported terminal with pending nodes")
	}
	g.Node("b").Status = models.TaskStatusCompleted
	g.Node("c").Status = models.TaskStatusFailed
	if !g.AllTerminal() {
		t.Fatal("graph not terminal with all nodes terminal")
	}
}
