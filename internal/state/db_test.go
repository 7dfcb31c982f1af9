package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/chrysochos/society/pkg/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "society.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestSaveAndGetPurpose(t *testing.T) {
	db := openTestDB(t)

	rec := &PurposeRecord{
		ID:          "p-1",
		Description: "build and test",
		State:       "executing",
		Progress:    50,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	if err := db.SavePurpose(rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := db.GetPurpose("p-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Description != "build and test" || got.Progress != 50 {
		t.Fatalf("unexpected record: %+v", got)
	}

	// Update in place.
	rec.State = "completed"
	rec.Progress = 100
	now := time.Now().UTC().Truncate(time.Second)
	rec.CompletedAt = &now
	if err := db.SavePurpose(rec); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = db.GetPurpose("p-1")
	if got.State != "completed" || got.Progress != 100 || got.CompletedAt == nil {
		t.Fatalf("update not applied: %+v", got)
	}
}

func TestGetPurposeNotFound(t *testing.T) {
	db := openTestDB(t)
	got, err := db.GetPurpose("missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing purpose, got %+v", got)
	}
}

func TestSaveAndListTaskNodes(t *testing.T) {
	db := openTestDB(t)

	node := &models.TaskNode{
		WorkerID:     "tester",
		Task:         "run the suite",
		Dependencies: []string{"backend"},
		Status:       models.TaskStatusPending,
	}
	if err := db.SaveTaskNode("p-1", node); err != nil {
		t.Fatalf("save node: %v", err)
	}

	node.Status = models.TaskStatusCompleted
	node.Result = "all green"
	if err := db.SaveTaskNode("p-1", node); err != nil {
		t.Fatalf("update node: %v", err)
	}

	nodes, err := db.TaskNodesFor("p-1")
	if err != nil {
		t.Fatalf("list nodes: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(nodes))
	}
	got := nodes[0]
	if got.Status != models.TaskStatusCompleted || got.Result != "all green" {
		t.Errorf("unexpected node: %+v", got)
	}
	if len(got.Dependencies) != 1 || got.Dependencies[0] != "backend" {
		t.Errorf("dependencies did not round-trip: %v", got.Dependencies)
	}
}

func TestSaveAndListEscalations(t *testing.T) {
	db := openTestDB(t)

	esc := &models.EscalationRequest{
		ID:        "e-1",
		Priority:  models.PriorityHigh,
		Question:  "backend failed; continue without it?",
		Options:   []string{"continue", "abort"},
		Timestamp: time.Now().UTC().Truncate(time.Second),
	}
	if err := db.SaveEscalation("p-1", esc); err != nil {
		t.Fatalf("save escalation: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	esc.Response = "continue"
	esc.RespondedAt = &now
	if err := db.SaveEscalation("p-1", esc); err != nil {
		t.Fatalf("resolve escalation: %v", err)
	}

	escs, err := db.EscalationsFor("p-1")
	if err != nil {
		t.Fatalf("list escalations: %v", err)
	}
	if len(escs) != 1 {
		t.Fatalf("expected 1 escalation, got %d", len(escs))
	}
	if escs[0].Response != "continue" || !escs[0].Answered() {
		t.Errorf("response not recorded: %+v", escs[0])
	}
}
