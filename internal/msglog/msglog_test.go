package msglog

import (
	"testing"
	"time"

	"github.com/chrysochos/society/pkg/models"
)

func testMessage(id, to string) models.Message {
	return models.Message{
		ID:        id,
		From:      "supervisor",
		To:        to,
		Type:      models.TypeTaskAssign,
		Content:   "work",
		Timestamp: time.Now().UTC(),
		Nonce:     "nonce-" + id,
	}
}

func TestFileStoreAppendAndReplay(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	if err := store.AppendMessage(testMessage("m-1", "backend")); err != nil {
		t.Fatalf("append message: %v", err)
	}
	if err := store.AppendMessage(testMessage("m-2", "backend")); err != nil {
		t.Fatalf("append message: %v", err)
	}

	msgs, err := store.Messages()
	if err != nil {
		t.Fatalf("read messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].ID != "m-1" || msgs[1].ID != "m-2" {
		t.Errorf("messages out of append order: %s, %s", msgs[0].ID, msgs[1].ID)
	}
}

func TestFileStoreUndeliveredFor(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	store.AppendMessage(testMessage("m-1", "backend"))
	store.AppendMessage(testMessage("m-2", "backend"))
	store.AppendMessage(testMessage("m-3", "tester"))

	// m-1 delivered, m-2 failed delivery, m-3 addressed elsewhere.
	store.AppendDelivery(models.DeliveryRecord{
		MessageID: "m-1", Delivered: true, Via: models.ViaNetwork, AttemptedAt: time.Now().UTC(),
	})
	store.AppendDelivery(models.DeliveryRecord{
		MessageID: "m-2", Delivered: false, Via: models.ViaPersistedFallback, AttemptedAt: time.Now().UTC(),
	})

	pending, err := store.UndeliveredFor("backend")
	if err != nil {
		t.Fatalf("undelivered: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "m-2" {
		t.Fatalf("expected only m-2 pending, got %v", pending)
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	store.AppendMessage(testMessage("m-1", "backend"))
	store.Close()

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()

	msgs, err := reopened.Messages()
	if err != nil {
		t.Fatalf("read messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != "m-1" {
		t.Fatalf("expected persisted message after reopen, got %v", msgs)
	}
}

func TestRegistryKeepsLatestPerAgent(t *testing.T) {
	store := NewMemory()

	early := time.Now().UTC().Add(-time.Hour)
	late := time.Now().UTC()

	store.AppendRegistry(models.RegistryRecord{AgentID: "backend", Role: models.RoleWorker, LastSeen: early})
	store.AppendRegistry(models.RegistryRecord{AgentID: "tester", Role: models.RoleWorker, LastSeen: early})
	store.AppendRegistry(models.RegistryRecord{AgentID: "backend", Role: models.RoleWorker, LastSeen: late})

	agents, err := store.Agents()
	if err != nil {
		t.Fatalf("agents: %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(agents))
	}
	if agents[0].AgentID != "backend" || !agents[0].LastSeen.Equal(late) {
		t.Errorf("expected backend heartbeat to be updated, got %+v", agents[0])
	}
}

func TestMemoryStoreUndelivered(t *testing.T) {
	store := NewMemory()

	store.AppendMessage(testMessage("m-1", "backend"))
	store.AppendDelivery(models.DeliveryRecord{MessageID: "m-1", Delivered: false, Via: models.ViaPersistedFallback})

	pending, err := store.UndeliveredFor("backend")
	if err != nil {
		t.Fatalf("undelivered: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending message, got %d", len(pending))
	}

	store.AppendDelivery(models.DeliveryRecord{MessageID: "m-1", Delivered: true, Via: models.ViaNetwork})
	pending, _ = store.UndeliveredFor("backend")
	if len(pending) != 0 {
		t.Fatalf("expected no pending messages after delivery, got %d", len(pending))
	}
}
