package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMessageTypeValid(t *testing.T) {
	valid := []MessageType{
		TypeMessage, TypeQuestion, TypeTaskAssign, TypeTaskComplete,
		TypeStatusUpdate, TypeShutdown, TypeInterrupt,
	}
	for _, mt := range valid {
		if !mt.Valid() {
			t.Errorf("expected %q to be valid", mt)
		}
	}

	invalid := []MessageType{"", "ping", "TASK_ASSIGN"}
	for _, mt := range invalid {
		if mt.Valid() {
			t.Errorf("expected %q to be invalid", mt)
		}
	}
}

func TestMessageWireFormat(t *testing.T) {
	msg := Message{
		ID:            "m-1",
		From:          "supervisor",
		To:            "backend",
		Type:          TypeTaskAssign,
		Content:       "implement the API",
		Timestamp:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Nonce:         "n-1",
		CorrelationID: "c-1",
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	for _, key := range []string{"id", "from", "to", "type", "content", "timestamp", "nonce", "correlationId"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("wire format missing key %q", key)
		}
	}
}

func TestMessageWireFormatOmitsEmptyCorrelation(t *testing.T) {
	data, err := json.Marshal(Message{ID: "m-1", Type: TypeMessage})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["correlationId"]; ok {
		t.Error("expected empty correlationId to be omitted")
	}
}

func TestAgentRoleValid(t *testing.T) {
	if !RoleSupervisor.Valid() || !RoleWorker.Valid() {
		t.Error("expected known roles to be valid")
	}
	if AgentRole("manager").Valid() {
		t.Error("expected unknown role to be invalid")
	}
}
