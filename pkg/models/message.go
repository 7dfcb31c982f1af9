// Package models defines the shared data types for the society coordination
// substrate: agents, messages, task nodes, purposes, and escalations.
package models

import "time"

// MessageType identifies the kind of message being delivered.
type MessageType string

const (
	// TypeMessage is a plain inter-agent message.
	TypeMessage MessageType = "message"
	// TypeQuestion is a message that expects an answer.
	TypeQuestion MessageType = "question"
	// TypeTaskAssign delegates a task to a worker.
	TypeTaskAssign MessageType = "task_assign"
	// TypeTaskComplete reports the outcome of a delegated task.
	TypeTaskComplete MessageType = "task_complete"
	// TypeStatusUpdate is a non-actionable progress notification.
	TypeStatusUpdate MessageType = "status_update"
	// TypeShutdown asks the receiving agent to stop accepting new work.
	TypeShutdown MessageType = "shutdown"
	// TypeInterrupt preempts the receiving agent's queued work.
	TypeInterrupt MessageType = "interrupt"
)

// Valid returns true if the type is a known value.
func (t MessageType) Valid() bool {
	switch t {
	case TypeMessage, TypeQuestion, TypeTaskAssign, TypeTaskComplete,
		TypeStatusUpdate, TypeShutdown, TypeInterrupt:
		return true
	default:
		return false
	}
}

// Reserved destination addresses understood by the fabric.
const (
	// AddressBroadcast fans a message out to every registered agent
	// except the sender.
	AddressBroadcast = "broadcast"
	// AddressSupervisor routes to whichever agent holds the supervisor role.
	AddressSupervisor = "supervisor"
)

// Message is the unit of communication between agents. The JSON field names
// are the wire format: the same encoding is used in transit and as a
// persisted log line.
type Message struct {
	// ID uniquely identifies the message and drives receiver-side dedup.
	ID string `json:"id"`
	// From is the sender's agent ID. It is stamped by the fabric from the
	// authenticated sender context, never taken from a caller-supplied value.
	From string `json:"from"`
	// To is the recipient agent ID, or a reserved address.
	To string `json:"to"`
	// Type classifies the message.
	Type MessageType `json:"type"`
	// Content is the opaque payload.
	Content string `json:"content"`
	// Timestamp is when the fabric accepted the message.
	Timestamp time.Time `json:"timestamp"`
	// Nonce is a single-use token used to reject replays of a
	// semantically identical but re-id'd message.
	Nonce string `json:"nonce"`
	// CorrelationID links a reply to its originating request.
	CorrelationID string `json:"correlationId,omitempty"`
}

// DeliveryVia records the path a delivery attempt took.
type DeliveryVia string

const (
	// ViaNetwork means the message was handed directly to the
	// recipient's mailbox.
	ViaNetwork DeliveryVia = "network"
	// ViaPersistedFallback means the recipient was unreachable and the
	// message rests in the persistent log for catch-up.
	ViaPersistedFallback DeliveryVia = "persisted-fallback"
)

// DeliveryRecord is one append-only entry in the deliveries stream.
// Records are never mutated; redelivery appends a new record.
type DeliveryRecord struct {
	// MessageID is the ID of the message this attempt belongs to.
	MessageID string `json:"messageId"`
	// AttemptedAt is when the delivery was attempted.
	AttemptedAt time.Time `json:"attemptedAt"`
	// Delivered reports whether the recipient's mailbox accepted the message.
	Delivered bool `json:"delivered"`
	// Via is the path the attempt took.
	Via DeliveryVia `json:"via"`
}

// TaskAssignment is the structured payload carried by a task_assign message.
type TaskAssignment struct {
	// Task is the opaque task description.
	Task string `json:"task"`
	// Context is additional opaque context for the worker.
	Context string `json:"context,omitempty"`
}

// TaskResult is the structured payload carried by a task_complete reply.
type TaskResult struct {
	// Status is the terminal task status: completed or failed.
	Status TaskStatus `json:"status"`
	// Result is the worker's opaque output.
	Result string `json:"result,omitempty"`
	// Error describes the failure when Status is failed.
	Error string `json:"error,omitempty"`
}
