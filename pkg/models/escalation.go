package models

import "time"

// EscalationPriority ranks how urgently a human answer is needed.
type EscalationPriority string

const (
	// PriorityLow marks an escalation that can wait.
	PriorityLow EscalationPriority = "low"
	// PriorityMedium marks a routine judgment call.
	PriorityMedium EscalationPriority = "medium"
	// PriorityHigh marks an escalation blocking significant work.
	PriorityHigh EscalationPriority = "high"
	// PriorityCritical marks an escalation blocking the whole purpose.
	PriorityCritical EscalationPriority = "critical"
)

// Valid returns true if the priority is a known value.
func (p EscalationPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// EscalationRequest is a suspended decision point forwarded to a human.
// It is created by the supervisor (or on behalf of a worker) and mutated
// exactly once, by the response handler, to record the answer.
type EscalationRequest struct {
	// ID uniquely identifies the escalation.
	ID string `json:"id"`
	// Priority ranks the escalation's urgency.
	Priority EscalationPriority `json:"priority"`
	// Question is what the human is being asked.
	Question string `json:"question"`
	// Options lists the acceptable answers, if the question is a choice.
	Options []string `json:"options,omitempty"`
	// Context is opaque background for the human.
	Context string `json:"context,omitempty"`
	// Timestamp is when the escalation was raised.
	Timestamp time.Time `json:"timestamp"`
	// Response is the human's answer, once recorded.
	Response string `json:"response,omitempty"`
	// RespondedAt is when the answer was recorded.
	RespondedAt *time.Time `json:"respondedAt,omitempty"`
}

// Answered returns true once a response has been recorded.
func (e *EscalationRequest) Answered() bool {
	return e.RespondedAt != nil
}
