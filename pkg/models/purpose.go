package models

import "time"

// Purpose is a loosely specified goal handed to a supervisor. It is
// immutable once created; the scheduler references it, never copies it.
type Purpose struct {
	// ID uniquely identifies the purpose.
	ID string `json:"id"`
	// Description is the goal in the operator's words.
	Description string `json:"description"`
	// Context is additional opaque background for planning.
	Context string `json:"context,omitempty"`
	// Constraints lists hard constraints the plan must respect.
	Constraints []string `json:"constraints,omitempty"`
	// SuccessCriteria lists conditions that define completion.
	SuccessCriteria []string `json:"successCriteria,omitempty"`
	// CreatedAt is when the purpose was created.
	CreatedAt time.Time `json:"createdAt"`
}
