package supervisor

import "time"

// EventType represents the type of supervisor event.
type EventType string

const (
	// EventStateChanged indicates the purpose moved to a new state.
	EventStateChanged EventType = "state_changed"
	// EventTeamAssembled indicates the team was registered.
	EventTeamAssembled EventType = "team_assembled"
	// EventPlanReady indicates the task graph was built.
	EventPlanReady EventType = "plan_ready"
	// EventWaveStarted indicates a wave of tasks was dispatched.
	EventWaveStarted EventType = "wave_started"
	// EventTaskDispatched indicates a task was sent to its worker.
	EventTaskDispatched EventType = "task_dispatched"
	// EventTaskCompleted indicates a task completed successfully.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a task failed.
	EventTaskFailed EventType = "task_failed"
	// EventTaskStuck indicates a task exceeded the stuck threshold and
	// its worker was nudged with a guidance message.
	EventTaskStuck EventType = "task_stuck"
	// EventEscalationRaised indicates a decision point was forwarded to
	// a human.
	EventEscalationRaised EventType = "escalation_raised"
	// EventEscalationResolved indicates the escalation was answered.
	EventEscalationResolved EventType = "escalation_resolved"
	// EventProgress reports a progress change.
	EventProgress EventType = "progress"
	// EventPurposeDone indicates the purpose reached a terminal state.
	EventPurposeDone EventType = "purpose_done"
)

// Event is emitted by the supervisor as the purpose advances. Observers
// (CLI output, tests) consume these; they are advisory and may be dropped
// under backpressure.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// PurposeID is the purpose this event belongs to.
	PurposeID string
	// WorkerID is the related worker, if applicable.
	WorkerID string
	// Wave is the wave number for dispatch events.
	Wave int
	// State is the supervisor state for state_changed events.
	State State
	// Progress is the purpose progress percentage for progress events.
	Progress int
	// Message provides additional context.
	Message string
	// Error carries failure details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
