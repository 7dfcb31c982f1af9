package models

import "time"

// AgentRole distinguishes supervising agents from workers.
type AgentRole string

const (
	// RoleSupervisor marks an agent that plans and dispatches work.
	RoleSupervisor AgentRole = "supervisor"
	// RoleWorker marks an agent that executes delegated tasks.
	RoleWorker AgentRole = "worker"
)

// Valid returns true if the role is a known value.
func (r AgentRole) Valid() bool {
	switch r {
	case RoleSupervisor, RoleWorker:
		return true
	default:
		return false
	}
}

// AgentIdentity describes a registered agent. Identities are created at
// registration and immutable thereafter; the fabric's registry owns them.
type AgentIdentity struct {
	// ID is the stable, unique agent identifier.
	ID string `json:"id"`
	// Role is the agent's role in the society.
	Role AgentRole `json:"role"`
	// Description says what the agent is for, in the planner's words.
	Description string `json:"description,omitempty"`
	// Capabilities lists what kinds of work the agent can take on.
	Capabilities []string `json:"capabilities,omitempty"`
}

// RegistryRecord is one append-only entry in the registry stream,
// recording an agent's registration or heartbeat.
type RegistryRecord struct {
	// AgentID is the registered agent's ID.
	AgentID string `json:"agentId"`
	// Role is the agent's role at registration time.
	Role AgentRole `json:"role"`
	// LastSeen is the most recent heartbeat.
	LastSeen time.Time `json:"lastSeen"`
}
