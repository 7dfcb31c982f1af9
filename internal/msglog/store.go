// Package msglog provides the persistent, append-only record of every
// message the fabric attempts to deliver. The log is the durability
// backstop: a message appended here survives recipient failure and is
// redelivered on the agent's next catch-up pass.
package msglog

import "github.com/chrysochos/society/pkg/models"

// Store is the append-only persistence interface used by the fabric.
// Implementations must serialize concurrent appends. The store handle is
// injected at construction so tests can substitute an in-memory store and
// multiple fabrics can coexist without shared hidden state.
type Store interface {
	// AppendMessage records a message before delivery is attempted.
	AppendMessage(msg models.Message) error
	// AppendDelivery records one delivery attempt. Records are only
	// appended, never mutated.
	AppendDelivery(rec models.DeliveryRecord) error
	// AppendRegistry records an agent registration or heartbeat.
	AppendRegistry(rec models.RegistryRecord) error

	// Messages returns every recorded message, in append order.
	Messages() ([]models.Message, error)
	// UndeliveredFor returns messages addressed to the given agent that
	// have no successful delivery record yet, in append order.
	UndeliveredFor(agentID string) ([]models.Message, error)
	// Agents returns the latest registry record per agent.
	Agents() ([]models.RegistryRecord, error)

	// Close releases any underlying resources.
	Close() error
}

// undelivered joins a message list against delivery records, keeping
// messages to agentID that were never successfully delivered.
func undelivered(agentID string, msgs []models.Message, recs []models.DeliveryRecord) []models.Message {
	delivered := make(map[string]bool, len(recs))
	for _, rec := range recs {
		if rec.Delivered {
			delivered[rec.MessageID] = true
		}
	}

	var out []models.Message
	for _, msg := range msgs {
		if msg.To != agentID {
			continue
		}
		if !delivered[msg.ID] {
			out = append(out, msg)
		}
	}
	return out
}

// latestRegistry collapses a registry stream to the newest record per agent,
// preserving first-seen order.
func latestRegistry(recs []models.RegistryRecord) []models.RegistryRecord {
	index := make(map[string]int, len(recs))
	var out []models.RegistryRecord
	for _, rec := range recs {
		if i, ok := index[rec.AgentID]; ok {
			out[i] = rec
			continue
		}
		index[rec.AgentID] = len(out)
		out = append(out, rec)
	}
	return out
}
