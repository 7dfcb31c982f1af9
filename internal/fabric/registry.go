package fabric

import (
	"sync"

	"github.com/chrysochos/society/internal/mailbox"
	"github.com/chrysochos/society/pkg/models"
)

// registry tracks registered agent identities and their mailboxes.
// Identities are immutable after registration; the registry owns them.
type registry struct {
	mu     sync.RWMutex
	agents map[string]*registration
	order  []string
}

type registration struct {
	identity models.AgentIdentity
	// mailbox is nil for agents known only from the persisted registry
	// stream (offline agents reachable via the log fallback).
	mailbox *mailbox.Mailbox
}

func newRegistry() *registry {
	return &registry{agents: make(map[string]*registration)}
}

func (r *registry) add(identity models.AgentIdentity, mb *mailbox.Mailbox) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.agents[identity.ID]; ok {
		// Re-registration may attach a mailbox to a previously offline
		// identity, but never replaces an identity.
		if existing.mailbox == nil && mb != nil {
			existing.mailbox = mb
			return nil
		}
		return ErrAlreadyRegistered
	}

	r.agents[identity.ID] = &registration{identity: identity, mailbox: mb}
	r.order = append(r.order, identity.ID)
	return nil
}

func (r *registry) identity(id string) (models.AgentIdentity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.agents[id]
	if !ok {
		return models.AgentIdentity{}, false
	}
	return reg.identity, true
}

func (r *registry) mailboxOf(id string) *mailbox.Mailbox {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.agents[id]
	if !ok {
		return nil
	}
	return reg.mailbox
}

func (r *registry) all() []models.AgentIdentity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.AgentIdentity, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.agents[id].identity)
	}
	return out
}
