package msglog

import (
	"sync"

	"github.com/chrysochos/society/pkg/models"
)

// MemoryStore is an in-memory Store used by tests and short-lived fabrics.
type MemoryStore struct {
	mu         sync.Mutex
	messages   []models.Message
	deliveries []models.DeliveryRecord
	registry   []models.RegistryRecord
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

// AppendMessage records a message.
func (s *MemoryStore) AppendMessage(msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

// AppendDelivery records a delivery attempt.
func (s *MemoryStore) AppendDelivery(rec models.DeliveryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries = append(s.deliveries, rec)
	return nil
}

// AppendRegistry records a registration or heartbeat.
func (s *MemoryStore) AppendRegistry(rec models.RegistryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry = append(s.registry, rec)
	return nil
}

// Messages returns every recorded message in append order.
func (s *MemoryStore) Messages() ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

// Deliveries returns every delivery record in append order.
func (s *MemoryStore) Deliveries() ([]models.DeliveryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.DeliveryRecord, len(s.deliveries))
	copy(out, s.deliveries)
	return out, nil
}

// UndeliveredFor returns messages to agentID with no successful delivery.
func (s *MemoryStore) UndeliveredFor(agentID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return undelivered(agentID, s.messages, s.deliveries), nil
}

// Agents returns the latest registry record per agent.
func (s *MemoryStore) Agents() ([]models.RegistryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return latestRegistry(s.registry), nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
