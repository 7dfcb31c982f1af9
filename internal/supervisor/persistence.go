package supervisor

import (
	"time"

	"github.com/chrysochos/society/internal/state"
	"github.com/chrysochos/society/pkg/models"
)

// Persistence is write-through and advisory: a nil DB disables it, and a
// write failure is logged rather than failing the purpose.

func (s *Supervisor) persistPurpose() {
	if s.cfg.DB == nil {
		return
	}

	s.mu.Lock()
	rec := &state.PurposeRecord{
		ID:          s.cfg.Purpose.ID,
		Description: s.cfg.Purpose.Description,
		State:       string(s.state),
		Progress:    s.progress,
		CreatedAt:   s.cfg.Purpose.CreatedAt,
	}
	terminal := s.state.Terminal()
	s.mu.Unlock()

	if terminal {
		now := time.Now().UTC()
		rec.CompletedAt = &now
	}
	if err := s.cfg.DB.SavePurpose(rec); err != nil {
		s.logger.Log("[supervisor] persist purpose: %v", err)
	}
}

func (s *Supervisor) persistNodes() {
	if s.cfg.DB == nil {
		return
	}
	for _, node := range s.graph.Nodes() {
		if err := s.cfg.DB.SaveTaskNode(s.cfg.Purpose.ID, node); err != nil {
			s.logger.Log("[supervisor] persist task node %s: %v", node.WorkerID, err)
		}
	}
}

func (s *Supervisor) persistEscalation(req *models.EscalationRequest) {
	if s.cfg.DB == nil {
		return
	}
	if err := s.cfg.DB.SaveEscalation(s.cfg.Purpose.ID, req); err != nil {
		s.logger.Log("[supervisor] persist escalation %s: %v", req.ID, err)
	}
}
