package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chrysochos/society/pkg/models"
)

// TimeoutPolicy decides what happens when an escalation receives no human
// response within the configured window. The behavior is an explicit
// configuration choice, never inferred from the question.
type TimeoutPolicy string

const (
	// PolicyAbort abandons the escalation and fails the depending work.
	PolicyAbort TimeoutPolicy = "abort"
	// PolicyDefault resolves the escalation with the configured
	// default response.
	PolicyDefault TimeoutPolicy = "default"
	// PolicyWait blocks until a response arrives or the purpose context
	// is cancelled.
	PolicyWait TimeoutPolicy = "wait"
)

// Valid returns true if the policy is a known value.
func (p TimeoutPolicy) Valid() bool {
	switch p {
	case PolicyAbort, PolicyDefault, PolicyWait:
		return true
	default:
		return false
	}
}

var (
	// ErrEscalationAbandoned indicates the escalation timed out under
	// the abort policy.
	ErrEscalationAbandoned = errors.New("escalation abandoned without response")
	// ErrEscalationInProgress indicates another escalation is already
	// waiting for a response.
	ErrEscalationInProgress = errors.New("escalation already in progress")
	// ErrNoEscalation indicates there is no escalation to respond to.
	ErrNoEscalation = errors.New("no escalation in progress")
)

// EscalationConfig configures the escalation handler.
type EscalationConfig struct {
	// Timeout is how long to wait for a human response. Ignored under
	// PolicyWait.
	Timeout time.Duration
	// Policy decides the timeout behavior.
	Policy TimeoutPolicy
	// DefaultResponse is the answer used under PolicyDefault.
	DefaultResponse string
}

// EscalationHandler serializes escalations to the human: one at a time,
// each suspending the depending work until answered or timed out.
type EscalationHandler struct {
	cfg    EscalationConfig
	logger *DebugLogger

	mu      sync.RWMutex
	current *models.EscalationRequest
	// responseCh belongs to the current escalation. Each Raise installs a
	// fresh channel, so an answer that loses the race against a timeout
	// lands in the abandoned channel instead of resolving the next
	// escalation.
	responseCh chan string
}

// NewEscalationHandler creates an escalation handler.
// A zero timeout defaults to 30 minutes; an empty policy defaults to abort.
func NewEscalationHandler(cfg EscalationConfig, logger *DebugLogger) *EscalationHandler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	if !cfg.Policy.Valid() {
		cfg.Policy = PolicyAbort
	}
	return &EscalationHandler{
		cfg:    cfg,
		logger: logger,
	}
}

// Raise blocks until the escalation is answered, the timeout policy
// resolves it, or the context is cancelled. On success the request's
// Response and RespondedAt fields are set.
func (h *EscalationHandler) Raise(ctx context.Context, req *models.EscalationRequest) (string, error) {
	ch := make(chan string, 1)

	h.mu.Lock()
	if h.current != nil {
		h.mu.Unlock()
		return "", ErrEscalationInProgress
	}
	h.current = req
	h.responseCh = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.current = nil
		h.responseCh = nil
		h.mu.Unlock()
	}()

	h.logger.Log("[escalation] raised %s (priority=%s): %s", req.ID, req.Priority, req.Question)

	var timeoutCh <-chan time.Time
	if h.cfg.Policy != PolicyWait {
		timer := time.NewTimer(h.cfg.Timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()

	case response := <-ch:
		h.record(req, response)
		h.logger.Log("[escalation] %s answered: %s", req.ID, response)
		return response, nil

	case <-timeoutCh:
		switch h.cfg.Policy {
		case PolicyDefault:
			h.record(req, h.cfg.DefaultResponse)
			h.logger.Log("[escalation] %s timed out after %v, using default response %q",
				req.ID, h.cfg.Timeout, h.cfg.DefaultResponse)
			return h.cfg.DefaultResponse, nil
		default: // PolicyAbort
			h.logger.Log("[escalation] %s timed out after %v, abandoning", req.ID, h.cfg.Timeout)
			return "", fmt.Errorf("escalation %s: %w after %v", req.ID, ErrEscalationAbandoned, h.cfg.Timeout)
		}
	}
}

// record mutates the request exactly once with the recorded answer.
func (h *EscalationHandler) record(req *models.EscalationRequest, response string) {
	now := time.Now().UTC()
	req.Response = response
	req.RespondedAt = &now
}

// Respond delivers the human's answer to the waiting escalation.
func (h *EscalationHandler) Respond(response string) error {
	h.mu.RLock()
	ch := h.responseCh
	h.mu.RUnlock()
	if ch == nil {
		return ErrNoEscalation
	}

	select {
	case ch <- response:
		return nil
	default:
		return fmt.Errorf("deliver escalation response: channel full")
	}
}

// Pending returns the escalation currently awaiting a response, or nil.
func (h *EscalationHandler) Pending() *models.EscalationRequest {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}
