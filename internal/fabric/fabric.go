// Package fabric routes messages between agent mailboxes. It owns the
// agent registry, correlation bookkeeping for request/response, broadcast
// fan-out, per-pair rate limiting, and the write-through persistent log.
package fabric

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chrysochos/society/internal/mailbox"
	"github.com/chrysochos/society/internal/msglog"
	"github.com/chrysochos/society/pkg/models"
)

var (
	// ErrRateLimited indicates the (sender, receiver) pair exceeded its
	// message-rate window. The message is rejected, not queued.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrRequestTimeout indicates no correlated reply arrived in time.
	ErrRequestTimeout = errors.New("request timed out")
	// ErrAlreadyRegistered indicates the agent ID is taken.
	ErrAlreadyRegistered = errors.New("agent already registered")
	// ErrUnknownAgent indicates the agent ID is not in the registry.
	ErrUnknownAgent = errors.New("agent not registered")
)

// Default timeouts and flood limits.
const (
	// DefaultTaskTimeout is the reply window for task delegation.
	DefaultTaskTimeout = 60 * time.Second
	// DefaultApprovalTimeout is the reply window for approval-style requests.
	DefaultApprovalTimeout = 30 * time.Second
	// DefaultRatePerPair is the per-(sender,receiver) message budget.
	DefaultRatePerPair = 10
	// DefaultRateWindow is the rate-limit window.
	DefaultRateWindow = time.Minute
)

// Options configures a Fabric.
type Options struct {
	// RatePerPair is the per-pair message budget within RateWindow.
	RatePerPair int
	// RateWindow is the flood-control window.
	RateWindow time.Duration
	// TaskTimeout is the default Request reply window.
	TaskTimeout time.Duration
	// ApprovalTimeout is the default reply window for approval requests.
	ApprovalTimeout time.Duration
	// Mailbox sets the bounds for mailboxes created at registration.
	Mailbox mailbox.Options
	// Logf receives debug log lines. Nil disables debug logging.
	Logf func(format string, args ...interface{})
}

// pendingRequest is one outstanding request/response correlation.
// The channel has capacity 1 and is resolved at most once.
type pendingRequest struct {
	requester string
	ch        chan models.Message
}

// Fabric routes messages between registered agents. All methods are safe
// for concurrent use. The persistent store is injected at construction;
// independent fabrics share no hidden state.
type Fabric struct {
	store    msglog.Store
	registry *registry
	limiter  *PairLimiter
	opts     Options

	// pending maps correlation ID to the waiting request. The map itself
	// is guarded by the registry mutex's sibling below.
	pending *correlationTable
}

// New creates a Fabric over the given persistent store.
func New(store msglog.Store, opts Options) *Fabric {
	if opts.RatePerPair <= 0 {
		opts.RatePerPair = DefaultRatePerPair
	}
	if opts.RateWindow <= 0 {
		opts.RateWindow = DefaultRateWindow
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = DefaultTaskTimeout
	}
	if opts.ApprovalTimeout <= 0 {
		opts.ApprovalTimeout = DefaultApprovalTimeout
	}

	return &Fabric{
		store:    store,
		registry: newRegistry(),
		limiter:  NewPairLimiter(opts.RatePerPair, opts.RateWindow),
		pending:  newCorrelationTable(),
		opts:     opts,
	}
}

// Register creates a mailbox for the agent, adds it to the registry, and
// records the registration in the persistent registry stream.
func (f *Fabric) Register(identity models.AgentIdentity) (*mailbox.Mailbox, error) {
	if identity.ID == "" {
		return nil, fmt.Errorf("register: empty agent ID")
	}
	if !identity.Role.Valid() {
		return nil, fmt.Errorf("register %s: invalid role %q", identity.ID, identity.Role)
	}

	mb := mailbox.New(identity.ID, f.opts.Mailbox)
	if err := f.registry.add(identity, mb); err != nil {
		return nil, fmt.Errorf("register %s: %w", identity.ID, err)
	}

	if err := f.store.AppendRegistry(models.RegistryRecord{
		AgentID:  identity.ID,
		Role:     identity.Role,
		LastSeen: time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("register %s: persist: %w", identity.ID, err)
	}

	f.logf("[fabric] registered agent %s (role=%s)", identity.ID, identity.Role)
	return mb, nil
}

// RegisterIdentity adds an agent without a live mailbox. Messages to it
// land in the persistent log and are redelivered on its next catch-up pass.
func (f *Fabric) RegisterIdentity(identity models.AgentIdentity) error {
	if err := f.registry.add(identity, nil); err != nil {
		return fmt.Errorf("register %s: %w", identity.ID, err)
	}
	return nil
}

// Heartbeat records the agent as recently seen in the registry stream.
func (f *Fabric) Heartbeat(agentID string) error {
	identity, ok := f.registry.identity(agentID)
	if !ok {
		return fmt.Errorf("heartbeat %s: %w", agentID, ErrUnknownAgent)
	}
	return f.store.AppendRegistry(models.RegistryRecord{
		AgentID:  identity.ID,
		Role:     identity.Role,
		LastSeen: time.Now().UTC(),
	})
}

// Agents returns all registered identities in registration order.
func (f *Fabric) Agents() []models.AgentIdentity {
	return f.registry.all()
}

// MailboxOf returns the mailbox for an agent, or nil if the agent is
// unknown or offline.
func (f *Fabric) MailboxOf(agentID string) *mailbox.Mailbox {
	return f.registry.mailboxOf(agentID)
}

// Bind returns a sender handle bound to the authenticated agent. Every
// message sent through the handle is stamped with the bound identity;
// callers cannot assert another agent's identity.
func (f *Fabric) Bind(agentID string) (*Sender, error) {
	if _, ok := f.registry.identity(agentID); !ok {
		return nil, fmt.Errorf("bind %s: %w", agentID, ErrUnknownAgent)
	}
	return &Sender{fabric: f, agentID: agentID}, nil
}

// Redeliver replays messages from the persistent log that were never
// successfully delivered to the agent. It is the recipient's catch-up
// pass on activation. Returns the number of messages accepted.
func (f *Fabric) Redeliver(agentID string) (int, error) {
	mb := f.registry.mailboxOf(agentID)
	if mb == nil {
		return 0, fmt.Errorf("redeliver %s: %w", agentID, ErrUnknownAgent)
	}

	pending, err := f.store.UndeliveredFor(agentID)
	if err != nil {
		return 0, fmt.Errorf("redeliver %s: %w", agentID, err)
	}

	var delivered int
	for _, msg := range pending {
		accepted, reason := mb.Handle(msg)
		if accepted {
			delivered++
		} else {
			f.logf("[fabric] redeliver %s: message %s rejected: %s", agentID, msg.ID, reason)
		}
		if err := f.store.AppendDelivery(models.DeliveryRecord{
			MessageID:   msg.ID,
			AttemptedAt: time.Now().UTC(),
			Delivered:   accepted,
			Via:         models.ViaPersistedFallback,
		}); err != nil {
			return delivered, fmt.Errorf("redeliver %s: record delivery: %w", agentID, err)
		}
	}

	f.logf("[fabric] redelivered %d/%d messages to %s", delivered, len(pending), agentID)
	return delivered, nil
}

// newMessage stamps a fresh message from the bound sender. The from field
// comes from the sender handle, never from caller-supplied payload.
func (f *Fabric) newMessage(from, to string, typ models.MessageType, content, correlationID string) models.Message {
	return models.Message{
		ID:            uuid.New().String(),
		From:          from,
		To:            to,
		Type:          typ,
		Content:       content,
		Timestamp:     time.Now().UTC(),
		Nonce:         uuid.New().String(),
		CorrelationID: correlationID,
	}
}

// dispatch persists the message, resolves any waiting correlation, and
// attempts best-effort delivery to the recipient's mailbox. The message is
// durable once persisted: an unreachable recipient is not an error.
func (f *Fabric) dispatch(msg models.Message, recipientID string) error {
	if !f.limiter.Allow(msg.From, recipientID) {
		return fmt.Errorf("%s -> %s: %w", msg.From, recipientID, ErrRateLimited)
	}

	// Durability first: the log is written before any delivery attempt.
	if err := f.store.AppendMessage(msg); err != nil {
		return fmt.Errorf("persist message %s: %w", msg.ID, err)
	}

	// A reply carrying a known correlation ID resolves the waiting
	// request. Only the original requester's reply resolves it, and only
	// once; later replies with the same ID are ignored.
	if msg.CorrelationID != "" {
		if f.pending.resolve(msg, recipientID) {
			f.logf("[fabric] resolved correlation %s with message %s", msg.CorrelationID, msg.ID)
		}
	}

	rec := models.DeliveryRecord{
		MessageID:   msg.ID,
		AttemptedAt: time.Now().UTC(),
	}

	if mb := f.registry.mailboxOf(recipientID); mb != nil {
		accepted, reason := mb.Handle(msg)
		rec.Delivered = accepted
		rec.Via = models.ViaNetwork
		if !accepted {
			f.logf("[fabric] mailbox %s rejected message %s: %s", recipientID, msg.ID, reason)
		}
	} else {
		// Unreachable: the message rests in the log for catch-up.
		rec.Delivered = false
		rec.Via = models.ViaPersistedFallback
	}

	if err := f.store.AppendDelivery(rec); err != nil {
		return fmt.Errorf("record delivery of %s: %w", msg.ID, err)
	}
	return nil
}

func (f *Fabric) logf(format string, args ...interface{}) {
	if f.opts.Logf != nil {
		f.opts.Logf(format, args...)
	}
}

// Sender is a fabric handle bound to one authenticated agent identity.
type Sender struct {
	fabric  *Fabric
	agentID string
}

// AgentID returns the bound agent's ID.
func (s *Sender) AgentID() string {
	return s.agentID
}

// Send delivers a message to one agent, at-least-once and fire-and-forget.
// The call succeeds once the message is durable, even if the recipient is
// currently unreachable.
func (s *Sender) Send(to string, typ models.MessageType, content string) error {
	msg := s.fabric.newMessage(s.agentID, to, typ, content, "")
	return s.fabric.dispatch(msg, to)
}

// Notify sends a non-actionable status update. Receivers record it without
// occupying their work queue.
func (s *Sender) Notify(to, content string) error {
	return s.Send(to, models.TypeStatusUpdate, content)
}

// Broadcast delivers an independent copy of the payload to every
// registered agent except the sender.
func (s *Sender) Broadcast(typ models.MessageType, content string) error {
	var firstErr error
	for _, identity := range s.fabric.Agents() {
		if identity.ID == s.agentID {
			continue
		}
		msg := s.fabric.newMessage(s.agentID, models.AddressBroadcast, typ, content, "")
		if err := s.fabric.dispatch(msg, identity.ID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Request sends a task_assign-shaped message and waits for the correlated
// reply. Exactly one reply resolves the call; a second reply with the same
// correlation ID is ignored. A zero timeout uses the fabric default.
func (s *Sender) Request(ctx context.Context, to string, assignment models.TaskAssignment, timeout time.Duration) (models.TaskResult, error) {
	if timeout <= 0 {
		timeout = s.fabric.opts.TaskTimeout
	}

	content, err := json.Marshal(assignment)
	if err != nil {
		return models.TaskResult{}, fmt.Errorf("encode assignment: %w", err)
	}

	correlationID := uuid.New().String()
	ch := s.fabric.pending.add(correlationID, s.agentID)
	defer s.fabric.pending.remove(correlationID)

	msg := s.fabric.newMessage(s.agentID, to, models.TypeTaskAssign, string(content), correlationID)
	if err := s.fabric.dispatch(msg, to); err != nil {
		return models.TaskResult{}, err
	}

	select {
	case reply := <-ch:
		return decodeTaskResult(reply), nil
	case <-ctx.Done():
		return models.TaskResult{}, ctx.Err()
	case <-time.After(timeout):
		return models.TaskResult{}, fmt.Errorf("request to %s: %w after %s", to, ErrRequestTimeout, timeout)
	}
}

// Respond sends a task_complete reply correlated to the originating request.
func (s *Sender) Respond(origin models.Message, result models.TaskResult) error {
	content, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	msg := s.fabric.newMessage(s.agentID, origin.From, models.TypeTaskComplete, string(content), origin.CorrelationID)
	return s.fabric.dispatch(msg, origin.From)
}

// decodeTaskResult parses a reply payload, tolerating unstructured content.
func decodeTaskResult(reply models.Message) models.TaskResult {
	var result models.TaskResult
	if err := json.Unmarshal([]byte(reply.Content), &result); err != nil || !result.Status.Valid() {
		// Opaque reply: treat as a completed task with raw output.
		return models.TaskResult{Status: models.TaskStatusCompleted, Result: reply.Content}
	}
	return result
}
