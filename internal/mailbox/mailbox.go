// Package mailbox implements the per-agent inbox: it classifies,
// deduplicates, and orders incoming messages, and exposes drain/shutdown
// semantics for the owning agent's work loop.
package mailbox

import (
	"context"
	"sync"

	"github.com/chrysochos/society/pkg/models"
)

// ReasonDuplicate is the rejection reason for redelivered messages.
// Delivery is idempotent under an at-least-once transport: the first copy
// is accepted, every subsequent copy is rejected with this reason.
const ReasonDuplicate = "Already processed"

// ReasonQueueFull is the rejection reason when the work queue is at capacity.
const ReasonQueueFull = "queue full"

// Priority is the handling class assigned to an incoming message.
type Priority int

const (
	// PriorityLog records the message for observability without
	// occupying the work queue.
	PriorityLog Priority = iota
	// PriorityQueue enqueues the message for the agent's normal work loop.
	PriorityQueue
	// PriorityInterrupt bypasses queued work and executes immediately.
	PriorityInterrupt
)

// Classify maps a message type to its handling priority.
func Classify(t models.MessageType) Priority {
	switch t {
	case models.TypeShutdown, models.TypeInterrupt:
		return PriorityInterrupt
	case models.TypeTaskAssign, models.TypeMessage, models.TypeQuestion:
		return PriorityQueue
	default:
		// status_update, task_complete, and anything unknown.
		return PriorityLog
	}
}

// Options configures a Mailbox's bounds.
type Options struct {
	// QueueSize bounds the pending work queue.
	QueueSize int
	// RecentSize bounds the recent-message ring kept for introspection.
	RecentSize int
	// DedupSize bounds the recently-seen id/nonce set.
	DedupSize int
}

// DefaultOptions returns the default mailbox bounds.
func DefaultOptions() Options {
	return Options{
		QueueSize:  256,
		RecentSize: 50,
		DedupSize:  1024,
	}
}

type seenEntry struct {
	id    string
	nonce string
}

// Mailbox is a per-agent inbox. It is safe for concurrent use by the
// fabric (delivering) and the agent's work loop (consuming).
type Mailbox struct {
	agentID string
	opts    Options

	mu         sync.Mutex
	seenIDs    map[string]struct{}
	seenNonces map[string]struct{}
	seenOrder  []seenEntry
	queue      []models.Message
	recent     []models.Message
	activity   []models.Message

	// notify wakes a blocked Next when work is queued.
	notify chan struct{}

	onShutdown  []func()
	onInterrupt []func(models.Message)
}

// New creates a Mailbox for the given agent with the given options.
// Zero or negative bounds fall back to defaults.
func New(agentID string, opts Options) *Mailbox {
	def := DefaultOptions()
	if opts.QueueSize <= 0 {
		opts.QueueSize = def.QueueSize
	}
	if opts.RecentSize <= 0 {
		opts.RecentSize = def.RecentSize
	}
	if opts.DedupSize <= 0 {
		opts.DedupSize = def.DedupSize
	}

	return &Mailbox{
		agentID:    agentID,
		opts:       opts,
		seenIDs:    make(map[string]struct{}),
		seenNonces: make(map[string]struct{}),
		notify:     make(chan struct{}, 1),
	}
}

// AgentID returns the owning agent's ID.
func (m *Mailbox) AgentID() string {
	return m.agentID
}

// OnShutdown registers a callback invoked when a shutdown message arrives.
// Callbacks run before the queue is drained.
func (m *Mailbox) OnShutdown(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onShutdown = append(m.onShutdown, fn)
}

// OnInterrupt registers a callback invoked when an interrupt message arrives.
func (m *Mailbox) OnInterrupt(fn func(models.Message)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onInterrupt = append(m.onInterrupt, fn)
}

// Handle processes one incoming message. It returns whether the message was
// accepted and, when rejected, the reason. Duplicate deliveries (same id,
// or a replayed nonce under a fresh id) are rejected, which makes delivery
// idempotent under an at-least-once transport.
func (m *Mailbox) Handle(msg models.Message) (accepted bool, reason string) {
	m.mu.Lock()

	if _, dup := m.seenIDs[msg.ID]; dup {
		m.mu.Unlock()
		return false, ReasonDuplicate
	}
	if msg.Nonce != "" {
		if _, replay := m.seenNonces[msg.Nonce]; replay {
			m.mu.Unlock()
			return false, ReasonDuplicate + " (replayed nonce)"
		}
	}

	switch Classify(msg.Type) {
	case PriorityQueue:
		if len(m.queue) >= m.opts.QueueSize {
			m.mu.Unlock()
			return false, ReasonQueueFull
		}
		m.remember(msg)
		m.queue = append(m.queue, msg)
		m.mu.Unlock()
		m.wake()
		return true, ""

	case PriorityLog:
		m.remember(msg)
		m.activity = append(m.activity, msg)
		if len(m.activity) > m.opts.RecentSize {
			m.activity = m.activity[len(m.activity)-m.opts.RecentSize:]
		}
		m.mu.Unlock()
		return true, ""

	default: // PriorityInterrupt
		m.remember(msg)
		shutdownFns := append([]func(){}, m.onShutdown...)
		interruptFns := append([]func(models.Message){}, m.onInterrupt...)
		m.mu.Unlock()

		if msg.Type == models.TypeShutdown {
			for _, fn := range shutdownFns {
				fn()
			}
		} else {
			for _, fn := range interruptFns {
				fn(msg)
			}
		}

		// Drain: in-flight work is not killed, but nothing queued starts.
		m.mu.Lock()
		m.queue = nil
		m.mu.Unlock()
		return true, ""
	}
}

// remember records the message in the dedup set and the recent ring.
// Caller must hold m.mu.
func (m *Mailbox) remember(msg models.Message) {
	m.seenIDs[msg.ID] = struct{}{}
	if msg.Nonce != "" {
		m.seenNonces[msg.Nonce] = struct{}{}
	}
	m.seenOrder = append(m.seenOrder, seenEntry{id: msg.ID, nonce: msg.Nonce})

	// Evict oldest entries beyond the dedup bound.
	for len(m.seenOrder) > m.opts.DedupSize {
		old := m.seenOrder[0]
		m.seenOrder = m.seenOrder[1:]
		delete(m.seenIDs, old.id)
		if old.nonce != "" {
			delete(m.seenNonces, old.nonce)
		}
	}

	m.recent = append(m.recent, msg)
	if len(m.recent) > m.opts.RecentSize {
		m.recent = m.recent[len(m.recent)-m.opts.RecentSize:]
	}
}

// wake signals a blocked Next without blocking the caller.
func (m *Mailbox) wake() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Next blocks until a queued message is available or the context is done.
// Messages are returned in FIFO order.
func (m *Mailbox) Next(ctx context.Context) (models.Message, error) {
	for {
		m.mu.Lock()
		if len(m.queue) > 0 {
			msg := m.queue[0]
			m.queue = m.queue[1:]
			m.mu.Unlock()
			return msg, nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return models.Message{}, ctx.Err()
		case <-m.notify:
		}
	}
}

// QueueDepth returns the number of pending queued messages.
// It reports 0 immediately after a shutdown message has been processed.
func (m *Mailbox) QueueDepth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Recent returns a copy of the last accepted messages, oldest first.
// The ring is independent of the dedup set.
func (m *Mailbox) Recent() []models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Message, len(m.recent))
	copy(out, m.recent)
	return out
}

// Activity returns a copy of the recorded log-priority messages
// (status updates and task completions), oldest first.
func (m *Mailbox) Activity() []models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Message, len(m.activity))
	copy(out, m.activity)
	return out
}
