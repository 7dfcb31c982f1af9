package fabric

import (
	"sync"

	"github.com/chrysochos/society/pkg/models"
)

// correlationTable tracks outstanding request/response correlations.
// Each entry resolves at most once: the first matching reply pops the
// entry and later replies find nothing.
type correlationTable struct {
	mu      sync.Mutex
	pending map[string]*pendingRequest
}

func newCorrelationTable() *correlationTable {
	return &correlationTable{pending: make(map[string]*pendingRequest)}
}

// add registers a new correlation and returns the channel the reply will
// be delivered on. The channel has capacity 1.
func (t *correlationTable) add(correlationID, requester string) chan models.Message {
	ch := make(chan models.Message, 1)
	t.mu.Lock()
	t.pending[correlationID] = &pendingRequest{requester: requester, ch: ch}
	t.mu.Unlock()
	return ch
}

// remove drops a correlation, typically after resolution or timeout.
func (t *correlationTable) remove(correlationID string) {
	t.mu.Lock()
	delete(t.pending, correlationID)
	t.mu.Unlock()
}

// resolve delivers msg to the waiting request if one exists and the reply
// is addressed to the original requester. The entry is removed before the
// send, so exactly one reply resolves each request. Returns whether the
// message resolved a request.
func (t *correlationTable) resolve(msg models.Message, recipientID string) bool {
	t.mu.Lock()
	req, ok := t.pending[msg.CorrelationID]
	if !ok || req.requester != recipientID {
		// No waiting request, or this is the request itself on its way
		// to the worker rather than the reply on its way back.
		t.mu.Unlock()
		return false
	}
	delete(t.pending, msg.CorrelationID)
	t.mu.Unlock()

	req.ch <- msg
	return true
}
