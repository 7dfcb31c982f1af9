package mailbox

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/chrysochos/society/pkg/models"
)

func queued(id, nonce string) models.Message {
	return models.Message{
		ID:        id,
		From:      "peer",
		To:        "self",
		Type:      models.TypeMessage,
		Content:   "hello",
		Timestamp: time.Now().UTC(),
		Nonce:     nonce,
	}
}

func TestHandleAcceptsThenRejectsDuplicate(t *testing.T) {
	mb := New("self", Options{})

	msg := queued("m-1", "n-1")
	accepted, reason := mb.Handle(msg)
	if !accepted {
		t.Fatalf("first delivery rejected: %s", reason)
	}

	// Redeliver the identical message several times.
	for i := 0; i < 3; i++ {
		accepted, reason = mb.Handle(msg)
		if accepted {
			t.Fatal("duplicate delivery accepted")
		}
		if !strings.Contains(reason, "Already processed") {
			t.Errorf("expected duplicate reason, got %q", reason)
		}
	}

	if depth := mb.QueueDepth(); depth != 1 {
		t.Errorf("expected queue depth 1 after dup deliveries, got %d", depth)
	}
}

func TestHandleRejectsNonceReplay(t *testing.T) {
	mb := New("self", Options{})

	if accepted, _ := mb.Handle(queued("m-1", "n-1")); !accepted {
		t.Fatal("first delivery rejected")
	}

	// Same nonce under a fresh message id.
	accepted, reason := mb.Handle(queued("m-2", "n-1"))
	if accepted {
		t.Fatal("nonce replay accepted")
	}
	if !strings.Contains(reason, "Already processed") {
		t.Errorf("expected replay reason to contain duplicate marker, got %q", reason)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		typ  models.MessageType
		want Priority
	}{
		{models.TypeShutdown, PriorityInterrupt},
		{models.TypeInterrupt, PriorityInterrupt},
		{models.TypeTaskAssign, PriorityQueue},
		{models.TypeMessage, PriorityQueue},
		{models.TypeQuestion, PriorityQueue},
		{models.TypeStatusUpdate, PriorityLog},
		{models.TypeTaskComplete, PriorityLog},
	}

	for _, tc := range cases {
		if got := Classify(tc.typ); got != tc.want {
			t.Errorf("Classify(%q) = %d, want %d", tc.typ, got, tc.want)
		}
	}
}

func TestLogPriorityDoesNotOccupyQueue(t *testing.T) {
	mb := New("self", Options{})

	status := queued("m-1", "n-1")
	status.Type = models.TypeStatusUpdate
	if accepted, reason := mb.Handle(status); !accepted {
		t.Fatalf("status update rejected: %s", reason)
	}

	if depth := mb.QueueDepth(); depth != 0 {
		t.Errorf("expected queue depth 0, got %d", depth)
	}
	if got := len(mb.Activity()); got != 1 {
		t.Errorf("expected 1 activity record, got %d", got)
	}
}

func TestShutdownDrainsQueue(t *testing.T) {
	mb := New("self", Options{})

	for i := 0; i < 5; i++ {
		mb.Handle(queued(fmt.Sprintf("m-%d", i), fmt.Sprintf("n-%d", i)))
	}
	if depth := mb.QueueDepth(); depth != 5 {
		t.Fatalf("expected queue depth 5, got %d", depth)
	}

	var calls int
	mb.OnShutdown(func() { calls++ })

	shutdown := queued("m-shutdown", "n-shutdown")
	shutdown.Type = models.TypeShutdown
	if accepted, reason := mb.Handle(shutdown); !accepted {
		t.Fatalf("shutdown rejected: %s", reason)
	}

	if calls != 1 {
		t.Errorf("expected 1 shutdown callback call, got %d", calls)
	}
	if depth := mb.QueueDepth(); depth != 0 {
		t.Errorf("expected queue depth 0 after shutdown, got %d", depth)
	}
}

func TestInterruptPreemptsQueuedWork(t *testing.T) {
	mb := New("self", Options{})

	mb.Handle(queued("m-1", "n-1"))
	mb.Handle(queued("m-2", "n-2"))

	var interrupted []models.Message
	mb.OnInterrupt(func(msg models.Message) { interrupted = append(interrupted, msg) })

	intr := queued("m-int", "n-int")
	intr.Type = models.TypeInterrupt
	if accepted, _ := mb.Handle(intr); !accepted {
		t.Fatal("interrupt rejected")
	}

	// Interrupt ran immediately; the queued work never jumps ahead of it.
	if len(interrupted) != 1 || interrupted[0].ID != "m-int" {
		t.Fatalf("interrupt callback not invoked immediately: %v", interrupted)
	}
	if depth := mb.QueueDepth(); depth != 0 {
		t.Errorf("expected queue drained after interrupt, got depth %d", depth)
	}
}

func TestNextReturnsFIFO(t *testing.T) {
	mb := New("self", Options{})

	for i := 0; i < 3; i++ {
		mb.Handle(queued(fmt.Sprintf("m-%d", i), fmt.Sprintf("n-%d", i)))
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		msg, err := mb.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		want := fmt.Sprintf("m-%d", i)
		if msg.ID != want {
			t.Errorf("expected %s, got %s", want, msg.ID)
		}
	}
}

func TestNextBlocksUntilMessage(t *testing.T) {
	mb := New("self", Options{})

	done := make(chan models.Message, 1)
	go func() {
		msg, err := mb.Next(context.Background())
		if err != nil {
			return
		}
		done <- msg
	}()

	// Give the consumer a moment to block.
	time.Sleep(20 * time.Millisecond)
	mb.Handle(queued("m-1", "n-1"))

	select {
	case msg := <-done:
		if msg.ID != "m-1" {
			t.Errorf("expected m-1, got %s", msg.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not return after message was queued")
	}
}

func TestNextHonorsContext(t *testing.T) {
	mb := New("self", Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := mb.Next(ctx); err == nil {
		t.Fatal("expected context error from Next on empty mailbox")
	}
}

func TestRecentRingIsBounded(t *testing.T) {
	mb := New("self", Options{RecentSize: 3})

	for i := 0; i < 10; i++ {
		mb.Handle(queued(fmt.Sprintf("m-%d", i), fmt.Sprintf("n-%d", i)))
	}

	recent := mb.Recent()
	if len(recent) != 3 {
		t.Fatalf("expected 3 recent messages, got %d", len(recent))
	}
	if recent[0].ID != "m-7" || recent[2].ID != "m-9" {
		t.Errorf("expected last three messages, got %s..%s", recent[0].ID, recent[2].ID)
	}
}

func TestDedupSetEvictsOldestEntries(t *testing.T) {
	mb := New("self", Options{DedupSize: 2, QueueSize: 100})

	mb.Handle(queued("m-1", "n-1"))
	mb.Handle(queued("m-2", "n-2"))
	mb.Handle(queued("m-3", "n-3"))

	// m-1 has been evicted from the dedup window, so a redelivery is
	// accepted again. The bound trades perfect dedup for bounded memory.
	if accepted, _ := mb.Handle(queued("m-1", "n-1")); !accepted {
		t.Error("expected evicted id to be accepted again")
	}

	// m-3 is still inside the window.
	if accepted, _ := mb.Handle(queued("m-3", "n-3")); accepted {
		t.Error("expected in-window duplicate to be rejected")
	}
}

func TestQueueFullRejects(t *testing.T) {
	mb := New("self", Options{QueueSize: 2})

	mb.Handle(queued("m-1", "n-1"))
	mb.Handle(queued("m-2", "n-2"))

	accepted, reason := mb.Handle(queued("m-3", "n-3"))
	if accepted {
		t.Fatal("expected rejection when queue is full")
	}
	if reason != ReasonQueueFull {
		t.Errorf("expected %q, got %q", ReasonQueueFull, reason)
	}
}
