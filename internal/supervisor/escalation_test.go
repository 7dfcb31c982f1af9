package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chrysochos/society/pkg/models"
)

func escalationRequest(id string) *models.EscalationRequest {
	return &models.EscalationRequest{
		ID:        id,
		Priority:  models.PriorityHigh,
		Question:  "proceed?",
		Timestamp: time.Now().UTC(),
	}
}

func TestEscalationRaiseResolvesWithAnswer(t *testing.T) {
	h := NewEscalationHandler(EscalationConfig{Timeout: 5 * time.Second}, NopLogger())

	answered := make(chan string, 1)
	errs := make(chan error, 1)
	req := escalationRequest("esc-1")
	go func() {
		resp, err := h.Raise(context.Background(), req)
		if err != nil {
			errs <- err
			return
		}
		answered <- resp
	}()

	// Respond returns ErrNoEscalation until Raise has installed itself.
	deadline := time.After(2 * time.Second)
	for {
		err := h.Respond("ship it")
		if err == nil {
			break
		}
		if !errors.Is(err, ErrNoEscalation) {
			t.Fatalf("respond: %v", err)
		}
		select {
		case <-deadline:
			t.Fatal("escalation never became respondable")
		case <-time.After(5 * time.Millisecond):
		}
	}

	select {
	case resp := <-answered:
		if resp != "ship it" {
			t.Fatalf("response = %q, want %q", resp, "ship it")
		}
	case err := <-errs:
		t.Fatalf("raise: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("raise did not resolve")
	}
	if req.Response != "ship it" || req.RespondedAt == nil {
		t.Fatalf("answer not recorded on request: %+v", req)
	}
	if h.Pending() != nil {
		t.Fatal("resolved escalation still pending")
	}
}

func TestRespondWithoutEscalationFails(t *testing.T) {
	h := NewEscalationHandler(EscalationConfig{}, NopLogger())
	if err := h.Respond("anything"); !errors.Is(err, ErrNoEscalation) {
		t.Fatalf("err = %v, want ErrNoEscalation", err)
	}
}

func TestStaleAnswerDoesNotResolveNextEscalation(t *testing.T) {
	h := NewEscalationHandler(EscalationConfig{Policy: PolicyWait}, NopLogger())

	// Abandon the first escalation, capturing the channel it was
	// listening on before it goes.
	firstCtx, abandonFirst := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := h.Raise(firstCtx, escalationRequest("esc-1"))
		firstDone <- err
	}()

	var staleCh chan string
	deadline := time.After(2 * time.Second)
	for staleCh == nil {
		h.mu.RLock()
		staleCh = h.responseCh
		h.mu.RUnlock()
		if staleCh == nil {
			select {
			case <-deadline:
				t.Fatal("first escalation never installed its channel")
			case <-time.After(time.Millisecond):
			}
		}
	}
	abandonFirst()
	select {
	case err := <-firstDone:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("first raise: %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first escalation did not abandon")
	}

	// An answer that lost the race lands in the abandoned channel.
	staleCh <- "stale answer"

	secondReq := escalationRequest("esc-2")
	secondResp := make(chan string, 1)
	secondErr := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		resp, err := h.Raise(ctx, secondReq)
		if err != nil {
			secondErr <- err
			return
		}
		secondResp <- resp
	}()

	deadline = time.After(2 * time.Second)
	for h.Pending() == nil {
		select {
		case <-deadline:
			t.Fatal("second escalation never became pending")
		case <-time.After(time.Millisecond):
		}
	}

	// The stale answer must not have resolved it.
	select {
	case resp := <-secondResp:
		t.Fatalf("second escalation resolved with %q before anyone answered", resp)
	case err := <-secondErr:
		t.Fatalf("second raise: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	if err := h.Respond("fresh answer"); err != nil {
		t.Fatalf("respond: %v", err)
	}
	select {
	case resp := <-secondResp:
		if resp != "fresh answer" {
			t.Fatalf("response = %q, want %q", resp, "fresh answer")
		}
	case err := <-secondErr:
		t.Fatalf("second raise: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("second escalation did not resolve on the fresh answer")
	}
	if secondReq.Response != "fresh answer" {
		t.Fatalf("recorded response = %q", secondReq.Response)
	}
}
