package control

import (
	"sync"
	"testing"
)

func TestConsumeBreakRequestOnce(t *testing.T) {
	s := NewState()
	s.RequestBreak()
	if !s.ConsumeBreakRequest() {
		t.Fatalf("expected first consume to return true")
	}
	if s.ConsumeBreakRequest() {
		t.Fatalf("expected second consume to return false")
	}
}

func TestBreakAfterDisableStaysDisabled(t *testing.T) {
	s := NewState()
	s.RequestDisable()
	s.RequestBreak()

	if !s.IsDisabled() {
		t.Fatalf("expected disabled")
	}
	if s.Mode() != Disabled {
		t.Fatalf("expected mode disabled, got %s", s.Mode())
	}
	if s.ConsumeBreakRequest() {
		t.Fatalf("expected break request to be ignored once disabled")
	}
	s.BeginBreak()
	s.EndBreak()
	if s.Mode() != Disabled {
		t.Fatalf("expected break transitions to leave disabled, got %s", s.Mode())
	}
}

func TestDisableClearsPendingBreak(t *testing.T) {
	s := NewState()
	s.RequestBreak()
	s.RequestDisable()
	if s.ConsumeBreakRequest() {
		t.Fatalf("expected pending break discarded by disable")
	}
}

func TestBreakModeTransitions(t *testing.T) {
	s := NewState()
	s.BeginBreak()
	if s.Mode() != OnBreak {
		t.Fatalf("expected on_break, got %s", s.Mode())
	}
	s.EndBreak()
	if s.Mode() != Running {
		t.Fatalf("expected running, got %s", s.Mode())
	}
}

func TestConcurrentWritersAndReader(t *testing.T) {
	s := NewState()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i == 25 {
				s.RequestDisable()
				return
			}
			s.RequestBreak()
		}(i)
	}
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				_ = s.Mode()
				_ = s.ConsumeBreakRequest()
			}
		}
	}()
	wg.Wait()
	close(done)

	if !s.IsDisabled() || s.Mode() != Disabled {
		t.Fatalf("expected disabled after concurrent writes, got %s", s.Mode())
	}
}

func TestInboxDrainAppliesInOrder(t *testing.T) {
	s := NewState()
	in := NewInbox(4)
	in.Post(Event{Response: ResponseIgnore, Source: "stage2"})
	in.Post(Event{Response: ResponseDisable, Source: "stage2"})
	in.Post(Event{Response: ResponseBreak, Source: "stage3"})

	applied := in.Drain(s)
	if len(applied) != 2 {
		t.Fatalf("expected 2 applied events (ignore dropped), got %d", len(applied))
	}
	if applied[0].Response != ResponseDisable || applied[1].Response != ResponseBreak {
		t.Fatalf("unexpected order: %+v", applied)
	}
	if s.Mode() != Disabled {
		t.Fatalf("expected later break not to revert disable, got %s", s.Mode())
	}
	if got := in.Drain(s); len(got) != 0 {
		t.Fatalf("expected empty drain, got %d", len(got))
	}
}

func TestInboxBreakDrained(t *testing.T) {
	s := NewState()
	in := NewInbox(0)
	in.Post(Event{Response: ResponseBreak, Source: "control-file"})
	in.Drain(s)
	if !s.ConsumeBreakRequest() {
		t.Fatalf("expected break request after drain")
	}
}

func TestInboxFullKeepsDisable(t *testing.T) {
	in := NewInbox(1)
	in.Post(Event{Response: ResponseBreak, Source: "controlfile"})
	// Nothing drains between these posts; Post must return without blocking.
	in.Post(Event{Response: ResponseDisable, Source: "prompt"})
	in.Post(Event{Response: ResponseBreak, Source: "controlfile"})

	s := NewState()
	applied := in.Drain(s)
	if len(applied) != 2 {
		t.Fatalf("expected break and parked disable, got %+v", applied)
	}
	if applied[1].Response != ResponseDisable {
		t.Fatalf("expected disable delivered last, got %+v", applied)
	}
	if !s.IsDisabled() {
		t.Fatalf("expected disable to survive a full inbox")
	}
	if got := in.Drain(s); len(got) != 0 {
		t.Fatalf("expected parked disable delivered once, got %d", len(got))
	}
}
