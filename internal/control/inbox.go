package control

import (
	"log"
	"sync/atomic"
	"time"
)

// Response is the user's answer to an intervention.
type Response string

const (
	ResponseNone    Response = ""
	ResponseIgnore  Response = "ignore"
	ResponseBreak   Response = "break"
	ResponseDisable Response = "disable"
)

// Event is a response posted by an intervention or an external control.
type Event struct {
	Response Response
	Source   string
	At       time.Time
}

const defaultInboxSize = 64

// Inbox is a single-consumer queue of responses. Any goroutine may Post; only
// the monitor loop drains it.
type Inbox struct {
	events chan Event
	// overflowDisable holds a disable that arrived while the buffer was full.
	overflowDisable atomic.Pointer[Event]
}

// NewInbox creates an inbox with the given buffer size.
func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = defaultInboxSize
	}
	return &Inbox{events: make(chan Event, size)}
}

// Post enqueues a response without blocking. Disable requests are never
// dropped: if the buffer is full the disable is parked and delivered by the
// next Drain.
func (i *Inbox) Post(evt Event) {
	if evt.Response == ResponseNone || evt.Response == ResponseIgnore {
		return
	}
	if evt.At.IsZero() {
		evt.At = time.Now()
	}
	select {
	case i.events <- evt:
	default:
		if evt.Response == ResponseDisable {
			i.overflowDisable.CompareAndSwap(nil, &evt)
			return
		}
		log.Printf("[control] inbox full, dropping %s from %s", evt.Response, evt.Source)
	}
}

// Drain applies every queued response to s and returns them in arrival order.
func (i *Inbox) Drain(s *State) []Event {
	var applied []Event
	for {
		select {
		case evt := <-i.events:
			Apply(s, evt.Response)
			applied = append(applied, evt)
		default:
			if evt := i.overflowDisable.Swap(nil); evt != nil {
				Apply(s, evt.Response)
				applied = append(applied, *evt)
			}
			return applied
		}
	}
}

// Apply maps a response onto the state's writer operations.
func Apply(s *State, r Response) {
	switch r {
	case ResponseDisable:
		s.RequestDisable()
	case ResponseBreak:
		s.RequestBreak()
	}
}
