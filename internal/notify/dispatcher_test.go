package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/norm/focusd/internal/control"
	"github.com/norm/focusd/internal/escalation"
	eventlog "github.com/norm/focusd/internal/log"
)

type fakeSurface struct {
	mu       sync.Mutex
	notices  []string
	prompts  []string
	overlays []Rect
	answer   string
	err      error
	release  chan struct{}
}

func (f *fakeSurface) Notify(ctx context.Context, title, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, message)
	return f.err
}

func (f *fakeSurface) Prompt(ctx context.Context, title, message string, buttons []string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, message)
	release := f.release
	f.mu.Unlock()
	if release != nil {
		<-release
	}
	return f.answer, f.err
}

func (f *fakeSurface) Overlay(ctx context.Context, r Rect, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overlays = append(f.overlays, r)
	return f.err
}

type countingRecorder struct {
	mu        sync.Mutex
	dispatch  []string
	failures  int
	responses []string
}

func (c *countingRecorder) RecordDispatch(stage string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dispatch = append(c.dispatch, stage)
}

func (c *countingRecorder) RecordPresentationFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
}

func (c *countingRecorder) RecordResponse(response string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, response)
}

func newTestDispatcher(s Surface, inbox *control.Inbox, rec Recorder) *Dispatcher {
	return NewDispatcher(context.Background(), s, inbox, nil, rec, Options{
		MinDisplayMinutes: 10,
		NukeWindows:       8,
		ScreenWidth:       1440,
		ScreenHeight:      900,
		Seed:              42,
	})
}

func TestStage1SendsNotice(t *testing.T) {
	s := &fakeSurface{}
	d := newTestDispatcher(s, control.NewInbox(0), nil)

	d.Dispatch(escalation.Stage1, Context{ProductiveMinutes: 3, Density: 1, WindowSize: 15})
	d.Wait()

	if len(s.notices) != 1 || s.notices[0] != MessageNotice {
		t.Fatalf("unexpected notices %q", s.notices)
	}
	if len(s.prompts) != 0 {
		t.Fatalf("stage1 must not prompt")
	}
}

func TestNoticeMessageMinutesThreshold(t *testing.T) {
	below := NoticeMessage(Context{ProductiveMinutes: 9}, 10)
	if strings.Contains(below, "minutes") {
		t.Fatalf("minutes shown below threshold: %q", below)
	}
	at := NoticeMessage(Context{ProductiveMinutes: 10}, 10)
	if !strings.Contains(at, "productive for 10 minutes") {
		t.Fatalf("minutes missing at threshold: %q", at)
	}
	withTabs := NoticeMessage(Context{Suggestions: []string{"Reddit", "YouTube"}}, 10)
	if !strings.HasSuffix(withTabs, "Consider closing: Reddit, YouTube.") {
		t.Fatalf("suggestions missing: %q", withTabs)
	}
}

func TestPromptAnswerPostedToInbox(t *testing.T) {
	s := &fakeSurface{answer: ButtonBreak}
	inbox := control.NewInbox(0)
	rec := &countingRecorder{}
	d := newTestDispatcher(s, inbox, rec)

	d.Dispatch(escalation.Stage2, Context{Density: 6, WindowSize: 15})
	d.Wait()

	state := control.NewState()
	events := inbox.Drain(state)
	if len(events) != 1 || events[0].Response != control.ResponseBreak {
		t.Fatalf("expected one break response, got %+v", events)
	}
	if !state.ConsumeBreakRequest() {
		t.Fatalf("expected break request applied")
	}
	if len(rec.responses) != 1 || rec.responses[0] != "break" {
		t.Fatalf("unexpected recorded responses %v", rec.responses)
	}
	if !strings.Contains(s.prompts[0], "6 of the last 15") {
		t.Fatalf("unexpected prompt %q", s.prompts[0])
	}
}

func TestDismissedPromptPostsNothing(t *testing.T) {
	s := &fakeSurface{answer: ""}
	inbox := control.NewInbox(0)
	d := newTestDispatcher(s, inbox, nil)

	d.Dispatch(escalation.Stage3, Context{Density: 12, WindowSize: 15})
	d.Wait()

	if events := inbox.Drain(control.NewState()); len(events) != 0 {
		t.Fatalf("expected empty inbox, got %+v", events)
	}
}

func TestDispatchDoesNotBlockOnOpenPrompt(t *testing.T) {
	s := &fakeSurface{answer: ButtonDisable, release: make(chan struct{})}
	inbox := control.NewInbox(0)
	d := newTestDispatcher(s, inbox, nil)

	d.Dispatch(escalation.Stage2, Context{Density: 6, WindowSize: 15})
	// A second prompt while the first is unanswered is skipped.
	d.Dispatch(escalation.Stage2, Context{Density: 7, WindowSize: 15})
	close(s.release)
	d.Wait()

	if len(s.prompts) != 1 {
		t.Fatalf("expected 1 prompt while one was open, got %d", len(s.prompts))
	}
	state := control.NewState()
	inbox.Drain(state)
	if !state.IsDisabled() {
		t.Fatalf("expected disable applied")
	}
}

func TestUrgentPromptShownOverOpenPrompt(t *testing.T) {
	s := &fakeSurface{answer: ButtonIgnore, release: make(chan struct{})}
	d := newTestDispatcher(s, control.NewInbox(0), nil)

	d.Dispatch(escalation.Stage2, Context{Density: 11, WindowSize: 15})
	d.Dispatch(escalation.Stage3, Context{Density: 12, WindowSize: 15})
	// Less urgent than the open Stage3 prompt.
	d.Dispatch(escalation.Stage2, Context{Density: 11, WindowSize: 15})
	close(s.release)
	d.Wait()

	if len(s.prompts) != 2 {
		t.Fatalf("expected stage2 and stage3 prompts, got %q", s.prompts)
	}
	urgent := fmt.Sprintf(MessageUrgent, 12, 15)
	if s.prompts[0] != urgent && s.prompts[1] != urgent {
		t.Fatalf("urgent prompt never presented: %q", s.prompts)
	}

	// Both answered, so the next prompt opens again.
	d.Dispatch(escalation.Stage2, Context{Density: 6, WindowSize: 15})
	d.Wait()
	if len(s.prompts) != 3 {
		t.Fatalf("expected prompt after earlier ones closed, got %d", len(s.prompts))
	}
}

func TestStage3RepeatedNukesWithinBounds(t *testing.T) {
	s := &fakeSurface{answer: ButtonIgnore}
	d := newTestDispatcher(s, control.NewInbox(0), nil)

	d.Dispatch(escalation.Stage3Repeated, Context{Density: 13, WindowSize: 15})
	d.Wait()

	if len(s.overlays) != 8 {
		t.Fatalf("expected 8 overlays, got %d", len(s.overlays))
	}
	for _, r := range s.overlays {
		if r.X < 0 || r.Y < 0 || r.X+r.W > 1440 || r.Y+r.H > 900 {
			t.Fatalf("overlay out of bounds: %+v", r)
		}
	}
	if len(s.prompts) != 1 {
		t.Fatalf("expected prompt alongside nuke, got %d", len(s.prompts))
	}
}

func TestPresentationFailureSwallowed(t *testing.T) {
	s := &fakeSurface{err: errors.New("no display")}
	rec := &countingRecorder{}
	dir := t.TempDir()
	d := NewDispatcher(context.Background(), s, control.NewInbox(0), eventlog.NewEventLog(dir), rec, Options{
		NukeWindows: 2, ScreenWidth: 800, ScreenHeight: 600, Seed: 1,
	})

	d.Dispatch(escalation.Stage3Repeated, Context{Density: 14, WindowSize: 15})
	d.Wait()

	if rec.failures != 3 {
		t.Fatalf("expected 3 presentation failures, got %d", rec.failures)
	}
	if len(rec.dispatch) != 1 || rec.dispatch[0] != "stage3_repeated" {
		t.Fatalf("unexpected dispatch record %v", rec.dispatch)
	}
}

func TestResponseFor(t *testing.T) {
	cases := map[string]control.Response{
		ButtonDisable: control.ResponseDisable,
		ButtonBreak:   control.ResponseBreak,
		ButtonIgnore:  control.ResponseIgnore,
		"":            control.ResponseNone,
		"Cancel":      control.ResponseNone,
	}
	for button, want := range cases {
		if got := ResponseFor(button); got != want {
			t.Errorf("ResponseFor(%q) = %q, want %q", button, got, want)
		}
	}
}
