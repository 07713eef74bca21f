package monitor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/norm/focusd/internal/control"
	"github.com/norm/focusd/internal/escalation"
	"github.com/norm/focusd/internal/judge"
	"github.com/norm/focusd/internal/ledger"
	"github.com/norm/focusd/internal/metrics"
	"github.com/norm/focusd/internal/notify"
	"github.com/norm/focusd/internal/sampler"
	"github.com/norm/focusd/internal/sinks"
	"github.com/norm/focusd/internal/verdict"
	"github.com/norm/focusd/internal/window"
)

type fakeClock struct {
	now     time.Time
	sleeps  []time.Duration
	onSleep func(d time.Duration)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	if c.onSleep != nil {
		c.onSleep(d)
	}
	return ctx.Err()
}

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

type recordingDispatcher struct {
	stages   []escalation.Stage
	contexts []notify.Context
}

func (r *recordingDispatcher) Dispatch(stage escalation.Stage, c notify.Context) {
	r.stages = append(r.stages, stage)
	r.contexts = append(r.contexts, c)
}

// scriptedJudge returns verdicts in order, then repeats the last one.
func scriptedJudge(vs ...verdict.Verdict) judge.Judge {
	i := 0
	return judge.Func(func(ctx context.Context, text string) (judge.Result, error) {
		v := vs[len(vs)-1]
		if i < len(vs) {
			v = vs[i]
		}
		i++
		return judge.Result{Verdict: v, Raw: "answer: " + string(v)}, nil
	})
}

func repeat(v verdict.Verdict, n int) []verdict.Verdict {
	out := make([]verdict.Verdict, n)
	for i := range out {
		out[i] = v
	}
	return out
}

type harness struct {
	loop       *Loop
	clock      *fakeClock
	dispatcher *recordingDispatcher
	state      *control.State
	inbox      *control.Inbox
	window     *window.Window
	ledger     *ledger.Ledger
	policy     *escalation.Policy
	metrics    *metrics.Metrics
	stateDir   string
	results    []CycleResult
}

func newHarness(t *testing.T, j judge.Judge, opts Options) *harness {
	t.Helper()
	w, err := window.New(15)
	if err != nil {
		t.Fatalf("window.New: %v", err)
	}
	th, err := escalation.ResolveThresholds(15, escalation.DefaultStage2Fraction, escalation.DefaultStage3Fraction)
	if err != nil {
		t.Fatalf("ResolveThresholds: %v", err)
	}
	dir := t.TempDir()
	h := &harness{
		clock:      newFakeClock(),
		dispatcher: &recordingDispatcher{},
		state:      control.NewState(),
		inbox:      control.NewInbox(0),
		window:     w,
		ledger:     ledger.New(),
		policy:     escalation.NewPolicy(th),
		metrics:    metrics.New(dir, "test-run"),
		stateDir:   dir,
	}
	if opts.Interval == 0 {
		opts.Interval = 10 * time.Second
	}
	user := opts.OnCycle
	opts.OnCycle = func(r CycleResult) {
		h.results = append(h.results, r)
		if user != nil {
			user(r)
		}
	}
	loop, err := New(opts, Deps{
		Sampler:    sampler.Func(func(ctx context.Context) (string, error) { return "reddit.com front page", nil }),
		Judge:      j,
		Window:     h.window,
		Ledger:     h.ledger,
		Policy:     h.policy,
		State:      h.state,
		Inbox:      h.inbox,
		Dispatcher: h.dispatcher,
		Sinks:      sinks.New(dir, filepath.Join(dir, "log")),
		Metrics:    h.metrics,
		Clock:      h.clock,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.loop = loop
	return h
}

func TestTwentyUnproductiveCycles(t *testing.T) {
	var statuses []string
	var h *harness
	h = newHarness(t, scriptedJudge(verdict.Unproductive), Options{
		MaxCycles:     20,
		Interval:      10 * time.Second,
		BreakDuration: 10 * time.Minute,
		Distractions:  []string{"Reddit"},
		OnCycle: func(CycleResult) {
			status, err := sinks.ReadStatus(h.stateDir)
			if err != nil {
				t.Fatalf("ReadStatus: %v", err)
			}
			statuses = append(statuses, status)
		},
	})

	if err := h.loop.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(h.results) != 20 {
		t.Fatalf("expected 20 checks, got %d", len(h.results))
	}
	for i, r := range h.results {
		n := i + 1
		var want escalation.Stage
		switch {
		case n <= 5:
			want = escalation.Stage1
		case n <= 11:
			want = escalation.Stage2
		case n == 12:
			want = escalation.Stage3
		default:
			want = escalation.Stage3Repeated
		}
		if r.Stage != want {
			t.Errorf("cycle %d: stage %s, want %s", n, r.Stage, want)
		}
		if h.dispatcher.stages[i] != want {
			t.Errorf("cycle %d: dispatched %s, want %s", n, h.dispatcher.stages[i], want)
		}
		if statuses[i] != "unproductive" {
			t.Errorf("cycle %d: status %q", n, statuses[i])
		}
	}

	if got := h.ledger.Unproductive(); got != 200*time.Second {
		t.Fatalf("expected 200s unproductive, got %s", got)
	}
	if got := h.ledger.Active(); got != 200*time.Second {
		t.Fatalf("expected 200s active, got %s", got)
	}
	if got := h.dispatcher.contexts[0].Suggestions; len(got) != 1 || got[0] != "Reddit" {
		t.Fatalf("expected Reddit suggestion, got %v", got)
	}

	snap, err := metrics.Load(h.stateDir)
	if err != nil {
		t.Fatalf("metrics.Load: %v", err)
	}
	if snap.Cycles != 20 || snap.Stage != "stage3_repeated" {
		t.Fatalf("unexpected snapshot cycles=%d stage=%s", snap.Cycles, snap.Stage)
	}
}

func TestProductiveResetKeepsHistory(t *testing.T) {
	vs := append(repeat(verdict.Unproductive, 12), verdict.Productive, verdict.Unproductive)
	h := newHarness(t, scriptedJudge(vs...), Options{MaxCycles: 14})

	if err := h.loop.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if h.results[11].Stage != escalation.Stage3 {
		t.Fatalf("expected Stage3 after 12 unproductive, got %s", h.results[11].Stage)
	}
	if h.results[12].Stage != escalation.None {
		t.Fatalf("expected reset to None on productive, got %s", h.results[12].Stage)
	}
	if h.window.Len() != 14 {
		t.Fatalf("expected window to keep history, len=%d", h.window.Len())
	}
	last := h.results[13]
	if last.Density != 13 || last.Stage != escalation.Stage3 {
		t.Fatalf("expected density 13 at Stage3, got %d at %s", last.Density, last.Stage)
	}
	// The productive check does not dispatch.
	if len(h.dispatcher.stages) != 13 {
		t.Fatalf("expected 13 dispatches, got %d", len(h.dispatcher.stages))
	}
}

func TestJudgeFailureIsUnknown(t *testing.T) {
	calls := 0
	j := judge.Func(func(ctx context.Context, text string) (judge.Result, error) {
		calls++
		if calls == 3 {
			return judge.Result{Verdict: verdict.Unknown, Raw: "maybe"}, &verdict.JudgeError{Raw: "maybe", Err: verdict.ErrUnparseable}
		}
		return judge.Result{Verdict: verdict.Unproductive}, nil
	})
	h := newHarness(t, j, Options{MaxCycles: 4})

	if err := h.loop.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	r := h.results[2]
	if r.Verdict != verdict.Unknown {
		t.Fatalf("expected Unknown, got %s", r.Verdict)
	}
	if r.Stage != escalation.Stage1 || r.Density != 2 {
		t.Fatalf("unknown must hold the stage: got %s density %d", r.Stage, r.Density)
	}
	if h.window.Len() != 4 {
		t.Fatalf("unknown verdict must still enter the window, len=%d", h.window.Len())
	}
	if h.ledger.Active() != 40*time.Second || h.ledger.Unproductive() != 30*time.Second {
		t.Fatalf("unexpected ledger %+v", h.ledger.Snapshot())
	}
	if len(h.dispatcher.stages) != 3 {
		t.Fatalf("unknown must not dispatch, got %d dispatches", len(h.dispatcher.stages))
	}
	if got := h.metrics.Snapshot().JudgeFailures; got != 1 {
		t.Fatalf("expected 1 judge failure, got %d", got)
	}
	status, _ := sinks.ReadStatus(h.stateDir)
	if status != "unproductive" {
		t.Fatalf("expected status unproductive, got %q", status)
	}
}

func TestSamplingFailureIsUnknown(t *testing.T) {
	h := newHarness(t, scriptedJudge(verdict.Productive), Options{MaxCycles: 1})
	h.loop.Sampler = sampler.Func(func(ctx context.Context) (string, error) {
		return "", &verdict.SamplingError{Err: verdict.ErrEmptySample}
	})

	if err := h.loop.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.results[0].Verdict != verdict.Unknown {
		t.Fatalf("expected Unknown, got %s", h.results[0].Verdict)
	}
	if got := h.metrics.Snapshot().SamplingFailures; got != 1 {
		t.Fatalf("expected 1 sampling failure, got %d", got)
	}
}

func TestBreakClearsWindowAndResetsStage(t *testing.T) {
	var h *harness
	var modeDuringBreak control.Mode
	h = newHarness(t, scriptedJudge(verdict.Unproductive), Options{
		MaxCycles:     8,
		BreakDuration: 10 * time.Minute,
		OnCycle: func(r CycleResult) {
			if r.Cycle == 7 {
				h.inbox.Post(control.Event{Response: control.ResponseBreak, Source: "test"})
			}
		},
	})
	h.clock.onSleep = func(d time.Duration) {
		if d == 10*time.Minute {
			modeDuringBreak = h.state.Mode()
		}
	}

	if err := h.loop.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if h.results[6].Stage != escalation.Stage2 {
		t.Fatalf("expected Stage2 before the break, got %s", h.results[6].Stage)
	}
	if modeDuringBreak != control.OnBreak {
		t.Fatalf("expected OnBreak during break, got %q", modeDuringBreak)
	}
	after := h.results[7]
	if after.Density != 1 || after.Stage != escalation.Stage1 {
		t.Fatalf("expected fresh window after break, got density %d stage %s", after.Density, after.Stage)
	}
	if h.state.Mode() != control.Running {
		t.Fatalf("expected Running after break, got %s", h.state.Mode())
	}
	// Break time is not checked time.
	if h.ledger.Active() != 80*time.Second {
		t.Fatalf("expected 80s active, got %s", h.ledger.Active())
	}
	if got := h.metrics.Snapshot().Breaks; got != 1 {
		t.Fatalf("expected 1 break, got %d", got)
	}
}

func TestDisableTerminates(t *testing.T) {
	var h *harness
	h = newHarness(t, scriptedJudge(verdict.Unproductive), Options{
		MaxCycles: 10,
		OnCycle: func(r CycleResult) {
			if r.Cycle == 2 {
				h.inbox.Post(control.Event{Response: control.ResponseDisable, Source: "test"})
				h.inbox.Post(control.Event{Response: control.ResponseBreak, Source: "test"})
			}
		},
	})

	if err := h.loop.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.loop.Checks() != 2 {
		t.Fatalf("expected loop to stop after 2 checks, got %d", h.loop.Checks())
	}
	if h.state.Mode() != control.Disabled {
		t.Fatalf("expected Disabled, got %s", h.state.Mode())
	}
	if got := h.metrics.Snapshot().Breaks; got != 0 {
		t.Fatalf("break must not start after disable, got %d breaks", got)
	}
}

func TestSlowCheckNeverSleepsNegative(t *testing.T) {
	var h *harness
	h = newHarness(t, scriptedJudge(verdict.Productive), Options{MaxCycles: 3, Interval: 10 * time.Second})
	h.loop.Sampler = sampler.Func(func(ctx context.Context) (string, error) {
		h.clock.advance(25 * time.Second)
		return "main.go", nil
	})

	if err := h.loop.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, d := range h.clock.sleeps {
		if d <= 0 {
			t.Fatalf("slept non-positive duration %s", d)
		}
	}
	if len(h.clock.sleeps) != 0 {
		t.Fatalf("expected no sleeps when processing exceeds interval, got %v", h.clock.sleeps)
	}
	if h.ledger.Productive() != 75*time.Second {
		t.Fatalf("expected actual elapsed 75s recorded, got %s", h.ledger.Productive())
	}
}

func TestCancelEndsCleanly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := newHarness(t, scriptedJudge(verdict.Productive), Options{})
	h.clock.onSleep = func(time.Duration) { cancel() }

	if err := h.loop.Run(ctx); err != nil {
		t.Fatalf("expected nil on cancel, got %v", err)
	}
	if h.loop.Checks() != 1 {
		t.Fatalf("expected 1 check before cancel, got %d", h.loop.Checks())
	}
	if got := h.ledger.Productive(); got != 10*time.Second {
		t.Fatalf("expected the interrupted check's 10s recorded, got %s", got)
	}
}

func TestNewRequiresDeps(t *testing.T) {
	if _, err := New(Options{}, Deps{}); err == nil {
		t.Fatalf("expected error for missing deps")
	}
}
