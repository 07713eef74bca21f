// Package monitor runs the check loop: sample, judge, escalate, sleep.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/norm/focusd/internal/control"
	"github.com/norm/focusd/internal/escalation"
	"github.com/norm/focusd/internal/history"
	"github.com/norm/focusd/internal/judge"
	"github.com/norm/focusd/internal/ledger"
	eventlog "github.com/norm/focusd/internal/log"
	"github.com/norm/focusd/internal/logging"
	"github.com/norm/focusd/internal/metrics"
	"github.com/norm/focusd/internal/notify"
	"github.com/norm/focusd/internal/sampler"
	"github.com/norm/focusd/internal/sanitize"
	"github.com/norm/focusd/internal/sinks"
	"github.com/norm/focusd/internal/verdict"
	"github.com/norm/focusd/internal/window"
)

// Dispatcher presents the intervention for a stage without blocking.
type Dispatcher interface {
	Dispatch(stage escalation.Stage, c notify.Context)
}

// HistoryWriter stores one row per check.
type HistoryWriter interface {
	Insert(ctx context.Context, r history.Record) error
}

// Options are the loop's tunables.
type Options struct {
	Interval      time.Duration
	BreakDuration time.Duration
	// MaxCycles bounds the number of checks; 0 runs until disabled or
	// cancelled.
	MaxCycles    int
	Distractions []string
	RunID        string
	// OnCycle, when set, is called at the end of every check.
	OnCycle func(CycleResult)
}

// Deps are the loop's collaborators. Sinks, History, Metrics and Events may
// be nil.
type Deps struct {
	Sampler    sampler.Sampler
	Sanitizer  *sanitize.Sanitizer
	Judge      judge.Judge
	Window     *window.Window
	Ledger     *ledger.Ledger
	Policy     *escalation.Policy
	State      *control.State
	Inbox      *control.Inbox
	Dispatcher Dispatcher
	Sinks      *sinks.Files
	History    HistoryWriter
	Metrics    *metrics.Metrics
	Events     *eventlog.EventLog
	Clock      Clock
}

// CycleResult describes one completed check.
type CycleResult struct {
	Cycle      int
	Verdict    verdict.Verdict
	Stage      escalation.Stage
	Density    int
	Processing time.Duration
	Elapsed    time.Duration
}

// Loop owns the window, ledger and policy. Only Run's goroutine touches them.
type Loop struct {
	opts Options
	Deps
	checks int
}

// New validates deps and creates a loop.
func New(opts Options, deps Deps) (*Loop, error) {
	switch {
	case deps.Sampler == nil:
		return nil, errors.New("monitor: sampler required")
	case deps.Judge == nil:
		return nil, errors.New("monitor: judge required")
	case deps.Window == nil || deps.Ledger == nil || deps.Policy == nil:
		return nil, errors.New("monitor: window, ledger and policy required")
	case deps.State == nil || deps.Inbox == nil:
		return nil, errors.New("monitor: control state and inbox required")
	case deps.Dispatcher == nil:
		return nil, errors.New("monitor: dispatcher required")
	}
	if opts.Interval < 0 || opts.BreakDuration < 0 || opts.MaxCycles < 0 {
		return nil, fmt.Errorf("monitor: negative interval, break duration or max cycles")
	}
	if deps.Sanitizer == nil {
		deps.Sanitizer = sanitize.New(sanitize.DefaultPhrases)
	}
	if deps.Clock == nil {
		deps.Clock = RealClock{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New("", opts.RunID)
	}
	return &Loop{opts: opts, Deps: deps}, nil
}

// Run checks until disabled, cancelled or MaxCycles checks have completed.
// Disable and cancellation both end the loop cleanly with a nil error.
func (l *Loop) Run(ctx context.Context) error {
	logging.Info("monitor", "started (interval=%s, window=%d, thresholds=%d/%d)",
		l.opts.Interval, l.Window.Cap(), l.Policy.Thresholds().Stage2, l.Policy.Thresholds().Stage3)

	for l.opts.MaxCycles == 0 || l.checks < l.opts.MaxCycles {
		if ctx.Err() != nil {
			logging.Info("monitor", "stopping: %v", ctx.Err())
			return nil
		}

		l.applyResponses()

		if l.State.IsDisabled() {
			l.logEvent(eventlog.NewEvent(eventlog.EventTypeDisabled, "monitor").WithCount(l.checks))
			l.saveState()
			logging.Info("monitor", "disabled after %d checks", l.checks)
			return nil
		}

		if l.State.ConsumeBreakRequest() {
			if err := l.takeBreak(ctx); err != nil {
				return nil
			}
			continue
		}

		l.checks++
		if err := l.runCycle(ctx, l.checks); err != nil {
			logging.Info("monitor", "stopping: %v", err)
			return nil
		}
	}

	logging.Info("monitor", "finished %d checks", l.checks)
	return nil
}

// Checks returns the number of completed checks.
func (l *Loop) Checks() int {
	return l.checks
}

func (l *Loop) runCycle(ctx context.Context, cycle int) error {
	start := l.Clock.Now()

	v, obs := l.classify(ctx)

	l.Window.Push(v)
	density := l.Window.UnproductiveCount()
	prev := l.Policy.Stage()
	stage, changed := l.Policy.Evaluate(density, v)
	if changed {
		logging.Info("monitor", "stage %s -> %s (density %d/%d)", prev, stage, density, l.Window.Cap())
		l.logEvent(eventlog.NewEvent(eventlog.EventTypeEscalation, "monitor").
			WithCycle(cycle).
			WithStage(stage.String()).
			WithCount(density))
	}
	if v == verdict.Unproductive {
		l.Dispatcher.Dispatch(stage, notify.Context{
			ProductiveMinutes: l.Ledger.ProductiveMinutes(),
			Density:           density,
			WindowSize:        l.Window.Cap(),
			Suggestions:       filterSuggestions(obs.suggestions),
		})
	}

	processing := l.Clock.Now().Sub(start)
	l.writeSinks(ctx, cycle, v, stage, density, processing, obs)

	var sleepErr error
	if wait := l.opts.Interval - processing; wait > 0 {
		sleepErr = l.Clock.Sleep(ctx, wait)
	}

	// The verdict is already in the window, so its time is recorded even when
	// the sleep was cut short.
	elapsed := l.Clock.Now().Sub(start)
	l.Ledger.Record(v, elapsed)
	l.saveState()
	if sleepErr != nil {
		return sleepErr
	}

	if l.opts.OnCycle != nil {
		l.opts.OnCycle(CycleResult{
			Cycle:      cycle,
			Verdict:    v,
			Stage:      stage,
			Density:    density,
			Processing: processing,
			Elapsed:    elapsed,
		})
	}
	return nil
}

// observation is what one check saw, kept for the sinks.
type observation struct {
	text        string
	answer      string
	suggestions []string
	sampleTime  time.Duration
	judgeTime   time.Duration
}

// classify samples, sanitizes and judges. Any failure yields Unknown.
func (l *Loop) classify(ctx context.Context) (verdict.Verdict, observation) {
	var obs observation

	sampleStart := l.Clock.Now()
	raw, err := l.Sampler.Sample(ctx)
	obs.sampleTime = l.Clock.Now().Sub(sampleStart)
	if err != nil {
		l.Metrics.RecordSamplingFailure()
		logging.Info("monitor", "sample failed: %v", err)
		l.logEvent(eventlog.NewEvent(eventlog.EventTypeSampleError, "sampler").WithError(err.Error()))
		return verdict.Unknown, obs
	}

	obs.text = l.Sanitizer.Sanitize(raw)
	obs.suggestions = sanitize.Suggest(obs.text, l.opts.Distractions)

	judgeStart := l.Clock.Now()
	res, err := l.Judge.Judge(ctx, obs.text)
	obs.judgeTime = l.Clock.Now().Sub(judgeStart)
	obs.answer = res.Raw
	l.Metrics.RecordJudgeLatency(obs.judgeTime)
	logging.Debug("monitor", "judge answered in %s: %s", obs.judgeTime, logging.Truncate(res.Raw, 120))
	if err != nil {
		l.Metrics.RecordJudgeFailure()
		logging.Info("monitor", "judge failed: %v", err)
		l.logEvent(eventlog.NewEvent(eventlog.EventTypeJudgeError, "judge").
			WithError(err.Error()).
			WithLatency(float64(obs.judgeTime.Milliseconds())))
		return verdict.Unknown, obs
	}
	if res.Verdict == "" {
		return verdict.Unknown, obs
	}
	return res.Verdict, obs
}

func (l *Loop) writeSinks(ctx context.Context, cycle int, v verdict.Verdict, stage escalation.Stage, density int, processing time.Duration, obs observation) {
	l.Metrics.RecordCycle(v)
	l.logEvent(eventlog.NewEvent(eventlog.EventTypeCycle, "monitor").
		WithCycle(cycle).
		WithVerdict(v.String()).
		WithStage(stage.String()).
		WithCount(density).
		WithLatency(float64(processing.Milliseconds())))
	logging.Debug("monitor", "check %d: %s (stage %s, density %d)", cycle, v, stage, density)

	if l.Sinks != nil {
		if err := l.Sinks.WriteStatus(v); err != nil {
			logging.Info("monitor", "write status: %v", err)
		}
		if err := l.Sinks.WriteSuggestions(filterSuggestions(obs.suggestions)); err != nil {
			logging.Info("monitor", "write suggestions: %v", err)
		}
		if _, err := l.Sinks.WriteDiagnostic(sinks.Diagnostic{
			At:         l.Clock.Now(),
			Total:      processing,
			SampleTime: obs.sampleTime,
			JudgeTime:  obs.judgeTime,
			Verdict:    v,
			Text:       obs.text,
			Answer:     obs.answer,
		}); err != nil {
			logging.Info("monitor", "write diagnostic: %v", err)
		}
	}

	if l.History != nil {
		err := l.History.Insert(ctx, history.Record{
			RunID:      l.opts.RunID,
			Timestamp:  l.Clock.Now(),
			Status:     v.String(),
			Stage:      stage.String(),
			Total:      processing,
			SampleTime: obs.sampleTime,
			JudgeTime:  obs.judgeTime,
		})
		if err != nil {
			logging.Info("monitor", "history: %v", err)
		}
	}
}

// takeBreak sleeps for the break duration then starts over with an empty
// window and no escalation.
func (l *Loop) takeBreak(ctx context.Context) error {
	l.State.BeginBreak()
	l.Metrics.RecordBreak()
	l.saveState()
	logging.Info("monitor", "taking a %s break", l.opts.BreakDuration)
	l.logEvent(eventlog.NewEvent(eventlog.EventTypeBreakStart, "monitor").
		WithLatency(float64(l.opts.BreakDuration.Milliseconds())))

	if err := l.Clock.Sleep(ctx, l.opts.BreakDuration); err != nil {
		l.State.EndBreak()
		return err
	}

	l.Window.Clear()
	l.Policy.Reset()
	l.State.EndBreak()
	l.saveState()
	logging.Info("monitor", "break over")
	l.logEvent(eventlog.NewEvent(eventlog.EventTypeBreakEnd, "monitor"))
	return nil
}

func (l *Loop) applyResponses() {
	for _, evt := range l.Inbox.Drain(l.State) {
		logging.Info("monitor", "%s requested by %s", evt.Response, evt.Source)
		l.logEvent(eventlog.NewEvent(eventlog.EventTypeResponse, evt.Source).
			WithResponse(string(evt.Response)))
	}
}

func (l *Loop) saveState() {
	l.Metrics.SetState(string(l.State.Mode()), l.Policy.Stage().String(), l.Ledger.Snapshot())
	if err := l.Metrics.Save(); err != nil {
		logging.Debug("monitor", "save status snapshot: %v", err)
	}
}

func (l *Loop) logEvent(evt eventlog.Event) {
	if err := l.Events.Log(evt); err != nil {
		logging.Debug("monitor", "event log write failed: %v", err)
	}
}

// filterSuggestions drops the no-suggestions placeholder.
func filterSuggestions(s []string) []string {
	if len(s) == 1 && s[0] == sanitize.NoSuggestions {
		return nil
	}
	return s
}
