package notify

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/norm/focusd/internal/control"
	"github.com/norm/focusd/internal/escalation"
	eventlog "github.com/norm/focusd/internal/log"
	"github.com/norm/focusd/internal/logging"
	"github.com/norm/focusd/internal/verdict"
)

// Messages shown for each stage.
const (
	MessageNotice = "GET BACK ON TASK!"
	MessagePrompt = "You have been off task for %d of the last %d checks. Take a break or get back to work."
	MessageUrgent = "GET BACK ON TASK! %d of the last %d checks were unproductive. Take a break now."
)

// Recorder counts dispatcher activity. *metrics.Metrics satisfies it.
type Recorder interface {
	RecordDispatch(stage string)
	RecordPresentationFailure()
	RecordResponse(response string)
}

// Context is what the loop knows when it dispatches.
type Context struct {
	ProductiveMinutes int
	Density           int
	WindowSize        int
	Suggestions       []string
}

// Options configures a Dispatcher.
type Options struct {
	MinDisplayMinutes int
	NukeWindows       int
	ScreenWidth       int
	ScreenHeight      int
	Seed              int64
}

// Dispatcher turns escalation stages into interventions. Blocking prompts run
// on their own goroutines; answers reach the loop only through the inbox.
type Dispatcher struct {
	ctx      context.Context
	surface  Surface
	inbox    *control.Inbox
	events   *eventlog.EventLog
	recorder Recorder
	opts     Options

	// rng is only touched from Dispatch, which the loop calls sequentially.
	rng *rand.Rand

	// openStage is the stage of the most urgent unanswered prompt, or None.
	// A prompt is shown only when it is more urgent than that.
	openStage atomic.Int32
	wg         sync.WaitGroup
}

// NewDispatcher creates a dispatcher. ctx bounds every detached presentation;
// events and recorder may be nil.
func NewDispatcher(ctx context.Context, surface Surface, inbox *control.Inbox, events *eventlog.EventLog, recorder Recorder, opts Options) *Dispatcher {
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	return &Dispatcher{
		ctx:      ctx,
		surface:  surface,
		inbox:    inbox,
		events:   events,
		recorder: recorder,
		opts:     opts,
		rng:      rand.New(rand.NewSource(opts.Seed)),
	}
}

// Dispatch presents the intervention for stage without blocking.
func (d *Dispatcher) Dispatch(stage escalation.Stage, c Context) {
	if stage == escalation.None {
		return
	}
	if d.recorder != nil {
		d.recorder.RecordDispatch(stage.String())
	}
	d.logEvent(eventlog.NewEvent(eventlog.EventTypeDispatch, "notify").
		WithStage(stage.String()).
		WithCount(c.Density))

	switch stage {
	case escalation.Stage1:
		msg := NoticeMessage(c, d.opts.MinDisplayMinutes)
		d.goPresent("notice", func(ctx context.Context) error {
			return d.surface.Notify(ctx, Title, msg)
		})
	case escalation.Stage2:
		d.prompt(stage, fmt.Sprintf(MessagePrompt, c.Density, c.WindowSize))
	case escalation.Stage3:
		d.prompt(stage, fmt.Sprintf(MessageUrgent, c.Density, c.WindowSize))
	case escalation.Stage3Repeated:
		d.prompt(stage, fmt.Sprintf(MessageUrgent, c.Density, c.WindowSize))
		d.nuke()
	}
}

// Wait blocks until every detached presentation has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// NoticeMessage builds the Stage1 text. Productive minutes are mentioned only
// once they reach minMinutes.
func NoticeMessage(c Context, minMinutes int) string {
	msg := MessageNotice
	if c.ProductiveMinutes >= minMinutes && c.ProductiveMinutes > 0 {
		msg += fmt.Sprintf(" You have been productive for %d minutes so far.", c.ProductiveMinutes)
	}
	if len(c.Suggestions) > 0 {
		msg += " Consider closing: " + strings.Join(c.Suggestions, ", ") + "."
	}
	return msg
}

// ResponseFor maps a pressed button onto a control response.
func ResponseFor(button string) control.Response {
	switch button {
	case ButtonDisable:
		return control.ResponseDisable
	case ButtonBreak:
		return control.ResponseBreak
	case ButtonIgnore:
		return control.ResponseIgnore
	}
	return control.ResponseNone
}

func (d *Dispatcher) prompt(stage escalation.Stage, msg string) {
	for {
		open := escalation.Stage(d.openStage.Load())
		if open >= stage {
			logging.Debug("notify", "%s prompt open, skipping %s prompt", open, stage)
			return
		}
		if d.openStage.CompareAndSwap(int32(open), int32(stage)) {
			break
		}
	}
	d.goPresent("prompt", func(ctx context.Context) error {
		defer d.openStage.CompareAndSwap(int32(stage), int32(escalation.None))
		button, err := d.surface.Prompt(ctx, Title, msg, PromptButtons)
		if err != nil {
			return err
		}
		resp := ResponseFor(button)
		logging.Info("notify", "%s prompt answered: %q", stage, button)
		if d.recorder != nil {
			d.recorder.RecordResponse(string(resp))
		}
		d.logEvent(eventlog.NewEvent(eventlog.EventTypeResponse, "prompt").
			WithStage(stage.String()).
			WithResponse(string(resp)))
		d.inbox.Post(control.Event{Response: resp, Source: "prompt"})
		return nil
	})
}

func (d *Dispatcher) nuke() {
	for i := 0; i < d.opts.NukeWindows; i++ {
		r := d.randomRect()
		d.goPresent("overlay", func(ctx context.Context) error {
			return d.surface.Overlay(ctx, r, MessageNotice)
		})
	}
}

// randomRect picks a window a quarter of the screen in size, fully on screen.
func (d *Dispatcher) randomRect() Rect {
	w, h := d.opts.ScreenWidth/4, d.opts.ScreenHeight/4
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	r := Rect{W: w, H: h}
	if span := d.opts.ScreenWidth - w; span > 0 {
		r.X = d.rng.Intn(span + 1)
	}
	if span := d.opts.ScreenHeight - h; span > 0 {
		r.Y = d.rng.Intn(span + 1)
	}
	return r
}

func (d *Dispatcher) goPresent(op string, fn func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := fn(d.ctx); err != nil {
			d.presentationFailed(&verdict.PresentationError{Op: op, Err: err})
		}
	}()
}

func (d *Dispatcher) presentationFailed(err *verdict.PresentationError) {
	logging.Info("notify", "%v", err)
	if d.recorder != nil {
		d.recorder.RecordPresentationFailure()
	}
	d.logEvent(eventlog.NewEvent(eventlog.EventTypePresentationError, "notify").
		WithError(err.Error()))
}

func (d *Dispatcher) logEvent(evt eventlog.Event) {
	if err := d.events.Log(evt); err != nil {
		logging.Debug("notify", "event log write failed: %v", err)
	}
}
