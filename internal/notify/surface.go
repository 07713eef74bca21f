// Package notify presents interventions to the user and routes their answers
// back to the control inbox.
package notify

import (
	"context"
	"runtime"

	"github.com/norm/focusd/internal/logging"
	"github.com/norm/focusd/internal/shell"
)

// Button labels offered by blocking prompts.
const (
	ButtonDisable = "Disable"
	ButtonBreak   = "Take a break"
	ButtonIgnore  = "Ignore"
)

// PromptButtons is the button set for every blocking prompt.
var PromptButtons = []string{ButtonDisable, ButtonBreak, ButtonIgnore}

// Title is shown on every notice and prompt.
const Title = "Productivity Monitor"

// Rect is an on-screen rectangle in points.
type Rect struct {
	X, Y, W, H int
}

// Surface is the platform notification layer.
type Surface interface {
	// Notify shows a non-blocking informational message.
	Notify(ctx context.Context, title, message string) error
	// Prompt shows a blocking dialog and returns the pressed button, or ""
	// when the dialog was dismissed or timed out.
	Prompt(ctx context.Context, title, message string, buttons []string) (string, error)
	// Overlay opens a disruptive window at r. It must not block.
	Overlay(ctx context.Context, r Rect, message string) error
}

// NewSurface picks a surface by name. "auto" chooses osascript on macOS,
// zenity when it is installed, and the log surface otherwise.
func NewSurface(name string, runner shell.Runner, promptTimeout int) Surface {
	switch name {
	case "osascript":
		return NewOSAScript(runner, promptTimeout)
	case "zenity":
		return NewZenity(runner, promptTimeout)
	case "log":
		return LogSurface{}
	}
	if runtime.GOOS == "darwin" {
		return NewOSAScript(runner, promptTimeout)
	}
	if shell.Available("zenity") {
		return NewZenity(runner, promptTimeout)
	}
	logging.Info("notify", "no dialog tool found, interventions will only be logged")
	return LogSurface{}
}

// LogSurface writes interventions to the operator log. Prompts never get an
// answer.
type LogSurface struct{}

func (LogSurface) Notify(ctx context.Context, title, message string) error {
	logging.Info("notify", "%s: %s", title, message)
	return nil
}

func (LogSurface) Prompt(ctx context.Context, title, message string, buttons []string) (string, error) {
	logging.Info("notify", "%s (prompt): %s", title, message)
	return "", nil
}

func (LogSurface) Overlay(ctx context.Context, r Rect, message string) error {
	logging.Info("notify", "overlay at %d,%d: %s", r.X, r.Y, message)
	return nil
}
