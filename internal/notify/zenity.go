package notify

import (
	"context"
	"strconv"

	"github.com/norm/focusd/internal/shell"
)

// Zenity presents interventions with notify-send and zenity on Linux desktops.
// zenity cannot place windows, so overlays stack where the window manager
// puts them.
type Zenity struct {
	runner        shell.Runner
	promptTimeout int
}

// NewZenity creates a Linux surface.
func NewZenity(runner shell.Runner, promptTimeout int) *Zenity {
	return &Zenity{runner: runner, promptTimeout: promptTimeout}
}

func (z *Zenity) Notify(ctx context.Context, title, message string) error {
	_, err := z.runner.Run(ctx, "notify-send", title, message)
	return err
}

// Prompt maps buttons onto zenity's question dialog: the last button is the
// cancel label, the one before it the OK label, and the rest extra buttons.
func (z *Zenity) Prompt(ctx context.Context, title, message string, buttons []string) (string, error) {
	args := []string{"--question", "--title", title, "--text", message}
	var ok string
	switch n := len(buttons); {
	case n >= 2:
		ok = buttons[n-2]
		args = append(args, "--ok-label", ok, "--cancel-label", buttons[n-1])
		for _, b := range buttons[:n-2] {
			args = append(args, "--extra-button", b)
		}
	case n == 1:
		ok = buttons[0]
		args = append(args, "--ok-label", ok)
	}
	if z.promptTimeout > 0 {
		args = append(args, "--timeout", strconv.Itoa(z.promptTimeout))
	}

	out, err := z.runner.Run(ctx, "zenity", args...)
	if err == nil {
		return ok, nil
	}
	// Extra buttons print their label and exit 1; cancel and timeout print
	// nothing.
	for _, b := range buttons {
		if out == b {
			return b, nil
		}
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return "", nil
}

func (z *Zenity) Overlay(ctx context.Context, r Rect, message string) error {
	return z.runner.Start("zenity", "--warning",
		"--title", Title,
		"--text", message,
		"--width", strconv.Itoa(r.W),
		"--height", strconv.Itoa(r.H),
		"--timeout", "30",
	)
}
