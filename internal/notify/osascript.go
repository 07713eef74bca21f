package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/norm/focusd/internal/shell"
)

// OSAScript presents interventions with AppleScript on macOS.
type OSAScript struct {
	runner        shell.Runner
	promptTimeout int
}

// NewOSAScript creates a macOS surface. Prompts give up after promptTimeout
// seconds.
func NewOSAScript(runner shell.Runner, promptTimeout int) *OSAScript {
	return &OSAScript{runner: runner, promptTimeout: promptTimeout}
}

func (o *OSAScript) Notify(ctx context.Context, title, message string) error {
	script := fmt.Sprintf(`display notification "%s" with title "%s"`, quote(message), quote(title))
	_, err := o.runner.Run(ctx, "osascript", "-e", script)
	return err
}

func (o *OSAScript) Prompt(ctx context.Context, title, message string, buttons []string) (string, error) {
	quoted := make([]string, len(buttons))
	for i, b := range buttons {
		quoted[i] = `"` + quote(b) + `"`
	}
	script := fmt.Sprintf(`display dialog "%s" with title "%s" buttons {%s} default button "%s" with icon caution`,
		quote(message), quote(title), strings.Join(quoted, ", "), quote(buttons[len(buttons)-1]))
	if o.promptTimeout > 0 {
		script += fmt.Sprintf(" giving up after %d", o.promptTimeout)
	}

	out, err := o.runner.Run(ctx, "osascript", "-e", script)
	if err != nil {
		return "", err
	}
	return parseDialogResult(out), nil
}

func (o *OSAScript) Overlay(ctx context.Context, r Rect, message string) error {
	script := fmt.Sprintf(`ObjC.import("Cocoa");
var app = $.NSApplication.sharedApplication;
var win = $.NSWindow.alloc.initWithContentRectStyleMaskBackingDefer($.NSMakeRect(%d, %d, %d, %d), $.NSWindowStyleMaskTitled, $.NSBackingStoreBuffered, false);
win.title = "%s";
win.backgroundColor = $.NSColor.redColor;
win.level = $.NSStatusWindowLevel;
var label = $.NSTextField.labelWithString("%s");
label.frame = $.NSMakeRect(20, %d, %d, 40);
win.contentView.addSubview(label);
win.makeKeyAndOrderFront(null);
app.activateIgnoringOtherApps(true);
delay(30);`, r.X, r.Y, r.W, r.H, quote(Title), quote(message), r.H/2, r.W-40)
	return o.runner.Start("osascript", "-l", "JavaScript", "-e", script)
}

// parseDialogResult reads "button returned:X, gave up:false".
func parseDialogResult(out string) string {
	if strings.Contains(out, "gave up:true") {
		return ""
	}
	const marker = "button returned:"
	idx := strings.Index(out, marker)
	if idx == -1 {
		return ""
	}
	rest := out[idx+len(marker):]
	if end := strings.Index(rest, ", gave up:"); end != -1 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
