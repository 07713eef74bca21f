// Package shell runs the external helper programs focusd shells out to
// (screen capture, OCR, dialogs).
package shell

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes a command and returns its trimmed output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
	// Start launches a command without waiting for it.
	Start(name string, args ...string) error
}

// Exec is the os/exec backed Runner.
type Exec struct{}

// New returns the default Runner.
func New() *Exec {
	return &Exec{}
}

// Run executes name with args and returns trimmed stdout. Stderr is included
// in the error on failure.
func (e *Exec) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	output := strings.TrimSpace(string(out))
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return output, fmt.Errorf("%s %v: %w: %s", name, args, err, msg)
		}
		return output, fmt.Errorf("%s %v: %w", name, args, err)
	}
	return output, nil
}

// Start launches name detached and reaps it in the background.
func (e *Exec) Start(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// Expand substitutes {key} placeholders in a command template.
func Expand(template []string, vars map[string]string) []string {
	out := make([]string, len(template))
	for i, arg := range template {
		for k, v := range vars {
			arg = strings.ReplaceAll(arg, "{"+k+"}", v)
		}
		out[i] = arg
	}
	return out
}

// Available reports whether name is on PATH.
func Available(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
