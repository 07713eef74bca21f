// Package sampler produces a text snapshot of what the user is doing.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/norm/focusd/internal/shell"
	"github.com/norm/focusd/internal/verdict"
)

// Sampler returns a text snapshot of the current user context. Failures are
// reported as *verdict.SamplingError.
type Sampler interface {
	Sample(ctx context.Context) (string, error)
}

// Func adapts a function to Sampler.
type Func func(ctx context.Context) (string, error)

func (f Func) Sample(ctx context.Context) (string, error) { return f(ctx) }

// Screen captures the screen to a temporary image and extracts its text with
// an OCR command.
type Screen struct {
	runner  shell.Runner
	capture []string
	ocr     []string
	tmpDir  string
}

// NewScreen creates a screen sampler. capture must contain {out}; ocr must
// contain {in}.
func NewScreen(runner shell.Runner, capture, ocr []string, tmpDir string) *Screen {
	return &Screen{runner: runner, capture: capture, ocr: ocr, tmpDir: tmpDir}
}

func (s *Screen) Sample(ctx context.Context) (string, error) {
	if len(s.capture) == 0 || len(s.ocr) == 0 {
		return "", &verdict.SamplingError{Err: errors.New("screen sampler: capture and ocr commands required")}
	}
	if s.tmpDir != "" {
		if err := os.MkdirAll(s.tmpDir, 0o755); err != nil {
			return "", &verdict.SamplingError{Err: err}
		}
	}
	f, err := os.CreateTemp(s.tmpDir, "focusd-capture-*.png")
	if err != nil {
		return "", &verdict.SamplingError{Err: fmt.Errorf("temp file: %w", err)}
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	vars := map[string]string{"out": path, "in": path}
	capture := shell.Expand(s.capture, vars)
	if _, err := s.runner.Run(ctx, capture[0], capture[1:]...); err != nil {
		return "", &verdict.SamplingError{Err: fmt.Errorf("capture: %w", err)}
	}

	ocr := shell.Expand(s.ocr, vars)
	text, err := s.runner.Run(ctx, ocr[0], ocr[1:]...)
	if err != nil {
		return "", &verdict.SamplingError{Err: fmt.Errorf("ocr: %w", err)}
	}
	if strings.TrimSpace(text) == "" {
		return "", &verdict.SamplingError{Err: verdict.ErrEmptySample}
	}
	return text, nil
}

// TempDir returns the directory used for capture images.
func TempDir(stateDir string) string {
	return filepath.Join(stateDir, "tmp")
}
