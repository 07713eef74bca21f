// Package judge obtains a productivity verdict for a sanitized text sample.
package judge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/norm/focusd/internal/verdict"
)

// Placeholder is replaced (first occurrence) by the sampled text.
const Placeholder = "<start text>"

// DefaultPrompt is used when no prompt file is configured.
const DefaultPrompt = `You are judging whether a person at a computer is being productive.
Below is text extracted from a screenshot of their screen, followed by the
names of the applications they have open. Work, study, coding, writing,
email and documentation are productive. Social media, video streaming,
games, shopping and idle browsing are unproductive.

Think briefly, then end your answer with exactly one word: productive or
unproductive.

Screen text:
<start text>`

// Result is the judge's verdict together with its raw answer.
type Result struct {
	Verdict verdict.Verdict
	Raw     string
}

// Judge classifies a sample. Implementations return a *verdict.JudgeError on
// failure; the caller treats that as Unknown.
type Judge interface {
	Judge(ctx context.Context, text string) (Result, error)
}

// Func adapts a plain function to the Judge interface.
type Func func(ctx context.Context, text string) (Result, error)

func (f Func) Judge(ctx context.Context, text string) (Result, error) { return f(ctx, text) }

// ParseVerdict reads the verdict from the last word of the answer.
func ParseVerdict(answer string) (verdict.Verdict, error) {
	fields := strings.Fields(answer)
	if len(fields) == 0 {
		return verdict.Unknown, verdict.ErrUnparseable
	}
	last := strings.ToLower(strings.TrimFunc(fields[len(fields)-1], func(r rune) bool {
		return !unicode.IsLetter(r)
	}))
	switch {
	case strings.Contains(last, "productive") && !strings.Contains(last, "un"):
		return verdict.Productive, nil
	case strings.Contains(last, "unproductive"):
		return verdict.Unproductive, nil
	default:
		return verdict.Unknown, verdict.ErrUnparseable
	}
}

// RenderPrompt substitutes text into the template. A template without the
// placeholder gets the text appended.
func RenderPrompt(template, text string) string {
	if !strings.Contains(template, Placeholder) {
		return template + "\n\n" + text
	}
	return strings.Replace(template, Placeholder, text, 1)
}

// LoadPrompt reads a prompt template from path, or returns DefaultPrompt when
// path is empty.
func LoadPrompt(path string) (string, error) {
	if path == "" {
		return DefaultPrompt, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("load prompt: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", errors.New("load prompt: empty template")
	}
	return string(data), nil
}

// WithTimeout bounds every call to j. A zero or negative timeout returns j
// unchanged.
func WithTimeout(j Judge, timeout time.Duration) Judge {
	if timeout <= 0 {
		return j
	}
	return Func(func(ctx context.Context, text string) (Result, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return j.Judge(ctx, text)
	})
}
