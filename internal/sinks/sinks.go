// Package sinks writes the per-check files other tools read: the current
// status, the distraction suggestions and one diagnostic log per check.
package sinks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/norm/focusd/internal/sanitize"
	"github.com/norm/focusd/internal/verdict"
)

const (
	StatusFile      = "productivity_status.txt"
	SuggestionsFile = "suggested_tabs.txt"

	diagnosticTimeFormat = "2006-01-02_15.04.05"
)

// Diagnostic is the content of one check's log file.
type Diagnostic struct {
	At         time.Time
	Total      time.Duration
	SampleTime time.Duration
	JudgeTime  time.Duration
	Verdict    verdict.Verdict
	Text       string
	Answer     string
}

// Files writes sink files under a state directory and a log directory.
type Files struct {
	stateDir string
	logDir   string
}

// New creates the sink writer. Directories are created on first write.
func New(stateDir, logDir string) *Files {
	return &Files{stateDir: stateDir, logDir: logDir}
}

// StatusPath returns the status file path.
func (f *Files) StatusPath() string {
	return filepath.Join(f.stateDir, StatusFile)
}

// SuggestionsPath returns the suggestions file path.
func (f *Files) SuggestionsPath() string {
	return filepath.Join(f.stateDir, SuggestionsFile)
}

// WriteStatus overwrites the status file with "productive" or "unproductive".
func (f *Files) WriteStatus(v verdict.Verdict) error {
	return writeFile(f.StatusPath(), v.Status())
}

// WriteSuggestions overwrites the suggestions file. An empty list writes the
// no-suggestions placeholder.
func (f *Files) WriteSuggestions(suggestions []string) error {
	if len(suggestions) == 0 {
		suggestions = []string{sanitize.NoSuggestions}
	}
	return writeFile(f.SuggestionsPath(), strings.Join(suggestions, "\n"))
}

// WriteDiagnostic writes log_<timestamp>_<verdict>.txt and returns its path.
func (f *Files) WriteDiagnostic(d Diagnostic) (string, error) {
	if d.At.IsZero() {
		d.At = time.Now()
	}
	name := fmt.Sprintf("log_%s_%s.txt", d.At.Format(diagnosticTimeFormat), d.Verdict)
	path := filepath.Join(f.logDir, name)
	return path, writeFile(path, FormatDiagnostic(d))
}

// FormatDiagnostic renders d as the diagnostic log body.
func FormatDiagnostic(d Diagnostic) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Time: %.2f seconds\n", d.Total.Seconds())
	fmt.Fprintf(&b, "Screenshot time: %.2f seconds\n", d.SampleTime.Seconds())
	fmt.Fprintf(&b, "Judge time: %.2f seconds\n", d.JudgeTime.Seconds())
	fmt.Fprintf(&b, "Conclusion: %s\n\n", d.Verdict)
	fmt.Fprintf(&b, "Screenshot text:\n%s\n\n", d.Text)
	fmt.Fprintf(&b, "Judge answer:\n%s", d.Answer)
	return b.String()
}

// ReadStatus returns the last written status, or "" when none exists.
func ReadStatus(stateDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(stateDir, StatusFile))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
