// Package window keeps the rolling history of recent verdicts that drives
// escalation pressure.
package window

import (
	"fmt"

	"github.com/norm/focusd/internal/verdict"
)

// DefaultSize is the default number of verdicts retained.
const DefaultSize = 15

// Window is a fixed-capacity ring of the most recent verdicts. It is owned by
// the monitor loop and is not safe for concurrent use.
type Window struct {
	buf   []verdict.Verdict
	start int
	n     int
	unpro int
}

// New creates a window holding at most size verdicts.
func New(size int) (*Window, error) {
	if size < 1 {
		return nil, fmt.Errorf("window: size must be >= 1, got %d", size)
	}
	return &Window{buf: make([]verdict.Verdict, size)}, nil
}

// Push appends v, evicting the oldest entry once the window is full.
func (w *Window) Push(v verdict.Verdict) {
	if w.n == len(w.buf) {
		if w.buf[w.start] == verdict.Unproductive {
			w.unpro--
		}
		w.buf[w.start] = v
		w.start = (w.start + 1) % len(w.buf)
	} else {
		w.buf[(w.start+w.n)%len(w.buf)] = v
		w.n++
	}
	if v == verdict.Unproductive {
		w.unpro++
	}
}

// UnproductiveCount returns the number of Unproductive verdicts held.
func (w *Window) UnproductiveCount() int {
	return w.unpro
}

// Len returns the number of verdicts held.
func (w *Window) Len() int {
	return w.n
}

// Cap returns the configured window size.
func (w *Window) Cap() int {
	return len(w.buf)
}

// Clear empties the window.
func (w *Window) Clear() {
	for i := range w.buf {
		w.buf[i] = ""
	}
	w.start = 0
	w.n = 0
	w.unpro = 0
}

// Snapshot returns the held verdicts, oldest first.
func (w *Window) Snapshot() []verdict.Verdict {
	out := make([]verdict.Verdict, 0, w.n)
	for i := 0; i < w.n; i++ {
		out = append(out, w.buf[(w.start+i)%len(w.buf)])
	}
	return out
}
