// Package ledger accumulates wall-clock time into active, productive and
// unproductive buckets.
package ledger

import (
	"time"

	"github.com/norm/focusd/internal/verdict"
)

// Totals is a point-in-time copy of the ledger.
type Totals struct {
	Active       time.Duration `json:"active"`
	Productive   time.Duration `json:"productive"`
	Unproductive time.Duration `json:"unproductive"`
}

// Ledger is append-only for the life of a run. Owned by the monitor loop.
type Ledger struct {
	totals Totals
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// Record adds elapsed to the active total and, for a definite verdict, to the
// matching bucket. Unknown verdicts count as active time only.
func (l *Ledger) Record(v verdict.Verdict, elapsed time.Duration) {
	if elapsed <= 0 {
		return
	}
	l.totals.Active += elapsed
	switch v {
	case verdict.Productive:
		l.totals.Productive += elapsed
	case verdict.Unproductive:
		l.totals.Unproductive += elapsed
	}
}

func (l *Ledger) Active() time.Duration       { return l.totals.Active }
func (l *Ledger) Productive() time.Duration   { return l.totals.Productive }
func (l *Ledger) Unproductive() time.Duration { return l.totals.Unproductive }

// ProductiveMinutes returns whole productive minutes.
func (l *Ledger) ProductiveMinutes() int {
	return int(l.totals.Productive / time.Minute)
}

// Snapshot returns a copy of the current totals.
func (l *Ledger) Snapshot() Totals {
	return l.totals
}
