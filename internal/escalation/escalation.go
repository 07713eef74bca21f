// Package escalation maps unproductive density onto intervention stages.
//
// The stage is a recoverable function of recent density: a single productive
// sample drops it back to None, while sustained unproductive samples climb a
// deterministic staircase None → Stage1 → Stage2 → Stage3 → Stage3Repeated.
package escalation

import (
	"fmt"
	"math"

	"github.com/norm/focusd/internal/verdict"
)

// Stage is the discrete severity level of intervention.
type Stage int

const (
	None Stage = iota
	Stage1
	Stage2
	Stage3
	Stage3Repeated
)

func (s Stage) String() string {
	switch s {
	case None:
		return "none"
	case Stage1:
		return "stage1"
	case Stage2:
		return "stage2"
	case Stage3:
		return "stage3"
	case Stage3Repeated:
		return "stage3_repeated"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Default threshold fractions of the window size.
const (
	DefaultStage2Fraction = 0.4
	DefaultStage3Fraction = 0.8
)

// Thresholds are absolute unproductive counts.
type Thresholds struct {
	Stage2 int
	Stage3 int
}

// ResolveThresholds converts configured values into absolute counts for a
// window of the given size. Values below 1 are fractions of the window and
// are rounded up; values of 1 or more are absolute counts.
func ResolveThresholds(windowSize int, stage2, stage3 float64) (Thresholds, error) {
	t := Thresholds{
		Stage2: resolve(windowSize, stage2),
		Stage3: resolve(windowSize, stage3),
	}
	if t.Stage2 < 1 {
		return t, fmt.Errorf("escalation: stage2 threshold must be positive, got %v", stage2)
	}
	if t.Stage2 > t.Stage3 {
		return t, fmt.Errorf("escalation: stage2 threshold %d exceeds stage3 threshold %d", t.Stage2, t.Stage3)
	}
	if t.Stage3 > windowSize {
		return t, fmt.Errorf("escalation: stage3 threshold %d exceeds window size %d", t.Stage3, windowSize)
	}
	return t, nil
}

func resolve(windowSize int, v float64) int {
	if v >= 1 {
		return int(math.Round(v))
	}
	// 1e-9 absorbs float error in products like 15*0.8.
	return int(math.Ceil(v*float64(windowSize) - 1e-9))
}

// Next is the pure transition function. Density thresholds use >= so the
// boundary sample escalates.
func Next(current Stage, density int, v verdict.Verdict, t Thresholds) Stage {
	switch v {
	case verdict.Productive:
		return None
	case verdict.Unproductive:
	default:
		return current
	}

	switch {
	case density >= t.Stage3:
		if current == Stage3 || current == Stage3Repeated {
			return Stage3Repeated
		}
		return Stage3
	case density >= t.Stage2:
		return Stage2
	default:
		return Stage1
	}
}

// Policy holds the current stage. Owned by the monitor loop.
type Policy struct {
	thresholds Thresholds
	stage      Stage
	// lastUnproductive reports whether the previous evaluated check was
	// Unproductive. Stage3 repeats only across back-to-back unproductive
	// checks.
	lastUnproductive bool
}

// NewPolicy creates a policy starting at None.
func NewPolicy(t Thresholds) *Policy {
	return &Policy{thresholds: t}
}

// Evaluate applies one cycle's verdict and reports whether the stage moved.
func (p *Policy) Evaluate(density int, v verdict.Verdict) (Stage, bool) {
	next := Next(p.stage, density, v, p.thresholds)
	if next == Stage3Repeated && p.stage == Stage3 && !p.lastUnproductive {
		next = Stage3
	}
	p.lastUnproductive = v == verdict.Unproductive
	changed := next != p.stage
	p.stage = next
	return next, changed
}

// Reset returns the policy to None.
func (p *Policy) Reset() {
	p.stage = None
	p.lastUnproductive = false
}

func (p *Policy) Stage() Stage { return p.stage }

func (p *Policy) Thresholds() Thresholds { return p.thresholds }
