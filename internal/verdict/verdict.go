// Package verdict defines the outcome of a single productivity check and the
// failure taxonomy that degrades a check to Unknown.
package verdict

import (
	"errors"
	"fmt"
)

// Verdict is the tri-state outcome of one productivity check.
type Verdict string

const (
	Productive   Verdict = "productive"
	Unproductive Verdict = "unproductive"
	Unknown      Verdict = "unknown"
)

// String implements fmt.Stringer.
func (v Verdict) String() string {
	if v == "" {
		return string(Unknown)
	}
	return string(v)
}

// Status returns the value written to the status sink. Anything that is not
// positively productive reads as unproductive.
func (v Verdict) Status() string {
	if v == Productive {
		return string(Productive)
	}
	return string(Unproductive)
}

// Parse converts a stored verdict string back into a Verdict.
func Parse(s string) Verdict {
	switch Verdict(s) {
	case Productive, Unproductive:
		return Verdict(s)
	default:
		return Unknown
	}
}

var (
	// ErrEmptySample is returned when the sampler produced no usable text.
	ErrEmptySample = errors.New("empty sample")
	// ErrUnparseable is returned when the judge answer has no verdict token.
	ErrUnparseable = errors.New("unparseable judge answer")
)

// SamplingError wraps a context sampler failure.
type SamplingError struct {
	Err error
}

func (e *SamplingError) Error() string { return fmt.Sprintf("sampling failure: %v", e.Err) }
func (e *SamplingError) Unwrap() error { return e.Err }

// JudgeError wraps a classification call failure or an unparseable answer.
type JudgeError struct {
	Raw string
	Err error
}

func (e *JudgeError) Error() string { return fmt.Sprintf("judge failure: %v", e.Err) }
func (e *JudgeError) Unwrap() error { return e.Err }

// PresentationError wraps a notification surface failure.
type PresentationError struct {
	Op  string
	Err error
}

func (e *PresentationError) Error() string {
	return fmt.Sprintf("presentation failure (%s): %v", e.Op, e.Err)
}
func (e *PresentationError) Unwrap() error { return e.Err }
