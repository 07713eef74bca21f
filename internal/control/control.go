// Package control holds the run/break/disable state shared between the
// monitor loop and intervention goroutines.
package control

import "sync"

// Mode is the run mode of the monitor.
type Mode string

const (
	Running  Mode = "running"
	OnBreak  Mode = "on_break"
	Disabled Mode = "disabled"
)

// State is safe for concurrent use. Writes are upgrade-only: once disabled,
// nothing returns the state to Running.
type State struct {
	mu               sync.Mutex
	mode             Mode
	breakRequested   bool
	disableRequested bool
}

// NewState returns a running state.
func NewState() *State {
	return &State{mode: Running}
}

// RequestBreak asks the loop to take a break at its next cycle. Ignored once
// disabled.
func (s *State) RequestBreak() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disableRequested {
		return
	}
	s.breakRequested = true
}

// RequestDisable permanently disables monitoring.
func (s *State) RequestDisable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disableRequested = true
	s.breakRequested = false
	s.mode = Disabled
}

// IsDisabled reports whether a disable request has been made.
func (s *State) IsDisabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disableRequested
}

// ConsumeBreakRequest returns true at most once per break request.
func (s *State) ConsumeBreakRequest() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.breakRequested || s.disableRequested {
		return false
	}
	s.breakRequested = false
	return true
}

// Mode returns the current run mode.
func (s *State) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// BeginBreak moves a running state to OnBreak.
func (s *State) BeginBreak() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == Running {
		s.mode = OnBreak
	}
}

// EndBreak moves an OnBreak state back to Running.
func (s *State) EndBreak() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == OnBreak {
		s.mode = Running
	}
}
