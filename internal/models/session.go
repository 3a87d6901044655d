// Package models defines the core data types shared across loopmill.
package models

import (
	"fmt"
	"time"
)

// SessionState represents the lifecycle phase of a loop session.
type SessionState string

const (
	SessionStateStopped  SessionState = "stopped"
	SessionStateRunning  SessionState = "running"
	SessionStateDraining SessionState = "draining"
)

// validTransitions defines which session state transitions are allowed.
// Map key is the current state, value is a set of valid target states.
var validTransitions = map[SessionState]map[SessionState]bool{
	SessionStateStopped: {
		SessionStateRunning: true, // start
	},
	SessionStateRunning: {
		SessionStateDraining: true, // graceful stop with one cleanup turn
		SessionStateStopped:  true, // forced or limit-triggered stop
	},
	SessionStateDraining: {
		SessionStateStopped: true, // drain turn consumed
	},
}

// IsValidTransition checks if a session state transition is allowed.
// Same-state transitions are no-ops and always valid.
func IsValidTransition(from, to SessionState) bool {
	if from == to {
		return true
	}
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// TransitionError is returned when an invalid state transition is requested.
type TransitionError struct {
	SessionID string
	FromState SessionState
	ToState   SessionState
	Reason    string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid session transition for %s: %s -> %s: %s",
		e.SessionID, e.FromState, e.ToState, e.Reason)
}

// Limits bounds how much work a session may perform.
// Minimums guarantee work happens; maximums are hard stops.
type Limits struct {
	MinHours      float64 `json:"min_hours" yaml:"min_hours" mapstructure:"min_hours"`
	MaxHours      float64 `json:"max_hours" yaml:"max_hours" mapstructure:"max_hours"`
	MinIterations int     `json:"min_iterations" yaml:"min_iterations" mapstructure:"min_iterations"`
	MaxIterations int     `json:"max_iterations" yaml:"max_iterations" mapstructure:"max_iterations"`
}

// Validate checks limit consistency.
func (l Limits) Validate() error {
	validation := &ValidationErrors{}
	if l.MinHours < 0 {
		validation.AddMessage("min_hours", "min_hours must be >= 0")
	}
	if l.MaxHours < 0 {
		validation.AddMessage("max_hours", "max_hours must be >= 0")
	}
	if l.MinIterations < 0 {
		validation.AddMessage("min_iterations", "min_iterations must be >= 0")
	}
	if l.MaxIterations < 0 {
		validation.AddMessage("max_iterations", "max_iterations must be >= 0")
	}
	if l.MaxHours > 0 && l.MinHours > l.MaxHours {
		validation.AddMessage("min_hours", "min_hours must not exceed max_hours")
	}
	if l.MaxIterations > 0 && l.MinIterations > l.MaxIterations {
		validation.AddMessage("min_iterations", "min_iterations must not exceed max_iterations")
	}
	return validation.Err()
}

// PocLimits is the short proof-of-concept preset.
func PocLimits() Limits {
	return Limits{
		MinHours:      0,
		MaxHours:      0.5,
		MinIterations: 0,
		MaxIterations: 10,
	}
}

// ProductionLimits is the long-running production preset.
func ProductionLimits() Limits {
	return Limits{
		MinHours:      2,
		MaxHours:      8,
		MinIterations: 10,
		MaxIterations: 100,
	}
}

// Focus describes what the session is working toward. It is opaque to the
// controller and only echoed into the continuation prompt.
type Focus struct {
	TargetFile string `json:"target_file,omitempty" yaml:"target_file,omitempty"`
	TaskPrompt string `json:"task_prompt,omitempty" yaml:"task_prompt,omitempty"`
	NoFocus    bool   `json:"no_focus,omitempty" yaml:"no_focus,omitempty"`
}

// Session is the durable state of one loop session, one per
// (session id, project path) pair.
type Session struct {
	SessionID      string       `json:"session_id"`
	ProjectPath    string       `json:"project_path"`
	State          SessionState `json:"state"`
	IterationCount int          `json:"iteration_count"`
	StartedAt      time.Time    `json:"started_at"`
	LastActiveAt   time.Time    `json:"last_active_at"`

	// CumulativeRuntimeSeconds counts only active time; gaps above the
	// configured threshold are attributed to the host being closed and
	// excluded.
	CumulativeRuntimeSeconds float64 `json:"cumulative_runtime_seconds"`

	Limits Limits `json:"limits"`
	Focus  *Focus `json:"focus,omitempty"`

	// RecentPrompts is a rolling window of continuation prompts used for
	// idle-loop detection.
	RecentPrompts []string `json:"recent_prompts,omitempty"`

	// IdleStreak counts consecutive turns whose prompt was near-identical
	// to a recent one.
	IdleStreak int `json:"idle_streak,omitempty"`

	LastDecision string    `json:"last_decision,omitempty"`
	LastReason   string    `json:"last_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Validate checks if the session is valid.
func (s *Session) Validate() error {
	validation := &ValidationErrors{}
	if s.SessionID == "" {
		validation.Add("session_id", ErrInvalidSessionID)
	}
	if s.ProjectPath == "" {
		validation.Add("project_path", ErrInvalidProjectPath)
	}
	if s.IterationCount < 0 {
		validation.AddMessage("iteration_count", "iteration_count must be >= 0")
	}
	if s.CumulativeRuntimeSeconds < 0 {
		validation.AddMessage("cumulative_runtime_seconds", "cumulative_runtime_seconds must be >= 0")
	}
	if err := s.Limits.Validate(); err != nil {
		validation.AddMessage("limits", err.Error())
	}
	if validation.Err() != nil {
		return validation.Err()
	}

	switch s.State {
	case "", SessionStateStopped, SessionStateRunning, SessionStateDraining:
		return nil
	default:
		return fmt.Errorf("invalid session state %q", s.State)
	}
}

// WallClockSeconds reports total calendar time since the session started.
// It is informational only and never used for limit enforcement.
func (s *Session) WallClockSeconds(now time.Time) float64 {
	if s.StartedAt.IsZero() || now.Before(s.StartedAt) {
		return 0
	}
	return now.Sub(s.StartedAt).Seconds()
}

// Transition moves the session to a new state, enforcing the
// stopped -> running -> (draining ->) stopped lifecycle.
func (s *Session) Transition(to SessionState, reason string) error {
	if s.State == to {
		return nil
	}
	if !IsValidTransition(s.State, to) {
		return &TransitionError{
			SessionID: s.SessionID,
			FromState: s.State,
			ToState:   to,
			Reason:    reason,
		}
	}
	s.State = to
	return nil
}

// DefaultSessionState returns the state assumed when no persisted state exists.
func DefaultSessionState() SessionState {
	return SessionStateStopped
}
