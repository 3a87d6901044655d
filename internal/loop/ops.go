package loop

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/loopmill/loopmill/internal/logging"
	"github.com/loopmill/loopmill/internal/models"
	"github.com/loopmill/loopmill/internal/session"
	"github.com/loopmill/loopmill/internal/store"
)

// Manager implements the session control operations consumed by the CLI:
// start, stop, status, and configure.
type Manager struct {
	Store  store.Store
	Clock  func() time.Time
	Logger zerolog.Logger
}

// NewManager creates a manager over a store.
func NewManager(st store.Store) *Manager {
	return &Manager{
		Store:  st,
		Clock:  time.Now,
		Logger: logging.Component("loop"),
	}
}

func (m *Manager) now() time.Time {
	if m.Clock != nil {
		return m.Clock().UTC()
	}
	return time.Now().UTC()
}

// Start creates a Running session. A start request while the session is not
// Stopped is rejected without mutating state.
func (m *Manager) Start(sessionID, projectPath string, limits models.Limits, focus *models.Focus) (*models.Session, error) {
	canonical, err := session.CanonicalPath(projectPath)
	if err != nil {
		return nil, err
	}
	key, err := session.NewKey(sessionID, canonical)
	if err != nil {
		return nil, err
	}

	if existing, err := m.Store.Load(key); err == nil {
		if existing.State != models.SessionStateStopped {
			return nil, &models.TransitionError{
				SessionID: sessionID,
				FromState: existing.State,
				ToState:   models.SessionStateRunning,
				Reason:    "session already active; stop it before starting again",
			}
		}
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	if err := limits.Validate(); err != nil {
		// Malformed limits never block the loop; fall back to defaults.
		m.Logger.Warn().Err(err).Msg("invalid limits, falling back to production preset")
		limits = models.ProductionLimits()
	}

	now := m.now()
	sess := &models.Session{
		SessionID:    sessionID,
		ProjectPath:  canonical,
		State:        models.SessionStateRunning,
		StartedAt:    now,
		LastActiveAt: now,
		Limits:       limits,
		Focus:        focus,
		CreatedAt:    now,
	}
	if err := m.Store.Save(key, sess); err != nil {
		return nil, fmt.Errorf("persist new session: %w", err)
	}

	m.Logger.Info().
		Str("session_id", sessionID).
		Str("project", canonical).
		Int("max_iterations", limits.MaxIterations).
		Float64("max_hours", limits.MaxHours).
		Msg("loop session started")
	return sess, nil
}

// Stop halts a session. With drain set, a Running session gets one more
// invocation for cleanup before stopping; otherwise the stop is immediate.
func (m *Manager) Stop(sessionID, projectPath string, drain bool) (*models.Session, error) {
	key, sess, err := m.load(sessionID, projectPath)
	if err != nil {
		return nil, err
	}

	if sess.State == models.SessionStateStopped {
		return nil, fmt.Errorf("session %s is not running", sessionID)
	}

	target := models.SessionStateStopped
	reason := "stop requested"
	if drain && sess.State == models.SessionStateRunning {
		target = models.SessionStateDraining
		reason = "drain requested"
	}
	if err := sess.Transition(target, reason); err != nil {
		return nil, err
	}
	sess.LastDecision = string(models.DecisionStop)
	sess.LastReason = reason

	if err := m.Store.Save(key, sess); err != nil {
		return nil, fmt.Errorf("persist stop: %w", err)
	}

	m.Logger.Info().Str("session_id", sessionID).Str("state", string(sess.State)).Msg("loop session stopping")
	return sess, nil
}

// Status reads the session without mutating it. A missing or corrupt state
// reads as a Stopped placeholder so status never fails on fresh projects.
func (m *Manager) Status(sessionID, projectPath string) (*models.Session, error) {
	_, sess, err := m.load(sessionID, projectPath)
	if errors.Is(err, models.ErrNotFound) {
		canonical, pathErr := session.CanonicalPath(projectPath)
		if pathErr != nil {
			return nil, pathErr
		}
		return &models.Session{
			SessionID:   sessionID,
			ProjectPath: canonical,
			State:       models.DefaultSessionState(),
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Configure replaces the limits on an existing session.
func (m *Manager) Configure(sessionID, projectPath string, limits models.Limits) (*models.Session, error) {
	key, sess, err := m.load(sessionID, projectPath)
	if err != nil {
		return nil, err
	}

	if err := limits.Validate(); err != nil {
		return nil, fmt.Errorf("invalid limits: %w", err)
	}

	sess.Limits = limits
	if err := m.Store.Save(key, sess); err != nil {
		return nil, fmt.Errorf("persist limits: %w", err)
	}
	return sess, nil
}

// Clear archives the persisted state for a session.
func (m *Manager) Clear(sessionID, projectPath string) error {
	key, err := session.NewKey(sessionID, projectPath)
	if err != nil {
		return err
	}
	return m.Store.Clear(key)
}

func (m *Manager) load(sessionID, projectPath string) (session.Key, *models.Session, error) {
	key, err := session.NewKey(sessionID, projectPath)
	if err != nil {
		return session.Key{}, nil, err
	}
	sess, err := m.Store.Load(key)
	if err != nil {
		return key, nil, err
	}
	return key, sess, nil
}
