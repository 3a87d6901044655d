// Package loop is the control plane for autonomous agent sessions: the hook
// pipeline that decides, on every agent stop, whether the loop continues.
package loop

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/loopmill/loopmill/internal/adapters"
	"github.com/loopmill/loopmill/internal/arbiter"
	"github.com/loopmill/loopmill/internal/db"
	"github.com/loopmill/loopmill/internal/detect"
	"github.com/loopmill/loopmill/internal/logging"
	"github.com/loopmill/loopmill/internal/models"
	"github.com/loopmill/loopmill/internal/runtime"
	"github.com/loopmill/loopmill/internal/session"
	"github.com/loopmill/loopmill/internal/store"
)

// DecisionAllowStop and DecisionForceContinue are the two hook responses.
const (
	DecisionAllowStop     = "allow_stop"
	DecisionForceContinue = "continue"
)

// Request is one hook invocation from the host, read from stdin.
type Request struct {
	SessionID    string `json:"session_id"`
	ProjectDir   string `json:"project_dir"`
	Transcript   string `json:"transcript,omitempty"`
	Prompt       string `json:"prompt,omitempty"`
	FilesChanged int    `json:"files_changed,omitempty"`

	// ForcedContinuation is set by the host when this stop event was itself
	// caused by a prior continue response. Honoring it breaks the
	// self-invocation cycle.
	ForcedContinuation bool `json:"forced_continuation,omitempty"`
}

// Response is the hook result, written to stdout.
type Response struct {
	Decision string          `json:"decision"`
	Reason   string          `json:"reason"`
	Prompt   string          `json:"prompt,omitempty"`
	State    *models.Session `json:"state,omitempty"`
}

// Controller wires the per-invocation pipeline: load state, update runtime,
// detect completion, consult the adapter, arbitrate, persist, respond.
type Controller struct {
	Store    store.Store
	Registry *adapters.Registry
	Detector *detect.Detector
	Tracker  *runtime.Tracker

	// Journal is the optional sqlite decision journal. A nil journal or a
	// failed write never affects the decision.
	Journal *db.DecisionRepository

	// WindowSize bounds the rolling prompt window used for idle detection.
	WindowSize int

	Clock  func() time.Time
	Logger zerolog.Logger
}

// NewController builds a controller with production defaults.
func NewController(st store.Store, registry *adapters.Registry, detector *detect.Detector, tracker *runtime.Tracker) *Controller {
	return &Controller{
		Store:      st,
		Registry:   registry,
		Detector:   detector,
		Tracker:    tracker,
		WindowSize: 5,
		Clock:      time.Now,
		Logger:     logging.Component("controller"),
	}
}

func (c *Controller) now() time.Time {
	if c.Clock != nil {
		return c.Clock().UTC()
	}
	return time.Now().UTC()
}

// HandleInvocation runs one hook invocation end to end. It fails safe: any
// condition that prevents a confident continue resolves to allow_stop.
func (c *Controller) HandleInvocation(ctx context.Context, req Request) (Response, error) {
	if req.SessionID == "" || req.ProjectDir == "" {
		return allowStop("missing session id or project dir", nil), nil
	}

	key, err := session.NewKey(req.SessionID, req.ProjectDir)
	if err != nil {
		return allowStop(fmt.Sprintf("invalid session key: %v", err), nil), nil
	}

	sess, err := c.Store.Load(key)
	if errors.Is(err, models.ErrNotFound) {
		// No session, unreadable state, and corrupt state all look the
		// same here. Never trap the user in a loop we cannot account for.
		return allowStop("no active loop session", nil), nil
	}
	if err != nil {
		return allowStop(fmt.Sprintf("state load failed: %v", err), nil), nil
	}

	log := c.Logger.With().
		Str("session_id", sess.SessionID).
		Str("session_key", key.String()).
		Int("iteration", sess.IterationCount).
		Logger()

	if sess.State == models.SessionStateStopped {
		return allowStop("loop session is stopped", sess), nil
	}

	// A stop event caused by our own continue response must not recurse.
	if req.ForcedContinuation {
		log.Debug().Msg("forced continuation event, allowing stop without mutation")
		return allowStop("forced continuation acknowledged", sess), nil
	}

	now := c.now()

	killed := KillSwitchPresent(sess.ProjectPath)
	if killed {
		if err := ClearKillSwitch(sess.ProjectPath); err != nil {
			log.Warn().Err(err).Msg("kill switch marker could not be cleared")
		}
		decision := arbiter.Decide(arbiter.Inputs{KillSwitch: true})
		return c.finishStop(ctx, key, sess, decision, now, log)
	}

	if sess.State == models.SessionStateDraining {
		decision := models.Decision{
			Kind:   models.DecisionStop,
			Rule:   models.RuleDrainComplete,
			Reason: "drain turn consumed",
		}
		return c.finishStop(ctx, key, sess, decision, now, log)
	}

	c.Tracker.Update(sess, now)
	sess.IterationCount++

	focusArtifact := c.readFocusArtifact(sess, log)

	detection := c.Detector.Evaluate(detect.Input{
		FocusArtifact: focusArtifact,
		Transcript:    req.Transcript,
		Prompt:        req.Prompt,
		RecentPrompts: sess.RecentPrompts,
		FilesChanged:  req.FilesChanged,
		IdleStreak:    sess.IdleStreak,
	})

	adapter := c.Registry.Resolve(sess.ProjectPath)
	verdict := c.Registry.Converge(ctx, adapter, sess.ProjectPath, sess.StartedAt)

	decision := arbiter.Decide(arbiter.Inputs{
		IterationCount: sess.IterationCount,
		RuntimeSeconds: sess.CumulativeRuntimeSeconds,
		Limits:         sess.Limits,
		Adapter:        verdict.Result,
		AdapterName:    verdict.Adapter,
		Generic:        detection,
	})

	if req.Prompt != "" {
		sess.RecentPrompts = detect.PushPrompt(sess.RecentPrompts, req.Prompt, c.windowSize())
	}
	sess.IdleStreak = detection.IdleStreak
	sess.LastDecision = string(decision.Kind)
	sess.LastReason = decision.Reason
	sess.UpdatedAt = now

	if decision.Kind == models.DecisionStop {
		if err := sess.Transition(models.SessionStateStopped, decision.Reason); err != nil {
			log.Error().Err(err).Msg("stop transition rejected")
		}
	}

	if err := c.Store.Save(key, sess); err != nil {
		// Persisting failed; without durable state the loop cannot be
		// accounted for, so let the agent stop.
		log.Error().Err(err).Msg("state save failed")
		return allowStop(fmt.Sprintf("state save failed: %v", err), sess), nil
	}

	c.record(ctx, key, sess, decision, verdict, detection, now, log)

	log.Info().
		Str("decision", string(decision.Kind)).
		Str("rule", string(decision.Rule)).
		Str("adapter", verdict.Adapter).
		Float64("confidence", verdict.Result.Confidence).
		Msg("invocation decided")

	if decision.Kind == models.DecisionStop {
		return Response{Decision: DecisionAllowStop, Reason: decision.Reason, State: sess}, nil
	}
	return Response{
		Decision: DecisionForceContinue,
		Reason:   decision.Reason,
		Prompt:   RenderContinuation(sess, decision, verdict.Mode),
		State:    sess,
	}, nil
}

// finishStop persists a terminal decision that bypassed the full pipeline,
// such as the kill switch or a consumed drain turn.
func (c *Controller) finishStop(ctx context.Context, key session.Key, sess *models.Session, decision models.Decision, now time.Time, log zerolog.Logger) (Response, error) {
	sess.LastDecision = string(decision.Kind)
	sess.LastReason = decision.Reason
	sess.UpdatedAt = now
	if err := sess.Transition(models.SessionStateStopped, decision.Reason); err != nil {
		log.Error().Err(err).Msg("stop transition rejected")
	}
	if err := c.Store.Save(key, sess); err != nil {
		log.Error().Err(err).Msg("state save failed")
	}
	c.record(ctx, key, sess, decision, adapters.Verdict{Adapter: "none"}, detect.Result{}, now, log)

	log.Info().Str("rule", string(decision.Rule)).Msg("loop stopped")
	return Response{Decision: DecisionAllowStop, Reason: decision.Reason, State: sess}, nil
}

// record appends the decision to the markdown ledger and the sqlite journal.
// Both are observability surfaces; failures are logged and swallowed.
func (c *Controller) record(ctx context.Context, key session.Key, sess *models.Session, decision models.Decision, verdict adapters.Verdict, detection detect.Result, now time.Time, log zerolog.Logger) {
	if err := appendLedgerEntry(sess, decision, verdict, detection, now); err != nil {
		log.Warn().Err(err).Msg("ledger append failed")
	}

	if c.Journal == nil {
		return
	}
	record := &db.DecisionRecord{
		SessionKey:       key.String(),
		SessionID:        sess.SessionID,
		ProjectPath:      sess.ProjectPath,
		Iteration:        sess.IterationCount,
		Decision:         decision.Kind,
		Rule:             decision.Rule,
		Reason:           decision.Reason,
		Adapter:          verdict.Adapter,
		Confidence:       verdict.Result.Confidence,
		RuntimeSeconds:   sess.CumulativeRuntimeSeconds,
		WallClockSeconds: sess.WallClockSeconds(now),
		CreatedAt:        now,
	}
	if err := c.Journal.Create(ctx, record); err != nil {
		log.Warn().Err(err).Msg("decision journal write failed")
	}
}

// readFocusArtifact loads the session's focus file, if configured. A missing
// or unreadable artifact is not an error; detection just sees no artifact.
func (c *Controller) readFocusArtifact(sess *models.Session, log zerolog.Logger) string {
	if sess.Focus == nil || sess.Focus.NoFocus || sess.Focus.TargetFile == "" {
		return ""
	}
	path := sess.Focus.TargetFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(sess.ProjectPath, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("focus artifact unreadable")
		}
		return ""
	}
	return string(data)
}

func (c *Controller) windowSize() int {
	if c.WindowSize > 0 {
		return c.WindowSize
	}
	return 5
}

func allowStop(reason string, sess *models.Session) Response {
	return Response{Decision: DecisionAllowStop, Reason: reason, State: sess}
}
