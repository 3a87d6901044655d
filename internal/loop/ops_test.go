package loop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopmill/loopmill/internal/models"
	"github.com/loopmill/loopmill/internal/store"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	manager := NewManager(store.NewMemoryStore())
	manager.Clock = newTestClock().Now
	return manager, t.TempDir()
}

func TestManagerStart(t *testing.T) {
	manager, projectDir := newTestManager(t)

	sess, err := manager.Start("sess-1", projectDir, models.PocLimits(), nil)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStateRunning, sess.State)
	assert.Equal(t, 0, sess.IterationCount)
	assert.Equal(t, models.PocLimits(), sess.Limits)
	assert.False(t, sess.StartedAt.IsZero())
}

func TestManagerStartRejectsActiveSession(t *testing.T) {
	manager, projectDir := newTestManager(t)

	_, err := manager.Start("sess-1", projectDir, models.Limits{}, nil)
	require.NoError(t, err)

	_, err = manager.Start("sess-1", projectDir, models.Limits{}, nil)
	require.Error(t, err)

	var transitionErr *models.TransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, models.SessionStateRunning, transitionErr.FromState)
}

func TestManagerStartInvalidLimitsFallBackToDefaults(t *testing.T) {
	manager, projectDir := newTestManager(t)

	sess, err := manager.Start("sess-1", projectDir, models.Limits{MinHours: 10, MaxHours: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ProductionLimits(), sess.Limits)
}

func TestManagerStopImmediate(t *testing.T) {
	manager, projectDir := newTestManager(t)

	_, err := manager.Start("sess-1", projectDir, models.Limits{}, nil)
	require.NoError(t, err)

	sess, err := manager.Stop("sess-1", projectDir, false)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStateStopped, sess.State)
}

func TestManagerStopDrain(t *testing.T) {
	manager, projectDir := newTestManager(t)

	_, err := manager.Start("sess-1", projectDir, models.Limits{}, nil)
	require.NoError(t, err)

	sess, err := manager.Stop("sess-1", projectDir, true)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStateDraining, sess.State)

	// A drain on a draining session stops it for real.
	sess, err = manager.Stop("sess-1", projectDir, true)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStateStopped, sess.State)
}

func TestManagerStopMissingSessionFails(t *testing.T) {
	manager, projectDir := newTestManager(t)

	_, err := manager.Stop("never-started", projectDir, false)
	require.Error(t, err)
}

func TestManagerStopStoppedSessionFails(t *testing.T) {
	manager, projectDir := newTestManager(t)

	_, err := manager.Start("sess-1", projectDir, models.Limits{}, nil)
	require.NoError(t, err)
	_, err = manager.Stop("sess-1", projectDir, false)
	require.NoError(t, err)

	_, err = manager.Stop("sess-1", projectDir, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
}

func TestManagerStatusMissingSessionReadsStopped(t *testing.T) {
	manager, projectDir := newTestManager(t)

	sess, err := manager.Status("never-started", projectDir)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStateStopped, sess.State)
	assert.Equal(t, 0, sess.IterationCount)
}

func TestManagerConfigure(t *testing.T) {
	manager, projectDir := newTestManager(t)

	_, err := manager.Start("sess-1", projectDir, models.PocLimits(), nil)
	require.NoError(t, err)

	updated := models.Limits{MinHours: 1, MaxHours: 4, MinIterations: 5, MaxIterations: 50}
	sess, err := manager.Configure("sess-1", projectDir, updated)
	require.NoError(t, err)
	assert.Equal(t, updated, sess.Limits)

	_, err = manager.Configure("sess-1", projectDir, models.Limits{MinIterations: 9, MaxIterations: 3})
	require.Error(t, err)
}

func TestManagerRestartAfterStop(t *testing.T) {
	manager, projectDir := newTestManager(t)

	first, err := manager.Start("sess-1", projectDir, models.Limits{}, nil)
	require.NoError(t, err)
	_, err = manager.Stop("sess-1", projectDir, false)
	require.NoError(t, err)

	second, err := manager.Start("sess-1", projectDir, models.Limits{}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStateRunning, second.State)
	assert.Equal(t, 0, second.IterationCount)
	assert.True(t, second.StartedAt.Equal(first.StartedAt) || second.StartedAt.After(first.StartedAt))
}

func TestManagerClear(t *testing.T) {
	manager, projectDir := newTestManager(t)

	_, err := manager.Start("sess-1", projectDir, models.Limits{}, nil)
	require.NoError(t, err)
	_, err = manager.Stop("sess-1", projectDir, false)
	require.NoError(t, err)

	require.NoError(t, manager.Clear("sess-1", projectDir))

	// The cleared session reads as a fresh stopped placeholder.
	sess, err := manager.Status("sess-1", projectDir)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStateStopped, sess.State)
	assert.Equal(t, 0, sess.IterationCount)
	assert.True(t, sess.CreatedAt.IsZero())

	// A new session can start in its place.
	_, err = manager.Start("sess-1", projectDir, models.Limits{}, nil)
	require.NoError(t, err)
}

func TestKillSwitchRoundTrip(t *testing.T) {
	projectDir := t.TempDir()

	assert.False(t, KillSwitchPresent(projectDir))
	require.NoError(t, PlantKillSwitch(projectDir))
	assert.True(t, KillSwitchPresent(projectDir))
	require.NoError(t, ClearKillSwitch(projectDir))
	assert.False(t, KillSwitchPresent(projectDir))

	// Clearing an absent marker is not an error.
	require.NoError(t, ClearKillSwitch(projectDir))
}

func TestRenderContinuationProgressBudget(t *testing.T) {
	sess := &models.Session{
		SessionID:                "sess-1",
		ProjectPath:              "/tmp/project",
		State:                    models.SessionStateRunning,
		IterationCount:           3,
		CumulativeRuntimeSeconds: 1.5 * 3600,
		Limits:                   models.Limits{MaxHours: 8, MaxIterations: 100},
		StartedAt:                time.Now(),
	}
	decision := models.Decision{
		Kind:   models.DecisionContinue,
		Rule:   models.RuleDefaultContinue,
		Reason: "no completion signal and limits not reached",
	}

	prompt := RenderContinuation(sess, decision, "taskboard")
	assert.Contains(t, prompt, "iteration 3 of 100")
	assert.Contains(t, prompt, "1.5h active of 8.0h budget")
	assert.Contains(t, prompt, "Session mode: taskboard")
	assert.Contains(t, prompt, decision.Reason)
}
