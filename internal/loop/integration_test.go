package loop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopmill/loopmill/internal/adapters"
	"github.com/loopmill/loopmill/internal/db"
	"github.com/loopmill/loopmill/internal/detect"
	"github.com/loopmill/loopmill/internal/models"
	"github.com/loopmill/loopmill/internal/runtime"
	"github.com/loopmill/loopmill/internal/session"
	"github.com/loopmill/loopmill/internal/store"
	"github.com/loopmill/loopmill/internal/testutil"
)

// End-to-end pass over the real file store and sqlite journal: state
// survives across controller instances the way it does across separate
// hook processes.
func TestControllerAcrossProcesses(t *testing.T) {
	project := testutil.NewProject(t)
	stateDir := t.TempDir()
	clock := newTestClock()

	database := testutil.NewTestDB(t)
	journal := db.NewDecisionRepository(database)

	newProcess := func() *Controller {
		fileStore, err := store.NewFileStore(stateDir)
		require.NoError(t, err)
		controller := NewController(
			fileStore,
			adapters.NewRegistry(adapters.DefaultAdapters()),
			detect.New(detect.Config{}, nil),
			runtime.NewTracker(0),
		)
		controller.Clock = clock.Now
		controller.Journal = journal
		return controller
	}

	fileStore, err := store.NewFileStore(stateDir)
	require.NoError(t, err)
	manager := NewManager(fileStore)
	manager.Clock = clock.Now
	_, err = manager.Start("sess-1", project.Dir, models.Limits{MaxIterations: 50}, nil)
	require.NoError(t, err)

	// First invocation in one process.
	resp, err := newProcess().HandleInvocation(context.Background(), Request{
		SessionID: "sess-1", ProjectDir: project.Dir, Prompt: "build the importer",
	})
	require.NoError(t, err)
	require.Equal(t, DecisionForceContinue, resp.Decision)

	clock.Advance(90 * time.Second)

	// Second invocation in a fresh process sees the persisted state.
	resp, err = newProcess().HandleInvocation(context.Background(), Request{
		SessionID: "sess-1", ProjectDir: project.Dir, Prompt: "add tests for the importer",
	})
	require.NoError(t, err)
	require.Equal(t, DecisionForceContinue, resp.Decision)
	require.NotNil(t, resp.State)
	assert.Equal(t, 2, resp.State.IterationCount)
	assert.InDelta(t, 90, resp.State.CumulativeRuntimeSeconds, 0.1)

	// Taskboard completion stops the loop in a third process.
	project.WriteTaskboard("- [x] build the importer\n- [x] add tests\n")
	clock.Advance(time.Minute)

	resp, err = newProcess().HandleInvocation(context.Background(), Request{
		SessionID: "sess-1", ProjectDir: project.Dir, Prompt: "next",
	})
	require.NoError(t, err)
	assert.Equal(t, DecisionAllowStop, resp.Decision)

	key, err := session.NewKey("sess-1", project.Dir)
	require.NoError(t, err)

	records, err := journal.List(context.Background(), db.DecisionFilter{SessionKey: key.String()})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, models.DecisionStop, records[0].Decision)
	assert.Equal(t, models.RuleAdapterAuthority, records[0].Rule)

	count, err := journal.CountBySession(context.Background(), key.String())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

// Metrics snapshots drive the benchjson adapter end to end.
func TestControllerBenchJSONAdvisoryStop(t *testing.T) {
	project := testutil.NewProject(t)
	clock := newTestClock()

	memStore := store.NewMemoryStore()
	controller := NewController(
		memStore,
		adapters.NewRegistry(adapters.DefaultAdapters()),
		detect.New(detect.Config{}, nil),
		runtime.NewTracker(0),
	)
	controller.Clock = clock.Now

	manager := NewManager(memStore)
	manager.Clock = clock.Now
	_, err := manager.Start("sess-1", project.Dir, models.Limits{}, nil)
	require.NoError(t, err)

	project.WriteMetrics("run-001.json", map[string]any{"tests_failed": 0, "tests_passed": 42})

	// Advisory green metrics alone disagree with the generic detector
	// (no completion signal), so the loop keeps going.
	resp, err := controller.HandleInvocation(context.Background(), Request{
		SessionID: "sess-1", ProjectDir: project.Dir, Prompt: "turn",
	})
	require.NoError(t, err)
	assert.Equal(t, DecisionForceContinue, resp.Decision)

	// With the done marker in the transcript both sides agree: stop.
	clock.Advance(time.Minute)
	resp, err = controller.HandleInvocation(context.Background(), Request{
		SessionID: "sess-1", ProjectDir: project.Dir, Prompt: "turn",
		Transcript: "LOOPMILL:DONE",
	})
	require.NoError(t, err)
	assert.Equal(t, DecisionAllowStop, resp.Decision)
}
