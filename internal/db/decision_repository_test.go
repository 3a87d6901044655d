package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopmill/loopmill/internal/models"
)

func newTestRepo(t *testing.T) (*DecisionRepository, context.Context) {
	t.Helper()

	database, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	ctx := context.Background()
	require.NoError(t, database.Migrate(ctx))
	return NewDecisionRepository(database), ctx
}

func record(key string, iteration int, kind models.DecisionKind, at time.Time) *DecisionRecord {
	return &DecisionRecord{
		SessionKey:  key,
		SessionID:   "sess-1",
		ProjectPath: "/home/dev/project",
		Iteration:   iteration,
		Decision:    kind,
		Rule:        models.RuleDefaultContinue,
		Reason:      "no completion signal and limits not reached",
		Adapter:     "universal",
		CreatedAt:   at,
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	database, err := OpenInMemory()
	require.NoError(t, err)
	defer database.Close()

	ctx := context.Background()
	require.NoError(t, database.Migrate(ctx))
	require.NoError(t, database.Migrate(ctx))
}

func TestCreateAndList(t *testing.T) {
	repo, ctx := newTestRepo(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		rec := record("sess-1@abc123def456", i+1, models.DecisionContinue, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Create(ctx, rec))
		assert.NotEmpty(t, rec.ID, "create assigns an id")
	}
	require.NoError(t, repo.Create(ctx,
		record("sess-1@abc123def456", 4, models.DecisionStop, base.Add(4*time.Minute))))
	require.NoError(t, repo.Create(ctx,
		record("other@111122223333", 1, models.DecisionContinue, base.Add(5*time.Minute))))

	all, err := repo.List(ctx, DecisionFilter{SessionKey: "sess-1@abc123def456"})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, 4, all[0].Iteration, "newest first")

	stops, err := repo.List(ctx, DecisionFilter{Decision: models.DecisionStop})
	require.NoError(t, err)
	require.Len(t, stops, 1)
	assert.Equal(t, models.DecisionStop, stops[0].Decision)

	limited, err := repo.List(ctx, DecisionFilter{SessionKey: "sess-1@abc123def456", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestLatestAndCount(t *testing.T) {
	repo, ctx := newTestRepo(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	latest, err := repo.Latest(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, repo.Create(ctx, record("key-1", 1, models.DecisionContinue, base)))
	require.NoError(t, repo.Create(ctx, record("key-1", 2, models.DecisionStop, base.Add(time.Minute))))

	latest, err = repo.Latest(ctx, "key-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 2, latest.Iteration)
	assert.Equal(t, models.DecisionStop, latest.Decision)

	count, err := repo.CountBySession(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
