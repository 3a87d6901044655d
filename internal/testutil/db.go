// Package testutil provides shared helpers for loopmill tests.
package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loopmill/loopmill/internal/db"
)

// NewTestDB creates a migrated in-memory SQLite journal for testing.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()

	database, err := db.OpenInMemory()
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, database.Migrate(context.Background()), "failed to run migrations")
	return database
}
