package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopmill/loopmill/internal/models"
	"github.com/loopmill/loopmill/internal/session"
)

func testKey(t *testing.T, id, path string) session.Key {
	t.Helper()
	key, err := session.NewKey(id, path)
	require.NoError(t, err)
	return key
}

func testSession(id, path string) *models.Session {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.Session{
		SessionID:    id,
		ProjectPath:  path,
		State:        models.SessionStateRunning,
		StartedAt:    now,
		LastActiveAt: now,
		Limits:       models.PocLimits(),
		CreatedAt:    now,
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	key := testKey(t, "sess-1", "/home/dev/project")
	sess := testSession("sess-1", "/home/dev/project")
	sess.IterationCount = 3
	sess.RecentPrompts = []string{"keep going", "continue"}

	require.NoError(t, fs.Save(key, sess))

	loaded, err := fs.Load(key)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.IterationCount)
	assert.Equal(t, models.SessionStateRunning, loaded.State)
	assert.Equal(t, []string{"keep going", "continue"}, loaded.RecentPrompts)
	assert.False(t, loaded.UpdatedAt.IsZero(), "save stamps updated_at")
}

func TestFileStoreLoadMissing(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = fs.Load(testKey(t, "sess-x", "/nowhere"))
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestFileStoreLoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)

	key := testKey(t, "sess-1", "/home/dev/project")
	require.NoError(t, os.WriteFile(filepath.Join(dir, key.FileName()), []byte("{not json"), 0o644))

	_, err = fs.Load(key)
	require.ErrorIs(t, err, models.ErrNotFound, "corrupt state reads as not found, never an error")
}

func TestFileStoreLoadInvalidSession(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)

	key := testKey(t, "sess-1", "/home/dev/project")
	// Parses fine but fails validation (no session id).
	require.NoError(t, os.WriteFile(filepath.Join(dir, key.FileName()), []byte(`{"state":"running"}`), 0o644))

	_, err = fs.Load(key)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestFileStoreAtomicSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)

	key := testKey(t, "sess-1", "/home/dev/project")
	require.NoError(t, fs.Save(key, testSession("sess-1", "/home/dev/project")))
	require.NoError(t, fs.Save(key, testSession("sess-1", "/home/dev/project")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), ".tmp-", "temp files must not survive a save")
	}
}

func TestFileStoreLegacyMarkers(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)

	key := testKey(t, "sess-1", "/home/dev/project")
	sess := testSession("sess-1", "/home/dev/project")

	require.NoError(t, fs.Save(key, sess))
	assert.FileExists(t, filepath.Join(dir, key.String()+".enabled"))
	assert.FileExists(t, filepath.Join(dir, key.String()+".started-at"))

	data, err := os.ReadFile(filepath.Join(dir, key.String()+".enabled"))
	require.NoError(t, err)
	assert.Equal(t, "1\n", string(data))

	require.NoError(t, sess.Transition(models.SessionStateStopped, "test"))
	require.NoError(t, fs.Save(key, sess))
	assert.NoFileExists(t, filepath.Join(dir, key.String()+".enabled"))
	assert.NoFileExists(t, filepath.Join(dir, key.String()+".started-at"))
}

func TestFileStoreClear(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)

	key := testKey(t, "sess-1", "/home/dev/project")
	require.NoError(t, fs.Save(key, testSession("sess-1", "/home/dev/project")))
	require.NoError(t, fs.Clear(key))

	_, err = fs.Load(key)
	require.ErrorIs(t, err, models.ErrNotFound)
	assert.NoFileExists(t, filepath.Join(dir, key.String()+".enabled"))

	require.NoError(t, fs.Clear(key), "clearing a missing key is not an error")
}

func TestFileStoreSessionIsolation(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)

	keyA := testKey(t, "sess-1", "/home/dev/repo")
	keyB := testKey(t, "sess-1", "/home/dev/repo-worktree")

	sessA := testSession("sess-1", "/home/dev/repo")
	sessA.IterationCount = 7
	require.NoError(t, fs.Save(keyA, sessA))

	_, err = fs.Load(keyB)
	require.ErrorIs(t, err, models.ErrNotFound,
		"same session id under a different project path must not see the other state")

	sessB := testSession("sess-1", "/home/dev/repo-worktree")
	require.NoError(t, fs.Save(keyB, sessB))

	loadedA, err := fs.Load(keyA)
	require.NoError(t, err)
	assert.Equal(t, 7, loadedA.IterationCount, "writing one worktree never clobbers the other")
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ms := NewMemoryStore()
	key := testKey(t, "sess-1", "/home/dev/project")

	_, err := ms.Load(key)
	require.ErrorIs(t, err, models.ErrNotFound)

	sess := testSession("sess-1", "/home/dev/project")
	require.NoError(t, ms.Save(key, sess))

	loaded, err := ms.Load(key)
	require.NoError(t, err)

	// Mutating the loaded copy must not affect the stored value.
	loaded.IterationCount = 99
	again, err := ms.Load(key)
	require.NoError(t, err)
	assert.Zero(t, again.IterationCount)

	require.NoError(t, ms.Clear(key))
	_, err = ms.Load(key)
	require.ErrorIs(t, err, models.ErrNotFound)
}
