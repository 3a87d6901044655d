package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKey(t *testing.T) {
	key, err := NewKey("sess-1", "/home/dev/project")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", key.SessionID)
	assert.Len(t, key.PathHash, pathHashLen)
	assert.Equal(t, "sess-1@"+key.PathHash, key.String())
	assert.Equal(t, key.String()+".json", key.FileName())
}

func TestNewKeyRejectsEmptyInputs(t *testing.T) {
	_, err := NewKey("", "/home/dev/project")
	require.Error(t, err)

	_, err = NewKey("sess-1", "   ")
	require.Error(t, err)
}

func TestKeyIsolatesWorktrees(t *testing.T) {
	a, err := NewKey("sess-1", "/home/dev/repo")
	require.NoError(t, err)
	b, err := NewKey("sess-1", "/home/dev/repo-worktree")
	require.NoError(t, err)

	assert.NotEqual(t, a.PathHash, b.PathHash,
		"same session id in different projects must not share state")
	assert.NotEqual(t, a.FileName(), b.FileName())
}

func TestKeyStableAcrossPathSpellings(t *testing.T) {
	a, err := NewKey("sess-1", "/home/dev/repo")
	require.NoError(t, err)
	b, err := NewKey("sess-1", "/home/dev/../dev/repo/")
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestPathHashDeterministic(t *testing.T) {
	assert.Equal(t, PathHash("/x"), PathHash("/x"))
	assert.NotEqual(t, PathHash("/x"), PathHash("/y"))
}
