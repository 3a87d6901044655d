// Package session derives the isolation key that scopes persisted loop state
// to one (session, project) pair.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/loopmill/loopmill/internal/models"
)

// pathHashLen is the number of hex characters kept from the project path
// hash. 48 bits keeps collisions negligible for any realistic number of
// worktrees while keeping filenames short.
const pathHashLen = 12

// Key identifies one loop session scoped to one project path. Two worktrees
// of the same repository get distinct keys even under the same session id.
type Key struct {
	SessionID string
	PathHash  string
}

// NewKey builds a key from a session id and a project path. The path is
// canonicalized (absolute, cleaned, symlinks left alone) before hashing so
// equivalent spellings of the same directory map to the same key.
func NewKey(sessionID, projectPath string) (Key, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Key{}, models.ErrInvalidSessionID
	}
	canonical, err := CanonicalPath(projectPath)
	if err != nil {
		return Key{}, err
	}
	return Key{
		SessionID: sessionID,
		PathHash:  PathHash(canonical),
	}, nil
}

// CanonicalPath normalizes a project path for hashing.
func CanonicalPath(projectPath string) (string, error) {
	if strings.TrimSpace(projectPath) == "" {
		return "", models.ErrInvalidProjectPath
	}
	abs, err := filepath.Abs(projectPath)
	if err != nil {
		return "", fmt.Errorf("canonicalize project path: %w", err)
	}
	return filepath.Clean(abs), nil
}

// PathHash returns a fixed-length identifier for a canonical project path.
func PathHash(canonicalPath string) string {
	sum := sha256.Sum256([]byte(canonicalPath))
	return hex.EncodeToString(sum[:])[:pathHashLen]
}

// String renders the key in its on-disk form: {sessionID}@{pathHash}.
func (k Key) String() string {
	return k.SessionID + "@" + k.PathHash
}

// FileName returns the state file name for this key.
func (k Key) FileName() string {
	return k.String() + ".json"
}
