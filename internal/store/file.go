package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/loopmill/loopmill/internal/logging"
	"github.com/loopmill/loopmill/internal/models"
	"github.com/loopmill/loopmill/internal/session"
)

// FileStore persists one JSON document per session key under a state
// directory, plus two legacy marker files older consumers still read: an
// "enabled" flag and a start-timestamp file. Markers always mirror the
// canonical document.
type FileStore struct {
	dir    string
	logger zerolog.Logger
}

// NewFileStore creates a file store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return &FileStore{
		dir:    dir,
		logger: logging.Component("store"),
	}, nil
}

// Dir returns the state directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Load reads the session document for a key. Corrupt or unparsable files are
// reported as models.ErrNotFound so the controller fails safe to stopped.
func (s *FileStore) Load(key session.Key) (*models.Session, error) {
	data, err := os.ReadFile(s.statePath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, models.ErrNotFound
		}
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("state file unreadable, treating as not found")
		return nil, models.ErrNotFound
	}

	var sess models.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("state file corrupt, treating as not found")
		return nil, models.ErrNotFound
	}
	if err := sess.Validate(); err != nil {
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("state file invalid, treating as not found")
		return nil, models.ErrNotFound
	}
	return &sess, nil
}

// Save writes the session atomically (temp file + rename) and refreshes the
// legacy markers.
func (s *FileStore) Save(key session.Key, sess *models.Session) error {
	if sess == nil {
		return fmt.Errorf("session is required")
	}
	if err := sess.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid session: %w", err)
	}

	sess.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	path := s.statePath(key)
	tmp, err := os.CreateTemp(s.dir, key.String()+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename state file: %w", err)
	}

	s.writeLegacyMarkers(key, sess)
	return nil
}

// Clear removes the state document and markers for a key.
func (s *FileStore) Clear(key session.Key) error {
	for _, path := range []string{s.statePath(key), s.enabledPath(key), s.startedAtPath(key)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}
	return nil
}

// writeLegacyMarkers mirrors canonical state into the legacy enabled flag
// and start-timestamp files. Marker failures are logged, not fatal: the
// canonical document has already been persisted.
func (s *FileStore) writeLegacyMarkers(key session.Key, sess *models.Session) {
	enabled := sess.State == models.SessionStateRunning || sess.State == models.SessionStateDraining

	if enabled {
		if err := os.WriteFile(s.enabledPath(key), []byte("1\n"), 0o644); err != nil {
			s.logger.Warn().Err(err).Msg("failed to write enabled marker")
		}
		stamp := strconv.FormatInt(sess.StartedAt.UTC().Unix(), 10) + "\n"
		if err := os.WriteFile(s.startedAtPath(key), []byte(stamp), 0o644); err != nil {
			s.logger.Warn().Err(err).Msg("failed to write started-at marker")
		}
		return
	}

	for _, path := range []string{s.enabledPath(key), s.startedAtPath(key)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn().Err(err).Str("path", path).Msg("failed to remove legacy marker")
		}
	}
}

func (s *FileStore) statePath(key session.Key) string {
	return filepath.Join(s.dir, key.FileName())
}

func (s *FileStore) enabledPath(key session.Key) string {
	return filepath.Join(s.dir, key.String()+".enabled")
}

func (s *FileStore) startedAtPath(key session.Key) string {
	return filepath.Join(s.dir, key.String()+".started-at")
}
