// Package store persists loop session state. The file-backed implementation
// is the production source of truth; the memory implementation backs tests.
package store

import (
	"github.com/loopmill/loopmill/internal/models"
	"github.com/loopmill/loopmill/internal/session"
)

// Store is the durable state contract. Load returns models.ErrNotFound for
// missing or unreadable state; callers treat that as a stopped session.
type Store interface {
	// Load returns the session for a key, or models.ErrNotFound.
	Load(key session.Key) (*models.Session, error)

	// Save atomically persists the session. A crash mid-save never leaves
	// a partially written state behind.
	Save(key session.Key, sess *models.Session) error

	// Clear removes the persisted state for a key. Clearing a missing key
	// is not an error.
	Clear(key session.Key) error
}
