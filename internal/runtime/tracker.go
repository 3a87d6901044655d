// Package runtime accounts for active work time across controller
// invocations, excluding gaps where the host process was closed.
package runtime

import (
	"time"

	"github.com/loopmill/loopmill/internal/models"
)

// DefaultGapThreshold is the largest inter-invocation gap still counted as
// active work time. Longer gaps mean the host was closed or suspended and
// must not eat into the work budget.
const DefaultGapThreshold = 5 * time.Minute

// Tracker updates session runtime counters.
type Tracker struct {
	// GapThreshold caps the gap credited to cumulative runtime.
	GapThreshold time.Duration
}

// NewTracker creates a tracker with the given threshold, falling back to
// DefaultGapThreshold when non-positive.
func NewTracker(gapThreshold time.Duration) *Tracker {
	if gapThreshold <= 0 {
		gapThreshold = DefaultGapThreshold
	}
	return &Tracker{GapThreshold: gapThreshold}
}

// Update advances LastActiveAt to now and credits the elapsed gap to
// CumulativeRuntimeSeconds when it is within the threshold. It returns the
// seconds credited. Cumulative runtime is clamped so it never exceeds wall
// clock.
func (t *Tracker) Update(sess *models.Session, now time.Time) float64 {
	if sess == nil {
		return 0
	}
	if sess.LastActiveAt.IsZero() {
		sess.LastActiveAt = now
		return 0
	}

	gap := now.Sub(sess.LastActiveAt)
	sess.LastActiveAt = now

	if gap <= 0 || gap > t.GapThreshold {
		// Gap attributed to the host being closed or clock skew.
		return 0
	}

	credited := gap.Seconds()
	sess.CumulativeRuntimeSeconds += credited

	if wall := sess.WallClockSeconds(now); sess.CumulativeRuntimeSeconds > wall {
		credited -= sess.CumulativeRuntimeSeconds - wall
		sess.CumulativeRuntimeSeconds = wall
	}
	return credited
}
