// Package adapters defines the convergence adapter contract and the
// registry that resolves which adapter judges a given project.
package adapters

import (
	"context"
	"time"

	"github.com/loopmill/loopmill/internal/models"
)

// Adapter is a pluggable, project-specific convergence strategy. Adapters
// are stateless singletons: Detect must be a cheap, side-effect-free
// filesystem check because it runs on every invocation.
type Adapter interface {
	// Name returns the unique adapter name.
	Name() string

	// Detect reports whether this adapter applies to the project.
	Detect(projectPath string) bool

	// MetricsHistory reads externally observed progress entries recorded
	// since the given time. The controller never writes these.
	MetricsHistory(ctx context.Context, projectPath string, since time.Time) ([]models.MetricsEntry, error)

	// CheckConvergence judges whether the loop should continue based on
	// the metrics history.
	CheckConvergence(ctx context.Context, entries []models.MetricsEntry) (models.ConvergenceResult, error)

	// SessionMode names the working mode this adapter expects the host to
	// run the session in.
	SessionMode() string
}

// Verdict is a registry-level convergence outcome: the adapter's result plus
// how it was obtained, for auditability.
type Verdict struct {
	Adapter string                   `json:"adapter"`
	Mode    string                   `json:"mode"`
	Result  models.ConvergenceResult `json:"result"`

	// Degraded is set when a timeout, error, or panic dropped the
	// adapter's signal for this invocation.
	Degraded bool `json:"degraded,omitempty"`

	// DegradedReason records why the signal was dropped.
	DegradedReason string `json:"degraded_reason,omitempty"`
}
