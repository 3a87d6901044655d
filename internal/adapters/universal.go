package adapters

import (
	"context"
	"time"

	"github.com/loopmill/loopmill/internal/models"
)

// UniversalAdapter is the no-op fallback used when no registered adapter
// detects the project. It always defers fully to generic signals.
type UniversalAdapter struct{}

// Name returns the adapter name.
func (UniversalAdapter) Name() string {
	return "universal"
}

// Detect always matches.
func (UniversalAdapter) Detect(projectPath string) bool {
	return true
}

// MetricsHistory returns no entries.
func (UniversalAdapter) MetricsHistory(ctx context.Context, projectPath string, since time.Time) ([]models.MetricsEntry, error) {
	return nil, nil
}

// CheckConvergence has no opinion: confidence 0, full deferral.
func (UniversalAdapter) CheckConvergence(ctx context.Context, entries []models.MetricsEntry) (models.ConvergenceResult, error) {
	return models.ConvergenceResult{
		ShouldContinue: true,
		Reason:         "no project adapter matched",
		Confidence:     models.ConfidenceNone,
	}, nil
}

// SessionMode returns the generic mode.
func (UniversalAdapter) SessionMode() string {
	return "generic"
}
