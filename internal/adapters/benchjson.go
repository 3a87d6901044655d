package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/loopmill/loopmill/internal/models"
)

// metricsDir holds one JSON summary per prior run, written by external
// tooling (test harnesses, benchmark runners). The controller only reads.
const metricsDir = "metrics"

// plateauWindow is how many trailing entries must show no improvement before
// the adapter suggests stopping.
const plateauWindow = 3

// BenchJSONAdapter judges convergence from run summaries under
// <project>/.loopmill/metrics/*.json. Each file is a flat JSON object; the
// keys it understands are "tests_failed" and "tests_passed", everything else
// passes through as opaque metrics.
type BenchJSONAdapter struct{}

// NewBenchJSONAdapter creates a benchjson adapter.
func NewBenchJSONAdapter() BenchJSONAdapter {
	return BenchJSONAdapter{}
}

// Name returns the adapter name.
func (BenchJSONAdapter) Name() string {
	return "benchjson"
}

// Detect checks for the metrics directory. Existence check only.
func (BenchJSONAdapter) Detect(projectPath string) bool {
	info, err := os.Stat(filepath.Join(projectPath, ".loopmill", metricsDir))
	return err == nil && info.IsDir()
}

// MetricsHistory loads run summaries recorded since the given time, oldest
// first.
func (BenchJSONAdapter) MetricsHistory(ctx context.Context, projectPath string, since time.Time) ([]models.MetricsEntry, error) {
	dir := filepath.Join(projectPath, ".loopmill", metricsDir)
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read metrics dir: %w", err)
	}

	var entries []models.MetricsEntry
	for _, dirEntry := range dirEntries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if dirEntry.IsDir() || filepath.Ext(dirEntry.Name()) != ".json" {
			continue
		}
		info, err := dirEntry.Info()
		if err != nil {
			continue
		}
		stamp := info.ModTime().UTC()
		if stamp.Before(since) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, dirEntry.Name()))
		if err != nil {
			continue
		}
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			// Malformed summaries are skipped, not fatal.
			continue
		}

		values := make(map[string]string, len(raw))
		for key, value := range raw {
			values[key] = fmt.Sprintf("%v", value)
		}
		entries = append(entries, models.MetricsEntry{Timestamp: stamp, Values: values})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

// CheckConvergence suggests stopping when the test suite is green or when
// failures have plateaued; both are advisory since summaries lag the work.
func (BenchJSONAdapter) CheckConvergence(ctx context.Context, entries []models.MetricsEntry) (models.ConvergenceResult, error) {
	if len(entries) == 0 {
		return models.ConvergenceResult{
			ShouldContinue: true,
			Reason:         "no run summaries recorded",
			Confidence:     models.ConfidenceNone,
		}, nil
	}

	latest := entries[len(entries)-1]
	failed, ok := intValue(latest, "tests_failed")
	if !ok {
		return models.ConvergenceResult{
			ShouldContinue: true,
			Reason:         "run summaries carry no failure counts",
			Confidence:     models.ConfidenceNone,
		}, nil
	}

	if failed == 0 {
		return models.ConvergenceResult{
			ShouldContinue: false,
			Reason:         "latest run summary reports zero failures",
			Confidence:     models.ConfidenceAdvisory,
		}, nil
	}

	if plateaued(entries) {
		return models.ConvergenceResult{
			ShouldContinue: false,
			Reason:         fmt.Sprintf("failure count stuck at %d for %d runs", failed, plateauWindow),
			Confidence:     models.ConfidenceAdvisory,
		}, nil
	}

	return models.ConvergenceResult{
		ShouldContinue: true,
		Reason:         fmt.Sprintf("%d failures remaining", failed),
		Confidence:     models.ConfidenceAdvisory,
	}, nil
}

// SessionMode returns the metrics-driven working mode.
func (BenchJSONAdapter) SessionMode() string {
	return "metrics"
}

func plateaued(entries []models.MetricsEntry) bool {
	if len(entries) < plateauWindow {
		return false
	}
	tail := entries[len(entries)-plateauWindow:]
	first, ok := intValue(tail[0], "tests_failed")
	if !ok {
		return false
	}
	for _, entry := range tail[1:] {
		value, ok := intValue(entry, "tests_failed")
		if !ok || value != first {
			return false
		}
	}
	return true
}

func intValue(entry models.MetricsEntry, key string) (int, bool) {
	raw, ok := entry.Values[key]
	if !ok {
		return 0, false
	}
	// JSON numbers render as floats ("3" or "3.0" both appear).
	if parsed, err := strconv.Atoi(raw); err == nil {
		return parsed, true
	}
	if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
		return int(parsed), true
	}
	return 0, false
}
