package adapters

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/loopmill/loopmill/internal/models"
)

// taskboardFile is the markdown checklist the taskboard adapter watches.
const taskboardFile = "taskboard.md"

// TaskboardAdapter judges convergence from a markdown task checklist at
// <project>/.loopmill/taskboard.md. An all-checked board is an authoritative
// stop; a board with open items is an advisory continue.
type TaskboardAdapter struct{}

// NewTaskboardAdapter creates a taskboard adapter.
func NewTaskboardAdapter() TaskboardAdapter {
	return TaskboardAdapter{}
}

// Name returns the adapter name.
func (TaskboardAdapter) Name() string {
	return "taskboard"
}

// Detect checks for the taskboard file. Existence check only.
func (TaskboardAdapter) Detect(projectPath string) bool {
	_, err := os.Stat(filepath.Join(projectPath, ".loopmill", taskboardFile))
	return err == nil
}

// MetricsHistory reads the board and reports one entry with open/done counts.
func (TaskboardAdapter) MetricsHistory(ctx context.Context, projectPath string, since time.Time) ([]models.MetricsEntry, error) {
	path := filepath.Join(projectPath, ".loopmill", taskboardFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taskboard: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat taskboard: %w", err)
	}

	total, done := countTasks(string(data))
	entry := models.MetricsEntry{
		Timestamp: info.ModTime().UTC(),
		Values: map[string]string{
			"tasks_total": strconv.Itoa(total),
			"tasks_done":  strconv.Itoa(done),
		},
	}
	return []models.MetricsEntry{entry}, nil
}

// CheckConvergence maps board progress to a convergence result.
func (TaskboardAdapter) CheckConvergence(ctx context.Context, entries []models.MetricsEntry) (models.ConvergenceResult, error) {
	if len(entries) == 0 {
		return models.ConvergenceResult{
			ShouldContinue: true,
			Reason:         "no taskboard metrics",
			Confidence:     models.ConfidenceNone,
		}, nil
	}

	latest := entries[len(entries)-1]
	total, _ := strconv.Atoi(latest.Values["tasks_total"])
	done, _ := strconv.Atoi(latest.Values["tasks_done"])

	if total == 0 {
		return models.ConvergenceResult{
			ShouldContinue: true,
			Reason:         "taskboard has no tasks yet",
			Confidence:     models.ConfidenceNone,
		}, nil
	}

	if done >= total {
		return models.ConvergenceResult{
			ShouldContinue: false,
			Reason:         fmt.Sprintf("taskboard complete (%d/%d)", done, total),
			Confidence:     models.ConfidenceAuthoritative,
		}, nil
	}

	return models.ConvergenceResult{
		ShouldContinue: true,
		Reason:         fmt.Sprintf("taskboard has open items (%d/%d done)", done, total),
		Confidence:     models.ConfidenceAdvisory,
	}, nil
}

// SessionMode returns the taskboard working mode.
func (TaskboardAdapter) SessionMode() string {
	return "taskboard"
}

func countTasks(board string) (total, done int) {
	for _, line := range strings.Split(board, "\n") {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) < 5 || (trimmed[0] != '-' && trimmed[0] != '*') {
			continue
		}
		rest := strings.TrimSpace(trimmed[1:])
		switch {
		case strings.HasPrefix(rest, "[ ]"):
			total++
		case strings.HasPrefix(rest, "[x]") || strings.HasPrefix(rest, "[X]"):
			total++
			done++
		}
	}
	return total, done
}
