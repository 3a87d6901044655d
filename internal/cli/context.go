// Package cli provides shared command wiring helpers.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/loopmill/loopmill/internal/adapters"
	"github.com/loopmill/loopmill/internal/config"
	"github.com/loopmill/loopmill/internal/db"
	"github.com/loopmill/loopmill/internal/detect"
	"github.com/loopmill/loopmill/internal/loop"
	"github.com/loopmill/loopmill/internal/runtime"
	"github.com/loopmill/loopmill/internal/store"
)

// sessionIDEnv lets hosts pin the session id without passing flags.
const sessionIDEnv = "LOOPMILL_SESSION_ID"

// resolveProjectDir returns the flag value or the working directory.
func resolveProjectDir(flagValue string) (string, error) {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue, nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("determine working directory: %w", err)
	}
	return dir, nil
}

// resolveSessionID returns the flag value, the environment value, or a fresh
// id, in that order.
func resolveSessionID(flagValue string) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	if env := strings.TrimSpace(os.Getenv(sessionIDEnv)); env != "" {
		return env
	}
	return uuid.NewString()
}

// openStore opens the file-backed session store under the data dir.
func openStore(cfg *config.Config) (store.Store, error) {
	return store.NewFileStore(loop.StateDir(cfg.Global.DataDir))
}

// openJournal opens the sqlite decision journal and applies migrations. The
// journal is observability only; callers treat a nil repository as "no
// journal" and carry on.
func openJournal(ctx context.Context, cfg *config.Config) (*db.DB, *db.DecisionRepository) {
	database, err := db.Open(db.Config{
		Path:          cfg.JournalPath(),
		MaxOpenConns:  cfg.Journal.MaxConnections,
		BusyTimeoutMs: cfg.Journal.BusyTimeoutMs,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("decision journal unavailable")
		return nil, nil
	}
	if err := database.Migrate(ctx); err != nil {
		logger.Warn().Err(err).Msg("decision journal migration failed")
		database.Close()
		return nil, nil
	}
	return database, db.NewDecisionRepository(database)
}

// buildController assembles the hook pipeline from config, applying
// per-project overrides.
func buildController(cfg *config.Config, projectDir string, journal *db.DecisionRepository) (*loop.Controller, error) {
	overrides, err := config.LoadProjectOverrides(projectDir)
	if err != nil {
		logger.Warn().Err(err).Msg("project overrides ignored")
	}
	effective := cfg.ApplyOverrides(overrides)

	st, err := openStore(effective)
	if err != nil {
		return nil, err
	}

	registry := adapters.NewRegistry(
		adapters.DefaultAdapters(),
		adapters.WithTimeout(effective.Adapters.MetricsTimeout),
		adapters.WithDisabled(effective.Adapters.Disabled...),
	)

	detector := detect.New(detect.Config{
		DoneMarker:          effective.Detection.DoneMarker,
		TerminalStatuses:    effective.Detection.TerminalStatuses,
		SimilarityThreshold: effective.Detection.SimilarityThreshold,
		IdleStreakLimit:     effective.Detection.IdleStreakLimit,
	}, nil)

	controller := loop.NewController(st, registry, detector, runtime.NewTracker(effective.Runtime.GapThreshold))
	controller.Journal = journal
	controller.WindowSize = effective.Detection.WindowSize
	return controller, nil
}

func hasTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
