// Package config handles loopmill configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/loopmill/loopmill/internal/logging"
	"github.com/loopmill/loopmill/internal/models"
)

// Config is the root configuration structure for loopmill.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// Journal settings (sqlite decision journal)
	Journal JournalConfig `yaml:"journal" mapstructure:"journal"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// Limits applied to new sessions when no preset or flags override them.
	LimitDefaults models.Limits `yaml:"limit_defaults" mapstructure:"limit_defaults"`

	// Detection settings for the completion detector.
	Detection DetectionConfig `yaml:"detection" mapstructure:"detection"`

	// Runtime settings for gap-excluding time tracking.
	Runtime RuntimeConfig `yaml:"runtime" mapstructure:"runtime"`

	// Adapters settings for the adapter registry.
	Adapters AdaptersConfig `yaml:"adapters" mapstructure:"adapters"`
}

// GlobalConfig contains global loopmill settings.
type GlobalConfig struct {
	// DataDir is where loopmill stores session state and the journal
	// (default: ~/.local/share/loopmill).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// ConfigDir is where config files are stored (default: ~/.config/loopmill).
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
}

// JournalConfig contains decision journal settings.
type JournalConfig struct {
	// Path is the SQLite journal file path (default: DataDir/journal.db).
	Path string `yaml:"path" mapstructure:"path"`

	// MaxConnections is the maximum number of database connections.
	MaxConnections int `yaml:"max_connections" mapstructure:"max_connections"`

	// BusyTimeoutMs is how long to wait for a locked database (milliseconds).
	BusyTimeoutMs int `yaml:"busy_timeout_ms" mapstructure:"busy_timeout_ms"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console, auto).
	Format string `yaml:"format" mapstructure:"format"`

	// File is an optional log file path.
	File string `yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// DetectionConfig tunes the completion detector.
type DetectionConfig struct {
	// DoneMarker is the sentinel string the agent emits when finished.
	DoneMarker string `yaml:"done_marker" mapstructure:"done_marker"`

	// TerminalStatuses are frontmatter status values treated as finished.
	TerminalStatuses []string `yaml:"terminal_statuses" mapstructure:"terminal_statuses"`

	// SimilarityThreshold is the idle-loop similarity cutoff in [0,1].
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`

	// WindowSize is how many recent prompts are kept for idle-loop checks.
	WindowSize int `yaml:"window_size" mapstructure:"window_size"`

	// IdleStreakLimit is how many consecutive near-duplicate turns trigger
	// the idle-loop signal.
	IdleStreakLimit int `yaml:"idle_streak_limit" mapstructure:"idle_streak_limit"`
}

// RuntimeConfig tunes active-runtime accounting.
type RuntimeConfig struct {
	// GapThreshold is the largest inter-invocation gap still counted as
	// active work time.
	GapThreshold time.Duration `yaml:"gap_threshold" mapstructure:"gap_threshold"`
}

// AdaptersConfig tunes adapter execution.
type AdaptersConfig struct {
	// MetricsTimeout bounds a single adapter metrics/convergence call.
	MetricsTimeout time.Duration `yaml:"metrics_timeout" mapstructure:"metrics_timeout"`

	// Disabled lists adapter names skipped during resolution.
	Disabled []string `yaml:"disabled" mapstructure:"disabled"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Global: GlobalConfig{
			DataDir:   filepath.Join(homeDir, ".local", "share", "loopmill"),
			ConfigDir: filepath.Join(homeDir, ".config", "loopmill"),
		},
		Journal: JournalConfig{
			Path:           "", // Will be set to DataDir/journal.db
			MaxConnections: 10,
			BusyTimeoutMs:  5000,
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "auto",
			EnableCaller: false,
		},
		LimitDefaults: models.ProductionLimits(),
		Detection: DetectionConfig{
			DoneMarker:          "LOOPMILL:DONE",
			TerminalStatuses:    []string{"done", "complete", "completed", "shipped"},
			SimilarityThreshold: 0.9,
			WindowSize:          5,
			IdleStreakLimit:     2,
		},
		Runtime: RuntimeConfig{
			GapThreshold: 5 * time.Minute,
		},
		Adapters: AdaptersConfig{
			MetricsTimeout: 15 * time.Second,
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Global.DataDir) == "" {
		return fmt.Errorf("global.data_dir is required")
	}
	if strings.TrimSpace(c.Global.ConfigDir) == "" {
		return fmt.Errorf("global.config_dir is required")
	}

	if c.Journal.MaxConnections < 1 {
		return fmt.Errorf("journal.max_connections must be at least 1")
	}
	if c.Journal.BusyTimeoutMs < 0 {
		return fmt.Errorf("journal.busy_timeout_ms must be zero or greater")
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "console", "json", "auto":
	default:
		return fmt.Errorf("logging.format must be one of console, json, auto")
	}

	if err := c.LimitDefaults.Validate(); err != nil {
		return fmt.Errorf("limit_defaults: %w", err)
	}

	if c.Detection.SimilarityThreshold < 0 || c.Detection.SimilarityThreshold > 1 {
		return fmt.Errorf("detection.similarity_threshold must be within [0, 1]")
	}
	if c.Detection.WindowSize < 1 {
		return fmt.Errorf("detection.window_size must be at least 1")
	}
	if c.Detection.IdleStreakLimit < 1 {
		return fmt.Errorf("detection.idle_streak_limit must be at least 1")
	}
	if strings.TrimSpace(c.Detection.DoneMarker) == "" {
		return fmt.Errorf("detection.done_marker is required")
	}

	if c.Runtime.GapThreshold <= 0 {
		return fmt.Errorf("runtime.gap_threshold must be greater than 0")
	}
	if c.Adapters.MetricsTimeout <= 0 {
		return fmt.Errorf("adapters.metrics_timeout must be greater than 0")
	}

	return nil
}

// JournalPath resolves the journal path, defaulting under DataDir.
func (c *Config) JournalPath() string {
	if strings.TrimSpace(c.Journal.Path) != "" {
		return c.Journal.Path
	}
	return filepath.Join(c.Global.DataDir, "journal.db")
}

// LoggingSetup converts the logging section for logging.Setup.
func (c *Config) LoggingSetup() logging.Config {
	return logging.Config{
		Level:        c.Logging.Level,
		Format:       c.Logging.Format,
		File:         c.Logging.File,
		EnableCaller: c.Logging.EnableCaller,
	}
}

// ProjectOverrides are per-project settings read from
// <project>/.loopmill/loopmill.yaml. A malformed file never blocks the loop;
// callers fall back to the base config and log a warning.
type ProjectOverrides struct {
	Limits    *models.Limits   `yaml:"limits,omitempty"`
	Detection *DetectionConfig `yaml:"detection,omitempty"`
}

// LoadProjectOverrides reads per-project overrides. Returns a zero value when
// the file does not exist. A parse failure returns the zero value and the
// error so callers can warn without failing.
func LoadProjectOverrides(projectPath string) (ProjectOverrides, error) {
	path := filepath.Join(projectPath, ".loopmill", "loopmill.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return ProjectOverrides{}, nil
	}

	var overrides ProjectOverrides
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return ProjectOverrides{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return overrides, nil
}

// ApplyOverrides merges project overrides onto a copy of the config.
// Invalid override values are ignored field by field.
func (c *Config) ApplyOverrides(overrides ProjectOverrides) *Config {
	merged := *c
	if overrides.Limits != nil && overrides.Limits.Validate() == nil {
		merged.LimitDefaults = *overrides.Limits
	}
	if overrides.Detection != nil {
		d := merged.Detection
		if overrides.Detection.DoneMarker != "" {
			d.DoneMarker = overrides.Detection.DoneMarker
		}
		if len(overrides.Detection.TerminalStatuses) > 0 {
			d.TerminalStatuses = overrides.Detection.TerminalStatuses
		}
		if t := overrides.Detection.SimilarityThreshold; t > 0 && t <= 1 {
			d.SimilarityThreshold = t
		}
		if overrides.Detection.WindowSize > 0 {
			d.WindowSize = overrides.Detection.WindowSize
		}
		if overrides.Detection.IdleStreakLimit > 0 {
			d.IdleStreakLimit = overrides.Detection.IdleStreakLimit
		}
		merged.Detection = d
	}
	return &merged
}
