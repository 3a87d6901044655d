package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading with Viper.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v: viper.New(),
	}
}

// SetConfigFile sets an explicit config file path.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// Load loads configuration with proper precedence:
// defaults < config file < env vars
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	l.setupViper(cfg)

	if err := l.loadConfigFile(); err != nil {
		// Config file is optional, only error if explicitly specified
		if l.configFile != "" {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	expandPaths(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (l *Loader) setupViper(cfg *Config) {
	v := l.v

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		v.AddConfigPath(filepath.Join(xdgConfig, "loopmill"))
	}

	homeDir, _ := os.UserHomeDir()
	if homeDir != "" {
		v.AddConfigPath(filepath.Join(homeDir, ".config", "loopmill"))
	}

	v.SetEnvPrefix("LOOPMILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("global.data_dir", cfg.Global.DataDir)
	v.SetDefault("global.config_dir", cfg.Global.ConfigDir)
	v.SetDefault("journal.path", cfg.Journal.Path)
	v.SetDefault("journal.max_connections", cfg.Journal.MaxConnections)
	v.SetDefault("journal.busy_timeout_ms", cfg.Journal.BusyTimeoutMs)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.enable_caller", cfg.Logging.EnableCaller)
	v.SetDefault("limit_defaults.min_hours", cfg.LimitDefaults.MinHours)
	v.SetDefault("limit_defaults.max_hours", cfg.LimitDefaults.MaxHours)
	v.SetDefault("limit_defaults.min_iterations", cfg.LimitDefaults.MinIterations)
	v.SetDefault("limit_defaults.max_iterations", cfg.LimitDefaults.MaxIterations)
	v.SetDefault("detection.done_marker", cfg.Detection.DoneMarker)
	v.SetDefault("detection.terminal_statuses", cfg.Detection.TerminalStatuses)
	v.SetDefault("detection.similarity_threshold", cfg.Detection.SimilarityThreshold)
	v.SetDefault("detection.window_size", cfg.Detection.WindowSize)
	v.SetDefault("detection.idle_streak_limit", cfg.Detection.IdleStreakLimit)
	v.SetDefault("runtime.gap_threshold", cfg.Runtime.GapThreshold)
	v.SetDefault("adapters.metrics_timeout", cfg.Adapters.MetricsTimeout)
	v.SetDefault("adapters.disabled", cfg.Adapters.Disabled)
}

func (l *Loader) loadConfigFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	}
	return l.v.ReadInConfig()
}

// expandTilde expands ~ to the user's home directory.
func expandTilde(path string) string {
	if path == "" {
		return path
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// expandPaths expands ~ in all path-related config fields.
func expandPaths(cfg *Config) {
	cfg.Global.DataDir = expandTilde(cfg.Global.DataDir)
	cfg.Global.ConfigDir = expandTilde(cfg.Global.ConfigDir)
	cfg.Journal.Path = expandTilde(cfg.Journal.Path)
	cfg.Logging.File = expandTilde(cfg.Logging.File)
}
