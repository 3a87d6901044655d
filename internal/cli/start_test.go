package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopmill/loopmill/internal/config"
	"github.com/loopmill/loopmill/internal/models"
)

func writeProjectOverrides(t *testing.T, projectDir, content string) {
	t.Helper()
	dir := filepath.Join(projectDir, ".loopmill")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "loopmill.yaml"), []byte(content), 0o644))
}

func TestEffectiveStartConfigAppliesProjectLimits(t *testing.T) {
	projectDir := t.TempDir()
	writeProjectOverrides(t, projectDir, `limits:
  min_hours: 0
  max_hours: 0.25
  min_iterations: 0
  max_iterations: 1
`)

	cfg := config.DefaultConfig()
	effective := effectiveStartConfig(cfg, projectDir)

	limits, err := resolveLimits(effective)
	require.NoError(t, err)
	assert.Equal(t, 1, limits.MaxIterations)
	assert.Equal(t, 0, limits.MinIterations)
	assert.InDelta(t, 0.25, limits.MaxHours, 1e-9)
	assert.InDelta(t, 0, limits.MinHours, 1e-9)

	// The global config is untouched; only the session being started
	// picks up the project's limits.
	assert.Equal(t, models.ProductionLimits(), cfg.LimitDefaults)
}

func TestEffectiveStartConfigWithoutOverrides(t *testing.T) {
	cfg := config.DefaultConfig()
	effective := effectiveStartConfig(cfg, t.TempDir())

	limits, err := resolveLimits(effective)
	require.NoError(t, err)
	assert.Equal(t, cfg.LimitDefaults, limits)
}

func TestResolveLimitsFlagsOverridePreset(t *testing.T) {
	startPreset = "poc"
	startMaxIter = 3
	defer func() {
		startPreset = ""
		startMaxIter = -1
	}()

	limits, err := resolveLimits(config.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 3, limits.MaxIterations)
	assert.InDelta(t, models.PocLimits().MaxHours, limits.MaxHours, 1e-9)
}

func TestResolveLimitsUnknownPreset(t *testing.T) {
	startPreset = "staging"
	defer func() { startPreset = "" }()

	_, err := resolveLimits(config.DefaultConfig())
	require.Error(t, err)
}

func TestMergeLimitFlags(t *testing.T) {
	current := models.Limits{MinHours: 2, MaxHours: 8, MinIterations: 10, MaxIterations: 100}

	configMaxIter = 25
	defer func() { configMaxIter = -1 }()

	merged := mergeLimitFlags(current)
	assert.Equal(t, 25, merged.MaxIterations)
	assert.Equal(t, 10, merged.MinIterations)
	assert.InDelta(t, 8, merged.MaxHours, 1e-9)
	assert.InDelta(t, 2, merged.MinHours, 1e-9)
}
