package loop

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// KillSwitchPresent reports whether the kill marker exists.
func KillSwitchPresent(projectPath string) bool {
	_, err := os.Stat(KillSwitchPath(projectPath))
	return err == nil
}

// PlantKillSwitch writes the kill marker so the next invocation stops the
// loop unconditionally.
func PlantKillSwitch(projectPath string) error {
	path := KillSwitchPath(projectPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create control dir: %w", err)
	}
	stamp := time.Now().UTC().Format(time.RFC3339) + "\n"
	if err := os.WriteFile(path, []byte(stamp), 0o644); err != nil {
		return fmt.Errorf("write kill switch: %w", err)
	}
	return nil
}

// ClearKillSwitch removes the kill marker after it has been honored. The
// marker is one-shot: clearing a missing marker is not an error.
func ClearKillSwitch(projectPath string) error {
	err := os.Remove(KillSwitchPath(projectPath))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear kill switch: %w", err)
	}
	return nil
}
