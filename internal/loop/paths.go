package loop

import "path/filepath"

// controlDirName is the per-project control directory.
const controlDirName = ".loopmill"

// ControlDir returns the project control directory.
func ControlDir(projectPath string) string {
	return filepath.Join(projectPath, controlDirName)
}

// StateDir returns the session state directory under the data dir.
func StateDir(dataDir string) string {
	return filepath.Join(dataDir, "state")
}

// LedgerPath returns the decision ledger path for a session.
func LedgerPath(projectPath, sessionID string) string {
	return filepath.Join(ControlDir(projectPath), "ledgers", sessionID+".md")
}

// KillSwitchPath returns the one-shot kill marker path.
func KillSwitchPath(projectPath string) string {
	return filepath.Join(ControlDir(projectPath), "killswitch")
}
