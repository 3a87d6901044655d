package loop

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/loopmill/loopmill/internal/adapters"
	"github.com/loopmill/loopmill/internal/detect"
	"github.com/loopmill/loopmill/internal/models"
)

// ensureLedgerFile creates the ledger with a frontmatter header if missing.
func ensureLedgerFile(sess *models.Session) error {
	path := LedgerPath(sess.ProjectPath, sess.SessionID)

	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	content := strings.Builder{}
	content.WriteString("---\n")
	content.WriteString(fmt.Sprintf("session_id: %s\n", sess.SessionID))
	content.WriteString(fmt.Sprintf("project_path: %s\n", sess.ProjectPath))
	content.WriteString(fmt.Sprintf("created_at: %s\n", time.Now().UTC().Format(time.RFC3339)))
	content.WriteString("---\n\n")
	content.WriteString(fmt.Sprintf("# Loop Ledger: %s\n\n", sess.SessionID))

	return os.WriteFile(path, []byte(content.String()), 0o644)
}

// appendLedgerEntry records one invocation decision in the markdown ledger.
func appendLedgerEntry(sess *models.Session, decision models.Decision, verdict adapters.Verdict, signals detect.Result, now time.Time) error {
	if err := ensureLedgerFile(sess); err != nil {
		return err
	}

	f, err := os.OpenFile(LedgerPath(sess.ProjectPath, sess.SessionID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	entry := strings.Builder{}
	entry.WriteString(fmt.Sprintf("## %s\n\n", now.UTC().Format(time.RFC3339)))
	entry.WriteString(fmt.Sprintf("- iteration: %d\n", sess.IterationCount))
	entry.WriteString(fmt.Sprintf("- decision: %s\n", decision.Kind))
	entry.WriteString(fmt.Sprintf("- rule: %s\n", decision.Rule))
	entry.WriteString(fmt.Sprintf("- reason: %s\n", decision.Reason))
	entry.WriteString(fmt.Sprintf("- adapter: %s (confidence %.1f)\n", verdict.Adapter, verdict.Result.Confidence))
	if verdict.Degraded {
		entry.WriteString(fmt.Sprintf("- adapter_degraded: %s\n", verdict.DegradedReason))
	}
	entry.WriteString(fmt.Sprintf("- runtime_seconds: %.0f\n", sess.CumulativeRuntimeSeconds))
	entry.WriteString(fmt.Sprintf("- wall_clock_seconds: %.0f\n", sess.WallClockSeconds(now)))

	for _, signal := range signals.Signals {
		if !signal.Detected && signal.Evidence == "" {
			continue
		}
		entry.WriteString(fmt.Sprintf("- signal %s: detected=%t", signal.Kind, signal.Detected))
		if signal.Evidence != "" {
			entry.WriteString(" (" + signal.Evidence + ")")
		}
		entry.WriteString("\n")
	}
	entry.WriteString("\n")

	_, err = f.WriteString(entry.String())
	return err
}
