package loop

import (
	"fmt"
	"strings"

	"github.com/loopmill/loopmill/internal/models"
)

// RenderContinuation builds the prompt returned to the host when the
// controller forces the agent to keep working.
func RenderContinuation(sess *models.Session, decision models.Decision, mode string) string {
	builder := strings.Builder{}

	builder.WriteString("The work session is still active. Continue working on the task.\n\n")

	if sess.Focus != nil && !sess.Focus.NoFocus {
		if sess.Focus.TaskPrompt != "" {
			builder.WriteString("Task:\n")
			builder.WriteString(strings.TrimSpace(sess.Focus.TaskPrompt))
			builder.WriteString("\n\n")
		}
		if sess.Focus.TargetFile != "" {
			builder.WriteString(fmt.Sprintf("Track your progress in %s and keep its checklist current.\n\n", sess.Focus.TargetFile))
		}
	}

	builder.WriteString(progressLine(sess))
	if mode != "" && mode != "generic" {
		builder.WriteString(fmt.Sprintf("Session mode: %s.\n", mode))
	}
	builder.WriteString(fmt.Sprintf("Reason the loop continues: %s.\n", decision.Reason))

	return builder.String()
}

func progressLine(sess *models.Session) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("Progress: iteration %d", sess.IterationCount))
	if sess.Limits.MaxIterations > 0 {
		builder.WriteString(fmt.Sprintf(" of %d", sess.Limits.MaxIterations))
	}
	runtimeHours := sess.CumulativeRuntimeSeconds / 3600
	builder.WriteString(fmt.Sprintf(", %.1fh active", runtimeHours))
	if sess.Limits.MaxHours > 0 {
		builder.WriteString(fmt.Sprintf(" of %.1fh budget", sess.Limits.MaxHours))
	}
	builder.WriteString(".\n")
	return builder.String()
}
