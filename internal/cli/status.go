package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/loopmill/loopmill/internal/loop"
	"github.com/loopmill/loopmill/internal/models"
)

var (
	statusSessionID string
	statusProject   string
)

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusSessionID, "session", "", "session id (default: $LOOPMILL_SESSION_ID)")
	statusCmd.Flags().StringVar(&statusProject, "project", "", "project directory (default: current directory)")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the loop session state",
	RunE: func(cmd *cobra.Command, args []string) error {
		projectDir, err := resolveProjectDir(statusProject)
		if err != nil {
			return err
		}
		sessionID := resolveSessionID(statusSessionID)

		st, err := openStore(GetConfig())
		if err != nil {
			return err
		}

		manager := loop.NewManager(st)
		sess, err := manager.Status(sessionID, projectDir)
		if err != nil {
			return err
		}

		if IsJSONOutput() {
			return WriteOutput(cmd.OutOrStdout(), sess)
		}
		if hasTTY() && !noColor {
			fmt.Fprintln(cmd.OutOrStdout(), renderStatusCard(sess))
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), renderStatusPlain(sess))
		return nil
	},
}

var (
	statusCardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
	statusLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Width(12)
	stateStyles = map[models.SessionState]lipgloss.Style{
		models.SessionStateRunning:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		models.SessionStateDraining: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		models.SessionStateStopped:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
)

func renderStatusCard(sess *models.Session) string {
	stateStyle, ok := stateStyles[sess.State]
	if !ok {
		stateStyle = lipgloss.NewStyle()
	}

	rows := []string{
		statusLabelStyle.Render("Session") + sess.SessionID,
		statusLabelStyle.Render("State") + stateStyle.Render(string(sess.State)),
	}
	if sess.State != models.SessionStateStopped || sess.IterationCount > 0 {
		rows = append(rows,
			statusLabelStyle.Render("Iterations")+formatIterations(sess),
			statusLabelStyle.Render("Runtime")+formatRuntime(sess),
		)
	}
	if sess.Focus != nil && sess.Focus.TargetFile != "" {
		rows = append(rows, statusLabelStyle.Render("Tracking")+sess.Focus.TargetFile)
	}
	if sess.LastDecision != "" {
		rows = append(rows, statusLabelStyle.Render("Last")+sess.LastDecision+": "+sess.LastReason)
	}

	return statusCardStyle.Render(strings.Join(rows, "\n"))
}

func renderStatusPlain(sess *models.Session) string {
	builder := strings.Builder{}
	fmt.Fprintf(&builder, "session: %s\n", sess.SessionID)
	fmt.Fprintf(&builder, "state: %s\n", sess.State)
	if sess.State != models.SessionStateStopped || sess.IterationCount > 0 {
		fmt.Fprintf(&builder, "iterations: %s\n", formatIterations(sess))
		fmt.Fprintf(&builder, "runtime: %s\n", formatRuntime(sess))
	}
	if sess.Focus != nil && sess.Focus.TargetFile != "" {
		fmt.Fprintf(&builder, "tracking: %s\n", sess.Focus.TargetFile)
	}
	if sess.LastDecision != "" {
		fmt.Fprintf(&builder, "last: %s: %s\n", sess.LastDecision, sess.LastReason)
	}
	return builder.String()
}

func formatIterations(sess *models.Session) string {
	if sess.Limits.MaxIterations > 0 {
		return fmt.Sprintf("%d / %d", sess.IterationCount, sess.Limits.MaxIterations)
	}
	return fmt.Sprintf("%d", sess.IterationCount)
}

func formatRuntime(sess *models.Session) string {
	active := time.Duration(sess.CumulativeRuntimeSeconds) * time.Second
	if sess.Limits.MaxHours > 0 {
		budget := time.Duration(sess.Limits.MaxHours * float64(time.Hour))
		return fmt.Sprintf("%s active / %s budget", active.Round(time.Second), budget)
	}
	return fmt.Sprintf("%s active", active.Round(time.Second))
}
