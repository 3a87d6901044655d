package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loopmill/loopmill/internal/db"
	"github.com/loopmill/loopmill/internal/models"
	"github.com/loopmill/loopmill/internal/session"
)

var (
	historySessionID string
	historyProject   string
	historyDecision  string
	historyLimit     int
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historySessionID, "session", "", "filter by session id (scoped to the project)")
	historyCmd.Flags().StringVar(&historyProject, "project", "", "project directory (default: current directory)")
	historyCmd.Flags().StringVar(&historyDecision, "decision", "", "filter by decision (stop, continue)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum entries to show")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show journaled loop decisions",
	Long: `Show journaled loop decisions, newest first.

Every hook invocation journals its decision, the rule that fired, and the
adapter verdict. The journal is an audit trail; clearing it never affects
a running loop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyDecision != "" && historyDecision != string(models.DecisionStop) && historyDecision != string(models.DecisionContinue) {
			return fmt.Errorf("invalid --decision %q (expected stop or continue)", historyDecision)
		}

		database, journal := openJournal(cmd.Context(), GetConfig())
		if journal == nil {
			return fmt.Errorf("decision journal unavailable")
		}
		defer database.Close()

		filter := db.DecisionFilter{
			Decision: models.DecisionKind(historyDecision),
			Limit:    historyLimit,
		}
		if historySessionID != "" {
			projectDir, err := resolveProjectDir(historyProject)
			if err != nil {
				return err
			}
			key, err := session.NewKey(historySessionID, projectDir)
			if err != nil {
				return err
			}
			filter.SessionKey = key.String()
		}

		records, err := journal.List(cmd.Context(), filter)
		if err != nil {
			return err
		}

		if IsJSONOutput() {
			return WriteOutput(cmd.OutOrStdout(), records)
		}
		if len(records) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No journaled decisions.")
			return nil
		}
		for _, record := range records {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %-8s  iter %-3d  %-18s  %s\n",
				record.CreatedAt.Format("2006-01-02 15:04:05"),
				record.Decision, record.Iteration, record.Rule, record.Reason)
		}
		return nil
	},
}
