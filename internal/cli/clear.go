package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loopmill/loopmill/internal/loop"
	"github.com/loopmill/loopmill/internal/models"
)

var (
	clearSessionID string
	clearProject   string
)

func init() {
	rootCmd.AddCommand(clearCmd)

	clearCmd.Flags().StringVar(&clearSessionID, "session", "", "session id (default: $LOOPMILL_SESSION_ID)")
	clearCmd.Flags().StringVar(&clearProject, "project", "", "project directory (default: current directory)")
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove persisted state for a session",
	Long: `Remove persisted state for a session, including the legacy marker
files. Active sessions must be stopped first; the decision journal and the
markdown ledger are audit trails and are left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		projectDir, err := resolveProjectDir(clearProject)
		if err != nil {
			return err
		}
		sessionID := resolveSessionID(clearSessionID)

		st, err := openStore(GetConfig())
		if err != nil {
			return err
		}
		manager := loop.NewManager(st)

		sess, err := manager.Status(sessionID, projectDir)
		if err != nil {
			return err
		}
		if sess.State != models.SessionStateStopped {
			return fmt.Errorf("session %s is %s; stop it before clearing", sessionID, sess.State)
		}

		if err := manager.Clear(sessionID, projectDir); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared state for session %s.\n", sessionID)
		return nil
	},
}
