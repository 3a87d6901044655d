package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loopmill/loopmill/internal/loop"
)

var (
	stopSessionID string
	stopProject   string
	stopDrain     bool
	stopKill      bool
)

func init() {
	rootCmd.AddCommand(stopCmd)

	stopCmd.Flags().StringVar(&stopSessionID, "session", "", "session id (default: $LOOPMILL_SESSION_ID)")
	stopCmd.Flags().StringVar(&stopProject, "project", "", "project directory (default: current directory)")
	stopCmd.Flags().BoolVar(&stopDrain, "drain", false, "give the agent one final turn to wrap up before stopping")
	stopCmd.Flags().BoolVar(&stopKill, "kill", false, "plant the kill switch so the next hook invocation stops unconditionally")
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a loop session",
	Long: `Stop a loop session.

By default the session stops immediately. With --drain the agent gets one
final turn before stopping. With --kill a marker is planted that the next
hook invocation honors unconditionally, beating every other rule including
minimum-work guarantees; the marker is consumed once honored.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		projectDir, err := resolveProjectDir(stopProject)
		if err != nil {
			return err
		}

		if stopKill {
			if err := loop.PlantKillSwitch(projectDir); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Kill switch planted; the next hook invocation stops the loop.")
			return nil
		}

		sessionID := resolveSessionID(stopSessionID)
		st, err := openStore(GetConfig())
		if err != nil {
			return err
		}

		manager := loop.NewManager(st)
		sess, err := manager.Stop(sessionID, projectDir, stopDrain)
		if err != nil {
			return err
		}

		if IsJSONOutput() {
			return WriteOutput(cmd.OutOrStdout(), sess)
		}
		if stopDrain {
			fmt.Fprintf(cmd.OutOrStdout(), "Loop session %s draining; the agent gets one final turn.\n", sess.SessionID)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Loop session %s stopped.\n", sess.SessionID)
		}
		return nil
	},
}
