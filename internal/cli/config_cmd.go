package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/loopmill/loopmill/internal/loop"
	"github.com/loopmill/loopmill/internal/models"
)

var (
	configSessionID string
	configProject   string
	configMinHours  float64
	configMaxHours  float64
	configMinIter   int
	configMaxIter   int
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configLimitsCmd)

	configLimitsCmd.Flags().StringVar(&configSessionID, "session", "", "session id (default: $LOOPMILL_SESSION_ID)")
	configLimitsCmd.Flags().StringVar(&configProject, "project", "", "project directory (default: current directory)")
	configLimitsCmd.Flags().Float64Var(&configMinHours, "min-hours", -1, "minimum active hours before completion signals may stop the loop")
	configLimitsCmd.Flags().Float64Var(&configMaxHours, "max-hours", -1, "maximum active hours before the loop is forced to stop")
	configLimitsCmd.Flags().IntVar(&configMinIter, "min-iterations", -1, "minimum iterations before completion signals may stop the loop")
	configLimitsCmd.Flags().IntVar(&configMaxIter, "max-iterations", -1, "maximum iterations before the loop is forced to stop")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and adjust loopmill configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the effective configuration after merging defaults, the config
file, and environment variables. Per-project overrides from
.loopmill/loopmill.yaml are applied at start and hook time and not shown
here.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if IsJSONOutput() {
			return WriteOutput(cmd.OutOrStdout(), cfg)
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var configLimitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Update limits on an existing session",
	Long: `Update limits on an existing session.

Only the flags given change; unset fields keep their current values. The
new limits take effect on the next hook invocation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		projectDir, err := resolveProjectDir(configProject)
		if err != nil {
			return err
		}
		sessionID := resolveSessionID(configSessionID)

		st, err := openStore(GetConfig())
		if err != nil {
			return err
		}
		manager := loop.NewManager(st)

		current, err := manager.Status(sessionID, projectDir)
		if err != nil {
			return err
		}

		sess, err := manager.Configure(sessionID, projectDir, mergeLimitFlags(current.Limits))
		if err != nil {
			return err
		}

		if IsJSONOutput() {
			return WriteOutput(cmd.OutOrStdout(), sess)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Limits for session %s: %s\n", sess.SessionID, formatLimits(sess.Limits))
		return nil
	},
}

// mergeLimitFlags overlays the limit flags that were set onto the session's
// current limits.
func mergeLimitFlags(current models.Limits) models.Limits {
	merged := current
	if configMinHours >= 0 {
		merged.MinHours = configMinHours
	}
	if configMaxHours >= 0 {
		merged.MaxHours = configMaxHours
	}
	if configMinIter >= 0 {
		merged.MinIterations = configMinIter
	}
	if configMaxIter >= 0 {
		merged.MaxIterations = configMaxIter
	}
	return merged
}
