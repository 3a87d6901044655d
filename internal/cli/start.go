// Package cli provides loop session lifecycle commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loopmill/loopmill/internal/config"
	"github.com/loopmill/loopmill/internal/loop"
	"github.com/loopmill/loopmill/internal/models"
)

var (
	startSessionID  string
	startProject    string
	startPreset     string
	startMinHours   float64
	startMaxHours   float64
	startMinIter    int
	startMaxIter    int
	startTargetFile string
	startTaskPrompt string
	startNoFocus    bool
)

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().StringVar(&startSessionID, "session", "", "session id (default: $LOOPMILL_SESSION_ID or a fresh id)")
	startCmd.Flags().StringVar(&startProject, "project", "", "project directory (default: current directory)")
	startCmd.Flags().StringVar(&startPreset, "preset", "", "limit preset: poc or production")
	startCmd.Flags().Float64Var(&startMinHours, "min-hours", -1, "minimum active hours before completion signals may stop the loop")
	startCmd.Flags().Float64Var(&startMaxHours, "max-hours", -1, "maximum active hours before the loop is forced to stop")
	startCmd.Flags().IntVar(&startMinIter, "min-iterations", -1, "minimum iterations before completion signals may stop the loop")
	startCmd.Flags().IntVar(&startMaxIter, "max-iterations", -1, "maximum iterations before the loop is forced to stop")
	startCmd.Flags().StringVar(&startTargetFile, "target-file", "", "progress artifact tracked for completion (relative to project)")
	startCmd.Flags().StringVar(&startTaskPrompt, "task", "", "task description echoed into continuation prompts")
	startCmd.Flags().BoolVar(&startNoFocus, "no-focus", false, "run without a focus artifact or task description")
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a loop session",
	Long: `Start a loop session for the current project.

Once started, every agent stop handled by 'loopmill hook' keeps the agent
working until a completion signal, a convergence verdict, or a hard limit
stops the loop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		projectDir, err := resolveProjectDir(startProject)
		if err != nil {
			return err
		}
		sessionID := resolveSessionID(startSessionID)

		limits, err := resolveLimits(effectiveStartConfig(GetConfig(), projectDir))
		if err != nil {
			return err
		}
		focus := resolveFocus()

		st, err := openStore(GetConfig())
		if err != nil {
			return err
		}

		manager := loop.NewManager(st)
		sess, err := manager.Start(sessionID, projectDir, limits, focus)
		if err != nil {
			return err
		}

		if IsJSONOutput() {
			return WriteOutput(cmd.OutOrStdout(), sess)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Loop session %s started for %s\n", sess.SessionID, sess.ProjectPath)
		fmt.Fprintf(cmd.OutOrStdout(), "Limits: %s\n", formatLimits(sess.Limits))
		if focus != nil && focus.TargetFile != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Tracking: %s\n", focus.TargetFile)
		}
		return nil
	},
}

// effectiveStartConfig merges per-project overrides from
// .loopmill/loopmill.yaml onto the global config, so a project-pinned
// limits: block applies to sessions started there.
func effectiveStartConfig(cfg *config.Config, projectDir string) *config.Config {
	overrides, err := config.LoadProjectOverrides(projectDir)
	if err != nil {
		logger.Warn().Err(err).Msg("project overrides ignored")
		return cfg
	}
	return cfg.ApplyOverrides(overrides)
}

func resolveLimits(cfg *config.Config) (models.Limits, error) {
	var limits models.Limits
	switch startPreset {
	case "":
		limits = cfg.LimitDefaults
	case "poc":
		limits = models.PocLimits()
	case "production":
		limits = models.ProductionLimits()
	default:
		return models.Limits{}, fmt.Errorf("unknown preset %q (expected poc or production)", startPreset)
	}

	if startMinHours >= 0 {
		limits.MinHours = startMinHours
	}
	if startMaxHours >= 0 {
		limits.MaxHours = startMaxHours
	}
	if startMinIter >= 0 {
		limits.MinIterations = startMinIter
	}
	if startMaxIter >= 0 {
		limits.MaxIterations = startMaxIter
	}
	return limits, nil
}

func resolveFocus() *models.Focus {
	if startNoFocus {
		return &models.Focus{NoFocus: true}
	}
	if startTargetFile == "" && startTaskPrompt == "" {
		return nil
	}
	return &models.Focus{
		TargetFile: startTargetFile,
		TaskPrompt: startTaskPrompt,
	}
}

func formatLimits(limits models.Limits) string {
	return fmt.Sprintf("%.1f-%.1fh, %d-%d iterations",
		limits.MinHours, limits.MaxHours, limits.MinIterations, limits.MaxIterations)
}
