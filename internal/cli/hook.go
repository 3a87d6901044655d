// Package cli provides the agent stop-hook entry point.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/loopmill/loopmill/internal/loop"
)

func init() {
	rootCmd.AddCommand(hookCmd)
}

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Handle one agent stop event",
	Long: `Handle one agent stop event.

The host invokes this on every agent stop, passing the event as JSON on
stdin. The response on stdout tells the host to let the agent stop or to
feed it a continuation prompt.

The command always exits zero with a valid JSON response: when in doubt
the loop lets the agent stop rather than trapping the user.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHook(cmd, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func runHook(cmd *cobra.Command, in io.Reader, out io.Writer) error {
	resp := handleHookEvent(cmd, in)

	data, err := json.Marshal(resp)
	if err != nil {
		// Last resort; the response type always marshals.
		fmt.Fprintln(out, `{"decision":"allow_stop","reason":"response encoding failed"}`)
		return nil
	}
	fmt.Fprintln(out, string(data))
	return nil
}

func handleHookEvent(cmd *cobra.Command, in io.Reader) loop.Response {
	var req loop.Request
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		logger.Warn().Err(err).Msg("hook request unreadable")
		return loop.Response{Decision: loop.DecisionAllowStop, Reason: "hook request unreadable"}
	}
	if req.ProjectDir == "" {
		if cwd, err := os.Getwd(); err == nil {
			req.ProjectDir = cwd
		}
	}

	cfg := GetConfig()
	database, journal := openJournal(cmd.Context(), cfg)
	if database != nil {
		defer database.Close()
	}

	controller, err := buildController(cfg, req.ProjectDir, journal)
	if err != nil {
		logger.Error().Err(err).Msg("hook pipeline unavailable")
		return loop.Response{Decision: loop.DecisionAllowStop, Reason: "loop state unavailable"}
	}

	resp, err := controller.HandleInvocation(cmd.Context(), req)
	if err != nil {
		logger.Error().Err(err).Msg("hook invocation failed")
		return loop.Response{Decision: loop.DecisionAllowStop, Reason: "loop invocation failed"}
	}
	return resp
}
