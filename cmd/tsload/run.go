// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tsload/tsload/internal/hooks"
	"github.com/tsload/tsload/internal/hookserver"
	"github.com/tsload/tsload/internal/runner"
)

func newRunCommand(app *App, flags *rootFlagValues) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <script> [args...]",
		Short: "Run a script with the TypeScript loader",
		Long: `Run a script under node with the tsload loader registered. Arguments
after the script are passed to it unchanged, and tsload exits with the
script's exit code.`,
		Args:               cobra.MinimumNArgs(1),
		RunE: app.runE(flags, func(cmd *cobra.Command, args []string) error {
			e, err := app.load(cmd.Context(), flags)
			if err != nil {
				return err
			}
			s, err := newStack(e, nil)
			if err != nil {
				return err
			}

			code, err := runner.Run(cmd.Context(), app.runnerConfig(e, s, nil), args[0], args[1:])
			if err != nil {
				return err
			}
			if code != 0 {
				return &ExitError{Code: code}
			}
			return nil
		}),
	}
	// Flags after the script belong to the script.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

// runnerConfig builds the runner configuration shared by run and watch.
func (app *App) runnerConfig(e *env, s *stack, notifier hooks.Notifier) runner.Config {
	return runner.Config{
		Node:        e.cfg.Node.Binary,
		NodeOptions: e.cfg.Node.Options,
		Generation:  e.cfg.Hooks.Generation,
		SourceMaps:  e.cfg.Hooks.SourceMaps,
		Hooks:       s.hookOptions(e, notifier),
		Server: hookserver.Config{
			Logger: e.logger.WithPrefix("hook-server"),
		},
		Dir:    e.workDir,
		Stdin:  os.Stdin,
		Stdout: app.stdout,
		Stderr: app.stderr,
		Logger: e.slog,
	}
}

func describeSession(sess *runner.Session) string {
	return fmt.Sprintf("node %s, %s hooks", sess.Version(), sess.Generation())
}
