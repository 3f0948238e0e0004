// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/tsload/tsload/internal/runner"
	"github.com/tsload/tsload/internal/watch"
)

// childStopTimeout is how long a child gets to exit after an interrupt
// before it is killed.
const childStopTimeout = 3 * time.Second

type (
	// supervisor runs one node child at a time. Each start opens a fresh
	// session so package.json and tsconfig edits are picked up.
	supervisor struct {
		open   func(ctx context.Context) (*runner.Session, error)
		script string
		args   []string
		stdout io.Writer
		stderr io.Writer

		mu     sync.Mutex
		sess   *runner.Session
		cancel context.CancelFunc
		done   chan struct{}
	}
)

func newWatchCommand(app *App, flags *rootFlagValues) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <script> [args...]",
		Short: "Run a script and restart it when an imported file changes",
		Long: `Run a script like "tsload run" and watch every file the loader hands to
node. When one of them changes the script is stopped and started again.

Ignore patterns, the debounce period and screen clearing are set in the
watch section of the configuration.`,
		Args: cobra.MinimumNArgs(1),
		RunE: app.runE(flags, func(cmd *cobra.Command, args []string) error {
			e, err := app.load(cmd.Context(), flags)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			sup := &supervisor{
				script: args[0],
				args:   args[1:],
				stdout: app.stdout,
				stderr: app.stderr,
			}
			w, err := watch.New(watch.Config{
				Ignore:      e.cfg.Watch.Ignore,
				Debounce:    e.cfg.Watch.Debounce,
				ClearScreen: e.cfg.Watch.ClearScreen,
				Stdout:      app.stdout,
				Logger:      e.slog,
				OnChange: func(ctx context.Context, changed []string) error {
					fmt.Fprintf(app.stdout, "%s %d change(s), restarting %s\n",
						CmdStyle.Render("→"), len(changed), args[0])
					return sup.restart(ctx)
				},
			})
			if err != nil {
				return fmt.Errorf("failed to start watcher: %w", err)
			}
			sup.open = func(ctx context.Context) (*runner.Session, error) {
				s, err := newStack(e, nil)
				if err != nil {
					return nil, err
				}
				if s.tsconfig != nil {
					if err := w.Track(s.tsconfig.Path); err != nil {
						e.slog.Warn("cannot watch tsconfig", "path", s.tsconfig.Path, "error", err)
					}
				}
				return runner.Open(ctx, app.runnerConfig(e, s, w))
			}

			script := args[0]
			if !filepath.IsAbs(script) {
				script = filepath.Join(e.workDir, script)
			}
			if err := w.Track(script); err != nil {
				return err
			}

			if err := sup.restart(ctx); err != nil {
				// The first run may fail on a syntax error the user is about
				// to fix; keep watching.
				fmt.Fprintf(app.stderr, "%s %v\n", WarningStyle.Render("!"), classify(err))
			}
			fmt.Fprintf(app.stdout, "%s Watching for changes (Ctrl+C to stop)\n", CmdStyle.Render("→"))

			runErr := w.Run(ctx)
			sup.shutdown()
			return runErr
		}),
	}
	cmd.Flags().SetInterspersed(false)
	return cmd
}

// restart stops the running child, if any, and starts a new one.
func (s *supervisor) restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	sess, err := s.open(ctx)
	if err != nil {
		return err
	}
	s.sess = sess

	cctx, cancel := context.WithCancel(ctx)
	child := sess.Command(cctx, s.script, s.args)
	child.Cancel = func() error { return child.Process.Signal(os.Interrupt) }
	child.WaitDelay = childStopTimeout
	if err := child.Start(); err != nil {
		cancel()
		return fmt.Errorf("start node: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = child.Wait()
		if cctx.Err() == nil {
			fmt.Fprintf(s.stdout, "%s %s exited with code %d (%s), waiting for changes\n",
				SubtitleStyle.Render("→"), s.script, child.ProcessState.ExitCode(), describeSession(sess))
		}
	}()
	s.cancel, s.done = cancel, done
	return nil
}

// shutdown stops the child and closes its session.
func (s *supervisor) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *supervisor) stopLocked() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
		s.cancel, s.done = nil, nil
	}
	if s.sess != nil {
		if err := s.sess.Close(); err != nil {
			fmt.Fprintf(s.stderr, "%s close session: %v\n", WarningStyle.Render("!"), err)
		}
		s.sess = nil
	}
}
