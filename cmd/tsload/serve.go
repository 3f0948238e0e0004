// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"mvdan.cc/sh/v3/syntax"

	"github.com/tsload/tsload/internal/hooks"
	"github.com/tsload/tsload/internal/hookserver"
	"github.com/tsload/tsload/internal/issue"
	"github.com/tsload/tsload/internal/runner"
)

func newServeCommand(app *App, flags *rootFlagValues) *cobra.Command {
	var generation string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the loader hooks for a node started elsewhere",
		Long: `Start the hook server on its own and print the environment a node process
needs to use it. Evaluate the output in a shell and start node there:

  eval "$(tsload serve)" &
  node main.ts

The server runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: app.runE(flags, func(cmd *cobra.Command, _ []string) error {
			e, err := app.load(cmd.Context(), flags)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			gen := e.cfg.Hooks.Generation
			if generation != "" {
				gen = hooks.Generation(generation)
			}
			if gen, err = serveGeneration(ctx, e, gen); err != nil {
				return err
			}

			s, err := newStack(e, nil)
			if err != nil {
				return err
			}
			lh, err := hooks.Select(gen, s.hookOptions(e, nil))
			if err != nil {
				return err
			}
			srv, err := hookserver.New(hookserver.Config{
				Hooks:      lh,
				SourceMaps: s.sourceMaps,
				Logger:     e.logger.WithPrefix("hook-server"),
			})
			if err != nil {
				return err
			}

			shimDir, err := runner.WriteShim()
			if err != nil {
				return err
			}
			defer func() { _ = os.RemoveAll(shimDir) }()

			if err := srv.Start(ctx); err != nil {
				return issue.NewErrorContext().
					WithOperation("start hook server").
					WithSuggestion("Check that tsload may listen on a localhost port").
					Wrap(fmt.Errorf("%w: %w", runner.ErrHookServer, err)).
					BuildError()
			}
			defer func() { _ = srv.Stop() }()

			vars := append(srv.Env(), "NODE_OPTIONS=--experimental-loader "+runner.ShimURL(shimDir, gen))
			if err := printExports(app, vars); err != nil {
				return err
			}
			e.logger.Info("serving loader hooks", "url", srv.URL(), "generation", gen)

			select {
			case <-ctx.Done():
				return nil
			case err := <-srv.Err():
				return fmt.Errorf("%w: %w", runner.ErrHookServer, err)
			}
		}),
	}
	cmd.Flags().StringVar(&generation, "generation", "", "hook generation (auto, load or transform-source)")
	return cmd
}

// serveGeneration settles "auto" from the local node, falling back to the
// resolve/load hooks when there is no node to ask.
func serveGeneration(ctx context.Context, e *env, gen hooks.Generation) (hooks.Generation, error) {
	policy, err := hooks.NewVersionPolicy(gen)
	if err != nil {
		return "", err
	}
	if gen != hooks.GenerationAuto && gen != "" {
		return policy.Generation("")
	}
	node, err := runner.LookNode(e.cfg.Node.Binary)
	if err == nil {
		var version string
		if version, err = runner.NodeVersion(ctx, node); err == nil {
			return policy.Generation(version)
		}
	}
	e.logger.Warn("cannot detect node version, serving resolve/load hooks", "error", err)
	return hooks.GenerationLoad, nil
}

func printExports(app *App, vars []string) error {
	for _, kv := range vars {
		k, v, _ := strings.Cut(kv, "=")
		q, err := syntax.Quote(v, syntax.LangPOSIX)
		if err != nil {
			return fmt.Errorf("quote %s: %w", k, err)
		}
		fmt.Fprintf(app.stdout, "export %s=%s\n", k, q)
	}
	return nil
}
