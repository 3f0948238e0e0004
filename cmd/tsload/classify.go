// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"path"
	"runtime"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tsload/tsload/internal/issue"
	"github.com/tsload/tsload/internal/pkgjson"
	"github.com/tsload/tsload/pkg/format"
)

func newClassifyCommand(app *App, flags *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <file>...",
		Short: "Show the module format node gives each file",
		Long: `Show the module format of each file: the format its extension fixes
(.mts, .cts, .mjs, .cjs, .json) or, for everything else, the "type" of the
nearest package.json.`,
		Args: cobra.MinimumNArgs(1),
		RunE: app.runE(flags, func(cmd *cobra.Command, args []string) error {
			e, err := app.load(cmd.Context(), flags)
			if err != nil {
				return err
			}
			s, err := newStack(e, nil)
			if err != nil {
				return err
			}

			var (
				formats = make([]format.Format, len(args))
				mu      sync.Mutex
				errs    *multierror.Error
			)
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(runtime.GOMAXPROCS(0))
			for i, arg := range args {
				g.Go(func() error {
					u := toURL(e.workDir, arg)
					f := fixedFormat(u)
					if f == format.Unset {
						var cerr error
						if f, cerr = s.classifier.Classify(ctx, u); cerr != nil {
							if ctx.Err() != nil {
								return ctx.Err()
							}
							mu.Lock()
							errs = multierror.Append(errs, classifyError(cerr, arg))
							mu.Unlock()
							return nil
						}
					}
					formats[i] = f
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			for i, arg := range args {
				if formats[i] == format.Unset {
					continue
				}
				fmt.Fprintf(app.stdout, "%s\t%s\n", arg, formats[i])
			}
			return errs.ErrorOrNil()
		}),
	}
}

// fixedFormat is the format a file's extension alone decides.
func fixedFormat(u string) format.Format {
	switch path.Ext(u) {
	case ".mjs":
		return format.Module
	case ".cjs":
		return format.CommonJS
	case ".json":
		return format.JSON
	}
	return format.FromExtension(u)
}

func classifyError(err error, arg string) error {
	ec := issue.NewErrorContext().
		WithOperation("classify").
		WithResource(arg)
	var parseErr *pkgjson.ParseError
	if errors.As(err, &parseErr) {
		ec.WithSuggestion("Fix the JSON syntax in " + parseErr.Path)
	}
	return ec.Wrap(err).BuildError()
}
