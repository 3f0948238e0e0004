// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tsload/tsload/internal/issue"
	"github.com/tsload/tsload/internal/resolver"
	"github.com/tsload/tsload/pkg/fileurl"
)

func newResolveCommand(app *App, flags *rootFlagValues) *cobra.Command {
	var conditions []string

	cmd := &cobra.Command{
		Use:   "resolve <specifier> [parent]",
		Short: "Resolve a specifier the way the loader would",
		Long: `Resolve a specifier against the filesystem the way the loader resolves it
inside node, and print the resulting URL and module format.

The parent is the importing file; without one the specifier resolves from the
working directory.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: app.runE(flags, func(cmd *cobra.Command, args []string) error {
			e, err := app.load(cmd.Context(), flags)
			if err != nil {
				return err
			}
			s, err := newStack(e, nil)
			if err != nil {
				return err
			}

			rc := resolver.Context{Conditions: conditions}
			if len(args) == 2 {
				rc.ParentURL = toURL(e.workDir, args[1])
			}
			desc, err := s.resolver.Resolve(cmd.Context(), args[0], rc, s.host)
			if err != nil {
				return resolveError(err, args[0], rc.ParentURL)
			}

			fmt.Fprintf(app.stdout, "%s %s\n", CmdStyle.Render("url:"), desc.URL)
			format := desc.Format.String()
			if format == "" {
				format = SubtitleStyle.Render("(unset)")
			}
			fmt.Fprintf(app.stdout, "%s %s\n", CmdStyle.Render("format:"), format)
			return nil
		}),
	}
	cmd.Flags().StringSliceVar(&conditions, "conditions", []string{"node", "import"}, "export conditions to resolve with")
	return cmd
}

// toURL turns a command-line path or URL into a URL.
func toURL(workDir, s string) string {
	if fileurl.IsFileURL(s) {
		return s
	}
	if !filepath.IsAbs(s) {
		s = filepath.Join(workDir, s)
	}
	return fileurl.FromPath(s)
}

// resolveError explains a failed resolve. Host error codes stay reachable
// through the wrapped *resolver.Error.
func resolveError(err error, specifier, parentURL string) error {
	ec := issue.NewErrorContext().
		WithOperation("resolve " + specifier).
		WithResource(parentURL)
	switch resolver.CodeOf(err) {
	case resolver.CodeModuleNotFound:
		ec.WithSuggestion("Check the spelling and the path relative to the importing file")
		if parentURL == "" {
			ec.WithSuggestion("Pass the importing file as the second argument")
		}
	case resolver.CodeUnsupportedDirImport:
		ec.WithSuggestion("Add an index file to the directory or import a file inside it")
	}
	return ec.Wrap(err).BuildError()
}
