// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/tsload/tsload/internal/transform"
	"github.com/tsload/tsload/pkg/format"
)

func newTranspileCommand(app *App, flags *rootFlagValues) *cobra.Command {
	var (
		outFormat string
		target    string
		output    string
		sourceMap bool
	)

	cmd := &cobra.Command{
		Use:   "transpile <file>",
		Short: "Print the JavaScript the loader would hand to node",
		Long: `Transpile one file with the applicable tsconfig and print the result.

The output format defaults to the file's module format, as "tsload classify"
reports it.`,
		Args: cobra.ExactArgs(1),
		RunE: app.runE(flags, func(cmd *cobra.Command, args []string) error {
			e, err := app.load(cmd.Context(), flags)
			if err != nil {
				return err
			}
			fsys := afero.NewOsFs()
			s, err := newStack(e, fsys)
			if err != nil {
				return err
			}

			u := toURL(e.workDir, args[0])
			f := format.Format(outFormat)
			if err := f.Validate(); err != nil {
				return err
			}
			if f == format.Unset {
				if f = fixedFormat(u); f == format.Unset {
					if f, err = s.classifier.Classify(cmd.Context(), u); err != nil {
						return err
					}
				}
				if f == format.JSON {
					f = format.Module
				}
			}

			path := args[0]
			if !filepath.IsAbs(path) {
				path = filepath.Join(e.workDir, path)
			}
			src, err := afero.ReadFile(fsys, path)
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			res, err := s.transpiler.Transform(cmd.Context(), string(src), u, transform.Options{
				Format:      f,
				TsconfigRaw: s.tsconfigRaw,
				Target:      target,
			})
			if err != nil {
				return err
			}
			code := res.Code
			if sourceMap {
				code = transform.Inline(code, res.Map)
			}

			if output == "" || output == "-" {
				_, err = fmt.Fprint(app.stdout, code)
				return err
			}
			if !filepath.IsAbs(output) {
				output = filepath.Join(e.workDir, output)
			}
			return afero.WriteFile(fsys, output, []byte(code), 0o644)
		}),
	}

	cmd.Flags().StringVar(&outFormat, "format", "", "output module format (module or commonjs)")
	cmd.Flags().StringVar(&target, "target", "", "node version the output must run on (e.g. 18.19.0)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	cmd.Flags().BoolVar(&sourceMap, "source-map", false, "append an inline source map")
	return cmd
}
