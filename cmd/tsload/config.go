// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/tsload/tsload/internal/config"
	"github.com/tsload/tsload/internal/issue"
)

// tomlConfig is the TOML rendering of config.Config.
type tomlConfig struct {
	Node struct {
		Binary  string `toml:"binary"`
		Options string `toml:"options"`
	} `toml:"node"`
	Tsconfig string `toml:"tsconfig,omitempty"`
	Hooks    struct {
		Generation string `toml:"generation"`
		SourceMaps bool   `toml:"source_maps"`
	} `toml:"hooks"`
	Watch struct {
		Debounce    string   `toml:"debounce"`
		Ignore      []string `toml:"ignore"`
		ClearScreen bool     `toml:"clear_screen"`
	} `toml:"watch"`
	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`
}

func newConfigCommand(app *App, flags *rootFlagValues) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage tsload configuration",
		Long: `Manage tsload configuration.

tsload reads the first of:
  - the file given with --config
  - tsload.cue in the working directory
  - config.cue in the user config directory (see "tsload config path")

TSLOAD_* environment variables override file values, e.g.
TSLOAD_WATCH_DEBOUNCE=1s.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var (
		outFormat  string
		showSchema bool
	)
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: app.runE(flags, func(cmd *cobra.Command, _ []string) error {
			if showSchema {
				fmt.Fprint(app.stdout, config.Schema())
				return nil
			}
			e, err := app.load(cmd.Context(), flags)
			if err != nil {
				return err
			}
			switch outFormat {
			case "cue":
				fmt.Fprint(app.stdout, config.GenerateCUE(e.cfg))
				return nil
			case "toml":
				out, err := toml.Marshal(toTOML(e.cfg))
				if err != nil {
					return fmt.Errorf("encode toml: %w", err)
				}
				_, err = app.stdout.Write(out)
				return err
			default:
				return issue.NewErrorContext().
					WithOperation("show configuration").
					WithResource(outFormat).
					WithSuggestion("Use --format cue or --format toml").
					Wrap(fmt.Errorf("unknown format %q", outFormat)).
					BuildError()
			}
		}),
	}
	showCmd.Flags().StringVar(&outFormat, "format", "cue", "output format (cue or toml)")
	showCmd.Flags().BoolVar(&showSchema, "schema", false, "print the configuration schema instead")

	var (
		force bool
		local bool
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default configuration file",
		Args:  cobra.NoArgs,
		RunE: app.runE(flags, func(cmd *cobra.Command, _ []string) error {
			path, err := initPath(flags, local)
			if err != nil {
				return err
			}
			if force {
				if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("remove %s: %w", path, err)
				}
			}
			wrote, err := config.WriteDefault(path)
			if err != nil {
				return err
			}
			if !wrote {
				fmt.Fprintf(app.stdout, "%s %s already exists (use --force to overwrite)\n", WarningStyle.Render("!"), path)
				return nil
			}
			fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
			return nil
		}),
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	initCmd.Flags().BoolVar(&local, "local", false, "create tsload.cue in the working directory instead of the user config")

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Show where configuration is read from",
		Args:  cobra.NoArgs,
		RunE: app.runE(flags, func(cmd *cobra.Command, _ []string) error {
			workDir, err := resolveWorkDir(flags.workDir)
			if err != nil {
				return err
			}
			user, err := config.UserConfigPath()
			if err != nil {
				return err
			}
			active, err := app.Config.Path(app.loadOptions(flags, workDir))
			if err != nil {
				return err
			}
			if active == "" {
				active = SubtitleStyle.Render("(none, using defaults)")
			}
			fmt.Fprintf(app.stdout, "%s %s\n", CmdStyle.Render("Active:"), active)
			fmt.Fprintf(app.stdout, "%s %s\n", CmdStyle.Render("Local:"), filepath.Join(workDir, config.LocalFileName))
			fmt.Fprintf(app.stdout, "%s %s\n", CmdStyle.Render("User:"), user)
			return nil
		}),
	}

	cfgCmd.AddCommand(showCmd, initCmd, pathCmd)
	return cfgCmd
}

func initPath(flags *rootFlagValues, local bool) (string, error) {
	if flags.configPath != "" {
		return flags.configPath, nil
	}
	if local {
		workDir, err := resolveWorkDir(flags.workDir)
		if err != nil {
			return "", err
		}
		return filepath.Join(workDir, config.LocalFileName), nil
	}
	return config.UserConfigPath()
}

func toTOML(cfg *config.Config) tomlConfig {
	var t tomlConfig
	t.Node.Binary = cfg.Node.Binary
	t.Node.Options = cfg.Node.Options
	t.Tsconfig = cfg.Tsconfig
	t.Hooks.Generation = cfg.Hooks.Generation.String()
	t.Hooks.SourceMaps = cfg.Hooks.SourceMaps
	t.Watch.Debounce = cfg.Watch.Debounce.String()
	t.Watch.Ignore = cfg.Watch.Ignore
	t.Watch.ClearScreen = cfg.Watch.ClearScreen
	t.Log.Level = cfg.Log.Level.String()
	return t
}
