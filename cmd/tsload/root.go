// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the tsload command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/tsload/tsload/internal/config"
	"github.com/tsload/tsload/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

type (
	// App holds the services shared by every command.
	App struct {
		Config config.Provider
		stdout io.Writer
		stderr io.Writer
	}

	// Dependencies are the injection points for NewApp. Nil fields get
	// production defaults.
	Dependencies struct {
		Config config.Provider
		Stdout io.Writer
		Stderr io.Writer
	}

	rootFlagValues struct {
		verbose    bool
		configPath string
		workDir    string
	}

	// env is what a command needs once configuration is loaded.
	env struct {
		cfg     *config.Config
		workDir string
		logger  *log.Logger
		slog    *slog.Logger
	}
)

// NewApp creates an App, filling unset dependencies with defaults.
func NewApp(deps Dependencies) *App {
	app := &App{Config: deps.Config, stdout: deps.Stdout, stderr: deps.Stderr}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

func newRootCommand(app *App) *cobra.Command {
	flags := &rootFlagValues{}

	rootCmd := &cobra.Command{
		Use:   config.AppName,
		Short: "Run TypeScript, TSX and JSX on node without a build step",
		Long: TitleStyle.Render("tsload") + SubtitleStyle.Render(" - TypeScript loader hooks for node") + `

tsload starts node with a loader that hands every resolve and load hook to
tsload, which finds TypeScript sources the way node finds JavaScript and
transpiles them on the fly.

` + SubtitleStyle.Render("Examples:") + `
  tsload run src/main.ts          Run a TypeScript entry point
  tsload watch src/server.ts      Restart whenever an imported file changes
  tsload resolve ./util src/a.ts  Show what a specifier resolves to
  tsload config show              Show the current configuration`,
		SilenceUsage: true,
	}
	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&flags.configPath, "config", "", "config file (default ./tsload.cue, then the user config dir)")
	pf.StringVarP(&flags.workDir, "cwd", "C", "", "working directory")

	rootCmd.AddCommand(
		newRunCommand(app, flags),
		newWatchCommand(app, flags),
		newServeCommand(app, flags),
		newResolveCommand(app, flags),
		newClassifyCommand(app, flags),
		newTranspileCommand(app, flags),
		newConfigCommand(app, flags),
		newVersionCommand(app),
	)
	return rootCmd
}

// Execute runs the tsload command line. It is called by main.main.
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		newRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// load reads configuration and sets up logging for one command.
func (app *App) load(ctx context.Context, flags *rootFlagValues) (*env, error) {
	workDir, err := resolveWorkDir(flags.workDir)
	if err != nil {
		return nil, err
	}
	cfg, err := app.Config.Load(ctx, app.loadOptions(flags, workDir))
	if err != nil {
		return nil, newServiceError(err, issue.ConfigLoadFailedId)
	}

	logger := newLogger(app.stderr, cfg.Log.Level, flags.verbose)
	sl := slog.New(logger)
	slog.SetDefault(sl)
	return &env{cfg: cfg, workDir: workDir, logger: logger, slog: sl}, nil
}

func (app *App) loadOptions(flags *rootFlagValues, workDir string) config.LoadOptions {
	return config.LoadOptions{ConfigFilePath: flags.configPath, WorkDir: workDir}
}

func resolveWorkDir(dir string) (string, error) {
	if dir == "" {
		return os.Getwd()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve working directory %q: %w", dir, err)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("working directory: %w", err)
	}
	if !fi.IsDir() {
		return "", fmt.Errorf("working directory %s is not a directory", abs)
	}
	return abs, nil
}

func newLogger(w io.Writer, level config.LogLevel, verbose bool) *log.Logger {
	lvl, err := log.ParseLevel(string(level))
	if err != nil {
		lvl = log.InfoLevel
	}
	if verbose {
		lvl = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Prefix: config.AppName,
		Level:  lvl,
	})
}

// runE adapts a command body so failures get their issue help printed
// before cobra reports the error.
func (app *App) runE(flags *rootFlagValues, fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := classify(fn(cmd, args))
		if err == nil {
			return nil
		}
		var svcErr *ServiceError
		if errors.As(err, &svcErr) {
			renderServiceError(app.stderr, svcErr)
		}
		if flags.verbose {
			fmt.Fprintln(app.stderr, formatErrorForDisplay(err, true))
		}
		return err
	}
}

// formatErrorForDisplay formats an error for the user. ActionableErrors use
// their own formatting; verbose mode shows the full chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
