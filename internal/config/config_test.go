// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/tsload/tsload/internal/hooks"
	"github.com/tsload/tsload/internal/issue"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// emptyOpts points every lookup at fresh empty directories.
func emptyOpts(t *testing.T) LoadOptions {
	t.Helper()
	return LoadOptions{ConfigDirPath: t.TempDir(), WorkDir: t.TempDir()}
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.Node.Binary != "node" {
		t.Errorf("Node.Binary = %q, want node", cfg.Node.Binary)
	}
	if cfg.Hooks.Generation != hooks.GenerationAuto {
		t.Errorf("Hooks.Generation = %q, want auto", cfg.Hooks.Generation)
	}
	if !cfg.Hooks.SourceMaps {
		t.Error("source maps should be enabled by default")
	}
	if cfg.Watch.Debounce != 300*time.Millisecond {
		t.Errorf("Watch.Debounce = %s", cfg.Watch.Debounce)
	}
	if cfg.Log.Level != LogLevelInfo {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() error: %v", err)
	}
}

func TestConfigDir(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG lookup is Linux only")
	}

	t.Setenv("XDG_CONFIG_HOME", "/tmp/test-xdg-config")
	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error: %v", err)
	}
	if want := filepath.Join("/tmp/test-xdg-config", AppName); dir != want {
		t.Errorf("ConfigDir() = %s, want %s", dir, want)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	dir, err = ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error: %v", err)
	}
	home, _ := os.UserHomeDir()
	if want := filepath.Join(home, ".config", AppName); dir != want {
		t.Errorf("ConfigDir() = %s, want %s", dir, want)
	}
}

func TestConfigDirOverride(t *testing.T) {
	t.Cleanup(Reset)

	SetConfigDirOverride("/custom/dir")
	path, err := UserConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join("/custom/dir", "config.cue"); path != want {
		t.Errorf("UserConfigPath() = %s, want %s", path, want)
	}

	Reset()
	if dir, _ := ConfigDir(); dir == "/custom/dir" {
		t.Error("Reset() did not clear the override")
	}
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	t.Parallel()

	cfg, path, err := loadWithOptions(t.Context(), emptyOpts(t))
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, want none", path)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_LookupOrder(t *testing.T) {
	t.Parallel()

	opts := emptyOpts(t)
	user := filepath.Join(opts.ConfigDirPath, "config.cue")
	local := filepath.Join(opts.WorkDir, LocalFileName)
	explicit := filepath.Join(t.TempDir(), "other.cue")

	writeConfig(t, user, `log: level: "warn"`)
	cfg, path, err := loadWithOptions(t.Context(), opts)
	if err != nil || path != user || cfg.Log.Level != LogLevelWarn {
		t.Fatalf("user config: level=%v path=%q err=%v", cfg, path, err)
	}

	writeConfig(t, local, `log: level: "error"`)
	cfg, path, err = loadWithOptions(t.Context(), opts)
	if err != nil || path != local || cfg.Log.Level != LogLevelError {
		t.Fatalf("local config: path=%q err=%v", path, err)
	}

	writeConfig(t, explicit, `log: level: "debug"`)
	opts.ConfigFilePath = explicit
	cfg, path, err = loadWithOptions(t.Context(), opts)
	if err != nil || path != explicit || cfg.Log.Level != LogLevelDebug {
		t.Fatalf("explicit config: path=%q err=%v", path, err)
	}
}

func TestLoad_FullFile(t *testing.T) {
	t.Parallel()

	opts := emptyOpts(t)
	writeConfig(t, filepath.Join(opts.WorkDir, LocalFileName), `
node: {
	binary:  "/opt/node/bin/node"
	options: "--no-warnings --max-old-space-size=4096"
}
tsconfig: "tsconfig.build.json"
hooks: {
	generation:  "transform-source"
	source_maps: false
}
watch: {
	debounce:     "1s"
	ignore:       ["**/*.test.ts", "dist/**"]
	clear_screen: true
}
log: level: "debug"
`)

	cfg, _, err := loadWithOptions(t.Context(), opts)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	want := &Config{
		Node:     NodeConfig{Binary: "/opt/node/bin/node", Options: "--no-warnings --max-old-space-size=4096"},
		Tsconfig: "tsconfig.build.json",
		Hooks:    HooksConfig{Generation: hooks.GenerationTransformSource, SourceMaps: false},
		Watch:    WatchConfig{Debounce: time.Second, Ignore: []string{"**/*.test.ts", "dist/**"}, ClearScreen: true},
		Log:      LogConfig{Level: LogLevelDebug},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	opts := emptyOpts(t)
	writeConfig(t, filepath.Join(opts.WorkDir, LocalFileName), `node: binary: "node20"`)

	t.Setenv("TSLOAD_NODE_BINARY", "node22")
	t.Setenv("TSLOAD_WATCH_DEBOUNCE", "2s")
	t.Setenv("TSLOAD_HOOKS_GENERATION", "load")

	cfg, _, err := loadWithOptions(t.Context(), opts)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Node.Binary != "node22" || cfg.Watch.Debounce != 2*time.Second || cfg.Hooks.Generation != hooks.GenerationLoad {
		t.Errorf("env overrides not applied: %+v", cfg)
	}

	t.Setenv("TSLOAD_LOG_LEVEL", "loud")
	_, _, err = loadWithOptions(t.Context(), opts)
	if !errors.Is(err, ErrInvalidLogLevel) {
		t.Errorf("invalid env level error = %v, want ErrInvalidLogLevel", err)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", `log: {`, "tsload.cue"},
		{"unknown field", `colour: "red"`, "colour"},
		{"bad generation", `hooks: generation: "sometimes"`, "hooks.generation"},
		{"bad debounce", `watch: debounce: "soon"`, "watch.debounce"},
		{"empty binary", `node: binary: ""`, "node.binary"},
		{"bad ignore entry", `watch: ignore: ["ok", ""]`, "watch.ignore[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts := emptyOpts(t)
			writeConfig(t, filepath.Join(opts.WorkDir, LocalFileName), tt.content)

			_, _, err := loadWithOptions(t.Context(), opts)
			if err == nil {
				t.Fatal("expected an error")
			}
			var ae *issue.ActionableError
			if !errors.As(err, &ae) {
				t.Fatalf("error is not actionable: %T %v", err, err)
			}
			if ae.Operation != "load configuration" || len(ae.Suggestions) == 0 {
				t.Errorf("unexpected actionable error: %+v", ae)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_ExplicitMissing(t *testing.T) {
	t.Parallel()

	opts := emptyOpts(t)
	opts.ConfigFilePath = filepath.Join(t.TempDir(), "nope.cue")
	_, err := NewProvider().Load(t.Context(), opts)
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("Load(missing) error = %v", err)
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if _, _, err := loadWithOptions(ctx, emptyOpts(t)); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestProviderPath(t *testing.T) {
	t.Parallel()

	opts := emptyOpts(t)
	p := NewProvider()
	if path, err := p.Path(opts); err != nil || path != "" {
		t.Errorf("Path() = %q, %v; want none", path, err)
	}
	local := filepath.Join(opts.WorkDir, LocalFileName)
	writeConfig(t, local, "")
	if path, err := p.Path(opts); err != nil || path != local {
		t.Errorf("Path() = %q, %v; want %q", path, err, local)
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.cue")
	wrote, err := WriteDefault(path)
	if err != nil || !wrote {
		t.Fatalf("WriteDefault() = %v, %v", wrote, err)
	}
	if wrote, err := WriteDefault(path); err != nil || wrote {
		t.Errorf("second WriteDefault() = %v, %v; want no write", wrote, err)
	}

	opts := emptyOpts(t)
	opts.ConfigFilePath = path
	cfg, _, err := loadWithOptions(t.Context(), opts)
	if err != nil {
		t.Fatalf("generated file does not load: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Node.Binary = "  "
	cfg.Hooks.Generation = "x"
	cfg.Watch.Debounce = -time.Second
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	var ice *InvalidConfigError
	if !errors.As(err, &ice) {
		t.Fatalf("Validate() error = %T %v", err, err)
	}
	if len(ice.FieldErrors) != 4 {
		t.Errorf("got %d field errors: %v", len(ice.FieldErrors), ice.FieldErrors)
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Error("error does not wrap ErrInvalidConfig")
	}
}

func TestLogLevel_Validate(t *testing.T) {
	t.Parallel()

	for _, l := range []LogLevel{LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError} {
		if err := l.Validate(); err != nil {
			t.Errorf("%s.Validate() error: %v", l, err)
		}
	}
	for _, l := range []LogLevel{"", "trace", "INFO"} {
		if err := l.Validate(); !errors.Is(err, ErrInvalidLogLevel) {
			t.Errorf("LogLevel(%q).Validate() = %v", l, err)
		}
	}
}
