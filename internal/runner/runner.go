// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/shell"

	"github.com/tsload/tsload/internal/hooks"
	"github.com/tsload/tsload/internal/hookserver"
	"github.com/tsload/tsload/pkg/fileurl"
)

const (
	// DefaultNode is the node binary looked up in PATH when none is configured.
	DefaultNode = "node"

	modernShim = "modern.mjs"
	legacyShim = "legacy.mjs"
)

//go:embed shim/*.mjs
var shimFS embed.FS

var (
	// ErrNodeNotFound is returned when the node binary cannot be located.
	ErrNodeNotFound = errors.New("node binary not found")
	// ErrHookServer is returned when the hook server cannot be started.
	ErrHookServer = errors.New("hook server failed")
)

type (
	// Config describes how node is started.
	Config struct {
		// Node is the node binary. Defaults to DefaultNode.
		Node string
		// NodeOptions holds extra node flags as a shell-quoted string.
		NodeOptions string
		// Generation forces a hook generation. GenerationAuto (or empty)
		// picks one from the node version.
		Generation hooks.Generation
		// SourceMaps enables --enable-source-maps and inline maps.
		SourceMaps bool
		// Hooks are the options every hook generation is built from.
		Hooks hooks.Options
		// Server configures the hook server. Hooks, SourceMaps and Notifier
		// are filled in from Hooks.
		Server hookserver.Config

		Dir    string
		Env    []string
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
		Logger *slog.Logger
	}

	// Session is a running hook server plus the shim that talks to it. One
	// session can spawn node any number of times.
	Session struct {
		cfg        Config
		node       string
		version    string
		generation hooks.Generation
		options    []string
		server     *hookserver.Server
		shimDir    string
		logger     *slog.Logger
	}
)

// NodeVersion runs `node --version` and returns the normalized version.
func NodeVersion(ctx context.Context, node string) (string, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, node, "--version")
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s --version: %w", node, err)
	}
	return hooks.NormalizeVersion(strings.TrimSpace(out.String()))
}

// LookNode resolves the node binary in PATH.
func LookNode(node string) (string, error) {
	if node == "" {
		node = DefaultNode
	}
	path, err := exec.LookPath(node)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNodeNotFound, node)
	}
	return path, nil
}

// Open detects the node version, picks the hook generation, starts the hook
// server and writes the shim. Close releases all of it.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	node, err := LookNode(cfg.Node)
	if err != nil {
		return nil, err
	}
	options, err := shell.Fields(cfg.NodeOptions, nil)
	if err != nil {
		return nil, fmt.Errorf("parse node options %q: %w", cfg.NodeOptions, err)
	}

	policy, err := hooks.NewVersionPolicy(cfg.Generation)
	if err != nil {
		return nil, err
	}
	version, err := NodeVersion(ctx, node)
	if err != nil {
		return nil, err
	}
	gen, err := policy.Generation(version)
	if err != nil {
		return nil, err
	}

	hookOpts := cfg.Hooks
	if cfg.SourceMaps {
		hookOpts.InlineSourceMaps = true
	}
	if hookOpts.Target == "" {
		hookOpts.Target = strings.TrimPrefix(version, "v")
	}
	lh, err := hooks.Select(gen, hookOpts)
	if err != nil {
		return nil, err
	}

	srvCfg := cfg.Server
	srvCfg.Hooks = lh
	srvCfg.SourceMaps = hookOpts.SourceMaps
	srvCfg.Notifier = hookOpts.Notifier
	server, err := hookserver.New(srvCfg)
	if err != nil {
		return nil, err
	}

	shimDir, err := WriteShim()
	if err != nil {
		return nil, err
	}
	if err := server.Start(ctx); err != nil {
		_ = os.RemoveAll(shimDir)
		return nil, fmt.Errorf("%w: %w", ErrHookServer, err)
	}

	logger.Debug("session opened", "node", node, "version", version, "generation", gen, "server", server.URL())
	return &Session{
		cfg:        cfg,
		node:       node,
		version:    version,
		generation: gen,
		options:    options,
		server:     server,
		shimDir:    shimDir,
		logger:     logger,
	}, nil
}

// Version returns the detected node version.
func (s *Session) Version() string { return s.version }

// Generation returns the hook generation in use.
func (s *Session) Generation() hooks.Generation { return s.generation }

// Server returns the session's hook server.
func (s *Session) Server() *hookserver.Server { return s.server }

// LoaderURL returns the file URL of the shim entry point node is given.
func (s *Session) LoaderURL() string {
	return ShimURL(s.shimDir, s.generation)
}

// Args returns node's arguments for running script with args.
func (s *Session) Args(script string, args []string) []string {
	out := make([]string, 0, len(s.options)+len(args)+4)
	out = append(out, "--experimental-loader", s.LoaderURL())
	if s.cfg.SourceMaps {
		out = append(out, "--enable-source-maps")
	}
	out = append(out, s.options...)
	out = append(out, script)
	return append(out, args...)
}

// Command builds the node command for script. The caller starts it.
func (s *Session) Command(ctx context.Context, script string, args []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, s.node, s.Args(script, args)...)
	cmd.Dir = s.cfg.Dir
	cmd.Env = append(append(os.Environ(), s.cfg.Env...), s.server.Env()...)
	cmd.Stdin = s.cfg.Stdin
	cmd.Stdout = s.cfg.Stdout
	cmd.Stderr = s.cfg.Stderr
	return cmd
}

// Run runs script to completion and returns node's exit code. A non-nil
// error means node could not be run at all.
func (s *Session) Run(ctx context.Context, script string, args []string) (int, error) {
	cmd := s.Command(ctx, script, args)
	s.logger.Debug("starting node", "args", cmd.Args[1:])
	return exitCode(cmd.Run())
}

// Close stops the hook server and removes the shim.
func (s *Session) Close() error {
	err := s.server.Stop()
	if rmErr := os.RemoveAll(s.shimDir); rmErr != nil {
		err = errors.Join(err, rmErr)
	}
	return err
}

// Run opens a session, runs script once and closes the session.
func Run(ctx context.Context, cfg Config, script string, args []string) (int, error) {
	sess, err := Open(ctx, cfg)
	if err != nil {
		return 1, err
	}
	defer func() { _ = sess.Close() }()
	return sess.Run(ctx, script, args)
}

func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code, nil
		}
		// Killed by a signal.
		return 1, nil
	}
	return 1, fmt.Errorf("run node: %w", err)
}

// ShimURL returns the file URL of the shim entry point for gen inside a
// directory written by WriteShim.
func ShimURL(dir string, gen hooks.Generation) string {
	name := modernShim
	if gen == hooks.GenerationTransformSource {
		name = legacyShim
	}
	return fileurl.FromPath(filepath.Join(dir, name))
}

// WriteShim copies the embedded shim into a fresh temporary directory. The
// caller removes it.
func WriteShim() (string, error) {
	dir, err := os.MkdirTemp("", "tsload-shim-")
	if err != nil {
		return "", fmt.Errorf("create shim dir: %w", err)
	}
	sub, err := fs.Sub(shimFS, "shim")
	if err == nil {
		err = os.CopyFS(dir, sub)
	}
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("write shim: %w", err)
	}
	return dir, nil
}
