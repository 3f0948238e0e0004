// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/tsload/tsload/internal/issue"
	"github.com/tsload/tsload/internal/testutil"
)

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	t.Run("ldflags version", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version = "v1.2.3"
		Commit = "abc1234"
		BuildDate = "2026-06-15T10:00:00Z"

		got := getVersionString()
		want := "v1.2.3 (commit: abc1234, built: 2026-06-15T10:00:00Z)"
		if got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})

	t.Run("dev build", func(t *testing.T) {
		origVersion := Version
		t.Cleanup(func() { Version = origVersion })

		Version = "dev"
		if got, want := getVersionString(), "dev (built from source)"; got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})
}

// execute runs the command line in dir with an isolated user config
// directory and returns what it printed.
func execute(t *testing.T, dir string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("APPDATA", t.TempDir())

	var out, errOut bytes.Buffer
	app := NewApp(Dependencies{Stdout: &out, Stderr: &errOut})
	root := newRootCommand(app)
	root.SetArgs(append([]string{"--cwd", dir}, args...))
	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// writeTree creates files under dir.
func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	testutil.WriteTree(t, afero.NewOsFs(), dir, files)
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := execute(t, t.TempDir(), "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(stdout, "tsload "+getVersionString()) {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestWorkDirMustExist(t *testing.T) {
	_, _, err := execute(t, filepath.Join(t.TempDir(), "missing"), "classify", "a.ts")
	if err == nil {
		t.Fatal("expected an error for a missing working directory")
	}
}

func TestConfigErrorRendersIssue(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"tsload.cue": "log: level: \"loud\"\n"})

	_, stderr, err := execute(t, dir, "config", "show")
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("err = %v, want a ServiceError", err)
	}
	if svcErr.IssueID != issue.ConfigLoadFailedId {
		t.Errorf("IssueID = %d, want %d", svcErr.IssueID, issue.ConfigLoadFailedId)
	}
	if stderr == "" {
		t.Error("expected the issue help on stderr")
	}
}
