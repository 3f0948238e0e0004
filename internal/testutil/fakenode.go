// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package testutil

import (
	"cmp"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"
)

// FakeNode is a shell script standing in for node. It answers --version
// and records every other invocation.
type FakeNode struct {
	// Path is the executable.
	Path string
	runs string
}

// NewFakeNode writes a node stand-in reporting version that exits with
// code.
func NewFakeNode(t testing.TB, version string, code int) *FakeNode {
	t.Helper()
	dir := t.TempDir()
	n := &FakeNode{
		Path: filepath.Join(dir, "node"),
		runs: filepath.Join(dir, "runs"),
	}
	if err := os.Mkdir(n.runs, 0o755); err != nil {
		t.Fatal(err)
	}
	script := `#!/bin/sh
if [ "$1" = "--version" ]; then
  echo "` + version + `"
  exit 0
fi
{
  echo "$TSLOAD_HOOK_GENERATION"
  [ -n "$TSLOAD_HOOK_ADDR" ] && [ -n "$TSLOAD_HOOK_TOKEN" ] && echo "env ok"
  for a in "$@"; do echo "$a"; done
} > "` + n.runs + `/run.$$"
exit ` + strconv.Itoa(code) + `
`
	if err := os.WriteFile(n.Path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return n
}

// Runs returns one record per invocation in start order: the hook
// generation, "env ok" when the hook server address and token were set,
// then the arguments one per line.
func (n *FakeNode) Runs(t testing.TB) [][]string {
	t.Helper()
	entries, err := os.ReadDir(n.runs)
	if err != nil {
		t.Fatal(err)
	}

	type run struct {
		mod   int64
		lines []string
	}
	var runs []run
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(filepath.Join(n.runs, e.Name()))
		if err != nil {
			t.Fatal(err)
		}
		runs = append(runs, run{
			mod:   info.ModTime().UnixNano(),
			lines: strings.Split(strings.TrimSuffix(string(data), "\n"), "\n"),
		})
	}
	slices.SortStableFunc(runs, func(a, b run) int { return cmp.Compare(a.mod, b.mod) })

	out := make([][]string, len(runs))
	for i, r := range runs {
		out[i] = r.lines
	}
	return out
}
