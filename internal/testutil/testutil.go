// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"path"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

// Stopper is implemented by servers.
type Stopper interface {
	Stop() error
}

// WriteTree creates files under root from a slash-separated name → content
// map. Parent directories are created as needed. The test fails
// immediately if a write fails.
func WriteTree(t testing.TB, fsys afero.Fs, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(path.Clean(name)))
		if err := fsys.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", name, err)
		}
		if err := afero.WriteFile(fsys, p, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
}

// MustStop stops s. Unlike a failed write, a failed stop during cleanup is
// only logged.
func MustStop(t testing.TB, s Stopper) {
	t.Helper()
	if err := s.Stop(); err != nil {
		t.Logf("warning: stop returned error: %v", err)
	}
}

// DeferStop returns a cleanup function that stops s, logging any error.
func DeferStop(t testing.TB, s Stopper) func() {
	t.Helper()
	return func() {
		t.Helper()
		MustStop(t, s)
	}
}
