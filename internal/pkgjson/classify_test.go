// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package pkgjson

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"gotest.tools/v3/assert"

	"github.com/tsload/tsload/pkg/format"
)

// countingFs records how many times each path is opened.
type countingFs struct {
	afero.Fs
	mu    sync.Mutex
	opens map[string]int
}

func newCountingFs(files map[string]string) *countingFs {
	mem := afero.NewMemMapFs()
	for name, content := range files {
		if err := afero.WriteFile(mem, name, []byte(content), 0o644); err != nil {
			panic(err)
		}
	}
	return &countingFs{Fs: mem, opens: make(map[string]int)}
}

func (c *countingFs) Open(name string) (afero.File, error) {
	c.mu.Lock()
	c.opens[name]++
	c.mu.Unlock()
	return c.Fs.Open(name)
}

func (c *countingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	c.mu.Lock()
	c.opens[name]++
	c.mu.Unlock()
	return c.Fs.OpenFile(name, flag, perm)
}

func (c *countingFs) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens[name]
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		files map[string]string
		file  string
		want  format.Format
	}{
		{
			name: "nearest manifest declares module",
			files: map[string]string{
				"/a/package.json": `{"type": "module"}`,
				"/a/b/file.ts":    "",
			},
			file: "/a/b/file.ts",
			want: format.Module,
		},
		{
			name:  "no manifest anywhere defaults to commonjs",
			files: map[string]string{"/a/b/file.ts": ""},
			file:  "/a/b/file.ts",
			want:  format.CommonJS,
		},
		{
			name: "manifest without type is commonjs",
			files: map[string]string{
				"/a/package.json": `{"name": "a"}`,
			},
			file: "/a/file.ts",
			want: format.CommonJS,
		},
		{
			name: "unrecognized type value is commonjs",
			files: map[string]string{
				"/a/package.json": `{"type": 5}`,
			},
			file: "/a/file.ts",
			want: format.CommonJS,
		},
		{
			name: "closest manifest wins over outer one",
			files: map[string]string{
				"/a/package.json":   `{"type": "module"}`,
				"/a/b/package.json": `{"type": "commonjs"}`,
			},
			file: "/a/b/c/file.ts",
			want: format.CommonJS,
		},
		{
			name: "node_modules manifest is never the boundary",
			files: map[string]string{
				"/p/node_modules/package.json": `{"type": "module"}`,
			},
			file: "/p/node_modules/x.ts",
			want: format.CommonJS,
		},
		{
			name: "walk stops at node_modules even with a project manifest above",
			files: map[string]string{
				"/p/package.json":              `{"type": "module"}`,
				"/p/node_modules/package.json": `{"type": "module"}`,
			},
			file: "/p/node_modules/x.ts",
			want: format.CommonJS,
		},
		{
			name: "array manifest is a boundary and classifies commonjs",
			files: map[string]string{
				"/a/package.json":   `{"type": "module"}`,
				"/a/b/package.json": `[]`,
			},
			file: "/a/b/file.ts",
			want: format.CommonJS,
		},
		{
			name: "null manifest is skipped",
			files: map[string]string{
				"/a/package.json":   `{"type": "module"}`,
				"/a/b/package.json": `null`,
			},
			file: "/a/b/x.ts",
			want: format.Module,
		},
		{
			name: "file URL input",
			files: map[string]string{
				"/a/package.json": `{"type": "module"}`,
			},
			file: "file:///a/src/index.tsx",
			want: format.Module,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := NewClassifier(NewCache(newCountingFs(tt.files)))
			got, err := c.Classify(context.Background(), tt.file)
			assert.NilError(t, err)
			assert.Equal(t, got, tt.want)
		})
	}
}

func TestClassify_SiblingsShareProbes(t *testing.T) {
	t.Parallel()

	fsys := newCountingFs(map[string]string{
		"/root/package.json": `{"type": "module"}`,
	})
	c := NewClassifier(NewCache(fsys))
	ctx := context.Background()

	for _, f := range []string{"/root/src/lib/a.ts", "/root/src/lib/b.ts"} {
		got, err := c.Classify(ctx, f)
		assert.NilError(t, err)
		assert.Equal(t, got, format.Module)
	}

	for _, p := range []string{
		"/root/src/lib/package.json",
		"/root/src/package.json",
		"/root/package.json",
	} {
		assert.Equal(t, fsys.count(filepath.Clean(p)), 1, "probes of %s", p)
	}
	assert.Equal(t, c.Cache().Len(), 3)
}

func TestClassify_ConcurrentLookupsProbeOnce(t *testing.T) {
	t.Parallel()

	fsys := newCountingFs(map[string]string{
		"/w/package.json": `{"type": "module"}`,
	})
	c := NewClassifier(NewCache(fsys))

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.Classify(context.Background(), "/w/deep/file.ts")
			if err != nil || got != format.Module {
				t.Errorf("Classify() = %q, %v", got, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, fsys.count("/w/deep/package.json"), 1)
	assert.Equal(t, fsys.count("/w/package.json"), 1)
}

func TestClassify_MalformedManifestIsFatal(t *testing.T) {
	t.Parallel()

	fsys := newCountingFs(map[string]string{
		"/bad/package.json": `{"type": "module",`,
	})
	c := NewClassifier(NewCache(fsys))

	_, err := c.Classify(context.Background(), "/bad/src/file.ts")
	assert.ErrorContains(t, err, "/bad/package.json")

	var perr *ParseError
	assert.Assert(t, errors.As(err, &perr))
	assert.Equal(t, perr.Path, "/bad/package.json")

	// Parse failures are not memoized: the next call reads the file again.
	_, err = c.Classify(context.Background(), "/bad/src/file.ts")
	assert.Assert(t, err != nil)
	assert.Equal(t, fsys.count("/bad/package.json"), 2)
}

func TestClassify_CanceledContext(t *testing.T) {
	t.Parallel()

	c := NewClassifier(NewCache(newCountingFs(nil)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Classify(ctx, "/a/b.ts")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFindPackage_ReturnsDescriptor(t *testing.T) {
	t.Parallel()

	c := NewClassifier(NewCache(newCountingFs(map[string]string{
		"/pkg/package.json": `{"name": "demo", "main": "lib/index.js", "type": "module"}`,
	})))

	desc, err := c.FindPackage(context.Background(), "/pkg/src/x.ts")
	assert.NilError(t, err)
	assert.Assert(t, desc != nil)
	assert.Equal(t, desc.Path, "/pkg/package.json")

	name, ok := desc.PackageName()
	assert.Assert(t, ok)
	assert.Equal(t, name, "demo")

	main, ok := desc.MainEntry()
	assert.Assert(t, ok)
	assert.Equal(t, main, "lib/index.js")
}
