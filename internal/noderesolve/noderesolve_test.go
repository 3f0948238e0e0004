// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package noderesolve

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/tsload/tsload/internal/pkgjson"
	"github.com/tsload/tsload/internal/resolver"
	"github.com/tsload/tsload/pkg/format"
)

const mainTS = "file:///proj/src/main.ts"

func projectFs(t *testing.T) afero.Fs {
	t.Helper()

	files := map[string]string{
		"/proj/package.json": `{
			"name": "app",
			"type": "module",
			"imports": {
				"#internal/*": "./src/internal/*.js",
				"#dep": "dep-a",
				"#bad": "../outside.js"
			}
		}`,
		"/proj/src/main.ts":          ``,
		"/proj/src/util.ts":          ``,
		"/proj/src/esm.mts":          ``,
		"/proj/src/helper.js":        ``,
		"/proj/src/legacy.cjs":       ``,
		"/proj/src/data.json":        `{}`,
		"/proj/src/lib/index.js":     ``,
		"/proj/src/widget/index.tsx": ``,
		"/proj/src/internal/log.js":  ``,
		"/proj/node_modules/dep-a/package.json": `{
			"name": "dep-a",
			"exports": {
				".": {"import": "./esm/index.mjs", "require": "./cjs/index.cjs"},
				"./feature/*": "./lib/*.js",
				"./private/*": null
			}
		}`,
		"/proj/node_modules/dep-a/esm/index.mjs":       ``,
		"/proj/node_modules/dep-a/cjs/index.cjs":       ``,
		"/proj/node_modules/dep-a/lib/x.js":            ``,
		"/proj/node_modules/dep-a/private/y.js":        ``,
		"/proj/node_modules/@scope/b/package.json":     `{"name": "@scope/b", "main": "dist/main"}`,
		"/proj/node_modules/@scope/b/dist/main.js":     ``,
		"/proj/node_modules/@scope/b/extra.js":         ``,
		"/proj/node_modules/c/index.js":                ``,
		"/proj/node_modules/sugar/package.json":        `{"exports": "./entry.js", "type": "module"}`,
		"/proj/node_modules/sugar/entry.js":            ``,
		"/proj/node_modules/fallback/package.json":     `{"exports": {".": ["/abs.js", "./ok.js"]}}`,
		"/proj/node_modules/fallback/ok.js":            ``,
	}

	fsys := afero.NewMemMapFs()
	for name, content := range files {
		if err := afero.WriteFile(fsys, name, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return fsys
}

func newResolver(t *testing.T) *Resolver {
	t.Helper()
	return New(pkgjson.NewClassifier(pkgjson.NewCache(projectFs(t))), WithBaseDir("/proj/src"))
}

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		specifier  string
		parent     string
		conditions []string
		want       resolver.Descriptor
		wantCode   string
	}{
		{name: "builtin", specifier: "fs", want: resolver.Descriptor{URL: "node:fs", Format: format.Builtin}},
		{name: "builtin subpath", specifier: "node:fs/promises", want: resolver.Descriptor{URL: "node:fs/promises", Format: format.Builtin}},
		{name: "prefix only builtin", specifier: "node:test", want: resolver.Descriptor{URL: "node:test", Format: format.Builtin}},
		{name: "unknown builtin", specifier: "node:nope", wantCode: resolver.CodeUnknownBuiltinModule},
		{
			name:      "relative js in module package",
			specifier: "./helper.js",
			parent:    mainTS,
			want:      resolver.Descriptor{URL: "file:///proj/src/helper.js", Format: format.Module},
		},
		{
			name:      "relative cjs",
			specifier: "./legacy.cjs",
			parent:    mainTS,
			want:      resolver.Descriptor{URL: "file:///proj/src/legacy.cjs", Format: format.CommonJS},
		},
		{
			name:      "json",
			specifier: "../package.json",
			parent:    mainTS,
			want:      resolver.Descriptor{URL: "file:///proj/package.json", Format: format.JSON},
		},
		{
			name:      "typescript format left unset",
			specifier: "./util.ts",
			parent:    mainTS,
			want:      resolver.Descriptor{URL: "file:///proj/src/util.ts"},
		},
		{
			name:      "no parent uses base dir",
			specifier: "./helper.js",
			want:      resolver.Descriptor{URL: "file:///proj/src/helper.js", Format: format.Module},
		},
		{
			name:      "file URL",
			specifier: "file:///proj/src/helper.js",
			want:      resolver.Descriptor{URL: "file:///proj/src/helper.js", Format: format.Module},
		},
		{
			name:      "absolute path",
			specifier: "/proj/src/helper.js",
			parent:    mainTS,
			want:      resolver.Descriptor{URL: "file:///proj/src/helper.js", Format: format.Module},
		},
		{name: "directory", specifier: "./lib", parent: mainTS, wantCode: resolver.CodeUnsupportedDirImport},
		{name: "directory with slash", specifier: "./lib/", parent: mainTS, wantCode: resolver.CodeUnsupportedDirImport},
		{name: "missing file", specifier: "./nope.js", parent: mainTS, wantCode: resolver.CodeModuleNotFound},
		{name: "no extension probing", specifier: "./util", parent: mainTS, wantCode: resolver.CodeModuleNotFound},
		{
			name:      "exports import condition",
			specifier: "dep-a",
			parent:    mainTS,
			want:      resolver.Descriptor{URL: "file:///proj/node_modules/dep-a/esm/index.mjs", Format: format.Module},
		},
		{
			name:       "exports require condition",
			specifier:  "dep-a",
			parent:     mainTS,
			conditions: []string{"node", "require"},
			want:       resolver.Descriptor{URL: "file:///proj/node_modules/dep-a/cjs/index.cjs", Format: format.CommonJS},
		},
		{
			name:      "exports pattern",
			specifier: "dep-a/feature/x",
			parent:    mainTS,
			want:      resolver.Descriptor{URL: "file:///proj/node_modules/dep-a/lib/x.js", Format: format.CommonJS},
		},
		{name: "exports null target", specifier: "dep-a/private/y", parent: mainTS, wantCode: resolver.CodePackagePathNotExported},
		{name: "exports missing subpath", specifier: "dep-a/other", parent: mainTS, wantCode: resolver.CodePackagePathNotExported},
		{
			name:      "exports string sugar",
			specifier: "sugar",
			parent:    mainTS,
			want:      resolver.Descriptor{URL: "file:///proj/node_modules/sugar/entry.js", Format: format.Module},
		},
		{
			name:      "exports fallback array",
			specifier: "fallback",
			parent:    mainTS,
			want:      resolver.Descriptor{URL: "file:///proj/node_modules/fallback/ok.js", Format: format.CommonJS},
		},
		{
			name:      "scoped main",
			specifier: "@scope/b",
			parent:    mainTS,
			want:      resolver.Descriptor{URL: "file:///proj/node_modules/@scope/b/dist/main.js", Format: format.CommonJS},
		},
		{
			name:      "scoped subpath without exports",
			specifier: "@scope/b/extra.js",
			parent:    mainTS,
			want:      resolver.Descriptor{URL: "file:///proj/node_modules/@scope/b/extra.js", Format: format.CommonJS},
		},
		{
			name:      "package without manifest",
			specifier: "c",
			parent:    mainTS,
			want:      resolver.Descriptor{URL: "file:///proj/node_modules/c/index.js", Format: format.CommonJS},
		},
		{name: "missing package", specifier: "missing-pkg", parent: mainTS, wantCode: resolver.CodeModuleNotFound},
		{name: "invalid scoped name", specifier: "@scope", parent: mainTS, wantCode: resolver.CodeInvalidModuleSpecifier},
		{
			name:      "imports pattern",
			specifier: "#internal/log",
			parent:    mainTS,
			want:      resolver.Descriptor{URL: "file:///proj/src/internal/log.js", Format: format.Module},
		},
		{
			name:      "imports bare target",
			specifier: "#dep",
			parent:    mainTS,
			want:      resolver.Descriptor{URL: "file:///proj/node_modules/dep-a/esm/index.mjs", Format: format.Module},
		},
		{name: "imports undefined", specifier: "#nope", parent: mainTS, wantCode: resolver.CodePackageImportNotDefined},
		{name: "imports invalid target", specifier: "#bad", parent: mainTS, wantCode: resolver.CodeInvalidPackageTarget},
		{name: "unsupported scheme", specifier: "https://example.com/x.js", parent: mainTS, wantCode: resolver.CodeUnsupportedURLScheme},
	}

	r := newResolver(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rc := resolver.Context{ParentURL: tt.parent, Conditions: tt.conditions}
			got, err := r.Resolve(t.Context(), tt.specifier, rc)
			if tt.wantCode != "" {
				if code := resolver.CodeOf(err); code != tt.wantCode {
					t.Fatalf("Resolve(%q) = %+v, %v; want code %s", tt.specifier, got, err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) error: %v", tt.specifier, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Resolve(%q) mismatch (-want +got):\n%s", tt.specifier, diff)
			}
		})
	}
}

// TestWithSpecifierResolver runs the TypeScript-aware rewrites on top of the
// filesystem default.
func TestWithSpecifierResolver(t *testing.T) {
	t.Parallel()

	classifier := pkgjson.NewClassifier(pkgjson.NewCache(projectFs(t)))
	host := New(classifier, WithBaseDir("/proj/src"))
	r := resolver.New(classifier)

	tests := []struct {
		specifier string
		want      resolver.Descriptor
	}{
		{"./util", resolver.Descriptor{URL: "file:///proj/src/util.ts", Format: format.Module}},
		{"./util.ts", resolver.Descriptor{URL: "file:///proj/src/util.ts", Format: format.Module}},
		{"./esm.mjs", resolver.Descriptor{URL: "file:///proj/src/esm.mts", Format: format.Module}},
		{"./lib", resolver.Descriptor{URL: "file:///proj/src/lib/index.js", Format: format.Module}},
		{"./lib/", resolver.Descriptor{URL: "file:///proj/src/lib/index.js", Format: format.Module}},
		{"./widget", resolver.Descriptor{URL: "file:///proj/src/widget/index.tsx", Format: format.Module}},
		{"./data", resolver.Descriptor{URL: "file:///proj/src/data.json", Format: format.JSON}},
		{"node:path", resolver.Descriptor{URL: "node:path", Format: format.Builtin}},
	}
	for _, tt := range tests {
		got, err := r.Resolve(t.Context(), tt.specifier, resolver.Context{ParentURL: mainTS}, host)
		if err != nil {
			t.Errorf("Resolve(%q) error: %v", tt.specifier, err)
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Resolve(%q) mismatch (-want +got):\n%s", tt.specifier, diff)
		}
	}

	_, err := r.Resolve(t.Context(), "./absent", resolver.Context{ParentURL: mainTS}, host)
	if code := resolver.CodeOf(err); code != resolver.CodeModuleNotFound {
		t.Errorf("Resolve(./absent) code = %q, want %q", code, resolver.CodeModuleNotFound)
	}
}

func TestSplitPackageSpecifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in            string
		name, subpath string
		ok            bool
	}{
		{"lodash", "lodash", "", true},
		{"lodash/fp", "lodash", "/fp", true},
		{"@scope/pkg", "@scope/pkg", "", true},
		{"@scope/pkg/a/b", "@scope/pkg", "/a/b", true},
		{"@scope", "", "", false},
		{".hidden", "", "", false},
		{"bad%name", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		name, subpath, ok := splitPackageSpecifier(tt.in)
		if name != tt.name || subpath != tt.subpath || ok != tt.ok {
			t.Errorf("splitPackageSpecifier(%q) = %q, %q, %v; want %q, %q, %v",
				tt.in, name, subpath, ok, tt.name, tt.subpath, tt.ok)
		}
	}
}
