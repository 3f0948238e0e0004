// SPDX-License-Identifier: MPL-2.0

package format

import (
	"errors"
	"testing"
)

func TestIsTypeScript(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want bool
	}{
		{"./a.ts", true},
		{"./a.mts", true},
		{"./a.cts", true},
		{"./a.tsx", true},
		{"./a.jsx", true},
		{"file:///src/app.ts", true},
		{"./a.js", false},
		{"./a.mjs", false},
		{"./a.d.ts.map", false},
		{"./ts", false},
		{"./a.json", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			if got := IsTypeScript(tt.path); got != tt.want {
				t.Errorf("IsTypeScript(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestFromExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want Format
	}{
		{"file:///a/b.mts", Module},
		{"file:///a/b.cts", CommonJS},
		{"file:///a/b.mts?v=1", Module},
		{"file:///a/b.ts", Unset},
		{"file:///a/b.tsx", Unset},
		{"file:///a/b.js", Unset},
	}

	for _, tt := range tests {
		if got := FromExtension(tt.path); got != tt.want {
			t.Errorf("FromExtension(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestFromPackageType(t *testing.T) {
	t.Parallel()

	if got := FromPackageType("module"); got != Module {
		t.Errorf("FromPackageType(module) = %q", got)
	}
	for _, typ := range []string{"commonjs", "", "esm", "Module"} {
		if got := FromPackageType(typ); got != CommonJS {
			t.Errorf("FromPackageType(%q) = %q, want commonjs", typ, got)
		}
	}
}

func TestFormat_Validate(t *testing.T) {
	t.Parallel()

	for _, f := range []Format{Unset, Module, CommonJS, JSON, Builtin} {
		if err := f.Validate(); err != nil {
			t.Errorf("Format(%q).Validate() = %v, want nil", f, err)
		}
	}

	err := Format("wasm").Validate()
	if err == nil {
		t.Fatal("Format(wasm).Validate() = nil, want error")
	}
	if !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("error %v does not wrap ErrInvalidFormat", err)
	}
}
