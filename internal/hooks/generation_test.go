// SPDX-License-Identifier: MPL-2.0

package hooks

import (
	"errors"
	"testing"
)

func TestVersionPolicyGeneration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		version string
		want    Generation
	}{
		{"v12.22.12", GenerationTransformSource},
		{"v14.17.0", GenerationTransformSource},
		{"v16.11.1", GenerationTransformSource},
		{"v16.12.0-nightly20211020", GenerationLoad},
		{"v16.12.0-rc.1", GenerationLoad},
		{"v16.12.0+build.7", GenerationLoad},
		{"v16.11.1-nightly20211015", GenerationTransformSource},
		{"v16.11.99-pre", GenerationTransformSource},
		{"v16.12", GenerationLoad},
		{"v17.0.0-rc.1", GenerationLoad},
		{"v16.12.0", GenerationLoad},
		{"v16.13.2", GenerationLoad},
		{"v18.0.0", GenerationLoad},
		{"20.11.1", GenerationLoad},
		{" v22.3.0\n", GenerationLoad},
	}

	p, err := NewVersionPolicy(GenerationAuto)
	if err != nil {
		t.Fatalf("NewVersionPolicy() error: %v", err)
	}
	for _, tt := range tests {
		got, err := p.Generation(tt.version)
		if err != nil {
			t.Errorf("Generation(%q) error: %v", tt.version, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Generation(%q) = %q, want %q", tt.version, got, tt.want)
		}
	}
}

func TestVersionPolicyForced(t *testing.T) {
	t.Parallel()

	p, err := NewVersionPolicy(GenerationTransformSource)
	if err != nil {
		t.Fatalf("NewVersionPolicy() error: %v", err)
	}
	got, err := p.Generation("v22.0.0")
	if err != nil || got != GenerationTransformSource {
		t.Errorf("Generation() = %q, %v; want %q", got, err, GenerationTransformSource)
	}

	// A forced generation does not need a parsable version.
	if _, err := p.Generation("unknown"); err != nil {
		t.Errorf("Generation(unknown) error: %v", err)
	}
}

func TestVersionPolicyInvalid(t *testing.T) {
	t.Parallel()

	if _, err := NewVersionPolicy("sometimes"); !errors.Is(err, ErrInvalidGeneration) {
		t.Errorf("NewVersionPolicy(sometimes) error = %v, want ErrInvalidGeneration", err)
	}

	p, err := NewVersionPolicy("")
	if err != nil {
		t.Fatalf("NewVersionPolicy(\"\") error: %v", err)
	}
	for _, v := range []string{"", "node", "sixteen.1.0", "v16.1.0.0"} {
		if _, err := p.Generation(v); !errors.Is(err, ErrInvalidVersion) {
			t.Errorf("Generation(%q) error = %v, want ErrInvalidVersion", v, err)
		}
	}
}
