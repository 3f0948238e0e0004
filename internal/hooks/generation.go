// SPDX-License-Identifier: MPL-2.0

package hooks

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

const (
	// GenerationAuto selects the generation from the host version.
	GenerationAuto Generation = "auto"
	// GenerationLoad is the resolve/load generation.
	GenerationLoad Generation = "load"
	// GenerationTransformSource is the resolve/getFormat/transformSource generation.
	GenerationTransformSource Generation = "transform-source"

	// LoadHooksSince is the first host version that calls load instead of
	// getFormat and transformSource.
	LoadHooksSince = "v16.12.0"
)

var (
	// ErrInvalidGeneration is the sentinel error wrapped by InvalidGenerationError.
	ErrInvalidGeneration = errors.New("invalid hook generation")

	// ErrInvalidVersion is returned when a host version is not a semantic version.
	ErrInvalidVersion = errors.New("invalid host version")
)

type (
	// Generation names a set of hooks the host calls.
	Generation string

	// InvalidGenerationError is returned when a Generation value is not recognized.
	// It wraps ErrInvalidGeneration for errors.Is() compatibility.
	InvalidGenerationError struct {
		Value Generation
	}

	// VersionPolicy decides which generation a host version uses. The zero
	// value is not usable; call NewVersionPolicy.
	VersionPolicy struct {
		loadSince string
		forced    Generation
	}
)

// String returns the string representation of the Generation.
func (g Generation) String() string { return string(g) }

// Validate returns nil if the Generation is recognized.
func (g Generation) Validate() error {
	switch g {
	case GenerationAuto, GenerationLoad, GenerationTransformSource:
		return nil
	default:
		return &InvalidGenerationError{Value: g}
	}
}

// Error implements the error interface for InvalidGenerationError.
func (e *InvalidGenerationError) Error() string {
	return fmt.Sprintf("invalid hook generation %q (valid: auto, load, transform-source)", e.Value)
}

// Unwrap returns ErrInvalidGeneration for errors.Is() compatibility.
func (e *InvalidGenerationError) Unwrap() error { return ErrInvalidGeneration }

// NewVersionPolicy returns the policy for forced. GenerationAuto (or "")
// compares the host version against LoadHooksSince; any other value is used
// for every host.
func NewVersionPolicy(forced Generation) (VersionPolicy, error) {
	if forced == "" {
		forced = GenerationAuto
	}
	if err := forced.Validate(); err != nil {
		return VersionPolicy{}, err
	}
	return VersionPolicy{loadSince: LoadHooksSince, forced: forced}, nil
}

// Generation returns the generation for a host reporting version, in the
// form printed by `node --version` ("v16.11.1") or without the "v".
func (p VersionPolicy) Generation(version string) (Generation, error) {
	if p.forced != GenerationAuto && p.forced != "" {
		return p.forced, nil
	}
	v, err := NormalizeVersion(version)
	if err != nil {
		return "", err
	}
	since := p.loadSince
	if since == "" {
		since = LoadHooksSince
	}
	if semver.Compare(coreVersion(v), since) < 0 {
		return GenerationTransformSource, nil
	}
	return GenerationLoad, nil
}

// coreVersion drops prerelease and build suffixes so hosts compare on major,
// minor and patch only.
func coreVersion(v string) string {
	v = strings.TrimSuffix(v, semver.Build(v))
	v = strings.TrimSuffix(v, semver.Prerelease(v))
	return semver.Canonical(v)
}

// NormalizeVersion trims whitespace, adds the "v" prefix semver expects and
// validates the result.
func NormalizeVersion(version string) (string, error) {
	v := strings.TrimSpace(version)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "", fmt.Errorf("%q: %w", version, ErrInvalidVersion)
	}
	return v, nil
}
