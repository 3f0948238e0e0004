// SPDX-License-Identifier: MPL-2.0

package format

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
)

const (
	// Unset leaves the decision to the host's default handling.
	Unset Format = ""
	// Module is an ECMAScript module.
	Module Format = "module"
	// CommonJS is a commonjs module.
	CommonJS Format = "commonjs"
	// JSON is a JSON document imported as a module.
	JSON Format = "json"
	// Builtin is a module provided by the host itself (e.g. "node:fs").
	Builtin Format = "builtin"
)

// ErrInvalidFormat is the sentinel error wrapped by InvalidFormatError.
var ErrInvalidFormat = errors.New("invalid module format")

// tsExtensions matches the source extensions that need transpiling before the
// host can parse them: .ts, .mts, .cts, .tsx and .jsx.
var tsExtensions = regexp.MustCompile(`\.([cm]?ts|[tj]sx)$`)

type (
	// Format is the module format governing how the host parses and links a source.
	Format string

	// InvalidFormatError is returned when a Format value is not recognized.
	// It wraps ErrInvalidFormat for errors.Is() compatibility.
	InvalidFormatError struct {
		Value Format
	}
)

// String returns the string representation of the Format.
func (f Format) String() string { return string(f) }

// Validate returns nil if the Format is one of the defined formats (including
// Unset), or an error wrapping ErrInvalidFormat if it is not.
func (f Format) Validate() error {
	switch f {
	case Unset, Module, CommonJS, JSON, Builtin:
		return nil
	default:
		return &InvalidFormatError{Value: f}
	}
}

// Error implements the error interface for InvalidFormatError.
func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid module format %q (valid: module, commonjs, json, builtin)", e.Value)
}

// Unwrap returns ErrInvalidFormat for errors.Is() compatibility.
func (e *InvalidFormatError) Unwrap() error { return ErrInvalidFormat }

// IsTypeScript reports whether p (a path or URL) names a TypeScript or JSX
// source: .ts, .mts, .cts, .tsx or .jsx.
func IsTypeScript(p string) bool {
	return tsExtensions.MatchString(p)
}

// FromExtension returns the format implied by the literal extension of p when
// the extension alone is unambiguous: .mts is always a module and .cts always
// commonjs. It returns Unset for every other extension.
func FromExtension(p string) Format {
	switch path.Ext(stripQuery(p)) {
	case ".mts":
		return Module
	case ".cts":
		return CommonJS
	default:
		return Unset
	}
}

// FromPackageType maps a package.json "type" value onto a Format. Only
// "module" selects Module; anything else, including values that are not
// recognized, is CommonJS.
func FromPackageType(typ string) Format {
	if typ == string(Module) {
		return Module
	}
	return CommonJS
}

// stripQuery drops a URL query or fragment so extension checks see the path.
func stripQuery(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		return p[:i]
	}
	return p
}
