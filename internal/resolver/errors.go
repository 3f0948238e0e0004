// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"errors"
	"fmt"
)

// Error codes raised by the host's default resolution.
const (
	// CodeModuleNotFound is raised when a specifier names nothing on disk.
	CodeModuleNotFound = "ERR_MODULE_NOT_FOUND"
	// CodeUnsupportedDirImport is raised when a specifier names a directory.
	CodeUnsupportedDirImport = "ERR_UNSUPPORTED_DIR_IMPORT"
	// CodeInvalidModuleSpecifier is raised for specifiers the host rejects outright.
	CodeInvalidModuleSpecifier = "ERR_INVALID_MODULE_SPECIFIER"
	// CodePackagePathNotExported is raised when a package's exports hide a subpath.
	CodePackagePathNotExported = "ERR_PACKAGE_PATH_NOT_EXPORTED"
	// CodePackageImportNotDefined is raised for a "#" specifier the package's
	// imports field does not map.
	CodePackageImportNotDefined = "ERR_PACKAGE_IMPORT_NOT_DEFINED"
	// CodeInvalidPackageTarget is raised when an exports or imports target is malformed.
	CodeInvalidPackageTarget = "ERR_INVALID_PACKAGE_TARGET"
	// CodeUnknownBuiltinModule is raised for a "node:" specifier the host does not provide.
	CodeUnknownBuiltinModule = "ERR_UNKNOWN_BUILTIN_MODULE"
	// CodeUnsupportedURLScheme is raised for URL schemes the host cannot load.
	CodeUnsupportedURLScheme = "ERR_UNSUPPORTED_ESM_URL_SCHEME"
)

// Error is a resolution failure as reported by a Delegate. Its Code is
// preserved verbatim through every fallback.
type Error struct {
	Code      string
	Specifier string
	Parent    string
	Message   string
}

// NewError creates an Error with a message derived from code and specifier.
func NewError(code, specifier, parent string) *Error {
	return &Error{Code: code, Specifier: specifier, Parent: parent}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	switch e.Code {
	case CodeModuleNotFound:
		if e.Parent != "" {
			return fmt.Sprintf("Cannot find module '%s' imported from %s", e.Specifier, e.Parent)
		}
		return fmt.Sprintf("Cannot find module '%s'", e.Specifier)
	case CodeUnsupportedDirImport:
		return fmt.Sprintf("Directory import '%s' is not supported resolving ES modules", e.Specifier)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Specifier)
	}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Code
	}
	return ""
}

// isResolutionError reports whether err is a resolution failure a fallback
// may swallow, as opposed to a hard failure such as a malformed package.json.
func isResolutionError(err error) bool {
	var rerr *Error
	return errors.As(err, &rerr)
}
