// SPDX-License-Identifier: MPL-2.0

// Package issue provides user-facing errors: ActionableError carries the
// failed operation and suggestions, and the Issue catalog holds markdown
// guidance rendered with glamour for each failure tsload knows how to explain.
package issue
