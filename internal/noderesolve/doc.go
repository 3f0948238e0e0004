// SPDX-License-Identifier: MPL-2.0

// Package noderesolve implements the host runtime's default ES module
// resolution against a filesystem. It stands in for the live host when
// specifiers are resolved outside a running node process, and it raises
// the same error codes the host does so callers can fall back on them.
//
// Supported: node: builtins, relative, absolute and file: specifiers, bare
// package specifiers looked up through node_modules (exports with nested
// conditions and "*" patterns, then main, then index.js) and "#" imports
// of the enclosing package.
package noderesolve
