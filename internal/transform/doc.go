// SPDX-License-Identifier: MPL-2.0

// Package transform turns TypeScript, JSX and JSON sources into JavaScript
// the host can link, and keeps the source maps of everything it emitted.
package transform
