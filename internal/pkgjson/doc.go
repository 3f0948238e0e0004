// SPDX-License-Identifier: MPL-2.0

// Package pkgjson reads package.json manifests and classifies source files by
// the package boundary they live in.
//
// A Classifier walks from a file's directory towards the filesystem root and
// stops at the first package.json it can read; that manifest's "type" field
// decides whether ambiguous extensions (.js, .ts, .tsx, .jsx) are ES modules
// or commonjs. A node_modules/package.json is never treated as the boundary.
//
// Parsed manifests are memoized in a Cache keyed by absolute path. A missing
// manifest is memoized too, so sibling files cost one probe per directory.
// Entries are never invalidated for the lifetime of the Cache.
package pkgjson
