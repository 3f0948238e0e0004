// SPDX-License-Identifier: MPL-2.0

// Package testutil holds helpers shared by tsload's tests: file trees, a
// node stand-in and cleanup wrappers.
package testutil
