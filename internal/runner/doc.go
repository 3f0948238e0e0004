// SPDX-License-Identifier: MPL-2.0

// Package runner starts node with the tsload loader shim registered and a hook
// server behind it. The shim files are embedded and written to a private
// directory for the lifetime of a Session.
package runner
