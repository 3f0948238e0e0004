// SPDX-License-Identifier: MPL-2.0

// Package format defines the module formats a host runtime links sources as,
// and the file extension rules that map a path onto one of them.
//
// A Format is the value a resolve hook annotates its result with. The zero
// value means "unset": the host applies its own default handling.
package format
