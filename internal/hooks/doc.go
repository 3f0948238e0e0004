// SPDX-License-Identifier: MPL-2.0

// Package hooks implements the module loader hook surface of the host
// runtime on top of the specifier resolver and the transpiler.
//
// Two hook generations exist. Hosts from v16.12.0 call resolve and load;
// older hosts call resolve, getFormat and transformSource. A VersionPolicy
// picks one generation per process and Select builds its hooks. The
// generation-specific entry points are exposed as capability interfaces
// (Loader, FormatTransformer) so a caller asks the hooks what they can do
// instead of switching on the version again.
//
// Every hook receives the host's default behavior for that hook as an
// argument and may defer to it.
package hooks
