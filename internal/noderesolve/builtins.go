// SPDX-License-Identifier: MPL-2.0

package noderesolve

import "strings"

// builtinModules are the host's core modules, including their public
// subpaths. Private modules (leading underscore) are omitted.
var builtinModules = map[string]bool{
	"assert":              true,
	"assert/strict":       true,
	"async_hooks":         true,
	"buffer":              true,
	"child_process":       true,
	"cluster":             true,
	"console":             true,
	"constants":           true,
	"crypto":              true,
	"dgram":               true,
	"diagnostics_channel": true,
	"dns":                 true,
	"dns/promises":        true,
	"domain":              true,
	"events":              true,
	"fs":                  true,
	"fs/promises":         true,
	"http":                true,
	"http2":               true,
	"https":               true,
	"inspector":           true,
	"inspector/promises":  true,
	"module":              true,
	"net":                 true,
	"os":                  true,
	"path":                true,
	"path/posix":          true,
	"path/win32":          true,
	"perf_hooks":          true,
	"process":             true,
	"punycode":            true,
	"querystring":         true,
	"readline":            true,
	"readline/promises":   true,
	"repl":                true,
	"stream":              true,
	"stream/consumers":    true,
	"stream/promises":     true,
	"stream/web":          true,
	"string_decoder":      true,
	"sys":                 true,
	"timers":              true,
	"timers/promises":     true,
	"tls":                 true,
	"trace_events":        true,
	"tty":                 true,
	"url":                 true,
	"util":                true,
	"util/types":          true,
	"v8":                  true,
	"vm":                  true,
	"wasi":                true,
	"worker_threads":      true,
	"zlib":                true,
}

// prefixOnlyModules exist only under the node: scheme.
var prefixOnlyModules = map[string]bool{
	"sea":            true,
	"sqlite":         true,
	"test":           true,
	"test/reporters": true,
}

// builtinName returns the core module named by specifier. ok is false when
// specifier does not name a builtin; known is false when it uses the node:
// scheme for a module the host does not provide.
func builtinName(specifier string) (name string, ok, known bool) {
	if rest, found := strings.CutPrefix(specifier, "node:"); found {
		if builtinModules[rest] || prefixOnlyModules[rest] {
			return rest, true, true
		}
		return rest, true, false
	}
	if builtinModules[specifier] {
		return specifier, true, true
	}
	return "", false, false
}
