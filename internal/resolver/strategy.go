// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"regexp"
	"strings"

	"github.com/tsload/tsload/pkg/format"
)

const (
	// builtinProtocol prefixes host modules ("node:fs").
	builtinProtocol = "node:"
	// indexName is appended to directory-style specifiers.
	indexName = "index"
)

var (
	// hasExtension matches a specifier whose last segment already carries an extension.
	hasExtension = regexp.MustCompile(`\.\w+$`)
	// jsCounterpart matches the .cjs/.mjs extensions that have a .cts/.mts twin.
	jsCounterpart = regexp.MustCompile(`\.[cm]js$`)

	// probeExtensions are tried, in order, on an extensionless specifier.
	probeExtensions = []string{".js", ".json", ".ts", ".tsx", ".jsx"}
)

type (
	// candidates proposes alternative specifiers for one rewrite rule. It is a
	// pure function: no I/O, nil when the rule does not apply.
	candidates func(specifier string, rc Context) []string

	// fallback is a rewrite rule tried after delegation failed with Code.
	fallback struct {
		name string
		code string
		next candidates
	}
)

// fallbacks run in order when the host rejects a specifier it resolved
// unmodified. The first fallback whose code matches owns the retry.
// Candidates only skip resolution errors: a malformed package.json or an
// I/O failure met while probing ends the search, where a loader that
// swallowed every candidate error would keep probing past it.
var fallbacks = []fallback{
	{name: "directory index", code: CodeUnsupportedDirImport, next: indexCandidate},
	{name: "extension probe", code: CodeModuleNotFound, next: suffixCandidates},
}

// stripBuiltinProtocol treats "node:fs" the same as "fs".
func stripBuiltinProtocol(specifier string) string {
	return strings.TrimPrefix(specifier, builtinProtocol)
}

// directoryIndex rewrites "./lib/" to "./lib/index".
func directoryIndex(specifier string, _ Context) []string {
	if !strings.HasSuffix(specifier, "/") {
		return nil
	}
	return []string{specifier + indexName}
}

// typeScriptCounterpart rewrites "./x.mjs" to "./x.mts" (and .cjs to .cts)
// when the importer is itself a TypeScript or JSX source.
func typeScriptCounterpart(specifier string, rc Context) []string {
	if !jsCounterpart.MatchString(specifier) || !format.IsTypeScript(rc.ParentURL) {
		return nil
	}
	return []string{specifier[:len(specifier)-2] + "ts"}
}

// indexCandidate retries a directory import as its index module.
func indexCandidate(specifier string, _ Context) []string {
	return []string{joinSuffix(specifier, "/"+indexName)}
}

// suffixCandidates lists the probe order for an extensionless specifier:
// every extension on the specifier itself, then every extension on its index.
func suffixCandidates(specifier string, _ Context) []string {
	if hasExtension.MatchString(specifier) {
		return nil
	}
	out := make([]string, 0, 2*len(probeExtensions))
	for _, ext := range probeExtensions {
		out = append(out, joinSuffix(specifier, ext))
	}
	for _, ext := range probeExtensions {
		out = append(out, joinSuffix(specifier, "/"+indexName+ext))
	}
	return out
}

// joinSuffix appends suffix to specifier without doubling a path separator
// at the join point.
func joinSuffix(specifier, suffix string) string {
	if strings.HasSuffix(specifier, "/") && strings.HasPrefix(suffix, "/") {
		return specifier + suffix[1:]
	}
	return specifier + suffix
}
