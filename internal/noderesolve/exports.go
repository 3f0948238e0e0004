// SPDX-License-Identifier: MPL-2.0

package noderesolve

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"

	json "github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// errInvalidTarget marks an exports or imports target that is neither a
// "./" path nor, for imports, a bare specifier.
var errInvalidTarget = errors.New("invalid package target")

// defaultConditions are the export conditions of an ES module import.
var defaultConditions = []string{"node", "import"}

type member struct {
	key   string
	value jsontext.Value
}

// objectMembers decodes a JSON object into its members in document order.
// Condition objects are order-sensitive, so a Go map will not do.
func objectMembers(v jsontext.Value) ([]member, error) {
	dec := jsontext.NewDecoder(bytes.NewReader(v))
	if tok, err := dec.ReadToken(); err != nil {
		return nil, err
	} else if tok.Kind() != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok.Kind())
	}

	var out []member
	for dec.PeekKind() != '}' {
		key, err := dec.ReadToken()
		if err != nil {
			return nil, err
		}
		val, err := dec.ReadValue()
		if err != nil {
			return nil, err
		}
		out = append(out, member{key: key.String(), value: slices.Clone(val)})
	}
	return out, nil
}

// arrayElements decodes a JSON array into its elements.
func arrayElements(v jsontext.Value) ([]jsontext.Value, error) {
	dec := jsontext.NewDecoder(bytes.NewReader(v))
	if tok, err := dec.ReadToken(); err != nil {
		return nil, err
	} else if tok.Kind() != '[' {
		return nil, fmt.Errorf("expected array, got %v", tok.Kind())
	}

	var out []jsontext.Value
	for dec.PeekKind() != ']' {
		val, err := dec.ReadValue()
		if err != nil {
			return nil, err
		}
		out = append(out, slices.Clone(val))
	}
	return out, nil
}

// isSubpathMap reports whether an exports object maps subpaths (keys start
// with ".") rather than conditions.
func isSubpathMap(members []member) bool {
	return len(members) > 0 && strings.HasPrefix(members[0].key, ".")
}

// matchSubpath resolves request ("." or "./x", or "#x" for imports) against
// a subpath map. Exact keys win; otherwise the "*" pattern with the longest
// prefix is used and its match is substituted into the target.
func matchSubpath(members []member, request string, conditions []string, allowBare bool) (string, bool, error) {
	for _, m := range members {
		if m.key == request && !strings.Contains(m.key, "*") {
			return resolveTarget(m.value, "", conditions, allowBare)
		}
	}

	var (
		best      member
		bestMatch string
		found     bool
	)
	for _, m := range members {
		prefix, suffix, ok := strings.Cut(m.key, "*")
		if !ok || strings.Contains(suffix, "*") {
			continue
		}
		if !strings.HasPrefix(request, prefix) || !strings.HasSuffix(request, suffix) ||
			len(request) < len(prefix)+len(suffix) {
			continue
		}
		if found && len(prefix) <= len(strings.SplitN(best.key, "*", 2)[0]) {
			continue
		}
		best, bestMatch, found = m, request[len(prefix):len(request)-len(suffix)], true
	}
	if !found {
		return "", false, nil
	}
	return resolveTarget(best.value, bestMatch, conditions, allowBare)
}

// resolveTarget walks one exports/imports target: a string, a condition
// object or a fallback array. ok is false when the target excludes the
// request (null, or no condition matched).
func resolveTarget(target jsontext.Value, patternMatch string, conditions []string, allowBare bool) (string, bool, error) {
	switch target.Kind() {
	case '"':
		var s string
		if err := json.Unmarshal(target, &s); err != nil {
			return "", false, err
		}
		if !strings.HasPrefix(s, "./") && (!allowBare || strings.HasPrefix(s, "/") || strings.HasPrefix(s, "../")) {
			return "", false, fmt.Errorf("%q: %w", s, errInvalidTarget)
		}
		if patternMatch != "" {
			s = strings.ReplaceAll(s, "*", patternMatch)
		}
		return s, true, nil

	case '{':
		members, err := objectMembers(target)
		if err != nil {
			return "", false, err
		}
		for _, m := range members {
			if m.key != "default" && !slices.Contains(conditions, m.key) {
				continue
			}
			s, ok, err := resolveTarget(m.value, patternMatch, conditions, allowBare)
			if err != nil || ok {
				return s, ok, err
			}
		}
		return "", false, nil

	case '[':
		elems, err := arrayElements(target)
		if err != nil {
			return "", false, err
		}
		var lastErr error
		for _, e := range elems {
			s, ok, err := resolveTarget(e, patternMatch, conditions, allowBare)
			if err != nil {
				lastErr = err
				continue
			}
			if ok {
				return s, true, nil
			}
		}
		return "", false, lastErr

	default:
		return "", false, nil
	}
}

// resolveExports resolves subpath ("." or "./x") through an exports field.
func resolveExports(exports jsontext.Value, subpath string, conditions []string) (string, bool, error) {
	if exports.Kind() == '{' {
		members, err := objectMembers(exports)
		if err != nil {
			return "", false, err
		}
		if isSubpathMap(members) {
			return matchSubpath(members, subpath, conditions, false)
		}
	}
	// A string, array or condition object is sugar for {".": exports}.
	if subpath != "." {
		return "", false, nil
	}
	return resolveTarget(exports, "", conditions, false)
}

// resolveImports resolves a "#" specifier through an imports field.
func resolveImports(imports jsontext.Value, specifier string, conditions []string) (string, bool, error) {
	if imports.Kind() != '{' {
		return "", false, nil
	}
	members, err := objectMembers(imports)
	if err != nil {
		return "", false, err
	}
	return matchSubpath(members, specifier, conditions, true)
}
