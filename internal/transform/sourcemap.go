// SPDX-License-Identifier: MPL-2.0

package transform

import (
	"encoding/base64"
	"strings"
	"sync"
)

const sourceMappingPrefix = "//# sourceMappingURL=data:application/json;base64,"

// SourceMaps holds the source map of every module transformed in this
// process, keyed by module URL. A later registration replaces an earlier one.
type SourceMaps struct {
	maps sync.Map // string -> string
}

// NewSourceMaps creates an empty store.
func NewSourceMaps() *SourceMaps {
	return &SourceMaps{}
}

// Register records the source map of url. Empty maps are ignored.
func (s *SourceMaps) Register(url, sourceMap string) {
	if sourceMap == "" {
		return
	}
	s.maps.Store(url, sourceMap)
}

// Lookup returns the source map registered for url.
func (s *SourceMaps) Lookup(url string) (string, bool) {
	v, ok := s.maps.Load(url)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Inline appends sourceMap to code as a data URL comment, which the host
// picks up when started with --enable-source-maps.
func Inline(code, sourceMap string) string {
	if sourceMap == "" {
		return code
	}
	var sb strings.Builder
	sb.Grow(len(code) + len(sourceMappingPrefix) + base64.StdEncoding.EncodedLen(len(sourceMap)) + 1)
	sb.WriteString(code)
	if !strings.HasSuffix(code, "\n") {
		sb.WriteByte('\n')
	}
	sb.WriteString(sourceMappingPrefix)
	sb.WriteString(base64.StdEncoding.EncodeToString([]byte(sourceMap)))
	return sb.String()
}
