// SPDX-License-Identifier: MPL-2.0

// Package fileurl converts between filesystem paths and file: URLs the way the
// host runtime spells them (file:///abs/path, percent-encoded).
package fileurl

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
)

// Scheme is the URL scheme of local files.
const Scheme = "file"

// ErrNotFileURL is returned when a URL does not use the file: scheme.
var ErrNotFileURL = errors.New("not a file URL")

// IsFileURL reports whether s is a file: URL.
func IsFileURL(s string) bool {
	return strings.HasPrefix(s, Scheme+":")
}

// FromPath returns the file: URL of an absolute path.
func FromPath(p string) string {
	p = filepath.ToSlash(p)
	if runtime.GOOS == "windows" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := url.URL{Scheme: Scheme, Path: p}
	return u.String()
}

// ToPath returns the filesystem path a file: URL points at. Query and
// fragment are discarded.
func ToPath(s string) (string, error) {
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse URL %q: %w", s, err)
	}
	if u.Scheme != Scheme {
		return "", fmt.Errorf("%q: %w", s, ErrNotFileURL)
	}
	p := u.Path
	if runtime.GOOS == "windows" {
		p = strings.TrimPrefix(p, "/")
	}
	return filepath.FromSlash(p), nil
}

// PathOf accepts either a file: URL or a plain path and returns the path.
func PathOf(s string) (string, error) {
	if IsFileURL(s) {
		return ToPath(s)
	}
	return s, nil
}
