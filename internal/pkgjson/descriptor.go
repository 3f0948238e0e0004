// SPDX-License-Identifier: MPL-2.0

package pkgjson

import (
	"fmt"

	json "github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/tsload/tsload/pkg/format"
)

// FileName is the manifest file name looked up in every directory.
const FileName = "package.json"

type (
	// Descriptor is a parsed package.json. Fields are kept as raw JSON and
	// decoded on access: a manifest with an odd value in a field we do not
	// need must still classify.
	Descriptor struct {
		// Path is the absolute path the manifest was read from.
		Path string `json:"-"`

		Name    jsontext.Value `json:"name"`
		Version jsontext.Value `json:"version"`
		Type    jsontext.Value `json:"type"`
		Main    jsontext.Value `json:"main"`
		Exports jsontext.Value `json:"exports"`
		Imports jsontext.Value `json:"imports"`
	}

	// ParseError is returned when a package.json exists but is not valid JSON.
	ParseError struct {
		Path string
		Err  error
	}
)

// Parse decodes the contents of the package.json at path. Only invalid
// JSON is an error. A manifest that is valid JSON but not an object yields
// a Descriptor with no fields, and a literal null yields nil so callers
// treat the file as absent and keep walking.
func Parse(path string, data []byte) (*Descriptor, error) {
	var raw jsontext.Value
	if err := json.Unmarshal(data, &raw, jsontext.AllowDuplicateNames(true)); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	d := &Descriptor{Path: path}
	switch raw.Kind() {
	case 'n':
		return nil, nil
	case '{':
		if err := json.Unmarshal(raw, d, jsontext.AllowDuplicateNames(true)); err != nil {
			return nil, &ParseError{Path: path, Err: err}
		}
	}
	return d, nil
}

// ModuleType returns the format the manifest declares for ambiguous
// extensions. An absent or unrecognized "type" is commonjs.
func (d *Descriptor) ModuleType() format.Format {
	typ, _ := stringValue(d.Type)
	return format.FromPackageType(typ)
}

// PackageName returns the "name" field, if it is a string.
func (d *Descriptor) PackageName() (string, bool) {
	return stringValue(d.Name)
}

// MainEntry returns the "main" field, if it is a non-empty string.
func (d *Descriptor) MainEntry() (string, bool) {
	s, ok := stringValue(d.Main)
	return s, ok && s != ""
}

// HasExports reports whether the manifest declares an "exports" field.
func (d *Descriptor) HasExports() bool {
	return len(d.Exports) > 0 && string(d.Exports) != "null"
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("error parsing %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying decode error.
func (e *ParseError) Unwrap() error { return e.Err }

func stringValue(v jsontext.Value) (string, bool) {
	if len(v) == 0 || v.Kind() != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", false
	}
	return s, true
}
