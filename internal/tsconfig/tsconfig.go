// SPDX-License-Identifier: MPL-2.0

package tsconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"path/filepath"
	"strings"

	json "github.com/go-json-experiment/json"
	"github.com/spf13/afero"
	"github.com/tailscale/hujson"
)

// FileName is the config file discovered when no path is given.
const FileName = "tsconfig.json"

// ErrExtendsCycle is returned when an extends chain refers back to itself.
var ErrExtendsCycle = errors.New("tsconfig extends cycle")

type (
	// Config is a loaded tsconfig with its extends chain applied.
	Config struct {
		// Path is the file the config was loaded from.
		Path string
		// Raw is the merged JSON object, without "extends".
		Raw map[string]any
	}

	// Loader reads tsconfig files through a filesystem.
	Loader struct {
		fs afero.Fs
	}

	// LoadError reports a tsconfig that could not be read or parsed.
	LoadError struct {
		Path string
		Err  error
	}
)

// NewLoader creates a Loader. A nil fsys reads the OS filesystem.
func NewLoader(fsys afero.Fs) *Loader {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Loader{fs: fsys}
}

// Find returns the nearest tsconfig.json at or above dir, or nil when
// there is none.
func (l *Loader) Find(dir string) (*Config, error) {
	for {
		p := filepath.Join(dir, FileName)
		if fi, err := l.fs.Stat(p); err == nil && !fi.IsDir() {
			return l.Load(p)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Load reads the tsconfig at path and applies its extends chain.
func (l *Loader) Load(path string) (*Config, error) {
	raw, err := l.load(path, map[string]bool{})
	if err != nil {
		return nil, err
	}
	return &Config{Path: path, Raw: raw}, nil
}

func (l *Loader) load(path string, seen map[string]bool) (map[string]any, error) {
	if seen[path] {
		return nil, &LoadError{Path: path, Err: ErrExtendsCycle}
	}
	seen[path] = true
	defer delete(seen, path)

	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	var obj map[string]any
	if err := json.Unmarshal(std, &obj); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if obj == nil {
		obj = map[string]any{}
	}

	bases, err := extendsOf(obj)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	delete(obj, "extends")

	merged := map[string]any{}
	for _, b := range bases {
		bp, err := l.resolveExtends(filepath.Dir(path), b)
		if err != nil {
			return nil, &LoadError{Path: path, Err: err}
		}
		base, err := l.load(bp, seen)
		if err != nil {
			return nil, err
		}
		merged = merge(merged, base)
	}
	return merge(merged, obj), nil
}

// extendsOf returns the extends entries in application order. TypeScript
// accepts a string or an array of strings.
func extendsOf(obj map[string]any) ([]string, error) {
	switch v := obj["extends"].(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("extends entry %v is not a string", e)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("extends must be a string or an array, got %T", v)
	}
}

// resolveExtends maps an extends entry to a file. Paths are relative to the
// extending config; anything else is looked up in node_modules.
func (l *Loader) resolveExtends(dir, ref string) (string, error) {
	if filepath.IsAbs(ref) || strings.HasPrefix(ref, "./") || strings.HasPrefix(ref, "../") {
		p := ref
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, filepath.FromSlash(ref))
		}
		return l.withJSONExt(p)
	}

	for d := dir; ; {
		pkgPath := filepath.Join(d, "node_modules", filepath.FromSlash(ref))
		if p, err := l.withJSONExt(pkgPath); err == nil {
			return p, nil
		}
		if p, err := l.withJSONExt(filepath.Join(pkgPath, FileName)); err == nil {
			return p, nil
		}
		parent := filepath.Dir(d)
		if parent == d {
			return "", fmt.Errorf("extends %q: %w", ref, fs.ErrNotExist)
		}
		d = parent
	}
}

func (l *Loader) withJSONExt(p string) (string, error) {
	for _, c := range []string{p, p + ".json"} {
		if fi, err := l.fs.Stat(c); err == nil && !fi.IsDir() {
			return c, nil
		}
	}
	return "", fmt.Errorf("%s: %w", p, fs.ErrNotExist)
}

// merge applies override on top of base. compilerOptions are merged key by
// key; every other top-level field is replaced.
func merge(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	maps.Copy(out, base)
	for k, v := range override {
		if k == "compilerOptions" {
			bo, _ := out[k].(map[string]any)
			oo, ok := v.(map[string]any)
			if ok && bo != nil {
				co := make(map[string]any, len(bo)+len(oo))
				maps.Copy(co, bo)
				maps.Copy(co, oo)
				out[k] = co
				continue
			}
		}
		out[k] = v
	}
	return out
}

// JSON returns the merged config encoded as JSON, the form the transpiler
// accepts. A nil Config yields "".
func (c *Config) JSON() (string, error) {
	if c == nil {
		return "", nil
	}
	b, err := json.Marshal(c.Raw, json.Deterministic(true))
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", c.Path, err)
	}
	return string(b), nil
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("load tsconfig %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error { return e.Err }
