// SPDX-License-Identifier: MPL-2.0

package noderesolve

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/afero"

	"github.com/tsload/tsload/internal/pkgjson"
	"github.com/tsload/tsload/internal/resolver"
	"github.com/tsload/tsload/pkg/fileurl"
	"github.com/tsload/tsload/pkg/format"
)

const nodeModules = "node_modules"

type (
	// Resolver is a resolver.Delegate backed by a filesystem.
	Resolver struct {
		fs         afero.Fs
		classifier *pkgjson.Classifier
		manifests  *pkgjson.Cache
		baseDir    string
	}

	// Option configures a Resolver.
	Option func(*Resolver)
)

var _ resolver.Delegate = (*Resolver)(nil)

// WithBaseDir sets the directory specifiers without a parent resolve
// against. It defaults to the process working directory.
func WithBaseDir(dir string) Option {
	return func(r *Resolver) {
		r.baseDir = dir
	}
}

// New creates a Resolver reading through the classifier's filesystem and
// sharing its manifest cache.
func New(classifier *pkgjson.Classifier, opts ...Option) *Resolver {
	r := &Resolver{
		fs:         classifier.Cache().Fs(),
		classifier: classifier,
		manifests:  classifier.Cache(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.baseDir == "" {
		if wd, err := os.Getwd(); err == nil {
			r.baseDir = wd
		} else {
			r.baseDir = string(filepath.Separator)
		}
	}
	return r
}

// Resolve implements resolver.Delegate.
func (r *Resolver) Resolve(ctx context.Context, specifier string, rc resolver.Context) (resolver.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return resolver.Descriptor{}, err
	}

	if name, ok, known := builtinName(specifier); ok {
		if !known {
			return resolver.Descriptor{}, r.fail(resolver.CodeUnknownBuiltinModule, specifier, rc,
				fmt.Sprintf("No such built-in module: node:%s", name))
		}
		return resolver.Descriptor{URL: "node:" + name, Format: format.Builtin}, nil
	}

	var (
		p   string
		err error
	)
	switch {
	case fileurl.IsFileURL(specifier):
		p, err = fileurl.ToPath(specifier)
	case isRelative(specifier) || strings.HasPrefix(specifier, "/"):
		p, err = r.relativeTo(specifier, rc)
	case strings.HasPrefix(specifier, "#"):
		p, err = r.resolveImport(ctx, specifier, rc)
	case strings.HasPrefix(specifier, "data:"):
		return resolver.Descriptor{URL: specifier}, nil
	case hasScheme(specifier):
		return resolver.Descriptor{}, r.fail(resolver.CodeUnsupportedURLScheme, specifier, rc,
			fmt.Sprintf("Only URLs with a scheme in: file, data, and node are supported. Received protocol '%s'",
				specifier[:strings.IndexByte(specifier, ':')+1]))
	default:
		p, err = r.resolvePackage(ctx, specifier, rc)
	}
	if err != nil {
		return resolver.Descriptor{}, err
	}
	return r.finalize(ctx, specifier, p, rc)
}

// finalize checks that p is a file and derives its format.
func (r *Resolver) finalize(ctx context.Context, specifier, p string, rc resolver.Context) (resolver.Descriptor, error) {
	fi, err := r.fs.Stat(p)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return resolver.Descriptor{}, resolver.NewError(resolver.CodeModuleNotFound, specifier, rc.ParentURL)
	}
	if err != nil {
		return resolver.Descriptor{}, fmt.Errorf("stat %s: %w", p, err)
	}
	if fi.IsDir() {
		return resolver.Descriptor{}, resolver.NewError(resolver.CodeUnsupportedDirImport, specifier, rc.ParentURL)
	}

	u := fileurl.FromPath(p)
	f, err := r.formatOf(ctx, p, u)
	if err != nil {
		return resolver.Descriptor{}, err
	}
	return resolver.Descriptor{URL: u, Format: f}, nil
}

// formatOf mirrors the host's default extension table. Extensions the host
// does not know (TypeScript and JSX among them) are left unset.
func (r *Resolver) formatOf(ctx context.Context, p, u string) (format.Format, error) {
	switch filepath.Ext(p) {
	case ".mjs":
		return format.Module, nil
	case ".cjs":
		return format.CommonJS, nil
	case ".json":
		return format.JSON, nil
	case ".js":
		return r.classifier.Classify(ctx, u)
	default:
		return format.Unset, nil
	}
}

// relativeTo resolves a relative or absolute specifier as a URL reference
// against the parent module (or the base directory).
func (r *Resolver) relativeTo(specifier string, rc resolver.Context) (string, error) {
	base := rc.ParentURL
	if !fileurl.IsFileURL(base) {
		base = fileurl.FromPath(r.baseDir + string(filepath.Separator))
	}
	bu, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse parent URL %q: %w", base, err)
	}
	ref, err := url.Parse(specifier)
	if err != nil {
		return "", r.fail(resolver.CodeInvalidModuleSpecifier, specifier, rc, "")
	}
	return fileurl.ToPath(bu.ResolveReference(ref).String())
}

// startDir is where upward lookups for the importing module begin.
func (r *Resolver) startDir(rc resolver.Context) string {
	if fileurl.IsFileURL(rc.ParentURL) {
		if p, err := fileurl.ToPath(rc.ParentURL); err == nil {
			return filepath.Dir(p)
		}
	}
	return r.baseDir
}

func (r *Resolver) conditions(rc resolver.Context) []string {
	if len(rc.Conditions) > 0 {
		return rc.Conditions
	}
	return defaultConditions
}

// resolvePackage finds a bare specifier in the nearest node_modules that
// contains the package.
func (r *Resolver) resolvePackage(ctx context.Context, specifier string, rc resolver.Context) (string, error) {
	name, subpath, ok := splitPackageSpecifier(specifier)
	if !ok {
		return "", r.fail(resolver.CodeInvalidModuleSpecifier, specifier, rc,
			fmt.Sprintf("Invalid module %q is not a valid package name", specifier))
	}

	for dir := r.startDir(rc); ; {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		if filepath.Base(dir) != nodeModules {
			pkgDir := filepath.Join(dir, nodeModules, filepath.FromSlash(name))
			if fi, err := r.fs.Stat(pkgDir); err == nil && fi.IsDir() {
				return r.resolveInPackage(specifier, pkgDir, subpath, rc)
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", resolver.NewError(resolver.CodeModuleNotFound, specifier, rc.ParentURL)
		}
		dir = parent
	}
}

func (r *Resolver) resolveInPackage(specifier, pkgDir, subpath string, rc resolver.Context) (string, error) {
	desc, err := r.manifests.Lookup(filepath.Join(pkgDir, pkgjson.FileName))
	if err != nil {
		return "", err
	}

	if desc != nil && desc.HasExports() {
		target, ok, err := resolveExports(desc.Exports, "."+subpath, r.conditions(rc))
		if errors.Is(err, errInvalidTarget) {
			return "", r.fail(resolver.CodeInvalidPackageTarget, specifier, rc, err.Error())
		}
		if err != nil {
			return "", fmt.Errorf("exports of %s: %w", desc.Path, err)
		}
		if !ok {
			return "", r.fail(resolver.CodePackagePathNotExported, specifier, rc,
				fmt.Sprintf("Package subpath '.%s' is not defined by \"exports\" in %s", subpath, desc.Path))
		}
		return filepath.Join(pkgDir, filepath.FromSlash(target)), nil
	}

	if subpath != "" {
		return filepath.Join(pkgDir, filepath.FromSlash(subpath)), nil
	}
	return r.legacyMain(specifier, pkgDir, desc, rc)
}

// legacyMain resolves a package entry from "main" the way the host does
// for packages without exports.
func (r *Resolver) legacyMain(specifier, pkgDir string, desc *pkgjson.Descriptor, rc resolver.Context) (string, error) {
	var tries []string
	if desc != nil {
		if main, ok := desc.MainEntry(); ok {
			for _, suffix := range []string{"", ".js", ".json", ".node", "/index.js", "/index.json", "/index.node"} {
				tries = append(tries, main+suffix)
			}
		}
	}
	tries = append(tries, "index.js", "index.json", "index.node")

	for _, t := range tries {
		p := filepath.Join(pkgDir, filepath.FromSlash(t))
		if fi, err := r.fs.Stat(p); err == nil && !fi.IsDir() {
			return p, nil
		}
	}
	return "", resolver.NewError(resolver.CodeModuleNotFound, specifier, rc.ParentURL)
}

// resolveImport maps a "#" specifier through the imports field of the
// package enclosing the importer.
func (r *Resolver) resolveImport(ctx context.Context, specifier string, rc resolver.Context) (string, error) {
	if specifier == "#" || strings.HasPrefix(specifier, "#/") {
		return "", r.fail(resolver.CodeInvalidModuleSpecifier, specifier, rc,
			fmt.Sprintf("Invalid module %q is not a valid internal imports specifier name", specifier))
	}

	desc, err := r.classifier.FindPackage(ctx, fileurl.FromPath(filepath.Join(r.startDir(rc), "_")))
	if err != nil {
		return "", err
	}
	notDefined := r.fail(resolver.CodePackageImportNotDefined, specifier, rc,
		fmt.Sprintf("Package import specifier %q is not defined", specifier))
	if desc == nil {
		return "", notDefined
	}

	target, ok, err := resolveImports(desc.Imports, specifier, r.conditions(rc))
	if errors.Is(err, errInvalidTarget) {
		return "", r.fail(resolver.CodeInvalidPackageTarget, specifier, rc, err.Error())
	}
	if err != nil {
		return "", fmt.Errorf("imports of %s: %w", desc.Path, err)
	}
	if !ok {
		return "", notDefined
	}

	if strings.HasPrefix(target, "./") {
		return filepath.Join(filepath.Dir(desc.Path), filepath.FromSlash(target)), nil
	}
	pkgRC := rc
	pkgRC.ParentURL = fileurl.FromPath(desc.Path)
	return r.resolvePackage(ctx, target, pkgRC)
}

func (r *Resolver) fail(code, specifier string, rc resolver.Context, msg string) error {
	e := resolver.NewError(code, specifier, rc.ParentURL)
	e.Message = msg
	return e
}

func isRelative(specifier string) bool {
	return specifier == "." || specifier == ".." ||
		strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../")
}

// hasScheme reports whether specifier parses as an absolute URL.
func hasScheme(specifier string) bool {
	u, err := url.Parse(specifier)
	return err == nil && u.Scheme != "" && len(u.Scheme) > 1
}

// splitPackageSpecifier splits "name/sub/path" or "@scope/name/sub" into the
// package name and the "/sub/path" remainder.
func splitPackageSpecifier(s string) (name, subpath string, ok bool) {
	if s == "" {
		return "", "", false
	}
	slash := strings.IndexByte(s, '/')
	switch {
	case s[0] == '@':
		if slash < 0 {
			return "", "", false
		}
		if next := strings.IndexByte(s[slash+1:], '/'); next >= 0 {
			name = s[:slash+1+next]
		} else {
			name = s
		}
	case slash < 0:
		name = s
	default:
		name = s[:slash]
	}

	if strings.HasPrefix(name, ".") || strings.ContainsAny(name, `\%`) {
		return "", "", false
	}
	return name, s[len(name):], true
}
