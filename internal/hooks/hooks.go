// SPDX-License-Identifier: MPL-2.0

package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/tsload/tsload/internal/resolver"
	"github.com/tsload/tsload/internal/transform"
	"github.com/tsload/tsload/pkg/format"
)

// nodeModulesSegment marks installed dependencies, which are loaded as-is.
const nodeModulesSegment = "/node_modules/"

type (
	// LoadContext is the host's context for a load call.
	LoadContext struct {
		Format           format.Format     `json:"format,omitempty"`
		Conditions       []string          `json:"conditions,omitempty"`
		ImportAssertions map[string]string `json:"importAssertions,omitempty"`
	}

	// Loaded is the result of a load call. An empty Source means the host
	// supplies the source itself (builtins, for instance).
	Loaded struct {
		Format format.Format `json:"format,omitempty"`
		Source string        `json:"source,omitempty"`
	}

	// DefaultLoader is the host's default load hook.
	DefaultLoader interface {
		Load(ctx context.Context, url string, lc LoadContext) (Loaded, error)
	}

	// DefaultLoaderFunc adapts a function to a DefaultLoader.
	DefaultLoaderFunc func(ctx context.Context, url string, lc LoadContext) (Loaded, error)

	// DefaultFormatTransformer is the host's default getFormat and
	// transformSource pair.
	DefaultFormatTransformer interface {
		GetFormat(ctx context.Context, url string) (format.Format, error)
		TransformSource(ctx context.Context, source, url string, f format.Format) (string, error)
	}

	// LoaderHooks is the capability every generation has.
	LoaderHooks interface {
		Generation() Generation
		Resolve(ctx context.Context, specifier string, rc resolver.Context, next resolver.Delegate) (resolver.Descriptor, error)
	}

	// Loader is implemented by hooks of the load generation.
	Loader interface {
		Load(ctx context.Context, url string, lc LoadContext, next DefaultLoader) (Loaded, error)
	}

	// FormatTransformer is implemented by hooks of the transform-source generation.
	FormatTransformer interface {
		GetFormat(ctx context.Context, url string, next DefaultFormatTransformer) (format.Format, error)
		TransformSource(ctx context.Context, source, url string, f format.Format, next DefaultFormatTransformer) (string, error)
	}

	// Options are the collaborators shared by both generations.
	Options struct {
		Resolver   *resolver.Resolver
		Classifier resolver.Classifier
		Transpiler transform.Transpiler
		// SourceMaps receives the map of every transformed module. Optional.
		SourceMaps *transform.SourceMaps
		// Notifier receives dependency notifications. Optional.
		Notifier Notifier
		// TsconfigRaw is passed to every transform.
		TsconfigRaw string
		// Target is the host version transformed code must run on.
		Target string
		// InlineSourceMaps appends each source map to the emitted code.
		InlineSourceMaps bool
		Logger           *slog.Logger
	}

	// base carries what both generations share.
	base struct {
		opts Options
	}

	// Modern are the resolve/load hooks.
	Modern struct {
		base
	}

	// Legacy are the resolve/getFormat/transformSource hooks.
	Legacy struct {
		base
	}
)

var (
	_ LoaderHooks       = (*Modern)(nil)
	_ Loader            = (*Modern)(nil)
	_ LoaderHooks       = (*Legacy)(nil)
	_ FormatTransformer = (*Legacy)(nil)
)

// Load calls f.
func (f DefaultLoaderFunc) Load(ctx context.Context, url string, lc LoadContext) (Loaded, error) {
	return f(ctx, url, lc)
}

// Select builds the hooks of gen. GenerationAuto is not accepted: resolve it
// with a VersionPolicy first.
func Select(gen Generation, opts Options) (LoaderHooks, error) {
	b, err := newBase(opts)
	if err != nil {
		return nil, err
	}
	switch gen {
	case GenerationLoad:
		return &Modern{base: b}, nil
	case GenerationTransformSource:
		return &Legacy{base: b}, nil
	default:
		return nil, &InvalidGenerationError{Value: gen}
	}
}

// NewModern creates the resolve/load hooks.
func NewModern(opts Options) (*Modern, error) {
	b, err := newBase(opts)
	if err != nil {
		return nil, err
	}
	return &Modern{base: b}, nil
}

// NewLegacy creates the resolve/getFormat/transformSource hooks.
func NewLegacy(opts Options) (*Legacy, error) {
	b, err := newBase(opts)
	if err != nil {
		return nil, err
	}
	return &Legacy{base: b}, nil
}

func newBase(opts Options) (base, error) {
	if opts.Resolver == nil || opts.Classifier == nil || opts.Transpiler == nil {
		return base{}, fmt.Errorf("hooks: resolver, classifier and transpiler are required")
	}
	if opts.Notifier == nil {
		opts.Notifier = Discard
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return base{opts: opts}, nil
}

// Resolve is the resolve hook. Both generations share it.
func (b *base) Resolve(ctx context.Context, specifier string, rc resolver.Context, next resolver.Delegate) (resolver.Descriptor, error) {
	return b.opts.Resolver.Resolve(ctx, specifier, rc, next)
}

func (b *base) notify(url string) {
	b.opts.Notifier.Notify(NewDependency(url))
}

// transpile converts source to an ES module and registers its source map.
func (b *base) transpile(ctx context.Context, source, url string) (string, error) {
	res, err := b.opts.Transpiler.Transform(ctx, source, url, transform.Options{
		Format:      format.Module,
		TsconfigRaw: b.opts.TsconfigRaw,
		Target:      b.opts.Target,
	})
	if err != nil {
		return "", err
	}
	if b.opts.SourceMaps != nil {
		b.opts.SourceMaps.Register(url, res.Map)
	}
	b.opts.Logger.Debug("transformed", "url", url, "bytes", len(res.Code))
	if b.opts.InlineSourceMaps {
		return transform.Inline(res.Code, res.Map), nil
	}
	return res.Code, nil
}

// Generation implements LoaderHooks.
func (*Modern) Generation() Generation { return GenerationLoad }

// Load is the load hook. JSON and TypeScript/JSX sources outside
// node_modules come back as transformed ES modules; anything else is what
// next returned.
func (m *Modern) Load(ctx context.Context, url string, lc LoadContext, next DefaultLoader) (Loaded, error) {
	m.notify(url)

	if isJSON(url) {
		assertions := make(map[string]string, len(lc.ImportAssertions)+1)
		maps.Copy(assertions, lc.ImportAssertions)
		assertions["type"] = "json"
		lc.ImportAssertions = assertions
	}

	loaded, err := next.Load(ctx, url, lc)
	if err != nil {
		return Loaded{}, err
	}
	if loaded.Source == "" || strings.Contains(url, nodeModulesSegment) {
		return loaded, nil
	}
	if loaded.Format != format.JSON && !format.IsTypeScript(url) {
		return loaded, nil
	}

	code, err := m.transpile(ctx, loaded.Source, url)
	if err != nil {
		return Loaded{}, err
	}
	return Loaded{Format: format.Module, Source: code}, nil
}

// Generation implements LoaderHooks.
func (*Legacy) Generation() Generation { return GenerationTransformSource }

// GetFormat is the getFormat hook. JSON is reported as a module (it is
// transformed into one); TypeScript/JSX gets its format from the extension
// or the package boundary.
func (l *Legacy) GetFormat(ctx context.Context, url string, next DefaultFormatTransformer) (format.Format, error) {
	if isJSON(url) {
		return format.Module, nil
	}
	if format.IsTypeScript(url) {
		if f := format.FromExtension(url); f != format.Unset {
			return f, nil
		}
		return l.opts.Classifier.Classify(ctx, url)
	}
	return next.GetFormat(ctx, url)
}

// TransformSource is the transformSource hook.
func (l *Legacy) TransformSource(ctx context.Context, source, url string, f format.Format, next DefaultFormatTransformer) (string, error) {
	l.notify(url)

	if isJSON(url) || format.IsTypeScript(url) {
		return l.transpile(ctx, source, url)
	}
	return next.TransformSource(ctx, source, url, f)
}

func isJSON(url string) bool {
	return strings.HasSuffix(url, ".json")
}
