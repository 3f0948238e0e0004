// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tsload/tsload/pkg/format"
)

// maxRewriteDepth bounds nested rewrites (directory index of a directory
// index of ...) so a misbehaving Delegate cannot recurse forever.
const maxRewriteDepth = 16

type (
	// Context is the importing module's side of a resolution request.
	Context struct {
		// ParentURL is the resolved URL of the importing module. Empty for
		// the entry point.
		ParentURL string `json:"parentURL,omitempty"`
		// Conditions are the export conditions the host resolves with.
		Conditions []string `json:"conditions,omitempty"`
	}

	// Descriptor is the outcome of a resolution: where the module lives and
	// how the host should link it.
	Descriptor struct {
		URL    string        `json:"url"`
		Format format.Format `json:"format,omitempty"`
	}

	// Delegate is the host's default resolution.
	Delegate interface {
		Resolve(ctx context.Context, specifier string, rc Context) (Descriptor, error)
	}

	// DelegateFunc adapts a function to a Delegate.
	DelegateFunc func(ctx context.Context, specifier string, rc Context) (Descriptor, error)

	// Classifier decides the module type of an ambiguous source file.
	Classifier interface {
		Classify(ctx context.Context, fileURL string) (format.Format, error)
	}

	// Resolver resolves specifiers on top of a Delegate. It holds no
	// per-request state and is safe for concurrent use.
	Resolver struct {
		classifier Classifier
		logger     *slog.Logger
	}

	// Option configures a Resolver.
	Option func(*Resolver)
)

// Resolve calls f.
func (f DelegateFunc) Resolve(ctx context.Context, specifier string, rc Context) (Descriptor, error) {
	return f(ctx, specifier, rc)
}

// WithLogger sets the logger fallback attempts are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// New creates a Resolver that consults classifier for the format of
// TypeScript and JSX files with ambiguous extensions.
func New(classifier Classifier, opts ...Option) *Resolver {
	r := &Resolver{
		classifier: classifier,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve maps specifier, imported from rc.ParentURL, onto a Descriptor.
// Anything the Resolver does not special-case is handed to next unmodified.
func (r *Resolver) Resolve(ctx context.Context, specifier string, rc Context, next Delegate) (Descriptor, error) {
	return r.resolve(ctx, specifier, rc, next, 0)
}

func (r *Resolver) resolve(ctx context.Context, specifier string, rc Context, next Delegate, depth int) (Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return Descriptor{}, err
	}

	specifier = stripBuiltinProtocol(specifier)
	rewrite := depth < maxRewriteDepth

	if rewrite {
		if c := directoryIndex(specifier, rc); c != nil {
			return r.resolve(ctx, c[0], rc, next, depth+1)
		}

		// Best effort: any failure of the counterpart falls through to the
		// literal specifier below.
		d, ok, err := r.tryCandidates(ctx, typeScriptCounterpart(specifier, rc), rc, next, depth, swallowAll)
		if err != nil {
			return Descriptor{}, err
		}
		if ok {
			return d, nil
		}
	}

	if format.IsTypeScript(specifier) {
		return r.resolveTypeScript(ctx, specifier, rc, next)
	}

	if strings.HasSuffix(specifier, ".json") {
		d, err := next.Resolve(ctx, specifier, rc)
		if err != nil {
			return Descriptor{}, err
		}
		d.Format = format.JSON
		return d, nil
	}

	d, err := next.Resolve(ctx, specifier, rc)
	if err == nil || !rewrite {
		return d, err
	}

	code := CodeOf(err)
	for _, fb := range fallbacks {
		if fb.code != code {
			continue
		}
		d, ok, ferr := r.tryCandidates(ctx, fb.next(specifier, rc), rc, next, depth, isResolutionError)
		if ferr != nil {
			return Descriptor{}, ferr
		}
		if ok {
			r.logger.Debug("resolved via fallback", "fallback", fb.name, "specifier", specifier, "url", d.URL)
			return d, nil
		}
		break
	}
	return Descriptor{}, err
}

// resolveTypeScript delegates a TypeScript/JSX specifier and always annotates
// the result with a format.
func (r *Resolver) resolveTypeScript(ctx context.Context, specifier string, rc Context, next Delegate) (Descriptor, error) {
	d, err := next.Resolve(ctx, specifier, rc)
	if err != nil {
		return Descriptor{}, err
	}

	f := format.FromExtension(d.URL)
	if f == format.Unset {
		f, err = r.classifier.Classify(ctx, d.URL)
		if err != nil {
			return Descriptor{}, err
		}
	}
	d.Format = f
	return d, nil
}

// tryCandidates runs the whole algorithm on each candidate in order and
// returns the first success. A candidate's failure is dropped when swallow
// accepts it; otherwise it aborts the search. Cancellation always aborts.
func (r *Resolver) tryCandidates(
	ctx context.Context,
	cands []string,
	rc Context,
	next Delegate,
	depth int,
	swallow func(error) bool,
) (Descriptor, bool, error) {
	for _, c := range cands {
		d, err := r.resolve(ctx, c, rc, next, depth+1)
		if err == nil {
			return d, true, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Descriptor{}, false, ctxErr
		}
		if !swallow(err) {
			return Descriptor{}, false, err
		}
	}
	return Descriptor{}, false, nil
}

func swallowAll(error) bool { return true }
