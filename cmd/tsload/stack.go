// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/tsload/tsload/internal/hooks"
	"github.com/tsload/tsload/internal/issue"
	"github.com/tsload/tsload/internal/noderesolve"
	"github.com/tsload/tsload/internal/pkgjson"
	"github.com/tsload/tsload/internal/resolver"
	"github.com/tsload/tsload/internal/transform"
	"github.com/tsload/tsload/internal/tsconfig"
)

// stack is the resolver, classifier and transpiler one command works
// with. The classifier and its package cache live as long as the stack.
type stack struct {
	classifier  *pkgjson.Classifier
	host        *noderesolve.Resolver
	resolver    *resolver.Resolver
	transpiler  transform.Transpiler
	sourceMaps  *transform.SourceMaps
	tsconfig    *tsconfig.Config
	tsconfigRaw string
}

func newStack(e *env, fsys afero.Fs) (*stack, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	tc, err := loadTsconfig(fsys, e.cfg.Tsconfig, e.workDir)
	if err != nil {
		return nil, err
	}
	raw, err := tc.JSON()
	if err != nil {
		return nil, err
	}
	if tc != nil {
		e.slog.Debug("using tsconfig", "path", tc.Path)
	}

	classifier := pkgjson.NewClassifier(pkgjson.NewCache(fsys))
	return &stack{
		classifier:  classifier,
		host:        noderesolve.New(classifier, noderesolve.WithBaseDir(e.workDir)),
		resolver:    resolver.New(classifier, resolver.WithLogger(e.slog)),
		transpiler:  transform.NewEsbuild(),
		sourceMaps:  transform.NewSourceMaps(),
		tsconfig:    tc,
		tsconfigRaw: raw,
	}, nil
}

func loadTsconfig(fsys afero.Fs, path, workDir string) (*tsconfig.Config, error) {
	loader := tsconfig.NewLoader(fsys)
	var (
		tc  *tsconfig.Config
		err error
	)
	if path == "" {
		tc, err = loader.Find(workDir)
	} else {
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}
		tc, err = loader.Load(path)
	}
	if err == nil {
		return tc, nil
	}

	resource := path
	var loadErr *tsconfig.LoadError
	if errors.As(err, &loadErr) {
		resource = loadErr.Path
	}
	ec := issue.NewErrorContext().
		WithOperation("load tsconfig").
		WithResource(resource).
		WithSuggestion("Check that the file is JSON; comments and trailing commas are allowed")
	if errors.Is(err, tsconfig.ErrExtendsCycle) {
		ec.WithSuggestion(`Remove the "extends" entry that points back into the chain`)
	} else {
		ec.WithSuggestion(`Check that every relative "extends" path exists`)
	}
	return nil, ec.Wrap(err).BuildError()
}

// hookOptions returns the options the loader hooks are built from.
func (s *stack) hookOptions(e *env, notifier hooks.Notifier) hooks.Options {
	return hooks.Options{
		Resolver:    s.resolver,
		Classifier:  s.classifier,
		Transpiler:  s.transpiler,
		SourceMaps:  s.sourceMaps,
		Notifier:    notifier,
		TsconfigRaw: s.tsconfigRaw,
		Logger:      e.slog,
	}
}
