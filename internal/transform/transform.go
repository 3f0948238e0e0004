// SPDX-License-Identifier: MPL-2.0

package transform

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/tsload/tsload/pkg/format"
)

type (
	// Options control a single transform.
	Options struct {
		// Format is the module system of the emitted code. Unset keeps the
		// source's own module syntax.
		Format format.Format
		// TsconfigRaw is the JSON of the applicable tsconfig, or empty.
		TsconfigRaw string
		// Target is the host version the output must run on ("16.20.0").
		// Empty targets the newest syntax.
		Target string
	}

	// Result is transformed code and its external source map.
	Result struct {
		Code string
		Map  string
	}

	// Transpiler converts source code to JavaScript.
	Transpiler interface {
		Transform(ctx context.Context, code, url string, opts Options) (Result, error)
	}

	// Esbuild is a Transpiler backed by esbuild's transform API.
	Esbuild struct{}

	// Message is one diagnostic reported by the transpiler.
	Message struct {
		Text   string
		File   string
		Line   int
		Column int
	}

	// Error is returned when a source cannot be transformed.
	Error struct {
		URL      string
		Messages []Message
	}
)

var _ Transpiler = (*Esbuild)(nil)

// NewEsbuild creates an esbuild-backed Transpiler.
func NewEsbuild() *Esbuild {
	return &Esbuild{}
}

// Transform implements Transpiler.
func (*Esbuild) Transform(ctx context.Context, code, u string, opts Options) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	eopts := api.TransformOptions{
		Loader:         loaderFor(u),
		Format:         esbuildFormat(opts.Format),
		Sourcefile:     u,
		Sourcemap:      api.SourceMapExternal,
		SourcesContent: api.SourcesContentInclude,
		TsconfigRaw:    opts.TsconfigRaw,
		Platform:       api.PlatformNode,
		Target:         api.ESNext,
		KeepNames:      true,
		LogLevel:       api.LogLevelSilent,
	}
	if opts.Target != "" {
		eopts.Engines = []api.Engine{{Name: api.EngineNode, Version: opts.Target}}
	}

	res := api.Transform(code, eopts)
	if len(res.Errors) > 0 {
		return Result{}, newError(u, res.Errors)
	}
	return Result{Code: string(res.Code), Map: string(res.Map)}, nil
}

// loaderFor picks the esbuild loader from the extension of a URL or path.
func loaderFor(u string) api.Loader {
	p := u
	if parsed, err := url.Parse(u); err == nil && parsed.Path != "" {
		p = parsed.Path
	}
	switch path.Ext(p) {
	case ".ts", ".mts", ".cts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	case ".jsx":
		return api.LoaderJSX
	case ".json":
		return api.LoaderJSON
	case ".js", ".mjs", ".cjs":
		return api.LoaderJS
	default:
		return api.LoaderDefault
	}
}

func esbuildFormat(f format.Format) api.Format {
	switch f {
	case format.Module:
		return api.FormatESModule
	case format.CommonJS:
		return api.FormatCommonJS
	default:
		return api.FormatDefault
	}
}

func newError(u string, msgs []api.Message) *Error {
	e := &Error{URL: u}
	for _, m := range msgs {
		msg := Message{Text: m.Text}
		if m.Location != nil {
			msg.File = m.Location.File
			msg.Line = m.Location.Line
			msg.Column = m.Location.Column
		}
		e.Messages = append(e.Messages, msg)
	}
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "transform %s failed", e.URL)
	for _, m := range e.Messages {
		sb.WriteString("\n  ")
		if m.File != "" {
			fmt.Fprintf(&sb, "%s:%d:%d: ", m.File, m.Line, m.Column)
		}
		sb.WriteString(m.Text)
	}
	return sb.String()
}
