// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/tsload/tsload/internal/issue"
	"github.com/tsload/tsload/internal/pkgjson"
	"github.com/tsload/tsload/internal/resolver"
	"github.com/tsload/tsload/internal/runner"
	"github.com/tsload/tsload/internal/transform"
	"github.com/tsload/tsload/internal/tsconfig"
)

func TestNewServiceError_PanicsOnNilErr(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on nil Err, got none")
		}
	}()
	newServiceError(nil, 0)
}

func TestServiceError_ErrorAndUnwrap(t *testing.T) {
	t.Parallel()

	underlying := errors.New("underlying error")
	svcErr := newServiceError(underlying, issue.NodeNotFoundId)

	if svcErr.Error() != "underlying error" {
		t.Errorf("Error() = %q", svcErr.Error())
	}
	if !errors.Is(svcErr, underlying) {
		t.Error("errors.Is should find the underlying error")
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want issue.Id
	}{
		{"package.json", &pkgjson.ParseError{Path: "/p/package.json", Err: errors.New("bad")}, issue.PackageConfigInvalidId},
		{"module not found", resolver.NewError(resolver.CodeModuleNotFound, "./x", ""), issue.ModuleNotFoundId},
		{"wrapped module not found", fmt.Errorf("run: %w", resolver.NewError(resolver.CodeModuleNotFound, "./x", "")), issue.ModuleNotFoundId},
		{"other resolution error", resolver.NewError(resolver.CodeUnsupportedDirImport, "./x", ""), 0},
		{"node", fmt.Errorf("%w: node", runner.ErrNodeNotFound), issue.NodeNotFoundId},
		{"hook server", fmt.Errorf("%w: listen", runner.ErrHookServer), issue.HookServerFailedId},
		{"tsconfig", &tsconfig.LoadError{Path: "/p/tsconfig.json", Err: errors.New("bad")}, issue.TsconfigInvalidId},
		{"transform", &transform.Error{URL: "file:///p/a.ts"}, issue.TransformFailedId},
		{"unknown", errors.New("boom"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := classify(tt.err)
			var svcErr *ServiceError
			if tt.want == 0 {
				if errors.As(got, &svcErr) {
					t.Fatalf("classify(%v) = %v, want it unchanged", tt.err, got)
				}
				return
			}
			if !errors.As(got, &svcErr) {
				t.Fatalf("classify(%v) = %v, want a ServiceError", tt.err, got)
			}
			if svcErr.IssueID != tt.want {
				t.Errorf("IssueID = %d, want %d", svcErr.IssueID, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Error("classified error must wrap the original")
			}
		})
	}
}

func TestClassifyKeepsServiceErrors(t *testing.T) {
	t.Parallel()

	orig := newServiceError(errors.New("x"), issue.ConfigLoadFailedId)
	if got := classify(orig); got != error(orig) {
		t.Errorf("classify re-wrapped a ServiceError: %v", got)
	}
	if classify(nil) != nil {
		t.Error("classify(nil) != nil")
	}
}

func TestRenderServiceError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	renderServiceError(&buf, newServiceError(errors.New("x"), issue.NodeNotFoundId))
	if buf.Len() == 0 {
		t.Error("expected rendered issue help")
	}

	buf.Reset()
	renderServiceError(&buf, newServiceError(errors.New("x"), 0))
	renderServiceError(&buf, nil)
	if buf.Len() != 0 {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestExitError(t *testing.T) {
	t.Parallel()

	if got := (&ExitError{Code: 3}).Error(); got != "exit status 3" {
		t.Errorf("Error() = %q", got)
	}
	inner := errors.New("inner")
	e := &ExitError{Code: 1, Err: inner}
	if e.Error() != "inner" || !errors.Is(e, inner) {
		t.Errorf("ExitError does not wrap %v", inner)
	}
}
