// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/tsload/tsload/internal/issue"
	"github.com/tsload/tsload/internal/pkgjson"
	"github.com/tsload/tsload/internal/resolver"
	"github.com/tsload/tsload/internal/runner"
	"github.com/tsload/tsload/internal/transform"
	"github.com/tsload/tsload/internal/tsconfig"
)

// ServiceError is an error that carries an issue catalog entry for the CLI
// layer to render before the error itself. Always create via
// newServiceError.
type ServiceError struct {
	// Err is the underlying error (must not be nil).
	Err error
	// IssueID is the optional issue catalog ID for rendering help text.
	IssueID issue.Id
}

func newServiceError(err error, issueID issue.Id) *ServiceError {
	if err == nil {
		panic("ServiceError: Err must not be nil")
	}
	return &ServiceError{Err: err, IssueID: issueID}
}

// Error implements the error interface.
func (e *ServiceError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.Err }

// classify wraps err in a ServiceError when a catalog entry explains it.
// Errors that already are ServiceErrors, and errors nothing explains, are
// returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return err
	}
	if id := issueFor(err); id != 0 {
		return newServiceError(err, id)
	}
	return err
}

func issueFor(err error) issue.Id {
	var (
		parseErr     *pkgjson.ParseError
		tsconfigErr  *tsconfig.LoadError
		transformErr *transform.Error
	)
	switch {
	case errors.As(err, &parseErr):
		return issue.PackageConfigInvalidId
	case errors.As(err, &tsconfigErr):
		return issue.TsconfigInvalidId
	case errors.As(err, &transformErr):
		return issue.TransformFailedId
	case errors.Is(err, runner.ErrNodeNotFound):
		return issue.NodeNotFoundId
	case errors.Is(err, runner.ErrHookServer):
		return issue.HookServerFailedId
	case resolver.CodeOf(err) == resolver.CodeModuleNotFound:
		return issue.ModuleNotFoundId
	}
	return 0
}

// renderServiceError prints the issue help of svcErr to stderr.
func renderServiceError(stderr io.Writer, svcErr *ServiceError) {
	if svcErr == nil || svcErr.IssueID == 0 {
		return
	}
	entry := issue.Get(svcErr.IssueID)
	if entry == nil {
		return
	}
	rendered, err := entry.Render("dark")
	if err != nil {
		slog.Warn("failed to render issue catalog entry", "issueID", svcErr.IssueID, "error", err)
		return
	}
	fmt.Fprint(stderr, rendered)
}
