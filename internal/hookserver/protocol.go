// SPDX-License-Identifier: MPL-2.0

package hookserver

import (
	"errors"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/tsload/tsload/internal/hooks"
	"github.com/tsload/tsload/internal/pkgjson"
	"github.com/tsload/tsload/internal/resolver"
	"github.com/tsload/tsload/pkg/format"
)

// Environment variables that tell the loader shim how to reach the server.
const (
	EnvHookAddr       = "TSLOAD_HOOK_ADDR"
	EnvHookToken      = "TSLOAD_HOOK_TOKEN"
	EnvHookGeneration = "TSLOAD_HOOK_GENERATION"
)

// Endpoint paths.
const (
	PathResolve         = "/hooks/resolve"
	PathLoad            = "/hooks/load"
	PathGetFormat       = "/hooks/get-format"
	PathTransformSource = "/hooks/transform-source"
	PathContinue        = "/continue"
	PathDependency      = "/dependency"
	PathSourceMap       = "/source-map"
	PathHealth          = "/health"
)

// CodeInvalidPackageConfig is the host's code for a malformed package.json.
const CodeInvalidPackageConfig = "ERR_INVALID_PACKAGE_CONFIG"

// Delegate call kinds, named after the host hook the shim must run.
const (
	CallResolve         CallKind = "resolve"
	CallLoad            CallKind = "load"
	CallGetFormat       CallKind = "getFormat"
	CallTransformSource CallKind = "transformSource"
)

type (
	// CallKind names the host default a delegate call asks for.
	CallKind string

	// ResolveRequest is the body of PathResolve and the args of CallResolve.
	ResolveRequest struct {
		Specifier string           `json:"specifier"`
		Context   resolver.Context `json:"context"`
	}

	// LoadRequest is the body of PathLoad and the args of CallLoad.
	LoadRequest struct {
		URL     string            `json:"url"`
		Context hooks.LoadContext `json:"context"`
	}

	// GetFormatRequest is the body of PathGetFormat and the args of CallGetFormat.
	GetFormatRequest struct {
		URL string `json:"url"`
	}

	// GetFormatResult is the result of a getFormat hook.
	GetFormatResult struct {
		Format format.Format `json:"format"`
	}

	// TransformSourceRequest is the body of PathTransformSource and the args
	// of CallTransformSource.
	TransformSourceRequest struct {
		Source string        `json:"source"`
		URL    string        `json:"url"`
		Format format.Format `json:"format,omitempty"`
	}

	// TransformSourceResult is the result of a transformSource hook.
	TransformSourceResult struct {
		Source string `json:"source"`
	}

	// Call asks the shim to run a host default.
	Call struct {
		Kind CallKind       `json:"kind"`
		Args jsontext.Value `json:"args"`
	}

	// WireError is an error as it crosses the bridge. Code is the host error
	// code, if any, and survives the round trip.
	WireError struct {
		Code    string `json:"code,omitempty"`
		Message string `json:"message"`
	}

	// Reply answers a hook request or a continuation: either the next
	// delegate call of the session, or its final Result or Error.
	Reply struct {
		Session string         `json:"session,omitempty"`
		Call    *Call          `json:"call,omitempty"`
		Result  jsontext.Value `json:"result,omitempty"`
		Error   *WireError     `json:"error,omitempty"`
	}

	// Continuation is the shim's outcome of a delegate call.
	Continuation struct {
		Session string         `json:"session"`
		Result  jsontext.Value `json:"result,omitempty"`
		Error   *WireError     `json:"error,omitempty"`
	}
)

// Error implements the error interface.
func (e *WireError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// toWireError keeps the host code of err so the shim can rethrow an error
// the host recognizes.
func toWireError(err error) *WireError {
	we := &WireError{Code: resolver.CodeOf(err), Message: err.Error()}
	var perr *pkgjson.ParseError
	if we.Code == "" && errors.As(err, &perr) {
		we.Code = CodeInvalidPackageConfig
	}
	return we
}

// fromWireError turns a host failure back into a Go error. Coded failures
// become *resolver.Error so resolver fallbacks can match them.
func fromWireError(we *WireError) error {
	if we.Code == "" {
		return errors.New(we.Message)
	}
	return &resolver.Error{Code: we.Code, Message: we.Message}
}
