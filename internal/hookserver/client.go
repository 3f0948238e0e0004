// SPDX-License-Identifier: MPL-2.0

package hookserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	json "github.com/go-json-experiment/json"

	"github.com/tsload/tsload/internal/hooks"
	"github.com/tsload/tsload/internal/resolver"
	"github.com/tsload/tsload/pkg/format"
)

// ErrNoSourceMap is returned when the server has no map for a URL.
var ErrNoSourceMap = errors.New("no source map")

// Client calls the hook server the way the loader shim does, performing
// delegate calls through the host defaults it is given.
type Client struct {
	addr   string
	token  string
	client *http.Client
}

// NewClientFromEnv creates a Client from EnvHookAddr and EnvHookToken.
// Returns nil if either is unset.
func NewClientFromEnv() *Client {
	addr := os.Getenv(EnvHookAddr)
	token := os.Getenv(EnvHookToken)
	if addr == "" || token == "" {
		return nil
	}
	return NewClient(addr, token)
}

// NewClient creates a Client for the server at addr ("http://host:port").
func NewClient(addr, token string) *Client {
	return &Client{
		addr:   addr,
		token:  token,
		client: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Health reports whether the server answers its health check.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.addr+PathHealth, http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check: status %d", resp.StatusCode)
	}
	return nil
}

// Resolve runs the resolve hook. next answers delegate resolve calls.
func (c *Client) Resolve(ctx context.Context, specifier string, rc resolver.Context, next resolver.Delegate) (resolver.Descriptor, error) {
	var d resolver.Descriptor
	err := c.session(ctx, PathResolve, ResolveRequest{Specifier: specifier, Context: rc}, &d, defaults{resolve: next})
	return d, err
}

// Load runs the load hook. next answers delegate load calls.
func (c *Client) Load(ctx context.Context, u string, lc hooks.LoadContext, next hooks.DefaultLoader) (hooks.Loaded, error) {
	var l hooks.Loaded
	err := c.session(ctx, PathLoad, LoadRequest{URL: u, Context: lc}, &l, defaults{load: next})
	return l, err
}

// GetFormat runs the getFormat hook.
func (c *Client) GetFormat(ctx context.Context, u string, next hooks.DefaultFormatTransformer) (format.Format, error) {
	var r GetFormatResult
	err := c.session(ctx, PathGetFormat, GetFormatRequest{URL: u}, &r, defaults{legacy: next})
	return r.Format, err
}

// TransformSource runs the transformSource hook.
func (c *Client) TransformSource(ctx context.Context, source, u string, f format.Format, next hooks.DefaultFormatTransformer) (string, error) {
	var r TransformSourceResult
	err := c.session(ctx, PathTransformSource, TransformSourceRequest{Source: source, URL: u, Format: f}, &r, defaults{legacy: next})
	return r.Source, err
}

// Notify posts a dependency notification.
func (c *Client) Notify(ctx context.Context, dep hooks.Dependency) error {
	resp, err := c.post(ctx, PathDependency, dep)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return statusError(resp)
	}
	return nil
}

// SourceMap fetches the source map registered for u.
func (c *Client) SourceMap(ctx context.Context, u string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.addr+PathSourceMap+"?url="+url.QueryEscape(u), http.NoBody)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%s: %w", u, ErrNoSourceMap)
	}
	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp)
	}
	b, err := io.ReadAll(resp.Body)
	return string(b), err
}

// defaults are the host defaults a session may call back into.
type defaults struct {
	resolve resolver.Delegate
	load    hooks.DefaultLoader
	legacy  hooks.DefaultFormatTransformer
}

// session drives one hook call to completion: post the request, then keep
// answering delegate calls until a final reply arrives.
func (c *Client) session(ctx context.Context, path string, body, result any, d defaults) error {
	rep, err := c.exchange(ctx, path, body)
	for err == nil && rep.Call != nil {
		cont := Continuation{Session: rep.Session}
		value, cerr := d.perform(ctx, rep.Call)
		if cerr != nil {
			cont.Error = toWireError(cerr)
		} else if cont.Result, cerr = json.Marshal(value); cerr != nil {
			return fmt.Errorf("encode %s result: %w", rep.Call.Kind, cerr)
		}
		rep, err = c.exchange(ctx, PathContinue, cont)
	}
	if err != nil {
		return err
	}
	if rep.Error != nil {
		return fromWireError(rep.Error)
	}
	if err := json.Unmarshal(rep.Result, result); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

func (d defaults) perform(ctx context.Context, call *Call) (any, error) {
	switch call.Kind {
	case CallResolve:
		var req ResolveRequest
		if err := json.Unmarshal(call.Args, &req); err != nil {
			return nil, err
		}
		if d.resolve == nil {
			return nil, fmt.Errorf("no default for %s", call.Kind)
		}
		return d.resolve.Resolve(ctx, req.Specifier, req.Context)
	case CallLoad:
		var req LoadRequest
		if err := json.Unmarshal(call.Args, &req); err != nil {
			return nil, err
		}
		if d.load == nil {
			return nil, fmt.Errorf("no default for %s", call.Kind)
		}
		return d.load.Load(ctx, req.URL, req.Context)
	case CallGetFormat:
		var req GetFormatRequest
		if err := json.Unmarshal(call.Args, &req); err != nil {
			return nil, err
		}
		if d.legacy == nil {
			return nil, fmt.Errorf("no default for %s", call.Kind)
		}
		f, err := d.legacy.GetFormat(ctx, req.URL)
		return GetFormatResult{Format: f}, err
	case CallTransformSource:
		var req TransformSourceRequest
		if err := json.Unmarshal(call.Args, &req); err != nil {
			return nil, err
		}
		if d.legacy == nil {
			return nil, fmt.Errorf("no default for %s", call.Kind)
		}
		src, err := d.legacy.TransformSource(ctx, req.Source, req.URL, req.Format)
		return TransformSourceResult{Source: src}, err
	default:
		return nil, fmt.Errorf("unknown delegate call %q", call.Kind)
	}
}

func (c *Client) exchange(ctx context.Context, path string, body any) (Reply, error) {
	resp, err := c.post(ctx, path, body)
	if err != nil {
		return Reply{}, err
	}
	defer resp.Body.Close()

	var rep Reply
	if resp.Header.Get("Content-Type") != "application/json" {
		return Reply{}, statusError(resp)
	}
	if err := json.UnmarshalRead(resp.Body, &rep); err != nil {
		return Reply{}, fmt.Errorf("decode reply: %w", err)
	}
	if resp.StatusCode != http.StatusOK && rep.Error == nil {
		return Reply{}, fmt.Errorf("server error (%d)", resp.StatusCode)
	}
	return rep, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.addr+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("server error (%d): %s", resp.StatusCode, bytes.TrimSpace(b))
}
