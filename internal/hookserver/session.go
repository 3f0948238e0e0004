// SPDX-License-Identifier: MPL-2.0

package hookserver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	json "github.com/go-json-experiment/json"

	"github.com/tsload/tsload/internal/hooks"
	"github.com/tsload/tsload/internal/resolver"
	"github.com/tsload/tsload/pkg/format"
)

// ErrUnknownSession is returned for a continuation of a session that does
// not exist (finished, timed out or never started).
var ErrUnknownSession = errors.New("unknown session")

type (
	// session is one hook call in flight. The hook runs in its own goroutine
	// and talks to the shim through out (replies) and in (continuations).
	session struct {
		id     string
		ctx    context.Context
		cancel context.CancelFunc
		out    chan Reply
		in     chan Continuation
	}

	// sessions indexes live sessions by id.
	sessions struct {
		next atomic.Uint64
		m    sync.Map // string -> *session
	}

	// host performs host defaults by parking the session on a delegate
	// call. It implements every default the hooks accept.
	host struct {
		s *session
	}
)

var (
	_ resolver.Delegate              = host{}
	_ hooks.DefaultLoader            = host{}
	_ hooks.DefaultFormatTransformer = host{}
)

func (ss *sessions) open(parent context.Context) *session {
	ctx, cancel := context.WithCancel(parent)
	s := &session{
		id:     strconv.FormatUint(ss.next.Add(1), 10),
		ctx:    ctx,
		cancel: cancel,
		out:    make(chan Reply, 1),
		in:     make(chan Continuation),
	}
	ss.m.Store(s.id, s)
	return s
}

func (ss *sessions) get(id string) (*session, bool) {
	v, ok := ss.m.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*session), true
}

func (ss *sessions) close(s *session) {
	s.cancel()
	ss.m.Delete(s.id)
}

func (ss *sessions) len() int {
	n := 0
	ss.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// run executes fn and posts its outcome as the final reply.
func (s *session) run(fn func(ctx context.Context, h host) (any, error)) {
	result, err := fn(s.ctx, host{s: s})
	reply := Reply{}
	if err != nil {
		reply.Error = toWireError(err)
	} else if data, merr := json.Marshal(result); merr != nil {
		reply.Error = &WireError{Message: fmt.Sprintf("encode result: %v", merr)}
	} else {
		reply.Result = data
	}

	select {
	case s.out <- reply:
	case <-s.ctx.Done():
	}
}

// call parks the session on a delegate call and waits for the shim's
// continuation.
func (s *session) call(ctx context.Context, kind CallKind, args, result any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode %s call: %w", kind, err)
	}

	select {
	case s.out <- Reply{Session: s.id, Call: &Call{Kind: kind, Args: data}}:
	case <-ctx.Done():
		return ctx.Err()
	}

	var cont Continuation
	select {
	case cont = <-s.in:
	case <-ctx.Done():
		return ctx.Err()
	}

	if cont.Error != nil {
		return fromWireError(cont.Error)
	}
	if len(cont.Result) == 0 {
		return fmt.Errorf("%s call returned no result", kind)
	}
	if err := json.Unmarshal(cont.Result, result); err != nil {
		return fmt.Errorf("decode %s result: %w", kind, err)
	}
	return nil
}

// Resolve implements resolver.Delegate.
func (h host) Resolve(ctx context.Context, specifier string, rc resolver.Context) (resolver.Descriptor, error) {
	var d resolver.Descriptor
	err := h.s.call(ctx, CallResolve, ResolveRequest{Specifier: specifier, Context: rc}, &d)
	return d, err
}

// Load implements hooks.DefaultLoader.
func (h host) Load(ctx context.Context, url string, lc hooks.LoadContext) (hooks.Loaded, error) {
	var l hooks.Loaded
	err := h.s.call(ctx, CallLoad, LoadRequest{URL: url, Context: lc}, &l)
	return l, err
}

// GetFormat implements hooks.DefaultFormatTransformer.
func (h host) GetFormat(ctx context.Context, url string) (format.Format, error) {
	var r GetFormatResult
	err := h.s.call(ctx, CallGetFormat, GetFormatRequest{URL: url}, &r)
	return r.Format, err
}

// TransformSource implements hooks.DefaultFormatTransformer.
func (h host) TransformSource(ctx context.Context, source, url string, f format.Format) (string, error) {
	var r TransformSourceResult
	err := h.s.call(ctx, CallTransformSource, TransformSourceRequest{Source: source, URL: url, Format: f}, &r)
	return r.Source, err
}
