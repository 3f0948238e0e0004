// SPDX-License-Identifier: MPL-2.0

package hookserver

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	json "github.com/go-json-experiment/json"

	"github.com/tsload/tsload/internal/hooks"
	"github.com/tsload/tsload/internal/transform"
)

const (
	defaultSessionTimeout  = 2 * time.Minute
	defaultShutdownTimeout = 5 * time.Second
	defaultStartupTimeout  = 5 * time.Second
	tokenBytes             = 32
)

type (
	// Config holds the server's collaborators and limits.
	Config struct {
		// Hooks answer the hook endpoints. Required.
		Hooks hooks.LoaderHooks
		// SourceMaps backs PathSourceMap. Optional.
		SourceMaps *transform.SourceMaps
		// Notifier receives dependencies posted to PathDependency. Optional.
		Notifier hooks.Notifier
		// Host is the address to bind to (default: 127.0.0.1).
		Host string
		// SessionTimeout bounds one hook call including every delegate
		// round trip (default: 2m).
		SessionTimeout time.Duration
		// ShutdownTimeout bounds graceful shutdown (default: 5s).
		ShutdownTimeout time.Duration
		// StartupTimeout bounds Start (default: 5s).
		StartupTimeout time.Duration
		// Logger defaults to a stderr logger prefixed "hook-server".
		Logger *log.Logger
	}

	// Server serves loader hooks to the shim over localhost HTTP.
	Server struct {
		cfg    Config
		token  string
		logger *log.Logger

		state    atomic.Int32
		stateMu  sync.Mutex
		listener net.Listener
		srv      *http.Server
		addr     string
		lastErr  error

		ctx       context.Context
		cancel    context.CancelFunc
		wg        sync.WaitGroup
		startedCh chan struct{}
		errCh     chan error

		sessions sessions
	}
)

// New creates a Server. It does not listen until Start is called.
func New(cfg Config) (*Server, error) {
	if cfg.Hooks == nil {
		return nil, errors.New("hookserver: hooks are required")
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Notifier == nil {
		cfg.Notifier = hooks.Discard
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = defaultSessionTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = defaultStartupTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "hook-server"})
	}

	token, err := generateToken(tokenBytes)
	if err != nil {
		return nil, fmt.Errorf("hookserver: generate token: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		token:     token,
		logger:    logger,
		startedCh: make(chan struct{}),
		errCh:     make(chan error, 1),
	}
	s.state.Store(int32(StateCreated))
	return s, nil
}

// Handler returns the server's routes. Hook endpoints the configured
// generation does not have are not mounted.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+PathHealth, s.handleHealth)
	mux.Handle("POST "+PathResolve, s.authorized(s.handleResolve))
	if _, ok := s.cfg.Hooks.(hooks.Loader); ok {
		mux.Handle("POST "+PathLoad, s.authorized(s.handleLoad))
	}
	if _, ok := s.cfg.Hooks.(hooks.FormatTransformer); ok {
		mux.Handle("POST "+PathGetFormat, s.authorized(s.handleGetFormat))
		mux.Handle("POST "+PathTransformSource, s.authorized(s.handleTransformSource))
	}
	mux.Handle("POST "+PathContinue, s.authorized(s.handleContinue))
	mux.Handle("POST "+PathDependency, s.authorized(s.handleDependency))
	mux.Handle("GET "+PathSourceMap, s.authorized(s.handleSourceMap))
	return mux
}

// Start listens on a random localhost port and serves in the background.
// It returns once the server accepts connections.
func (s *Server) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		s.transitionToFailed(fmt.Errorf("context cancelled before start: %w", ctx.Err()))
		return s.LastError()
	default:
	}

	if !s.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return fmt.Errorf("cannot start server in state %s", s.State())
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	startupCtx, startupCancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer startupCancel()

	var lc net.ListenConfig
	listener, err := lc.Listen(startupCtx, "tcp", net.JoinHostPort(s.cfg.Host, "0"))
	if err != nil {
		s.transitionToFailed(fmt.Errorf("listen on %s: %w", s.cfg.Host, err))
		return s.LastError()
	}

	s.stateMu.Lock()
	s.listener = listener
	s.addr = listener.Addr().String()
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.ctx },
	}
	s.stateMu.Unlock()

	s.wg.Add(1)
	go s.serve()

	select {
	case <-s.startedCh:
		s.logger.Debug("hook server started", "address", s.addr, "generation", s.cfg.Hooks.Generation())
		return nil
	case err := <-s.errCh:
		s.transitionToFailed(err)
		return err
	case <-startupCtx.Done():
		s.transitionToFailed(fmt.Errorf("startup timeout: %w", startupCtx.Err()))
		return s.LastError()
	}
}

// Stop shuts the server down, cancelling every live session. Safe to call
// multiple times.
func (s *Server) Stop() error {
	for {
		current := s.State()
		switch current {
		case StateStopped, StateFailed:
			return nil
		case StateCreated:
			if s.state.CompareAndSwap(int32(StateCreated), int32(StateStopped)) {
				return nil
			}
		case StateStopping:
			s.wg.Wait()
			return nil
		case StateStarting, StateRunning:
			if s.state.CompareAndSwap(int32(current), int32(StateStopping)) {
				return s.doStop()
			}
		default:
			return &InvalidStateError{Value: current}
		}
	}
}

// Err delivers fatal serve errors. It is closed when the server stops.
func (s *Server) Err() <-chan error { return s.errCh }

// State returns the lifecycle state.
func (s *Server) State() State { return State(s.state.Load()) }

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool { return s.State() == StateRunning }

// LastError returns the error that failed the server, or nil.
func (s *Server) LastError() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.lastErr
}

// Address returns the bound address (e.g. "127.0.0.1:54321").
func (s *Server) Address() string {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.addr
}

// URL returns the base URL (e.g. "http://127.0.0.1:54321").
func (s *Server) URL() string { return "http://" + s.Address() }

// Token returns the bearer token clients must present.
func (s *Server) Token() string { return s.token }

// Env returns the environment the loader shim needs to reach the server.
func (s *Server) Env() []string {
	return []string{
		EnvHookAddr + "=" + s.URL(),
		EnvHookToken + "=" + s.token,
		EnvHookGeneration + "=" + s.cfg.Hooks.Generation().String(),
	}
}

func (s *Server) serve() {
	defer s.wg.Done()

	if s.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		close(s.startedCh)
	}

	s.stateMu.Lock()
	srv, listener := s.srv, s.listener
	s.stateMu.Unlock()

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		select {
		case s.errCh <- fmt.Errorf("serve: %w", err):
		default:
			s.logger.Error("hook server error (channel full)", "error", err)
		}
	}
}

func (s *Server) doStop() error {
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.stateMu.Lock()
	srv := s.srv
	s.stateMu.Unlock()

	var err error
	if srv != nil {
		if err = srv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
		}
	}

	s.wg.Wait()
	s.state.Store(int32(StateStopped))
	close(s.errCh)
	s.logger.Debug("hook server stopped")
	return err
}

func (s *Server) transitionToFailed(err error) {
	s.stateMu.Lock()
	s.lastErr = err
	s.stateMu.Unlock()
	s.state.Store(int32(StateFailed))
	if s.cancel != nil {
		s.cancel()
	}
	select {
	case s.errCh <- err:
	default:
	}
}

// authorized rejects requests without the server's bearer token.
func (s *Server) authorized(next http.HandlerFunc) http.Handler {
	want := []byte("Bearer " + s.token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.start(w, r, func(ctx context.Context, h host) (any, error) {
		return s.cfg.Hooks.Resolve(ctx, req.Specifier, req.Context, h)
	})
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req LoadRequest
	if !s.decode(w, r, &req) {
		return
	}
	loader := s.cfg.Hooks.(hooks.Loader)
	s.start(w, r, func(ctx context.Context, h host) (any, error) {
		return loader.Load(ctx, req.URL, req.Context, h)
	})
}

func (s *Server) handleGetFormat(w http.ResponseWriter, r *http.Request) {
	var req GetFormatRequest
	if !s.decode(w, r, &req) {
		return
	}
	ft := s.cfg.Hooks.(hooks.FormatTransformer)
	s.start(w, r, func(ctx context.Context, h host) (any, error) {
		f, err := ft.GetFormat(ctx, req.URL, h)
		return GetFormatResult{Format: f}, err
	})
}

func (s *Server) handleTransformSource(w http.ResponseWriter, r *http.Request) {
	var req TransformSourceRequest
	if !s.decode(w, r, &req) {
		return
	}
	ft := s.cfg.Hooks.(hooks.FormatTransformer)
	s.start(w, r, func(ctx context.Context, h host) (any, error) {
		src, err := ft.TransformSource(ctx, req.Source, req.URL, req.Format, h)
		return TransformSourceResult{Source: src}, err
	})
}

// start opens a session for one hook call and answers with its first reply.
func (s *Server) start(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, h host) (any, error)) {
	ctx, cancel := context.WithTimeout(s.ctxOr(r), s.cfg.SessionTimeout)
	sess := s.sessions.open(ctx)
	go sess.run(fn)
	go func() {
		<-sess.ctx.Done()
		cancel()
		s.sessions.close(sess)
	}()
	s.reply(w, r, sess)
}

func (s *Server) handleContinue(w http.ResponseWriter, r *http.Request) {
	var cont Continuation
	if !s.decode(w, r, &cont) {
		return
	}
	sess, ok := s.sessions.get(cont.Session)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, Reply{Error: &WireError{Message: fmt.Sprintf("%s %q", ErrUnknownSession, cont.Session)}})
		return
	}

	select {
	case sess.in <- cont:
	case <-sess.ctx.Done():
		s.writeJSON(w, http.StatusGone, Reply{Error: toWireError(sess.ctx.Err())})
		return
	case <-r.Context().Done():
		return
	}
	s.reply(w, r, sess)
}

// reply waits for the session's next message and writes it. A final
// message closes the session.
func (s *Server) reply(w http.ResponseWriter, r *http.Request, sess *session) {
	select {
	case rep := <-sess.out:
		if rep.Call == nil {
			s.sessions.close(sess)
		}
		s.writeJSON(w, http.StatusOK, rep)
	case <-sess.ctx.Done():
		select {
		case rep := <-sess.out:
			if rep.Call == nil {
				s.writeJSON(w, http.StatusOK, rep)
				return
			}
		default:
		}
		s.writeJSON(w, http.StatusGone, Reply{Error: toWireError(sess.ctx.Err())})
	case <-r.Context().Done():
		// The shim went away; nobody can continue this session.
		s.sessions.close(sess)
	}
}

func (s *Server) handleDependency(w http.ResponseWriter, r *http.Request) {
	var dep hooks.Dependency
	if !s.decode(w, r, &dep) {
		return
	}
	if dep.Type != hooks.DependencyType || dep.Path == "" {
		http.Error(w, "invalid dependency notification", http.StatusBadRequest)
		return
	}
	s.cfg.Notifier.Notify(dep)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSourceMap(w http.ResponseWriter, r *http.Request) {
	u := r.URL.Query().Get("url")
	if s.cfg.SourceMaps == nil || u == "" {
		http.NotFound(w, r)
		return
	}
	m, ok := s.cfg.SourceMaps.Lookup(u)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(m))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.UnmarshalRead(r.Body, v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, Reply{Error: &WireError{Message: "invalid JSON: " + err.Error()}})
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.MarshalWrite(w, v); err != nil {
		s.logger.Warn("write response", "error", err)
	}
}

// ctxOr returns the server context, or the request's when the handler is
// used without Start.
func (s *Server) ctxOr(r *http.Request) context.Context {
	if s.ctx != nil {
		return s.ctx
	}
	return context.WithoutCancel(r.Context())
}

// generateToken generates a random hex-encoded token of the given byte length.
func generateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
