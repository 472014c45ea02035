package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"rpcexpose/internal/api"
	"rpcexpose/internal/endpoint"
	"rpcexpose/pkg/logging"
)

const (
	// DefaultReadHeaderTimeout is the default timeout for reading request headers.
	DefaultReadHeaderTimeout = 10 * time.Second
	// DefaultIdleTimeout is the default idle timeout for keepalive connections.
	DefaultIdleTimeout = 120 * time.Second

	// TransportName identifies calls arriving over HTTP.
	TransportName = "http"
)

// Dispatcher executes calls.
type Dispatcher interface {
	Dispatch(ctx context.Context, call *api.Call) *api.Response
}

// Options configures the HTTP transport.
type Options struct {
	Addr            string
	BasePath        string
	ShutdownTimeout time.Duration
	Principal       PrincipalExtractor

	// Optional handlers mounted next to the exposed routes.
	MetricsPath    string
	MetricsHandler http.Handler
	MCPPath        string
	MCPHandler     http.Handler

	// Routes, when set, is listed as JSON at RoutesPath.
	Routes *endpoint.Table
}

// RoutesPath lists the exposed routes.
const RoutesPath = "/_routes"

// Server is the HTTP transport.
type Server struct {
	opts       Options
	dispatcher Dispatcher
	router     *mux.Router
	ready      atomic.Bool
}

// New creates the transport and its router.
func New(dispatcher Dispatcher, opts Options) *Server {
	if opts.BasePath == "" {
		opts.BasePath = "/"
	}
	if opts.Principal == nil {
		opts.Principal = func(*http.Request) *api.Principal { return nil }
	}

	s := &Server{opts: opts, dispatcher: dispatcher}
	s.router = s.createRouter()
	return s
}

// createRouter registers the operational endpoints before the catch-all
// route of the base path; mux matches routes in registration order.
func (s *Server) createRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(principalMiddleware(s.opts.Principal))

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.opts.MetricsHandler != nil {
		r.Handle(s.opts.MetricsPath, s.opts.MetricsHandler).Methods(http.MethodGet)
	}
	if s.opts.Routes != nil {
		r.Handle(RoutesPath, RoutesHandler(s.opts.Routes)).Methods(http.MethodGet)
	}
	if s.opts.MCPHandler != nil {
		r.PathPrefix(s.opts.MCPPath).Handler(s.opts.MCPHandler)
	}

	r.PathPrefix(endpoint.NormalizePath(s.opts.BasePath)).HandlerFunc(s.handleCall)
	return r
}

// Handler returns the root handler of the transport.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetReady toggles the health endpoint between 200 and 503.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !s.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"starting"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	path, ok := s.routePath(r.URL.Path)
	if !ok {
		writeResponse(w, &api.Response{Status: http.StatusNotFound, Err: api.NewRouteNotFoundError(r.Method, endpoint.NormalizePath(r.URL.Path))})
		return
	}
	args, hasBody, err := decodeArguments(r)
	if err != nil {
		writeResponse(w, &api.Response{Status: http.StatusBadRequest, Err: err})
		return
	}

	call := &api.Call{
		Verb:      r.Method,
		Path:      path,
		Args:      args,
		Body:      hasBody,
		Principal: PrincipalFromContext(r.Context()),
		Header:    r.Header,
		Transport: TransportName,
	}
	writeResponse(w, s.dispatcher.Dispatch(r.Context(), call))
}

// routePath strips the base path from a request path. ok is false for
// paths outside the base path, including ones that only share its prefix.
func (s *Server) routePath(p string) (string, bool) {
	base := endpoint.NormalizePath(s.opts.BasePath)
	p = endpoint.NormalizePath(p)
	if base == "/" {
		return p, true
	}
	if p != base && !strings.HasPrefix(p, base+"/") {
		return "", false
	}
	return endpoint.NormalizePath(strings.TrimPrefix(p, base)), true
}

// Serve listens on the configured address until ctx is cancelled, then
// shuts down gracefully. ready, when not nil, is called once the listener
// accepts connections.
func (s *Server) Serve(ctx context.Context, ready func(addr net.Addr)) error {
	listener, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}

	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(listener)
	}()

	s.SetReady(true)
	logging.Info("HTTPServer", "Listening on %s (routes under %s)", listener.Addr(), s.opts.BasePath)
	if ready != nil {
		ready(listener.Addr())
	}

	select {
	case err := <-errCh:
		s.SetReady(false)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.SetReady(false)
	timeout := s.opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logging.Info("HTTPServer", "Shutting down (timeout %s)", timeout)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

// RouteInfo describes one exposed route for listings.
type RouteInfo struct {
	Verb   string `json:"verb"`
	Path   string `json:"path"`
	Method string `json:"method"`
}

// RoutesHandler serves the routes of table as JSON.
func RoutesHandler(table *endpoint.Table) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		routes := table.Routes()
		out := make([]RouteInfo, 0, len(routes))
		for _, route := range routes {
			info := RouteInfo{Verb: route.Key.Verb, Path: route.Key.Path}
			if route.Endpoint != nil {
				info.Method = route.Endpoint.Method.String()
			}
			out = append(out, info)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
}
