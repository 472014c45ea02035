package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpcexpose/internal/api"
	"rpcexpose/internal/authz"
	"rpcexpose/internal/endpoint"
	"rpcexpose/internal/exposure"
	"rpcexpose/internal/metrics"
	"rpcexpose/internal/registry"
	"rpcexpose/internal/services"
)

type DoubleMath struct {
	calls *atomic.Int32
}

func (m *DoubleMath) Add(x, y float64) float64 {
	if m.calls != nil {
		m.calls.Add(1)
	}
	return x + y
}

func (m *DoubleMath) Subtract(x, y float64) float64 {
	return x - y
}

type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Shapes struct{}

func (Shapes) Length(p Point) int { return p.X*p.X + p.Y*p.Y }

func (Shapes) Scale(p Point, factor int) Point { return Point{X: p.X * factor, Y: p.Y * factor} }

func (Shapes) Reset() {}

func (Shapes) Fail() (int, error) { return 0, errors.New("broken shape") }

func (Shapes) Explode() int { panic("kaboom") }

func (Shapes) Wait(ctx context.Context) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (Shapes) Missing(id string) (string, error) {
	return "", api.NewNotFoundError("shape", id)
}

func (Shapes) RouteOptions() map[string]api.MethodOptions {
	return map[string]api.MethodOptions{
		"Length": {Params: []string{"p"}},
		"Scale":  {Params: []string{"p", "factor"}},
	}
}

func raw(values ...any) []json.RawMessage {
	out := make([]json.RawMessage, len(values))
	for i, v := range values {
		b, _ := json.Marshal(v)
		out[i] = b
	}
	return out
}

func post(path string, args ...any) *api.Call {
	return &api.Call{Verb: "POST", Path: path, Args: api.Arguments{Positional: raw(args...)}}
}

func build(t *testing.T, cfg *exposure.Configuration, opts ...Option) *Dispatcher {
	t.Helper()
	table := endpoint.NewTable()
	require.NoError(t, registry.New(table).Register(cfg.Exposures()...))
	return New(table, cfg.Services(), opts...)
}

func newConfig(t *testing.T) *exposure.Configuration {
	t.Helper()
	provider, err := authz.NewProvider(nil)
	require.NoError(t, err)
	return exposure.New(provider, services.NewProvider())
}

func TestDispatch_Success(t *testing.T) {
	cfg := newConfig(t)
	cfg.Prefix("math")
	cfg.Expose(&DoubleMath{})
	d := build(t, cfg, WithRequestIDs(func() string { return "req-123456789" }))

	resp := d.Dispatch(context.Background(), post("/math/Add", 1.5, 2))
	require.NoError(t, resp.Err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.True(t, resp.HasBody)
	assert.Equal(t, 3.5, resp.Body)
	assert.Equal(t, "req-123456789", resp.RequestID)

	resp = d.Dispatch(context.Background(), post("/math/Subtract", 5, 2))
	require.NoError(t, resp.Err)
	assert.Equal(t, 3.0, resp.Body)
}

func TestDispatch_RouteNotFound(t *testing.T) {
	cfg := newConfig(t)
	cfg.Expose(&DoubleMath{})
	d := build(t, cfg)

	tests := []struct {
		name string
		call *api.Call
	}{
		{name: "unknown path", call: post("/Multiply", 1, 2)},
		{name: "wrong verb", call: &api.Call{Verb: "GET", Path: "/Add"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := d.Dispatch(context.Background(), tt.call)
			assert.Equal(t, http.StatusNotFound, resp.Status)
			assert.True(t, api.IsNotFound(resp.Err))
			assert.False(t, resp.HasBody)
		})
	}
}

func TestDispatch_DenialStopsBeforeFilters(t *testing.T) {
	var invocations atomic.Int32
	var filterRuns atomic.Int32

	cfg := newConfig(t)
	cfg.Authorize("admin", "")
	cfg.ApplyFilter(func(*api.RequestContext) api.Filter {
		return api.FilterFunc(func(rc *api.RequestContext, next api.Handler) error {
			filterRuns.Add(1)
			return next(rc)
		})
	}, nil)
	cfg.AddResponseHeader("X-Api", "v1")
	cfg.Expose(&DoubleMath{calls: &invocations})
	d := build(t, cfg)

	tests := []struct {
		name      string
		principal *api.Principal
		status    int
	}{
		{name: "anonymous", principal: nil, status: http.StatusUnauthorized},
		{name: "missing role", principal: &api.Principal{Subject: "bob"}, status: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call := post("/Add", 1, 2)
			call.Principal = tt.principal
			resp := d.Dispatch(context.Background(), call)

			assert.Equal(t, tt.status, resp.Status)
			assert.True(t, api.IsUnauthorized(resp.Err))
			assert.Empty(t, resp.Header.Get("X-Api"))
			assert.Equal(t, int32(0), filterRuns.Load())
			assert.Equal(t, int32(0), invocations.Load())
		})
	}

	call := post("/Add", 1, 2)
	call.Principal = &api.Principal{Subject: "alice", Roles: []string{"admin"}}
	resp := d.Dispatch(context.Background(), call)
	require.NoError(t, resp.Err)
	assert.Equal(t, int32(1), filterRuns.Load())
	assert.Equal(t, int32(1), invocations.Load())
}

func TestDispatch_AuthorizationModes(t *testing.T) {
	var evaluated []string
	deny := func(name string) api.Authorization {
		return api.NewAuthorization(name, func(*api.RequestContext) (bool, error) {
			evaluated = append(evaluated, name)
			return false, nil
		})
	}
	failing := api.NewAuthorization("failing", func(*api.RequestContext) (bool, error) {
		evaluated = append(evaluated, "failing")
		return true, errors.New("backend down")
	})

	tests := []struct {
		name      string
		mode      AuthorizationMode
		reasons   []string
		evaluated []string
	}{
		{name: "fail fast", mode: FailFast, reasons: []string{"first"}, evaluated: []string{"first"}},
		{name: "aggregate", mode: Aggregate, reasons: []string{"first", "second", "failing: backend down"}, evaluated: []string{"first", "second", "failing"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evaluated = nil
			cfg := newConfig(t)
			cfg.AddAuthorization(func(*api.MethodConfiguration) []api.Authorization {
				return []api.Authorization{deny("first"), deny("second"), failing}
			})
			cfg.Expose(&DoubleMath{})
			d := build(t, cfg, WithAuthorizationMode(tt.mode))

			resp := d.Dispatch(context.Background(), post("/Add", 1, 2))
			var unauthorized *api.UnauthorizedError
			require.ErrorAs(t, resp.Err, &unauthorized)
			assert.Equal(t, tt.reasons, unauthorized.Reasons)
			assert.Equal(t, tt.evaluated, evaluated)
		})
	}
}

func TestDispatch_FiltersRunAsOnion(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, s)
	}
	named := func(name string) api.FilterFactory {
		return func(*api.RequestContext) api.Filter {
			return api.BeforeAfter{
				Before: func(*api.RequestContext) error { record(name + ".before"); return nil },
				After:  func(*api.RequestContext) error { record(name + ".after"); return nil },
			}
		}
	}

	cfg := newConfig(t)
	cfg.ApplyFilter(named("outer"), nil)
	cfg.ApplyFilter(named("inner"), nil)
	cfg.AddFilter(func(*api.MethodConfiguration) api.FilterFactory {
		return func(*api.RequestContext) api.Filter {
			return api.FilterFunc(func(rc *api.RequestContext, next api.Handler) error {
				record("core.before")
				err := next(rc)
				record("core.after")
				return err
			})
		}
	})
	// A factory yielding no filter for this call is skipped.
	cfg.AddFilter(func(*api.MethodConfiguration) api.FilterFactory {
		return func(*api.RequestContext) api.Filter { return nil }
	})
	cfg.Expose(&DoubleMath{})
	d := build(t, cfg)

	resp := d.Dispatch(context.Background(), post("/Add", 1, 2))
	require.NoError(t, resp.Err)
	assert.Equal(t, []string{
		"outer.before", "inner.before", "core.before",
		"core.after", "inner.after", "outer.after",
	}, order)
}

func TestDispatch_FilterFactoriesCalledInOrder(t *testing.T) {
	var mu sync.Mutex
	var created []string
	factory := func(name string) api.FilterFactory {
		return func(*api.RequestContext) api.Filter {
			mu.Lock()
			created = append(created, name)
			mu.Unlock()
			return api.FilterFunc(func(rc *api.RequestContext, next api.Handler) error { return next(rc) })
		}
	}

	cfg := newConfig(t)
	cfg.ApplyFilter(factory("first"), nil)
	cfg.ApplyFilter(factory("second"), nil)
	cfg.ApplyFilter(factory("third"), nil)
	cfg.Expose(&DoubleMath{})
	d := build(t, cfg)

	resp := d.Dispatch(context.Background(), post("/Add", 1, 2))
	require.NoError(t, resp.Err)
	assert.Equal(t, []string{"first", "second", "third"}, created)
}

func TestDispatch_LastHeaderWins(t *testing.T) {
	cfg := newConfig(t)
	cfg.AddResponseHeader("X-Api", "v1")
	cfg.AddResponseHeader("X-Api", "v2")
	cfg.AddResponseHeader("X-Other", "o")
	cfg.ApplyFilter(func(*api.RequestContext) api.Filter {
		return api.FilterFunc(func(rc *api.RequestContext, next api.Handler) error {
			rc.Header.Set("X-Api", "filter")
			rc.Header.Set("X-Filter", "yes")
			return next(rc)
		})
	}, nil)
	cfg.Expose(&DoubleMath{})
	d := build(t, cfg)

	resp := d.Dispatch(context.Background(), post("/Add", 1, 2))
	require.NoError(t, resp.Err)
	assert.Equal(t, []string{"v2"}, resp.Header.Values("X-Api"))
	assert.Equal(t, "o", resp.Header.Get("X-Other"))
	assert.Equal(t, "yes", resp.Header.Get("X-Filter"))
}

func TestDispatch_FilterShortCircuit(t *testing.T) {
	var invocations atomic.Int32
	cfg := newConfig(t)
	cfg.ApplyFilter(func(*api.RequestContext) api.Filter {
		return api.FilterFunc(func(rc *api.RequestContext, next api.Handler) error {
			rc.SetResult(42.0)
			rc.Status = http.StatusAccepted
			return nil
		})
	}, nil)
	cfg.AddResponseHeader("X-Api", "v1")
	cfg.Expose(&DoubleMath{calls: &invocations})
	d := build(t, cfg)

	resp := d.Dispatch(context.Background(), post("/Add", 1, 2))
	require.NoError(t, resp.Err)
	assert.Equal(t, http.StatusAccepted, resp.Status)
	assert.Equal(t, 42.0, resp.Body)
	assert.Equal(t, "v1", resp.Header.Get("X-Api"))
	assert.Equal(t, int32(0), invocations.Load())
}

func TestDispatch_Binding(t *testing.T) {
	cfg := newConfig(t)
	cfg.Expose(Shapes{})
	d := build(t, cfg)

	tests := []struct {
		name   string
		call   *api.Call
		status int
		body   any
	}{
		{
			name:   "positional struct",
			call:   post("/Length", Point{X: 3, Y: 4}),
			status: http.StatusOK,
			body:   25,
		},
		{
			name:   "whole object binds single struct parameter",
			call:   &api.Call{Verb: "POST", Path: "/Length", Args: api.Arguments{Named: map[string]json.RawMessage{"x": json.RawMessage(`1`), "y": json.RawMessage(`2`)}}},
			status: http.StatusOK,
			body:   5,
		},
		{
			name:   "named by parameter",
			call:   &api.Call{Verb: "POST", Path: "/Length", Args: api.Arguments{Named: map[string]json.RawMessage{"p": json.RawMessage(`{"x":2,"y":2}`)}}},
			status: http.StatusOK,
			body:   8,
		},
		{
			name:   "named multiple parameters",
			call:   &api.Call{Verb: "POST", Path: "/Scale", Args: api.Arguments{Named: map[string]json.RawMessage{"p": json.RawMessage(`{"x":1,"y":2}`), "factor": json.RawMessage(`3`)}}},
			status: http.StatusOK,
			body:   Point{X: 3, Y: 6},
		},
		{
			name:   "missing argument binds zero value",
			call:   post("/Scale", Point{X: 1, Y: 1}),
			status: http.StatusOK,
			body:   Point{},
		},
		{
			name:   "wrong type",
			call:   post("/Scale", Point{X: 1}, "three"),
			status: http.StatusBadRequest,
		},
		{
			name:   "too many arguments",
			call:   post("/Length", Point{}, 1),
			status: http.StatusBadRequest,
		},
		{
			name:   "arguments to method without parameters",
			call:   post("/Reset", 1),
			status: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := d.Dispatch(context.Background(), tt.call)
			assert.Equal(t, tt.status, resp.Status)
			if tt.status == http.StatusBadRequest {
				assert.True(t, api.IsBadRequest(resp.Err))
				return
			}
			require.NoError(t, resp.Err)
			assert.Equal(t, tt.body, resp.Body)
		})
	}
}

func TestDispatch_RequestBodyFollowsEndpoint(t *testing.T) {
	cfg := newConfig(t)
	cfg.Expose(Shapes{})
	d := build(t, cfg)

	tests := []struct {
		name   string
		call   *api.Call
		status int
	}{
		{
			name:   "body to endpoint without request body",
			call:   &api.Call{Verb: "POST", Path: "/Reset", Body: true, Args: api.Arguments{Named: map[string]json.RawMessage{"x": json.RawMessage(`1`)}}},
			status: http.StatusBadRequest,
		},
		{
			name:   "no body to endpoint without request body",
			call:   &api.Call{Verb: "POST", Path: "/Reset"},
			status: http.StatusNoContent,
		},
		{
			name:   "body to endpoint with request body",
			call:   &api.Call{Verb: "POST", Path: "/Length", Body: true, Args: api.Arguments{Positional: raw(Point{X: 1})}},
			status: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := d.Dispatch(context.Background(), tt.call)
			assert.Equal(t, tt.status, resp.Status)
			if tt.status == http.StatusBadRequest {
				assert.ErrorIs(t, resp.Err, api.ErrUnexpectedBody)
				return
			}
			assert.NoError(t, resp.Err)
		})
	}
}

func TestDispatch_Outcomes(t *testing.T) {
	cfg := newConfig(t)
	cfg.AddResponseHeader("X-Api", "v1")
	cfg.Expose(Shapes{})
	d := build(t, cfg)

	resp := d.Dispatch(context.Background(), post("/Reset"))
	require.NoError(t, resp.Err)
	assert.Equal(t, http.StatusNoContent, resp.Status)
	assert.False(t, resp.HasBody)
	assert.Equal(t, "v1", resp.Header.Get("X-Api"))

	resp = d.Dispatch(context.Background(), post("/Fail"))
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.True(t, api.IsHandlerFault(resp.Err))
	assert.Empty(t, resp.Header.Get("X-Api"))

	resp = d.Dispatch(context.Background(), post("/Explode"))
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	var fault *api.HandlerFaultError
	require.ErrorAs(t, resp.Err, &fault)
	assert.True(t, fault.Panic)

	resp = d.Dispatch(context.Background(), post("/Missing", "circle"))
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.True(t, api.IsNotFound(resp.Err))
}

func TestDispatch_Cancellation(t *testing.T) {
	afterRan := make(chan struct{}, 1)
	cfg := newConfig(t)
	cfg.AddResponseHeader("X-Api", "v1")
	cfg.ApplyFilter(func(*api.RequestContext) api.Filter {
		return api.FilterFunc(func(rc *api.RequestContext, next api.Handler) error {
			err := next(rc)
			rc.Header.Set("X-After", "1")
			afterRan <- struct{}{}
			return err
		})
	}, nil)
	cfg.Expose(Shapes{})
	d := build(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	resp := d.Dispatch(ctx, post("/Wait"))
	assert.True(t, resp.Aborted)
	assert.True(t, api.IsAborted(resp.Err))
	assert.False(t, resp.HasBody)
	assert.Nil(t, resp.Body)
	assert.Empty(t, resp.Header)

	select {
	case <-afterRan:
	case <-time.After(time.Second):
		t.Fatal("after stage did not run")
	}
}

func TestDispatch_CancelledBeforeInvocation(t *testing.T) {
	var invocations atomic.Int32
	cfg := newConfig(t)
	cfg.Expose(&DoubleMath{calls: &invocations})
	d := build(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp := d.Dispatch(ctx, post("/Add", 1, 2))
	assert.True(t, resp.Aborted)
	assert.Equal(t, int32(0), invocations.Load())
}

func TestDispatch_Metrics(t *testing.T) {
	m := metrics.New(true)
	cfg := newConfig(t)
	cfg.Authorize("admin", "")
	cfg.Expose(&DoubleMath{})
	d := build(t, cfg, WithMetrics(m))

	d.Dispatch(context.Background(), post("/Add", 1, 2))
	d.Dispatch(context.Background(), post("/Nope"))

	expected := `
# HELP rpcexpose_requests_total Total number of dispatched calls by outcome
# TYPE rpcexpose_requests_total counter
rpcexpose_requests_total{outcome="not_found",route="unmatched",verb="POST"} 1
rpcexpose_requests_total{outcome="unauthorized",route="/Add",verb="POST"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "rpcexpose_requests_total"))

	count, err := testutil.GatherAndCount(m.Registry(), "rpcexpose_authorization_denials_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
