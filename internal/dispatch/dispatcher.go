// Package dispatch executes calls against the endpoint table.
//
// Every call moves through the same stages:
//
//	Received → Routed → Authorizing → Filtering(before) → Invoking →
//	Filtering(after) → HeaderApply → Serialized
//
// and ends in one of the terminal failure states RouteNotFound,
// Unauthorized, BadRequest, HandlerFault or Aborted instead when a stage
// fails. Nothing after authorization runs for a denied call. A cancelled
// call produces an aborted response with no body and no endpoint headers.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rpcexpose/internal/api"
	"rpcexpose/internal/endpoint"
	"rpcexpose/internal/metrics"
	"rpcexpose/pkg/logging"
)

const tracerName = "rpcexpose/dispatch"

// AuthorizationMode selects how authorization checks are evaluated.
type AuthorizationMode int

const (
	// FailFast stops at the first denying check.
	FailFast AuthorizationMode = iota
	// Aggregate evaluates every check and reports all denial reasons.
	Aggregate
)

// ParseAuthorizationMode converts a configuration value.
func ParseAuthorizationMode(s string) (AuthorizationMode, error) {
	switch s {
	case "", "failFast":
		return FailFast, nil
	case "aggregate":
		return Aggregate, nil
	}
	return FailFast, fmt.Errorf("unknown authorization mode %q", s)
}

func (m AuthorizationMode) String() string {
	if m == Aggregate {
		return "aggregate"
	}
	return "failFast"
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithAuthorizationMode sets the authorization evaluation mode.
func WithAuthorizationMode(mode AuthorizationMode) Option {
	return func(d *Dispatcher) { d.mode = mode }
}

// WithMetrics records call metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithTracer overrides the tracer used for call spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(d *Dispatcher) { d.tracer = tracer }
}

// WithRequestIDs overrides request id generation.
func WithRequestIDs(next func() string) Option {
	return func(d *Dispatcher) { d.newID = next }
}

// Dispatcher routes calls to their endpoints and runs the pipeline.
type Dispatcher struct {
	table    *endpoint.Table
	services api.ServiceActivator
	mode     AuthorizationMode
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	newID    func() string
}

// New creates a Dispatcher serving table. services activates instances;
// it may be nil when only factory functions are exposed.
func New(table *endpoint.Table, services api.ServiceActivator, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		table:    table,
		services: services,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.metrics == nil {
		d.metrics = metrics.New(false)
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer(tracerName)
	}
	return d
}

// Dispatch executes call and returns its response. It never returns nil.
func (d *Dispatcher) Dispatch(ctx context.Context, call *api.Call) *api.Response {
	start := time.Now()
	requestID := d.newID()

	ctx, span := d.tracer.Start(ctx, "dispatch "+call.Verb+" "+call.Path,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", call.Verb),
			attribute.String("url.path", call.Path),
			attribute.String("rpc.request_id", requestID),
			attribute.String("rpc.transport", call.Transport),
		))
	defer span.End()

	resp, route := d.dispatch(ctx, requestID, call)
	resp.RequestID = requestID

	outcome := outcomeOf(resp)
	d.metrics.RequestsTotal.WithLabelValues(call.Verb, route, outcome).Inc()
	d.metrics.RequestDurationSeconds.WithLabelValues(call.Verb, route).Observe(time.Since(start).Seconds())

	span.SetAttributes(
		attribute.Int("http.response.status_code", resp.Status),
		attribute.String("rpc.outcome", outcome),
	)
	if resp.Err != nil && outcome == metrics.OutcomeFault {
		span.RecordError(resp.Err)
		span.SetStatus(codes.Error, resp.Err.Error())
	}

	logging.Debug("Dispatcher", "[%s] %s %s -> %d (%s) in %s",
		logging.TruncateID(requestID), call.Verb, call.Path, resp.Status, outcome, time.Since(start))
	return resp
}

// dispatch runs the pipeline. route is the matched endpoint path used as
// metric label, or "unmatched".
func (d *Dispatcher) dispatch(ctx context.Context, requestID string, call *api.Call) (*api.Response, string) {
	// Routed
	ep, found, err := d.table.Resolve(endpoint.NewKey(call.Verb, call.Path))
	if !found {
		return failure(http.StatusNotFound, api.NewRouteNotFoundError(call.Verb, call.Path)), "unmatched"
	}
	if err != nil {
		logging.Error("Dispatcher", err, "[%s] Failed to compile endpoint for %s %s", logging.TruncateID(requestID), call.Verb, call.Path)
		return failure(http.StatusInternalServerError, &api.HandlerFaultError{Route: call.Path, Err: err}), call.Path
	}
	route := ep.Path

	rc := api.NewRequestContext(ctx, requestID, call)
	rc.Endpoint = ep

	// Authorizing
	if denied := d.authorize(rc); denied != nil {
		d.metrics.AuthorizationDenials.WithLabelValues(route).Inc()
		status := http.StatusForbidden
		if !rc.Principal.Authenticated() {
			status = http.StatusUnauthorized
		}
		logging.Info("Dispatcher", "[%s] Denied %s %s: %v", logging.TruncateID(requestID), call.Verb, call.Path, denied.Reasons)
		return failure(status, denied), route
	}
	if ctx.Err() != nil {
		return aborted(), route
	}

	if call.Body && !ep.HasRequestBody {
		return failure(http.StatusBadRequest, &api.BadRequestError{Err: api.ErrUnexpectedBody}), route
	}
	args, err := bind(ep.Method, call.Args)
	if err != nil {
		return failure(http.StatusBadRequest, err), route
	}
	rc.Args = args

	var release func()
	if ep.Method.Service.Type != nil {
		if d.services == nil {
			return d.fault(rc, fmt.Errorf("no service activator configured")), route
		}
		instance, done, err := d.services.Activate(ctx, ep)
		if err != nil {
			return d.fault(rc, err), route
		}
		rc.Instance, release = instance, done
	}

	// Filtering and Invoking
	if err := d.run(ctx, rc, release); err != nil {
		return d.classify(rc, err), route
	}
	if ctx.Err() != nil {
		return aborted(), route
	}

	// HeaderApply
	header := rc.Header.Clone()
	for _, h := range ep.Headers {
		header.Set(h.Name, h.Value)
	}

	// Serialized
	resp := &api.Response{Status: ep.SuccessStatus, Header: header}
	if rc.Status != 0 {
		resp.Status = rc.Status
	}
	if ep.HasResponseBody {
		resp.Body = rc.Result
		resp.HasBody = true
	}
	return resp, route
}

// authorize evaluates the endpoint's checks. A check returning an error
// denies. It returns nil when the call may proceed.
func (d *Dispatcher) authorize(rc *api.RequestContext) *api.UnauthorizedError {
	var reasons []string
	for _, check := range rc.Endpoint.Authorizations {
		ok, err := evaluate(check, rc)
		if ok && err == nil {
			continue
		}
		reason := check.Name()
		if err != nil {
			reason = fmt.Sprintf("%s: %v", reason, err)
		}
		reasons = append(reasons, reason)
		if d.mode == FailFast {
			break
		}
	}
	if len(reasons) == 0 {
		return nil
	}
	return &api.UnauthorizedError{Route: rc.Endpoint.Path, Reasons: reasons}
}

func evaluate(check api.Authorization, rc *api.RequestContext) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("authorization panicked: %v", r)
		}
	}()
	return check.Authorize(rc)
}

// run builds the filter stack around the invocation and executes it. The
// first registered filter is the outermost one. The stack runs on its own
// goroutine so that cancellation returns immediately; release runs once
// the stack has actually finished.
func (d *Dispatcher) run(ctx context.Context, rc *api.RequestContext, release func()) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- &api.HandlerFaultError{Route: rc.Endpoint.Path, Err: fmt.Errorf("%v", r), Panic: true}
			}
			if release != nil {
				release()
			}
		}()
		done <- stack(rc)(rc)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return api.ErrRequestAborted
	}
}

// stack wraps invoke in the endpoint's filters, outermost first. Factories
// are called in registration order; those returning no filter are skipped.
func stack(rc *api.RequestContext) api.Handler {
	filters := make([]api.Filter, 0, len(rc.Endpoint.Filters))
	for _, factory := range rc.Endpoint.Filters {
		if filter := factory(rc); filter != nil {
			filters = append(filters, filter)
		}
	}

	var handler api.Handler = invoke
	for i := len(filters) - 1; i >= 0; i-- {
		filter, next := filters[i], handler
		handler = func(rc *api.RequestContext) error {
			return filter.Execute(rc, next)
		}
	}
	return handler
}

// invoke is the innermost handler: it calls the target method.
func invoke(rc *api.RequestContext) error {
	m := rc.Endpoint.Method
	result, err := m.Invoke(rc.Context(), rc.Instance, rc.Args)
	if err != nil {
		return err
	}
	if m.Result != nil {
		rc.SetResult(result)
	}
	return nil
}

// classify maps an error returned by the filter stack to a response.
// Errors of the api taxonomy keep their meaning; anything else is a fault.
func (d *Dispatcher) classify(rc *api.RequestContext, err error) *api.Response {
	switch {
	case api.IsAborted(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		logging.Debug("Dispatcher", "[%s] Aborted %s", logging.TruncateID(rc.RequestID), rc.Endpoint.Path)
		return aborted()
	case api.IsUnauthorized(err):
		return failure(http.StatusForbidden, err)
	case api.IsBadRequest(err):
		return failure(http.StatusBadRequest, err)
	case api.IsNotFound(err):
		return failure(http.StatusNotFound, err)
	case api.IsHandlerFault(err):
		logging.Error("Dispatcher", err, "[%s] Fault in %s", logging.TruncateID(rc.RequestID), rc.Endpoint.Method)
		return failure(http.StatusInternalServerError, err)
	default:
		return d.fault(rc, err)
	}
}

func (d *Dispatcher) fault(rc *api.RequestContext, err error) *api.Response {
	fault := &api.HandlerFaultError{Route: rc.Endpoint.Path, Err: err}
	logging.Error("Dispatcher", err, "[%s] Fault in %s", logging.TruncateID(rc.RequestID), rc.Endpoint.Method)
	return failure(http.StatusInternalServerError, fault)
}

func failure(status int, err error) *api.Response {
	return &api.Response{Status: status, Header: http.Header{}, Err: err}
}

// statusClientClosedRequest is the de facto status for calls abandoned by
// the caller.
const statusClientClosedRequest = 499

func aborted() *api.Response {
	return &api.Response{Status: statusClientClosedRequest, Header: http.Header{}, Err: api.ErrRequestAborted, Aborted: true}
}

func outcomeOf(resp *api.Response) string {
	switch {
	case resp.Err == nil:
		return metrics.OutcomeSuccess
	case resp.Aborted:
		return metrics.OutcomeAborted
	case api.IsNotFound(resp.Err):
		return metrics.OutcomeNotFound
	case api.IsUnauthorized(resp.Err):
		return metrics.OutcomeUnauthorized
	case api.IsBadRequest(resp.Err):
		return metrics.OutcomeBadRequest
	default:
		return metrics.OutcomeFault
	}
}
