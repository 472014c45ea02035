// Package registry compiles exposure groups into endpoint descriptors and
// publishes them to the endpoint table.
//
// For every candidate method of an exposure, compiled against the snapshot
// the exposure captured:
//
//  1. method filters decide whether the method is exposed at all
//  2. prefix generators and the method's path produce its routes
//  3. the declared verb, or the default method, selects its verbs
//  4. authorization providers contribute checks, in registration order
//  5. filter providers contribute factories; nil results are dropped
//  6. response headers are copied verbatim
//  7. status and body flags are derived from overrides, verb and shapes
//
// Steps 1 to 3 always run at registration so that route conflicts are
// detected before serving. Steps 4 to 7 run at registration by default, or
// on first access of a route with lazy compilation. All routes of one
// method under one verb share a single descriptor.
package registry

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rpcexpose/internal/api"
	"rpcexpose/internal/endpoint"
	"rpcexpose/internal/exposure"
	"rpcexpose/pkg/logging"
)

const tracerName = "rpcexpose/registry"

// Option configures a Registry.
type Option func(*Registry)

// WithLazyCompile defers descriptor compilation to first access.
func WithLazyCompile(lazy bool) Option {
	return func(r *Registry) {
		r.lazy = lazy
	}
}

// WithTracer overrides the tracer used for compile spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Registry) {
		r.tracer = tracer
	}
}

// Registry publishes compiled exposures to an endpoint table.
type Registry struct {
	table  *endpoint.Table
	lazy   bool
	tracer trace.Tracer

	mu     sync.Mutex
	owners map[endpoint.Key]*api.MethodInfo
}

// New creates a Registry publishing to table.
func New(table *endpoint.Table, opts ...Option) *Registry {
	r := &Registry{
		table:  table,
		owners: make(map[endpoint.Key]*api.MethodInfo),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(tracerName)
	}
	return r
}

// Table returns the endpoint table the registry publishes to.
func (r *Registry) Table() *endpoint.Table {
	return r.table
}

// Register compiles and publishes every exposure. All configuration errors
// are collected and returned joined; routes of failing methods are not
// published.
func (r *Registry) Register(exposures ...exposure.Exposure) error {
	var errs []error
	for _, e := range exposures {
		if err := r.register(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) register(e exposure.Exposure) error {
	methods, err := e.Methods()
	if err != nil {
		return &api.ConfigurationError{Message: "failed to discover methods", Err: err}
	}
	snap := e.Snapshot()

	var errs []error
	for _, m := range methods {
		p, err := planMethod(snap, m)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if p == nil {
			logging.Debug("Registry", "Method %s excluded by method filter", m)
			continue
		}
		for _, verb := range p.verbs {
			if err := r.publish(snap, p, verb); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) publish(snap *exposure.Snapshot, p *plan, verb string) error {
	m := p.method
	paths := p.paths
	compile := sync.OnceValues(func() (*api.Endpoint, error) {
		return r.compile(snap, m, verb, paths)
	})

	keys := make([]endpoint.Key, 0, len(paths))
	if err := r.claim(m, verb, paths, &keys); err != nil {
		return err
	}

	for _, key := range keys {
		if r.lazy {
			if err := r.table.Defer(key, compile); err != nil {
				return &api.ConfigurationError{Method: m.String(), Err: err}
			}
			continue
		}
		if _, err := r.table.GetOrCompile(key, compile); err != nil {
			return err
		}
	}
	return nil
}

// claim records m as the owner of its route keys. A key owned by a
// different target is a duplicate route, even when both share a display
// name; a key already owned by the same target under an earlier exposure
// keeps the earlier descriptor.
func (r *Registry) claim(m *api.MethodInfo, verb string, paths []string, keys *[]endpoint.Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, path := range paths {
		key := endpoint.NewKey(verb, path)
		if owner, exists := r.owners[key]; exists {
			if !owner.SameTarget(m) {
				existing, conflict := owner.String(), m.String()
				if existing == conflict {
					existing, conflict = owner.Target(), m.Target()
				}
				return &api.DuplicateRouteError{Verb: key.Verb, Route: key.Path, Existing: existing, Conflict: conflict}
			}
			logging.Warn("Registry", "Route %s exposed again by %s, keeping first registration", key, m)
			continue
		}
		*keys = append(*keys, key)
	}
	for _, key := range *keys {
		r.owners[key] = m
	}
	return nil
}

func (r *Registry) compile(snap *exposure.Snapshot, m *api.MethodInfo, verb string, paths []string) (*api.Endpoint, error) {
	_, span := r.tracer.Start(context.Background(), "registry.compile", trace.WithAttributes(
		attribute.String("rpc.method", m.String()),
		attribute.String("http.request.method", verb),
		attribute.StringSlice("http.routes", paths),
	))
	defer span.End()

	ep, err := build(snap, m, verb, paths)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logging.Error("Registry", err, "Failed to compile %s %s", verb, m)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("rpc.authorizations", len(ep.Authorizations)),
		attribute.Int("rpc.filters", len(ep.Filters)),
	)
	logging.Debug("Registry", "Compiled %s %v -> %s (%d authorizations, %d filters)", verb, paths, m, len(ep.Authorizations), len(ep.Filters))
	return ep, nil
}
