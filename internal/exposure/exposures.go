package exposure

import (
	"errors"
	"reflect"
	"strings"

	"rpcexpose/internal/api"
	"rpcexpose/internal/discovery"
)

// Exposure is one exposure group: a set of candidate methods bound to the
// snapshot that was current when the group was declared.
type Exposure interface {
	Snapshot() *Snapshot
	Methods() ([]*api.MethodInfo, error)
}

func serviceName(t reflect.Type) string {
	return discovery.ServiceName(t)
}

// TypeExposure exposes the methods of one service.
type TypeExposure struct {
	snapshot *Snapshot
	service  api.ServiceInfo
	where    []api.MethodFilter
	err      error
}

// As overrides the service name seen by prefix generators.
func (e *TypeExposure) As(name string) *TypeExposure {
	if name != "" {
		e.service.Name = name
	}
	return e
}

// Where restricts the exposure to methods matching predicate.
func (e *TypeExposure) Where(predicate api.MethodFilter) *TypeExposure {
	if predicate != nil {
		e.where = append(e.where, predicate)
	}
	return e
}

// Snapshot implements Exposure.
func (e *TypeExposure) Snapshot() *Snapshot {
	return e.snapshot
}

// Service returns the exposed service.
func (e *TypeExposure) Service() api.ServiceInfo {
	return e.service
}

// Methods implements Exposure.
func (e *TypeExposure) Methods() ([]*api.MethodInfo, error) {
	if e.err != nil {
		return nil, e.err
	}
	methods, err := discovery.OfService(e.service)
	if err != nil {
		return nil, err
	}
	return filterMethods(methods, e.where), nil
}

// TypeSetExposure exposes the methods of several types.
type TypeSetExposure struct {
	snapshot *Snapshot
	types    []reflect.Type
	include  []func(reflect.Type) bool
	where    []api.MethodFilter
}

// Include restricts the set to types matching predicate.
func (e *TypeSetExposure) Include(predicate func(reflect.Type) bool) *TypeSetExposure {
	if predicate != nil {
		e.include = append(e.include, predicate)
	}
	return e
}

// Where restricts the exposure to methods matching predicate.
func (e *TypeSetExposure) Where(predicate api.MethodFilter) *TypeSetExposure {
	if predicate != nil {
		e.where = append(e.where, predicate)
	}
	return e
}

// Snapshot implements Exposure.
func (e *TypeSetExposure) Snapshot() *Snapshot {
	return e.snapshot
}

// Methods implements Exposure.
func (e *TypeSetExposure) Methods() ([]*api.MethodInfo, error) {
	var out []*api.MethodInfo
	var errs []error
	for _, t := range e.types {
		if t == nil || !typeIncluded(t, e.include) {
			continue
		}
		methods, err := discovery.MethodsOfType(t)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, filterMethods(methods, e.where)...)
	}
	return out, errors.Join(errs...)
}

func typeIncluded(t reflect.Type, predicates []func(reflect.Type) bool) bool {
	for _, p := range predicates {
		if !p(t) {
			return false
		}
	}
	return true
}

func filterMethods(methods []*api.MethodInfo, where []api.MethodFilter) []*api.MethodInfo {
	if len(where) == 0 {
		return methods
	}
	out := methods[:0]
	for _, m := range methods {
		if methodIncluded(m, where) {
			out = append(out, m)
		}
	}
	return out
}

func methodIncluded(m *api.MethodInfo, where []api.MethodFilter) bool {
	for _, w := range where {
		if !w(m) {
			return false
		}
	}
	return true
}

// FactoryExposure exposes plain functions under a common path.
type FactoryExposure struct {
	snapshot *Snapshot
	path     string
	methods  []*api.MethodInfo
	errs     []error
}

// Func exposes fn as method name, reachable at the factory path followed
// by name (or the declared path). At most one MethodOptions may be given.
func (e *FactoryExposure) Func(name string, fn any, opts ...api.MethodOptions) *FactoryExposure {
	var o api.MethodOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	fragment := o.Path
	if fragment == "" {
		fragment = name
	}
	if e.path != "" {
		o.Path = strings.Trim(e.path, "/") + "/" + strings.TrimLeft(fragment, "/")
	}
	m, err := discovery.Func(e.path, name, fn, o)
	if err != nil {
		e.errs = append(e.errs, err)
		return e
	}
	e.methods = append(e.methods, m)
	return e
}

// Snapshot implements Exposure.
func (e *FactoryExposure) Snapshot() *Snapshot {
	return e.snapshot
}

// Methods implements Exposure.
func (e *FactoryExposure) Methods() ([]*api.MethodInfo, error) {
	if err := errors.Join(e.errs...); err != nil {
		return nil, err
	}
	out := make([]*api.MethodInfo, len(e.methods))
	copy(out, e.methods)
	return out, nil
}
