// Package discovery enumerates the exposable methods of Go services and
// functions using reflection.
//
// Every exported method of a service's method set is a candidate, except
// the ones used for wiring (RouteOptions, Close). Methods may declare their
// route options by implementing Annotated on the service type.
//
// Supported shapes:
//
//	func (s *Svc) M(ctx context.Context, a A, b B) (R, error)
//	func (s *Svc) M(a A) R
//	func (s *Svc) M() error
//	func (s *Svc) M()
//
// The leading context.Context is optional and injected by the dispatcher.
// A trailing error return is reported as a handler fault.
package discovery

import (
	"context"
	"fmt"
	"reflect"

	"rpcexpose/internal/api"
	"rpcexpose/pkg/logging"
)

// Annotated is implemented by services that declare per-method route
// options, keyed by Go method name.
type Annotated interface {
	RouteOptions() map[string]api.MethodOptions
}

var (
	contextType   = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType     = reflect.TypeOf((*error)(nil)).Elem()
	annotatedType = reflect.TypeOf((*Annotated)(nil)).Elem()
)

// wiringMethods are never exposed.
var wiringMethods = map[string]bool{
	"RouteOptions": true,
	"Close":        true,
}

// ServiceName returns the name used for a service type: the name of the
// type with pointers removed.
func ServiceName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

// MethodSetType returns the type whose method set is exposed for t.
// Struct types are promoted to their pointer so that pointer receiver
// methods are included.
func MethodSetType(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Struct {
		return reflect.PointerTo(t)
	}
	return t
}

// Methods returns the candidate methods of service, for an exposed instance.
func Methods(service any) ([]*api.MethodInfo, error) {
	if service == nil {
		return nil, fmt.Errorf("cannot discover methods of nil service")
	}
	t := reflect.TypeOf(service)
	return methods(api.ServiceInfo{Name: ServiceName(t), Type: t, Instance: service}, options(service, t))
}

// MethodsOfType returns the candidate methods of t. Route options are read
// from the zero value of t when it implements Annotated.
func MethodsOfType(t reflect.Type) ([]*api.MethodInfo, error) {
	if t == nil {
		return nil, fmt.Errorf("cannot discover methods of nil type")
	}
	return methods(api.ServiceInfo{Name: ServiceName(t), Type: t}, options(nil, t))
}

// OfService returns the candidate methods described by info, preserving the
// name and instance already set on it.
func OfService(info api.ServiceInfo) ([]*api.MethodInfo, error) {
	if info.Type == nil {
		return nil, fmt.Errorf("service %q has no type", info.Name)
	}
	return methods(info, options(info.Instance, info.Type))
}

func options(instance any, t reflect.Type) map[string]api.MethodOptions {
	if a, ok := instance.(Annotated); ok {
		return a.RouteOptions()
	}
	mt := MethodSetType(t)
	if !mt.Implements(annotatedType) {
		return nil
	}
	var zero reflect.Value
	if mt.Kind() == reflect.Pointer {
		zero = reflect.New(mt.Elem())
	} else {
		zero = reflect.Zero(mt)
	}
	if a, ok := zero.Interface().(Annotated); ok {
		return a.RouteOptions()
	}
	return nil
}

func methods(info api.ServiceInfo, opts map[string]api.MethodOptions) ([]*api.MethodInfo, error) {
	mt := MethodSetType(info.Type)
	out := make([]*api.MethodInfo, 0, mt.NumMethod())

	for i := 0; i < mt.NumMethod(); i++ {
		m := mt.Method(i)
		if wiringMethods[m.Name] {
			continue
		}

		ft := m.Type
		// Interface method types do not carry the receiver.
		first := 1
		if mt.Kind() == reflect.Interface {
			first = 0
		}
		in := make([]reflect.Type, 0, ft.NumIn()-first)
		for j := first; j < ft.NumIn(); j++ {
			in = append(in, ft.In(j))
		}
		outs := make([]reflect.Type, 0, ft.NumOut())
		for j := 0; j < ft.NumOut(); j++ {
			outs = append(outs, ft.Out(j))
		}

		name := m.Name
		mi, err := describe(info, name, opts[name], in, outs, ft.IsVariadic())
		if err != nil {
			logging.Debug("Discovery", "Skipping %s.%s: %v", info.Name, name, err)
			continue
		}
		mi.Invoke = methodInvoker(name, mi.TakesContext, mi.Result != nil, mi.ReturnsError)
		out = append(out, mi)
	}

	// reflect orders methods lexicographically.
	for _, m := range out {
		if err := validateParams(m); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Func describes a plain function exposed under a factory path.
func Func(servicePath, name string, fn any, opts api.MethodOptions) (*api.MethodInfo, error) {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func || fv.IsNil() {
		return nil, &api.ConfigurationError{Method: servicePath + "." + name, Message: fmt.Sprintf("expected a function, got %T", fn)}
	}
	ft := fv.Type()

	in := make([]reflect.Type, 0, ft.NumIn())
	for j := 0; j < ft.NumIn(); j++ {
		in = append(in, ft.In(j))
	}
	outs := make([]reflect.Type, 0, ft.NumOut())
	for j := 0; j < ft.NumOut(); j++ {
		outs = append(outs, ft.Out(j))
	}

	m, err := describe(api.ServiceInfo{Name: servicePath}, name, opts, in, outs, ft.IsVariadic())
	if err != nil {
		return nil, &api.ConfigurationError{Method: servicePath + "." + name, Err: err}
	}
	if err := validateParams(m); err != nil {
		return nil, err
	}
	hasResult, returnsError, takesContext := m.Result != nil, m.ReturnsError, m.TakesContext
	m.Invoke = func(ctx context.Context, _ any, args []reflect.Value) (any, error) {
		return call(ctx, fv, takesContext, hasResult, returnsError, args)
	}
	return m, nil
}

func describe(svc api.ServiceInfo, name string, opts api.MethodOptions, in, outs []reflect.Type, variadic bool) (*api.MethodInfo, error) {
	if variadic {
		return &api.MethodInfo{Service: svc, Name: name}, fmt.Errorf("variadic methods are not supported")
	}

	m := &api.MethodInfo{Service: svc, Name: name, Options: opts}

	if len(in) > 0 && in[0] == contextType {
		m.TakesContext = true
		in = in[1:]
	}
	for i, t := range in {
		if !bindable(t) {
			return m, fmt.Errorf("parameter %d has unsupported type %s", i, t)
		}
		paramName := fmt.Sprintf("arg%d", i)
		if i < len(opts.Params) && opts.Params[i] != "" {
			paramName = opts.Params[i]
		}
		m.Parameters = append(m.Parameters, api.Parameter{Name: paramName, Type: t, Position: i})
	}

	switch len(outs) {
	case 0:
	case 1:
		if outs[0] == errorType {
			m.ReturnsError = true
		} else {
			m.Result = outs[0]
		}
	case 2:
		if outs[1] != errorType {
			return m, fmt.Errorf("second return value must be error, got %s", outs[1])
		}
		m.Result = outs[0]
		m.ReturnsError = true
	default:
		return m, fmt.Errorf("too many return values (%d)", len(outs))
	}
	return m, nil
}

func validateParams(m *api.MethodInfo) error {
	if len(m.Options.Params) > len(m.Parameters) {
		return &api.ConfigurationError{
			Method:  m.String(),
			Message: fmt.Sprintf("%d parameter names declared for %d parameters", len(m.Options.Params), len(m.Parameters)),
		}
	}
	seen := make(map[string]bool, len(m.Parameters))
	for _, p := range m.Parameters {
		if seen[p.Name] {
			return &api.ConfigurationError{Method: m.String(), Message: fmt.Sprintf("duplicate parameter name %q", p.Name)}
		}
		seen[p.Name] = true
	}
	return nil
}

func bindable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Chan, reflect.Func, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return false
	}
	return true
}

func methodInvoker(name string, takesContext, hasResult, returnsError bool) api.Invoker {
	return func(ctx context.Context, instance any, args []reflect.Value) (any, error) {
		if instance == nil {
			return nil, fmt.Errorf("no instance to invoke %s on", name)
		}
		recv := reflect.ValueOf(instance)
		fn := recv.MethodByName(name)
		if !fn.IsValid() && recv.Kind() != reflect.Pointer {
			// Pointer receiver methods on a value instance.
			ptr := reflect.New(recv.Type())
			ptr.Elem().Set(recv)
			fn = ptr.MethodByName(name)
		}
		if !fn.IsValid() {
			return nil, fmt.Errorf("%T has no method %s", instance, name)
		}
		return call(ctx, fn, takesContext, hasResult, returnsError, args)
	}
}

func call(ctx context.Context, fn reflect.Value, takesContext, hasResult, returnsError bool, args []reflect.Value) (any, error) {
	in := args
	if takesContext {
		if ctx == nil {
			ctx = context.Background()
		}
		in = make([]reflect.Value, 0, len(args)+1)
		in = append(in, reflect.ValueOf(ctx))
		in = append(in, args...)
	}

	out := fn.Call(in)

	var result any
	if hasResult {
		result = out[0].Interface()
	}
	if returnsError {
		if errVal := out[len(out)-1]; !errVal.IsNil() {
			return result, errVal.Interface().(error)
		}
	}
	return result, nil
}
