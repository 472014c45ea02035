// Package exposure is the setup surface of rpcexpose: a mutable builder
// accumulating cross-cutting policies, the immutable snapshots derived from
// it, and the exposure groups that bind services to a snapshot.
//
// Policies only apply to exposures declared after they were registered:
//
//	cfg := exposure.New(authz, services)
//	cfg.Prefix("math").Authorize("admin", "")
//	cfg.Expose(&DoubleMath{})        // /math/Add, requires admin
//	cfg.ClearAuthorization()
//	cfg.Expose(&IntMath{})           // /math/..., no authorization
//
// A Configuration is single-writer and meant to be used during startup
// only. Snapshots and exposures may be shared freely afterwards.
package exposure

import (
	"fmt"
	"reflect"

	"rpcexpose/internal/api"
	"rpcexpose/pkg/chain"
	"rpcexpose/pkg/logging"
)

// Configuration is the mutable policy builder.
type Configuration struct {
	authorizations chain.Chain[api.AuthorizationProvider]
	filters        chain.Chain[api.FilterProvider]
	methodFilters  chain.Chain[api.MethodFilter]
	prefixes       chain.Chain[api.PrefixFunc]
	headers        chain.Chain[api.ResponseHeader]

	defaultMethod api.DefaultMethod
	activation    api.ActivationMethod

	authProvider api.AuthorizationImplementationProvider
	services     api.ServiceActivator

	current   *Snapshot
	exposures []Exposure
}

// New creates a Configuration. authProvider backs Authorize and services
// is recorded on every snapshot for the dispatcher; either may be nil.
func New(authProvider api.AuthorizationImplementationProvider, services api.ServiceActivator) *Configuration {
	return &Configuration{
		defaultMethod: api.DefaultPostOnly,
		activation:    api.ActivationPerCall,
		authProvider:  authProvider,
		services:      services,
	}
}

func (c *Configuration) invalidate() {
	c.current = nil
}

// AddAuthorization appends an authorization provider.
func (c *Configuration) AddAuthorization(provider api.AuthorizationProvider) *Configuration {
	c.authorizations = c.authorizations.Add(provider)
	c.invalidate()
	return c
}

// Authorize requires role when set, else policy when set, else any
// authenticated caller, for every method exposed afterwards.
func (c *Configuration) Authorize(role, policy string) *Configuration {
	var check api.Authorization
	switch {
	case c.authProvider == nil:
		check = api.NewAuthorization("authorization provider missing", func(*api.RequestContext) (bool, error) {
			return false, fmt.Errorf("no authorization provider configured")
		})
	case role != "":
		check = c.authProvider.UserHasRole(role)
	case policy != "":
		check = c.authProvider.UserHasPolicy(policy)
	default:
		check = c.authProvider.Authorized()
	}
	checks := []api.Authorization{check}
	return c.AddAuthorization(func(*api.MethodConfiguration) []api.Authorization {
		return checks
	})
}

// ClearAuthorization removes every authorization provider.
func (c *Configuration) ClearAuthorization() *Configuration {
	c.authorizations = chain.Empty[api.AuthorizationProvider]()
	c.invalidate()
	return c
}

// AddPrefix appends a prefix generator.
func (c *Configuration) AddPrefix(generator api.PrefixFunc) *Configuration {
	c.prefixes = c.prefixes.Add(generator)
	c.invalidate()
	return c
}

// Prefix appends a constant prefix.
func (c *Configuration) Prefix(prefix string) *Configuration {
	prefixes := []string{prefix}
	return c.AddPrefix(func(api.ServiceInfo) []string { return prefixes })
}

// ClearPrefixes removes every prefix generator.
func (c *Configuration) ClearPrefixes() *Configuration {
	c.prefixes = chain.Empty[api.PrefixFunc]()
	c.invalidate()
	return c
}

// AddFilter appends a filter provider. Providers returning nil do not
// apply to the method being compiled.
func (c *Configuration) AddFilter(provider api.FilterProvider) *Configuration {
	c.filters = c.filters.Add(provider)
	c.invalidate()
	return c
}

// ApplyFilter applies the filters produced by factory to methods matching
// where. A nil where matches every method.
func (c *Configuration) ApplyFilter(factory api.FilterFactory, where api.MethodFilter) *Configuration {
	if where == nil {
		where = func(*api.MethodInfo) bool { return true }
	}
	return c.AddFilter(func(cfg *api.MethodConfiguration) api.FilterFactory {
		if where(cfg.Method) {
			return factory
		}
		return nil
	})
}

// ClearFilters removes every filter provider.
func (c *Configuration) ClearFilters() *Configuration {
	c.filters = chain.Empty[api.FilterProvider]()
	c.invalidate()
	return c
}

// AddMethodFilter appends a predicate; methods it rejects are not exposed.
func (c *Configuration) AddMethodFilter(predicate api.MethodFilter) *Configuration {
	c.methodFilters = c.methodFilters.Add(predicate)
	c.invalidate()
	return c
}

// ClearMethodFilters removes every method filter.
func (c *Configuration) ClearMethodFilters() *Configuration {
	c.methodFilters = chain.Empty[api.MethodFilter]()
	c.invalidate()
	return c
}

// AddResponseHeader appends a header set on every successful response.
func (c *Configuration) AddResponseHeader(name, value string) *Configuration {
	c.headers = c.headers.Add(api.ResponseHeader{Name: name, Value: value})
	c.invalidate()
	return c
}

// ClearResponseHeaders removes every response header.
func (c *Configuration) ClearResponseHeaders() *Configuration {
	c.headers = chain.Empty[api.ResponseHeader]()
	c.invalidate()
	return c
}

// SetDefaultVerb selects the verb of methods that do not declare one.
func (c *Configuration) SetDefaultVerb(method api.DefaultMethod) *Configuration {
	c.defaultMethod = method
	c.invalidate()
	return c
}

// SetActivation selects how service instances are produced per call.
func (c *Configuration) SetActivation(method api.ActivationMethod) *Configuration {
	c.activation = method
	c.invalidate()
	return c
}

// CurrentSnapshot returns the snapshot of the current state. Repeated calls
// return the same instance until the next mutation.
func (c *Configuration) CurrentSnapshot() *Snapshot {
	if c.current != nil {
		return c.current
	}
	c.current = &Snapshot{
		Authorizations:        c.authorizations,
		Filters:               c.filters,
		MethodFilters:         c.methodFilters,
		Prefixes:              c.prefixes,
		Headers:               c.headers,
		DefaultMethod:         c.defaultMethod,
		Activation:            c.activation,
		AuthorizationProvider: c.authProvider,
		Services:              c.services,
	}
	return c.current
}

// Services returns the service activator recorded on snapshots.
func (c *Configuration) Services() api.ServiceActivator {
	return c.services
}

// Exposures returns every exposure registered so far, in order.
func (c *Configuration) Exposures() []Exposure {
	out := make([]Exposure, len(c.exposures))
	copy(out, c.exposures)
	return out
}

func (c *Configuration) register(e Exposure) {
	c.exposures = append(c.exposures, e)
}

// Expose exposes the methods of service, an instance or pointer to one.
func (c *Configuration) Expose(service any) *TypeExposure {
	t := reflect.TypeOf(service)
	e := &TypeExposure{snapshot: c.CurrentSnapshot()}
	if t == nil {
		e.err = fmt.Errorf("cannot expose nil service")
	} else {
		e.service = api.ServiceInfo{Name: serviceName(t), Type: t, Instance: service}
	}
	c.register(e)
	logging.Debug("Exposure", "Exposed service %s", e.service.Name)
	return e
}

// ExposeType exposes the methods of t. Instances are produced per call by
// the service activator.
func (c *Configuration) ExposeType(t reflect.Type) *TypeExposure {
	e := &TypeExposure{snapshot: c.CurrentSnapshot()}
	if t == nil {
		e.err = fmt.Errorf("cannot expose nil type")
	} else {
		e.service = api.ServiceInfo{Name: serviceName(t), Type: t}
	}
	c.register(e)
	logging.Debug("Exposure", "Exposed type %s", e.service.Name)
	return e
}

// ExposeTypes exposes every type of a set.
func (c *Configuration) ExposeTypes(types ...reflect.Type) *TypeSetExposure {
	e := &TypeSetExposure{snapshot: c.CurrentSnapshot(), types: types}
	c.register(e)
	logging.Debug("Exposure", "Exposed %d types", len(types))
	return e
}

// ExposeFactory exposes plain functions under path.
func (c *Configuration) ExposeFactory(path string) *FactoryExposure {
	e := &FactoryExposure{snapshot: c.CurrentSnapshot(), path: path}
	c.register(e)
	logging.Debug("Exposure", "Exposed factory %s", path)
	return e
}
