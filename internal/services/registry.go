package services

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"sync"

	"rpcexpose/internal/api"
	"rpcexpose/pkg/logging"
)

// Constructor produces a new service instance for one call.
type Constructor func(ctx context.Context) (any, error)

// Provider implements api.ServiceActivator on top of a constructor registry.
type Provider struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
	singletons   map[string]any
}

var _ api.ServiceActivator = (*Provider)(nil)

// NewProvider creates an empty Provider.
func NewProvider() *Provider {
	return &Provider{
		constructors: make(map[string]Constructor),
		singletons:   make(map[string]any),
	}
}

// Register binds a constructor to a service name.
func (p *Provider) Register(name string, ctor Constructor) error {
	if ctor == nil {
		return fmt.Errorf("cannot register nil constructor for %s", name)
	}
	if name == "" {
		return fmt.Errorf("constructor has empty service name")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.constructors[name]; exists {
		return fmt.Errorf("constructor for %s already registered", name)
	}
	p.constructors[name] = ctor
	return nil
}

// Has reports whether a constructor is registered for name.
func (p *Provider) Has(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.constructors[name]
	return ok
}

// Activate returns the instance to invoke endpoint's method on.
func (p *Provider) Activate(ctx context.Context, endpoint *api.Endpoint) (any, func(), error) {
	if endpoint == nil || endpoint.Method == nil {
		return nil, nil, fmt.Errorf("cannot activate nil endpoint")
	}
	svc := endpoint.Method.Service

	// Factory functions.
	if svc.Type == nil {
		return nil, nil, nil
	}

	if endpoint.Activation == api.ActivationSingleton {
		inst, err := p.singleton(ctx, svc)
		return inst, nil, err
	}

	p.mu.RLock()
	ctor, hasCtor := p.constructors[svc.Name]
	p.mu.RUnlock()

	switch {
	case hasCtor:
		inst, err := ctor(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to construct %s: %w", svc.Name, err)
		}
		return inst, closer(svc.Name, inst), nil
	case svc.Instance != nil:
		return svc.Instance, nil, nil
	default:
		inst := newZero(svc.Type)
		return inst, closer(svc.Name, inst), nil
	}
}

func (p *Provider) singleton(ctx context.Context, svc api.ServiceInfo) (any, error) {
	if svc.Instance != nil {
		return svc.Instance, nil
	}

	p.mu.RLock()
	inst, ok := p.singletons[svc.Name]
	ctor, hasCtor := p.constructors[svc.Name]
	p.mu.RUnlock()
	if ok {
		return inst, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if inst, ok := p.singletons[svc.Name]; ok {
		return inst, nil
	}
	if hasCtor {
		created, err := ctor(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to construct %s: %w", svc.Name, err)
		}
		inst = created
	} else {
		inst = newZero(svc.Type)
	}
	p.singletons[svc.Name] = inst
	logging.Debug("Services", "Created singleton instance of %s", svc.Name)
	return inst, nil
}

// Close closes every singleton that implements io.Closer.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for name, inst := range p.singletons {
		if c, ok := inst.(io.Closer); ok {
			if err := c.Close(); err != nil {
				logging.Warn("Services", "Failed to close %s: %v", name, err)
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}
	p.singletons = make(map[string]any)
	return firstErr
}

// newZero allocates a zero value of t. Pointer types yield a pointer to a
// fresh zero element.
func newZero(t reflect.Type) any {
	if t.Kind() == reflect.Pointer {
		return reflect.New(t.Elem()).Interface()
	}
	return reflect.New(t).Interface()
}

func closer(name string, inst any) func() {
	c, ok := inst.(io.Closer)
	if !ok {
		return nil
	}
	return func() {
		if err := c.Close(); err != nil {
			logging.Warn("Services", "Failed to close per-call instance of %s: %v", name, err)
		}
	}
}
