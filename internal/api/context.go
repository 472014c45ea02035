package api

import (
	"context"
	"net/http"
	"reflect"
	"sync"
)

// RequestContext carries the state of one call through authorization,
// filters and invocation. It is owned by the dispatcher goroutine serving
// the call; filters may read and modify it but must not retain it.
type RequestContext struct {
	ctx context.Context

	RequestID string
	Call      *Call
	Endpoint  *Endpoint
	Principal *Principal

	// Instance is the activated service instance, nil for factory functions.
	Instance any
	// Args are the bound arguments, populated before the filter stack runs.
	Args []reflect.Value

	// Result is the value to serialize. A filter that short-circuits the
	// pipeline sets it together with HasResult.
	Result    any
	HasResult bool

	// Status overrides the endpoint's success status when non-zero.
	Status int
	// Header collects headers added by filters. Endpoint headers are merged
	// on top after a successful invocation.
	Header http.Header

	itemsMu sync.Mutex
	items   map[string]any
}

// NewRequestContext creates the context for call.
func NewRequestContext(ctx context.Context, requestID string, call *Call) *RequestContext {
	rc := &RequestContext{
		ctx:       ctx,
		RequestID: requestID,
		Call:      call,
		Header:    http.Header{},
	}
	if call != nil {
		rc.Principal = call.Principal
	}
	return rc
}

// Context returns the call's context.
func (rc *RequestContext) Context() context.Context {
	if rc.ctx == nil {
		return context.Background()
	}
	return rc.ctx
}

// SetContext replaces the call's context, e.g. to attach a deadline.
func (rc *RequestContext) SetContext(ctx context.Context) {
	rc.ctx = ctx
}

// SetResult stages v as the call result.
func (rc *RequestContext) SetResult(v any) {
	rc.Result = v
	rc.HasResult = true
}

// Set stores a value for later filters.
func (rc *RequestContext) Set(key string, value any) {
	rc.itemsMu.Lock()
	defer rc.itemsMu.Unlock()
	if rc.items == nil {
		rc.items = make(map[string]any)
	}
	rc.items[key] = value
}

// Get returns a value stored by Set.
func (rc *RequestContext) Get(key string) (any, bool) {
	rc.itemsMu.Lock()
	defer rc.itemsMu.Unlock()
	v, ok := rc.items[key]
	return v, ok
}
