// Package endpoint holds the concurrent route table mapping (verb, path)
// keys to compiled endpoint descriptors.
//
// Entries are published at most once per key. Concurrent first access to
// the same key is deduplicated with singleflight and the winner is
// published with LoadOrStore, so every caller observes the same
// *api.Endpoint. A compile function may still run more than once when a
// flight finishes between a caller's miss and its own flight; only one
// result is ever retained.
package endpoint

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"rpcexpose/internal/api"
	"rpcexpose/pkg/logging"
)

// Key identifies a route.
type Key struct {
	Verb string
	Path string
}

// NewKey builds a route key with a normalized verb and path.
func NewKey(verb, path string) Key {
	v, _ := api.NormalizeVerb(verb)
	return Key{Verb: v, Path: NormalizePath(path)}
}

func (k Key) String() string {
	return k.Verb + " " + k.Path
}

// NormalizePath joins path segments with single slashes and a leading slash.
func NormalizePath(parts ...string) string {
	var segments []string
	for _, part := range parts {
		for _, s := range strings.Split(part, "/") {
			if s != "" {
				segments = append(segments, s)
			}
		}
	}
	return "/" + strings.Join(segments, "/")
}

// CompileFunc builds the descriptor for a key.
type CompileFunc func() (*api.Endpoint, error)

// Route is one entry of the table as reported by Routes.
type Route struct {
	Key      Key
	Endpoint *api.Endpoint
	// Compiled is false for deferred entries that were never accessed.
	Compiled bool
}

// Option configures a Table.
type Option func(*Table)

// WithCompileHook registers a function called once for every descriptor
// published to the table.
func WithCompileHook(hook func(Key, *api.Endpoint)) Option {
	return func(t *Table) {
		t.onCompile = hook
	}
}

// Table is the concurrent route table.
type Table struct {
	entries  sync.Map // Key -> *api.Endpoint
	deferred sync.Map // Key -> CompileFunc
	group    singleflight.Group
	size     atomic.Int64

	onCompile func(Key, *api.Endpoint)
}

// NewTable creates an empty Table.
func NewTable(opts ...Option) *Table {
	t := &Table{}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Lookup returns the compiled descriptor for key. The boolean is false when
// no descriptor has been published for it.
func (t *Table) Lookup(key Key) (*api.Endpoint, bool) {
	if v, ok := t.entries.Load(key); ok {
		return v.(*api.Endpoint), true
	}
	return nil, false
}

// GetOrCompile returns the descriptor for key, compiling and publishing it
// when absent. Every caller racing on the same key receives the descriptor
// that was published first. Compile errors are returned and nothing is
// published.
func (t *Table) GetOrCompile(key Key, compile CompileFunc) (*api.Endpoint, error) {
	if ep, ok := t.Lookup(key); ok {
		return ep, nil
	}

	v, err, _ := t.group.Do(key.String(), func() (interface{}, error) {
		if ep, ok := t.Lookup(key); ok {
			return ep, nil
		}
		ep, err := compile()
		if err != nil {
			return nil, err
		}
		if ep == nil {
			return nil, fmt.Errorf("compile of %s returned no endpoint", key)
		}
		actual, loaded := t.entries.LoadOrStore(key, ep)
		if !loaded {
			t.size.Add(1)
			if t.onCompile != nil {
				t.onCompile(key, ep)
			}
			logging.Debug("EndpointTable", "Published %s -> %s", key, ep.Method)
		}
		return actual, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*api.Endpoint), nil
}

// Defer registers compile to run on first access of key through Resolve.
// It fails when key is already known to the table.
func (t *Table) Defer(key Key, compile CompileFunc) error {
	if _, ok := t.entries.Load(key); ok {
		return fmt.Errorf("route %s already compiled", key)
	}
	if _, loaded := t.deferred.LoadOrStore(key, compile); loaded {
		return fmt.Errorf("route %s already registered", key)
	}
	return nil
}

// Resolve returns the descriptor for key, compiling a deferred entry on
// first access. found is false for keys the table does not know.
func (t *Table) Resolve(key Key) (ep *api.Endpoint, found bool, err error) {
	if ep, ok := t.Lookup(key); ok {
		return ep, true, nil
	}
	v, ok := t.deferred.Load(key)
	if !ok {
		return nil, false, nil
	}
	ep, err = t.GetOrCompile(key, v.(CompileFunc))
	if err != nil {
		return nil, true, err
	}
	return ep, true, nil
}

// Len returns the number of published descriptors.
func (t *Table) Len() int {
	return int(t.size.Load())
}

// Routes returns every known key, compiled or deferred, sorted by path and verb.
func (t *Table) Routes() []Route {
	seen := make(map[Key]bool)
	var routes []Route

	t.entries.Range(func(k, v any) bool {
		key := k.(Key)
		seen[key] = true
		routes = append(routes, Route{Key: key, Endpoint: v.(*api.Endpoint), Compiled: true})
		return true
	})
	t.deferred.Range(func(k, _ any) bool {
		key := k.(Key)
		if !seen[key] {
			routes = append(routes, Route{Key: key})
		}
		return true
	})

	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Key.Path != routes[j].Key.Path {
			return routes[i].Key.Path < routes[j].Key.Path
		}
		return routes[i].Key.Verb < routes[j].Key.Verb
	})
	return routes
}

// CompileAll compiles every deferred entry. It returns the first error.
func (t *Table) CompileAll() error {
	var firstErr error
	t.deferred.Range(func(k, v any) bool {
		if _, err := t.GetOrCompile(k.(Key), v.(CompileFunc)); err != nil {
			firstErr = err
			return false
		}
		return true
	})
	return firstErr
}
