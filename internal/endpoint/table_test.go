package endpoint

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpcexpose/internal/api"
)

func newEndpoint(name string) *api.Endpoint {
	return &api.Endpoint{MethodConfiguration: api.MethodConfiguration{
		Method: &api.MethodInfo{Service: api.ServiceInfo{Name: "svc"}, Name: name},
		Verb:   api.VerbPost,
		Path:   "/" + name,
	}}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		parts []string
		want  string
	}{
		{parts: []string{"Add"}, want: "/Add"},
		{parts: []string{"math", "Add"}, want: "/math/Add"},
		{parts: []string{"/math/", "/Add"}, want: "/math/Add"},
		{parts: []string{"", "Add"}, want: "/Add"},
		{parts: []string{"api//v1", "orders/list"}, want: "/api/v1/orders/list"},
		{parts: nil, want: "/"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePath(tt.parts...))
		})
	}
}

func TestNewKey(t *testing.T) {
	assert.Equal(t, Key{Verb: "POST", Path: "/math/Add"}, NewKey("post", "math/Add"))
	assert.Equal(t, "GET /x", NewKey("GET", "/x").String())
}

func TestTable_LookupMissing(t *testing.T) {
	table := NewTable()
	ep, ok := table.Lookup(NewKey("POST", "/nothing"))
	assert.False(t, ok)
	assert.Nil(t, ep)

	ep, found, err := table.Resolve(NewKey("POST", "/nothing"))
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, ep)
}

func TestTable_GetOrCompile(t *testing.T) {
	table := NewTable()
	key := NewKey("POST", "/Add")
	first := newEndpoint("Add")

	got, err := table.GetOrCompile(key, func() (*api.Endpoint, error) { return first, nil })
	require.NoError(t, err)
	assert.Same(t, first, got)

	// Existing entries are returned without compiling again.
	got, err = table.GetOrCompile(key, func() (*api.Endpoint, error) {
		t.Fatal("compile must not run for a published key")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Same(t, first, got)
	assert.Equal(t, 1, table.Len())
}

func TestTable_GetOrCompileError(t *testing.T) {
	table := NewTable()
	key := NewKey("POST", "/Broken")
	boom := errors.New("boom")

	_, err := table.GetOrCompile(key, func() (*api.Endpoint, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	_, ok := table.Lookup(key)
	assert.False(t, ok)

	_, err = table.GetOrCompile(key, func() (*api.Endpoint, error) { return nil, nil })
	assert.Error(t, err)
	assert.Equal(t, 0, table.Len())
}

func TestTable_ConcurrentFirstAccess(t *testing.T) {
	const callers = 64

	var published atomic.Int32
	table := NewTable(WithCompileHook(func(Key, *api.Endpoint) { published.Add(1) }))
	key := NewKey("POST", "/Add")

	var compiles atomic.Int32
	compile := func() (*api.Endpoint, error) {
		compiles.Add(1)
		return newEndpoint("Add"), nil
	}

	start := make(chan struct{})
	results := make([]*api.Endpoint, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			ep, err := table.GetOrCompile(key, compile)
			assert.NoError(t, err)
			results[i] = ep
		}(i)
	}
	close(start)
	wg.Wait()

	for _, ep := range results {
		assert.Same(t, results[0], ep)
	}
	assert.Equal(t, 1, table.Len())
	assert.Equal(t, int32(1), published.Load())
	assert.GreaterOrEqual(t, compiles.Load(), int32(1))

	stored, ok := table.Lookup(key)
	require.True(t, ok)
	assert.Same(t, results[0], stored)
}

func TestTable_Deferred(t *testing.T) {
	table := NewTable()
	key := NewKey("GET", "/List")
	ep := newEndpoint("List")

	var compiles atomic.Int32
	require.NoError(t, table.Defer(key, func() (*api.Endpoint, error) {
		compiles.Add(1)
		return ep, nil
	}))
	assert.Error(t, table.Defer(key, func() (*api.Endpoint, error) { return ep, nil }))

	routes := table.Routes()
	require.Len(t, routes, 1)
	assert.False(t, routes[0].Compiled)
	assert.Equal(t, 0, table.Len())

	got, found, err := table.Resolve(key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Same(t, ep, got)

	got, _, _ = table.Resolve(key)
	assert.Same(t, ep, got)
	assert.Equal(t, int32(1), compiles.Load())

	routes = table.Routes()
	require.Len(t, routes, 1)
	assert.True(t, routes[0].Compiled)

	assert.Error(t, table.Defer(key, func() (*api.Endpoint, error) { return ep, nil }))
}

func TestTable_CompileAllAndRoutesOrder(t *testing.T) {
	table := NewTable()
	require.NoError(t, table.Defer(NewKey("POST", "/b"), func() (*api.Endpoint, error) { return newEndpoint("b"), nil }))
	require.NoError(t, table.Defer(NewKey("GET", "/b"), func() (*api.Endpoint, error) { return newEndpoint("b"), nil }))
	_, err := table.GetOrCompile(NewKey("POST", "/a"), func() (*api.Endpoint, error) { return newEndpoint("a"), nil })
	require.NoError(t, err)

	require.NoError(t, table.CompileAll())
	assert.Equal(t, 3, table.Len())

	var keys []string
	for _, r := range table.Routes() {
		keys = append(keys, r.Key.String())
		assert.True(t, r.Compiled)
	}
	assert.Equal(t, []string{"POST /a", "GET /b", "POST /b"}, keys)
}
