// Package authz implements the standard authorization checks attached to
// endpoints by the configuration builder.
//
// Three checks are provided: any authenticated caller, a caller holding a
// role, and a caller satisfying a named policy. Policies are either CEL
// expressions, compiled once when the provider is created, or Go functions.
//
// CEL policies see two variables:
//
//	principal  {subject: string, roles: list(string), claims: map(string, string)}
//	request    {verb, path, route, method: string, header: map(string, string)}
//
// Example:
//
//	"admin" in principal.roles || principal.claims["tenant"] == "acme"
package authz

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"

	"rpcexpose/internal/api"
	"rpcexpose/pkg/logging"
)

// PolicyFunc is a policy implemented in Go.
type PolicyFunc func(rc *api.RequestContext) (bool, error)

// Provider implements api.AuthorizationImplementationProvider.
type Provider struct {
	env *cel.Env

	mu       sync.RWMutex
	policies map[string]PolicyFunc
}

var _ api.AuthorizationImplementationProvider = (*Provider)(nil)

// NewProvider compiles the given CEL policies, keyed by policy name.
func NewProvider(policies map[string]string) (*Provider, error) {
	env, err := cel.NewEnv(
		cel.Variable("principal", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("request", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	p := &Provider{env: env, policies: make(map[string]PolicyFunc, len(policies))}

	names := make([]string, 0, len(policies))
	for name := range policies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := p.AddExpression(name, policies[name]); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// AddExpression compiles a CEL expression and registers it as policy name.
func (p *Provider) AddExpression(name, expression string) error {
	ast, iss := p.env.Compile(expression)
	if iss != nil && iss.Err() != nil {
		return &api.ConfigurationError{Message: fmt.Sprintf("policy %q", name), Err: iss.Err()}
	}
	if ast.OutputType() != cel.BoolType && ast.OutputType() != cel.DynType {
		return &api.ConfigurationError{Message: fmt.Sprintf("policy %q must evaluate to bool, got %s", name, ast.OutputType())}
	}
	program, err := p.env.Program(ast)
	if err != nil {
		return &api.ConfigurationError{Message: fmt.Sprintf("policy %q", name), Err: err}
	}

	return p.AddPolicy(name, func(rc *api.RequestContext) (bool, error) {
		out, _, err := program.Eval(map[string]any{
			"principal": principalVars(rc.Principal),
			"request":   requestVars(rc),
		})
		if err != nil {
			return false, fmt.Errorf("CEL evaluation failed: %w", err)
		}
		result, ok := out.Value().(bool)
		if !ok {
			return false, fmt.Errorf("CEL expression must return boolean, got %T", out.Value())
		}
		return result, nil
	})
}

// AddPolicy registers a Go policy under name.
func (p *Provider) AddPolicy(name string, fn PolicyFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("policy needs a name and a function")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.policies[name]; exists {
		return &api.ConfigurationError{Message: fmt.Sprintf("policy %q already registered", name)}
	}
	p.policies[name] = fn
	logging.Debug("Authz", "Registered policy %s", name)
	return nil
}

// Policies returns the registered policy names, sorted.
func (p *Provider) Policies() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.policies))
	for name := range p.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Authorized requires an authenticated caller.
func (p *Provider) Authorized() api.Authorization {
	return api.NewAuthorization("authenticated", func(rc *api.RequestContext) (bool, error) {
		return rc.Principal.Authenticated(), nil
	})
}

// UserHasRole requires an authenticated caller holding role.
func (p *Provider) UserHasRole(role string) api.Authorization {
	return api.NewAuthorization("role "+role, func(rc *api.RequestContext) (bool, error) {
		return rc.Principal.Authenticated() && rc.Principal.HasRole(role), nil
	})
}

// UserHasPolicy requires the named policy to hold. The policy is resolved
// when the check runs, so policies may be registered after endpoints are
// compiled. An unknown policy denies.
func (p *Provider) UserHasPolicy(policy string) api.Authorization {
	return api.NewAuthorization("policy "+policy, func(rc *api.RequestContext) (bool, error) {
		p.mu.RLock()
		fn, ok := p.policies[policy]
		p.mu.RUnlock()
		if !ok {
			return false, fmt.Errorf("unknown policy %q", policy)
		}
		return fn(rc)
	})
}

func principalVars(p *api.Principal) map[string]any {
	if p == nil {
		return map[string]any{"subject": "", "roles": []string{}, "claims": map[string]string{}}
	}
	roles := p.Roles
	if roles == nil {
		roles = []string{}
	}
	claims := p.Claims
	if claims == nil {
		claims = map[string]string{}
	}
	return map[string]any{"subject": p.Subject, "roles": roles, "claims": claims}
}

func requestVars(rc *api.RequestContext) map[string]any {
	vars := map[string]any{
		"verb":   "",
		"path":   "",
		"route":  "",
		"method": "",
		"header": map[string]string{},
	}
	if rc.Call != nil {
		vars["verb"] = rc.Call.Verb
		vars["path"] = rc.Call.Path
		headers := make(map[string]string, len(rc.Call.Header))
		for name := range rc.Call.Header {
			headers[name] = rc.Call.Header.Get(name)
		}
		vars["header"] = headers
	}
	if rc.Endpoint != nil {
		vars["route"] = rc.Endpoint.Path
		if rc.Endpoint.Method != nil {
			vars["method"] = rc.Endpoint.Method.String()
		}
	}
	return vars
}
