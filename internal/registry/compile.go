package registry

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"rpcexpose/internal/api"
	"rpcexpose/internal/endpoint"
	"rpcexpose/internal/exposure"
)

// plan is the routing part of a method's compilation: whether it is
// exposed, under which verbs and at which paths.
type plan struct {
	method *api.MethodInfo
	verbs  []string
	paths  []string
}

// included applies every method filter in registration order and stops at
// the first rejection.
func included(snap *exposure.Snapshot, m *api.MethodInfo) bool {
	for filter := range snap.MethodFilters.All() {
		if !filter(m) {
			return false
		}
	}
	return true
}

// routes combines every generated prefix with the method's path fragment.
// Without prefixes, or when no generator yields one, the fragment is used
// unprefixed. Duplicate routes of the same method collapse.
func routes(snap *exposure.Snapshot, m *api.MethodInfo) []string {
	fragment := m.Path()

	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for generator := range snap.Prefixes.All() {
		for _, prefix := range generator(m.Service) {
			add(endpoint.NormalizePath(prefix, fragment))
		}
	}
	if len(out) == 0 {
		add(endpoint.NormalizePath(fragment))
	}
	return out
}

// verbs returns the declared verb, or the verbs of the default method.
func verbs(snap *exposure.Snapshot, m *api.MethodInfo) ([]string, error) {
	if m.Options.Verb != "" {
		v, ok := api.NormalizeVerb(m.Options.Verb)
		if !ok {
			return nil, &api.ConfigurationError{Method: m.String(), Message: fmt.Sprintf("unsupported verb %q", m.Options.Verb)}
		}
		return []string{v}, nil
	}
	switch snap.DefaultMethod {
	case api.DefaultGetOnly:
		return []string{api.VerbGet}, nil
	case api.DefaultGetAndPost:
		return []string{api.VerbGet, api.VerbPost}, nil
	case api.DefaultInferFromName:
		return []string{inferVerb(m.Name)}, nil
	default:
		return []string{api.VerbPost}, nil
	}
}

var namePrefixVerbs = []struct {
	prefix string
	verb   string
}{
	{"Get", api.VerbGet},
	{"Find", api.VerbGet},
	{"List", api.VerbGet},
	{"Delete", api.VerbDelete},
	{"Remove", api.VerbDelete},
	{"Update", api.VerbPut},
	{"Patch", api.VerbPatch},
}

func inferVerb(name string) string {
	for _, p := range namePrefixVerbs {
		if strings.HasPrefix(name, p.prefix) {
			return p.verb
		}
	}
	return api.VerbPost
}

func planMethod(snap *exposure.Snapshot, m *api.MethodInfo) (*plan, error) {
	if !included(snap, m) {
		return nil, nil
	}
	vs, err := verbs(snap, m)
	if err != nil {
		return nil, err
	}
	return &plan{method: m, verbs: vs, paths: routes(snap, m)}, nil
}

// configuration fills in status and body flags. Explicit overrides win;
// otherwise request bodies follow the verb and the presence of
// parameters, and response bodies follow the return shape.
func configuration(m *api.MethodInfo, verb string, paths []string) api.MethodConfiguration {
	cfg := api.MethodConfiguration{
		Method: m,
		Verb:   verb,
		Path:   paths[0],
		Paths:  paths,
	}

	if m.Options.HasRequestBody != nil {
		cfg.HasRequestBody = *m.Options.HasRequestBody
	} else {
		cfg.HasRequestBody = api.VerbCarriesBody(verb) && len(m.Parameters) > 0
	}
	if m.Options.HasResponseBody != nil {
		cfg.HasResponseBody = *m.Options.HasResponseBody
	} else {
		cfg.HasResponseBody = m.Result != nil
	}

	switch {
	case m.Options.SuccessStatus != 0:
		cfg.SuccessStatus = m.Options.SuccessStatus
	case cfg.HasResponseBody:
		cfg.SuccessStatus = http.StatusOK
	default:
		cfg.SuccessStatus = http.StatusNoContent
	}
	return cfg
}

// view returns a private copy of the configuration of ep for one policy
// provider, so no provider can change the descriptor or another provider's view.
func view(ep *api.Endpoint) *api.MethodConfiguration {
	v := ep.MethodConfiguration
	v.Paths = slices.Clone(v.Paths)
	if v.Method != nil {
		m := *v.Method
		m.Parameters = slices.Clone(m.Parameters)
		m.Options.Params = slices.Clone(m.Options.Params)
		v.Method = &m
	}
	return &v
}

// build compiles the descriptor of one method under one verb. Policy
// providers see a copy of the descriptor's configuration.
func build(snap *exposure.Snapshot, m *api.MethodInfo, verb string, paths []string) (ep *api.Endpoint, err error) {
	defer func() {
		if r := recover(); r != nil {
			ep = nil
			err = &api.ConfigurationError{Method: m.String(), Message: fmt.Sprintf("policy provider panicked: %v", r)}
		}
	}()

	ep = &api.Endpoint{
		MethodConfiguration: configuration(m, verb, paths),
		Activation:          snap.Activation,
	}
	for provider := range snap.Authorizations.All() {
		for _, check := range provider(view(ep)) {
			if check != nil {
				ep.Authorizations = append(ep.Authorizations, check)
			}
		}
	}
	for provider := range snap.Filters.All() {
		if factory := provider(view(ep)); factory != nil {
			ep.Filters = append(ep.Filters, factory)
		}
	}
	ep.Headers = snap.Headers.Items()
	return ep, nil
}
