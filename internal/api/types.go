package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"slices"
	"strings"
)

// HTTP verbs an endpoint can be exposed under.
const (
	VerbGet    = http.MethodGet
	VerbPost   = http.MethodPost
	VerbPut    = http.MethodPut
	VerbPatch  = http.MethodPatch
	VerbDelete = http.MethodDelete
)

// NormalizeVerb upper-cases a verb and reports whether it is supported.
func NormalizeVerb(verb string) (string, bool) {
	v := strings.ToUpper(strings.TrimSpace(verb))
	switch v {
	case VerbGet, VerbPost, VerbPut, VerbPatch, VerbDelete:
		return v, true
	}
	return v, false
}

// VerbCarriesBody reports whether requests with the given verb
// conventionally carry a body.
func VerbCarriesBody(verb string) bool {
	switch verb {
	case VerbPost, VerbPut, VerbPatch:
		return true
	}
	return false
}

// DefaultMethod selects the verb of methods that do not declare one.
type DefaultMethod int

const (
	// DefaultPostOnly exposes every method under POST.
	DefaultPostOnly DefaultMethod = iota
	// DefaultGetOnly exposes every method under GET.
	DefaultGetOnly
	// DefaultGetAndPost exposes every method under both GET and POST.
	DefaultGetAndPost
	// DefaultInferFromName picks the verb from the method name prefix.
	DefaultInferFromName
)

var defaultMethodNames = map[DefaultMethod]string{
	DefaultPostOnly:      "postOnly",
	DefaultGetOnly:       "getOnly",
	DefaultGetAndPost:    "getAndPost",
	DefaultInferFromName: "inferFromName",
}

func (d DefaultMethod) String() string {
	if name, ok := defaultMethodNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DefaultMethod(%d)", int(d))
}

// ParseDefaultMethod converts a configuration value to a DefaultMethod.
// An empty value yields DefaultPostOnly.
func ParseDefaultMethod(s string) (DefaultMethod, error) {
	if s == "" {
		return DefaultPostOnly, nil
	}
	for d, name := range defaultMethodNames {
		if strings.EqualFold(name, s) {
			return d, nil
		}
	}
	return DefaultPostOnly, fmt.Errorf("unknown default method %q", s)
}

// ActivationMethod selects how service instances are produced per call.
type ActivationMethod int

const (
	// ActivationPerCall creates a fresh instance for every call.
	ActivationPerCall ActivationMethod = iota
	// ActivationSingleton reuses the exposed instance for every call.
	ActivationSingleton
)

func (a ActivationMethod) String() string {
	switch a {
	case ActivationPerCall:
		return "perCall"
	case ActivationSingleton:
		return "singleton"
	default:
		return fmt.Sprintf("ActivationMethod(%d)", int(a))
	}
}

// ParseActivationMethod converts a configuration value to an ActivationMethod.
func ParseActivationMethod(s string) (ActivationMethod, error) {
	switch strings.ToLower(s) {
	case "", "percall":
		return ActivationPerCall, nil
	case "singleton":
		return ActivationSingleton, nil
	}
	return ActivationPerCall, fmt.Errorf("unknown activation method %q", s)
}

// ServiceInfo identifies the service that declares a method.
type ServiceInfo struct {
	// Name is the service type name, or the factory path for function exposures.
	Name string
	// Type is the declaring type. It is nil for factory exposures.
	Type reflect.Type
	// Instance is the exposed value when the service was exposed as an instance.
	Instance any
}

// MethodOptions are per-method declarations a service can attach to its
// methods. Zero values mean "not declared".
type MethodOptions struct {
	Path            string
	Verb            string
	SuccessStatus   int
	HasRequestBody  *bool
	HasResponseBody *bool
	// Params names the bindable parameters in order.
	Params      []string
	Description string
}

// Bool returns a pointer to b, for MethodOptions overrides.
func Bool(b bool) *bool {
	return &b
}

// Parameter describes one bindable parameter of a method.
type Parameter struct {
	Name     string
	Type     reflect.Type
	Position int
}

// Invoker performs the call of a method on an activated instance with
// already bound arguments. instance is nil for factory functions.
type Invoker func(ctx context.Context, instance any, args []reflect.Value) (any, error)

// MethodInfo describes one candidate method supplied by discovery.
type MethodInfo struct {
	Service    ServiceInfo
	Name       string
	Options    MethodOptions
	Parameters []Parameter
	// Result is the non-error return type, nil when the method returns no value.
	Result       reflect.Type
	TakesContext bool
	ReturnsError bool
	Invoke       Invoker
}

// Path returns the declared path fragment, or the method name.
func (m *MethodInfo) Path() string {
	if m.Options.Path != "" {
		return m.Options.Path
	}
	return m.Name
}

// String returns Service.Method.
func (m *MethodInfo) String() string {
	return m.Service.Name + "." + m.Name
}

// SameTarget reports whether m and o call the same Go method. Methods of a
// type match by declaring type and method name, whether exposed by value or
// by pointer. Factory functions only match themselves.
func (m *MethodInfo) SameTarget(o *MethodInfo) bool {
	if m == o {
		return true
	}
	if m == nil || o == nil || m.Service.Type == nil || o.Service.Type == nil {
		return false
	}
	return m.Name == o.Name && baseType(m.Service.Type) == baseType(o.Service.Type)
}

// Target names the Go method behind m, qualified by package for methods of
// a type.
func (m *MethodInfo) Target() string {
	if m.Service.Type == nil {
		return m.String()
	}
	return baseType(m.Service.Type).String() + "." + m.Name
}

func baseType(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Pointer {
		return t.Elem()
	}
	return t
}

// MethodConfiguration is the read-only view of an endpoint handed to
// policy providers during compilation.
type MethodConfiguration struct {
	Method          *MethodInfo
	Verb            string
	Path            string
	Paths           []string
	SuccessStatus   int
	HasRequestBody  bool
	HasResponseBody bool
}

// ResponseHeader is a header attached to every successful response.
type ResponseHeader struct {
	Name  string `yaml:"name" json:"name"`
	Value string `yaml:"value" json:"value"`
}

// Endpoint is the compiled, immutable descriptor of one exposed method
// under one verb. A single Endpoint may be reachable at several paths.
type Endpoint struct {
	MethodConfiguration
	Authorizations []Authorization
	Filters        []FilterFactory
	Headers        []ResponseHeader
	Activation     ActivationMethod
}

// Unauthenticated reports whether the endpoint carries no authorization checks.
func (e *Endpoint) Unauthenticated() bool {
	return len(e.Authorizations) == 0
}

// Authorization is one check evaluated before a call proceeds.
type Authorization interface {
	// Name describes the check. It is used as the denial reason.
	Name() string
	// Authorize reports whether the request may proceed.
	Authorize(rc *RequestContext) (bool, error)
}

type authorizationFunc struct {
	name string
	fn   func(rc *RequestContext) (bool, error)
}

func (a authorizationFunc) Name() string { return a.name }

func (a authorizationFunc) Authorize(rc *RequestContext) (bool, error) { return a.fn(rc) }

// NewAuthorization adapts a function to the Authorization interface.
func NewAuthorization(name string, fn func(rc *RequestContext) (bool, error)) Authorization {
	return authorizationFunc{name: name, fn: fn}
}

// AuthorizationImplementationProvider builds the standard checks used by
// the Authorize(role, policy) configuration surface.
type AuthorizationImplementationProvider interface {
	UserHasRole(role string) Authorization
	UserHasPolicy(policy string) Authorization
	Authorized() Authorization
}

// Handler is the continuation passed to a Filter.
type Handler func(rc *RequestContext) error

// Filter wraps the remainder of the pipeline. Code before next runs on the
// way in, code after it on the way out. Not calling next short-circuits the
// call; the filter is then responsible for the result.
type Filter interface {
	Execute(rc *RequestContext, next Handler) error
}

// FilterFunc adapts a function to the Filter interface.
type FilterFunc func(rc *RequestContext, next Handler) error

// Execute implements Filter.
func (f FilterFunc) Execute(rc *RequestContext, next Handler) error {
	return f(rc, next)
}

// BeforeAfter is a Filter built from two optional stages.
type BeforeAfter struct {
	Before func(rc *RequestContext) error
	After  func(rc *RequestContext) error
}

// Execute implements Filter.
func (f BeforeAfter) Execute(rc *RequestContext, next Handler) error {
	if f.Before != nil {
		if err := f.Before(rc); err != nil {
			return err
		}
	}
	if err := next(rc); err != nil {
		return err
	}
	if f.After != nil {
		return f.After(rc)
	}
	return nil
}

// FilterFactory produces the filter instance for one call.
type FilterFactory func(rc *RequestContext) Filter

// Policy producing functions accumulated by the configuration builder.
type (
	AuthorizationProvider func(cfg *MethodConfiguration) []Authorization
	FilterProvider        func(cfg *MethodConfiguration) FilterFactory
	MethodFilter          func(m *MethodInfo) bool
	PrefixFunc            func(service ServiceInfo) []string
)

// ServiceActivator produces the instance a method is invoked on.
// release is called once the call completes and may be nil.
type ServiceActivator interface {
	Activate(ctx context.Context, endpoint *Endpoint) (instance any, release func(), err error)
}

// Principal is the caller identity supplied by the transport.
type Principal struct {
	Subject string            `json:"subject"`
	Roles   []string          `json:"roles,omitempty"`
	Claims  map[string]string `json:"claims,omitempty"`
}

// Authenticated reports whether the principal identifies a caller.
func (p *Principal) Authenticated() bool {
	return p != nil && p.Subject != ""
}

// HasRole reports whether the principal carries role.
func (p *Principal) HasRole(role string) bool {
	return p != nil && slices.Contains(p.Roles, role)
}

// Arguments are the raw, still encoded arguments of a call.
type Arguments struct {
	Positional []json.RawMessage
	Named      map[string]json.RawMessage
}

// Call is one inbound logical call as handed over by a transport. Body is
// set when Args were read from a request body.
type Call struct {
	Verb      string
	Path      string
	Args      Arguments
	Body      bool
	Principal *Principal
	Header    http.Header
	Transport string
}

// Response is the outbound result of a call. Body is only meaningful when
// HasBody is set; Err is set for every non-success outcome.
type Response struct {
	RequestID string
	Status    int
	Header    http.Header
	Body      any
	HasBody   bool
	Err       error
	Aborted   bool
}
