package demo

import (
	"net/http"
	"path"
	"reflect"
	"strings"
	"time"

	"rpcexpose/internal/api"
	"rpcexpose/internal/exposure"
	"rpcexpose/pkg/logging"
)

// Options configures the demo composition.
type Options struct {
	// Prefix is prepended to every route, before the service segment.
	Prefix string
	// Version is reported by the tools/Version function.
	Version string
	// AdminPolicy, when set, names the policy deleting orders requires in
	// addition to the admin role.
	AdminPolicy string
}

// ServicePrefix is a prefix generator placing every service under
// base/{service}; factory functions carry their own path and get base only.
func ServicePrefix(base string) api.PrefixFunc {
	return func(s api.ServiceInfo) []string {
		if s.Type == nil {
			return []string{path.Join("/", base)}
		}
		return []string{path.Join("/", base, strings.ToLower(s.Name))}
	}
}

// Compose declares the demo exposures on c. Policies already present on c,
// such as response headers or the default method, apply to every exposure.
//
// The resulting routes are:
//
//	/{prefix}/double/…   DoubleMath, open
//	/{prefix}/int/…      IntMath, open, new instance per call
//	/{prefix}/orders/…   Orders, authenticated; DELETE also needs admin
//	/{prefix}/tools/…    Echo and Version functions, open
func Compose(c *exposure.Configuration, auth api.AuthorizationImplementationProvider, orders *Orders, opts Options) {
	c.AddPrefix(ServicePrefix(opts.Prefix))
	c.ApplyFilter(Timing, nil)

	c.Expose(DoubleMath{}).As("double")
	c.ExposeType(reflect.TypeOf(IntMath{})).As("int")

	c.Authorize("", "")
	c.AddAuthorization(func(mc *api.MethodConfiguration) []api.Authorization {
		if mc.Verb != http.MethodDelete || auth == nil {
			return nil
		}
		checks := []api.Authorization{auth.UserHasRole("admin")}
		if opts.AdminPolicy != "" {
			checks = append(checks, auth.UserHasPolicy(opts.AdminPolicy))
		}
		return checks
	})
	c.Expose(orders).As("orders")
	c.ClearAuthorization()

	version := opts.Version
	c.ExposeFactory("tools").
		Func("Echo", func(message string) string { return message }, api.MethodOptions{Params: []string{"message"}}).
		Func("Version", func() string { return version }, api.MethodOptions{Verb: http.MethodGet})
}

// Timing logs the duration of every call at debug level.
func Timing(*api.RequestContext) api.Filter {
	return api.FilterFunc(func(rc *api.RequestContext, next api.Handler) error {
		start := time.Now()
		err := next(rc)
		logging.Debug("Demo", "[%s] %s took %s", logging.TruncateID(rc.RequestID), rc.Endpoint.Method, time.Since(start))
		return err
	})
}
