package app

import (
	"fmt"
	"net"
	"strconv"

	"rpcexpose/internal/api"
	"rpcexpose/internal/authz"
	"rpcexpose/internal/config"
	"rpcexpose/internal/demo"
	"rpcexpose/internal/dispatch"
	"rpcexpose/internal/endpoint"
	"rpcexpose/internal/exposure"
	"rpcexpose/internal/mcpserver"
	"rpcexpose/internal/metrics"
	"rpcexpose/internal/registry"
	"rpcexpose/internal/server"
	"rpcexpose/internal/services"
	"rpcexpose/pkg/logging"
)

// AdminPolicy is the policy name that, when configured, deleting orders
// requires in addition to the admin role.
const AdminPolicy = "admin"

// Services holds every component of a running rpcexpose instance.
//
// The components are built in dependency order:
//  1. Metrics, authorization provider and service activator
//  2. Exposure configuration with the demo composition
//  3. Endpoint table and registry, which compiles the exposures
//  4. Dispatcher and the transports in front of it
type Services struct {
	Metrics    *metrics.Metrics
	Authz      *authz.Provider
	Activator  *services.Provider
	Exposure   *exposure.Configuration
	Table      *endpoint.Table
	Registry   *registry.Registry
	Dispatcher *dispatch.Dispatcher

	// HTTP serves the exposed routes, health, metrics and, when enabled, MCP.
	HTTP *server.Server

	// MCP is nil unless the MCP transport is enabled.
	MCP *mcpserver.Server
}

// InitializeServices builds all components from cfg.Settings.
func InitializeServices(cfg *Config) (*Services, error) {
	settings := cfg.Settings
	if settings == nil {
		defaults := config.GetDefaultConfig()
		settings = &defaults
	}

	s := &Services{Metrics: metrics.New(settings.Metrics.Enabled)}

	var err error
	s.Authz, err = authz.NewProvider(settings.Authorization.Policies)
	if err != nil {
		return nil, fmt.Errorf("failed to compile authorization policies: %w", err)
	}
	s.Activator = services.NewProvider()

	s.Exposure, err = newExposure(settings.Exposure, s.Authz, s.Activator)
	if err != nil {
		return nil, err
	}
	demo.Compose(s.Exposure, s.Authz, demo.NewOrders(), demo.Options{
		Prefix:      settings.Exposure.Prefix,
		Version:     cfg.Version,
		AdminPolicy: adminPolicy(settings.Authorization.Policies),
	})

	s.Table = endpoint.NewTable(endpoint.WithCompileHook(func(endpoint.Key, *api.Endpoint) {
		s.Metrics.EndpointsCompiled.Inc()
		s.Metrics.Endpoints.Set(float64(s.Table.Len()))
	}))
	s.Registry = registry.New(s.Table, registry.WithLazyCompile(settings.Exposure.LazyCompile))
	if err := s.Registry.Register(s.Exposure.Exposures()...); err != nil {
		return nil, fmt.Errorf("failed to register exposures: %w", err)
	}
	logging.Info("Bootstrap", "Registered %d routes (%d compiled)", len(s.Table.Routes()), s.Table.Len())

	mode, err := dispatch.ParseAuthorizationMode(settings.Authorization.Mode)
	if err != nil {
		return nil, err
	}
	s.Dispatcher = dispatch.New(s.Table, s.Exposure.Services(),
		dispatch.WithAuthorizationMode(mode),
		dispatch.WithMetrics(s.Metrics),
	)

	opts := server.Options{
		Addr:            net.JoinHostPort(settings.Server.Host, strconv.Itoa(settings.Server.Port)),
		BasePath:        settings.Server.BasePath,
		ShutdownTimeout: settings.Server.ShutdownTimeout,
		Principal:       server.HeaderPrincipal(settings.Authorization.UserHeader, settings.Authorization.RoleHeader),
		Routes:          s.Table,
	}
	if settings.Metrics.Enabled {
		opts.MetricsPath = settings.Metrics.Path
		opts.MetricsHandler = s.Metrics.Handler()
	}
	if settings.MCP.Enabled {
		s.MCP = mcpserver.New(s.Table, s.Dispatcher,
			mcpserver.WithPrincipal(server.PrincipalFromContext),
			mcpserver.WithVersion(cfg.Version),
		)
		opts.MCPPath = settings.MCP.Path
		opts.MCPHandler = s.MCP.Handler(settings.MCP.Path)
		logging.Info("Bootstrap", "MCP transport enabled at %s with %d tools", settings.MCP.Path, len(s.MCP.Tools()))
	}
	s.HTTP = server.New(s.Dispatcher, opts)

	return s, nil
}

func newExposure(cfg config.ExposureConfig, auth api.AuthorizationImplementationProvider, activator api.ServiceActivator) (*exposure.Configuration, error) {
	verb, err := api.ParseDefaultMethod(cfg.DefaultMethod)
	if err != nil {
		return nil, err
	}
	activation, err := api.ParseActivationMethod(cfg.Activation)
	if err != nil {
		return nil, err
	}

	c := exposure.New(auth, activator).
		SetDefaultVerb(verb).
		SetActivation(activation)
	for _, h := range cfg.Headers {
		c.AddResponseHeader(h.Name, h.Value)
	}
	return c, nil
}

func adminPolicy(policies map[string]string) string {
	if _, ok := policies[AdminPolicy]; ok {
		return AdminPolicy
	}
	return ""
}
