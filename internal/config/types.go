package config

import (
	"time"

	"rpcexpose/internal/api"
)

// Config is the top-level configuration structure for rpcexpose.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Exposure      ExposureConfig      `yaml:"exposure"`
	Authorization AuthorizationConfig `yaml:"authorization"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	MCP           MCPConfig           `yaml:"mcp"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host,omitempty"`            // Host to bind to (default: localhost)
	Port            int           `yaml:"port,omitempty"`            // Port to listen on (default: 8080)
	BasePath        string        `yaml:"basePath,omitempty"`        // Mount point of the exposed routes (default: /)
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout,omitempty"` // Grace period for in-flight calls (default: 10s)
}

// ExposureConfig holds the policies applied to the demo composition.
type ExposureConfig struct {
	DefaultMethod string               `yaml:"defaultMethod,omitempty"`
	Prefix        string               `yaml:"prefix,omitempty"`
	Headers       []api.ResponseHeader `yaml:"headers,omitempty"`
	LazyCompile   bool                 `yaml:"lazyCompile,omitempty"`
	Activation    string               `yaml:"activation,omitempty"`
}

// AuthorizationConfig configures principal extraction and policy evaluation.
type AuthorizationConfig struct {
	Mode       string            `yaml:"mode,omitempty"`
	Policies   map[string]string `yaml:"policies,omitempty"` // Policy name to CEL expression
	RoleHeader string            `yaml:"roleHeader,omitempty"`
	UserHeader string            `yaml:"userHeader,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// MCPConfig configures the MCP transport.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}
