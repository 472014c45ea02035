package config

import "time"

const (
	// DefaultPort is the port the HTTP transport listens on.
	DefaultPort = 8080

	// DefaultMetricsPath is where Prometheus metrics are served.
	DefaultMetricsPath = "/metrics"

	// DefaultMCPPath is where the MCP streamable HTTP transport is mounted.
	DefaultMCPPath = "/mcp"
)

// GetDefaultConfig returns the configuration used when no file is given.
func GetDefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            DefaultPort,
			BasePath:        "/",
			ShutdownTimeout: 10 * time.Second,
		},
		Exposure: ExposureConfig{
			DefaultMethod: "postOnly",
			Activation:    "perCall",
		},
		Authorization: AuthorizationConfig{
			Mode:       "failFast",
			RoleHeader: "X-Roles",
			UserHeader: "X-User",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    DefaultMetricsPath,
		},
		MCP: MCPConfig{
			Enabled: false,
			Path:    DefaultMCPPath,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
