package app

import (
	"rpcexpose/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug forces debug logging regardless of the configured level.
	Debug bool

	// Silent suppresses all log output, for commands printing structured data.
	Silent bool

	// Path of the YAML configuration file (optional).
	// When empty, or when the file does not exist, defaults are used.
	ConfigPath string

	// Version is reported by the version tool and the MCP server.
	Version string

	// Settings is the loaded configuration file. When set before
	// NewApplication, loading is skipped.
	Settings *config.Config
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, configPath, version string) *Config {
	return &Config{
		Debug:      debug,
		ConfigPath: configPath,
		Version:    version,
	}
}
