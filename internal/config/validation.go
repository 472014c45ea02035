package config

import (
	"fmt"
	"strings"

	"rpcexpose/internal/api"
)

var (
	authorizationModes = []string{"failFast", "aggregate"}
	logLevels          = []string{"debug", "info", "warn", "warning", "error"}
	logFormats         = []string{"text", "json"}
)

// Validate checks config and returns a *ConfigurationErrorCollection listing
// every problem, or nil.
func Validate(config Config) error {
	errs := NewConfigurationErrorCollection()

	validateServer(config.Server, errs)
	validateExposure(config.Exposure, errs)
	validateAuthorization(config.Authorization, errs)

	if config.Metrics.Enabled {
		validatePath("metrics", "path", config.Metrics.Path, errs)
	}
	if config.MCP.Enabled {
		validatePath("mcp", "path", config.MCP.Path, errs)
	}
	if config.Metrics.Enabled && config.MCP.Enabled && config.Metrics.Path == config.MCP.Path {
		errs.AddError("mcp", "path", fmt.Sprintf("conflicts with metrics path %s", config.Metrics.Path))
	}

	validateOneOf("logging", "level", strings.ToLower(config.Logging.Level), logLevels, errs)
	validateOneOf("logging", "format", config.Logging.Format, logFormats, errs)

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateServer(s ServerConfig, errs *ConfigurationErrorCollection) {
	if s.Port < 1 || s.Port > 65535 {
		errs.AddError("server", "port", fmt.Sprintf("must be between 1 and 65535, got %d", s.Port))
	}
	validatePath("server", "basePath", s.BasePath, errs)
	if s.ShutdownTimeout < 0 {
		errs.AddError("server", "shutdownTimeout", "must not be negative")
	}
}

func validateExposure(e ExposureConfig, errs *ConfigurationErrorCollection) {
	if _, err := api.ParseDefaultMethod(e.DefaultMethod); err != nil {
		errs.AddError("exposure", "defaultMethod", err.Error(),
			"use one of postOnly, getOnly, getAndPost, inferFromName")
	}
	if _, err := api.ParseActivationMethod(e.Activation); err != nil {
		errs.AddError("exposure", "activation", err.Error(), "use perCall or singleton")
	}
	if strings.ContainsAny(e.Prefix, " ?#") {
		errs.AddError("exposure", "prefix", fmt.Sprintf("invalid route prefix %q", e.Prefix))
	}
	for i, h := range e.Headers {
		if err := ValidateHeaderName(h.Name); err != nil {
			errs.AddError("exposure", fmt.Sprintf("headers[%d].name", i), err.Error())
		}
	}
}

func validateAuthorization(a AuthorizationConfig, errs *ConfigurationErrorCollection) {
	validateOneOf("authorization", "mode", a.Mode, authorizationModes, errs)
	if err := ValidateHeaderName(a.RoleHeader); err != nil {
		errs.AddError("authorization", "roleHeader", err.Error())
	}
	if err := ValidateHeaderName(a.UserHeader); err != nil {
		errs.AddError("authorization", "userHeader", err.Error())
	}
	for name, expr := range a.Policies {
		if strings.TrimSpace(name) == "" {
			errs.AddError("authorization", "policies", "policy name must not be empty")
		}
		if strings.TrimSpace(expr) == "" {
			errs.AddError("authorization", "policies."+name, "expression must not be empty")
		}
	}
}

func validatePath(section, field, path string, errs *ConfigurationErrorCollection) {
	if !strings.HasPrefix(path, "/") {
		errs.AddError(section, field, fmt.Sprintf("must start with '/', got %q", path))
	}
}

func validateOneOf(section, field, value string, allowed []string, errs *ConfigurationErrorCollection) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	errs.AddError(section, field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
}

// ValidateHeaderName checks that name is a valid HTTP header field name.
func ValidateHeaderName(name string) error {
	if name == "" {
		return fmt.Errorf("header name is required")
	}
	for _, r := range name {
		if r <= ' ' || r >= 0x7f || strings.ContainsRune(`"(),/:;<=>?@[\]{}`, r) {
			return fmt.Errorf("invalid character %q in header name %q", r, name)
		}
	}
	return nil
}
