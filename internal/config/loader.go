package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"rpcexpose/internal/template"
	"rpcexpose/pkg/logging"
)

// LoadConfig loads configuration from configFilePath on top of the defaults.
// An empty path or a missing file yields the defaults. Header values are
// rendered and the result is validated before it is returned.
func LoadConfig(configFilePath string) (Config, error) {
	config := GetDefaultConfig()

	if configFilePath == "" {
		logging.Info("Config", "No config file given, using defaults")
	} else {
		data, err := os.ReadFile(configFilePath)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logging.Info("Config", "No config file found at %s, using defaults", configFilePath)
		case err != nil:
			return Config{}, ConfigurationError{
				FilePath:  configFilePath,
				Section:   "file",
				ErrorType: ErrorTypeIO,
				Message:   err.Error(),
			}
		default:
			if err := yaml.Unmarshal(data, &config); err != nil {
				return Config{}, ConfigurationError{
					FilePath:    configFilePath,
					Section:     "file",
					ErrorType:   ErrorTypeParse,
					Message:     fmt.Sprintf("error loading config from %s", configFilePath),
					Details:     err.Error(),
					Suggestions: []string{"check the YAML syntax and field types"},
				}
			}
			logging.Info("Config", "Loaded configuration from %s", configFilePath)
		}
	}

	if err := renderHeaders(&config, configFilePath); err != nil {
		return Config{}, err
	}
	if err := Validate(config); err != nil {
		return Config{}, err
	}
	return config, nil
}

// renderHeaders executes the header value templates once. Values see the
// environment as .Env and the listener settings as .Server.
func renderHeaders(config *Config, configFilePath string) error {
	engine := template.New()
	data := template.MergeContexts(template.EnvironmentContext(), map[string]interface{}{
		"Server": map[string]interface{}{
			"Host":     config.Server.Host,
			"Port":     config.Server.Port,
			"BasePath": config.Server.BasePath,
		},
	})

	errs := NewConfigurationErrorCollection()
	for i, h := range config.Exposure.Headers {
		value, err := engine.Render(h.Name, h.Value, data)
		if err != nil {
			errs.Add(ConfigurationError{
				FilePath:  configFilePath,
				Section:   "exposure",
				Field:     fmt.Sprintf("headers[%d].value", i),
				ErrorType: ErrorTypeTemplate,
				Message:   err.Error(),
			})
			continue
		}
		config.Exposure.Headers[i].Value = value
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}
