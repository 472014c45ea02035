package template

import (
	"os"
	"strings"
)

// MergeContexts merges multiple contexts into a single context
// Later contexts override values from earlier contexts
func MergeContexts(contexts ...map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})

	for _, ctx := range contexts {
		for key, value := range ctx {
			result[key] = value
		}
	}

	return result
}

// EnvironmentContext exposes the process environment as {{ .Env.NAME }}.
func EnvironmentContext() map[string]interface{} {
	env := make(map[string]interface{})
	for _, kv := range os.Environ() {
		if name, value, ok := strings.Cut(kv, "="); ok {
			env[name] = value
		}
	}
	return map[string]interface{}{"Env": env}
}
