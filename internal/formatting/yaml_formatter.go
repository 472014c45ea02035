package formatting

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter provides YAML output formatting
type YAMLFormatter struct {
	options Options
}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter(options Options) Formatter {
	return &YAMLFormatter{
		options: options,
	}
}

// FormatRoutes writes rows as a YAML sequence.
func (f *YAMLFormatter) FormatRoutes(w io.Writer, rows []RouteRow) error {
	if rows == nil {
		rows = []RouteRow{}
	}
	out, err := yaml.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to marshal routes: %w", err)
	}
	_, err = w.Write(out)
	return err
}
