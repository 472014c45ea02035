package formatting

import (
	"fmt"
	"io"
)

// JSONFormatter provides structured JSON output formatting
type JSONFormatter struct {
	options Options
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(options Options) Formatter {
	return &JSONFormatter{
		options: options,
	}
}

// FormatRoutes writes rows as an indented JSON array.
func (f *JSONFormatter) FormatRoutes(w io.Writer, rows []RouteRow) error {
	if rows == nil {
		rows = []RouteRow{}
	}
	_, err := fmt.Fprintln(w, PrettyJSON(rows))
	return err
}
