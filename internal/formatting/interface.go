// Package formatting renders the endpoint table for the CLI in one of
// several output formats (table, JSON, YAML).
package formatting

import (
	"fmt"
	"io"
	"strings"

	"rpcexpose/internal/endpoint"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"  // JSON output
	FormatYAML  OutputFormat = "yaml"  // YAML output
	FormatTable OutputFormat = "table" // Rich table output
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatJSON, FormatYAML, FormatTable:
		return f, nil
	case "":
		return FormatTable, nil
	}
	return "", fmt.Errorf("unsupported output format %q (use table, json or yaml)", s)
}

// Options configures the formatter behavior
type Options struct {
	Format OutputFormat
	Color  bool // Enable colored output
}

// RouteRow is the printable view of one endpoint table entry.
type RouteRow struct {
	Verb           string   `json:"verb" yaml:"verb"`
	Path           string   `json:"path" yaml:"path"`
	Method         string   `json:"method,omitempty" yaml:"method,omitempty"`
	Status         int      `json:"status,omitempty" yaml:"status,omitempty"`
	Authorizations []string `json:"authorizations,omitempty" yaml:"authorizations,omitempty"`
	Filters        int      `json:"filters" yaml:"filters"`
	Compiled       bool     `json:"compiled" yaml:"compiled"`
}

// Rows converts table routes to rows. Deferred routes only carry verb and path.
func Rows(routes []endpoint.Route) []RouteRow {
	rows := make([]RouteRow, 0, len(routes))
	for _, r := range routes {
		row := RouteRow{Verb: r.Key.Verb, Path: r.Key.Path, Compiled: r.Compiled}
		if ep := r.Endpoint; ep != nil {
			row.Method = ep.Method.String()
			row.Status = ep.SuccessStatus
			row.Filters = len(ep.Filters)
			for _, a := range ep.Authorizations {
				row.Authorizations = append(row.Authorizations, a.Name())
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// Formatter writes route listings.
type Formatter interface {
	FormatRoutes(w io.Writer, rows []RouteRow) error
}

// NewFormatter creates the appropriate formatter based on options
func NewFormatter(options Options) Formatter {
	switch options.Format {
	case FormatJSON:
		return NewJSONFormatter(options)
	case FormatYAML:
		return NewYAMLFormatter(options)
	default:
		return NewTableFormatter(options)
	}
}
