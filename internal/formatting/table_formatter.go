package formatting

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	textutil "rpcexpose/pkg/strings"
)

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	options Options
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(options Options) Formatter {
	return &TableFormatter{
		options: options,
	}
}

// FormatRoutes renders rows as a rounded table followed by a total.
func (f *TableFormatter) FormatRoutes(w io.Writer, rows []RouteRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, f.paint(text.FgYellow, "No routes exposed"))
		return err
	}

	t := f.createTable(w)
	t.AppendHeader(table.Row{
		f.paint(text.FgHiCyan, "VERB"),
		f.paint(text.FgHiCyan, "PATH"),
		f.paint(text.FgHiCyan, "METHOD"),
		f.paint(text.FgHiCyan, "STATUS"),
		f.paint(text.FgHiCyan, "AUTHORIZATION"),
		f.paint(text.FgHiCyan, "FILTERS"),
	})

	for _, row := range rows {
		method, status, auth := "(deferred)", "-", "-"
		if row.Compiled {
			method = textutil.Truncate(row.Method, textutil.DefaultMaxLen)
			status = fmt.Sprintf("%d", row.Status)
			auth = "open"
			if len(row.Authorizations) > 0 {
				auth = textutil.Truncate(strings.Join(row.Authorizations, ", "), textutil.DefaultMaxLen)
			}
		}
		t.AppendRow(table.Row{
			f.paint(text.FgHiGreen, row.Verb),
			row.Path,
			method,
			status,
			auth,
			row.Filters,
		})
	}

	t.Render()
	_, err := fmt.Fprintf(w, "\n%s %s\n", f.paint(text.FgHiBlue, "Total:"), f.paint(text.FgHiWhite, fmt.Sprintf("%d routes", len(rows))))
	return err
}

// createTable creates a new table with standard styling
func (f *TableFormatter) createTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

func (f *TableFormatter) paint(color text.Color, s string) string {
	if !f.options.Color {
		return s
	}
	return color.Sprint(s)
}
