package formatting

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"rpcexpose/internal/api"
	"rpcexpose/internal/endpoint"
)

func sampleRoutes() []endpoint.Route {
	ep := &api.Endpoint{
		MethodConfiguration: api.MethodConfiguration{
			Method:        &api.MethodInfo{Service: api.ServiceInfo{Name: "Orders"}, Name: "DeleteOrder"},
			Verb:          "DELETE",
			Path:          "/orders/delete",
			SuccessStatus: 204,
		},
		Authorizations: []api.Authorization{
			api.NewAuthorization("authenticated", func(*api.RequestContext) (bool, error) { return true, nil }),
			api.NewAuthorization("role:admin", func(*api.RequestContext) (bool, error) { return true, nil }),
		},
		Filters: []api.FilterFactory{nil},
	}
	return []endpoint.Route{
		{Key: endpoint.NewKey("DELETE", "/orders/delete"), Endpoint: ep, Compiled: true},
		{Key: endpoint.NewKey("GET", "/orders/get")},
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestRows(t *testing.T) {
	rows := Rows(sampleRoutes())
	require.Len(t, rows, 2)

	assert.Equal(t, RouteRow{
		Verb:           "DELETE",
		Path:           "/orders/delete",
		Method:         "Orders.DeleteOrder",
		Status:         204,
		Authorizations: []string{"authenticated", "role:admin"},
		Filters:        1,
		Compiled:       true,
	}, rows[0])
	assert.Equal(t, RouteRow{Verb: "GET", Path: "/orders/get"}, rows[1])
}

func TestFormatRoutes(t *testing.T) {
	rows := Rows(sampleRoutes())

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewFormatter(Options{Format: FormatTable}).FormatRoutes(&buf, rows))
		out := buf.String()
		assert.Contains(t, out, "/orders/delete")
		assert.Contains(t, out, "authenticated, role:admin")
		assert.Contains(t, out, "(deferred)")
		assert.Contains(t, out, "Total: 2 routes")
	})

	t.Run("empty table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewFormatter(Options{}).FormatRoutes(&buf, nil))
		assert.Equal(t, "No routes exposed\n", buf.String())
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewFormatter(Options{Format: FormatJSON}).FormatRoutes(&buf, rows))
		var decoded []RouteRow
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, rows, decoded)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewFormatter(Options{Format: FormatYAML}).FormatRoutes(&buf, rows))
		var decoded []RouteRow
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, rows, decoded)
	})
}
