package dispatch

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpcexpose/internal/api"
)

func TestBind(t *testing.T) {
	intType := reflect.TypeOf(0)
	stringType := reflect.TypeOf("")
	mapType := reflect.TypeOf(map[string]int{})

	pair := &api.MethodInfo{Parameters: []api.Parameter{
		{Name: "id", Type: intType, Position: 0},
		{Name: "name", Type: stringType, Position: 1},
	}}
	object := &api.MethodInfo{Parameters: []api.Parameter{
		{Name: "counts", Type: mapType, Position: 0},
	}}

	tests := []struct {
		name    string
		method  *api.MethodInfo
		args    api.Arguments
		want    []any
		wantErr bool
	}{
		{
			name:   "positional",
			method: pair,
			args:   api.Arguments{Positional: []json.RawMessage{json.RawMessage(`7`), json.RawMessage(`"seven"`)}},
			want:   []any{7, "seven"},
		},
		{
			name:   "named",
			method: pair,
			args:   api.Arguments{Named: map[string]json.RawMessage{"name": json.RawMessage(`"x"`), "id": json.RawMessage(`1`)}},
			want:   []any{1, "x"},
		},
		{
			name:   "no arguments binds zero values",
			method: pair,
			want:   []any{0, ""},
		},
		{
			name:   "map parameter binds whole object",
			method: object,
			args:   api.Arguments{Named: map[string]json.RawMessage{"a": json.RawMessage(`1`), "b": json.RawMessage(`2`)}},
			want:   []any{map[string]int{"a": 1, "b": 2}},
		},
		{
			name:   "map parameter bound by name",
			method: object,
			args:   api.Arguments{Named: map[string]json.RawMessage{"counts": json.RawMessage(`{"c":3}`)}},
			want:   []any{map[string]int{"c": 3}},
		},
		{
			name:    "invalid json for parameter",
			method:  pair,
			args:    api.Arguments{Positional: []json.RawMessage{json.RawMessage(`"seven"`)}},
			wantErr: true,
		},
		{
			name:    "too many positional",
			method:  object,
			args:    api.Arguments{Positional: []json.RawMessage{json.RawMessage(`{}`), json.RawMessage(`{}`)}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := bind(tt.method, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, api.IsBadRequest(err))
				return
			}
			require.NoError(t, err)
			require.Len(t, values, len(tt.want))
			for i, v := range values {
				assert.Equal(t, tt.want[i], v.Interface())
			}
		})
	}
}

func TestBind_ParameterNamedInError(t *testing.T) {
	m := &api.MethodInfo{Parameters: []api.Parameter{{Name: "id", Type: reflect.TypeOf(0)}}}
	_, err := bind(m, api.Arguments{Named: map[string]json.RawMessage{"id": json.RawMessage(`"abc"`)}})

	var badRequest *api.BadRequestError
	require.ErrorAs(t, err, &badRequest)
	assert.Equal(t, "id", badRequest.Parameter)
}
