package dispatch

import (
	"encoding/json"
	"fmt"
	"reflect"

	"rpcexpose/internal/api"
)

// bind decodes the raw call arguments into the method's parameters.
//
// Positional arguments bind in order. Named arguments bind by parameter
// name; a method taking a single struct or map parameter binds the whole
// named object when the object does not carry the parameter's own name.
// Missing arguments bind the zero value.
func bind(m *api.MethodInfo, args api.Arguments) ([]reflect.Value, error) {
	params := m.Parameters
	if len(params) == 0 {
		if len(args.Positional) > 0 {
			return nil, &api.BadRequestError{Err: fmt.Errorf("method takes no arguments, got %d", len(args.Positional))}
		}
		return nil, nil
	}

	raws := make([]json.RawMessage, len(params))
	switch {
	case len(args.Positional) > 0:
		if len(args.Positional) > len(params) {
			return nil, &api.BadRequestError{Err: fmt.Errorf("too many arguments: got %d, want at most %d", len(args.Positional), len(params))}
		}
		copy(raws, args.Positional)
	case len(args.Named) > 0:
		if _, named := args.Named[params[0].Name]; len(params) == 1 && !named && bindsObject(params[0].Type) {
			whole, err := json.Marshal(args.Named)
			if err != nil {
				return nil, &api.BadRequestError{Parameter: params[0].Name, Err: err}
			}
			raws[0] = whole
			break
		}
		for i, p := range params {
			raws[i] = args.Named[p.Name]
		}
	}

	values := make([]reflect.Value, len(params))
	for i, p := range params {
		v := reflect.New(p.Type)
		if len(raws[i]) > 0 {
			if err := json.Unmarshal(raws[i], v.Interface()); err != nil {
				return nil, &api.BadRequestError{Parameter: p.Name, Err: err}
			}
		}
		values[i] = v.Elem()
	}
	return values, nil
}

func bindsObject(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct || t.Kind() == reflect.Map
}
