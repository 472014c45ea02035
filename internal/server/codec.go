package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"rpcexpose/internal/api"
	"rpcexpose/pkg/logging"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// RequestIDHeader carries the request id on every response.
const RequestIDHeader = "X-Request-Id"

// ErrorBody is the JSON document written for failed calls.
type ErrorBody struct {
	Error     ErrorDetail `json:"error"`
	RequestID string      `json:"requestId,omitempty"`
}

// ErrorDetail describes a failure.
type ErrorDetail struct {
	Status  int      `json:"status"`
	Message string   `json:"message"`
	Reasons []string `json:"reasons,omitempty"`
}

// decodeArguments reads the call arguments from the request body and query.
// hasBody reports whether the body carried any argument; whether the
// endpoint accepts one is decided by the dispatcher.
func decodeArguments(r *http.Request) (args api.Arguments, hasBody bool, err error) {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		return args, false, &api.BadRequestError{Err: fmt.Errorf("read body: %w", err)}
	}
	if body = bytes.TrimSpace(body); len(body) > 0 {
		if !json.Valid(body) {
			return args, false, &api.BadRequestError{Err: errors.New("request body is not valid JSON")}
		}
		switch body[0] {
		case '[':
			if err := json.Unmarshal(body, &args.Positional); err != nil {
				return args, false, &api.BadRequestError{Err: err}
			}
		case '{':
			if err := json.Unmarshal(body, &args.Named); err != nil {
				return args, false, &api.BadRequestError{Err: err}
			}
		default:
			args.Positional = []json.RawMessage{body}
		}
		hasBody = len(args.Positional) > 0 || len(args.Named) > 0
	}

	if len(args.Positional) == 0 {
		for name, raw := range queryArguments(r.URL.Query()) {
			if args.Named == nil {
				args.Named = make(map[string]json.RawMessage)
			}
			if _, set := args.Named[name]; !set {
				args.Named[name] = raw
			}
		}
	}
	return args, hasBody, nil
}

func queryArguments(q url.Values) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(q))
	for name, values := range q {
		if len(values) == 0 {
			continue
		}
		v := values[len(values)-1]
		if json.Valid([]byte(v)) {
			out[name] = json.RawMessage(v)
			continue
		}
		quoted, _ := json.Marshal(v)
		out[name] = quoted
	}
	return out
}

// writeResponse serializes resp onto w.
func writeResponse(w http.ResponseWriter, resp *api.Response) {
	if resp.Aborted {
		w.WriteHeader(resp.Status)
		return
	}

	h := w.Header()
	h.Set(RequestIDHeader, resp.RequestID)

	if resp.Err != nil {
		writeError(w, resp)
		return
	}

	for name, values := range resp.Header {
		h[name] = values
	}
	if !resp.HasBody {
		w.WriteHeader(resp.Status)
		return
	}

	payload, err := json.Marshal(resp.Body)
	if err != nil {
		logging.Error("HTTPServer", err, "[%s] Failed to encode response", logging.TruncateID(resp.RequestID))
		writeError(w, &api.Response{RequestID: resp.RequestID, Status: http.StatusInternalServerError, Err: &api.HandlerFaultError{Err: err}})
		return
	}
	h.Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(payload)
}

func writeError(w http.ResponseWriter, resp *api.Response) {
	detail := ErrorDetail{Status: resp.Status, Message: resp.Err.Error()}

	var unauthorized *api.UnauthorizedError
	switch {
	case errors.As(resp.Err, &unauthorized):
		detail.Message = http.StatusText(resp.Status)
		detail.Reasons = unauthorized.Reasons
	case resp.Status >= http.StatusInternalServerError:
		detail.Message = "internal server error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_ = json.NewEncoder(w).Encode(ErrorBody{Error: detail, RequestID: resp.RequestID})
}
