package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"rpcexpose/internal/api"
	"rpcexpose/internal/endpoint"
	"rpcexpose/pkg/logging"
)

const (
	// TransportName identifies calls arriving over MCP.
	TransportName = "mcp"

	// MetaKey is the _meta key carrying status, headers and request id.
	MetaKey = "rpcexpose"
)

// Dispatcher executes calls.
type Dispatcher interface {
	Dispatch(ctx context.Context, call *api.Call) *api.Response
}

// Option configures a Server.
type Option func(*Server)

// WithPrincipal sets how the caller identity is read from a tool call
// context.
func WithPrincipal(fn func(ctx context.Context) *api.Principal) Option {
	return func(s *Server) { s.principal = fn }
}

// WithVersion sets the server version announced during initialization.
func WithVersion(version string) Option {
	return func(s *Server) { s.version = version }
}

// Server publishes endpoint routes as MCP tools.
type Server struct {
	dispatcher Dispatcher
	principal  func(ctx context.Context) *api.Principal
	version    string
	mcpServer  *server.MCPServer
	tools      []server.ServerTool
}

// New creates an MCP server with one tool per route of table. Routes added
// to the table afterwards are not published.
func New(table *endpoint.Table, dispatcher Dispatcher, opts ...Option) *Server {
	s := &Server{
		dispatcher: dispatcher,
		principal:  func(context.Context) *api.Principal { return nil },
		version:    "dev",
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcpServer = server.NewMCPServer(
		"rpcexpose",
		s.version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithPromptCapabilities(false),
	)

	seen := make(map[string]endpoint.Key)
	for _, route := range table.Routes() {
		name := ToolName(route.Key.Verb, route.Key.Path)
		if other, exists := seen[name]; exists {
			logging.Warn("MCPServer", "Tool name %s of %s collides with %s, skipping", name, route.Key, other)
			continue
		}
		seen[name] = route.Key
		s.tools = append(s.tools, server.ServerTool{
			Tool:    toolFor(name, route),
			Handler: s.handler(route.Key),
		})
	}
	s.mcpServer.AddTools(s.tools...)
	logging.Info("MCPServer", "Published %d tools", len(s.tools))
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Tools returns the published tools.
func (s *Server) Tools() []server.ServerTool {
	return s.tools
}

// Handler returns the streamable HTTP transport mounted at path.
func (s *Server) Handler(path string) http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer, server.WithEndpointPath(path))
}

// ToolName derives the tool name of a route: the lower-case verb and the
// path segments joined by underscores. Characters outside [A-Za-z0-9_-]
// become underscores.
func ToolName(verb, path string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(verb))
	for _, segment := range strings.Split(path, "/") {
		if segment == "" {
			continue
		}
		b.WriteByte('_')
		for _, r := range segment {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
				b.WriteRune(r)
			default:
				b.WriteByte('_')
			}
		}
	}
	return b.String()
}

func toolFor(name string, route endpoint.Route) mcp.Tool {
	tool := mcp.Tool{
		Name:        name,
		Description: fmt.Sprintf("%s %s", route.Key.Verb, route.Key.Path),
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
	if route.Endpoint == nil {
		return tool
	}

	m := route.Endpoint.Method
	if m.Options.Description != "" {
		tool.Description = m.Options.Description
	} else {
		tool.Description = fmt.Sprintf("%s (%s %s)", m, route.Key.Verb, route.Key.Path)
	}
	for _, p := range m.Parameters {
		tool.InputSchema.Properties[p.Name] = map[string]interface{}{
			"type": schemaType(p.Type),
		}
	}
	return tool
}

// schemaType maps a Go type onto its JSON schema type.
func schemaType(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.String:
		return "string"
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return "string"
		}
		return "array"
	default:
		return "object"
	}
}

func (s *Server) handler(key endpoint.Key) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := api.Arguments{}
		for name, value := range request.GetArguments() {
			raw, err := json.Marshal(value)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid argument %s: %v", name, err)), nil
			}
			if args.Named == nil {
				args.Named = make(map[string]json.RawMessage)
			}
			args.Named[name] = raw
		}

		resp := s.dispatcher.Dispatch(ctx, &api.Call{
			Verb:      key.Verb,
			Path:      key.Path,
			Args:      args,
			Principal: s.principal(ctx),
			Transport: TransportName,
		})
		return toResult(resp), nil
	}
}

// toResult converts a dispatcher response into a tool result.
func toResult(resp *api.Response) *mcp.CallToolResult {
	meta := map[string]any{
		"status":    resp.Status,
		"requestId": resp.RequestID,
	}

	var result *mcp.CallToolResult
	switch {
	case resp.Err != nil:
		result = mcp.NewToolResultError(errorMessage(resp))
	case !resp.HasBody:
		result = mcp.NewToolResultText("")
	default:
		payload, err := json.Marshal(resp.Body)
		if err != nil {
			logging.Error("MCPServer", err, "[%s] Failed to encode result", logging.TruncateID(resp.RequestID))
			result = mcp.NewToolResultError("internal server error")
			break
		}
		result = mcp.NewToolResultText(string(payload))
	}

	if resp.Err == nil && len(resp.Header) > 0 {
		headers := make(map[string]string, len(resp.Header))
		for name := range resp.Header {
			headers[name] = resp.Header.Get(name)
		}
		meta["headers"] = headers
	}
	result.Meta = &mcp.Meta{AdditionalFields: map[string]any{MetaKey: meta}}
	return result
}

func errorMessage(resp *api.Response) string {
	var unauthorized *api.UnauthorizedError
	switch {
	case resp.Aborted:
		return "request aborted"
	case errors.As(resp.Err, &unauthorized):
		return fmt.Sprintf("%s: %s", http.StatusText(resp.Status), strings.Join(unauthorized.Reasons, "; "))
	case resp.Status >= http.StatusInternalServerError:
		return "internal server error"
	default:
		return resp.Err.Error()
	}
}
