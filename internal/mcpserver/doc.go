// Package mcpserver exposes the endpoint table over the Model Context
// Protocol (MCP).
//
// Every route of the table becomes one MCP tool named after its verb and
// path, for example POST /math/Add becomes post_math_Add. Tool arguments are
// the named arguments of the call and tool calls go through the same
// dispatcher as HTTP requests, so authorization, filters and response
// headers behave identically on both transports.
//
// # Results
//
// A successful call returns its JSON encoded body as text content. Response
// headers, the status and the request id are attached under the
// "rpcexpose" key of the result's _meta. Failed calls return an error
// result; handler faults are reported without their cause.
//
// # Transport
//
// Handler returns a streamable HTTP handler that the HTTP transport mounts
// next to the exposed routes.
package mcpserver
