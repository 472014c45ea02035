// Package server provides the HTTP transport of rpcexpose.
//
// The transport maps every request below the configured base path onto an
// api.Call and hands it to the dispatcher. Routing itself happens in the
// endpoint table, so the router only separates the exposed routes from the
// operational endpoints:
//
//	┌──────────────────────────────────────────────┐
//	│              gorilla/mux router              │
//	│                                              │
//	│  /healthz   readiness                        │
//	│  /metrics   Prometheus (optional)            │
//	│  /mcp       MCP transport (optional)         │
//	│  {base}/…   principal → decode → Dispatch    │
//	└──────────────────────────────────────────────┘
//
// # Request Decoding
//
// A JSON array body supplies positional arguments, a JSON object body named
// arguments and any other JSON value a single positional argument. Query
// parameters are named arguments; a value that is not valid JSON is taken as
// a string, so ?id=42 binds the number 42 and ?name=bob the string "bob".
//
// # Principal
//
// The caller identity is read from the user header and the comma separated
// role header. Deployments put an authenticating proxy in front of the
// transport that sets both.
//
// # Responses
//
// Successful calls write the endpoint headers, the status of the response
// and, when the endpoint has a response body, the JSON encoded result.
// Failures write a JSON error document. Handler faults never leak their
// cause to the caller.
package server
