// Package logging provides subsystem-scoped structured logging for rpcexpose,
// built on Go's standard slog package.
//
// # Log Levels
//   - **Debug**: compilation details, per-request tracing of filter stages
//   - **Info**: startup, exposure registration, listener addresses
//   - **Warn**: denied requests, recoverable misconfiguration
//   - **Error**: handler faults, transport failures
//
// Every entry carries a subsystem attribute. Errors passed to Error are added
// as an "error" attribute rather than interpolated into the message.
//
// # Usage
//
//	logging.Init(logging.LevelInfo, logging.FormatJSON, os.Stderr)
//
//	logging.Info("Bootstrap", "Listening on %s", addr)
//	logging.Debug("Registry", "Compiled %d endpoints", n)
//	logging.Error("Dispatcher", err, "Handler fault on %s", route)
//
// # Subsystems
//
//   - **Bootstrap**: application wiring and startup
//   - **Config**: configuration loading and validation
//   - **Exposure**: builder mutations and exposure groups
//   - **Registry**: descriptor compilation
//   - **EndpointTable**: lazy compilation and publication
//   - **Dispatcher**: per-request pipeline
//   - **Authz**: role and policy evaluation
//   - **HTTPServer**, **MCPServer**: transports
//
// Init may be called more than once; the most recent call wins. All logging
// functions are safe for concurrent use.
package logging
