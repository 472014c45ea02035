// Package app provides application bootstrap and lifecycle management for rpcexpose.
//
// # Architecture Overview
//
// The package is the composition root. It has three parts:
//
//  1. **Configuration (`config.go`)**: runtime settings handed over by the CLI
//  2. **Services (`services.go`)**: construction of every component in dependency order
//  3. **Bootstrap (`bootstrap.go`)**: configuration loading, logging setup and the run loop
//
// # Bootstrap
//
// NewApplication loads the YAML configuration (defaults when no file is
// given), reconfigures logging from its `logging` section and builds all
// services. Route compilation happens here unless `exposure.lazyCompile`
// is set, so compile errors such as duplicate routes abort startup before
// anything listens.
//
// # Services
//
// The exposure configuration receives the file's default verb, activation
// method and response headers first, then the demo composition declares its
// exposures on top. A policy named `admin` in `authorization.policies` is
// additionally required for deleting orders.
//
// # Run Loop
//
// Run starts the HTTP transport in an errgroup. The MCP transport, when
// enabled, is mounted on the same listener. Once the listener accepts
// connections systemd is notified with READY=1; on cancellation it is
// notified with STOPPING=1 and in-flight calls drain within
// `server.shutdownTimeout`. Service instances implementing io.Closer are
// closed last.
package app
