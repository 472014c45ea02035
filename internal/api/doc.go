// Package api defines the contracts shared by every rpcexpose package.
//
// Nothing in this package depends on another internal package. The
// builder, registry, endpoint table, dispatcher and transports all speak in
// terms of the types declared here and import it directly:
//
//	exposure ◄── registry ──► endpoint ◄── dispatch ◄── server, mcpserver
//
// # Method metadata
//
// MethodInfo is what the discovery collaborator produces for every candidate
// method: its declaring service, declared options (the equivalent of route
// attributes), parameter and result shapes, and an Invoker that performs the
// call on an activated instance.
//
// # Compiled endpoints
//
// MethodConfiguration is the read-only view handed to policy providers while
// an endpoint is compiled. Endpoint embeds it and adds the resolved
// authorization checks, filter factories and response headers. Both are
// immutable once published.
//
// # Policies
//
//   - AuthorizationProvider: MethodConfiguration → []Authorization
//   - FilterProvider: MethodConfiguration → FilterFactory (nil = not applied)
//   - MethodFilter: MethodInfo → bool (false excludes the method)
//   - PrefixFunc: ServiceInfo → []string
//   - ResponseHeader: name/value pair applied on success
//
// # Per-request state
//
// RequestContext is created by the dispatcher for one call and owned by it
// until the response is produced. Filters receive it and may stage a result,
// override the status code or add headers.
//
// # Errors
//
// errors.go holds the error taxonomy: configuration errors are fatal at
// startup; NotFoundError, UnauthorizedError and BadRequestError are expected
// per-request outcomes; HandlerFaultError wraps faults raised by filters or
// the target method; ErrRequestAborted signals cancellation.
package api
