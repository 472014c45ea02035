package api

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRequestAborted is returned when a call is cancelled before it produced
// a result. No response body or endpoint headers are produced for it.
var ErrRequestAborted = errors.New("request aborted")

// ErrUnexpectedBody is returned when a request body reaches an endpoint
// that takes no request body.
var ErrUnexpectedBody = errors.New("endpoint does not accept a request body")

// NotFoundError represents a route or resource that does not exist.
type NotFoundError struct {
	// ResourceType categorizes what was not found (e.g., "route", "service").
	ResourceType string

	// ResourceName is the identifier that was looked up.
	ResourceName string

	// Message overrides the default message when set.
	Message string
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s not found", e.ResourceType, e.ResourceName)
}

// IsNotFound checks if an error is a NotFoundError using error unwrapping.
//
// Args:
//   - err: The error to check
//
// Returns:
//   - bool: true if the error is or wraps a NotFoundError
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}

// NewNotFoundError creates a NotFoundError for the given resource.
func NewNotFoundError(resourceType, resourceName string) *NotFoundError {
	return &NotFoundError{ResourceType: resourceType, ResourceName: resourceName}
}

// NewRouteNotFoundError creates the NotFoundError reported by the dispatcher
// when no endpoint matches verb and path.
func NewRouteNotFoundError(verb, path string) *NotFoundError {
	return &NotFoundError{ResourceType: "route", ResourceName: verb + " " + path}
}

// UnauthorizedError is returned when an authorization check denies a call.
// Reasons holds the names of the denying checks, in evaluation order.
type UnauthorizedError struct {
	Route   string
	Reasons []string
}

// Error implements the error interface for UnauthorizedError.
func (e *UnauthorizedError) Error() string {
	if len(e.Reasons) == 0 {
		return fmt.Sprintf("unauthorized: %s", e.Route)
	}
	return fmt.Sprintf("unauthorized: %s: %s", e.Route, strings.Join(e.Reasons, "; "))
}

// IsUnauthorized checks if an error is an UnauthorizedError.
func IsUnauthorized(err error) bool {
	var unauthorized *UnauthorizedError
	return errors.As(err, &unauthorized)
}

// BadRequestError is returned when the call arguments cannot be bound to
// the method's parameters.
type BadRequestError struct {
	Parameter string
	Err       error
}

// Error implements the error interface for BadRequestError.
func (e *BadRequestError) Error() string {
	if e.Parameter == "" {
		return fmt.Sprintf("bad request: %v", e.Err)
	}
	return fmt.Sprintf("bad request: parameter %s: %v", e.Parameter, e.Err)
}

func (e *BadRequestError) Unwrap() error {
	return e.Err
}

// IsBadRequest checks if an error is a BadRequestError.
func IsBadRequest(err error) bool {
	var badRequest *BadRequestError
	return errors.As(err, &badRequest)
}

// HandlerFaultError wraps a fault raised by a filter or the target method.
// Transports expose only a generic message for it; Err is kept for logging.
type HandlerFaultError struct {
	Route string
	Err   error
	// Panic is set when the fault was a recovered panic.
	Panic bool
}

// Error implements the error interface for HandlerFaultError.
func (e *HandlerFaultError) Error() string {
	if e.Panic {
		return fmt.Sprintf("handler panic in %s: %v", e.Route, e.Err)
	}
	return fmt.Sprintf("handler fault in %s: %v", e.Route, e.Err)
}

func (e *HandlerFaultError) Unwrap() error {
	return e.Err
}

// IsHandlerFault checks if an error is a HandlerFaultError.
func IsHandlerFault(err error) bool {
	var fault *HandlerFaultError
	return errors.As(err, &fault)
}

// IsAborted reports whether err signals a cancelled call.
func IsAborted(err error) bool {
	return errors.Is(err, ErrRequestAborted)
}

// ConfigurationError is a fatal error detected while compiling the exposed
// endpoints. It prevents the server from entering the serving phase.
type ConfigurationError struct {
	Method  string
	Message string
	Err     error
}

// Error implements the error interface for ConfigurationError.
func (e *ConfigurationError) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Method == "" {
		return "configuration error: " + msg
	}
	return fmt.Sprintf("configuration error in %s: %s", e.Method, msg)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// DuplicateRouteError reports two different methods resolving to the same
// verb and route.
type DuplicateRouteError struct {
	Verb     string
	Route    string
	Existing string
	Conflict string
}

// Error implements the error interface for DuplicateRouteError.
func (e *DuplicateRouteError) Error() string {
	return fmt.Sprintf("duplicate route %s %s: registered by %s and %s", e.Verb, e.Route, e.Existing, e.Conflict)
}

// IsConfigurationError reports whether err is a ConfigurationError or a
// DuplicateRouteError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	var dup *DuplicateRouteError
	return errors.As(err, &cfgErr) || errors.As(err, &dup)
}
