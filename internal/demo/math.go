// Package demo holds the services the rpcexpose binary exposes out of the
// box and the composition that wires them into an exposure configuration.
package demo

import (
	"context"
	"errors"

	"rpcexpose/internal/api"
)

// DoubleMath does floating point arithmetic.
type DoubleMath struct{}

// Add returns x + y.
func (DoubleMath) Add(x, y float64) float64 { return x + y }

// Subtract returns x - y.
func (DoubleMath) Subtract(x, y float64) float64 { return x - y }

// RouteOptions names the parameters.
func (DoubleMath) RouteOptions() map[string]api.MethodOptions {
	return map[string]api.MethodOptions{
		"Add":      {Params: []string{"x", "y"}, Description: "Adds two numbers"},
		"Subtract": {Params: []string{"x", "y"}, Description: "Subtracts y from x"},
	}
}

// IntMath does integer arithmetic. A fresh instance serves every call.
type IntMath struct{}

// Add returns x + y.
func (IntMath) Add(x, y int) int { return x + y }

// Multiply returns x * y.
func (IntMath) Multiply(x, y int) int { return x * y }

// Divide returns x / y. It honours cancellation of the call.
func (IntMath) Divide(ctx context.Context, x, y int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if y == 0 {
		return 0, &api.BadRequestError{Parameter: "y", Err: errors.New("division by zero")}
	}
	return x / y, nil
}

func (IntMath) RouteOptions() map[string]api.MethodOptions {
	params := []string{"x", "y"}
	return map[string]api.MethodOptions{
		"Add":      {Params: params},
		"Multiply": {Params: params},
		"Divide":   {Params: params, Verb: "GET"},
	}
}
