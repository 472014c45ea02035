package exposure

import (
	"rpcexpose/internal/api"
	"rpcexpose/pkg/chain"
)

// Snapshot is the frozen view of a Configuration at one point in time.
// It is never modified after construction and may be read concurrently.
type Snapshot struct {
	Authorizations chain.Chain[api.AuthorizationProvider]
	Filters        chain.Chain[api.FilterProvider]
	MethodFilters  chain.Chain[api.MethodFilter]
	Prefixes       chain.Chain[api.PrefixFunc]
	Headers        chain.Chain[api.ResponseHeader]

	DefaultMethod api.DefaultMethod
	Activation    api.ActivationMethod

	AuthorizationProvider api.AuthorizationImplementationProvider
	Services              api.ServiceActivator
}
