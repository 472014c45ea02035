package server

import (
	"context"
	"net/http"
	"strings"

	"rpcexpose/internal/api"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const principalKey contextKey = "rpcexpose_principal"

// PrincipalExtractor derives the caller identity of a request. It returns
// nil for anonymous callers.
type PrincipalExtractor func(r *http.Request) *api.Principal

// HeaderPrincipal reads the subject from userHeader and a comma separated
// role list from roleHeader.
func HeaderPrincipal(userHeader, roleHeader string) PrincipalExtractor {
	return func(r *http.Request) *api.Principal {
		subject := strings.TrimSpace(r.Header.Get(userHeader))
		if subject == "" {
			return nil
		}
		var roles []string
		for _, role := range strings.Split(r.Header.Get(roleHeader), ",") {
			if role = strings.TrimSpace(role); role != "" {
				roles = append(roles, role)
			}
		}
		return &api.Principal{Subject: subject, Roles: roles}
	}
}

// ContextWithPrincipal returns a context carrying p.
func ContextWithPrincipal(ctx context.Context, p *api.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the principal stored by the principal
// middleware, or nil.
func PrincipalFromContext(ctx context.Context) *api.Principal {
	p, _ := ctx.Value(principalKey).(*api.Principal)
	return p
}

// principalMiddleware stores the extracted principal in the request context
// so that every handler behind it, the MCP transport included, sees the
// same identity.
func principalMiddleware(extract PrincipalExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p := extract(r); p != nil {
				r = r.WithContext(ContextWithPrincipal(r.Context(), p))
			}
			next.ServeHTTP(w, r)
		})
	}
}
