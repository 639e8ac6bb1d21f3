package auth

import (
	"context"

	"github.com/gary-archer/oauth.websample.azure/pkg/auth/claims"
)

type principalContextKey struct{}

// ContextWithPrincipal stores the authorized principal on the context
func ContextWithPrincipal(ctx context.Context, principal *claims.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext retrieves the authorized principal, with ok false
// for requests that did not pass through the middleware
func PrincipalFromContext(ctx context.Context) (*claims.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(*claims.Principal)
	return principal, ok
}
