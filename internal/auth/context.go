package auth

import (
	"context"

	"github.com/meatcoin/meatcoin/internal/identity"
)

// AuthContext carries the verified caller of a request.
type AuthContext struct {
	Caller identity.Identity
}

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// authContextKey is the context key for storing AuthContext.
	authContextKey contextKey = "auth_context"
)

// ContextWithAuth adds AuthContext to the context.
func ContextWithAuth(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, auth)
}

// AuthFromContext retrieves AuthContext from the context.
// Returns nil if not present.
func AuthFromContext(ctx context.Context) *AuthContext {
	auth, ok := ctx.Value(authContextKey).(*AuthContext)
	if !ok {
		return nil
	}
	return auth
}

// MustAuthFromContext retrieves AuthContext from the context.
// Panics if not present (use only when auth middleware has run).
func MustAuthFromContext(ctx context.Context) *AuthContext {
	auth := AuthFromContext(ctx)
	if auth == nil {
		panic("auth context not found - ensure auth middleware is applied")
	}
	return auth
}

// CallerFromContext returns the verified caller identity, or the zero
// identity if the request is unauthenticated.
func CallerFromContext(ctx context.Context) identity.Identity {
	auth := AuthFromContext(ctx)
	if auth == nil {
		return identity.Zero
	}
	return auth.Caller
}
