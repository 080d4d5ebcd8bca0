package auth

import "context"

// contextKey is an unexported type so only this package can set the value.
type contextKey struct{}

var identityKey = contextKey{}

// WithIdentity returns a context carrying the resolved identity for one
// inbound request. Passing nil records "no identity" explicitly, which is
// how each request starts; identity must never leak between requests
// sharing an execution context.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the identity resolved for the current request,
// or nil when the caller is anonymous.
func IdentityFromContext(ctx context.Context) *Identity {
	identity, _ := ctx.Value(identityKey).(*Identity)
	return identity
}
