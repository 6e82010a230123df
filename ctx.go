package auth

import "context"

var identityCtxKey = &contextKey{"identity"}

type contextKey struct {
	name string
}

// WithIdentity sets the Identity in the given context
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey, identity)
}

// IdentityFromContext finds the identity in the context
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	identity, ok := ctx.Value(identityCtxKey).(*Identity)
	return identity, ok && identity != nil
}

// Can checks the identity stored in ctx against roles
func Can(ctx context.Context, roles ...Role) bool {
	identity, _ := IdentityFromContext(ctx)
	return Authorize(identity, roles...) == nil
}
