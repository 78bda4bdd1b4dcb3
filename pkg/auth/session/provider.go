package session

import (
	"context"

	"github.com/smesmis/pos-checkout/pkg/auth"
)

type identityKey struct{}

// WithIdentity stores the authenticated identity on the context.
func WithIdentity(ctx context.Context, id *auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored by WithIdentity.
func IdentityFromContext(ctx context.Context) (*auth.Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	id, ok := ctx.Value(identityKey{}).(*auth.Identity)
	return id, ok && id != nil
}

// Provider answers "who is the operator" and "which token do I forward"
// from the request context. The zero value is ready to use.
type Provider struct{}

// CurrentUserID returns the operator id, or "" for an anonymous context.
func (Provider) CurrentUserID(ctx context.Context) string {
	if id, ok := IdentityFromContext(ctx); ok {
		return id.UserID
	}
	return ""
}

// AuthToken returns the bearer token to forward to the backend, or "".
func (Provider) AuthToken(ctx context.Context) string {
	if id, ok := IdentityFromContext(ctx); ok {
		return id.Token
	}
	return ""
}

// Detach copies the identity onto a fresh background context so async
// work keeps the operator after the request that started it returns.
func Detach(ctx context.Context) context.Context {
	out := context.Background()
	if id, ok := IdentityFromContext(ctx); ok {
		out = WithIdentity(out, id)
	}
	return out
}
