package middleware

import (
	"context"

	"github.com/smesmis/pos-checkout/pkg/auth/session"
)

// UserIDFromContext returns the authenticated operator id, or "".
func UserIDFromContext(ctx context.Context) string {
	return session.Provider{}.CurrentUserID(ctx)
}
