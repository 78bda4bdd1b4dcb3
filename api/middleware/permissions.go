package middleware

import (
	"net/http"

	"github.com/smesmis/pos-checkout/api/responses"
	"github.com/smesmis/pos-checkout/pkg/auth/session"
	"github.com/smesmis/pos-checkout/pkg/enums"
	pkgerrors "github.com/smesmis/pos-checkout/pkg/errors"
	"github.com/smesmis/pos-checkout/pkg/logger"
)

// RequirePermission rejects callers whose roles do not grant permission.
func RequirePermission(permission enums.Permission, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := session.IdentityFromContext(r.Context())
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			}
			if !identity.Can(permission) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "permission required").
					WithDetails(map[string]string{"permission": permission.String()}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
