package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/smesmis/pos-checkout/api/responses"
	pkgAuth "github.com/smesmis/pos-checkout/pkg/auth"
	"github.com/smesmis/pos-checkout/pkg/auth/session"
	"github.com/smesmis/pos-checkout/pkg/config"
	pkgerrors "github.com/smesmis/pos-checkout/pkg/errors"
	"github.com/smesmis/pos-checkout/pkg/logger"
)

// Auth validates the bearer token issued by the MIS backend and seeds the
// request context with the operator identity.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := pkgAuth.BearerToken(r.Header.Get("Authorization"))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "missing credentials"))
				return
			}

			identity, err := pkgAuth.ParseAccessToken(cfg, token, time.Now())
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := session.WithIdentity(r.Context(), identity)
			if logg != nil {
				roles := make([]string, 0, len(identity.Roles))
				for _, role := range identity.Roles {
					roles = append(roles, role.String())
				}
				ctx = logg.WithUserID(ctx, identity.UserID)
				ctx = logg.WithField(ctx, "actor_roles", strings.Join(roles, ","))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
