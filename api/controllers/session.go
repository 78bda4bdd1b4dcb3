package controllers

import (
	"net/http"

	"github.com/smesmis/pos-checkout/api/responses"
	cartsvc "github.com/smesmis/pos-checkout/internal/cart"
	"github.com/smesmis/pos-checkout/pkg/logger"
)

// SessionLogout drops the operator's stored cart. The MIS backend owns the
// token itself, so there is nothing to revoke here.
func SessionLogout(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Discard(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
