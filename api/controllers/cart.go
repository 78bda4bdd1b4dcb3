package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/smesmis/pos-checkout/api/responses"
	"github.com/smesmis/pos-checkout/api/validators"
	cartsvc "github.com/smesmis/pos-checkout/internal/cart"
	"github.com/smesmis/pos-checkout/internal/discounts"
	pkgerrors "github.com/smesmis/pos-checkout/pkg/errors"
	"github.com/smesmis/pos-checkout/pkg/logger"
)

type productLookup interface {
	Product(ctx context.Context, id string) (cartsvc.Product, error)
}

type discountLookup interface {
	Lookup(ctx context.Context, code string) (*discounts.Discount, error)
}

// CartGet returns the caller's priced cart.
func CartGet(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := svc.Snapshot(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(snap))
	}
}

// CartAddItem fetches the product from the catalog and adds it to the cart.
// Out-of-stock products and quantities beyond stock leave the cart unchanged.
func CartAddItem(svc cartsvc.Service, catalog productLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := catalog.Product(r.Context(), strings.TrimSpace(payload.ProductID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snap, err := svc.AddItem(r.Context(), product, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(snap))
	}
}

// CartUpdateItem sets a line's quantity. Zero or less removes the line.
func CartUpdateItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snap, err := svc.UpdateQuantity(r.Context(), productID, *payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(snap))
	}
}

func CartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snap, err := svc.RemoveItem(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(snap))
	}
}

// CartApplyDiscount validates the code with the backend and replaces any
// discount already on the cart.
func CartApplyDiscount(svc cartsvc.Service, lookup discountLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload applyDiscountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		discount, err := lookup.Lookup(r.Context(), payload.Code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snap, err := svc.ApplyDiscount(r.Context(), discount.Code, discount.Percentage)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(snap))
	}
}

func CartRemoveDiscount(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := svc.RemoveDiscount(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(snap))
	}
}

func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := svc.Clear(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(snap))
	}
}

func productIDParam(r *http.Request) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, "productId"))
	if id == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "product id is required").
			WithDetails(map[string]string{"field": "productId"})
	}
	return id, nil
}
