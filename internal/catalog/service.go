package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/smesmis/pos-checkout/internal/cart"
	"github.com/smesmis/pos-checkout/pkg/backend"
	pkgerrors "github.com/smesmis/pos-checkout/pkg/errors"
)

type productFetcher interface {
	GetProduct(ctx context.Context, id string) (*backend.Product, error)
}

// Service resolves products from the backend into cart products.
type Service interface {
	Product(ctx context.Context, id string) (cart.Product, error)
}

type service struct {
	backend productFetcher
}

func NewService(client productFetcher) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("product fetcher required")
	}
	return &service{backend: client}, nil
}

func (s *service) Product(ctx context.Context, id string) (cart.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return cart.Product{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	p, err := s.backend.GetProduct(ctx, id)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			return cart.Product{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
		}
		return cart.Product{}, err
	}
	if p.Price.IsNegative() {
		return cart.Product{}, pkgerrors.New(pkgerrors.CodeDependency, "product has a negative price")
	}
	return cart.Product{
		ID:                 p.ID.String(),
		Name:               p.Name,
		SKU:                p.SKU,
		Barcode:            p.Barcode,
		Price:              p.Price.Decimal,
		StockAvailable:     p.QuantityInStock,
		DiscountPercentage: p.DiscountPercentage.Decimal,
	}, nil
}
