package discounts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smesmis/pos-checkout/pkg/backend"
	pkgerrors "github.com/smesmis/pos-checkout/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

type discountFetcher interface {
	LookupDiscount(ctx context.Context, code string) (*backend.Discount, error)
}

// Discount is a validated cart-level discount ready to apply.
type Discount struct {
	Code       string
	Percentage decimal.Decimal
}

// Service validates discount codes against the backend.
type Service interface {
	Lookup(ctx context.Context, code string) (*Discount, error)
}

type service struct {
	backend discountFetcher
	now     func() time.Time
}

func NewService(client discountFetcher, now func() time.Time) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("discount fetcher required")
	}
	if now == nil {
		now = time.Now
	}
	return &service{backend: client, now: now}, nil
}

// Lookup resolves a code. Unknown, expired or malformed discounts are
// validation errors so the till can show them inline.
func (s *service) Lookup(ctx context.Context, code string) (*Discount, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount code is required")
	}

	d, err := s.backend.LookupDiscount(ctx, code)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount code")
		}
		return nil, err
	}

	pct := d.Percentage.Decimal
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount percentage out of range").
			WithDetails(map[string]any{"code": code, "percentage": pct.String()})
	}

	now := s.now()
	if !d.ValidFrom.IsZero() && now.Before(d.ValidFrom.Time) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount code is not active yet")
	}
	if !d.ValidTo.IsZero() && now.After(d.ValidTo.Time) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount code has expired")
	}

	resolved := d.Code
	if resolved == "" {
		resolved = code
	}
	return &Discount{Code: resolved, Percentage: pct}, nil
}
