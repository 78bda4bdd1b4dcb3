package cart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smesmis/pos-checkout/pkg/config"
	"github.com/smesmis/pos-checkout/pkg/enums"
	pkgerrors "github.com/smesmis/pos-checkout/pkg/errors"
	"github.com/smesmis/pos-checkout/pkg/logger"
)

// SessionProvider identifies the operator a call acts for.
type SessionProvider interface {
	CurrentUserID(ctx context.Context) string
	AuthToken(ctx context.Context) string
}

// Service owns cart contents and derived totals for each operator.
type Service interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
	AddItem(ctx context.Context, product Product, quantity int) (*Snapshot, error)
	UpdateQuantity(ctx context.Context, productID string, quantity int) (*Snapshot, error)
	RemoveItem(ctx context.Context, productID string) (*Snapshot, error)
	ApplyDiscount(ctx context.Context, code string, percentage decimal.Decimal) (*Snapshot, error)
	RemoveDiscount(ctx context.Context) (*Snapshot, error)
	Clear(ctx context.Context) (*Snapshot, error)
	Discard(ctx context.Context) error
}

// Options tunes pricing and update behavior.
type Options struct {
	TaxRate        decimal.Decimal
	QuantityPolicy enums.QuantityPolicy
	Now            func() time.Time
}

// OptionsFromConfig converts the environment config into engine options.
func OptionsFromConfig(cfg config.CartConfig) (Options, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(cfg.TaxRate))
	if err != nil {
		return Options{}, fmt.Errorf("parse tax rate %q: %w", cfg.TaxRate, err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Options{}, fmt.Errorf("tax rate %s must be in [0,1)", rate)
	}
	policy, err := enums.ParseQuantityPolicy(cfg.QuantityPolicy)
	if err != nil {
		return Options{}, err
	}
	return Options{TaxRate: rate, QuantityPolicy: policy}, nil
}

type service struct {
	store    Store
	sessions SessionProvider
	logg     *logger.Logger
	taxRate  decimal.Decimal
	policy   enums.QuantityPolicy
	now      func() time.Time
	locks    *keyedMutex
}

// NewService builds the cart engine.
func NewService(store Store, sessions SessionProvider, opts Options, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session provider required")
	}
	if opts.QuantityPolicy == "" {
		opts.QuantityPolicy = enums.QuantityPolicyUnchecked
	}
	if !opts.QuantityPolicy.IsValid() {
		return nil, fmt.Errorf("invalid quantity policy %q", opts.QuantityPolicy)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &service{
		store:    store,
		sessions: sessions,
		logg:     logg,
		taxRate:  opts.TaxRate,
		policy:   opts.QuantityPolicy,
		now:      opts.Now,
		locks:    newKeyedMutex(),
	}, nil
}

func (s *service) Snapshot(ctx context.Context) (*Snapshot, error) {
	userID := s.sessions.CurrentUserID(ctx)
	if userID == "" {
		return emptySnapshot(s.taxRate), nil
	}
	unlock := s.locks.Lock(userID)
	defer unlock()
	return s.load(ctx, userID)
}

func (s *service) AddItem(ctx context.Context, product Product, quantity int) (*Snapshot, error) {
	productID := strings.TrimSpace(product.ID)
	if productID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if quantity == 0 {
		quantity = 1
	}

	return s.mutate(ctx, func(snap *Snapshot) bool {
		if product.StockAvailable < 1 {
			return false
		}
		unitDiscount := unitDiscountFor(product.Price, product.DiscountPercentage)

		if idx := snap.indexOf(productID); idx >= 0 {
			line := &snap.Items[idx]
			next := line.Quantity + quantity
			if next > product.StockAvailable {
				return false
			}
			line.Quantity = next
			line.UnitDiscount = unitDiscount
			line.DiscountPercentage = clampPercentage(product.DiscountPercentage)
			line.StockAvailable = product.StockAvailable
			return true
		}

		if quantity > product.StockAvailable {
			return false
		}
		snap.Items = append(snap.Items, LineItem{
			ProductID:          productID,
			Name:               product.Name,
			SKU:                product.SKU,
			Barcode:            product.Barcode,
			UnitPrice:          product.Price,
			Quantity:           quantity,
			UnitDiscount:       unitDiscount,
			DiscountPercentage: clampPercentage(product.DiscountPercentage),
			StockAvailable:     product.StockAvailable,
		})
		return true
	})
}

func (s *service) UpdateQuantity(ctx context.Context, productID string, quantity int) (*Snapshot, error) {
	if quantity < 1 {
		return s.RemoveItem(ctx, productID)
	}
	return s.mutate(ctx, func(snap *Snapshot) bool {
		idx := snap.indexOf(productID)
		if idx < 0 {
			return false
		}
		line := &snap.Items[idx]
		if s.policy == enums.QuantityPolicyEnforceStock && quantity > line.StockAvailable {
			return false
		}
		line.Quantity = quantity
		return true
	})
}

func (s *service) RemoveItem(ctx context.Context, productID string) (*Snapshot, error) {
	return s.mutate(ctx, func(snap *Snapshot) bool {
		idx := snap.indexOf(productID)
		if idx < 0 {
			return false
		}
		snap.Items = append(snap.Items[:idx], snap.Items[idx+1:]...)
		return true
	})
}

func (s *service) ApplyDiscount(ctx context.Context, code string, percentage decimal.Decimal) (*Snapshot, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount code is required")
	}
	if percentage.IsNegative() || percentage.GreaterThan(hundred) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount percentage must be between 0 and 100")
	}
	return s.mutate(ctx, func(snap *Snapshot) bool {
		snap.Discount = &AppliedDiscount{Code: code, Percentage: percentage}
		return true
	})
}

func (s *service) RemoveDiscount(ctx context.Context) (*Snapshot, error) {
	return s.mutate(ctx, func(snap *Snapshot) bool {
		if snap.Discount == nil {
			return false
		}
		snap.Discount = nil
		return true
	})
}

func (s *service) Clear(ctx context.Context) (*Snapshot, error) {
	return s.mutate(ctx, func(snap *Snapshot) bool {
		snap.Items = []LineItem{}
		snap.Discount = nil
		return true
	})
}

// Discard drops the operator's stored cart entirely, as on logout.
func (s *service) Discard(ctx context.Context) error {
	userID := s.sessions.CurrentUserID(ctx)
	if userID == "" {
		return nil
	}
	unlock := s.locks.Lock(userID)
	defer unlock()
	return s.store.Delete(ctx, userID)
}

// mutate runs fn against the operator's current snapshot. When fn reports a
// change the snapshot is recomputed and persisted; otherwise it is returned
// untouched. Anonymous callers work on a throwaway empty cart.
func (s *service) mutate(ctx context.Context, fn func(*Snapshot) bool) (*Snapshot, error) {
	userID := s.sessions.CurrentUserID(ctx)
	if userID == "" {
		snap := emptySnapshot(s.taxRate)
		if fn(snap) {
			snap.TaxRate = s.taxRate
			recompute(snap)
			snap.UpdatedAt = s.now().UTC()
		}
		return snap, nil
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	snap, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !fn(snap) {
		return snap, nil
	}

	snap.TaxRate = s.taxRate
	recompute(snap)
	snap.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, userID, snap); err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithUserID(ctx, userID), "persist cart failed", err)
		}
		return nil, err
	}
	return snap.Clone(), nil
}

func (s *service) load(ctx context.Context, userID string) (*Snapshot, error) {
	snap, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return emptySnapshot(s.taxRate), nil
	}
	if snap.Items == nil {
		snap.Items = []LineItem{}
	}
	return snap, nil
}
