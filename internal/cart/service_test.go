package cart

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smesmis/pos-checkout/pkg/config"
	"github.com/smesmis/pos-checkout/pkg/enums"
	pkgerrors "github.com/smesmis/pos-checkout/pkg/errors"
)

type userKey struct{}

type ctxSessions struct{}

func (ctxSessions) CurrentUserID(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

func (ctxSessions) AuthToken(context.Context) string { return "" }

func asUser(id string) context.Context {
	return context.WithValue(context.Background(), userKey{}, id)
}

func newTestService(t *testing.T, store Store, policy enums.QuantityPolicy) Service {
	t.Helper()
	svc, err := NewService(store, ctxSessions{}, Options{
		TaxRate:        DefaultTaxRate,
		QuantityPolicy: policy,
		Now:            func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) },
	}, nil)
	require.NoError(t, err)
	return svc
}

func product(id, price string, stock int) Product {
	return Product{ID: id, Name: "Item " + id, Price: dec(price), StockAvailable: stock}
}

func assertInvariants(t *testing.T, snap *Snapshot) {
	t.Helper()
	assert.True(t, snap.GrandTotal.Equal(snap.PreTaxAmount.Add(snap.TaxAmount)),
		"grandTotal %s != preTax %s + tax %s", snap.GrandTotal, snap.PreTaxAmount, snap.TaxAmount)
	assert.True(t, snap.PreTaxAmount.Equal(snap.TaxExclusiveSubtotal.Sub(snap.TotalDiscount)),
		"preTax %s != taxExcl %s - totalDiscount %s", snap.PreTaxAmount, snap.TaxExclusiveSubtotal, snap.TotalDiscount)
	for _, field := range []decimal.Decimal{
		snap.TaxInclusiveSubtotal, snap.TaxAmount, snap.TaxExclusiveSubtotal,
		snap.ProductDiscountTotal, snap.CartDiscountTotal, snap.GrandTotal,
	} {
		assert.True(t, field.Equal(field.Round(2)), "field %s not rounded to cents", field)
	}
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	_, err := NewService(nil, ctxSessions{}, Options{}, nil)
	assert.Error(t, err)
	_, err = NewService(NewMemoryStore(), nil, Options{}, nil)
	assert.Error(t, err)
	_, err = NewService(NewMemoryStore(), ctxSessions{}, Options{QuantityPolicy: "clamp"}, nil)
	assert.Error(t, err)
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := OptionsFromConfig(config.CartConfig{TaxRate: "0.16", QuantityPolicy: "enforce_stock"})
	require.NoError(t, err)
	assert.True(t, opts.TaxRate.Equal(DefaultTaxRate))
	assert.Equal(t, enums.QuantityPolicyEnforceStock, opts.QuantityPolicy)

	_, err = OptionsFromConfig(config.CartConfig{TaxRate: "sixteen", QuantityPolicy: "unchecked"})
	assert.Error(t, err)
	_, err = OptionsFromConfig(config.CartConfig{TaxRate: "1.5", QuantityPolicy: "unchecked"})
	assert.Error(t, err)
}

func TestAddItemOutOfStockIsNoop(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(t, store, enums.QuantityPolicyUnchecked)
	ctx := asUser("cashier-1")

	snap, err := svc.AddItem(ctx, product("1", "50", 0), 1)
	require.NoError(t, err)
	assert.Empty(t, snap.Items)

	stored, _ := store.Load(ctx, "cashier-1")
	assert.Nil(t, stored)
}

func TestAddItemBeyondStockIsNoop(t *testing.T) {
	svc := newTestService(t, NewMemoryStore(), enums.QuantityPolicyUnchecked)
	ctx := asUser("cashier-1")

	_, err := svc.AddItem(ctx, product("1", "50", 4), 3)
	require.NoError(t, err)
	snap, err := svc.AddItem(ctx, product("1", "50", 4), 2)
	require.NoError(t, err)

	require.Len(t, snap.Items, 1)
	assert.Equal(t, 3, snap.Items[0].Quantity)
}

func TestAddItemMergesSameProduct(t *testing.T) {
	svc := newTestService(t, NewMemoryStore(), enums.QuantityPolicyUnchecked)
	ctx := asUser("cashier-1")

	_, err := svc.AddItem(ctx, product("1", "116", 10), 3)
	require.NoError(t, err)

	refreshed := product("1", "116", 10)
	refreshed.DiscountPercentage = dec("10")
	snap, err := svc.AddItem(ctx, refreshed, 2)
	require.NoError(t, err)

	require.Len(t, snap.Items, 1)
	assert.Equal(t, 5, snap.Items[0].Quantity)
	assertMoney(t, "11.60", snap.Items[0].UnitDiscount, "refreshed unit discount")
	assertInvariants(t, snap)
}

func TestAddItemPreservesInsertionOrder(t *testing.T) {
	svc := newTestService(t, NewMemoryStore(), enums.QuantityPolicyUnchecked)
	ctx := asUser("cashier-1")

	for _, id := range []string{"c", "a", "b"} {
		_, err := svc.AddItem(ctx, product(id, "10", 5), 1)
		require.NoError(t, err)
	}
	snap, err := svc.AddItem(ctx, product("a", "10", 5), 1)
	require.NoError(t, err)

	ids := []string{}
	for _, item := range snap.Items {
		ids = append(ids, item.ProductID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestAddItemRejectsBadInput(t *testing.T) {
	svc := newTestService(t, NewMemoryStore(), enums.QuantityPolicyUnchecked)

	_, err := svc.AddItem(asUser("u"), product(" ", "10", 5), 1)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.AddItem(asUser("u"), product("1", "10", 5), -2)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestUpdateQuantityBelowOneRemoves(t *testing.T) {
	svc := newTestService(t, NewMemoryStore(), enums.QuantityPolicyUnchecked)
	ctx := asUser("cashier-1")

	_, err := svc.AddItem(ctx, product("1", "10", 5), 2)
	require.NoError(t, err)
	snap, err := svc.UpdateQuantity(ctx, "1", 0)
	require.NoError(t, err)
	assert.Empty(t, snap.Items)
	assert.True(t, snap.GrandTotal.IsZero())
}

func TestUpdateQuantityPolicies(t *testing.T) {
	ctx := asUser("cashier-1")

	unchecked := newTestService(t, NewMemoryStore(), enums.QuantityPolicyUnchecked)
	_, err := unchecked.AddItem(ctx, product("1", "10", 5), 1)
	require.NoError(t, err)
	snap, err := unchecked.UpdateQuantity(ctx, "1", 9)
	require.NoError(t, err)
	assert.Equal(t, 9, snap.Items[0].Quantity)

	enforced := newTestService(t, NewMemoryStore(), enums.QuantityPolicyEnforceStock)
	_, err = enforced.AddItem(ctx, product("1", "10", 5), 1)
	require.NoError(t, err)
	snap, err = enforced.UpdateQuantity(ctx, "1", 9)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Items[0].Quantity)
	snap, err = enforced.UpdateQuantity(ctx, "1", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, snap.Items[0].Quantity)
}

func TestRemoveItemUnknownIsNoop(t *testing.T) {
	svc := newTestService(t, NewMemoryStore(), enums.QuantityPolicyUnchecked)
	ctx := asUser("cashier-1")

	_, err := svc.AddItem(ctx, product("1", "10", 5), 1)
	require.NoError(t, err)
	snap, err := svc.RemoveItem(ctx, "nope")
	require.NoError(t, err)
	assert.Len(t, snap.Items, 1)
}

func TestRemoveDiscountRestoresGrandTotal(t *testing.T) {
	svc := newTestService(t, NewMemoryStore(), enums.QuantityPolicyUnchecked)
	ctx := asUser("cashier-1")

	_, err := svc.AddItem(ctx, product("1", "116", 5), 1)
	require.NoError(t, err)
	before, err := svc.AddItem(ctx, product("2", "33.33", 5), 2)
	require.NoError(t, err)

	discounted, err := svc.ApplyDiscount(ctx, "X10", dec("10"))
	require.NoError(t, err)
	assert.True(t, discounted.GrandTotal.LessThan(before.GrandTotal))
	assertInvariants(t, discounted)

	after, err := svc.RemoveDiscount(ctx)
	require.NoError(t, err)
	assert.True(t, before.GrandTotal.Equal(after.GrandTotal), "expected %s got %s", before.GrandTotal, after.GrandTotal)
	assert.Nil(t, after.Discount)
}

func TestApplyDiscountReplacesAndValidates(t *testing.T) {
	svc := newTestService(t, NewMemoryStore(), enums.QuantityPolicyUnchecked)
	ctx := asUser("cashier-1")

	_, err := svc.AddItem(ctx, product("1", "116", 5), 1)
	require.NoError(t, err)
	_, err = svc.ApplyDiscount(ctx, "A", dec("5"))
	require.NoError(t, err)
	snap, err := svc.ApplyDiscount(ctx, "SAVE10", dec("10"))
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", snap.Discount.Code)
	assertMoney(t, "106.00", snap.GrandTotal, "grandTotal")

	_, err = svc.ApplyDiscount(ctx, "", dec("10"))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	_, err = svc.ApplyDiscount(ctx, "BIG", dec("101"))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestClearPersistsEmptyState(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(t, store, enums.QuantityPolicyUnchecked)
	ctx := asUser("cashier-1")

	_, err := svc.AddItem(ctx, product("1", "116", 5), 1)
	require.NoError(t, err)
	_, err = svc.ApplyDiscount(ctx, "SAVE10", dec("10"))
	require.NoError(t, err)

	snap, err := svc.Clear(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Items)
	assert.Nil(t, snap.Discount)

	stored, err := store.Load(ctx, "cashier-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Empty(t, stored.Items)
	assert.True(t, stored.GrandTotal.IsZero())
}

func TestUsersHaveIndependentCarts(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(t, store, enums.QuantityPolicyUnchecked)

	_, err := svc.AddItem(asUser("alice"), product("1", "116", 5), 2)
	require.NoError(t, err)

	bob, err := svc.Snapshot(asUser("bob"))
	require.NoError(t, err)
	assert.Empty(t, bob.Items)

	_, err = svc.AddItem(asUser("bob"), product("2", "10", 5), 1)
	require.NoError(t, err)

	alice, err := svc.Snapshot(asUser("alice"))
	require.NoError(t, err)
	require.Len(t, alice.Items, 1)
	assert.Equal(t, "1", alice.Items[0].ProductID)
	assert.Equal(t, 2, alice.Items[0].Quantity)
}

func TestAnonymousCartIsNeverPersisted(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(t, store, enums.QuantityPolicyUnchecked)

	snap, err := svc.AddItem(context.Background(), product("1", "116", 5), 1)
	require.NoError(t, err)
	assert.Len(t, snap.Items, 1)

	again, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, again.Items)
	assert.Empty(t, store.carts)
}

func TestDiscardRemovesStoredCart(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(t, store, enums.QuantityPolicyUnchecked)
	ctx := asUser("cashier-1")

	_, err := svc.AddItem(ctx, product("1", "116", 5), 1)
	require.NoError(t, err)
	require.NoError(t, svc.Discard(ctx))

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Items)
}

func TestInvariantsHoldAcrossRandomMutations(t *testing.T) {
	svc := newTestService(t, NewMemoryStore(), enums.QuantityPolicyUnchecked)
	ctx := asUser("cashier-1")
	rng := rand.New(rand.NewSource(7))
	prices := []string{"0.99", "1.01", "19.99", "116", "33.33", "250.50", "7.07"}

	for i := 0; i < 300; i++ {
		id := string(rune('a' + rng.Intn(6)))
		var (
			snap *Snapshot
			err  error
		)
		switch rng.Intn(5) {
		case 0, 1:
			p := product(id, prices[rng.Intn(len(prices))], rng.Intn(12))
			p.DiscountPercentage = decimal.NewFromInt(int64(rng.Intn(30)))
			snap, err = svc.AddItem(ctx, p, 1+rng.Intn(4))
		case 2:
			snap, err = svc.UpdateQuantity(ctx, id, rng.Intn(8)-1)
		case 3:
			snap, err = svc.RemoveItem(ctx, id)
		case 4:
			if rng.Intn(2) == 0 {
				snap, err = svc.ApplyDiscount(ctx, "RND", decimal.NewFromInt(int64(rng.Intn(101))))
			} else {
				snap, err = svc.RemoveDiscount(ctx)
			}
		}
		require.NoError(t, err)
		assertInvariants(t, snap)
	}
}

func TestConcurrentAddsAreSerialized(t *testing.T) {
	svc := newTestService(t, NewMemoryStore(), enums.QuantityPolicyUnchecked)
	ctx := asUser("cashier-1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.AddItem(ctx, product("1", "10", 100), 1)
		}()
	}
	wg.Wait()

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 20, snap.Items[0].Quantity)
}
