package cart

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/smesmis/pos-checkout/pkg/redis"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return NewRedisStore(redisclient.NewFromRedis(raw), ttl), mr
}

func TestRedisStoreRoundTripsSnapshot(t *testing.T) {
	store, mr := newRedisStore(t, time.Hour)
	ctx := context.Background()

	snap := &Snapshot{
		TaxRate:  DefaultTaxRate,
		Items:    []LineItem{{ProductID: "1", Name: "Sugar", UnitPrice: dec("116.00"), Quantity: 1, StockAvailable: 4}},
		Discount: &AppliedDiscount{Code: "SAVE10", Percentage: dec("10")},
	}
	recompute(snap)

	require.NoError(t, store.Save(ctx, "cashier-1", snap))
	assert.True(t, mr.Exists("pos:cart:cashier-1"))
	assert.Equal(t, time.Hour, mr.TTL("pos:cart:cashier-1"))

	loaded, err := store.Load(ctx, "cashier-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "SAVE10", loaded.Discount.Code)
	assert.True(t, loaded.GrandTotal.Equal(dec("106.00")))
	assert.True(t, loaded.TaxAmount.Equal(snap.TaxAmount))
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, 4, loaded.Items[0].StockAvailable)
}

func TestRedisStoreLoadSlidesTTL(t *testing.T) {
	store, mr := newRedisStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "u", emptySnapshot(DefaultTaxRate)))
	mr.FastForward(50 * time.Minute)

	_, err := store.Load(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, mr.TTL("pos:cart:u"))
}

func TestRedisStoreMissingAndDelete(t *testing.T) {
	store, mr := newRedisStore(t, 0)
	ctx := context.Background()

	loaded, err := store.Load(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	require.NoError(t, store.Save(ctx, "u", emptySnapshot(DefaultTaxRate)))
	require.NoError(t, store.Delete(ctx, "u"))
	assert.False(t, mr.Exists("pos:cart:u"))
}

func TestRedisStoreCorruptPayload(t *testing.T) {
	store, mr := newRedisStore(t, 0)
	require.NoError(t, mr.Set("pos:cart:u", "{not json"))

	_, err := store.Load(context.Background(), "u")
	assert.Error(t, err)
}

func TestServiceOverRedisStore(t *testing.T) {
	store, _ := newRedisStore(t, time.Hour)
	svc := newTestService(t, store, "")
	ctx := asUser("cashier-9")

	_, err := svc.AddItem(ctx, product("1", "116", 3), 1)
	require.NoError(t, err)
	_, err = svc.ApplyDiscount(ctx, "SAVE10", dec("10"))
	require.NoError(t, err)

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assertMoney(t, "90.00", snap.PreTaxAmount, "preTaxAmount")
	assertMoney(t, "106.00", snap.GrandTotal, "grandTotal")
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	snap := &Snapshot{Items: []LineItem{{ProductID: "1", Quantity: 1}}}
	require.NoError(t, store.Save(ctx, "u", snap))

	snap.Items[0].Quantity = 99
	loaded, err := store.Load(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Items[0].Quantity)
}
