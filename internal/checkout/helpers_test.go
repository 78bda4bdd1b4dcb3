package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/smesmis/pos-checkout/internal/cart"
	"github.com/smesmis/pos-checkout/internal/payments"
	"github.com/smesmis/pos-checkout/pkg/backend"
	"github.com/smesmis/pos-checkout/pkg/config"
	"github.com/smesmis/pos-checkout/pkg/enums"
)

type userKey struct{}

type ctxUsers struct{}

func (ctxUsers) CurrentUserID(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

func (ctxUsers) AuthToken(context.Context) string { return "" }

func asUser(id string) context.Context {
	return context.WithValue(context.Background(), userKey{}, id)
}

type gatewayStub struct {
	mu       sync.Mutex
	statuses []string
	receipt  string
	initErr  error
	polls    int
	initReq  *backend.STKPushRequest
	onPoll   func(n int)
}

func (g *gatewayStub) InitiateSTKPush(ctx context.Context, req backend.STKPushRequest) (*backend.STKPushResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initReq = &req
	if g.initErr != nil {
		return nil, g.initErr
	}
	return &backend.STKPushResponse{CheckoutRequestID: "ws_CO_9", MerchantRequestID: "m-9"}, nil
}

func (g *gatewayStub) PaymentStatus(ctx context.Context, checkoutID, merchantID string) (*backend.PaymentStatus, error) {
	g.mu.Lock()
	g.polls++
	n := g.polls
	status := "PENDING"
	if len(g.statuses) > 0 {
		idx := n - 1
		if idx >= len(g.statuses) {
			idx = len(g.statuses) - 1
		}
		status = g.statuses[idx]
	}
	hook := g.onPoll
	g.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return &backend.PaymentStatus{Status: status, ReceiptNumber: g.receipt}, nil
}

type salesStub struct {
	mu         sync.Mutex
	requests   []backend.SaleRequest
	saleErr    error
	receiptErr error
	onCreate   func()
}

func (s *salesStub) CreateSale(ctx context.Context, req backend.SaleRequest) (*backend.Sale, error) {
	if s.onCreate != nil {
		s.onCreate()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.saleErr != nil {
		return nil, s.saleErr
	}
	return &backend.Sale{ID: "501"}, nil
}

func (s *salesStub) GetReceipt(ctx context.Context, saleID string) (*backend.Receipt, error) {
	if s.receiptErr != nil {
		return nil, s.receiptErr
	}
	return &backend.Receipt{ReceiptNumber: "RCP-" + saleID}, nil
}

func (s *salesStub) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

type recorderStub struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recorderStub) ObserveCheckout(method, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, method+":"+outcome)
}

type fixture struct {
	cart    cart.Service
	gateway *gatewayStub
	sales   *salesStub
	metrics *recorderStub
	svc     Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cartSvc, err := cart.NewService(cart.NewMemoryStore(), ctxUsers{}, cart.Options{
		TaxRate:        cart.DefaultTaxRate,
		QuantityPolicy: enums.QuantityPolicyUnchecked,
	}, nil)
	require.NoError(t, err)

	gw := &gatewayStub{}
	runner, err := payments.NewRunner(gw, config.PaymentConfig{PollInterval: time.Millisecond, MaxPolls: 24})
	require.NoError(t, err)

	sales := &salesStub{}
	metrics := &recorderStub{}
	svc, err := NewService(cartSvc, runner, sales, metrics, nil)
	require.NoError(t, err)

	return &fixture{cart: cartSvc, gateway: gw, sales: sales, metrics: metrics, svc: svc}
}

func (f *fixture) addItem(t *testing.T, ctx context.Context, id, price string, qty int) {
	t.Helper()
	_, err := f.cart.AddItem(ctx, cart.Product{ID: id, Name: "Item " + id, Price: decimal.RequireFromString(price), StockAvailable: 100}, qty)
	require.NoError(t, err)
}
