package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smesmis/pos-checkout/pkg/config"
	pkgerrors "github.com/smesmis/pos-checkout/pkg/errors"
	"github.com/smesmis/pos-checkout/pkg/types"
)

type staticToken string

func (s staticToken) AuthToken(context.Context) string { return string(s) }

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts = append([]Option{WithTokenSource(staticToken("tok-1"))}, opts...)
	client, err := NewClient(
		config.BackendConfig{BaseURL: srv.URL + "/api/", Timeout: 2 * time.Second},
		config.BreakerConfig{MaxRequests: 1, Interval: time.Minute, OpenTimeout: time.Minute, ConsecutiveFailures: 3},
		opts...,
	)
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(config.BackendConfig{}, config.BreakerConfig{})
	assert.Error(t, err)
}

func TestInitiateSTKPushSendsBearerAndBody(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/mpesa/stkpush/initiate", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(116), body["amount"])
		assert.Equal(t, "254712345678", body["phoneNumber"])

		_, _ = io.WriteString(w, `{"CheckoutRequestID":"ws_CO_1","MerchantRequestID":"m-1"}`)
	}))

	resp, err := client.InitiateSTKPush(context.Background(), STKPushRequest{
		Amount:           116,
		PhoneNumber:      "254712345678",
		AccountReference: "INV-1",
		TransactionDesc:  "Payment for guest",
	})
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_1", resp.CheckoutRequestID)
	assert.Equal(t, "m-1", resp.MerchantRequestID)
}

func TestInitiateSTKPushRejectsMalformedResponse(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"CheckoutRequestID":"ws_CO_1"}`)
	}))

	_, err := client.InitiateSTKPush(context.Background(), STKPushRequest{Amount: 1})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeDependency))
}

func TestPaymentStatusReadsNestedTransaction(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ws_CO_1", r.URL.Query().Get("checkout_id"))
		assert.Equal(t, "m-1", r.URL.Query().Get("merchant_id"))
		_, _ = io.WriteString(w, `{"status":"COMPLETED","transaction":{"mpesaReceiptNumber":"QK12AB","stkResponseDescription":"ok"}}`)
	}))

	status, err := client.PaymentStatus(context.Background(), "ws_CO_1", "m-1")
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", status.Status)
	assert.Equal(t, "QK12AB", status.ReceiptNumber)
	assert.Equal(t, "ok", status.Description)
}

func TestPaymentStatusReadsFlatTransaction(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"Completed","mpesaReceiptNumber":"QK99"}`)
	}))

	status, err := client.PaymentStatus(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "Completed", status.Status)
	assert.Equal(t, "QK99", status.ReceiptNumber)
}

func TestCreateSaleEncodesMoneyAndDecodesNumericID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(raw), `"total":106.00`)
		assert.Contains(t, string(raw), `"customerId":null`)
		assert.Contains(t, string(raw), `"productId":9`)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":501,"total":106.0}`)
	}))

	sale, err := client.CreateSale(context.Background(), SaleRequest{
		PaymentMethod: "CASH",
		Items: []SaleItem{{
			ProductID: "9",
			Quantity:  1,
			Price:     types.NewMoney(decimal.RequireFromString("116")),
		}},
		Total: types.NewMoney(decimal.RequireFromString("106")),
	})
	require.NoError(t, err)
	assert.Equal(t, types.ExternalID("501"), sale.ID)
}

func TestCreateSaleSurfacesBackendMessage(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"message":"Insufficient stock for product Sugar 1kg"}`)
	}))

	_, err := client.CreateSale(context.Background(), SaleRequest{})
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDependency, typed.Code())
	assert.Equal(t, "Insufficient stock for product Sugar 1kg", typed.Message())

	dump := pkgerrors.Dump(err)
	assert.Equal(t, http.StatusBadRequest, dump.UpstreamStatus)
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		body   string
		code   pkgerrors.Code
	}{
		{http.StatusUnauthorized, `{"message":"expired"}`, pkgerrors.CodeUnauthorized},
		{http.StatusForbidden, ``, pkgerrors.CodeForbidden},
		{http.StatusNotFound, `Discount not found`, pkgerrors.CodeNotFound},
		{http.StatusConflict, `{"error":"dup"}`, pkgerrors.CodeDependency},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			_, err := client.LookupDiscount(context.Background(), "SAVE10")
			require.Error(t, err)
			assert.True(t, pkgerrors.Is(err, tc.code), "got %v", err)
		})
	}
}

func TestLookupDiscountBlankCodeSkipsNetwork(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))

	_, err := client.LookupDiscount(context.Background(), "  ")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestLookupDiscountParsesLocalDates(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/discounts/code/SAVE10", r.URL.Path)
		_, _ = io.WriteString(w, `{"code":"SAVE10","percentage":10.0,"validFrom":"2026-01-01T00:00:00","validTo":"2026-12-31T23:59:59"}`)
	}))

	d, err := client.LookupDiscount(context.Background(), "SAVE10")
	require.NoError(t, err)
	assert.True(t, d.Percentage.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 2026, d.ValidTo.Year())
}

func TestGetProduct(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/products/9", r.URL.Path)
		_, _ = io.WriteString(w, `{"id":9,"name":"Sugar 1kg","sku":"SUG-1","price":116.0,"quantityInStock":4}`)
	}))

	p, err := client.GetProduct(context.Background(), "9")
	require.NoError(t, err)
	assert.Equal(t, types.ExternalID("9"), p.ID)
	assert.Equal(t, 4, p.QuantityInStock)
	assert.True(t, p.Price.Equal(decimal.NewFromInt(116)))
	assert.True(t, p.DiscountPercentage.IsZero())
}

func TestGetReceipt(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sales/receipt/501", r.URL.Path)
		_, _ = io.WriteString(w, `{"receiptNumber":"RCP-501","items":[{"productName":"Sugar 1kg","quantity":1}],"total":116}`)
	}))

	receipt, err := client.GetReceipt(context.Background(), "501")
	require.NoError(t, err)
	assert.Equal(t, "RCP-501", receipt.ReceiptNumber)
	assert.Len(t, receipt.Items, 1)
}

func TestBreakerOpensAfterConsecutiveServerErrors(t *testing.T) {
	var calls int32
	var transitions []gobreaker.State
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}), WithStateObserver(func(_ string, _, to gobreaker.State) {
		transitions = append(transitions, to)
	}))

	for i := 0; i < 3; i++ {
		_, err := client.GetProduct(context.Background(), "1")
		require.Error(t, err)
		assert.True(t, pkgerrors.Is(err, pkgerrors.CodeDependency))
	}
	assert.Equal(t, gobreaker.StateOpen, client.BreakerState())
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)

	_, err := client.GetProduct(context.Background(), "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	for i := 0; i < 5; i++ {
		_, err := client.GetProduct(context.Background(), "1")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateClosed, client.BreakerState())
}
