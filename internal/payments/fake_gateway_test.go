package payments

import (
	"context"
	"errors"
	"sync"

	"github.com/smesmis/pos-checkout/pkg/backend"
)

// scriptedGateway answers status polls from a script; once the script runs
// out it repeats the last entry.
type scriptedGateway struct {
	mu         sync.Mutex
	initResp   *backend.STKPushResponse
	initErr    error
	initReq    backend.STKPushRequest
	script     []statusStep
	polls      int
	onPoll     func(n int)
	initCalled bool
}

type statusStep struct {
	status  string
	receipt string
	desc    string
	err     error
}

func pending() statusStep { return statusStep{status: "PENDING"} }

func newScriptedGateway(steps ...statusStep) *scriptedGateway {
	return &scriptedGateway{
		initResp: &backend.STKPushResponse{CheckoutRequestID: "ws_CO_1", MerchantRequestID: "m-1"},
		script:   steps,
	}
}

func (g *scriptedGateway) InitiateSTKPush(ctx context.Context, req backend.STKPushRequest) (*backend.STKPushResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initCalled = true
	g.initReq = req
	if g.initErr != nil {
		return nil, g.initErr
	}
	return g.initResp, nil
}

func (g *scriptedGateway) PaymentStatus(ctx context.Context, checkoutID, merchantID string) (*backend.PaymentStatus, error) {
	g.mu.Lock()
	g.polls++
	n := g.polls
	var step statusStep
	switch {
	case len(g.script) == 0:
		step = pending()
	case n <= len(g.script):
		step = g.script[n-1]
	default:
		step = g.script[len(g.script)-1]
	}
	hook := g.onPoll
	g.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if checkoutID != "ws_CO_1" || merchantID != "m-1" {
		return nil, errors.New("unexpected request ids")
	}
	if step.err != nil {
		return nil, step.err
	}
	return &backend.PaymentStatus{Status: step.status, ReceiptNumber: step.receipt, Description: step.desc}, nil
}

func (g *scriptedGateway) pollCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.polls
}
