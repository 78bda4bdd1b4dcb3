package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smesmis/pos-checkout/pkg/backend"
	"github.com/smesmis/pos-checkout/pkg/config"
	"github.com/smesmis/pos-checkout/pkg/enums"
	pkgerrors "github.com/smesmis/pos-checkout/pkg/errors"
	"github.com/smesmis/pos-checkout/pkg/logger"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxPolls     = 24
)

// Gateway is the mobile-money surface of the backend.
type Gateway interface {
	InitiateSTKPush(ctx context.Context, req backend.STKPushRequest) (*backend.STKPushResponse, error)
	PaymentStatus(ctx context.Context, checkoutRequestID, merchantRequestID string) (*backend.PaymentStatus, error)
}

// Recorder receives poll and outcome counts.
type Recorder interface {
	IncPoll()
	IncPaymentState(state string)
}

// Observer sees every state change and every poll of an attempt. It runs on
// the runner's goroutine and must not block.
type Observer func(Attempt)

// Request describes the payment to collect.
type Request struct {
	PhoneNumber      string
	Amount           int64
	AccountReference string
	TransactionDesc  string
}

// Runner drives attempts from NotStarted to a terminal state.
type Runner struct {
	gateway  Gateway
	interval time.Duration
	maxPolls int
	logg     *logger.Logger
	recorder Recorder
	now      func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

func WithRecorder(r Recorder) RunnerOption {
	return func(rn *Runner) {
		rn.recorder = r
	}
}

func WithLogger(l *logger.Logger) RunnerOption {
	return func(rn *Runner) {
		rn.logg = l
	}
}

func WithClock(now func() time.Time) RunnerOption {
	return func(rn *Runner) {
		if now != nil {
			rn.now = now
		}
	}
}

// NewRunner builds a poll runner. Zero interval or poll budget fall back to
// 5 seconds and 24 polls.
func NewRunner(gateway Gateway, cfg config.PaymentConfig, opts ...RunnerOption) (*Runner, error) {
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	r := &Runner{
		gateway:  gateway,
		interval: cfg.PollInterval,
		maxPolls: cfg.MaxPolls,
		now:      time.Now,
	}
	if r.interval <= 0 {
		r.interval = DefaultPollInterval
	}
	if r.maxPolls <= 0 {
		r.maxPolls = DefaultMaxPolls
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Run initiates the STK push and polls until the attempt is Completed,
// Failed or TimedOut. Gateway rejections and terminal statuses are reported
// through the returned attempt, not the error. The error is set only for
// invalid input or when ctx ends first, in which case the observer is not
// called again.
func (r *Runner) Run(ctx context.Context, req Request, observe Observer) (*Attempt, error) {
	phone, err := NormalizePhone(req.PhoneNumber)
	if err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}

	attempt := &Attempt{
		State:       enums.PaymentAttemptNotStarted,
		PhoneNumber: phone,
		Amount:      req.Amount,
		StartedAt:   r.now().UTC(),
	}
	emit := func() {
		if observe != nil && ctx.Err() == nil {
			observe(attempt.clone())
		}
	}

	attempt.State = enums.PaymentAttemptInitiating
	attempt.Description = "Sending payment request to the customer's phone"
	emit()

	resp, err := r.gateway.InitiateSTKPush(ctx, backend.STKPushRequest{
		Amount:           req.Amount,
		PhoneNumber:      phone,
		AccountReference: req.AccountReference,
		TransactionDesc:  req.TransactionDesc,
	})
	if ctx.Err() != nil {
		return r.abandon(attempt, ctx.Err())
	}
	if err != nil {
		r.finish(ctx, attempt, enums.PaymentAttemptFailed, "Payment failed: "+publicMessage(err, "M-Pesa payment initiation failed"))
		emit()
		return r.result(attempt)
	}

	attempt.CheckoutRequestID = resp.CheckoutRequestID
	attempt.MerchantRequestID = resp.MerchantRequestID
	attempt.State = enums.PaymentAttemptAwaitingConfirmation
	attempt.Description = "Payment initiated. Waiting for the customer to confirm on their phone"
	emit()

	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	for attempt.Polls < r.maxPolls {
		select {
		case <-ctx.Done():
			return r.abandon(attempt, ctx.Err())
		case <-timer.C:
		}

		status := r.poll(ctx, attempt)
		if ctx.Err() != nil {
			return r.abandon(attempt, ctx.Err())
		}

		switch status {
		case enums.MpesaStatusPending:
			emit()
			timer.Reset(r.interval)
			continue
		case enums.MpesaStatusCompleted:
			r.finish(ctx, attempt, enums.PaymentAttemptCompleted, "Payment confirmed")
		case enums.MpesaStatusCancelled:
			r.finish(ctx, attempt, enums.PaymentAttemptFailed, failureText(attempt.Description, "Payment was cancelled by the customer"))
		default:
			r.finish(ctx, attempt, enums.PaymentAttemptFailed, failureText(attempt.Description, "Payment failed"))
		}
		emit()
		return r.result(attempt)
	}

	r.finish(ctx, attempt, enums.PaymentAttemptTimedOut, "Payment was not confirmed in time. Ask the customer to check their phone and try again")
	emit()
	return r.result(attempt)
}

// poll issues one status request. Transport and backend errors count as
// PENDING. Unrecognized statuses are reported as FAILED.
func (r *Runner) poll(ctx context.Context, attempt *Attempt) enums.MpesaStatus {
	status, err := r.gateway.PaymentStatus(ctx, attempt.CheckoutRequestID, attempt.MerchantRequestID)
	polledAt := r.now().UTC()
	attempt.Polls++
	attempt.LastPolledAt = &polledAt
	if r.recorder != nil {
		r.recorder.IncPoll()
	}

	if err != nil {
		if r.logg != nil && ctx.Err() == nil {
			logCtx := r.logg.WithField(r.logg.WithPayment(ctx, attempt.CheckoutRequestID), "poll", attempt.Polls)
			r.logg.WarnErr(logCtx, "payment status poll failed; treating as pending", err)
		}
		return enums.MpesaStatusPending
	}

	raw := strings.TrimSpace(status.Status)
	if raw == "" {
		return enums.MpesaStatusPending
	}
	parsed, perr := enums.ParseMpesaStatus(raw)
	if perr != nil {
		attempt.Description = fmt.Sprintf("Unexpected payment status %q", raw)
		return enums.MpesaStatusFailed
	}
	if parsed == enums.MpesaStatusCompleted {
		attempt.ReceiptNumber = status.ReceiptNumber
	}
	if parsed == enums.MpesaStatusFailed || parsed == enums.MpesaStatusCancelled {
		attempt.Description = status.Description
	}
	return parsed
}

func (r *Runner) finish(ctx context.Context, attempt *Attempt, state enums.PaymentAttemptState, description string) {
	finishedAt := r.now().UTC()
	attempt.State = state
	attempt.Description = description
	attempt.FinishedAt = &finishedAt
	if r.recorder != nil {
		r.recorder.IncPaymentState(state.String())
	}
	if r.logg != nil {
		r.logg.Info(r.logg.WithFields(r.logg.WithPayment(ctx, attempt.CheckoutRequestID), map[string]any{
			"payment_state": state.String(),
			"polls":         attempt.Polls,
		}), "payment attempt finished")
	}
}

func (r *Runner) result(attempt *Attempt) (*Attempt, error) {
	out := attempt.clone()
	return &out, nil
}

func (r *Runner) abandon(attempt *Attempt, err error) (*Attempt, error) {
	out := attempt.clone()
	return &out, err
}

func failureText(gatewayText, fallback string) string {
	gatewayText = strings.TrimSpace(gatewayText)
	if gatewayText == "" {
		return fallback
	}
	return fallback + ": " + gatewayText
}

func publicMessage(err error, fallback string) string {
	if typed := pkgerrors.As(err); typed != nil && typed.Message() != "" {
		return typed.Message()
	}
	return fallback
}
