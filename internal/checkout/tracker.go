package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smesmis/pos-checkout/internal/payments"
	"github.com/smesmis/pos-checkout/pkg/enums"
	pkgerrors "github.com/smesmis/pos-checkout/pkg/errors"
	"github.com/smesmis/pos-checkout/pkg/logger"
)

const defaultRetention = 15 * time.Minute

type userResolver interface {
	CurrentUserID(ctx context.Context) string
}

// SessionError is the failure recorded on a finished session.
type SessionError struct {
	Code      pkgerrors.Code `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable,omitempty"`
	Details   any            `json:"details,omitempty"`
}

// Session is a snapshot of one background checkout.
type Session struct {
	ID            string               `json:"id"`
	Status        enums.CheckoutStatus `json:"status"`
	PaymentMethod enums.PaymentMethod  `json:"paymentMethod"`
	Payment       *payments.Attempt    `json:"payment,omitempty"`
	Result        *Result              `json:"result,omitempty"`
	Error         *SessionError        `json:"error,omitempty"`
	StartedAt     time.Time            `json:"startedAt"`
	FinishedAt    *time.Time           `json:"finishedAt,omitempty"`
}

type trackedSession struct {
	userID string
	cancel context.CancelFunc
	view   Session
}

// Tracker runs checkouts in the background so the till stays responsive
// while a payment is being confirmed. Each operator has at most one running
// checkout.
type Tracker struct {
	coordinator Service
	users       userResolver
	logg        *logger.Logger
	retention   time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*trackedSession
	running  map[string]string
	wg       sync.WaitGroup
}

// NewTracker builds a tracker. Finished sessions are kept for retention.
func NewTracker(coordinator Service, users userResolver, retention time.Duration, logg *logger.Logger) (*Tracker, error) {
	if coordinator == nil {
		return nil, fmt.Errorf("checkout coordinator required")
	}
	if users == nil {
		return nil, fmt.Errorf("user resolver required")
	}
	if retention <= 0 {
		retention = defaultRetention
	}
	return &Tracker{
		coordinator: coordinator,
		users:       users,
		logg:        logg,
		retention:   retention,
		now:         time.Now,
		sessions:    make(map[string]*trackedSession),
		running:     make(map[string]string),
	}, nil
}

// Start launches a checkout and returns immediately.
func (t *Tracker) Start(ctx context.Context, input Input) (*Session, error) {
	userID := t.users.CurrentUserID(ctx)
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	method := input.PaymentMethod
	if method == "" {
		method = enums.PaymentMethodCash
	}

	t.mu.Lock()
	t.evictLocked()
	if existing, ok := t.running[userID]; ok {
		t.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a checkout is already in progress").
			WithDetails(map[string]string{"sessionId": existing})
	}

	id := uuid.NewString()
	input.Reference = id
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	entry := &trackedSession{
		userID: userID,
		cancel: cancel,
		view: Session{
			ID:            id,
			Status:        enums.CheckoutStatusRunning,
			PaymentMethod: method,
			StartedAt:     t.now().UTC(),
		},
	}
	t.sessions[id] = entry
	t.running[userID] = id
	view := entry.view
	t.wg.Add(1)
	t.mu.Unlock()

	go t.run(runCtx, entry, input)
	return &view, nil
}

func (t *Tracker) run(ctx context.Context, entry *trackedSession, input Input) {
	defer t.wg.Done()
	defer entry.cancel()

	result, err := t.coordinator.Checkout(ctx, input, func(a payments.Attempt) {
		t.mu.Lock()
		defer t.mu.Unlock()
		attempt := a
		entry.view.Payment = &attempt
	})

	t.mu.Lock()
	defer t.mu.Unlock()

	finished := t.now().UTC()
	entry.view.FinishedAt = &finished
	delete(t.running, entry.userID)

	switch {
	case err == nil:
		entry.view.Status = enums.CheckoutStatusSucceeded
		entry.view.Result = result
		if result.Payment != nil {
			entry.view.Payment = result.Payment
		}
	case ctx.Err() != nil && !pkgerrors.Is(err, pkgerrors.CodeSaleSubmission):
		entry.view.Status = enums.CheckoutStatusCancelled
		entry.view.Error = sessionError(err)
	default:
		entry.view.Status = enums.CheckoutStatusFailed
		entry.view.Error = sessionError(err)
		if t.logg != nil {
			t.logg.WarnErr(t.logg.WithCheckoutID(ctx, entry.view.ID), "background checkout failed", err)
		}
	}
}

// Get returns the caller's session by id.
func (t *Tracker) Get(ctx context.Context, id string) (*Session, error) {
	userID := t.users.CurrentUserID(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.evictLocked()

	entry, ok := t.sessions[id]
	if !ok || entry.userID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")
	}
	view := cloneSession(entry.view)
	return &view, nil
}

// Cancel stops the caller's running checkout. Once the payment has been
// confirmed the sale submission still runs to completion.
func (t *Tracker) Cancel(ctx context.Context, id string) (*Session, error) {
	userID := t.users.CurrentUserID(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.sessions[id]
	if !ok || entry.userID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")
	}
	if entry.view.Status.IsFinal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout session already finished").
			WithDetails(map[string]string{"status": entry.view.Status.String()})
	}
	entry.cancel()
	view := cloneSession(entry.view)
	return &view, nil
}

// Shutdown cancels running checkouts and waits for them to unwind or for ctx
// to end.
func (t *Tracker) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	for _, entry := range t.sessions {
		if !entry.view.Status.IsFinal() {
			entry.cancel()
		}
	}
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweep evicts finished sessions older than the retention window and
// reports how many were removed.
func (t *Tracker) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.evictLocked()
}

func (t *Tracker) evictLocked() int {
	cutoff := t.now().Add(-t.retention)
	removed := 0
	for id, entry := range t.sessions {
		if entry.view.FinishedAt != nil && entry.view.FinishedAt.Before(cutoff) {
			delete(t.sessions, id)
			removed++
		}
	}
	return removed
}

func cloneSession(s Session) Session {
	if s.Payment != nil {
		p := *s.Payment
		s.Payment = &p
	}
	return s
}

func sessionError(err error) *SessionError {
	public := pkgerrors.ToPublic(err)
	return &SessionError{
		Code:      public.Code,
		Message:   public.Message,
		Retryable: public.Retryable,
		Details:   public.Details,
	}
}
