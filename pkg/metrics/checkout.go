package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records checkout and payment confirmation activity.
type CheckoutMetrics struct {
	duration      *prometheus.HistogramVec
	outcomes      *prometheus.CounterVec
	polls         prometheus.Counter
	paymentStates *prometheus.CounterVec
	breakerState  *prometheus.GaugeVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pos_checkout_duration_seconds",
		Help:    "Duration of checkouts from validation to sale confirmation.",
		Buckets: []float64{0.25, 1, 5, 15, 30, 60, 90, 120, 180},
	}, []string{"method"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_checkout_total",
		Help: "Checkouts by payment method and outcome.",
	}, []string{"method", "outcome"})
	polls := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pos_payment_polls_total",
		Help: "Payment status polls issued to the backend.",
	})
	paymentStates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_payment_attempts_total",
		Help: "Mobile-money attempts by terminal state.",
	}, []string{"state"})
	breakerState := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pos_backend_breaker_state",
		Help: "Backend circuit breaker state (0 closed, 1 half-open, 2 open).",
	}, []string{"breaker"})
	reg.MustRegister(duration, outcomes, polls, paymentStates, breakerState)
	return &CheckoutMetrics{
		duration:      duration,
		outcomes:      outcomes,
		polls:         polls,
		paymentStates: paymentStates,
		breakerState:  breakerState,
	}
}

// ObserveCheckout records one finished checkout.
func (m *CheckoutMetrics) ObserveCheckout(method, outcome string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	method = normalizeLabel(method)
	m.duration.WithLabelValues(method).Observe(duration.Seconds())
	m.outcomes.WithLabelValues(method, normalizeLabel(outcome)).Inc()
}

// IncPoll counts a payment status poll.
func (m *CheckoutMetrics) IncPoll() {
	if m == nil || m.polls == nil {
		return
	}
	m.polls.Inc()
}

// IncPaymentState counts an attempt reaching a terminal state.
func (m *CheckoutMetrics) IncPaymentState(state string) {
	if m == nil || m.paymentStates == nil {
		return
	}
	m.paymentStates.WithLabelValues(normalizeLabel(state)).Inc()
}

// SetBreakerState exports the breaker state as a number.
func (m *CheckoutMetrics) SetBreakerState(name string, state float64) {
	if m == nil || m.breakerState == nil {
		return
	}
	m.breakerState.WithLabelValues(normalizeLabel(name)).Set(state)
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
