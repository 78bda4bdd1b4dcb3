package cron

import (
	"context"
	"fmt"

	"github.com/smesmis/pos-checkout/pkg/logger"
)

type sessionSweeper interface {
	Sweep() int
}

// CheckoutSessionSweepJob drops finished checkout sessions past their
// retention window so idle tills do not hold memory.
type CheckoutSessionSweepJob struct {
	tracker sessionSweeper
	logg    *logger.Logger
}

func NewCheckoutSessionSweepJob(tracker sessionSweeper, logg *logger.Logger) (*CheckoutSessionSweepJob, error) {
	if tracker == nil {
		return nil, fmt.Errorf("checkout tracker required")
	}
	return &CheckoutSessionSweepJob{tracker: tracker, logg: logg}, nil
}

func (j *CheckoutSessionSweepJob) Name() string {
	return "checkout-session-sweep"
}

func (j *CheckoutSessionSweepJob) Run(ctx context.Context) error {
	removed := j.tracker.Sweep()
	if removed > 0 && j.logg != nil {
		j.logg.Info(j.logg.WithField(ctx, "removed", removed), "evicted finished checkout sessions")
	}
	return nil
}
