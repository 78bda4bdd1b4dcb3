package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smesmis/pos-checkout/pkg/logger"
)

type testJob struct {
	name string
	err  error
	runs atomic.Int32
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs.Add(1)
	return t.err
}

type fakeSweeper struct {
	calls   int
	removed int
}

func (f *fakeSweeper) Sweep() int {
	f.calls++
	return f.removed
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	failing := &testJob{name: "fail", err: errors.New("boom")}
	passing := &testJob{name: "success"}
	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: NewRegistry(failing, nil, passing),
	})
	require.NoError(t, err)

	service.runCycle(context.Background())
	assert.Equal(t, int32(1), failing.runs.Load())
	assert.Equal(t, int32(1), passing.runs.Load())
	assert.Len(t, service.registry.Jobs(), 2)
}

func TestServiceRunTicksUntilCancelled(t *testing.T) {
	job := &testJob{name: "tick"}
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: NewRegistry(job),
		Interval: 5 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Run(ctx) }()

	require.Eventually(t, func() bool { return job.runs.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestNewServiceRequiresLogger(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}

func TestCheckoutSessionSweepJob(t *testing.T) {
	_, err := NewCheckoutSessionSweepJob(nil, nil)
	require.Error(t, err)

	sweeper := &fakeSweeper{removed: 3}
	job, err := NewCheckoutSessionSweepJob(sweeper, logger.New(logger.Options{ServiceName: "cron-test"}))
	require.NoError(t, err)
	assert.Equal(t, "checkout-session-sweep", job.Name())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, sweeper.calls)
}

func TestRegistryReplacesJobsByName(t *testing.T) {
	first := &testJob{name: "sweep"}
	other := &testJob{name: "other"}
	second := &testJob{name: "sweep"}

	registry := NewRegistry(first, other)
	registry.Register(second)

	assert.Equal(t, []string{"sweep", "other"}, registry.Names())
	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	assert.Same(t, second, jobs[0])
}
