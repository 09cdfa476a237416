package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news-archive-parser/internal/config"
	"news-archive-parser/internal/observability"
)

func schedulerFor(mode string, intervalS int, cronExpr string) *Scheduler {
	cfg := &config.Config{Scheduler: config.SchedulerConfig{Mode: mode, IntervalS: intervalS, CronExpr: cronExpr}}
	return NewScheduler(cfg, observability.NewNop())
}

func TestScheduler_OneshotRunsOnceAndReturnsError(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("boom")

	err := schedulerFor(ModeOneshot, 0, "").Run(context.Background(), func(context.Context) error {
		calls.Add(1)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), calls.Load())
}

func TestScheduler_IntervalKeepsRunningAfterFailure(t *testing.T) {
	s := schedulerFor(ModeInterval, 1, "")
	s.interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	err := s.Run(ctx, func(context.Context) error {
		if calls.Add(1) >= 3 {
			cancel()
		}
		return errors.New("run failed")
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestScheduler_CronRejectsBadExpression(t *testing.T) {
	err := schedulerFor(ModeCron, 0, "every tuesday").Run(context.Background(), func(context.Context) error {
		return nil
	})
	assert.Error(t, err)
}

func TestScheduler_CronStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := schedulerFor(ModeCron, 0, "0 3 1 1 *").Run(ctx, func(context.Context) error {
		return nil
	})
	assert.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestScheduler_UnknownMode(t *testing.T) {
	err := schedulerFor("weekly", 0, "").Run(context.Background(), func(context.Context) error { return nil })
	assert.Error(t, err)
}
