package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpulse/internal/shared/testutil"
)

type fakeSweeper struct {
	calls   atomic.Int32
	removed int
	err     error
}

func (f *fakeSweeper) SweepExpired(ctx context.Context) (int, error) {
	f.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("sweep must run with a deadline")
	}
	return f.removed, f.err
}

func TestScheduler_RegisterSweep(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		wantErr bool
	}{
		{"descriptor", "@hourly", false},
		{"every", "@every 10m", false},
		{"five fields", "*/15 * * * *", false},
		{"garbage", "every now and then", true},
		{"six fields", "0 0 * * * *", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			s := NewScheduler(context.Background(), &fakeSweeper{}, logger)
			err := s.RegisterSweep(tt.spec)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScheduler_RunSweepNow(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	sweeper := &fakeSweeper{removed: 3}
	s := NewScheduler(context.Background(), sweeper, logger)

	removed, err := s.RunSweepNow()
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.Equal(t, int32(1), sweeper.calls.Load())
}

func TestScheduler_SweepTaskLogsFailure(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	s := NewScheduler(context.Background(), &fakeSweeper{err: errors.New("bucket unreachable")}, logger)

	s.sweepTask()

	assert.True(t, handler.ContainsMessage("cache sweep failed"))
	assert.True(t, handler.ContainsAttr("error", "bucket unreachable"))
}

func TestScheduler_RunsOnSchedule(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	sweeper := &fakeSweeper{}
	s := NewScheduler(context.Background(), sweeper, logger)

	require.NoError(t, s.RegisterSweep("@every 1s"))
	s.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	}()

	assert.Eventually(t, func() bool { return sweeper.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}
