// Package scheduler runs periodic maintenance of the result cache.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper removes expired cache entries
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// Scheduler manages the cron tasks of the server
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	timeout time.Duration
	logger  *slog.Logger
	ctx     context.Context
}

// NewScheduler creates a scheduler whose jobs run under ctx. Overlapping runs
// of the same job are skipped.
func NewScheduler(ctx context.Context, sweeper Sweeper, logger *slog.Logger) *Scheduler {
	logger = logger.With(slog.String("component", "scheduler"))
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		sweeper: sweeper,
		timeout: 5 * time.Minute,
		logger:  logger,
		ctx:     ctx,
	}
}

// RegisterSweep schedules the expired-entry sweep. spec is a five-field
// cron expression or a descriptor such as "@hourly".
func (s *Scheduler) RegisterSweep(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.sweepTask); err != nil {
		return fmt.Errorf("register cache sweep %q: %w", spec, err)
	}
	s.logger.Info("cache sweep scheduled", slog.String("schedule", spec))
	return nil
}

// Start starts the cron scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", slog.Int("jobs", len(s.cron.Entries())))
}

// Stop stops the scheduler and waits for running jobs up to ctx
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out with jobs still running")
	}
	s.logger.Info("scheduler stopped")
}

// RunSweepNow executes the sweep immediately
func (s *Scheduler) RunSweepNow() (int, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	return s.sweeper.SweepExpired(ctx)
}

func (s *Scheduler) sweepTask() {
	start := time.Now()
	removed, err := s.RunSweepNow()
	if err != nil {
		s.logger.Error("cache sweep failed",
			slog.String("error", err.Error()),
			slog.Int("removed", removed))
		return
	}
	s.logger.Info("cache sweep finished",
		slog.Int("removed", removed),
		slog.Duration("duration", time.Since(start)))
}

// cronLogger adapts slog to cron.Logger
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]interface{}{slog.String("error", err.Error())}, keysAndValues...)...)
}
