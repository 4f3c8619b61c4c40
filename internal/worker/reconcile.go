// Package worker runs background jobs on a cron schedule.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/afterword/backend/internal/logging"
	"github.com/afterword/backend/internal/service"
	"github.com/robfig/cron/v3"
)

// ReconcileScheduler runs LifecycleService.Reconcile on a cron pattern.
// A sweep that is still running when the next tick fires causes that tick
// to be skipped.
type ReconcileScheduler struct {
	cron      *cron.Cron
	lifecycle service.LifecycleService
	logger    *slog.Logger
	timeout   time.Duration
}

// NewReconcileScheduler validates pattern and registers the sweep. An empty
// pattern returns nil, nil (scheduler disabled).
func NewReconcileScheduler(logger *slog.Logger, lifecycle service.LifecycleService, pattern string, timeout time.Duration) (*ReconcileScheduler, error) {
	if pattern == "" {
		return nil, nil
	}
	logger = logger.With(slog.String("service", "reconcile"))
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	cl := cronLogger{l: logger}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	s := &ReconcileScheduler{cron: c, lifecycle: lifecycle, logger: logger, timeout: timeout}
	if _, err := c.AddFunc(pattern, s.RunOnce); err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", pattern, err)
	}
	return s, nil
}

// Start begins firing the schedule in its own goroutine.
func (s *ReconcileScheduler) Start() {
	s.cron.Start()
}

// Stop stops the schedule and waits for a running sweep, or ctx.
func (s *ReconcileScheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("reconcile still running at shutdown")
	}
}

// RunOnce performs a single sweep.
func (s *ReconcileScheduler) RunOnce() {
	ctx := logging.WithContext(context.Background(), s.logger)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if _, err := s.lifecycle.Reconcile(ctx); err != nil {
		s.logger.Error("scheduled reconcile failed", slog.Any("error", err))
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append([]interface{}{slog.Any("error", err)}, keysAndValues...)...)
}
