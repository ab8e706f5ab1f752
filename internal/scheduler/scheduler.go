// Package scheduler runs the periodic standby pool reconciliation.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Reconciler tops up standby quizzes whose generation fell short.
type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

// Scheduler runs the reconciler on a cron schedule. A run still in progress when the
// next one is due causes that run to be skipped.
type Scheduler struct {
	cron       *cron.Cron
	reconciler Reconciler
	timeout    time.Duration
	logger     *zap.Logger
}

// New registers the reconcile job. schedule accepts standard cron specs and
// descriptors such as "@every 10m".
func New(schedule string, r Reconciler, timeout time.Duration, logger *zap.Logger) (*Scheduler, error) {
	cl := cronLogger{logger.Sugar()}
	s := &Scheduler{
		cron:       cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		reconciler: r,
		timeout:    timeout,
		logger:     logger,
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	s.RunOnce(ctx)
}

// RunOnce reconciles immediately.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	start := time.Now()
	n, err := s.reconciler.Reconcile(ctx)
	if err != nil {
		s.logger.Error("Standby reconciliation failed", zap.Error(err))
		return 0
	}
	s.logger.Debug("Standby reconciliation finished", zap.Int("refilled", n), zap.Duration("took", time.Since(start)))
	return n
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Reconcile scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop prevents new runs and waits for a running one until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
