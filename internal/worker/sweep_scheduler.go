package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/support-sla/internal/service"
)

// Sweeper runs one breach sweep.
type Sweeper interface {
	Run(ctx context.Context) (service.SweepResult, error)
}

// SweepScheduler triggers the breach sweep on a cron schedule.
type SweepScheduler struct {
	sweeper Sweeper
	logger  *zap.Logger
	c       *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewSweepScheduler validates spec (a cron expression or descriptor such as
// "@every 5m") and registers the sweep job.
func NewSweepScheduler(sweeper Sweeper, spec string, logger *zap.Logger) (*SweepScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{logger.Sugar()}
	s := &SweepScheduler{
		sweeper: sweeper,
		logger:  logger,
		c: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		ctx:    context.Background(),
		cancel: func() {},
	}
	if _, err := s.c.AddFunc(spec, s.runOnce); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins scheduling; jobs observe ctx cancellation.
func (s *SweepScheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.c.Start()
	s.logger.Info("sla sweep scheduler started")
}

// Stop halts scheduling and waits for a running sweep to return.
func (s *SweepScheduler) Stop() {
	s.cancel()
	<-s.c.Stop().Done()
	s.logger.Info("sla sweep scheduler stopped")
}

func (s *SweepScheduler) runOnce() {
	if _, err := s.sweeper.Run(s.ctx); err != nil {
		s.logger.Error("sla sweep failed", zap.Error(err))
	}
}

// cronLogger adapts zap to cron's logging interface.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
