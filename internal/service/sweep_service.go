package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-sla/internal/config"
	"github.com/spec-kit/support-sla/internal/observability"
	"github.com/spec-kit/support-sla/internal/repository"
)

// SweepResult summarizes one breach sweep.
type SweepResult struct {
	Checked  int           `json:"checked"`
	Breached int           `json:"breached"`
	Failed   int           `json:"failed"`
	Skipped  bool          `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// SweepService periodically evaluates every open ticket and flags new breaches.
type SweepService struct {
	tickets   repository.TicketRepository
	lifecycle *TicketLifecycleService
	logger    *zap.Logger
	metrics   *observability.Metrics
	cfg       config.SLAConfig
}

// NewSweepService constructs the service.
func NewSweepService(tickets repository.TicketRepository, lifecycle *TicketLifecycleService, cfg config.SLAConfig, logger *zap.Logger, metrics *observability.Metrics) *SweepService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SweepWorkers <= 0 {
		cfg.SweepWorkers = 1
	}
	return &SweepService{tickets: tickets, lifecycle: lifecycle, logger: logger, metrics: metrics, cfg: cfg}
}

// Run checks all open tickets once. Only one instance sweeps at a time; the
// others return a skipped result. Failures on individual tickets are logged
// and counted without stopping the run.
func (s *SweepService) Run(ctx context.Context) (SweepResult, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.SweepTimeout())
	defer cancel()

	release, ok, err := s.tickets.TryAdvisoryLock(ctx, s.cfg.SweepLockKey)
	if err != nil {
		s.metrics.RecordSweep("error", time.Since(start))
		return SweepResult{}, err
	}
	if !ok {
		s.logger.Debug("sla sweep already running elsewhere; skipping")
		s.metrics.RecordSweep("skipped", time.Since(start))
		return SweepResult{Skipped: true}, nil
	}
	defer release()

	ids, err := s.tickets.ListOpenIDs(ctx)
	if err != nil {
		s.metrics.RecordSweep("error", time.Since(start))
		return SweepResult{}, err
	}

	var (
		mu     sync.Mutex
		result SweepResult
		wg     sync.WaitGroup
	)
	jobs := make(chan string)
	workers := s.cfg.SweepWorkers
	if workers > len(ids) {
		workers = len(ids)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				flagged, err := s.lifecycle.markBreached(ctx, id)
				mu.Lock()
				result.Checked++
				switch {
				case err != nil:
					result.Failed++
				case flagged:
					result.Breached++
				}
				mu.Unlock()
				if err != nil {
					s.logger.Warn("sla sweep failed for ticket", zap.String("ticket_id", id), zap.Error(err))
				}
			}
		}()
	}

feed:
	for _, id := range ids {
		select {
		case jobs <- id:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	result.Duration = time.Since(start)
	outcome := "ok"
	if ctx.Err() != nil {
		outcome = "timeout"
	}
	s.metrics.RecordSweep(outcome, result.Duration)
	s.logger.Info("sla sweep finished",
		zap.Int("open", len(ids)),
		zap.Int("checked", result.Checked),
		zap.Int("breached", result.Breached),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", result.Duration),
		zap.String("outcome", outcome))
	return result, ctx.Err()
}
