// Package health derives a tenant's support health score from ticket history.
package health

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-sla/internal/config"
	"github.com/spec-kit/support-sla/internal/observability"
	"github.com/spec-kit/support-sla/internal/repository"
)

// NeutralScore is returned when there is nothing to judge or aggregation fails.
const NeutralScore = 100

// Category buckets a score for dashboards.
type Category string

const (
	CategoryHealthy  Category = "healthy"
	CategoryNeutral  Category = "neutral"
	CategoryAtRisk   Category = "at_risk"
	CategoryCritical Category = "critical"
)

// CategoryFor maps a score onto its category.
func CategoryFor(score int) Category {
	switch {
	case score >= 80:
		return CategoryHealthy
	case score >= 60:
		return CategoryNeutral
	case score >= 40:
		return CategoryAtRisk
	default:
		return CategoryCritical
	}
}

// Weights are the relative contributions of each component.
type Weights struct {
	Breach         float64
	Response       float64
	Resolution     float64
	NegativeEvents float64
}

func (w Weights) total() float64 {
	return w.Breach + w.Response + w.Resolution + w.NegativeEvents
}

// DefaultWeights favor SLA compliance.
func DefaultWeights() Weights {
	return Weights{Breach: 0.40, Response: 0.25, Resolution: 0.15, NegativeEvents: 0.20}
}

// Components are the per-dimension scores in [0,1].
type Components struct {
	BreachCompliance float64 `json:"breach_compliance"`
	ResponseTime     float64 `json:"response_time"`
	ResolutionRate   float64 `json:"resolution_rate"`
	NegativeEvents   float64 `json:"negative_events"`
}

// Breakdown is the explained score of one tenant.
type Breakdown struct {
	TenantID       int64      `json:"tenant_id"`
	Score          int        `json:"score"`
	Category       Category   `json:"category"`
	Components     Components `json:"components"`
	Tickets        int        `json:"tickets"`
	NegativeEvents int        `json:"negative_events"`
	WindowDays     int        `json:"window_days"`
	ComputedAt     time.Time  `json:"computed_at"`
	// Fallback is set when aggregation failed and the neutral score was used.
	Fallback bool `json:"fallback"`
}

// Options configures a Calculator.
type Options struct {
	Window         time.Duration
	ResponseTarget time.Duration
	CacheTTL       time.Duration
	Weights        Weights
	Now            func() time.Time
}

// OptionsFromConfig adapts the env configuration.
func OptionsFromConfig(cfg config.HealthConfig) Options {
	return Options{
		Window:         cfg.Window(),
		ResponseTarget: cfg.ResponseTarget(),
		CacheTTL:       cfg.CacheTTL(),
		Weights: Weights{
			Breach:         cfg.BreachWeight,
			Response:       cfg.ResponseWeight,
			Resolution:     cfg.ResolutionWeight,
			NegativeEvents: cfg.NegativeEventWeight,
		},
	}
}

// Calculator computes support health scores. It never writes ticket data.
type Calculator struct {
	stats   repository.TenantStatsReader
	cache   Cache
	logger  *zap.Logger
	metrics *observability.Metrics
	opts    Options
}

// NewCalculator builds a Calculator. cache and metrics may be nil.
func NewCalculator(stats repository.TenantStatsReader, cache Cache, logger *zap.Logger, metrics *observability.Metrics, opts Options) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Window <= 0 {
		opts.Window = 30 * 24 * time.Hour
	}
	if opts.ResponseTarget <= 0 {
		opts.ResponseTarget = 4 * time.Hour
	}
	if opts.Weights.total() <= 0 || opts.Weights.Breach < 0 || opts.Weights.Response < 0 ||
		opts.Weights.Resolution < 0 || opts.Weights.NegativeEvents < 0 {
		opts.Weights = DefaultWeights()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Calculator{stats: stats, cache: cache, logger: logger, metrics: metrics, opts: opts}
}

// CalculateScore returns the tenant's score in [0,100].
func (c *Calculator) CalculateScore(ctx context.Context, tenantID int64) int {
	return c.Breakdown(ctx, tenantID).Score
}

// Breakdown returns the score together with its components.
func (c *Calculator) Breakdown(ctx context.Context, tenantID int64) Breakdown {
	if c.cache != nil && c.opts.CacheTTL > 0 {
		cached, ok, err := c.cache.Get(ctx, tenantID)
		if err != nil {
			c.logger.Warn("health score cache read failed", zap.Int64("tenant_id", tenantID), zap.Error(err))
		} else if ok {
			return cached
		}
	}

	now := c.opts.Now().UTC()
	result, err := c.compute(ctx, tenantID, now)
	if err != nil {
		c.logger.Warn("health score aggregation failed; using neutral score",
			zap.Int64("tenant_id", tenantID), zap.Error(err))
		c.metrics.RecordHealthFallback()
		return Breakdown{
			TenantID:   tenantID,
			Score:      NeutralScore,
			Category:   CategoryFor(NeutralScore),
			WindowDays: c.windowDays(),
			ComputedAt: now,
			Fallback:   true,
		}
	}

	if c.cache != nil && c.opts.CacheTTL > 0 {
		if err := c.cache.Set(ctx, tenantID, result, c.opts.CacheTTL); err != nil {
			c.logger.Warn("health score cache write failed", zap.Int64("tenant_id", tenantID), zap.Error(err))
		}
	}
	return result
}

func (c *Calculator) compute(ctx context.Context, tenantID int64, now time.Time) (Breakdown, error) {
	since := now.Add(-c.opts.Window)
	stats, err := c.stats.TenantTicketStats(ctx, tenantID, since)
	if err != nil {
		return Breakdown{}, err
	}
	negative, err := c.stats.CountNegativeEvents(ctx, tenantID, since)
	if err != nil {
		return Breakdown{}, err
	}

	result := Breakdown{
		TenantID:       tenantID,
		Tickets:        stats.Total,
		NegativeEvents: negative,
		WindowDays:     c.windowDays(),
		ComputedAt:     now,
	}
	if stats.Total <= 0 {
		result.Score = NeutralScore
		result.Category = CategoryFor(NeutralScore)
		result.Components = Components{BreachCompliance: 1, ResponseTime: 1, ResolutionRate: 1, NegativeEvents: 1}
		return result, nil
	}

	result.Components = c.components(stats, negative)
	result.Score = c.score(result.Components)
	result.Category = CategoryFor(result.Score)
	return result, nil
}

func (c *Calculator) components(stats repository.TenantTicketStats, negative int) Components {
	total := float64(stats.Total)
	comp := Components{
		BreachCompliance: unit(1 - float64(stats.Breached)/total),
		ResolutionRate:   unit(float64(stats.Resolved) / total),
		NegativeEvents:   unit(1 - float64(negative)/total),
	}
	switch {
	case stats.Responded == 0:
		comp.ResponseTime = 0.5
	case stats.ResponseP90 <= c.opts.ResponseTarget:
		comp.ResponseTime = 1
	default:
		comp.ResponseTime = unit(float64(c.opts.ResponseTarget) / float64(stats.ResponseP90))
	}
	return comp
}

func (c *Calculator) score(comp Components) int {
	w := c.opts.Weights
	weighted := w.Breach*comp.BreachCompliance +
		w.Response*comp.ResponseTime +
		w.Resolution*comp.ResolutionRate +
		w.NegativeEvents*comp.NegativeEvents
	return clamp(int(math.Round(100 * weighted / w.total())))
}

func (c *Calculator) windowDays() int {
	return int(c.opts.Window / (24 * time.Hour))
}

func unit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
