package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/support-sla/internal/observability"
	"github.com/spec-kit/support-sla/internal/repository"
)

type fakeStats struct {
	stats    repository.TenantTicketStats
	negative int
	err      error
	negErr   error
	since    time.Time
}

func (f *fakeStats) TenantTicketStats(_ context.Context, _ int64, since time.Time) (repository.TenantTicketStats, error) {
	f.since = since
	return f.stats, f.err
}

func (f *fakeStats) CountNegativeEvents(context.Context, int64, time.Time) (int, error) {
	return f.negative, f.negErr
}

type memCache struct {
	entries map[int64]Breakdown
	getErr  error
	sets    int
}

func (m *memCache) Get(_ context.Context, tenantID int64) (Breakdown, bool, error) {
	if m.getErr != nil {
		return Breakdown{}, false, m.getErr
	}
	b, ok := m.entries[tenantID]
	return b, ok, nil
}

func (m *memCache) Set(_ context.Context, tenantID int64, b Breakdown, _ time.Duration) error {
	if m.entries == nil {
		m.entries = map[int64]Breakdown{}
	}
	m.entries[tenantID] = b
	m.sets++
	return nil
}

var fixedNow = time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)

func newCalc(stats repository.TenantStatsReader, cache Cache, metrics *observability.Metrics) *Calculator {
	return NewCalculator(stats, cache, nil, metrics, Options{
		ResponseTarget: time.Hour,
		CacheTTL:       time.Minute,
		Now:            func() time.Time { return fixedNow },
	})
}

func TestScoreWithoutTicketsIsNeutral(t *testing.T) {
	calc := newCalc(&fakeStats{}, nil, nil)
	if got := calc.CalculateScore(context.Background(), 1); got != 100 {
		t.Errorf("score = %d, want 100", got)
	}
}

func TestScoreFallsBackOnError(t *testing.T) {
	cache := &memCache{}
	metrics := observability.NewMetrics("health_test")
	calc := newCalc(&fakeStats{err: errors.New("db down")}, cache, metrics)

	b := calc.Breakdown(context.Background(), 3)
	if b.Score != 100 || !b.Fallback {
		t.Errorf("breakdown = %+v, want fallback 100", b)
	}
	if cache.sets != 0 {
		t.Error("fallback scores must not be cached")
	}

	calc = newCalc(&fakeStats{stats: repository.TenantTicketStats{Total: 4}, negErr: errors.New("timeout")}, nil, nil)
	if got := calc.CalculateScore(context.Background(), 3); got != 100 {
		t.Errorf("negative-event failure score = %d, want 100", got)
	}
}

func TestScoreComponents(t *testing.T) {
	stats := &fakeStats{
		stats: repository.TenantTicketStats{
			Total:       10,
			Breached:    5,
			Resolved:    9,
			Responded:   10,
			ResponseP90: 2 * time.Hour,
		},
		negative: 2,
	}
	b := newCalc(stats, nil, nil).Breakdown(context.Background(), 5)

	// 0.40*0.5 + 0.25*0.5 + 0.15*0.9 + 0.20*0.8 = 0.62
	if b.Score != 62 {
		t.Errorf("score = %d, want 62 (%+v)", b.Score, b.Components)
	}
	if b.Category != CategoryNeutral {
		t.Errorf("category = %s", b.Category)
	}
	if want := fixedNow.Add(-30 * 24 * time.Hour); !stats.since.Equal(want) {
		t.Errorf("window start = %v, want %v", stats.since, want)
	}
}

func TestScoreIsClamped(t *testing.T) {
	stats := &fakeStats{
		stats:    repository.TenantTicketStats{Total: 2, Breached: 9, Resolved: 0},
		negative: 50,
	}
	b := newCalc(stats, nil, nil).Breakdown(context.Background(), 5)
	if b.Score < 0 || b.Score > 100 {
		t.Fatalf("score %d out of range", b.Score)
	}
	if b.Components.BreachCompliance != 0 || b.Components.NegativeEvents != 0 {
		t.Errorf("components not clamped: %+v", b.Components)
	}
	if b.Category != CategoryCritical {
		t.Errorf("category = %s", b.Category)
	}
}

func TestBreakdownUsesCache(t *testing.T) {
	cache := &memCache{}
	stats := &fakeStats{stats: repository.TenantTicketStats{Total: 1, Resolved: 1, Responded: 1}}
	calc := newCalc(stats, cache, nil)

	first := calc.Breakdown(context.Background(), 8)
	stats.err = errors.New("should not be queried")
	second := calc.Breakdown(context.Background(), 8)
	if first.Score != second.Score || second.Fallback {
		t.Errorf("cached breakdown = %+v, first = %+v", second, first)
	}

	cache.getErr = errors.New("redis down")
	stats.err = nil
	if got := calc.CalculateScore(context.Background(), 8); got != first.Score {
		t.Errorf("score after cache failure = %d, want %d", got, first.Score)
	}
}

func TestCategoryBoundaries(t *testing.T) {
	cases := map[int]Category{100: CategoryHealthy, 80: CategoryHealthy, 79: CategoryNeutral, 60: CategoryNeutral, 59: CategoryAtRisk, 40: CategoryAtRisk, 39: CategoryCritical, 0: CategoryCritical}
	for score, want := range cases {
		if got := CategoryFor(score); got != want {
			t.Errorf("CategoryFor(%d) = %s, want %s", score, got, want)
		}
	}
}

func TestInvalidWeightsUseDefaults(t *testing.T) {
	calc := NewCalculator(&fakeStats{}, nil, nil, nil, Options{Weights: Weights{Breach: -1, Response: 2}})
	if calc.opts.Weights != DefaultWeights() {
		t.Errorf("weights = %+v", calc.opts.Weights)
	}
}
