package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TenantTicketStats aggregates a tenant's tickets over a window.
type TenantTicketStats struct {
	Total    int
	Breached int
	Resolved int
	// Responded counts tickets with a recorded first response.
	Responded int
	// ResponseP50 and ResponseP90 are first-response latencies; zero when Responded is 0.
	ResponseP50 time.Duration
	ResponseP90 time.Duration
}

// TenantStatsReader provides the read-only aggregates behind the health score.
type TenantStatsReader interface {
	TenantTicketStats(ctx context.Context, tenantID int64, since time.Time) (TenantTicketStats, error)
	CountNegativeEvents(ctx context.Context, tenantID int64, since time.Time) (int, error)
}

type tenantStatsReader struct {
	pool   *pgxpool.Pool
	events EventLogRepository
}

// NewTenantStatsReader builds the aggregate reader.
func NewTenantStatsReader(pool *pgxpool.Pool, events EventLogRepository) TenantStatsReader {
	if events == nil {
		events = NewEventLogRepository(pool)
	}
	return &tenantStatsReader{pool: pool, events: events}
}

func (r *tenantStatsReader) TenantTicketStats(ctx context.Context, tenantID int64, since time.Time) (TenantTicketStats, error) {
	const query = `
        SELECT
            COUNT(*),
            COUNT(*) FILTER (WHERE sla_breached),
            COUNT(*) FILTER (WHERE status IN ('resolved','closed')),
            COUNT(first_responded_at),
            COALESCE(percentile_cont(0.5) WITHIN GROUP (ORDER BY EXTRACT(EPOCH FROM first_responded_at - created_at))
                FILTER (WHERE first_responded_at IS NOT NULL), 0),
            COALESCE(percentile_cont(0.9) WITHIN GROUP (ORDER BY EXTRACT(EPOCH FROM first_responded_at - created_at))
                FILTER (WHERE first_responded_at IS NOT NULL), 0)
        FROM tickets
        WHERE tenant_id=$1 AND created_at >= $2`
	var (
		stats    TenantTicketStats
		p50, p90 float64
	)
	if err := r.pool.QueryRow(ctx, query, tenantID, since).Scan(
		&stats.Total,
		&stats.Breached,
		&stats.Resolved,
		&stats.Responded,
		&p50,
		&p90,
	); err != nil {
		return TenantTicketStats{}, err
	}
	stats.ResponseP50 = time.Duration(p50 * float64(time.Second))
	stats.ResponseP90 = time.Duration(p90 * float64(time.Second))
	return stats, nil
}

func (r *tenantStatsReader) CountNegativeEvents(ctx context.Context, tenantID int64, since time.Time) (int, error) {
	return r.events.CountNegative(ctx, tenantID, since)
}
