package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-sla/internal/domain"
)

// EventLogRepository stores the append-only ticket audit trail.
type EventLogRepository interface {
	Append(ctx context.Context, entry *domain.EventLogEntry) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.EventLogEntry, error)
	CountNegative(ctx context.Context, tenantID int64, since time.Time) (int, error)
}

type eventLogRepository struct {
	pool *pgxpool.Pool
}

// NewEventLogRepository builds repository.
func NewEventLogRepository(pool *pgxpool.Pool) EventLogRepository {
	return &eventLogRepository{pool: pool}
}

func (r *eventLogRepository) Append(ctx context.Context, entry *domain.EventLogEntry) error {
	payload := entry.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO ticket_events (id, tenant_id, ticket_id, event_type, actor_role, negative, payload, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err = r.pool.Exec(ctx, query,
		entry.ID,
		entry.TenantID,
		entry.TicketID,
		entry.Type,
		entry.ActorRole,
		entry.Negative,
		raw,
		entry.CreatedAt,
	)
	return err
}

func (r *eventLogRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.EventLogEntry, error) {
	const query = `
        SELECT id, tenant_id, ticket_id, event_type, actor_role, negative, payload, created_at
        FROM ticket_events WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.EventLogEntry
	for rows.Next() {
		var (
			entry domain.EventLogEntry
			raw   []byte
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.TenantID,
			&entry.TicketID,
			&entry.Type,
			&entry.ActorRole,
			&entry.Negative,
			&raw,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &entry.Payload); err != nil {
				return nil, err
			}
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r *eventLogRepository) CountNegative(ctx context.Context, tenantID int64, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM ticket_events WHERE tenant_id=$1 AND negative AND created_at >= $2`
	var count int
	if err := r.pool.QueryRow(ctx, query, tenantID, since).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
