package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-sla/internal/domain"
	apperrors "github.com/spec-kit/support-sla/pkg/util/errorutil"
)

// TicketFilter narrows ticket listings.
type TicketFilter struct {
	TenantID    *int64
	ReporterID  *int64
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// Save writes the named fields when ticket.Version still matches the stored
	// row, then bumps the version. A stale version yields a concurrency conflict.
	Save(ctx context.Context, ticket *domain.Ticket, fields ...domain.TicketField) error
	ListOpenIDs(ctx context.Context) ([]string, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	StreamByTenant(ctx context.Context, tenantID int64, filter TicketFilter, fn func(domain.Ticket) error) error
	// TryAdvisoryLock takes a session-level lock on a dedicated connection.
	// The returned release func must be called when ok is true.
	TryAdvisoryLock(ctx context.Context, key int64) (release func(), ok bool, err error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, ticket_number, tenant_id, reporter_id, subject, description, status, priority, channel,
               first_response_due, resolution_due, first_responded_at, paused_at, paused_seconds, sla_breached,
               resolved_at, closed_at, satisfaction_rating, satisfaction_comment, satisfaction_submitted_at,
               created_at, updated_at, version`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, ticket_number, tenant_id, reporter_id, subject, description, status, priority, channel,
            first_response_due, resolution_due, paused_seconds, created_at, updated_at, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13,1)
        RETURNING updated_at, version`
	return r.pool.QueryRow(ctx, query,
		ticket.ID,
		ticket.TicketNumber,
		ticket.TenantID,
		ticket.ReporterID,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.Channel,
		ticket.FirstResponseDue,
		ticket.ResolutionDue,
		int64(ticket.PausedDuration/time.Second),
		ticket.CreatedAt,
	).Scan(&ticket.UpdatedAt, &ticket.Version)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// fieldValue maps a ticket field to its column and current value.
func fieldValue(ticket *domain.Ticket, field domain.TicketField) (string, any, error) {
	switch field {
	case domain.FieldStatus:
		return "status", ticket.Status, nil
	case domain.FieldPriority:
		return "priority", ticket.Priority, nil
	case domain.FieldFirstRespondedAt:
		return "first_responded_at", ticket.FirstRespondedAt, nil
	case domain.FieldPausedAt:
		return "paused_at", ticket.PausedAt, nil
	case domain.FieldPausedDuration:
		return "paused_seconds", int64(ticket.PausedDuration / time.Second), nil
	case domain.FieldFirstResponseDue:
		return "first_response_due", ticket.FirstResponseDue, nil
	case domain.FieldResolutionDue:
		return "resolution_due", ticket.ResolutionDue, nil
	case domain.FieldSLABreached:
		return "sla_breached", ticket.SLABreached, nil
	case domain.FieldResolvedAt:
		return "resolved_at", ticket.ResolvedAt, nil
	case domain.FieldClosedAt:
		return "closed_at", ticket.ClosedAt, nil
	case domain.FieldSatisfactionRating:
		return "satisfaction_rating", ticket.SatisfactionRating, nil
	case domain.FieldSatisfactionComment:
		return "satisfaction_comment", ticket.SatisfactionComment, nil
	case domain.FieldSatisfactionSubmittedAt:
		return "satisfaction_submitted_at", ticket.SatisfactionSubmittedAt, nil
	}
	return "", nil, fmt.Errorf("unknown ticket field %q", field)
}

func (r *ticketRepository) Save(ctx context.Context, ticket *domain.Ticket, fields ...domain.TicketField) error {
	if len(fields) == 0 {
		return nil
	}
	seen := make(map[domain.TicketField]struct{}, len(fields))
	sets := make([]string, 0, len(fields)+2)
	args := make([]any, 0, len(fields)+2)
	for _, field := range fields {
		if _, dup := seen[field]; dup {
			continue
		}
		seen[field] = struct{}{}
		column, value, err := fieldValue(ticket, field)
		if err != nil {
			return err
		}
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	sets = append(sets, "updated_at=NOW()", "version=version+1")
	args = append(args, ticket.ID, ticket.Version)

	query := fmt.Sprintf(`UPDATE tickets SET %s WHERE id=$%d AND version=$%d RETURNING updated_at, version`,
		strings.Join(sets, ", "), len(args)-1, len(args))

	err := r.pool.QueryRow(ctx, query, args...).Scan(&ticket.UpdatedAt, &ticket.Version)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE id=$1)`, ticket.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return apperrors.NewNotFound("ticket", map[string]any{"id": ticket.ID})
	}
	return apperrors.NewConcurrencyConflict(ticket.ID)
}

func (r *ticketRepository) ListOpenIDs(ctx context.Context) ([]string, error) {
	const query = `SELECT id FROM tickets WHERE status NOT IN ('resolved','closed') ORDER BY resolution_due ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	query, args := buildTicketQuery(filter, true)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) StreamByTenant(ctx context.Context, tenantID int64, filter TicketFilter, fn func(domain.Ticket) error) error {
	filter.TenantID = &tenantID
	query, args := buildTicketQuery(filter, false)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return err
		}
		if err := fn(*ticket); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *ticketRepository) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, false, err
	}
	var locked bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&locked); err != nil {
		conn.Release()
		return nil, false, err
	}
	if !locked {
		conn.Release()
		return nil, false, nil
	}
	release := func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, key)
		conn.Release()
	}
	return release, true, nil
}

// buildTicketQuery renders the filtered SELECT. Paged listings sort newest
// first; streams run oldest first without a limit.
func buildTicketQuery(filter TicketFilter, paged bool) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.TenantID != nil {
		args = append(args, *filter.TenantID)
		clauses = append(clauses, fmt.Sprintf("tenant_id=$%d", len(args)))
	}
	if filter.ReporterID != nil {
		args = append(args, *filter.ReporterID)
		clauses = append(clauses, fmt.Sprintf("reporter_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(subject) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	base := `SELECT ` + ticketColumns + ` FROM tickets WHERE ` + strings.Join(clauses, " AND ")
	if !paged {
		return base + ` ORDER BY created_at ASC`, args
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	return fmt.Sprintf(`%s ORDER BY created_at DESC LIMIT %d OFFSET %d`, base, limit, offset), args
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket        domain.Ticket
		pausedSeconds int64
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.TicketNumber,
		&ticket.TenantID,
		&ticket.ReporterID,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Channel,
		&ticket.FirstResponseDue,
		&ticket.ResolutionDue,
		&ticket.FirstRespondedAt,
		&ticket.PausedAt,
		&pausedSeconds,
		&ticket.SLABreached,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
		&ticket.SatisfactionRating,
		&ticket.SatisfactionComment,
		&ticket.SatisfactionSubmittedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.Version,
	); err != nil {
		return nil, err
	}
	ticket.PausedDuration = time.Duration(pausedSeconds) * time.Second
	normalizeTimes(&ticket)
	return &ticket, nil
}

// normalizeTimes keeps loaded instants in UTC like the SLA clock produces them.
func normalizeTimes(t *domain.Ticket) {
	t.FirstResponseDue = t.FirstResponseDue.UTC()
	t.ResolutionDue = t.ResolutionDue.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	for _, p := range []**time.Time{&t.FirstRespondedAt, &t.PausedAt, &t.ResolvedAt, &t.ClosedAt, &t.SatisfactionSubmittedAt} {
		if *p != nil {
			v := (*p).UTC()
			*p = &v
		}
	}
}
