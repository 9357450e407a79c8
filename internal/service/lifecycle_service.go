package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-sla/internal/domain"
	"github.com/spec-kit/support-sla/internal/events"
	"github.com/spec-kit/support-sla/internal/observability"
	"github.com/spec-kit/support-sla/internal/repository"
	"github.com/spec-kit/support-sla/internal/sla"
	"github.com/spec-kit/support-sla/internal/tenancy"
	apperrors "github.com/spec-kit/support-sla/pkg/util/errorutil"
)

// maxSaveAttempts bounds load-mutate-save cycles on version conflicts.
const maxSaveAttempts = 2

// TicketLifecycleService coordinates ticket workflows and their SLA clocks.
type TicketLifecycleService struct {
	tickets    repository.TicketRepository
	messages   repository.TicketMessageRepository
	eventLog   repository.EventLogRepository
	dispatcher events.Dispatcher
	clock      *sla.Clock
	planner    *sla.Planner
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	TicketRepo   repository.TicketRepository
	MessageRepo  repository.TicketMessageRepository
	EventLogRepo repository.EventLogRepository
	Dispatcher   events.Dispatcher
	Clock        *sla.Clock
	Planner      *sla.Planner
	Logger       *zap.Logger
	Metrics      *observability.Metrics
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	// TenantID overrides the tenant carried by the request context.
	TenantID    int64
	Subject     string
	Description string
	Priority    domain.TicketPriority
	Channel     domain.TicketChannel
}

// NewTicketLifecycleService constructs the service.
func NewTicketLifecycleService(deps LifecycleDependencies) *TicketLifecycleService {
	s := &TicketLifecycleService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		eventLog:   deps.EventLogRepo,
		dispatcher: deps.Dispatcher,
		clock:      deps.Clock,
		planner:    deps.Planner,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
	}
	if s.clock == nil {
		s.clock = sla.NewClock(nil)
	}
	if s.planner == nil {
		s.planner = sla.NewPlanner(nil, nil)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// CreateTicket opens a ticket for reporterID with deadlines from the priority's SLA policy.
func (s *TicketLifecycleService) CreateTicket(ctx context.Context, input TicketCreateInput, reporterID int64) (*domain.Ticket, error) {
	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		return nil, apperrors.NewValidationError("subject is required", map[string]any{"field": "subject"})
	}
	if reporterID <= 0 {
		return nil, apperrors.NewValidationError("reporter is required", map[string]any{"field": "reporter_id"})
	}

	tenantID := input.TenantID
	if tenantID <= 0 {
		var ok bool
		if tenantID, ok = tenancy.FromContext(ctx); !ok {
			return nil, apperrors.NewValidationError("tenant could not be resolved", map[string]any{"field": "tenant_id"})
		}
	}

	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}
	channel := input.Channel
	if channel == "" {
		channel = domain.ChannelPortal
	}
	if !channel.Valid() {
		return nil, apperrors.NewValidationError("unknown channel", map[string]any{"channel": channel})
	}

	now := s.clock.Now()
	deadlines, err := s.planner.Plan(now, priority)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("plan sla deadlines: %w", err))
	}

	ticket := &domain.Ticket{
		ID:               uuid.NewString(),
		TicketNumber:     generateTicketNumber(now),
		TenantID:         tenantID,
		ReporterID:       reporterID,
		Subject:          subject,
		Description:      strings.TrimSpace(input.Description),
		Status:           domain.TicketStatusNew,
		Priority:         priority,
		Channel:          channel,
		FirstResponseDue: deadlines.FirstResponseDue,
		ResolutionDue:    deadlines.ResolutionDue,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}

	if err := s.record(ctx, ticket, []pendingEvent{{
		Type:  events.EventTicketCreated,
		Actor: events.Actor{Role: domain.AuthorRoleCustomer, UserID: reporterID},
		Payload: events.TicketCreatedPayload{
			TicketNumber:     ticket.TicketNumber,
			Priority:         ticket.Priority,
			Channel:          ticket.Channel,
			Subject:          ticket.Subject,
			FirstResponseDue: ticket.FirstResponseDue,
			ResolutionDue:    ticket.ResolutionDue,
		},
	}}); err != nil {
		return nil, err
	}

	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("ticket_number", ticket.TicketNumber),
		zap.Int64("tenant_id", ticket.TenantID),
		zap.String("priority", string(ticket.Priority)))
	return ticket, nil
}

// GetTicket loads a ticket visible to the caller's tenant.
func (s *TicketLifecycleService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return s.load(ctx, ticketID)
}

// ListTickets returns a page of tickets, scoped to the caller's tenant when one is set.
func (s *TicketLifecycleService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	if tenantID, ok := tenancy.FromContext(ctx); ok {
		filter.TenantID = &tenantID
	}
	return s.tickets.ListWithFilter(ctx, filter)
}

// ListMessages returns the ticket thread in creation order.
func (s *TicketLifecycleService) ListMessages(ctx context.Context, ticketID string) ([]domain.TicketMessage, error) {
	if _, err := s.load(ctx, ticketID); err != nil {
		return nil, err
	}
	return s.messages.ListByTicket(ctx, ticketID)
}

// ListEvents returns the ticket audit trail.
func (s *TicketLifecycleService) ListEvents(ctx context.Context, ticketID string) ([]domain.EventLogEntry, error) {
	if _, err := s.load(ctx, ticketID); err != nil {
		return nil, err
	}
	return s.eventLog.ListByTicket(ctx, ticketID)
}

// AddMessage appends a message. The first agent or AI message stamps the
// ticket's first response; customer messages never do.
func (s *TicketLifecycleService) AddMessage(ctx context.Context, ticketID, body string, role domain.AuthorRole) (*domain.TicketMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("message body is required", map[string]any{"field": "body"})
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("unknown author role", map[string]any{"role": role})
	}
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	msg := &domain.TicketMessage{
		ID:         uuid.NewString(),
		TicketID:   ticket.ID,
		AuthorRole: role,
		Body:       body,
		CreatedAt:  s.clock.Now(),
	}

	// Stamp the first response before storing the message; a failed save stores nothing.
	if role.CountsAsResponse() && ticket.FirstRespondedAt == nil {
		ticket, err = s.mutate(ctx, ticketID, func(t *domain.Ticket) (change, error) {
			if t.FirstRespondedAt != nil {
				return change{}, nil
			}
			respondedAt := msg.CreatedAt
			t.FirstRespondedAt = &respondedAt
			return change{
				fields: []domain.TicketField{domain.FieldFirstRespondedAt},
				events: []pendingEvent{{
					Type:  events.EventTicketFirstResponse,
					Actor: events.Actor{Role: role},
					Payload: events.FirstResponsePayload{
						RespondedAt:      respondedAt,
						FirstResponseDue: t.FirstResponseDue,
						AuthorRole:       role,
					},
				}},
			}, nil
		})
		if err != nil {
			return nil, err
		}
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	if err := s.record(ctx, ticket, []pendingEvent{{
		Type:  events.EventTicketMessageAdded,
		Actor: events.Actor{Role: role},
		Payload: events.TicketMessageAddedPayload{
			MessageID:   msg.ID,
			AuthorRole:  role,
			BodyPreview: stringPreview(msg.Body, 120),
		},
	}}); err != nil {
		return nil, err
	}
	return msg, nil
}

// TransitionStatus moves the ticket to newStatus when the lifecycle allows it.
// Entering pending_customer pauses the SLA clock; leaving it, or reaching a
// terminal status, resumes it first.
func (s *TicketLifecycleService) TransitionStatus(ctx context.Context, ticketID string, newStatus domain.TicketStatus) (*domain.Ticket, error) {
	var from domain.TicketStatus
	ticket, err := s.mutate(ctx, ticketID, func(t *domain.Ticket) (change, error) {
		from = t.Status
		if !domain.CanTransition(from, newStatus) {
			s.metrics.RecordTransitionRejected(string(from), string(newStatus))
			return change{}, apperrors.NewTransitionRejected(string(from), string(newStatus))
		}

		var c change
		if from == domain.TicketStatusPendingCustomer || newStatus.IsTerminal() {
			if ev, ok := s.resume(t); ok {
				c.fields = append(c.fields, domain.SLAClockFields...)
				c.events = append(c.events, ev)
			}
		}

		t.Status = newStatus
		c.fields = append(c.fields, domain.FieldStatus)
		now := s.clock.Now()
		switch newStatus {
		case domain.TicketStatusResolved:
			t.ResolvedAt = &now
			c.fields = append(c.fields, domain.FieldResolvedAt)
		case domain.TicketStatusClosed:
			t.ClosedAt = &now
			c.fields = append(c.fields, domain.FieldClosedAt)
			if t.ResolvedAt == nil {
				t.ResolvedAt = &now
				c.fields = append(c.fields, domain.FieldResolvedAt)
			}
		case domain.TicketStatusReopened:
			t.ResolvedAt = nil
			t.ClosedAt = nil
			c.fields = append(c.fields, domain.FieldResolvedAt, domain.FieldClosedAt)
		}

		c.events = append(c.events, pendingEvent{
			Type:     events.EventTicketStatusChanged,
			Actor:    events.Actor{Role: domain.AuthorRoleSystem},
			Negative: isNegativeStatus(newStatus),
			Payload:  events.TicketStatusChangedPayload{OldStatus: from, NewStatus: newStatus},
		})

		if newStatus == domain.TicketStatusPendingCustomer {
			if ev, ok := s.pause(t); ok {
				c.fields = append(c.fields, domain.FieldPausedAt)
				c.events = append(c.events, ev)
			}
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTransition(string(from), string(newStatus))
	s.logger.Info("ticket status changed",
		zap.String("ticket_id", ticket.ID),
		zap.String("from", string(from)),
		zap.String("to", string(newStatus)))
	return ticket, nil
}

// PauseSLA freezes the ticket's SLA clock. Already paused or terminal tickets are left as they are.
func (s *TicketLifecycleService) PauseSLA(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return s.mutate(ctx, ticketID, func(t *domain.Ticket) (change, error) {
		ev, ok := s.pause(t)
		if !ok {
			return change{}, nil
		}
		return change{fields: []domain.TicketField{domain.FieldPausedAt}, events: []pendingEvent{ev}}, nil
	})
}

// ResumeSLA restarts a paused SLA clock and pushes both deadlines by the pause length.
func (s *TicketLifecycleService) ResumeSLA(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return s.mutate(ctx, ticketID, func(t *domain.Ticket) (change, error) {
		ev, ok := s.resume(t)
		if !ok {
			return change{}, nil
		}
		return change{fields: domain.SLAClockFields, events: []pendingEvent{ev}}, nil
	})
}

// SubmitSatisfaction records the reporter's CSAT rating on a resolved or
// closed ticket. A ticket takes one response; low ratings are negative events.
func (s *TicketLifecycleService) SubmitSatisfaction(ctx context.Context, ticketID string, reporterID int64, rating int, comment string) (*domain.Ticket, error) {
	if rating < domain.MinSatisfaction || rating > domain.MaxSatisfaction {
		return nil, apperrors.NewValidationError("rating must be between 1 and 5", map[string]any{"rating": rating})
	}
	comment = strings.TrimSpace(comment)

	return s.mutate(ctx, ticketID, func(t *domain.Ticket) (change, error) {
		if t.ReporterID != reporterID {
			return change{}, apperrors.NewForbidden("only the reporter can rate a ticket")
		}
		if !t.IsResolved() {
			return change{}, apperrors.NewConflict("ticket is not resolved", map[string]any{"status": t.Status})
		}
		if t.SatisfactionRating != nil {
			return change{}, apperrors.NewConflict("satisfaction already submitted", map[string]any{"ticket_id": t.ID})
		}
		now := s.clock.Now()
		score := rating
		t.SatisfactionRating = &score
		t.SatisfactionComment = comment
		t.SatisfactionSubmittedAt = &now
		return change{
			fields: domain.SatisfactionFields,
			events: []pendingEvent{{
				Type:     events.EventTicketSatisfaction,
				Actor:    events.Actor{Role: domain.AuthorRoleCustomer, UserID: reporterID},
				Negative: rating <= domain.MaxNegativeSatisfaction,
				Payload:  events.SatisfactionPayload{Rating: rating, Comment: stringPreview(comment, 120)},
			}},
		}, nil
	})
}

// SLAStatus evaluates the ticket's SLA at the current instant.
func (s *TicketLifecycleService) SLAStatus(ctx context.Context, ticketID string) (sla.Report, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return sla.Report{}, err
	}
	return s.clock.Check(ticket.SLASnapshot()), nil
}

// markBreached sets the sticky breach flag when the ticket is currently
// breaching. It reports whether this call flagged the ticket.
func (s *TicketLifecycleService) markBreached(ctx context.Context, ticketID string) (bool, error) {
	flagged := false
	ticket, err := s.mutate(ctx, ticketID, func(t *domain.Ticket) (change, error) {
		flagged = false
		if t.SLABreached {
			return change{}, nil
		}
		report := s.clock.Check(t.SLASnapshot())
		if report.Status != sla.StatusBreached {
			return change{}, nil
		}
		t.SLABreached = true
		flagged = true
		return change{
			fields: []domain.TicketField{domain.FieldSLABreached},
			events: []pendingEvent{{
				Type:     events.EventTicketSLABreached,
				Actor:    events.Actor{Role: domain.AuthorRoleSystem},
				Negative: true,
				Payload: events.SLABreachedPayload{
					ResponseBreached:   report.ResponseBreached,
					ResolutionBreached: report.ResolutionBreached,
					FirstResponseDue:   report.ResponseDue,
					ResolutionDue:      report.ResolutionDue,
				},
			}},
		}, nil
	})
	if err != nil {
		return false, err
	}
	if flagged {
		s.metrics.RecordBreach(string(ticket.Priority))
	}
	return flagged, nil
}

func (s *TicketLifecycleService) pause(t *domain.Ticket) (pendingEvent, bool) {
	if !s.clock.Pause(t) {
		return pendingEvent{}, false
	}
	return pendingEvent{
		Type:    events.EventTicketSLAPaused,
		Actor:   events.Actor{Role: domain.AuthorRoleSystem},
		Payload: events.SLAPausedPayload{PausedAt: *t.PausedAt},
	}, true
}

func (s *TicketLifecycleService) resume(t *domain.Ticket) (pendingEvent, bool) {
	elapsed, ok := s.clock.Resume(t)
	if !ok {
		return pendingEvent{}, false
	}
	return pendingEvent{
		Type:  events.EventTicketSLAResumed,
		Actor: events.Actor{Role: domain.AuthorRoleSystem},
		Payload: events.SLAResumedPayload{
			PausedSeconds:    int64(elapsed.Seconds()),
			TotalPaused:      int64(t.PausedDuration.Seconds()),
			FirstResponseDue: t.FirstResponseDue,
			ResolutionDue:    t.ResolutionDue,
		},
	}, true
}

// change is the outcome of a mutation: the fields to persist and the events to announce.
type change struct {
	fields []domain.TicketField
	events []pendingEvent
}

type pendingEvent struct {
	Type     events.EventType
	Actor    events.Actor
	Negative bool
	Payload  any
}

// mutate runs load, fn and a versioned save. On a concurrency conflict the
// ticket is reloaded and fn applied again; the second conflict is returned.
// Events are recorded only after a successful save.
func (s *TicketLifecycleService) mutate(ctx context.Context, ticketID string, fn func(*domain.Ticket) (change, error)) (*domain.Ticket, error) {
	for attempt := 1; ; attempt++ {
		ticket, err := s.load(ctx, ticketID)
		if err != nil {
			return nil, err
		}
		c, err := fn(ticket)
		if err != nil {
			return nil, err
		}
		if len(c.fields) == 0 {
			return ticket, nil
		}
		err = s.tickets.Save(ctx, ticket, c.fields...)
		if errors.Is(err, apperrors.ErrConcurrencyConflict) && attempt < maxSaveAttempts {
			s.logger.Debug("ticket version conflict; retrying",
				zap.String("ticket_id", ticketID), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := s.record(ctx, ticket, c.events); err != nil {
			return nil, err
		}
		return ticket, nil
	}
}

func (s *TicketLifecycleService) load(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	if _, err := uuid.Parse(ticketID); err != nil {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if de := apperrors.ToDomainError(err); de.Code == apperrors.CodeNotFound {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, err
	}
	if tenantID, ok := tenancy.FromContext(ctx); ok && ticket.TenantID != tenantID {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
	}
	return ticket, nil
}

// record appends events to the audit trail and then publishes them.
func (s *TicketLifecycleService) record(ctx context.Context, ticket *domain.Ticket, pending []pendingEvent) error {
	for _, p := range pending {
		now := s.clock.Now()
		entry := &domain.EventLogEntry{
			ID:        uuid.NewString(),
			TenantID:  ticket.TenantID,
			TicketID:  ticket.ID,
			Type:      p.Type,
			ActorRole: p.Actor.Role,
			Negative:  p.Negative,
			Payload:   payloadMap(p.Payload),
			CreatedAt: now,
		}
		if s.eventLog != nil {
			if err := s.eventLog.Append(ctx, entry); err != nil {
				return fmt.Errorf("append %s event: %w", p.Type, err)
			}
		}
		s.publishEvent(ctx, events.Event{
			ID:        entry.ID,
			Type:      p.Type,
			TenantID:  ticket.TenantID,
			TicketID:  ticket.ID,
			Actor:     p.Actor,
			Timestamp: now,
			Payload:   p.Payload,
		})
	}
	return nil
}

func (s *TicketLifecycleService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

// isNegativeStatus marks transitions that count against the tenant health score.
func isNegativeStatus(status domain.TicketStatus) bool {
	return status == domain.TicketStatusReopened || status == domain.TicketStatusEscalated
}

func payloadMap(payload any) map[string]any {
	if payload == nil {
		return map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return map[string]any{}
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}

func generateTicketNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "SUP-" + now.UTC().Format("200601") + "-" + suffix
}

func stringPreview(body string, limit int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= limit {
		return body
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}
