package dto

import (
	"time"

	"github.com/spec-kit/support-sla/internal/domain"
	"github.com/spec-kit/support-sla/internal/sla"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject     string                `json:"subject"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	Channel     domain.TicketChannel  `json:"channel"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Body string `json:"body"`
}

// SatisfactionRequest payload.
type SatisfactionRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// TransitionRequest payload.
type TransitionRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// TicketResponse represents a ticket with its SLA clock.
type TicketResponse struct {
	ID                    string                `json:"id"`
	TicketNumber          string                `json:"ticket_number"`
	TenantID              int64                 `json:"tenant_id"`
	ReporterID            int64                 `json:"reporter_id"`
	Subject               string                `json:"subject"`
	Description           string                `json:"description,omitempty"`
	Status                domain.TicketStatus   `json:"status"`
	Priority              domain.TicketPriority `json:"priority"`
	Channel               domain.TicketChannel  `json:"channel"`
	FirstResponseDue      time.Time             `json:"first_response_due"`
	ResolutionDue         time.Time             `json:"resolution_due"`
	FirstRespondedAt      *time.Time            `json:"first_responded_at"`
	PausedAt              *time.Time            `json:"paused_at"`
	PausedDurationSeconds int64                 `json:"paused_duration_seconds"`
	SLABreached           bool                  `json:"sla_breached"`
	ResolvedAt            *time.Time            `json:"resolved_at"`
	ClosedAt              *time.Time            `json:"closed_at"`
	SatisfactionRating    *int                  `json:"satisfaction_rating"`
	SatisfactionComment   string                `json:"satisfaction_comment,omitempty"`
	SatisfactionAt        *time.Time            `json:"satisfaction_submitted_at"`
	CreatedAt             time.Time             `json:"created_at"`
	UpdatedAt             time.Time             `json:"updated_at"`
	Version               int64                 `json:"version"`
}

// TicketMessageResponse represents thread message.
type TicketMessageResponse struct {
	ID         string            `json:"id"`
	TicketID   string            `json:"ticket_id"`
	AuthorRole domain.AuthorRole `json:"author_role"`
	Body       string            `json:"body"`
	CreatedAt  time.Time         `json:"created_at"`
}

// TicketEventResponse is one audit trail entry.
type TicketEventResponse struct {
	ID        string            `json:"id"`
	Type      domain.EventType  `json:"type"`
	ActorRole domain.AuthorRole `json:"actor_role"`
	Negative  bool              `json:"negative"`
	Payload   map[string]any    `json:"payload"`
	CreatedAt time.Time         `json:"created_at"`
}

// TransitionsResponse lists the statuses reachable from the current one.
type TransitionsResponse struct {
	Status domain.TicketStatus   `json:"status"`
	Next   []domain.TicketStatus `json:"next"`
}

// SLAStatusResponse wraps the evaluated SLA report.
type SLAStatusResponse struct {
	TicketID string `json:"ticket_id"`
	sla.Report
}

// NewTicketResponse maps the domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:                    t.ID,
		TicketNumber:          t.TicketNumber,
		TenantID:              t.TenantID,
		ReporterID:            t.ReporterID,
		Subject:               t.Subject,
		Description:           t.Description,
		Status:                t.Status,
		Priority:              t.Priority,
		Channel:               t.Channel,
		FirstResponseDue:      t.FirstResponseDue,
		ResolutionDue:         t.ResolutionDue,
		FirstRespondedAt:      t.FirstRespondedAt,
		PausedAt:              t.PausedAt,
		PausedDurationSeconds: int64(t.PausedDuration / time.Second),
		SLABreached:           t.SLABreached,
		ResolvedAt:            t.ResolvedAt,
		ClosedAt:              t.ClosedAt,
		SatisfactionRating:    t.SatisfactionRating,
		SatisfactionComment:   t.SatisfactionComment,
		SatisfactionAt:        t.SatisfactionSubmittedAt,
		CreatedAt:             t.CreatedAt,
		UpdatedAt:             t.UpdatedAt,
		Version:               t.Version,
	}
}

// NewTicketMessageResponse maps a thread message.
func NewTicketMessageResponse(m *domain.TicketMessage) TicketMessageResponse {
	return TicketMessageResponse{
		ID:         m.ID,
		TicketID:   m.TicketID,
		AuthorRole: m.AuthorRole,
		Body:       m.Body,
		CreatedAt:  m.CreatedAt,
	}
}

// NewTicketEventResponse maps an audit entry.
func NewTicketEventResponse(e *domain.EventLogEntry) TicketEventResponse {
	payload := e.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	return TicketEventResponse{
		ID:        e.ID,
		Type:      e.Type,
		ActorRole: e.ActorRole,
		Negative:  e.Negative,
		Payload:   payload,
		CreatedAt: e.CreatedAt,
	}
}
