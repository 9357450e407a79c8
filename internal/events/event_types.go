package events

import (
	"time"

	"github.com/spec-kit/support-sla/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType = domain.EventType

const (
	EventTicketCreated       = domain.EventTicketCreated
	EventTicketFirstResponse = domain.EventTicketFirstResponse
	EventTicketStatusChanged = domain.EventTicketStatusChanged
	EventTicketMessageAdded  = domain.EventTicketMessageAdded
	EventTicketSLAPaused     = domain.EventTicketSLAPaused
	EventTicketSLAResumed    = domain.EventTicketSLAResumed
	EventTicketSLABreached   = domain.EventTicketSLABreached
	EventTicketSatisfaction  = domain.EventTicketSatisfaction
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Role   domain.AuthorRole `json:"role"`
	UserID int64             `json:"user_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TenantID  int64       `json:"tenant_id"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketNumber     string                `json:"ticket_number"`
	Priority         domain.TicketPriority `json:"priority"`
	Channel          domain.TicketChannel  `json:"channel"`
	Subject          string                `json:"subject"`
	FirstResponseDue time.Time             `json:"first_response_due"`
	ResolutionDue    time.Time             `json:"resolution_due"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketMessageAddedPayload payload.
type TicketMessageAddedPayload struct {
	MessageID   string            `json:"message_id"`
	AuthorRole  domain.AuthorRole `json:"author_role"`
	BodyPreview string            `json:"body_preview"`
}

// FirstResponsePayload payload.
type FirstResponsePayload struct {
	RespondedAt      time.Time         `json:"responded_at"`
	FirstResponseDue time.Time         `json:"first_response_due"`
	AuthorRole       domain.AuthorRole `json:"author_role"`
}

// SLAPausedPayload payload.
type SLAPausedPayload struct {
	PausedAt time.Time `json:"paused_at"`
}

// SLAResumedPayload payload.
type SLAResumedPayload struct {
	PausedSeconds    int64     `json:"paused_seconds"`
	TotalPaused      int64     `json:"total_paused_seconds"`
	FirstResponseDue time.Time `json:"first_response_due"`
	ResolutionDue    time.Time `json:"resolution_due"`
}

// SLABreachedPayload payload.
type SLABreachedPayload struct {
	ResponseBreached   bool      `json:"response_breached"`
	ResolutionBreached bool      `json:"resolution_breached"`
	FirstResponseDue   time.Time `json:"first_response_due"`
	ResolutionDue      time.Time `json:"resolution_due"`
}

// SatisfactionPayload payload.
type SatisfactionPayload struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}
