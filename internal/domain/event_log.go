package domain

import "time"

// EventType identifies a ticket lifecycle event.
type EventType string

const (
	EventTicketCreated       EventType = "ticket.created"
	EventTicketFirstResponse EventType = "ticket.first_response"
	EventTicketStatusChanged EventType = "ticket.status_changed"
	EventTicketMessageAdded  EventType = "ticket.message_added"
	EventTicketSLAPaused     EventType = "ticket.sla_paused"
	EventTicketSLAResumed    EventType = "ticket.sla_resumed"
	EventTicketSLABreached   EventType = "ticket.sla_breached"
	EventTicketSatisfaction  EventType = "ticket.satisfaction_submitted"
)

// EventLogEntry is an immutable audit trail entry.
type EventLogEntry struct {
	ID        string
	TenantID  int64
	TicketID  string
	Type      EventType
	ActorRole AuthorRole
	// Negative marks entries that count against the tenant health score.
	Negative  bool
	Payload   map[string]any
	CreatedAt time.Time
}
