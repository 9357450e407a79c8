package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew             TicketStatus = "new"
	TicketStatusAIHandling      TicketStatus = "ai_handling"
	TicketStatusOpen            TicketStatus = "open"
	TicketStatusPendingCustomer TicketStatus = "pending_customer"
	TicketStatusEscalated       TicketStatus = "escalated"
	TicketStatusResolved        TicketStatus = "resolved"
	TicketStatusClosed          TicketStatus = "closed"
	TicketStatusReopened        TicketStatus = "reopened"
)

// IsTerminal reports whether the status ends SLA accounting.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// TicketChannel records where a ticket came from.
type TicketChannel string

const (
	ChannelPortal   TicketChannel = "portal"
	ChannelEmail    TicketChannel = "email"
	ChannelChat     TicketChannel = "chat"
	ChannelWhatsApp TicketChannel = "whatsapp"
	ChannelPhone    TicketChannel = "phone"
	ChannelAPI      TicketChannel = "api"
)

// Valid reports whether c is a known channel.
func (c TicketChannel) Valid() bool {
	switch c {
	case ChannelPortal, ChannelEmail, ChannelChat, ChannelWhatsApp, ChannelPhone, ChannelAPI:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID               string
	TicketNumber     string
	TenantID         int64
	ReporterID       int64
	Subject          string
	Description      string
	Status           TicketStatus
	Priority         TicketPriority
	Channel          TicketChannel
	FirstResponseDue time.Time
	ResolutionDue    time.Time
	FirstRespondedAt *time.Time
	PausedAt         *time.Time
	PausedDuration   time.Duration
	SLABreached      bool
	ResolvedAt       *time.Time
	ClosedAt         *time.Time
	// SatisfactionRating is the reporter's CSAT score, set at most once.
	SatisfactionRating      *int
	SatisfactionComment     string
	SatisfactionSubmittedAt *time.Time
	CreatedAt               time.Time
	UpdatedAt               time.Time
	// Version is bumped on every save and guards against lost updates.
	Version int64
}

// IsResolved reports whether the ticket reached a terminal status.
func (t *Ticket) IsResolved() bool {
	return t.Status.IsTerminal()
}

// IsPaused reports whether the SLA clock is frozen.
func (t *Ticket) IsPaused() bool {
	return t.PausedAt != nil
}

// SLASnapshot copies the time-relevant fields for pure SLA evaluation.
func (t *Ticket) SLASnapshot() SLASnapshot {
	return SLASnapshot{
		CreatedAt:        t.CreatedAt,
		FirstResponseDue: t.FirstResponseDue,
		ResolutionDue:    t.ResolutionDue,
		FirstRespondedAt: t.FirstRespondedAt,
		PausedAt:         t.PausedAt,
		Resolved:         t.IsResolved(),
	}
}

// SLASnapshot is a read-only view of a ticket's SLA state.
type SLASnapshot struct {
	CreatedAt        time.Time
	FirstResponseDue time.Time
	ResolutionDue    time.Time
	FirstRespondedAt *time.Time
	PausedAt         *time.Time
	Resolved         bool
}

// TicketField names a persisted column group so saves only touch what changed.
type TicketField string

const (
	FieldStatus           TicketField = "status"
	FieldPriority         TicketField = "priority"
	FieldFirstRespondedAt TicketField = "first_responded_at"
	FieldPausedAt         TicketField = "paused_at"
	FieldPausedDuration   TicketField = "paused_duration"
	FieldFirstResponseDue TicketField = "first_response_due"
	FieldResolutionDue    TicketField = "resolution_due"
	FieldSLABreached      TicketField = "sla_breached"
	FieldResolvedAt       TicketField = "resolved_at"
	FieldClosedAt         TicketField = "closed_at"

	FieldSatisfactionRating      TicketField = "satisfaction_rating"
	FieldSatisfactionComment     TicketField = "satisfaction_comment"
	FieldSatisfactionSubmittedAt TicketField = "satisfaction_submitted_at"
)

// SatisfactionFields are written together when a CSAT response is submitted.
var SatisfactionFields = []TicketField{FieldSatisfactionRating, FieldSatisfactionComment, FieldSatisfactionSubmittedAt}

// Satisfaction ratings run from 1 (very unhappy) to 5; MaxNegativeSatisfaction
// and below counts against the tenant health score.
const (
	MinSatisfaction         = 1
	MaxSatisfaction         = 5
	MaxNegativeSatisfaction = 2
)

// SLAClockFields are the fields a pause/resume cycle can change.
var SLAClockFields = []TicketField{FieldPausedAt, FieldPausedDuration, FieldFirstResponseDue, FieldResolutionDue}
