package domain

// transitions is the ticket lifecycle table. A status absent from the
// table has no legal successors.
var transitions = map[TicketStatus][]TicketStatus{
	TicketStatusNew:             {TicketStatusOpen, TicketStatusAIHandling},
	TicketStatusAIHandling:      {TicketStatusOpen, TicketStatusResolved},
	TicketStatusOpen:            {TicketStatusResolved, TicketStatusPendingCustomer, TicketStatusEscalated},
	TicketStatusPendingCustomer: {TicketStatusOpen, TicketStatusResolved},
	TicketStatusEscalated:       {TicketStatusOpen, TicketStatusResolved},
	TicketStatusResolved:        {TicketStatusClosed, TicketStatusReopened},
	TicketStatusClosed:          {TicketStatusReopened},
	TicketStatusReopened:        {TicketStatusOpen},
}

// CanTransition reports whether a ticket in status from may move to status to.
// Unknown statuses fail closed.
func CanTransition(from, to TicketStatus) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the legal successors of from.
func NextStatuses(from TicketStatus) []TicketStatus {
	next := transitions[from]
	out := make([]TicketStatus, len(next))
	copy(out, next)
	return out
}

// KnownStatus reports whether s appears in the lifecycle table.
func KnownStatus(s TicketStatus) bool {
	_, ok := transitions[s]
	return ok
}
