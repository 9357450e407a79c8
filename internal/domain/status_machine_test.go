package domain

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to TicketStatus
		want     bool
	}{
		{TicketStatusNew, TicketStatusOpen, true},
		{TicketStatusNew, TicketStatusAIHandling, true},
		{TicketStatusAIHandling, TicketStatusOpen, true},
		{TicketStatusAIHandling, TicketStatusResolved, true},
		{TicketStatusOpen, TicketStatusResolved, true},
		{TicketStatusResolved, TicketStatusClosed, true},
		{TicketStatusResolved, TicketStatusReopened, true},
		{TicketStatusClosed, TicketStatusReopened, true},
		{TicketStatusReopened, TicketStatusOpen, true},
		{TicketStatusOpen, TicketStatusPendingCustomer, true},
		{TicketStatusPendingCustomer, TicketStatusOpen, true},
		{TicketStatusOpen, TicketStatusEscalated, true},

		{TicketStatusClosed, TicketStatusOpen, false},
		{TicketStatusNew, TicketStatusResolved, false},
		{TicketStatusOpen, TicketStatusNew, false},
		{TicketStatusResolved, TicketStatusOpen, false},
		{TicketStatusNew, TicketStatusNew, false},
		{TicketStatusReopened, TicketStatusClosed, false},
		{TicketStatus("merged"), TicketStatusOpen, false},
		{TicketStatus(""), TicketStatusNew, false},
		{TicketStatus("bogus"), TicketStatus("bogus"), false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestNextStatusesReturnsCopy(t *testing.T) {
	next := NextStatuses(TicketStatusNew)
	if len(next) != 2 {
		t.Fatalf("NextStatuses(new) = %v", next)
	}
	next[0] = TicketStatusClosed
	if CanTransition(TicketStatusNew, TicketStatusClosed) {
		t.Fatal("mutating the returned slice changed the lifecycle table")
	}
	if got := NextStatuses(TicketStatus("unknown")); len(got) != 0 {
		t.Errorf("NextStatuses(unknown) = %v, want empty", got)
	}
}

func TestEveryTargetIsKnown(t *testing.T) {
	for from, targets := range transitions {
		for _, to := range targets {
			if !KnownStatus(to) {
				t.Errorf("%q -> %q targets a status with no row", from, to)
			}
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []TicketStatus{TicketStatusResolved, TicketStatusClosed} {
		if !s.IsTerminal() {
			t.Errorf("%q should be terminal", s)
		}
	}
	for _, s := range []TicketStatus{TicketStatusNew, TicketStatusOpen, TicketStatusReopened, TicketStatusPendingCustomer} {
		if s.IsTerminal() {
			t.Errorf("%q should not be terminal", s)
		}
	}
}
