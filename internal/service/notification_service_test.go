package service

import (
	"context"
	"testing"

	"github.com/spec-kit/support-sla/internal/config"
	"github.com/spec-kit/support-sla/internal/events"
)

func TestNotificationServiceRoutesEveryEventType(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	n := NewNotificationService(dispatcher, nil, config.NotificationConfig{WebhookURL: "http://hooks.local/sla"})
	n.RegisterHandlers()

	all := []events.EventType{
		events.EventTicketCreated, events.EventTicketFirstResponse, events.EventTicketStatusChanged,
		events.EventTicketMessageAdded, events.EventTicketSLAPaused, events.EventTicketSLAResumed,
		events.EventTicketSLABreached, events.EventTicketSatisfaction,
	}
	for _, typ := range all {
		if !n.Handles(typ) {
			t.Errorf("no route for %s", typ)
		}
		if err := dispatcher.Publish(context.Background(), events.Event{Type: typ, TicketID: "t-1"}); err != nil {
			t.Errorf("publish %s: %v", typ, err)
		}
	}
	if n.Handles(events.EventType("ticket.deleted")) {
		t.Error("unexpected route for unknown event")
	}
}
