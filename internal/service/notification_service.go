package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-sla/internal/config"
	"github.com/spec-kit/support-sla/internal/events"
)

// NotificationService routes lifecycle events to notification stubs.
// Delivery itself belongs to external dispatchers reading the Redis channel.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	handlers   map[events.EventType]events.EventHandler
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
	n.handlers = map[events.EventType]events.EventHandler{
		events.EventTicketCreated:       n.handleTicketCreated,
		events.EventTicketFirstResponse: n.handleInformational,
		events.EventTicketStatusChanged: n.handleTicketStatusChanged,
		events.EventTicketMessageAdded:  n.handleInformational,
		events.EventTicketSLAPaused:     n.handleInformational,
		events.EventTicketSLAResumed:    n.handleInformational,
		events.EventTicketSLABreached:   n.handleSLABreached,
		events.EventTicketSatisfaction:  n.handleInformational,
	}
	return n
}

// RegisterHandlers subscribes every handler in the routing table.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for eventType, handler := range n.handlers {
		n.dispatcher.Subscribe(eventType, handler)
	}
}

// Handles reports whether eventType has a notification route.
func (n *NotificationService) Handles(eventType events.EventType) bool {
	_, ok := n.handlers[eventType]
	return ok
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("ticket created notification", eventFields(event)...)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("ticket status notification", eventFields(event)...)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleSLABreached(ctx context.Context, event events.Event) error {
	n.logger.Warn("sla breached notification", eventFields(event)...)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleInformational(_ context.Context, event events.Event) error {
	n.logger.Debug("ticket event", eventFields(event)...)
	return nil
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}

func eventFields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.Int64("tenant_id", event.TenantID),
		zap.Any("payload", event.Payload),
	}
}
