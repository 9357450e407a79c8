package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

// inMemoryDispatcher is a simple synchronous dispatcher.
type inMemoryDispatcher struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
}

// NewInMemoryDispatcher creates a dispatcher instance.
func NewInMemoryDispatcher() Dispatcher {
	return &inMemoryDispatcher{
		listeners: make(map[EventType][]EventHandler),
	}
}

// Publish synchronously invokes handlers for the given event. Every
// handler runs; their errors are joined.
func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	handlers := append([]EventHandler{}, d.listeners[event.Type]...)
	d.mu.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Subscribe registers a handler for the given event type.
func (d *inMemoryDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], handler)
}

// redisDispatcher fans events out to a Redis channel for external
// notification dispatchers, then to local subscribers.
type redisDispatcher struct {
	local   Dispatcher
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisDispatcher wraps local so every published event is also sent to channel.
// A nil client degrades to local delivery only.
func NewRedisDispatcher(local Dispatcher, client *redis.Client, channel string, logger *zap.Logger) Dispatcher {
	if local == nil {
		local = NewInMemoryDispatcher()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisDispatcher{local: local, client: client, channel: channel, logger: logger}
}

func (d *redisDispatcher) Publish(ctx context.Context, event Event) error {
	var remoteErr error
	if d.client != nil && d.channel != "" {
		body, err := json.Marshal(event)
		if err != nil {
			remoteErr = err
		} else if err := d.client.Publish(ctx, d.channel, body).Err(); err != nil {
			remoteErr = err
		}
		if remoteErr != nil {
			d.logger.Warn("redis event publish failed",
				zap.String("event_type", string(event.Type)),
				zap.String("ticket_id", event.TicketID),
				zap.Error(remoteErr))
		}
	}
	return errors.Join(remoteErr, d.local.Publish(ctx, event))
}

func (d *redisDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.local.Subscribe(eventType, handler)
}
