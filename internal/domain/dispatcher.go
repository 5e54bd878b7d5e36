package domain

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"supportportal.io/portal/internal/pkg/logger"
)

// EventHandler reacts to a client event after the change is committed.
type EventHandler func(ctx context.Context, event *DomainEvent) error

// EventDispatcher fans client events out to in-process subscribers.
// Use cases publish after commit, so a handler failure never rolls back
// the change that produced the event.
type EventDispatcher struct {
	mu          sync.RWMutex
	subscribers map[EventType][]EventHandler
}

func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{subscribers: map[EventType][]EventHandler{}}
}

// Register subscribes handler to eventType. Handlers run in the order they
// were registered.
func (d *EventDispatcher) Register(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	d.subscribers[eventType] = append(d.subscribers[eventType], handler)
	d.mu.Unlock()
}

// Dispatch runs every subscriber of event.EventType. All subscribers run even
// when some fail; their errors are joined. A nil dispatcher drops events.
func (d *EventDispatcher) Dispatch(ctx context.Context, event *DomainEvent) error {
	if d == nil || event == nil {
		return nil
	}
	d.mu.RLock()
	subs := slices.Clone(d.subscribers[event.EventType])
	d.mu.RUnlock()

	var errs []error
	for i, handle := range subs {
		err := handle(ctx, event)
		if err == nil {
			continue
		}
		logger.Error("Client event subscriber failed",
			zap.String("event_type", string(event.EventType)),
			zap.String("event_id", event.EventID),
			zap.Int64("client_id", event.ClientID),
			zap.Int("subscriber", i),
			zap.Error(err),
		)
		errs = append(errs, fmt.Errorf("%s subscriber %d: %w", event.EventType, i, err))
	}
	return errors.Join(errs...)
}
