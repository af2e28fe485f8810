// Package events is a synchronous in-process publish/subscribe bus for
// domain events raised after a transaction commits.
package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/campus/pkg/logger"
)

var (
	ErrEventRequired     = errors.New("events: event is required")
	ErrEventTypeRequired = errors.New("events: event type is required")
	ErrHandlerRequired   = errors.New("events: handler is required")
)

// Event is anything the bus can route by type.
type Event interface {
	EventType() string
}

// Handler consumes one event. Returned errors are logged by the bus and never
// reach the code that raised the event.
type Handler func(ctx context.Context, event Event) error

// Bus fans events out to every handler subscribed to their type, in
// subscription order, on the dispatching goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *zap.Logger
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		log:      logger.WithModule("events"),
	}
}

// Subscribe registers handler for eventType.
func (b *Bus) Subscribe(eventType string, handler Handler) error {
	normalized := strings.TrimSpace(eventType)
	if normalized == "" {
		return ErrEventTypeRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[normalized] = append(b.handlers[normalized], handler)
	return nil
}

// Dispatch delivers event to its handlers. Every handler runs even when an
// earlier one fails or panics; the combined error is logged and returned for
// callers that care, such as tests.
func (b *Bus) Dispatch(ctx context.Context, event Event) error {
	if event == nil {
		return ErrEventRequired
	}
	eventType := strings.TrimSpace(event.EventType())
	if eventType == "" {
		return ErrEventTypeRequired
	}

	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[eventType]...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.log.Debug("no handlers for event", zap.String("event_type", eventType))
		return nil
	}

	var errs error
	for _, handler := range handlers {
		if err := b.invoke(ctx, handler, event); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if errs != nil {
		b.log.Warn("event handlers failed",
			zap.String("event_type", eventType),
			zap.Error(errs),
		)
	}
	return errs
}

func (b *Bus) invoke(ctx context.Context, handler Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("events: handler panic: %v", r)
		}
	}()
	return handler(ctx, event)
}
