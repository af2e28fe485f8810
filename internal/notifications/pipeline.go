package notifications

import (
	"context"
	"errors"
	"sync/atomic"

	"gorm.io/gorm"

	"github.com/charlesng35/campus/internal/events"
	"github.com/charlesng35/campus/internal/queue"
)

// Pipeline wires the relay, queue consumer and router around one queue.
type Pipeline struct {
	relay    *Relay
	consumer *Consumer
	queue    queue.Queue
	running  atomic.Bool
}

// NewPipeline registers the relay on bus and prepares a consumer that routes
// through transport. Call Run to start consuming.
func NewPipeline(db *gorm.DB, bus *events.Bus, q queue.Queue, transport Transport) (*Pipeline, error) {
	switch {
	case db == nil:
		return nil, errors.New("notifications: database handle is required")
	case bus == nil:
		return nil, errors.New("notifications: event bus is required")
	case q == nil:
		return nil, errors.New("notifications: queue is required")
	case transport == nil:
		return nil, errors.New("notifications: transport is required")
	}

	store := NewGormStore(db)
	relay := NewRelay(q, store)
	if err := relay.Register(bus); err != nil {
		return nil, err
	}

	return &Pipeline{
		relay:    relay,
		consumer: NewConsumer(store, NewRouter(transport)),
		queue:    q,
	}, nil
}

// Relay exposes the relay for manual resends.
func (p *Pipeline) Relay() *Relay {
	return p.relay
}

// Run consumes the queue until ctx is done.
func (p *Pipeline) Run(ctx context.Context) error {
	p.running.Store(true)
	defer p.running.Store(false)
	return p.consumer.Run(ctx, p.queue)
}

// Consuming reports whether Run is active.
func (p *Pipeline) Consuming() bool {
	return p.running.Load()
}
