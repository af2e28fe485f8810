package notifications

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/charlesng35/campus/internal/events"
	"github.com/charlesng35/campus/internal/queue"
	"github.com/charlesng35/campus/pkg/logger"
	"github.com/charlesng35/campus/pkg/metrics"
)

// Relay forwards committed notification ids to the durable queue. It runs on
// the goroutine that committed the row and never blocks the API response with
// its failures.
type Relay struct {
	publisher queue.Publisher
	store     Store
	log       *zap.Logger
}

func NewRelay(publisher queue.Publisher, store Store) *Relay {
	return &Relay{
		publisher: publisher,
		store:     store,
		log:       logger.WithModule("notifications.relay"),
	}
}

// Register subscribes the relay to notification-created events.
func (r *Relay) Register(bus *events.Bus) error {
	return bus.Subscribe(events.TypeNotificationCreated, r.Handle)
}

// Handle publishes the id carried by a NotificationCreated event.
func (r *Relay) Handle(ctx context.Context, event events.Event) error {
	created, ok := event.(events.NotificationCreated)
	if !ok {
		return fmt.Errorf("notifications: relay received %T", event)
	}
	return r.publish(ctx, created.Notification.ID)
}

// Resend re-enqueues an existing notification, for rows whose original
// publish was lost.
func (r *Relay) Resend(ctx context.Context, id uint64) error {
	if r.store != nil {
		if _, err := r.store.FindByID(ctx, id); err != nil {
			return err
		}
	}
	return r.publish(ctx, id)
}

func (r *Relay) publish(ctx context.Context, id uint64) error {
	err := r.publisher.Publish(ctx, queue.Message{NotificationID: id})
	if err == nil {
		metrics.NotificationRelay.WithLabelValues("published").Inc()
		r.log.Debug("notification enqueued", zap.Uint64("notification_id", id))
		return nil
	}

	metrics.NotificationRelay.WithLabelValues("failed").Inc()
	r.log.Error("enqueue notification failed",
		zap.Uint64("notification_id", id),
		zap.Error(err),
	)
	return &PipelineError{
		Stage:          StageRelay,
		NotificationID: id,
		Retryable:      !errors.Is(err, queue.ErrInvalidMessage),
		Err:            err,
	}
}
