package notifications

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/charlesng35/campus/internal/queue"
	"github.com/charlesng35/campus/pkg/logger"
	"github.com/charlesng35/campus/pkg/metrics"
)

// Outcome is the terminal result of processing one queue message. Every
// outcome acknowledges the message.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeMissing   Outcome = "missing"
	OutcomeInvalid   Outcome = "invalid"
	OutcomeFailed    Outcome = "failed"
)

// Consumer reloads queued notifications and routes them to clients.
type Consumer struct {
	store  Store
	router *Router
	log    *zap.Logger
}

func NewConsumer(store Store, router *Router) *Consumer {
	return &Consumer{
		store:  store,
		router: router,
		log:    logger.WithModule("notifications.consumer"),
	}
}

// Run subscribes to the queue until ctx is done.
func (c *Consumer) Run(ctx context.Context, sub queue.Subscriber) error {
	err := sub.Subscribe(ctx, c.Handle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Handle adapts a raw delivery. Malformed payloads are logged and dropped.
func (c *Consumer) Handle(ctx context.Context, d queue.Delivery) error {
	msg, err := queue.Decode(d.Body)
	if err != nil {
		metrics.NotificationConsumed.WithLabelValues(string(OutcomeInvalid)).Inc()
		c.log.Warn("discarding malformed message", zap.String("delivery_id", d.ID), zap.Error(err))
		return nil
	}

	if outcome := c.Receive(ctx, msg.NotificationID); outcome == OutcomeFailed {
		return &PipelineError{Stage: StageConsume, NotificationID: msg.NotificationID, Err: errors.New("processing failed")}
	}
	return nil
}

// Receive processes one notification id. A row deleted before consumption is
// terminal. Errors and panics are recovered and reported as OutcomeFailed.
func (c *Consumer) Receive(ctx context.Context, id uint64) (outcome Outcome) {
	log := c.log.With(zap.Uint64("notification_id", id))
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while processing notification", zap.Any("panic", r))
			outcome = OutcomeFailed
		}
		metrics.NotificationConsumed.WithLabelValues(string(outcome)).Inc()
	}()

	row, err := c.store.FindByID(ctx, id)
	if errors.Is(err, ErrNotificationNotFound) {
		log.Warn("notification no longer exists, skipping")
		return OutcomeMissing
	}
	if err != nil {
		log.Error("load notification failed", zap.Error(err))
		return OutcomeFailed
	}

	target := ""
	if row.UserID != nil {
		if row.User == nil {
			log.Warn("target user no longer exists, skipping")
			return OutcomeMissing
		}
		target = row.User.Username
	}

	mode, err := c.router.Route(ctx, MessageFrom(row), target)
	if err != nil {
		log.Error("push notification failed",
			zap.String("mode", string(mode)),
			zap.Error(&PipelineError{Stage: StageTransport, NotificationID: id, Err: fmt.Errorf("route: %w", err)}),
		)
		return OutcomeFailed
	}

	log.Debug("notification delivered", zap.String("mode", string(mode)), zap.String("target", target))
	return OutcomeDelivered
}
