package notifications

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/charlesng35/campus/internal/realtime"
	"github.com/charlesng35/campus/pkg/logger"
	"github.com/charlesng35/campus/pkg/metrics"
)

// DeliveryMode is the routing decision for one message.
type DeliveryMode string

const (
	DeliveryDirect    DeliveryMode = "direct"
	DeliveryBroadcast DeliveryMode = "broadcast"
)

// Transport pushes payloads to connected clients. *realtime.Broker satisfies it.
type Transport interface {
	SendToUser(username, destination string, payload any) error
	Broadcast(destination string, payload any) error
}

// Router picks point-to-point or broadcast delivery. It keeps no state.
type Router struct {
	transport Transport
	log       *zap.Logger
}

func NewRouter(transport Transport) *Router {
	return &Router{
		transport: transport,
		log:       logger.WithModule("notifications.router"),
	}
}

// Route makes exactly one transport call. A non-empty target gets the message
// on its private queue; an empty target broadcasts it. An offline target is
// not an error.
func (r *Router) Route(ctx context.Context, msg Message, target string) (DeliveryMode, error) {
	mode := DeliveryBroadcast
	var err error
	if target != "" {
		mode = DeliveryDirect
		err = r.transport.SendToUser(target, realtime.QueueNotifications, msg)
	} else {
		err = r.transport.Broadcast(realtime.TopicNotifications, msg)
	}

	switch {
	case err == nil:
		metrics.NotificationDelivery.WithLabelValues(string(mode), "sent").Inc()
		return mode, nil
	case errors.Is(err, realtime.ErrUserOffline):
		metrics.NotificationDelivery.WithLabelValues(string(mode), "offline").Inc()
		r.log.Info("target offline, push skipped", zap.String("target", target))
		return mode, nil
	default:
		metrics.NotificationDelivery.WithLabelValues(string(mode), "failed").Inc()
		return mode, err
	}
}
