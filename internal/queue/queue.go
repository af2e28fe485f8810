// Package queue carries notification identifiers from the committing request
// to the delivery consumer over a durable broker.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DefaultName is the queue, subject or topic notification identifiers travel on.
const DefaultName = "notification.queue"

var (
	ErrClosed         = errors.New("queue: closed")
	ErrInvalidMessage = errors.New("queue: invalid message")
)

// Message is the queue payload. Only the identifier travels; consumers
// reload the row so they always see committed state.
type Message struct {
	NotificationID uint64 `json:"notification_id"`
}

// Encode renders m as its wire form.
func Encode(m Message) ([]byte, error) {
	if m.NotificationID == 0 {
		return nil, fmt.Errorf("%w: zero notification id", ErrInvalidMessage)
	}
	return json.Marshal(m)
}

// Decode parses a wire payload.
func Decode(body []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if m.NotificationID == 0 {
		return Message{}, fmt.Errorf("%w: zero notification id", ErrInvalidMessage)
	}
	return m, nil
}

// Delivery is one received payload. Drivers acknowledge it after the handler
// returns regardless of the handler's result.
type Delivery struct {
	ID          string
	Body        []byte
	Redelivered bool
}

// Handler processes a delivery. A returned error is logged by the driver.
type Handler func(ctx context.Context, d Delivery) error

type Publisher interface {
	Publish(ctx context.Context, m Message) error
}

type Subscriber interface {
	// Subscribe blocks dispatching deliveries to h until ctx is done or the
	// queue is closed.
	Subscribe(ctx context.Context, h Handler) error
}

// Queue is a driver handle.
type Queue interface {
	Publisher
	Subscriber
	Close() error
}

// Config selects and configures a driver.
type Config struct {
	Driver     string
	Name       string
	BufferSize int
	RabbitMQ   RabbitMQConfig
	NATS       NATSConfig
	Kafka      KafkaConfig
}

// Open connects the configured driver. An empty driver means memory.
func Open(ctx context.Context, cfg Config) (Queue, error) {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = DefaultName
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		return NewMemory(cfg.BufferSize), nil
	case "rabbitmq", "amqp":
		return DialRabbitMQ(ctx, name, cfg.RabbitMQ)
	case "nats", "jetstream":
		return ConnectNATS(ctx, name, cfg.NATS)
	case "kafka":
		return NewKafka(name, cfg.Kafka)
	default:
		return nil, fmt.Errorf("queue: unsupported driver %q", cfg.Driver)
	}
}
