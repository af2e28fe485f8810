package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/charlesng35/campus/pkg/logger"
)

const (
	defaultRabbitPrefetch       = 16
	defaultRabbitConfirmTimeout = 5 * time.Second
)

var ErrPublishNacked = errors.New("queue: message was nacked by broker")

// RabbitMQConfig configures the AMQP 0-9-1 driver.
type RabbitMQConfig struct {
	URL            string
	Prefetch       int
	ConsumerTag    string
	ConfirmTimeout time.Duration
}

// amqpChannel is the subset of *amqp.Channel the driver relies on.
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	Confirm(noWait bool) error
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// RabbitMQ publishes persistent messages to a durable queue on the default
// exchange and consumes with manual acknowledgement.
type RabbitMQ struct {
	name string
	cfg  RabbitMQConfig
	conn *amqp.Connection
	log  *zap.Logger

	pubMu sync.Mutex
	pub   amqpChannel
	open  func() (amqpChannel, error)
}

// DialRabbitMQ connects, opens a confirm-mode publishing channel and declares
// the durable queue.
func DialRabbitMQ(ctx context.Context, name string, cfg RabbitMQConfig) (*RabbitMQ, error) {
	if cfg.URL == "" {
		return nil, errors.New("queue: rabbitmq requires url")
	}

	conn, err := amqp.DialConfig(cfg.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Properties: amqp.Table{
			"connection_name": "campus-notifications",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("queue: dial rabbitmq: %w", err)
	}

	q, err := newRabbitMQ(name, cfg, func() (amqpChannel, error) {
		return conn.Channel()
	})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	q.conn = conn
	return q, nil
}

func newRabbitMQ(name string, cfg RabbitMQConfig, open func() (amqpChannel, error)) (*RabbitMQ, error) {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = defaultRabbitPrefetch
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = defaultRabbitConfirmTimeout
	}

	pub, err := open()
	if err != nil {
		return nil, fmt.Errorf("queue: open publish channel: %w", err)
	}
	if err := pub.Confirm(false); err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("queue: enable publisher confirms: %w", err)
	}
	if err := declareDurable(pub, name); err != nil {
		_ = pub.Close()
		return nil, err
	}

	return &RabbitMQ{
		name: name,
		cfg:  cfg,
		pub:  pub,
		open: open,
		log:  logger.WithModule("queue.rabbitmq").With(zap.String("queue", name)),
	}, nil
}

func declareDurable(ch amqpChannel, name string) error {
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue: declare %s: %w", name, err)
	}
	return nil
}

// Publish sends m as a persistent message and waits for the broker confirm.
func (q *RabbitMQ) Publish(ctx context.Context, m Message) error {
	body, err := Encode(m)
	if err != nil {
		return err
	}

	q.pubMu.Lock()
	defer q.pubMu.Unlock()

	if q.pub == nil {
		return ErrClosed
	}

	confirm, err := q.pub.PublishWithDeferredConfirmWithContext(ctx, "", q.name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    strconv.FormatUint(m.NotificationID, 10),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("queue: publish: %w", err)
	}
	if confirm == nil {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, q.cfg.ConfirmTimeout)
	defer cancel()
	acked, err := confirm.WaitContext(waitCtx)
	if err != nil {
		return fmt.Errorf("queue: await confirm: %w", err)
	}
	if !acked {
		return ErrPublishNacked
	}
	return nil
}

// Subscribe consumes on a dedicated channel until ctx is done or the
// delivery channel closes.
func (q *RabbitMQ) Subscribe(ctx context.Context, h Handler) error {
	ch, err := q.open()
	if err != nil {
		return fmt.Errorf("queue: open consume channel: %w", err)
	}
	defer ch.Close()

	if err := declareDurable(ch, q.name); err != nil {
		return err
	}
	if err := ch.Qos(q.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("queue: set qos: %w", err)
	}

	deliveries, err := ch.Consume(q.name, q.cfg.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue: consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return ErrClosed
			}
			q.handle(ctx, h, d)
		}
	}
}

func (q *RabbitMQ) handle(ctx context.Context, h Handler, d amqp.Delivery) {
	id := d.MessageId
	if id == "" {
		id = strconv.FormatUint(d.DeliveryTag, 10)
	}

	if err := h(ctx, Delivery{ID: id, Body: d.Body, Redelivered: d.Redelivered}); err != nil {
		q.log.Warn("handler failed", zap.String("delivery_id", id), zap.Error(err))
	}
	if err := d.Ack(false); err != nil {
		q.log.Error("ack failed", zap.String("delivery_id", id), zap.Error(err))
	}
}

func (q *RabbitMQ) Close() error {
	q.pubMu.Lock()
	pub := q.pub
	q.pub = nil
	q.pubMu.Unlock()

	var err error
	if pub != nil {
		err = pub.Close()
	}
	if q.conn != nil {
		if cerr := q.conn.Close(); cerr != nil && !errors.Is(cerr, amqp.ErrClosed) && err == nil {
			err = cerr
		}
	}
	return err
}
