package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/charlesng35/campus/pkg/logger"
)

const defaultNATSAckWait = 30 * time.Second

// NATSConfig configures the JetStream driver.
type NATSConfig struct {
	URL     string
	Stream  string
	Durable string
	AckWait time.Duration
}

// NATS stores messages in a work-queue JetStream stream and consumes them
// through a durable pull consumer.
type NATS struct {
	subject string
	stream  string
	durable string
	ackWait time.Duration

	nc  *nats.Conn
	js  jetstream.JetStream
	log *zap.Logger
}

// ConnectNATS connects and ensures the stream exists.
func ConnectNATS(ctx context.Context, subject string, cfg NATSConfig) (*NATS, error) {
	if cfg.URL == "" {
		return nil, errors.New("queue: nats requires url")
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name("campus-notifications"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("queue: connect nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("queue: jetstream context: %w", err)
	}

	q := &NATS{
		subject: subject,
		stream:  cfg.Stream,
		durable: cfg.Durable,
		ackWait: cfg.AckWait,
		nc:      nc,
		js:      js,
		log:     logger.WithModule("queue.nats").With(zap.String("subject", subject)),
	}
	if q.stream == "" {
		q.stream = streamName(subject)
	}
	if q.durable == "" {
		q.durable = streamName(subject) + "_consumer"
	}
	if q.ackWait <= 0 {
		q.ackWait = defaultNATSAckWait
	}

	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      q.stream,
		Subjects:  []string{subject},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.WorkQueuePolicy,
	}); err != nil {
		nc.Close()
		return nil, fmt.Errorf("queue: ensure stream %s: %w", q.stream, err)
	}

	return q, nil
}

// streamName maps a subject to a valid stream name; streams cannot contain dots.
func streamName(subject string) string {
	return strings.ToUpper(strings.NewReplacer(".", "_", "*", "_", ">", "_").Replace(subject))
}

func (q *NATS) Publish(ctx context.Context, m Message) error {
	body, err := Encode(m)
	if err != nil {
		return err
	}
	if _, err := q.js.Publish(ctx, q.subject, body); err != nil {
		return fmt.Errorf("queue: publish to %s: %w", q.subject, err)
	}
	return nil
}

func (q *NATS) Subscribe(ctx context.Context, h Handler) error {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, q.stream, jetstream.ConsumerConfig{
		Durable:       q.durable,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       q.ackWait,
		FilterSubject: q.subject,
	})
	if err != nil {
		return fmt.Errorf("queue: ensure consumer %s: %w", q.durable, err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		var (
			id          string
			redelivered bool
		)
		if meta, err := msg.Metadata(); err == nil {
			id = strconv.FormatUint(meta.Sequence.Stream, 10)
			redelivered = meta.NumDelivered > 1
		}

		if err := h(ctx, Delivery{ID: id, Body: msg.Data(), Redelivered: redelivered}); err != nil {
			q.log.Warn("handler failed", zap.String("delivery_id", id), zap.Error(err))
		}
		if err := msg.Ack(); err != nil {
			q.log.Error("ack failed", zap.String("delivery_id", id), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("queue: consume: %w", err)
	}
	defer cc.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-cc.Closed():
		return ErrClosed
	}
}

func (q *NATS) Close() error {
	if q.nc != nil {
		q.nc.Close()
	}
	return nil
}
