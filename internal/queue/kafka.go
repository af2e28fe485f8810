package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/charlesng35/campus/pkg/logger"
)

const defaultKafkaGroup = "campus-notifications"

// KafkaConfig configures the Kafka driver.
type KafkaConfig struct {
	Brokers []string
	GroupID string
}

// Kafka writes synchronously with acks from all in-sync replicas and reads
// through a consumer group, committing offsets after each message.
type Kafka struct {
	topic  string
	cfg    KafkaConfig
	writer *kafka.Writer
	log    *zap.Logger
}

func NewKafka(topic string, cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("queue: kafka requires at least one broker address")
	}
	if cfg.GroupID == "" {
		cfg.GroupID = defaultKafkaGroup
	}

	return &Kafka{
		topic: topic,
		cfg:   cfg,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			Async:                  false,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		},
		log: logger.WithModule("queue.kafka").With(zap.String("topic", topic)),
	}, nil
}

func (q *Kafka) Publish(ctx context.Context, m Message) error {
	body, err := Encode(m)
	if err != nil {
		return err
	}
	err = q.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(m.NotificationID, 10)),
		Value: body,
	})
	if err != nil {
		return fmt.Errorf("queue: write to %s: %w", q.topic, err)
	}
	return nil
}

func (q *Kafka) Subscribe(ctx context.Context, h Handler) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  q.cfg.Brokers,
		GroupID:  q.cfg.GroupID,
		Topic:    q.topic,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})
	defer reader.Close()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("queue: fetch: %w", err)
		}

		id := fmt.Sprintf("%d/%d", msg.Partition, msg.Offset)
		if err := h(ctx, Delivery{ID: id, Body: msg.Value}); err != nil {
			q.log.Warn("handler failed", zap.String("delivery_id", id), zap.Error(err))
		}
		if err := reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			q.log.Error("commit failed", zap.String("delivery_id", id), zap.Error(err))
		}
	}
}

func (q *Kafka) Close() error {
	return q.writer.Close()
}
