package queue

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/charlesng35/campus/pkg/logger"
)

const defaultMemoryBuffer = 1024

// Memory is an in-process queue. Concurrent subscribers compete for messages.
// Nothing survives a restart.
type Memory struct {
	ch     chan Delivery
	done   chan struct{}
	once   sync.Once
	seq    atomic.Uint64
	log    *zap.Logger
	closed atomic.Bool
}

func NewMemory(buffer int) *Memory {
	if buffer <= 0 {
		buffer = defaultMemoryBuffer
	}
	return &Memory{
		ch:   make(chan Delivery, buffer),
		done: make(chan struct{}),
		log:  logger.WithModule("queue.memory"),
	}
}

// Publish enqueues m, blocking while the buffer is full.
func (q *Memory) Publish(ctx context.Context, m Message) error {
	body, err := Encode(m)
	if err != nil {
		return err
	}
	if q.closed.Load() {
		return ErrClosed
	}

	d := Delivery{ID: strconv.FormatUint(q.seq.Add(1), 10), Body: body}
	select {
	case q.ch <- d:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Memory) Subscribe(ctx context.Context, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.done:
			return ErrClosed
		case d := <-q.ch:
			if err := h(ctx, d); err != nil {
				q.log.Warn("handler failed", zap.String("delivery_id", d.ID), zap.Error(err))
			}
		}
	}
}

// Len reports how many messages are waiting.
func (q *Memory) Len() int {
	return len(q.ch)
}

func (q *Memory) Close() error {
	q.once.Do(func() {
		q.closed.Store(true)
		close(q.done)
	})
	return nil
}
