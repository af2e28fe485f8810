package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/campus/internal/events"
	"github.com/charlesng35/campus/internal/queue"
	"github.com/charlesng35/campus/internal/realtime"
	"github.com/charlesng35/campus/internal/services"
)

func TestNewPipelineRequiresDependencies(t *testing.T) {
	db := openDB(t)
	q := queue.NewMemory(1)
	transport := newFakeTransport()

	_, err := NewPipeline(nil, events.NewBus(), q, transport)
	require.Error(t, err)
	_, err = NewPipeline(db, nil, q, transport)
	require.Error(t, err)
	_, err = NewPipeline(db, events.NewBus(), nil, transport)
	require.Error(t, err)
	_, err = NewPipeline(db, events.NewBus(), q, nil)
	require.Error(t, err)
}

func TestPipelineDeliversCommittedNotification(t *testing.T) {
	db := openDB(t)
	alice := seedUser(t, db, "alice")

	bus := events.NewBus()
	q := queue.NewMemory(8)
	transport := newFakeTransport("alice")

	pipeline, err := NewPipeline(db, bus, q, transport)
	require.NoError(t, err)
	require.NotNil(t, pipeline.Relay())
	require.False(t, pipeline.Consuming())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pipeline.Run(ctx) }()
	require.Eventually(t, pipeline.Consuming, time.Second, 10*time.Millisecond)

	svc, err := services.NewNotificationService(db, bus)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), services.CreateNotificationInput{
		UserID: &alice.ID,
		Type:   "grade",
		Title:  "Grade posted",
	})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), services.CreateNotificationInput{Title: "Campus closed"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(transport.snapshot()) == 2 }, 2*time.Second, 10*time.Millisecond)
	calls := transport.snapshot()
	require.Equal(t, "user", calls[0].kind)
	require.Equal(t, "alice", calls[0].username)
	require.Equal(t, realtime.QueueNotifications, calls[0].destination)
	require.Equal(t, "Grade posted", calls[0].payload.(Message).Title)
	require.Equal(t, "broadcast", calls[1].kind)
	require.Equal(t, realtime.TopicNotifications, calls[1].destination)

	cancel()
	require.NoError(t, <-done)
	require.False(t, pipeline.Consuming())
}
