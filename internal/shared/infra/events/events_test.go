package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	sharedBus "github.com/davicafu/promolab/internal/shared/infra/platform/bus"
)

type handlerFunc func(ctx context.Context, msg sharedBus.Message) error

func (f handlerFunc) HandleMessage(ctx context.Context, msg sharedBus.Message) error {
	return f(ctx, msg)
}

func TestInMemoryEventBus_DeliversPerTopic(t *testing.T) {
	bus := NewInMemoryEventBus()
	promos := bus.Subscribe("promotions", 1)
	others := bus.Subscribe("transactions", 1)

	payload := []byte(`{"a":1}`)
	err := bus.Publish(context.Background(), sharedBus.Message{Topic: "promotions", Key: "1", EventType: "promotion.applied", Payload: payload})
	require.NoError(t, err)
	payload[0] = 'X'

	select {
	case msg := <-promos:
		assert.Equal(t, "promotion.applied", msg.EventType)
		assert.Equal(t, `{"a":1}`, string(msg.Payload))
	default:
		t.Fatal("expected message on promotions topic")
	}
	assert.Len(t, others, 0)
}

func TestInMemoryEventBus_FullBufferReturnsError(t *testing.T) {
	// Arrange
	bus := NewInMemoryEventBus()
	ch := bus.Subscribe("t", 1)
	require.NoError(t, bus.Publish(context.Background(), sharedBus.Message{Topic: "t", Key: "1"}))

	// Act: el buffer ya está lleno
	err := bus.Publish(context.Background(), sharedBus.Message{Topic: "t", Key: "2"})

	// Assert: el llamante se entera de que no se entregó
	assert.ErrorIs(t, err, errSubscriberFull)
	assert.Len(t, ch, 1)
	assert.Equal(t, "1", (<-ch).Key)
}

func TestBackgroundConsumerChan_RedeliversAfterRetriesExhausted(t *testing.T) {
	// Arrange: el handler falla más veces que los intentos de una ronda
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan struct{})
	handler := handlerFunc(func(ctx context.Context, msg sharedBus.Message) error {
		if calls.Add(1) <= localRetryAttempts {
			return errors.New("caído")
		}
		close(done)
		return nil
	})

	ch := make(chan sharedBus.Message, 1)
	BackgroundConsumerChan(ctx, ch, handler, zap.NewNop())

	// Act
	ch <- sharedBus.Message{Topic: "t", Key: "1"}

	// Assert: el mensaje no se descarta, se vuelve a entregar
	select {
	case <-done:
	case <-time.After(localRedelivery + 3*time.Second):
		t.Fatal("message was dropped instead of redelivered")
	}
	assert.Equal(t, int32(localRetryAttempts+1), calls.Load())
}

func TestDeliverLocal_StopsOnCancel(t *testing.T) {
	// Arrange: handler que nunca acepta
	ctx, cancel := context.WithCancel(context.Background())
	handler := handlerFunc(func(ctx context.Context, msg sharedBus.Message) error {
		return errors.New("caído")
	})

	// Act
	result := make(chan bool, 1)
	go func() { result <- deliverLocal(ctx, sharedBus.Message{Topic: "t"}, handler, zap.NewNop()) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	// Assert
	select {
	case ok := <-result:
		assert.False(t, ok)
	case <-time.After(localRedelivery + 2*time.Second):
		t.Fatal("deliverLocal did not stop on cancel")
	}
}

func TestBackgroundConsumerChan_RetriesHandler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan struct{})
	handler := handlerFunc(func(ctx context.Context, msg sharedBus.Message) error {
		if calls.Add(1) < 2 {
			return errors.New("transient")
		}
		close(done)
		return nil
	})

	ch := make(chan sharedBus.Message, 1)
	BackgroundConsumerChan(ctx, ch, handler, zap.NewNop())
	ch <- sharedBus.Message{Topic: "t"}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not retried")
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestToBusMessage_ReadsEventTypeHeader(t *testing.T) {
	msg := toBusMessage(kafka.Message{
		Topic: "transactions",
		Key:   []byte("1001"),
		Value: []byte(`{}`),
		Headers: []kafka.Header{
			{Key: "traceparent", Value: []byte("x")},
			{Key: sharedBus.EventTypeHeader, Value: []byte("transaction.posted")},
		},
	})

	assert.Equal(t, "transactions", msg.Topic)
	assert.Equal(t, "1001", msg.Key)
	assert.Equal(t, "transaction.posted", msg.EventType)
}
