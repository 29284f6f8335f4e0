package infrastructure

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/draftea/order-saga/shared/events"
	"github.com/draftea/order-saga/shared/models"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAcknowledger struct {
	mu       sync.Mutex
	acked    []uint64
	requeued []uint64
	rejected []uint64
}

func (a *recordingAcknowledger) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *recordingAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if requeue {
		a.requeued = append(a.requeued, tag)
	} else {
		a.rejected = append(a.rejected, tag)
	}
	return nil
}

func (a *recordingAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func TestRabbitMQSubscriber_Consume(t *testing.T) {
	orderID := models.GenerateUUID()
	ok := events.NewEvent(orderID, events.ValidateOrderResultTopic, nil)
	failing := events.NewEvent(orderID, events.ValidateOrderResultTopic, nil).WithMetadata("fail", "true")

	encode := func(e *events.Event) []byte {
		body, err := e.ToJSON()
		require.NoError(t, err)
		return body
	}

	ack := &recordingAcknowledger{}
	deliveries := make(chan amqp.Delivery, 4)
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: encode(ok)}
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: encode(failing)}
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 3, Body: []byte("not json")}
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 4, Body: encode(ok), Redelivered: true}
	close(deliveries)

	var handled []*events.Event
	handler := events.EventHandlerFunc(func(ctx context.Context, e *events.Event) error {
		handled = append(handled, e)
		if e.Metadata.Has("fail") {
			return errors.New("boom")
		}
		return nil
	})

	subscriber := NewRabbitMQSubscriber(nil, "orders", "order-service", 0, zerolog.Nop())
	subscriber.consume(context.Background(), events.ValidateOrderResultTopic, deliveries, handler)

	assert.Equal(t, []uint64{1, 4}, ack.acked)
	assert.Equal(t, []uint64{2}, ack.requeued)
	assert.Equal(t, []uint64{3}, ack.rejected)

	require.Len(t, handled, 3)
	assert.Equal(t, ok.ID, handled[0].ID)
	assert.False(t, handled[0].Metadata.Has("redelivered"))
	assert.True(t, handled[2].Metadata.Has("redelivered"))
}

func TestRabbitMQSubscriber_ConsumeStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	subscriber := NewRabbitMQSubscriber(nil, "orders", "order-service", 0, zerolog.Nop())
	done := make(chan struct{})
	go func() {
		subscriber.consume(ctx, events.ValidateOrderResultTopic, make(chan amqp.Delivery), events.EventHandlerFunc(
			func(ctx context.Context, e *events.Event) error { return nil },
		))
		close(done)
	}()

	<-done
	assert.Equal(t, 10, subscriber.prefetch)
}
