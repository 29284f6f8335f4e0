package infrastructure

import (
	"context"
	"sync"
	"time"

	"github.com/draftea/order-saga/shared/events"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const rabbitExchangeType = "topic"

var (
	_ events.Publisher  = (*RabbitMQPublisher)(nil)
	_ events.Subscriber = (*RabbitMQSubscriber)(nil)
)

// DialRabbitMQ connects to the broker, retrying while it starts up, and
// declares the durable topic exchange every channel is routed through.
func DialRabbitMQ(url, exchange string, logger zerolog.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error

	for i := 0; i < 5; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		logger.Warn().Err(err).Int("attempt", i+1).Msg("failed to connect to rabbitmq")
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not connect to rabbitmq")
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "could not open channel")
	}
	defer ch.Close()

	err = ch.ExchangeDeclare(
		exchange,
		rabbitExchangeType,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "could not declare exchange")
	}

	return conn, nil
}

// RabbitMQPublisher publishes event envelopes with the topic as routing key
type RabbitMQPublisher struct {
	mu       sync.Mutex
	ch       *amqp.Channel
	exchange string
	logger   zerolog.Logger
}

// NewRabbitMQPublisher opens a dedicated channel for publishing
func NewRabbitMQPublisher(conn *amqp.Connection, exchange string, logger zerolog.Logger) (*RabbitMQPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "could not open publisher channel")
	}

	return &RabbitMQPublisher{
		ch:       ch,
		exchange: exchange,
		logger:   logger.With().Str("component", "rabbitmq_publisher").Logger(),
	}, nil
}

// Publish sends every event as a persistent message
func (p *RabbitMQPublisher) Publish(ctx context.Context, evts ...*events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, event := range evts {
		body, err := event.ToJSON()
		if err != nil {
			return errors.Wrapf(err, "failed to marshal event %s", event.ID)
		}

		err = p.ch.PublishWithContext(ctx,
			p.exchange,
			event.Topic.String(),
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:   "application/json",
				DeliveryMode:  amqp.Persistent,
				MessageId:     event.ID.String(),
				CorrelationId: event.CorrelationID.String(),
				Timestamp:     event.Timestamp,
				Body:          body,
			},
		)
		if err != nil {
			return errors.Wrapf(err, "failed to publish event %s to %s", event.ID, event.Topic)
		}

		p.logger.Debug().
			Str("event_id", event.ID.String()).
			Str("topic", event.Topic.String()).
			Msg("event published")
	}

	return nil
}

// Close closes the publisher channel
func (p *RabbitMQPublisher) Close() error {
	return p.ch.Close()
}

// RabbitMQSubscriber consumes from durable per-topic queues named
// "<queuePrefix>.<topic>", so replicas of the same service share the work.
type RabbitMQSubscriber struct {
	conn        *amqp.Connection
	exchange    string
	queuePrefix string
	prefetch    int
	logger      zerolog.Logger

	mu       sync.Mutex
	channels []*amqp.Channel
	wg       sync.WaitGroup
}

// NewRabbitMQSubscriber creates a subscriber bound to exchange
func NewRabbitMQSubscriber(conn *amqp.Connection, exchange, queuePrefix string, prefetch int, logger zerolog.Logger) *RabbitMQSubscriber {
	if prefetch <= 0 {
		prefetch = 10
	}
	return &RabbitMQSubscriber{
		conn:        conn,
		exchange:    exchange,
		queuePrefix: queuePrefix,
		prefetch:    prefetch,
		logger:      logger.With().Str("component", "rabbitmq_subscriber").Logger(),
	}
}

// Subscribe binds a durable queue to topic and consumes it until ctx is
// done. Messages are acked after the handler succeeds and requeued when it
// fails; undecodable messages are rejected without requeue.
func (s *RabbitMQSubscriber) Subscribe(ctx context.Context, topic events.Topic, handler events.EventHandler) error {
	ch, err := s.conn.Channel()
	if err != nil {
		return errors.Wrap(err, "could not open subscriber channel")
	}

	if err := ch.Qos(s.prefetch, 0, false); err != nil {
		ch.Close()
		return errors.Wrap(err, "could not set qos")
	}

	queueName := s.queuePrefix + "." + topic.String()
	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return errors.Wrapf(err, "could not declare queue %s", queueName)
	}

	if err := ch.QueueBind(q.Name, topic.String(), s.exchange, false, nil); err != nil {
		ch.Close()
		return errors.Wrapf(err, "could not bind queue %s", queueName)
	}

	deliveries, err := ch.Consume(
		q.Name,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return errors.Wrapf(err, "could not consume queue %s", queueName)
	}

	s.mu.Lock()
	s.channels = append(s.channels, ch)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.consume(ctx, topic, deliveries, handler)
	}()

	s.logger.Info().Str("topic", topic.String()).Str("queue", q.Name).Msg("subscribed")
	return nil
}

func (s *RabbitMQSubscriber) consume(ctx context.Context, topic events.Topic, deliveries <-chan amqp.Delivery, handler events.EventHandler) {
	logger := s.logger.With().Str("topic", topic.String()).Logger()

	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}

			event, err := events.FromJSON(d.Body)
			if err != nil {
				logger.Error().Err(err).Str("message_id", d.MessageId).Msg("dropping malformed message")
				_ = d.Reject(false)
				continue
			}
			if d.Redelivered {
				event.Metadata.Set("redelivered", "true")
			}

			if err := handler.Handle(ctx, event); err != nil {
				logger.Warn().Err(err).Str("event_id", event.ID.String()).Msg("handler failed, requeueing")
				_ = d.Nack(false, true)
				continue
			}

			if err := d.Ack(false); err != nil {
				logger.Error().Err(err).Str("event_id", event.ID.String()).Msg("ack failed")
			}
		}
	}
}

// Close closes every consumer channel and waits for the consumers to exit
func (s *RabbitMQSubscriber) Close() error {
	s.mu.Lock()
	channels := s.channels
	s.channels = nil
	s.mu.Unlock()

	var firstErr error
	for _, ch := range channels {
		if err := ch.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "failed to close subscriber channel")
		}
	}

	s.wg.Wait()
	return firstErr
}
