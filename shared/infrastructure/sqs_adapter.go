package infrastructure

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/draftea/order-saga/shared/events"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var _ events.Subscriber = (*SQSSubscriberAdapter)(nil)

// SQSSubscriberAdapter exposes one SQS queue as an events.Subscriber.
// Every Subscribe call adds a route; the queue poller starts on the first.
type SQSSubscriberAdapter struct {
	mu            sync.Mutex
	sqsSubscriber *SQSEventSubscriber
	router        *TopicRouter
	queueURL      string
	logger        zerolog.Logger
	opts          []SQSSubscriberOption
}

// NewSQSSubscriberAdapter creates a new SQS subscriber adapter
func NewSQSSubscriberAdapter(queueURL string, logger zerolog.Logger, opts ...SQSSubscriberOption) (*SQSSubscriberAdapter, error) {
	if queueURL == "" {
		return nil, errors.New("sqs queue url is required")
	}

	return &SQSSubscriberAdapter{
		router:   NewTopicRouter(logger),
		queueURL: queueURL,
		logger:   logger,
		opts:     opts,
	}, nil
}

// Subscribe implements events.Subscriber interface
func (s *SQSSubscriberAdapter) Subscribe(ctx context.Context, topic events.Topic, handler events.EventHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.router.RegisterHandler(topic, handler)

	if s.sqsSubscriber != nil {
		return nil
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to load AWS config")
	}

	subscriber := NewSQSEventSubscriber(sqs.NewFromConfig(cfg), s.queueURL, s.router, s.logger, s.opts...)
	if err := subscriber.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start SQS subscriber")
	}

	s.sqsSubscriber = subscriber
	return nil
}

// Close stops the subscriber
func (s *SQSSubscriberAdapter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sqsSubscriber == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.sqsSubscriber.Stop(ctx); err != nil {
		return errors.Wrap(err, "failed to stop SQS subscriber")
	}

	s.sqsSubscriber = nil
	return nil
}
