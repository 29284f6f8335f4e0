package config

import (
	"context"
	"fmt"

	"github.com/draftea/order-saga/order-service/application"
	"github.com/draftea/order-saga/order-service/domain"
	"github.com/draftea/order-saga/order-service/handlers"
	"github.com/draftea/order-saga/order-service/infrastructure"
	"github.com/draftea/order-saga/order-service/simulators"
	"github.com/draftea/order-saga/shared/events"
	sharedinfra "github.com/draftea/order-saga/shared/infrastructure"
	"github.com/draftea/order-saga/shared/telemetry"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

type closer struct {
	name  string
	close func() error
}

type Dependencies struct {
	// Database
	DB *sqlx.DB

	// Repositories
	OrderRepository domain.OrderRepository

	// Orchestrator
	OrderManager *application.OrderManager

	// HTTP Handlers
	OrderHandlers *handlers.OrderHandlers

	// Event Handlers
	OrderEventHandlers *handlers.OrderEventHandlers

	// Infrastructure
	EventPublisher  events.Publisher
	EventSubscriber events.Subscriber
	Locker          application.Locker
	Inbox           sharedinfra.Inbox
	InboxPurgeJob   *sharedinfra.InboxPurgeJob
	Telemetry       *telemetry.Telemetry

	// Simulated collaborators, nil unless enabled
	ValidationSimulator *simulators.ValidationService
	AllocationSimulator *simulators.AllocationService

	config  *Config
	logger  zerolog.Logger
	closers []closer
}

// BuildDependencies wires every component selected by config. On failure
// whatever was already opened is closed again.
func BuildDependencies(ctx context.Context, config *Config, logger zerolog.Logger) (deps *Dependencies, err error) {
	deps = &Dependencies{config: config, logger: logger}
	defer func() {
		if err != nil {
			deps.Close()
			deps = nil
		}
	}()

	if err := deps.buildTelemetry(ctx); err != nil {
		return deps, err
	}
	if err := deps.buildDatabase(ctx); err != nil {
		return deps, err
	}
	if err := deps.buildBroker(ctx); err != nil {
		return deps, err
	}
	if err := deps.buildLocker(ctx); err != nil {
		return deps, err
	}
	deps.buildInbox()

	// Initialize repositories
	if config.Store == DriverPostgres {
		repo := infrastructure.NewPostgresOrderRepository(deps.DB)
		if err := repo.EnsureSchema(ctx); err != nil {
			return deps, err
		}
		deps.OrderRepository = repo
	} else {
		deps.OrderRepository = infrastructure.NewMemoryOrderRepository()
	}

	// Initialize orchestrator
	deps.OrderManager = application.NewOrderManager(
		deps.OrderRepository,
		deps.EventPublisher,
		logger,
		application.WithLocker(deps.Locker),
		application.WithMaxAttempts(config.Orchestrator.MaxAttempts),
		application.WithRetryBackoff(config.Orchestrator.RetryBackoff),
		application.WithTelemetry(deps.Telemetry),
	)

	// Initialize handlers
	deps.OrderHandlers = handlers.NewOrderHandlers(deps.OrderManager, logger)
	deps.OrderEventHandlers = handlers.NewOrderEventHandlers(deps.OrderManager, logger)

	if config.Simulators.Enabled {
		deps.ValidationSimulator = simulators.NewValidationService(deps.EventPublisher, logger)
		deps.AllocationSimulator = simulators.NewAllocationService(deps.EventPublisher, logger)
	}

	return deps, nil
}

func (d *Dependencies) addCloser(name string, fn func() error) {
	d.closers = append(d.closers, closer{name: name, close: fn})
}

func (d *Dependencies) buildTelemetry(ctx context.Context) error {
	if !d.config.Telemetry.Enabled {
		return nil
	}

	cfg := telemetry.OrderServiceConfig.
		WithServiceName(d.config.ServiceName).
		WithOTLPEndpoint(d.config.Telemetry.OTLPEndpoint)

	tel, shutdown, err := telemetry.InitTelemetry(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "failed to initialize telemetry")
	}
	d.Telemetry = tel
	d.addCloser("telemetry", func() error {
		shutdown()
		return nil
	})
	return nil
}

func (d *Dependencies) buildDatabase(ctx context.Context) error {
	if !d.config.NeedsDatabase() {
		return nil
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", d.config.GetDatabaseURL())
	if err != nil {
		return errors.Wrap(err, "failed to connect to database")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return errors.Wrap(err, "failed to ping database")
	}

	d.DB = db
	d.addCloser("database", db.Close)
	return nil
}

func (d *Dependencies) buildBroker(ctx context.Context) error {
	switch d.config.Broker.Driver {
	case DriverSNS:
		publisher, err := sharedinfra.NewSNSPublisherAdapter(ctx, d.config.AWS.SNSTopicArn, d.logger)
		if err != nil {
			return errors.Wrap(err, "failed to create SNS publisher")
		}
		d.EventPublisher = publisher
		d.addCloser("event publisher", publisher.Close)

		subscriber, err := sharedinfra.NewSQSSubscriberAdapter(d.config.AWS.SQSQueueURL, d.logger,
			sharedinfra.WithWorkers(d.config.AWS.SQSWorkers),
			sharedinfra.WithReaders(d.config.AWS.SQSReaders),
		)
		if err != nil {
			return errors.Wrap(err, "failed to create SQS subscriber")
		}
		d.EventSubscriber = subscriber
		d.addCloser("event subscriber", subscriber.Close)

	case DriverRabbitMQ:
		rabbit := d.config.Broker.RabbitMQ
		conn, err := sharedinfra.DialRabbitMQ(rabbit.URL, rabbit.Exchange, d.logger)
		if err != nil {
			return err
		}
		d.addCloser("rabbitmq connection", conn.Close)

		publisher, err := sharedinfra.NewRabbitMQPublisher(conn, rabbit.Exchange, d.logger)
		if err != nil {
			return errors.Wrap(err, "failed to create RabbitMQ publisher")
		}
		d.EventPublisher = publisher
		d.addCloser("event publisher", publisher.Close)

		subscriber := sharedinfra.NewRabbitMQSubscriber(conn, rabbit.Exchange, rabbit.QueuePrefix, rabbit.Prefetch, d.logger)
		d.EventSubscriber = subscriber
		d.addCloser("event subscriber", subscriber.Close)

	default:
		bus := sharedinfra.NewMemoryBus(d.logger)
		d.EventPublisher = bus
		d.EventSubscriber = bus
		d.addCloser("memory bus", bus.Close)
	}
	return nil
}

func (d *Dependencies) buildLocker(ctx context.Context) error {
	if d.config.Locking.Driver != DriverRedis {
		d.Locker = application.NewKeyedMutex()
		return nil
	}

	client := redis.NewClient(&redis.Options{Addr: d.config.Locking.RedisAddr})
	locker := sharedinfra.NewRedisLocker(client, d.config.Locking.KeyPrefix, d.config.Locking.TTL, d.config.Locking.RetryWait, d.logger)
	d.addCloser("redis", locker.Close)

	if err := locker.Ping(ctx); err != nil {
		return errors.Wrap(err, "failed to ping redis")
	}
	d.Locker = locker
	return nil
}

func (d *Dependencies) buildInbox() {
	if d.config.Inbox.Driver != DriverPostgres {
		d.Inbox = sharedinfra.NewMemoryInbox()
		return
	}

	inbox := sharedinfra.NewPostgresInbox(d.DB)
	d.Inbox = inbox
	d.InboxPurgeJob = sharedinfra.NewInboxPurgeJob(inbox, d.config.Inbox.PurgeSchedule, d.config.Inbox.Retention, d.logger)
}

// Start subscribes the event handlers, each topic behind its own inbox
// consumer, and starts background jobs.
func (d *Dependencies) Start(ctx context.Context) error {
	if inbox, ok := d.Inbox.(*sharedinfra.PostgresInbox); ok {
		if err := inbox.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	for _, topic := range d.OrderEventHandlers.Topics() {
		consumer := d.config.ServiceName + "." + topic.String()
		handler := sharedinfra.NewIdempotentHandler(consumer, d.Inbox, d.OrderEventHandlers, d.logger,
			sharedinfra.WithSkipHook(d.recordDuplicate),
		)
		if err := d.EventSubscriber.Subscribe(ctx, topic, handler); err != nil {
			return errors.Wrapf(err, "failed to subscribe to %s", topic)
		}
	}

	if d.ValidationSimulator != nil {
		if err := simulators.Register(ctx, d.EventSubscriber, d.ValidationSimulator, d.AllocationSimulator); err != nil {
			return err
		}
		d.logger.Warn().Msg("validation and allocation simulators enabled")
	}

	if d.InboxPurgeJob != nil {
		if err := d.InboxPurgeJob.Start(); err != nil {
			return errors.Wrap(err, "failed to start inbox purge job")
		}
		d.addCloser("inbox purge job", func() error {
			d.InboxPurgeJob.Stop()
			return nil
		})
	}

	return nil
}

func (d *Dependencies) recordDuplicate(ctx context.Context, event *events.Event) {
	ctx = telemetry.WithTelemetry(ctx, d.Telemetry)
	telemetry.RecordCounter(ctx, telemetry.MessagesDuplicatedMetric, "Inbound envelopes skipped by the inbox", 1,
		attribute.String("topic", event.Topic.String()),
	)
}

// Close closes all dependencies in reverse order of creation
func (d *Dependencies) Close() error {
	var errs []error

	for i := len(d.closers) - 1; i >= 0; i-- {
		c := d.closers[i]
		if err := c.close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", c.name, err))
		}
	}
	d.closers = nil

	if len(errs) > 0 {
		return fmt.Errorf("errors closing dependencies: %v", errs)
	}

	return nil
}
