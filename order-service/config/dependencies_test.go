package config

import (
	"context"
	"testing"
	"time"

	"github.com/draftea/order-saga/order-service/application"
	"github.com/draftea/order-saga/order-service/domain"
	"github.com/draftea/order-saga/order-service/infrastructure"
	sharedinfra "github.com/draftea/order-saga/shared/infrastructure"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDependencies_InMemory(t *testing.T) {
	ctx := context.Background()
	cfg, err := ReadConfigFrom(".", "local")
	require.NoError(t, err)
	cfg.Telemetry.Enabled = false

	deps, err := BuildDependencies(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer deps.Close()

	assert.IsType(t, &infrastructure.MemoryOrderRepository{}, deps.OrderRepository)
	assert.IsType(t, &application.KeyedMutex{}, deps.Locker)
	assert.IsType(t, &sharedinfra.MemoryInbox{}, deps.Inbox)
	assert.Nil(t, deps.DB)
	assert.Nil(t, deps.InboxPurgeJob)
	require.NotNil(t, deps.ValidationSimulator)

	require.NoError(t, deps.Start(ctx))

	bus, ok := deps.EventPublisher.(*sharedinfra.MemoryBus)
	require.True(t, ok)

	order, err := deps.OrderManager.NewOrder(ctx, &application.NewOrderCommand{
		CustomerRef: "c-1",
		Lines:       []application.NewOrderLine{{UPC: "0631234200036", OrderQuantity: 3}},
	})
	require.NoError(t, err)
	require.True(t, bus.WaitTimeout(5*time.Second))

	stored, err := deps.OrderManager.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusAllocated, stored.Status())
	assert.Equal(t, 3, stored.Lines()[0].QuantityAllocated)
}

func TestBuildDependencies_FailsOnUnreachableRedis(t *testing.T) {
	cfg, err := ReadConfigFrom(".", "local")
	require.NoError(t, err)
	cfg.Telemetry.Enabled = false
	cfg.Locking.Driver = DriverRedis
	cfg.Locking.RedisAddr = "127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	deps, err := BuildDependencies(ctx, cfg, zerolog.Nop())
	assert.Error(t, err)
	assert.Nil(t, deps)
}
