package saga_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/orderly/internal/domain/inventory"
	"github.com/example/orderly/internal/domain/order"
	"github.com/example/orderly/internal/events"
	"github.com/example/orderly/internal/infrastructure/eventlog"
	"github.com/example/orderly/internal/infrastructure/idempotency"
	"github.com/example/orderly/internal/infrastructure/store"
	"github.com/example/orderly/internal/saga"
)

type fixture struct {
	log       *eventlog.MemoryLog
	inventory *inventory.Service
	orders    *order.Service
	processed *idempotency.MemorySet
	consumer  *saga.ReservationConsumer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	inv := inventory.NewService(store.NewMemoryProductStore(), logger)
	log := eventlog.NewMemoryLog(3)
	processed := idempotency.NewMemorySet()
	return &fixture{
		log:       log,
		inventory: inv,
		orders:    order.NewService(store.NewMemoryOrderStore(), logger),
		processed: processed,
		consumer:  saga.NewReservationConsumer(inv, log, processed, "inventory-service", logger),
	}
}

func (f *fixture) seed(t *testing.T, id string, stock int) {
	t.Helper()
	_, err := f.inventory.CreateProduct(context.Background(), &inventory.Product{
		ID:            id,
		Name:          "Product " + id,
		Price:         decimal.RequireFromString("20.00"),
		StockQuantity: stock,
	})
	require.NoError(t, err)
}

func (f *fixture) createOrder(t *testing.T, userID string, items ...order.Item) *order.Order {
	t.Helper()
	o, err := f.orders.Create(context.Background(), &order.Order{UserID: userID, Items: items})
	require.NoError(t, err)
	return o
}

func placedEvent(o *order.Order) events.OrderPlaced {
	items := make([]events.OrderItemPayload, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, events.OrderItemPayload{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       it.Price,
		})
	}
	return events.OrderPlaced{
		EventID:   uuid.New().String(),
		OrderID:   o.ID,
		UserID:    o.UserID,
		Items:     items,
		Timestamp: time.Now(),
	}
}

func handlePlaced(t *testing.T, f *fixture, evt events.OrderPlaced) {
	t.Helper()
	payload, err := json.Marshal(evt)
	require.NoError(t, err)
	require.NoError(t, f.consumer.Handle(context.Background(), []byte(evt.OrderID), payload))
}

func lineItem(productID string, qty int) order.Item {
	price := decimal.RequireFromString("20.00")
	return order.Item{
		ProductID:   productID,
		ProductName: "Product " + productID,
		Quantity:    qty,
		Price:       price,
		Total:       price.Mul(decimal.NewFromInt(int64(qty))),
	}
}

// ============================================
// Reservation Tests
// ============================================

func TestReservationConsumer_AllItemsReserved_PublishesConfirmed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "prod-1", 10)
	f.seed(t, "prod-2", 5)
	o := f.createOrder(t, "user-1", lineItem("prod-1", 2), lineItem("prod-2", 1))

	handlePlaced(t, f, placedEvent(o))

	p1, err := f.inventory.Get(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 2, p1.ReservedQuantity)
	p2, err := f.inventory.Get(ctx, "prod-2")
	require.NoError(t, err)
	assert.Equal(t, 1, p2.ReservedQuantity)

	confirmed := drainTopic(t, f.log, events.TopicOrderConfirmed)
	require.Len(t, confirmed, 1)
	var evt events.OrderConfirmed
	require.NoError(t, json.Unmarshal(confirmed[0], &evt))
	assert.Equal(t, o.ID, evt.OrderID)
	assert.Equal(t, "user-1", evt.UserID)
	assert.NotEmpty(t, evt.EventID)

	assert.Empty(t, drainTopic(t, f.log, events.TopicOrderFailed))
}

func TestReservationConsumer_InsufficientStock_PublishesFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "prod-1", 1)
	o := f.createOrder(t, "user-1", lineItem("prod-1", 5))

	handlePlaced(t, f, placedEvent(o))

	p, err := f.inventory.Get(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.ReservedQuantity)

	failed := drainTopic(t, f.log, events.TopicOrderFailed)
	require.Len(t, failed, 1)
	var evt events.OrderFailed
	require.NoError(t, json.Unmarshal(failed[0], &evt))
	assert.Equal(t, o.ID, evt.OrderID)
	assert.Equal(t, events.FailureInsufficientStock, evt.FailureType)
	assert.Equal(t, "Insufficient stock for product: Product prod-1.", evt.Reason)

	assert.Empty(t, drainTopic(t, f.log, events.TopicOrderConfirmed))
}

func TestReservationConsumer_PartialFailure_ReleasesReservedItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "prod-1", 10)
	f.seed(t, "prod-2", 1)
	o := f.createOrder(t, "user-1", lineItem("prod-1", 2), lineItem("prod-2", 5))

	handlePlaced(t, f, placedEvent(o))

	// The successful reservation on prod-1 was compensated.
	p1, err := f.inventory.Get(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 0, p1.ReservedQuantity)
	assert.Equal(t, 10, p1.StockQuantity)
	p2, err := f.inventory.Get(ctx, "prod-2")
	require.NoError(t, err)
	assert.Equal(t, 0, p2.ReservedQuantity)

	failed := drainTopic(t, f.log, events.TopicOrderFailed)
	require.Len(t, failed, 1)
	var evt events.OrderFailed
	require.NoError(t, json.Unmarshal(failed[0], &evt))
	assert.Equal(t, "Insufficient stock for product: Product prod-2.", evt.Reason)
}

func TestReservationConsumer_MultipleShortages_ReasonListsAll(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "prod-1", 0)
	f.seed(t, "prod-2", 0)
	o := f.createOrder(t, "user-1", lineItem("prod-1", 1), lineItem("prod-2", 1))

	handlePlaced(t, f, placedEvent(o))

	failed := drainTopic(t, f.log, events.TopicOrderFailed)
	require.Len(t, failed, 1)
	var evt events.OrderFailed
	require.NoError(t, json.Unmarshal(failed[0], &evt))
	assert.Equal(t,
		"Insufficient stock for product: Product prod-1. Insufficient stock for product: Product prod-2.",
		evt.Reason)
}

func TestReservationConsumer_DuplicateEvent_ReservesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "prod-1", 10)
	o := f.createOrder(t, "user-1", lineItem("prod-1", 2))
	evt := placedEvent(o)

	handlePlaced(t, f, evt)
	handlePlaced(t, f, evt)

	p, err := f.inventory.Get(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.ReservedQuantity)
	assert.Len(t, drainTopic(t, f.log, events.TopicOrderConfirmed), 1)
}

func TestReservationConsumer_PoisonPayload_Acknowledged(t *testing.T) {
	f := newFixture(t)

	err := f.consumer.Handle(context.Background(), []byte("key"), []byte("{not json"))

	require.NoError(t, err)
}

func TestReservationConsumer_MissingIDs_Acknowledged(t *testing.T) {
	f := newFixture(t)
	payload, err := json.Marshal(events.OrderPlaced{UserID: "user-1"})
	require.NoError(t, err)

	require.NoError(t, f.consumer.Handle(context.Background(), []byte("key"), payload))
}

// ============================================
// Propagator Tests
// ============================================

func TestStatusPropagator_Confirmed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.createOrder(t, "user-1", lineItem("prod-1", 1))
	prop := saga.NewStatusPropagator(f.orders, f.log, "order-service", zap.NewNop())

	payload, err := json.Marshal(events.NewOrderConfirmed(o.ID, o.UserID))
	require.NoError(t, err)
	require.NoError(t, prop.HandleConfirmed(ctx, []byte(o.ID), payload))

	got, err := f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, got.Status)
}

func TestStatusPropagator_Failed_RecordsReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.createOrder(t, "user-1", lineItem("prod-1", 1))
	prop := saga.NewStatusPropagator(f.orders, f.log, "order-service", zap.NewNop())

	evt := events.NewOrderFailed(o.ID, o.UserID, "Insufficient stock for product: Widget.", events.FailureInsufficientStock)
	payload, err := json.Marshal(evt)
	require.NoError(t, err)
	require.NoError(t, prop.HandleFailed(ctx, []byte(o.ID), payload))

	got, err := f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusFailed, got.Status)
	assert.Equal(t, "Insufficient stock for product: Widget.", got.FailureReason)
}

func TestStatusPropagator_IllegalTransition_Dropped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.createOrder(t, "user-1", lineItem("prod-1", 1))
	require.NoError(t, f.orders.UpdateStatus(ctx, o.ID, order.StatusFailed, "out of stock"))
	prop := saga.NewStatusPropagator(f.orders, f.log, "order-service", zap.NewNop())

	payload, err := json.Marshal(events.NewOrderConfirmed(o.ID, o.UserID))
	require.NoError(t, err)

	// A confirmed event arriving after failure must be acknowledged,
	// not retried forever.
	require.NoError(t, prop.HandleConfirmed(ctx, []byte(o.ID), payload))

	got, err := f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusFailed, got.Status)
}

func TestStatusPropagator_UnknownOrder_Dropped(t *testing.T) {
	f := newFixture(t)
	prop := saga.NewStatusPropagator(f.orders, f.log, "order-service", zap.NewNop())

	payload, err := json.Marshal(events.NewOrderConfirmed("missing", "user-1"))
	require.NoError(t, err)

	require.NoError(t, prop.HandleConfirmed(context.Background(), []byte("missing"), payload))
}

// ============================================
// End-to-End Tests
// ============================================

// The full loop: OrderPlaced through reservation to a CONFIRMED order.
func TestSaga_EndToEnd_Confirmed(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.seed(t, "prod-1", 10)
	o := f.createOrder(t, "user-1", lineItem("prod-1", 2))

	prop := saga.NewStatusPropagator(f.orders, f.log, "order-service", zap.NewNop())
	go f.consumer.Run(ctx)
	go prop.Run(ctx)

	payload, err := json.Marshal(placedEvent(o))
	require.NoError(t, err)
	require.NoError(t, f.log.Produce(ctx, events.TopicOrderPlaced, o.ID, payload))

	require.Eventually(t, func() bool {
		got, err := f.orders.Get(ctx, o.ID)
		return err == nil && got.Status == order.StatusConfirmed
	}, 2*time.Second, 5*time.Millisecond)

	p, err := f.inventory.Get(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.ReservedQuantity)
}

func TestSaga_EndToEnd_Failed(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.seed(t, "prod-1", 1)
	o := f.createOrder(t, "user-1", lineItem("prod-1", 5))

	prop := saga.NewStatusPropagator(f.orders, f.log, "order-service", zap.NewNop())
	go f.consumer.Run(ctx)
	go prop.Run(ctx)

	payload, err := json.Marshal(placedEvent(o))
	require.NoError(t, err)
	require.NoError(t, f.log.Produce(ctx, events.TopicOrderPlaced, o.ID, payload))

	require.Eventually(t, func() bool {
		got, err := f.orders.Get(ctx, o.ID)
		return err == nil && got.Status == order.StatusFailed
	}, 2*time.Second, 5*time.Millisecond)

	got, err := f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Contains(t, got.FailureReason, "Insufficient stock")
}

// drainTopic collects every record currently in a topic using a fresh
// consumer group.
func drainTopic(t *testing.T, log *eventlog.MemoryLog, topic string) [][]byte {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var payloads [][]byte
	_ = log.Subscribe(ctx, topic, "drain-"+uuid.New().String(), func(ctx context.Context, key, value []byte) error {
		payloads = append(payloads, value)
		return nil
	})
	return payloads
}
