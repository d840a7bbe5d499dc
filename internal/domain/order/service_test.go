package order_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/orderly/internal/domain/order"
	"github.com/example/orderly/internal/infrastructure/store"
)

func newTestOrderService() *order.Service {
	return order.NewService(store.NewMemoryOrderStore(), zap.NewNop())
}

func testOrder(userID string) *order.Order {
	return &order.Order{
		UserID: userID,
		Items: []order.Item{
			{ProductID: "prod-1", ProductName: "Widget", Quantity: 2,
				Price: decimal.RequireFromString("20.00"), Total: decimal.RequireFromString("40.00")},
		},
		Subtotal:     decimal.RequireFromString("40.00"),
		Tax:          decimal.RequireFromString("3.20"),
		ShippingCost: decimal.RequireFromString("5.99"),
		TotalAmount:  decimal.RequireFromString("49.19"),
	}
}

// ============================================
// Create Tests
// ============================================

func TestService_Create_AssignsIDAndPendingStatus(t *testing.T) {
	svc := newTestOrderService()
	ctx := context.Background()

	o, err := svc.Create(ctx, testOrder("user-1"))

	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.False(t, o.CreatedAt.IsZero())
	assert.Equal(t, o.CreatedAt, o.UpdatedAt)
}

func TestService_Create_RejectsEmptyItems(t *testing.T) {
	svc := newTestOrderService()

	_, err := svc.Create(context.Background(), &order.Order{UserID: "user-1"})

	assert.ErrorIs(t, err, order.ErrEmptyOrder)
}

func TestService_Get_NotFound(t *testing.T) {
	svc := newTestOrderService()

	_, err := svc.Get(context.Background(), "missing")

	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestService_ListByUser(t *testing.T) {
	svc := newTestOrderService()
	ctx := context.Background()

	_, err := svc.Create(ctx, testOrder("user-1"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, testOrder("user-1"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, testOrder("user-2"))
	require.NoError(t, err)

	orders, err := svc.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

// ============================================
// UpdateStatus Tests
// ============================================

func TestService_UpdateStatus_LegalTransition(t *testing.T) {
	svc := newTestOrderService()
	ctx := context.Background()
	o, err := svc.Create(ctx, testOrder("user-1"))
	require.NoError(t, err)

	err = svc.UpdateStatus(ctx, o.ID, order.StatusConfirmed, "")

	require.NoError(t, err)
	got, err := svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, got.Status)
}

func TestService_UpdateStatus_IllegalTransition(t *testing.T) {
	svc := newTestOrderService()
	ctx := context.Background()
	o, err := svc.Create(ctx, testOrder("user-1"))
	require.NoError(t, err)

	err = svc.UpdateStatus(ctx, o.ID, order.StatusDelivered, "")

	assert.ErrorIs(t, err, order.ErrInvalidTransition)
}

func TestService_UpdateStatus_SameStatusIsNoOp(t *testing.T) {
	svc := newTestOrderService()
	ctx := context.Background()
	o, err := svc.Create(ctx, testOrder("user-1"))
	require.NoError(t, err)
	require.NoError(t, svc.UpdateStatus(ctx, o.ID, order.StatusConfirmed, ""))

	// A duplicate status event must not error.
	err = svc.UpdateStatus(ctx, o.ID, order.StatusConfirmed, "")

	require.NoError(t, err)
}

func TestService_UpdateStatus_FailedRequiresReason(t *testing.T) {
	svc := newTestOrderService()
	ctx := context.Background()
	o, err := svc.Create(ctx, testOrder("user-1"))
	require.NoError(t, err)

	err = svc.UpdateStatus(ctx, o.ID, order.StatusFailed, "")
	assert.ErrorIs(t, err, order.ErrReasonRequired)

	err = svc.UpdateStatus(ctx, o.ID, order.StatusFailed, "insufficient stock")
	require.NoError(t, err)

	got, err := svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusFailed, got.Status)
	assert.Equal(t, "insufficient stock", got.FailureReason)
}

func TestService_UpdateStatus_TerminalIsSticky(t *testing.T) {
	svc := newTestOrderService()
	ctx := context.Background()
	o, err := svc.Create(ctx, testOrder("user-1"))
	require.NoError(t, err)
	require.NoError(t, svc.UpdateStatus(ctx, o.ID, order.StatusFailed, "out of stock"))

	err = svc.UpdateStatus(ctx, o.ID, order.StatusConfirmed, "")

	assert.ErrorIs(t, err, order.ErrInvalidTransition)
}

func TestService_CountByStatus(t *testing.T) {
	svc := newTestOrderService()
	ctx := context.Background()

	o1, err := svc.Create(ctx, testOrder("user-1"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, testOrder("user-2"))
	require.NoError(t, err)
	require.NoError(t, svc.UpdateStatus(ctx, o1.ID, order.StatusConfirmed, ""))

	pending, err := svc.CountByStatus(ctx, order.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	confirmed, err := svc.CountByStatus(ctx, order.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, 1, confirmed)
}
