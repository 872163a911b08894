package query

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-order-core/internal/domain/notification"
	"github.com/example/ec-order-core/internal/domain/order"
	"github.com/example/ec-order-core/internal/infrastructure/logger"
	"github.com/example/ec-order-core/internal/infrastructure/store"
	"github.com/example/ec-order-core/internal/model"
)

var (
	customer = model.Actor{UserID: "user-1", Role: model.RoleUser}
	stranger = model.Actor{UserID: "user-2", Role: model.RoleUser}
	admin    = model.Actor{UserID: "admin-1", Role: model.RoleAdmin}
)

func newTestQueryHandler() (*Handler, *store.MemoryOrderStore, *notification.Service) {
	orders := store.NewMemoryOrderStore()
	notifications := notification.NewService(store.NewMemoryNotificationStore())
	return NewHandler(order.NewService(orders, logger.Nop()), notifications), orders, notifications
}

func seed(t *testing.T, orders *store.MemoryOrderStore, id, userID string, created time.Time) *model.Order {
	t.Helper()
	o := &model.Order{
		ID:             id,
		UserID:         userID,
		Customer:       model.Customer{ID: userID, Name: "Abebe Bikila"},
		Status:         model.StatusDelivered,
		PaymentMethod:  model.PaymentCashOnDelivery,
		PaymentDetails: model.PaymentDetails{Status: model.PaymentPending},
		Total:          decimal.NewFromInt(100),
		CreatedAt:      created,
		UpdatedAt:      created,
	}
	require.NoError(t, orders.Create(context.Background(), o))
	return o
}

// ============================================
// Order Query Tests
// ============================================

func TestHandler_GetOrder_Access(t *testing.T) {
	handler, orders, _ := newTestQueryHandler()
	seed(t, orders, "order-1", customer.UserID, time.Now())

	o, err := handler.GetOrder(context.Background(), customer, "order-1")
	require.NoError(t, err)
	assert.Equal(t, "order-1", o.ID)

	_, err = handler.GetOrder(context.Background(), admin, "order-1")
	assert.NoError(t, err)

	_, err = handler.GetOrder(context.Background(), stranger, "order-1")
	assert.ErrorIs(t, err, order.ErrForbidden)

	_, err = handler.GetOrder(context.Background(), customer, "missing")
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestHandler_ListMyOrders_NewestFirst(t *testing.T) {
	handler, orders, _ := newTestQueryHandler()
	now := time.Now()
	seed(t, orders, "old", customer.UserID, now.Add(-time.Hour))
	seed(t, orders, "new", customer.UserID, now)
	seed(t, orders, "other", stranger.UserID, now)

	list, err := handler.ListMyOrders(context.Background(), customer)

	require.NoError(t, err)
	require.Equal(t, 2, list.Count)
	assert.Equal(t, "new", list.Orders[0].ID)
	assert.Equal(t, "old", list.Orders[1].ID)
}

func TestHandler_ListMyOrders_EmptyIsNotNil(t *testing.T) {
	handler, _, _ := newTestQueryHandler()

	list, err := handler.ListMyOrders(context.Background(), customer)

	require.NoError(t, err)
	assert.NotNil(t, list.Orders)
	assert.Zero(t, list.Count)
}

func TestHandler_ListAllOrders_AdminOnly(t *testing.T) {
	handler, orders, _ := newTestQueryHandler()
	seed(t, orders, "order-1", customer.UserID, time.Now())
	seed(t, orders, "order-2", stranger.UserID, time.Now())

	list, err := handler.ListAllOrders(context.Background(), admin)
	require.NoError(t, err)
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, "Abebe Bikila", list.Orders[0].Customer.Name)

	_, err = handler.ListAllOrders(context.Background(), customer)
	assert.ErrorIs(t, err, order.ErrForbidden)
}

func TestHandler_GetTracking(t *testing.T) {
	handler, orders, _ := newTestQueryHandler()
	seed(t, orders, "order-1", customer.UserID, time.Now())

	view, err := handler.GetTracking(context.Background(), customer, "order-1")

	require.NoError(t, err)
	assert.Equal(t, "order-1", view.OrderID)
	assert.Equal(t, model.StatusDelivered, view.Status)
	assert.Nil(t, view.Tracking)
}

// ============================================
// Notification Query Tests
// ============================================

func TestHandler_ListNotifications(t *testing.T) {
	handler, orders, notifications := newTestQueryHandler()
	o := seed(t, orders, "order-1", customer.UserID, time.Now())
	o.ReceivedConfirmation = &model.ReceivedConfirmation{Confirmed: true, AllItemsReceived: true, ItemsInGoodCondition: true}
	_, err := notifications.CreateOrderReceived(context.Background(), o)
	require.NoError(t, err)

	list, err := handler.ListNotifications(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, list.Notifications, 1)
	assert.Equal(t, int64(1), list.UnreadCount)

	count, err := handler.UnreadNotificationCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count.Count)
}

func TestHandler_ListNotifications_Empty(t *testing.T) {
	handler, _, _ := newTestQueryHandler()

	list, err := handler.ListNotifications(context.Background(), false)

	require.NoError(t, err)
	assert.NotNil(t, list.Notifications)
	assert.Zero(t, list.UnreadCount)
}
