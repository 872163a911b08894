package command

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-order-core/internal/domain/notification"
	"github.com/example/ec-order-core/internal/domain/order"
	"github.com/example/ec-order-core/internal/domain/payment"
	"github.com/example/ec-order-core/internal/events"
	"github.com/example/ec-order-core/internal/infrastructure/chapa"
	"github.com/example/ec-order-core/internal/infrastructure/logger"
	"github.com/example/ec-order-core/internal/infrastructure/store"
	"github.com/example/ec-order-core/internal/model"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Initialize(ctx context.Context, req chapa.InitializeRequest) (*chapa.InitializeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chapa.InitializeResult), args.Error(1)
}

func (m *MockGateway) Verify(ctx context.Context, txRef string) (*chapa.Verification, error) {
	args := m.Called(ctx, txRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chapa.Verification), args.Error(1)
}

type emitted struct {
	orderID   string
	eventType string
	payload   any
}

type recordingBus struct {
	mu     sync.Mutex
	events []emitted
}

func (b *recordingBus) Emit(ctx context.Context, orderID, eventType string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, emitted{orderID, eventType, payload})
}

func (b *recordingBus) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.eventType
	}
	return out
}

// failingNotificationStore rejects every write.
type failingNotificationStore struct {
	store.NotificationStore
}

func (failingNotificationStore) Create(ctx context.Context, n *model.Notification) error {
	return errors.New("disk full")
}

var (
	customer = model.Actor{UserID: "user-1", Email: "abebe@example.com", Role: model.RoleUser}
	admin    = model.Actor{UserID: "admin-1", Role: model.RoleAdmin}
)

type testEnv struct {
	handler       *Handler
	orders        *store.MemoryOrderStore
	notifications store.NotificationStore
	gateway       *MockGateway
	bus           *recordingBus
}

func newTestHandler() *testEnv {
	return newTestHandlerWith(store.NewMemoryNotificationStore())
}

func newTestHandlerWith(notifications store.NotificationStore) *testEnv {
	orders := store.NewMemoryOrderStore()
	gw := new(MockGateway)
	bus := &recordingBus{}
	log := logger.Nop()

	orderSvc := order.NewService(orders, log)
	paymentSvc := payment.NewService(orders, gw, bus, payment.Config{Currency: "ETB"}, log)
	notificationSvc := notification.NewService(notifications)

	return &testEnv{
		handler:       NewHandler(orderSvc, paymentSvc, notificationSvc, bus, log),
		orders:        orders,
		notifications: notifications,
		gateway:       gw,
		bus:           bus,
	}
}

func placeOrderCmd(method model.PaymentMethod) PlaceOrder {
	return PlaceOrder{
		Items: []model.OrderItem{
			{ProductID: "p-1", Name: "Habesha Kemis", Size: model.SizeM, Quantity: 2, UnitPrice: decimal.NewFromInt(50)},
		},
		DeliveryInfo: model.DeliveryInfo{
			FirstName: "Abebe",
			LastName:  "Bikila",
			Email:     "abebe@example.com",
			Phone:     "+251911000000",
			Street:    "Bole Road",
			City:      "Addis Ababa",
			ZipCode:   "1000",
			Country:   "Ethiopia",
		},
		PaymentMethod: method,
	}
}

func boolPtr(b bool) *bool { return &b }

// deliver walks an order through the admin transitions up to delivered.
func (e *testEnv) deliver(t *testing.T, orderID string) {
	t.Helper()
	for _, s := range []string{"processing", "shipped", "delivered"} {
		_, err := e.handler.UpdateOrderStatus(context.Background(), admin, UpdateOrderStatus{OrderID: orderID, Status: s})
		require.NoError(t, err)
	}
}

// ============================================
// Place Order Tests
// ============================================

func TestHandler_PlaceOrder_Success(t *testing.T) {
	env := newTestHandler()

	o, err := env.handler.PlaceOrder(context.Background(), customer, placeOrderCmd(model.PaymentCashOnDelivery))

	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, o.Status)
	assert.Equal(t, "100.00", o.Total.StringFixed(2))

	require.Len(t, env.bus.events, 1)
	e := env.bus.events[0]
	assert.Equal(t, events.EventOrderPlaced, e.eventType)
	assert.Equal(t, o.ID, e.orderID)
	placed := e.payload.(events.OrderPlaced)
	assert.Equal(t, "abebe@example.com", placed.CustomerEmail)
	assert.Len(t, placed.Items, 1)
}

func TestHandler_PlaceOrder_ValidationNoEvent(t *testing.T) {
	env := newTestHandler()
	cmd := placeOrderCmd(model.PaymentCashOnDelivery)
	cmd.Items = nil

	o, err := env.handler.PlaceOrder(context.Background(), customer, cmd)

	assert.ErrorIs(t, err, order.ErrValidation)
	assert.Nil(t, o)
	assert.Empty(t, env.bus.events)
}

// ============================================
// Update Status Tests
// ============================================

func TestHandler_UpdateOrderStatus_EmitsChange(t *testing.T) {
	env := newTestHandler()
	o, err := env.handler.PlaceOrder(context.Background(), customer, placeOrderCmd(model.PaymentCashOnDelivery))
	require.NoError(t, err)

	updated, err := env.handler.UpdateOrderStatus(context.Background(), admin, UpdateOrderStatus{OrderID: o.ID, Status: "processing"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, updated.Status)

	updated, err = env.handler.UpdateOrderStatus(context.Background(), admin, UpdateOrderStatus{
		OrderID: o.ID, Status: "shipped", Carrier: "EMS", TrackingNumber: "ET123",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{events.EventOrderPlaced, events.EventOrderStatusChanged, events.EventOrderStatusChanged}, env.bus.types())
	changed := env.bus.events[2].payload.(events.OrderStatusChanged)
	assert.Equal(t, "processing", changed.From)
	assert.Equal(t, "shipped", changed.To)
	assert.Equal(t, "EMS", changed.Carrier)
	assert.Equal(t, "ET123", updated.Tracking.TrackingNumber)
}

func TestHandler_UpdateOrderStatus_RejectedNoEvent(t *testing.T) {
	env := newTestHandler()
	o, err := env.handler.PlaceOrder(context.Background(), customer, placeOrderCmd(model.PaymentCashOnDelivery))
	require.NoError(t, err)

	_, err = env.handler.UpdateOrderStatus(context.Background(), admin, UpdateOrderStatus{OrderID: o.ID, Status: "delivered"})
	assert.ErrorIs(t, err, order.ErrInvalidTransition)

	_, err = env.handler.UpdateOrderStatus(context.Background(), customer, UpdateOrderStatus{OrderID: o.ID, Status: "cancelled"})
	assert.ErrorIs(t, err, order.ErrForbidden)

	assert.Equal(t, []string{events.EventOrderPlaced}, env.bus.types())
}

// ============================================
// Confirm Received Tests
// ============================================

func TestHandler_ConfirmReceived_CreatesNotification(t *testing.T) {
	env := newTestHandler()
	o, err := env.handler.PlaceOrder(context.Background(), customer, placeOrderCmd(model.PaymentCashOnDelivery))
	require.NoError(t, err)
	env.deliver(t, o.ID)

	received, err := env.handler.ConfirmReceived(context.Background(), customer, ConfirmReceived{
		OrderID:              o.ID,
		Note:                 "all good",
		AllItemsReceived:     boolPtr(true),
		ItemsInGoodCondition: boolPtr(true),
	})

	require.NoError(t, err)
	assert.Equal(t, model.StatusReceived, received.Status)

	list, err := env.notifications.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, o.ID, list[0].OrderID)
	assert.Equal(t, "all good", list[0].Note)

	types := env.bus.types()
	assert.Equal(t, events.EventOrderReceived, types[len(types)-1])
}

func TestHandler_ConfirmReceived_NotificationFailureIgnored(t *testing.T) {
	env := newTestHandlerWith(failingNotificationStore{})
	o, err := env.handler.PlaceOrder(context.Background(), customer, placeOrderCmd(model.PaymentCashOnDelivery))
	require.NoError(t, err)
	env.deliver(t, o.ID)

	received, err := env.handler.ConfirmReceived(context.Background(), customer, ConfirmReceived{
		OrderID:              o.ID,
		AllItemsReceived:     boolPtr(true),
		ItemsInGoodCondition: boolPtr(false),
	})

	require.NoError(t, err)
	assert.Equal(t, model.StatusReceived, received.Status)
	types := env.bus.types()
	assert.Equal(t, events.EventOrderReceived, types[len(types)-1])
}

func TestHandler_ConfirmReceived_SecondCallRejected(t *testing.T) {
	env := newTestHandler()
	o, err := env.handler.PlaceOrder(context.Background(), customer, placeOrderCmd(model.PaymentCashOnDelivery))
	require.NoError(t, err)
	env.deliver(t, o.ID)
	cmd := ConfirmReceived{OrderID: o.ID, AllItemsReceived: boolPtr(true), ItemsInGoodCondition: boolPtr(true)}

	_, err = env.handler.ConfirmReceived(context.Background(), customer, cmd)
	require.NoError(t, err)
	_, err = env.handler.ConfirmReceived(context.Background(), customer, cmd)

	assert.ErrorIs(t, err, order.ErrAlreadyConfirmed)
	list, err := env.notifications.List(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// ============================================
// Payment Tests
// ============================================

func TestHandler_Payment_InitiateThenCallback(t *testing.T) {
	env := newTestHandler()
	o, err := env.handler.PlaceOrder(context.Background(), customer, placeOrderCmd(model.PaymentOnline))
	require.NoError(t, err)

	env.gateway.On("Initialize", mock.Anything, mock.MatchedBy(func(r chapa.InitializeRequest) bool {
		return r.TxRef == o.ID && r.Amount.Equal(decimal.NewFromInt(100))
	})).Return(&chapa.InitializeResult{CheckoutURL: "https://checkout.example/abc"}, nil)
	env.gateway.On("Verify", mock.Anything, o.ID).Return(&chapa.Verification{
		TxRef: o.ID, Status: chapa.StatusSuccess, Amount: decimal.NewFromInt(100), Currency: "ETB",
	}, nil)

	res, err := env.handler.InitiatePayment(context.Background(), customer, InitiatePayment{OrderID: o.ID})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/abc", res.CheckoutURL)

	cb, err := env.handler.HandlePaymentCallback(context.Background(), PaymentCallback{TxRef: o.ID, Status: "success"})
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeVerified, cb.Outcome)

	stored, err := env.orders.FindByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, stored.Status)
	assert.Equal(t, model.PaymentVerified, stored.PaymentDetails.Status)
}

// ============================================
// Notification Tests
// ============================================

func TestHandler_MarkNotificationRead(t *testing.T) {
	env := newTestHandler()
	o, err := env.handler.PlaceOrder(context.Background(), customer, placeOrderCmd(model.PaymentCashOnDelivery))
	require.NoError(t, err)
	env.deliver(t, o.ID)
	_, err = env.handler.ConfirmReceived(context.Background(), customer, ConfirmReceived{
		OrderID: o.ID, AllItemsReceived: boolPtr(true), ItemsInGoodCondition: boolPtr(true),
	})
	require.NoError(t, err)
	list, err := env.notifications.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, list, 1)

	n, err := env.handler.MarkNotificationRead(context.Background(), MarkNotificationRead{NotificationID: list[0].ID})
	require.NoError(t, err)
	assert.True(t, n.Read)

	_, err = env.handler.MarkNotificationRead(context.Background(), MarkNotificationRead{NotificationID: "missing"})
	assert.ErrorIs(t, err, notification.ErrNotFound)

	count, err := env.handler.MarkAllNotificationsRead(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}
