package command

import (
	"context"

	"github.com/example/ec-order-core/internal/domain/notification"
	"github.com/example/ec-order-core/internal/domain/order"
	"github.com/example/ec-order-core/internal/domain/payment"
	"github.com/example/ec-order-core/internal/events"
	"github.com/example/ec-order-core/internal/infrastructure/logger"
	"github.com/example/ec-order-core/internal/model"
)

// Emitter publishes domain events without affecting the caller's outcome.
type Emitter interface {
	Emit(ctx context.Context, orderID, eventType string, payload any)
}

type Handler struct {
	orderSvc        *order.Service
	paymentSvc      *payment.Service
	notificationSvc *notification.Service
	bus             Emitter
	log             *logger.Logger
}

func NewHandler(
	orderSvc *order.Service,
	paymentSvc *payment.Service,
	notificationSvc *notification.Service,
	bus Emitter,
	log *logger.Logger,
) *Handler {
	return &Handler{
		orderSvc:        orderSvc,
		paymentSvc:      paymentSvc,
		notificationSvc: notificationSvc,
		bus:             bus,
		log:             log.Component("command"),
	}
}

// PlaceOrder creates an order and announces it (OrderPlaced).
func (h *Handler) PlaceOrder(ctx context.Context, actor model.Actor, cmd PlaceOrder) (*model.Order, error) {
	o, err := h.orderSvc.Create(ctx, actor, order.CreateInput{
		Items:         cmd.Items,
		DeliveryInfo:  cmd.DeliveryInfo,
		PaymentMethod: cmd.PaymentMethod,
		Subtotal:      cmd.Subtotal,
		DeliveryFee:   cmd.DeliveryFee,
		Total:         cmd.Total,
	})
	if err != nil {
		return nil, err
	}

	h.bus.Emit(ctx, o.ID, events.EventOrderPlaced, events.NewOrderPlaced(o))
	return o, nil
}

// UpdateOrderStatus applies an admin status transition (OrderStatusChanged).
func (h *Handler) UpdateOrderStatus(ctx context.Context, actor model.Actor, cmd UpdateOrderStatus) (*model.Order, error) {
	change, err := h.orderSvc.Transition(ctx, cmd.OrderID, cmd.Status, actor, order.TrackingInput{
		Carrier:        cmd.Carrier,
		TrackingNumber: cmd.TrackingNumber,
	})
	if err != nil {
		return nil, err
	}

	h.bus.Emit(ctx, change.Order.ID, events.EventOrderStatusChanged, events.NewOrderStatusChanged(change.Order, change.From))
	return change.Order, nil
}

// ConfirmReceived records the customer's receipt confirmation, then files an
// admin notification and emits OrderReceived. Neither follow-up can fail the
// confirmation once it is stored.
func (h *Handler) ConfirmReceived(ctx context.Context, actor model.Actor, cmd ConfirmReceived) (*model.Order, error) {
	o, err := h.orderSvc.ConfirmReceived(ctx, cmd.OrderID, actor.UserID, order.ReceiptInput{
		Note:                 cmd.Note,
		AllItemsReceived:     cmd.AllItemsReceived,
		ItemsInGoodCondition: cmd.ItemsInGoodCondition,
	})
	if err != nil {
		return nil, err
	}

	if _, err := h.notificationSvc.CreateOrderReceived(ctx, o); err != nil {
		h.log.Error("failed to create receipt notification", "order_id", o.ID, "error", err)
	}
	h.bus.Emit(ctx, o.ID, events.EventOrderReceived, events.NewOrderReceived(o))
	return o, nil
}

// InitiatePayment opens a gateway checkout for the actor's order.
func (h *Handler) InitiatePayment(ctx context.Context, actor model.Actor, cmd InitiatePayment) (*payment.InitiateResult, error) {
	return h.paymentSvc.Initiate(ctx, cmd.OrderID, actor)
}

// HandlePaymentCallback reconciles a gateway callback. Payment events are
// emitted by the payment service itself.
func (h *Handler) HandlePaymentCallback(ctx context.Context, cmd PaymentCallback) (*payment.CallbackResult, error) {
	return h.paymentSvc.HandleCallback(ctx, cmd.TxRef, cmd.Status)
}

func (h *Handler) MarkNotificationRead(ctx context.Context, cmd MarkNotificationRead) (*model.Notification, error) {
	return h.notificationSvc.MarkRead(ctx, cmd.NotificationID)
}

func (h *Handler) MarkAllNotificationsRead(ctx context.Context) (int64, error) {
	return h.notificationSvc.MarkAllRead(ctx)
}
