package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/example/ec-order-core/internal/email"
	"github.com/example/ec-order-core/internal/events"
	"github.com/example/ec-order-core/internal/infrastructure/logger"
	"github.com/example/ec-order-core/internal/model"
)

// Mailer is the subset of email.Service the handler needs.
type Mailer interface {
	SendOrderConfirmation(to, name, orderID string, items []email.OrderItem, deliveryFee, total decimal.Decimal) error
	SendShippingNotice(to, name, orderID, carrier, trackingNumber string) error
	SendPaymentReceipt(to, name, orderID, reference string, amount decimal.Decimal) error
	SendReceiptAlert(to string, alert email.ReceiptAlert) error
}

// Handler processes events for sending notifications
type Handler struct {
	mailer     Mailer
	adminEmail string
	log        *logger.Logger
}

// NewHandler creates a new notification handler
func NewHandler(mailer Mailer, adminEmail string, log *logger.Logger) *Handler {
	return &Handler{
		mailer:     mailer,
		adminEmail: adminEmail,
		log:        log.Component("notifier"),
	}
}

// HandleEvent processes an event from the bus. Malformed messages are logged
// and dropped so one bad record cannot stall the consumer.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event events.Event
	if err := json.Unmarshal(value, &event); err != nil {
		h.log.Error("failed to unmarshal event", "key", string(key), "error", err)
		return nil
	}

	log := h.log.With("event_type", event.EventType, "order_id", event.AggregateID)

	var err error
	switch event.EventType {
	case events.EventOrderPlaced:
		err = h.handleOrderPlaced(event)
	case events.EventOrderStatusChanged:
		err = h.handleStatusChanged(event)
	case events.EventPaymentStatusChanged:
		err = h.handlePaymentStatusChanged(event)
	case events.EventOrderReceived:
		err = h.handleOrderReceived(event)
	default:
		return nil
	}
	if err != nil {
		log.Error("notification failed", "error", err)
		return err
	}
	return nil
}

func (h *Handler) handleOrderPlaced(event events.Event) error {
	var e events.OrderPlaced
	if err := event.Decode(&e); err != nil {
		return fmt.Errorf("decode OrderPlaced: %w", err)
	}

	items := make([]email.OrderItem, len(e.Items))
	for i, item := range e.Items {
		items[i] = email.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Size:      item.Size,
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
	}

	if err := h.mailer.SendOrderConfirmation(e.CustomerEmail, e.CustomerName, e.OrderID, items, e.DeliveryFee, e.Total); err != nil {
		return err
	}
	h.log.Info("order confirmation email sent", "order_id", e.OrderID, "to", e.CustomerEmail)
	return nil
}

func (h *Handler) handleStatusChanged(event events.Event) error {
	var e events.OrderStatusChanged
	if err := event.Decode(&e); err != nil {
		return fmt.Errorf("decode OrderStatusChanged: %w", err)
	}
	if e.To != string(model.StatusShipped) {
		return nil
	}

	if err := h.mailer.SendShippingNotice(e.CustomerEmail, e.CustomerName, e.OrderID, e.Carrier, e.TrackingNumber); err != nil {
		return err
	}
	h.log.Info("shipping notice sent", "order_id", e.OrderID, "to", e.CustomerEmail)
	return nil
}

func (h *Handler) handlePaymentStatusChanged(event events.Event) error {
	var e events.PaymentStatusChanged
	if err := event.Decode(&e); err != nil {
		return fmt.Errorf("decode PaymentStatusChanged: %w", err)
	}
	if e.Status != string(model.PaymentVerified) {
		return nil
	}

	if err := h.mailer.SendPaymentReceipt(e.CustomerEmail, e.CustomerName, e.OrderID, e.Reference, e.Amount); err != nil {
		return err
	}
	h.log.Info("payment receipt sent", "order_id", e.OrderID, "to", e.CustomerEmail)
	return nil
}

func (h *Handler) handleOrderReceived(event events.Event) error {
	var e events.OrderReceived
	if err := event.Decode(&e); err != nil {
		return fmt.Errorf("decode OrderReceived: %w", err)
	}
	if h.adminEmail == "" {
		h.log.Debug("no admin email configured, skipping receipt alert", "order_id", e.OrderID)
		return nil
	}

	alert := email.ReceiptAlert{
		OrderID:              e.OrderID,
		CustomerName:         e.CustomerName,
		CustomerEmail:        e.CustomerEmail,
		Note:                 e.Note,
		AllItemsReceived:     e.AllItemsReceived,
		ItemsInGoodCondition: e.ItemsInGoodCondition,
	}
	if err := h.mailer.SendReceiptAlert(h.adminEmail, alert); err != nil {
		return err
	}
	h.log.Info("receipt alert sent", "order_id", e.OrderID)
	return nil
}
