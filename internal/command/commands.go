package command

import (
	"github.com/shopspring/decimal"

	"github.com/example/ec-order-core/internal/model"
)

// Order Commands
type PlaceOrder struct {
	Items         []model.OrderItem   `json:"items"`
	DeliveryInfo  model.DeliveryInfo  `json:"deliveryInfo"`
	PaymentMethod model.PaymentMethod `json:"paymentMethod"`
	Subtotal      *decimal.Decimal    `json:"subtotal,omitempty"`
	DeliveryFee   *decimal.Decimal    `json:"deliveryFee,omitempty"`
	Total         *decimal.Decimal    `json:"total,omitempty"`
}

type UpdateOrderStatus struct {
	OrderID        string `json:"-"`
	Status         string `json:"status"`
	Carrier        string `json:"carrier,omitempty"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
}

// ConfirmReceived uses pointers so a missing flag can be told apart from false.
type ConfirmReceived struct {
	OrderID              string `json:"-"`
	Note                 string `json:"note,omitempty"`
	AllItemsReceived     *bool  `json:"allItemsReceived"`
	ItemsInGoodCondition *bool  `json:"itemsInGoodCondition"`
}

// Payment Commands
type InitiatePayment struct {
	OrderID string `json:"orderId"`
}

type PaymentCallback struct {
	TxRef  string
	Status string
}

// Notification Commands
type MarkNotificationRead struct {
	NotificationID string
}
