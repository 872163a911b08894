package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/ec-order-core/internal/model"
)

const AggregateOrder = "Order"

const (
	EventOrderPlaced          = "OrderPlaced"
	EventOrderStatusChanged   = "OrderStatusChanged"
	EventPaymentStatusChanged = "PaymentStatusChanged"
	EventOrderReceived        = "OrderReceived"
)

// Event is the envelope written to the bus.
type Event struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
}

// New wraps payload in an envelope for the order aggregate.
func New(orderID, eventType string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:            uuid.New().String(),
		AggregateID:   orderID,
		AggregateType: AggregateOrder,
		EventType:     eventType,
		Data:          data,
		Timestamp:     time.Now().UTC(),
	}, nil
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type OrderPlaced struct {
	OrderID       string          `json:"order_id"`
	UserID        string          `json:"user_id"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	Items         []Item          `json:"items"`
	PaymentMethod string          `json:"payment_method"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	DeliveryFee   decimal.Decimal `json:"delivery_fee"`
	Total         decimal.Decimal `json:"total"`
}

type OrderStatusChanged struct {
	OrderID        string `json:"order_id"`
	UserID         string `json:"user_id"`
	CustomerName   string `json:"customer_name"`
	CustomerEmail  string `json:"customer_email"`
	From           string `json:"from"`
	To             string `json:"to"`
	Carrier        string `json:"carrier,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`
}

type PaymentStatusChanged struct {
	OrderID       string          `json:"order_id"`
	UserID        string          `json:"user_id"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	Status        string          `json:"status"`
	Reference     string          `json:"reference,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
}

type OrderReceived struct {
	OrderID              string `json:"order_id"`
	UserID               string `json:"user_id"`
	CustomerName         string `json:"customer_name"`
	CustomerEmail        string `json:"customer_email"`
	Note                 string `json:"note,omitempty"`
	AllItemsReceived     bool   `json:"all_items_received"`
	ItemsInGoodCondition bool   `json:"items_in_good_condition"`
}

func customerOf(o *model.Order) (name, email string) {
	name = o.Customer.Name
	if name == "" {
		name = o.DeliveryInfo.FullName()
	}
	email = o.DeliveryInfo.Email
	if email == "" {
		email = o.Customer.Email
	}
	return name, email
}

func NewOrderPlaced(o *model.Order) OrderPlaced {
	name, email := customerOf(o)
	items := make([]Item, len(o.Items))
	for i, it := range o.Items {
		items[i] = Item{
			ProductID: it.ProductID,
			Name:      it.Name,
			Size:      string(it.Size),
			Quantity:  it.Quantity,
			Price:     it.UnitPrice,
		}
	}
	return OrderPlaced{
		OrderID:       o.ID,
		UserID:        o.UserID,
		CustomerName:  name,
		CustomerEmail: email,
		Items:         items,
		PaymentMethod: string(o.PaymentMethod),
		Subtotal:      o.Subtotal,
		DeliveryFee:   o.DeliveryFee,
		Total:         o.Total,
	}
}

func NewOrderStatusChanged(o *model.Order, from model.Status) OrderStatusChanged {
	name, email := customerOf(o)
	e := OrderStatusChanged{
		OrderID:       o.ID,
		UserID:        o.UserID,
		CustomerName:  name,
		CustomerEmail: email,
		From:          string(from),
		To:            string(o.Status),
	}
	if o.Tracking != nil {
		e.Carrier = o.Tracking.Carrier
		e.TrackingNumber = o.Tracking.TrackingNumber
	}
	return e
}

func NewPaymentStatusChanged(o *model.Order) PaymentStatusChanged {
	name, email := customerOf(o)
	return PaymentStatusChanged{
		OrderID:       o.ID,
		UserID:        o.UserID,
		CustomerName:  name,
		CustomerEmail: email,
		Status:        string(o.PaymentDetails.Status),
		Reference:     o.PaymentDetails.Reference,
		Amount:        o.Total,
	}
}

func NewOrderReceived(o *model.Order) OrderReceived {
	name, email := customerOf(o)
	e := OrderReceived{
		OrderID:       o.ID,
		UserID:        o.UserID,
		CustomerName:  name,
		CustomerEmail: email,
	}
	if rc := o.ReceivedConfirmation; rc != nil {
		e.Note = rc.Note
		e.AllItemsReceived = rc.AllItemsReceived
		e.ItemsInGoodCondition = rc.ItemsInGoodCondition
	}
	return e
}
