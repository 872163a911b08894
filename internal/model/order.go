package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the fulfillment state of an order.
type Status string

const (
	StatusPending         Status = "pending"
	StatusProcessing      Status = "processing"
	StatusShipped         Status = "shipped"
	StatusDelivered       Status = "delivered"
	StatusReceived        Status = "received"
	StatusCancelled       Status = "cancelled"
	StatusReturnRequested Status = "return_requested"
	StatusReturnApproved  Status = "return_approved"
	StatusReturnRejected  Status = "return_rejected"
)

// Statuses lists every order status in lifecycle order.
var Statuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusShipped,
	StatusDelivered,
	StatusReceived,
	StatusCancelled,
	StatusReturnRequested,
	StatusReturnApproved,
	StatusReturnRejected,
}

// ParseStatus returns the status named by s, or false if s is not a known status.
func ParseStatus(s string) (Status, bool) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// PaymentStatus is the state of the external payment for an order.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentInitiated PaymentStatus = "initiated"
	PaymentCompleted PaymentStatus = "completed"
	PaymentVerified  PaymentStatus = "verified"
	PaymentFailed    PaymentStatus = "failed"
)

// PaymentMethod is how the customer pays for an order.
type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentOnline         PaymentMethod = "online_payment"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCashOnDelivery || m == PaymentOnline
}

// Size is a garment size.
type Size string

const (
	SizeXS  Size = "XS"
	SizeS   Size = "S"
	SizeM   Size = "M"
	SizeL   Size = "L"
	SizeXL  Size = "XL"
	SizeXXL Size = "XXL"
)

func (s Size) Valid() bool {
	switch s {
	case SizeXS, SizeS, SizeM, SizeL, SizeXL, SizeXXL:
		return true
	}
	return false
}

type OrderItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Size      Size            `json:"size"`
	Color     string          `json:"color"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
}

// LineTotal is quantity times unit price.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// DeliveryInfo is the shipping contact captured when the order was placed.
type DeliveryInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state,omitempty"`
	ZipCode   string `json:"zipCode"`
	Country   string `json:"country"`
}

func (d DeliveryInfo) FullName() string {
	switch {
	case d.FirstName == "":
		return d.LastName
	case d.LastName == "":
		return d.FirstName
	}
	return d.FirstName + " " + d.LastName
}

// Customer is a snapshot of the ordering user.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

type PaymentDetails struct {
	Status      PaymentStatus `json:"status"`
	Method      string        `json:"method,omitempty"`
	Reference   string        `json:"reference,omitempty"`
	CheckoutURL string        `json:"checkoutUrl,omitempty"`
	InitiatedAt *time.Time    `json:"initiatedAt,omitempty"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
	VerifiedAt  *time.Time    `json:"verifiedAt,omitempty"`
	FailedAt    *time.Time    `json:"failedAt,omitempty"`
	Error       string        `json:"error,omitempty"`
}

type Tracking struct {
	Carrier        string    `json:"carrier"`
	TrackingNumber string    `json:"trackingNumber"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type ReceivedConfirmation struct {
	Confirmed            bool      `json:"confirmed"`
	ConfirmedAt          time.Time `json:"confirmedAt"`
	Note                 string    `json:"note,omitempty"`
	AllItemsReceived     bool      `json:"allItemsReceived"`
	ItemsInGoodCondition bool      `json:"itemsInGoodCondition"`
}

type Order struct {
	ID                   string                `json:"id"`
	UserID               string                `json:"userId"`
	Customer             Customer              `json:"user"`
	Items                []OrderItem           `json:"items"`
	DeliveryInfo         DeliveryInfo          `json:"deliveryInfo"`
	PaymentMethod        PaymentMethod         `json:"paymentMethod"`
	PaymentDetails       PaymentDetails        `json:"paymentDetails"`
	Status               Status                `json:"status"`
	Tracking             *Tracking             `json:"tracking,omitempty"`
	ReceivedConfirmation *ReceivedConfirmation `json:"receivedConfirmation,omitempty"`
	Subtotal             decimal.Decimal       `json:"subtotal"`
	DeliveryFee          decimal.Decimal       `json:"deliveryFee"`
	Total                decimal.Decimal       `json:"total"`
	CreatedAt            time.Time             `json:"createdAt"`
	UpdatedAt            time.Time             `json:"updatedAt"`
}

// Confirmed reports whether the customer has already confirmed receipt.
func (o *Order) Confirmed() bool {
	return o.ReceivedConfirmation != nil && o.ReceivedConfirmation.Confirmed
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = append([]OrderItem(nil), o.Items...)
	c.PaymentDetails = o.PaymentDetails.clone()
	if o.Tracking != nil {
		t := *o.Tracking
		c.Tracking = &t
	}
	if o.ReceivedConfirmation != nil {
		r := *o.ReceivedConfirmation
		c.ReceivedConfirmation = &r
	}
	return &c
}

func (p PaymentDetails) clone() PaymentDetails {
	c := p
	c.InitiatedAt = cloneTime(p.InitiatedAt)
	c.CompletedAt = cloneTime(p.CompletedAt)
	c.VerifiedAt = cloneTime(p.VerifiedAt)
	c.FailedAt = cloneTime(p.FailedAt)
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
