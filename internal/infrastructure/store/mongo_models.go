package store

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/example/ec-order-core/internal/model"
)

type orderDocument struct {
	ID                   primitive.ObjectID   `bson:"_id,omitempty"`
	OrderID              string               `bson:"order_id"`
	UserID               string               `bson:"user_id"`
	Customer             customerDocument     `bson:"customer"`
	Items                []itemDocument       `bson:"items"`
	DeliveryInfo         deliveryDocument     `bson:"delivery_info"`
	PaymentMethod        string               `bson:"payment_method"`
	PaymentDetails       paymentDocument      `bson:"payment_details"`
	Status               string               `bson:"status"`
	Tracking             *trackingDocument    `bson:"tracking,omitempty"`
	ReceivedConfirmation *receiptDocument     `bson:"received_confirmation,omitempty"`
	Subtotal             primitive.Decimal128 `bson:"subtotal"`
	DeliveryFee          primitive.Decimal128 `bson:"delivery_fee"`
	Total                primitive.Decimal128 `bson:"total"`
	CreatedAt            time.Time            `bson:"created_at"`
	UpdatedAt            time.Time            `bson:"updated_at"`
}

type customerDocument struct {
	ID    string `bson:"id"`
	Email string `bson:"email,omitempty"`
	Name  string `bson:"name,omitempty"`
}

type itemDocument struct {
	ProductID string               `bson:"product_id"`
	Name      string               `bson:"name"`
	Size      string               `bson:"size"`
	Color     string               `bson:"color"`
	Quantity  int                  `bson:"quantity"`
	UnitPrice primitive.Decimal128 `bson:"unit_price"`
	Image     string               `bson:"image,omitempty"`
}

type deliveryDocument struct {
	FirstName string `bson:"first_name"`
	LastName  string `bson:"last_name"`
	Email     string `bson:"email"`
	Phone     string `bson:"phone"`
	Street    string `bson:"street"`
	City      string `bson:"city"`
	State     string `bson:"state,omitempty"`
	ZipCode   string `bson:"zip_code"`
	Country   string `bson:"country"`
}

type paymentDocument struct {
	Status      string     `bson:"status"`
	Method      string     `bson:"method,omitempty"`
	Reference   string     `bson:"reference,omitempty"`
	CheckoutURL string     `bson:"checkout_url,omitempty"`
	InitiatedAt *time.Time `bson:"initiated_at,omitempty"`
	CompletedAt *time.Time `bson:"completed_at,omitempty"`
	VerifiedAt  *time.Time `bson:"verified_at,omitempty"`
	FailedAt    *time.Time `bson:"failed_at,omitempty"`
	Error       string     `bson:"error,omitempty"`
}

type trackingDocument struct {
	Carrier        string    `bson:"carrier"`
	TrackingNumber string    `bson:"tracking_number"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

type receiptDocument struct {
	Confirmed            bool      `bson:"confirmed"`
	ConfirmedAt          time.Time `bson:"confirmed_at"`
	Note                 string    `bson:"note,omitempty"`
	AllItemsReceived     bool      `bson:"all_items_received"`
	ItemsInGoodCondition bool      `bson:"items_in_good_condition"`
}

type notificationDocument struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	NotificationID  string             `bson:"notification_id"`
	Type            string             `bson:"type"`
	OrderID         string             `bson:"order_id"`
	Customer        customerDocument   `bson:"customer"`
	Message         string             `bson:"message"`
	Note            string             `bson:"note,omitempty"`
	ConditionChecks conditionDocument  `bson:"condition_checks"`
	Read            bool               `bson:"read"`
	CreatedAt       time.Time          `bson:"created_at"`
}

type conditionDocument struct {
	AllItemsReceived     bool `bson:"all_items_received"`
	ItemsInGoodCondition bool `bson:"items_in_good_condition"`
}

// paymentFieldNames maps payment patch fields to their document keys.
var paymentFieldNames = map[string]string{
	"status":      "status",
	"method":      "method",
	"reference":   "reference",
	"checkoutUrl": "checkout_url",
	"error":       "error",
	"initiatedAt": "initiated_at",
	"completedAt": "completed_at",
	"verifiedAt":  "verified_at",
	"failedAt":    "failed_at",
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.StringFixed(2))
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("failed to convert %s to decimal128: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(d primitive.Decimal128) decimal.Decimal {
	v, err := decimal.NewFromString(d.String())
	if err != nil {
		return decimal.Zero
	}
	return v
}

func toOrderDocument(o *model.Order) (*orderDocument, error) {
	subtotal, err := toDecimal128(o.Subtotal)
	if err != nil {
		return nil, err
	}
	fee, err := toDecimal128(o.DeliveryFee)
	if err != nil {
		return nil, err
	}
	total, err := toDecimal128(o.Total)
	if err != nil {
		return nil, err
	}

	doc := &orderDocument{
		OrderID:       o.ID,
		UserID:        o.UserID,
		Customer:      customerDocument(o.Customer),
		Items:         make([]itemDocument, len(o.Items)),
		DeliveryInfo:  deliveryDocument(o.DeliveryInfo),
		PaymentMethod: string(o.PaymentMethod),
		PaymentDetails: paymentDocument{
			Status:      string(o.PaymentDetails.Status),
			Method:      o.PaymentDetails.Method,
			Reference:   o.PaymentDetails.Reference,
			CheckoutURL: o.PaymentDetails.CheckoutURL,
			InitiatedAt: o.PaymentDetails.InitiatedAt,
			CompletedAt: o.PaymentDetails.CompletedAt,
			VerifiedAt:  o.PaymentDetails.VerifiedAt,
			FailedAt:    o.PaymentDetails.FailedAt,
			Error:       o.PaymentDetails.Error,
		},
		Status:      string(o.Status),
		Subtotal:    subtotal,
		DeliveryFee: fee,
		Total:       total,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}

	for i, item := range o.Items {
		price, err := toDecimal128(item.UnitPrice)
		if err != nil {
			return nil, err
		}
		doc.Items[i] = itemDocument{
			ProductID: item.ProductID,
			Name:      item.Name,
			Size:      string(item.Size),
			Color:     item.Color,
			Quantity:  item.Quantity,
			UnitPrice: price,
			Image:     item.Image,
		}
	}
	if o.Tracking != nil {
		doc.Tracking = (*trackingDocument)(o.Tracking)
	}
	if o.ReceivedConfirmation != nil {
		doc.ReceivedConfirmation = (*receiptDocument)(o.ReceivedConfirmation)
	}
	return doc, nil
}

func toOrderModel(doc *orderDocument) *model.Order {
	o := &model.Order{
		ID:            doc.OrderID,
		UserID:        doc.UserID,
		Customer:      model.Customer(doc.Customer),
		Items:         make([]model.OrderItem, len(doc.Items)),
		DeliveryInfo:  model.DeliveryInfo(doc.DeliveryInfo),
		PaymentMethod: model.PaymentMethod(doc.PaymentMethod),
		PaymentDetails: model.PaymentDetails{
			Status:      model.PaymentStatus(doc.PaymentDetails.Status),
			Method:      doc.PaymentDetails.Method,
			Reference:   doc.PaymentDetails.Reference,
			CheckoutURL: doc.PaymentDetails.CheckoutURL,
			InitiatedAt: doc.PaymentDetails.InitiatedAt,
			CompletedAt: doc.PaymentDetails.CompletedAt,
			VerifiedAt:  doc.PaymentDetails.VerifiedAt,
			FailedAt:    doc.PaymentDetails.FailedAt,
			Error:       doc.PaymentDetails.Error,
		},
		Status:      model.Status(doc.Status),
		Subtotal:    fromDecimal128(doc.Subtotal),
		DeliveryFee: fromDecimal128(doc.DeliveryFee),
		Total:       fromDecimal128(doc.Total),
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}

	for i, item := range doc.Items {
		o.Items[i] = model.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Size:      model.Size(item.Size),
			Color:     item.Color,
			Quantity:  item.Quantity,
			UnitPrice: fromDecimal128(item.UnitPrice),
			Image:     item.Image,
		}
	}
	if doc.Tracking != nil {
		o.Tracking = (*model.Tracking)(doc.Tracking)
	}
	if doc.ReceivedConfirmation != nil {
		o.ReceivedConfirmation = (*model.ReceivedConfirmation)(doc.ReceivedConfirmation)
	}
	return o
}

func toNotificationDocument(n *model.Notification) *notificationDocument {
	return &notificationDocument{
		NotificationID:  n.ID,
		Type:            n.Type,
		OrderID:         n.OrderID,
		Customer:        customerDocument(n.Customer),
		Message:         n.Message,
		Note:            n.Note,
		ConditionChecks: conditionDocument(n.ConditionChecks),
		Read:            n.Read,
		CreatedAt:       n.CreatedAt,
	}
}

func toNotificationModel(doc *notificationDocument) *model.Notification {
	return &model.Notification{
		ID:              doc.NotificationID,
		Type:            doc.Type,
		OrderID:         doc.OrderID,
		Customer:        model.Customer(doc.Customer),
		Message:         doc.Message,
		Note:            doc.Note,
		ConditionChecks: model.ConditionChecks(doc.ConditionChecks),
		Read:            doc.Read,
		CreatedAt:       doc.CreatedAt,
	}
}
