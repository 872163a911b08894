package model

import "time"

const NotificationOrderReceived = "order_received"

type ConditionChecks struct {
	AllItemsReceived     bool `json:"allItemsReceived"`
	ItemsInGoodCondition bool `json:"itemsInGoodCondition"`
}

// Notification is an admin-facing record created when something needs attention.
type Notification struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	OrderID         string          `json:"orderId"`
	Customer        Customer        `json:"customer"`
	Message         string          `json:"message"`
	Note            string          `json:"note,omitempty"`
	ConditionChecks ConditionChecks `json:"conditionChecks"`
	Read            bool            `json:"read"`
	CreatedAt       time.Time       `json:"createdAt"`
}
