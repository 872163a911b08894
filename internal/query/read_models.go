package query

import "github.com/example/ec-order-core/internal/model"

// OrderList is the response for order listings. Orders is never nil so it
// encodes as [] rather than null.
type OrderList struct {
	Orders []*model.Order `json:"orders"`
	Count  int            `json:"count"`
}

type NotificationList struct {
	Notifications []*model.Notification `json:"notifications"`
	UnreadCount   int64                 `json:"unreadCount"`
}

type UnreadCount struct {
	Count int64 `json:"count"`
}

func newOrderList(orders []*model.Order) *OrderList {
	if orders == nil {
		orders = []*model.Order{}
	}
	return &OrderList{Orders: orders, Count: len(orders)}
}
