package query

import (
	"context"

	"github.com/example/ec-order-core/internal/domain/notification"
	"github.com/example/ec-order-core/internal/domain/order"
	"github.com/example/ec-order-core/internal/model"
)

type Handler struct {
	orderSvc        *order.Service
	notificationSvc *notification.Service
}

func NewHandler(orderSvc *order.Service, notificationSvc *notification.Service) *Handler {
	return &Handler{orderSvc: orderSvc, notificationSvc: notificationSvc}
}

// Orders
func (h *Handler) GetOrder(ctx context.Context, actor model.Actor, id string) (*model.Order, error) {
	return h.orderSvc.Get(ctx, id, actor)
}

// ListMyOrders returns the actor's own orders, newest first.
func (h *Handler) ListMyOrders(ctx context.Context, actor model.Actor) (*OrderList, error) {
	if actor.UserID == "" {
		return nil, order.ErrForbidden
	}
	orders, err := h.orderSvc.ListByUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return newOrderList(orders), nil
}

func (h *Handler) ListAllOrders(ctx context.Context, actor model.Actor) (*OrderList, error) {
	orders, err := h.orderSvc.ListAll(ctx, actor)
	if err != nil {
		return nil, err
	}
	return newOrderList(orders), nil
}

func (h *Handler) GetTracking(ctx context.Context, actor model.Actor, id string) (*order.TrackingView, error) {
	return h.orderSvc.Tracking(ctx, id, actor)
}

// Notifications
func (h *Handler) ListNotifications(ctx context.Context, unreadOnly bool) (*NotificationList, error) {
	list, err := h.notificationSvc.List(ctx, unreadOnly)
	if err != nil {
		return nil, err
	}
	unread, err := h.notificationSvc.UnreadCount(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*model.Notification{}
	}
	return &NotificationList{Notifications: list, UnreadCount: unread}, nil
}

func (h *Handler) UnreadNotificationCount(ctx context.Context) (*UnreadCount, error) {
	n, err := h.notificationSvc.UnreadCount(ctx)
	if err != nil {
		return nil, err
	}
	return &UnreadCount{Count: n}, nil
}
