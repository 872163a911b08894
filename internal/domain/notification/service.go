package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/ec-order-core/internal/infrastructure/store"
	"github.com/example/ec-order-core/internal/model"
)

var ErrNotFound = errors.New("notification not found")

// Service manages the admin-facing notification inbox.
type Service struct {
	store store.NotificationStore
	now   func() time.Time
}

func NewService(s store.NotificationStore) *Service {
	return &Service{
		store: s,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrderReceived records that a customer confirmed receipt of o.
func (s *Service) CreateOrderReceived(ctx context.Context, o *model.Order) (*model.Notification, error) {
	if o.ReceivedConfirmation == nil {
		return nil, fmt.Errorf("order %s has no receipt confirmation", o.ID)
	}
	rc := o.ReceivedConfirmation

	name := o.Customer.Name
	if name == "" {
		name = o.DeliveryInfo.FullName()
	}
	email := o.Customer.Email
	if email == "" {
		email = o.DeliveryInfo.Email
	}

	n := &model.Notification{
		ID:       uuid.New().String(),
		Type:     model.NotificationOrderReceived,
		OrderID:  o.ID,
		Customer: model.Customer{ID: o.UserID, Name: name, Email: email},
		Message:  receivedMessage(name, o.ID, rc),
		Note:     rc.Note,
		ConditionChecks: model.ConditionChecks{
			AllItemsReceived:     rc.AllItemsReceived,
			ItemsInGoodCondition: rc.ItemsInGoodCondition,
		},
		CreatedAt: s.now(),
	}
	if err := s.store.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to save notification: %w", err)
	}
	return n, nil
}

func receivedMessage(name, orderID string, rc *model.ReceivedConfirmation) string {
	if name == "" {
		name = "A customer"
	}
	msg := fmt.Sprintf("%s confirmed receipt of order %s", name, shortID(orderID))
	if !rc.AllItemsReceived || !rc.ItemsInGoodCondition {
		msg += " and reported a problem"
	}
	return msg
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (s *Service) List(ctx context.Context, unreadOnly bool) ([]*model.Notification, error) {
	return s.store.List(ctx, unreadOnly)
}

func (s *Service) MarkRead(ctx context.Context, id string) (*model.Notification, error) {
	n, err := s.store.MarkRead(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return n, nil
}

func (s *Service) MarkAllRead(ctx context.Context) (int64, error) {
	return s.store.MarkAllRead(ctx)
}

func (s *Service) UnreadCount(ctx context.Context) (int64, error) {
	return s.store.CountUnread(ctx)
}
