package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/ec-order-core/internal/model"
)

// MemoryOrderStore keeps orders in process memory. The mutex gives each
// ConditionalUpdate the same single-document atomicity a database provides.
type MemoryOrderStore struct {
	mu     sync.RWMutex
	orders map[string]*model.Order
}

func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{orders: make(map[string]*model.Order)}
}

func (s *MemoryOrderStore) Create(ctx context.Context, order *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return ErrDuplicate
	}
	s.orders[order.ID] = order.Clone()
	return nil
}

func (s *MemoryOrderStore) FindByID(ctx context.Context, id string) (*model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o.Clone(), nil
}

func (s *MemoryOrderStore) FindByUserID(ctx context.Context, userID string) ([]*model.Order, error) {
	return s.filter(func(o *model.Order) bool { return o.UserID == userID }, 0), nil
}

func (s *MemoryOrderStore) FindAll(ctx context.Context) ([]*model.Order, error) {
	return s.filter(func(*model.Order) bool { return true }, 0), nil
}

func (s *MemoryOrderStore) FindByPaymentStatus(ctx context.Context, status model.PaymentStatus, updatedBefore time.Time, limit int) ([]*model.Order, error) {
	return s.filter(func(o *model.Order) bool {
		return o.PaymentDetails.Status == status && o.UpdatedAt.Before(updatedBefore)
	}, limit), nil
}

func (s *MemoryOrderStore) ConditionalUpdate(ctx context.Context, id string, match OrderMatch, patch OrderPatch) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !match.Matches(o) {
		return nil, ErrNoMatch
	}
	patch.Apply(o)
	return o.Clone(), nil
}

// filter returns matching orders newest first.
func (s *MemoryOrderStore) filter(keep func(*model.Order) bool, limit int) []*model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Order, 0)
	for _, o := range s.orders {
		if keep(o) {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// MemoryNotificationStore keeps notifications in process memory.
type MemoryNotificationStore struct {
	mu            sync.RWMutex
	notifications map[string]*model.Notification
}

func NewMemoryNotificationStore() *MemoryNotificationStore {
	return &MemoryNotificationStore{notifications: make(map[string]*model.Notification)}
}

func (s *MemoryNotificationStore) Create(ctx context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.notifications[n.ID]; exists {
		return ErrDuplicate
	}
	c := *n
	s.notifications[n.ID] = &c
	return nil
}

func (s *MemoryNotificationStore) List(ctx context.Context, unreadOnly bool) ([]*model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if unreadOnly && n.Read {
			continue
		}
		c := *n
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryNotificationStore) MarkRead(ctx context.Context, id string) (*model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	n.Read = true
	c := *n
	return &c, nil
}

func (s *MemoryNotificationStore) MarkAllRead(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed int64
	for _, n := range s.notifications {
		if !n.Read {
			n.Read = true
			changed++
		}
	}
	return changed, nil
}

func (s *MemoryNotificationStore) CountUnread(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, n := range s.notifications {
		if !n.Read {
			count++
		}
	}
	return count, nil
}
