package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/example/ec-order-core/internal/infrastructure/store"
	"github.com/example/ec-order-core/internal/model"
)

// MockOrderStore wraps a real OrderStore, records calls and lets tests inject
// failures or interleave a concurrent writer before a conditional update.
type MockOrderStore struct {
	store.OrderStore

	mu sync.Mutex

	// For tracking calls in tests
	UpdateCalls []UpdateCall

	CreateErr error
	FindErr   error
	UpdateErr error
	// BeforeUpdate runs before each ConditionalUpdate reaches the wrapped
	// store. The call number starts at 1.
	BeforeUpdate func(call int, id string)
}

// UpdateCall records parameters passed to ConditionalUpdate
type UpdateCall struct {
	ID    string
	Match store.OrderMatch
	Patch store.OrderPatch
}

// NewMockOrderStore creates a MockOrderStore over inner
func NewMockOrderStore(inner store.OrderStore) *MockOrderStore {
	return &MockOrderStore{OrderStore: inner}
}

func (m *MockOrderStore) Create(ctx context.Context, order *model.Order) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	return m.OrderStore.Create(ctx, order)
}

func (m *MockOrderStore) FindByID(ctx context.Context, id string) (*model.Order, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	return m.OrderStore.FindByID(ctx, id)
}

func (m *MockOrderStore) FindByPaymentStatus(ctx context.Context, status model.PaymentStatus, updatedBefore time.Time, limit int) ([]*model.Order, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	return m.OrderStore.FindByPaymentStatus(ctx, status, updatedBefore, limit)
}

// ConditionalUpdate records the call, runs BeforeUpdate and delegates
func (m *MockOrderStore) ConditionalUpdate(ctx context.Context, id string, match store.OrderMatch, patch store.OrderPatch) (*model.Order, error) {
	m.mu.Lock()
	m.UpdateCalls = append(m.UpdateCalls, UpdateCall{ID: id, Match: match, Patch: patch})
	call := len(m.UpdateCalls)
	hook := m.BeforeUpdate
	err := m.UpdateErr
	m.mu.Unlock()

	if hook != nil {
		hook(call, id)
	}
	if err != nil {
		return nil, err
	}
	return m.OrderStore.ConditionalUpdate(ctx, id, match, patch)
}

// Updates returns the number of ConditionalUpdate calls so far
func (m *MockOrderStore) Updates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.UpdateCalls)
}
