package order

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/ec-order-core/internal/infrastructure/logger"
	"github.com/example/ec-order-core/internal/infrastructure/store"
	"github.com/example/ec-order-core/internal/model"
)

const (
	DefaultCarrier        = "Standard Shipping"
	DefaultTrackingNumber = "Not available"

	maxNoteLength      = 1000
	maxTransitionTries = 3
)

// CreateInput carries a checkout request. Totals are optional; when given they
// must agree with the items.
type CreateInput struct {
	Items         []model.OrderItem
	DeliveryInfo  model.DeliveryInfo
	PaymentMethod model.PaymentMethod
	Subtotal      *decimal.Decimal
	DeliveryFee   *decimal.Decimal
	Total         *decimal.Decimal
}

type TrackingInput struct {
	Carrier        string
	TrackingNumber string
}

type ReceiptInput struct {
	Note                 string
	AllItemsReceived     *bool
	ItemsInGoodCondition *bool
}

// Change is the result of a successful status transition.
type Change struct {
	Order *model.Order
	From  model.Status
}

type TrackingView struct {
	OrderID  string          `json:"orderId"`
	Status   model.Status    `json:"status"`
	Tracking *model.Tracking `json:"tracking,omitempty"`
}

type Service struct {
	store store.OrderStore
	log   *logger.Logger
	now   func() time.Time
}

func NewService(s store.OrderStore, log *logger.Logger) *Service {
	return &Service{
		store: s,
		log:   log.Component("order"),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// ============================================
// Creation
// ============================================

func (s *Service) Create(ctx context.Context, actor model.Actor, in CreateInput) (*model.Order, error) {
	if actor.UserID == "" {
		return nil, ErrForbidden
	}
	if err := validateDelivery(in.DeliveryInfo); err != nil {
		return nil, err
	}
	if !in.PaymentMethod.Valid() {
		return nil, validationError("invalid payment method", "paymentMethod")
	}

	items, subtotal, err := normalizeItems(in.Items)
	if err != nil {
		return nil, err
	}

	fee := decimal.Zero
	if in.DeliveryFee != nil {
		fee = in.DeliveryFee.Round(2)
	}
	if fee.IsNegative() {
		return nil, validationError("delivery fee must not be negative", "deliveryFee")
	}
	if in.Subtotal != nil && !in.Subtotal.Round(2).Equal(subtotal) {
		return nil, validationError(fmt.Sprintf("subtotal does not match items (expected %s)", subtotal.StringFixed(2)), "subtotal")
	}
	total := subtotal.Add(fee)
	if in.Total != nil && !in.Total.Round(2).Equal(total) {
		return nil, validationError(fmt.Sprintf("total does not match subtotal plus delivery fee (expected %s)", total.StringFixed(2)), "total")
	}

	email := actor.Email
	if email == "" {
		email = in.DeliveryInfo.Email
	}
	now := s.now()
	o := &model.Order{
		ID:     uuid.New().String(),
		UserID: actor.UserID,
		Customer: model.Customer{
			ID:    actor.UserID,
			Email: email,
			Name:  in.DeliveryInfo.FullName(),
		},
		Items:          items,
		DeliveryInfo:   trimDelivery(in.DeliveryInfo),
		PaymentMethod:  in.PaymentMethod,
		PaymentDetails: model.PaymentDetails{Status: model.PaymentPending},
		Status:         model.StatusPending,
		Subtotal:       subtotal,
		DeliveryFee:    fee,
		Total:          total,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	s.log.Info("order created", "order_id", o.ID, "user_id", o.UserID, "total", o.Total.StringFixed(2))
	return o, nil
}

func validateDelivery(d model.DeliveryInfo) error {
	required := []struct {
		name  string
		value string
	}{
		{"firstName", d.FirstName},
		{"lastName", d.LastName},
		{"email", d.Email},
		{"phone", d.Phone},
		{"street", d.Street},
		{"city", d.City},
		{"zipCode", d.ZipCode},
		{"country", d.Country},
	}

	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return validationError("missing required delivery fields", missing...)
	}
	return nil
}

func trimDelivery(d model.DeliveryInfo) model.DeliveryInfo {
	return model.DeliveryInfo{
		FirstName: strings.TrimSpace(d.FirstName),
		LastName:  strings.TrimSpace(d.LastName),
		Email:     strings.TrimSpace(d.Email),
		Phone:     strings.TrimSpace(d.Phone),
		Street:    strings.TrimSpace(d.Street),
		City:      strings.TrimSpace(d.City),
		State:     strings.TrimSpace(d.State),
		ZipCode:   strings.TrimSpace(d.ZipCode),
		Country:   strings.TrimSpace(d.Country),
	}
}

// normalizeItems validates line items, rounds prices to cents and returns the
// subtotal.
func normalizeItems(in []model.OrderItem) ([]model.OrderItem, decimal.Decimal, error) {
	if len(in) == 0 {
		return nil, decimal.Zero, validationError("order must have at least one item", "items")
	}

	var bad []string
	items := make([]model.OrderItem, len(in))
	subtotal := decimal.Zero
	for i, item := range in {
		field := func(name string) string { return fmt.Sprintf("items[%d].%s", i, name) }

		if strings.TrimSpace(item.ProductID) == "" {
			bad = append(bad, field("productId"))
		}
		if strings.TrimSpace(item.Name) == "" {
			bad = append(bad, field("name"))
		}
		if !item.Size.Valid() {
			bad = append(bad, field("size"))
		}
		if item.Quantity < 1 {
			bad = append(bad, field("quantity"))
		}
		if item.UnitPrice.IsNegative() {
			bad = append(bad, field("price"))
		}

		item.UnitPrice = item.UnitPrice.Round(2)
		items[i] = item
		subtotal = subtotal.Add(item.LineTotal())
	}
	if len(bad) > 0 {
		return nil, decimal.Zero, validationError("invalid order items", bad...)
	}
	return items, subtotal.Round(2), nil
}

// ============================================
// Queries
// ============================================

func (s *Service) Get(ctx context.Context, id string, actor model.Actor) (*model.Order, error) {
	o, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(o.UserID) {
		return nil, ErrForbidden
	}
	return o, nil
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]*model.Order, error) {
	orders, err := s.store.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *Service) ListAll(ctx context.Context, actor model.Actor) ([]*model.Order, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	orders, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *Service) Tracking(ctx context.Context, id string, actor model.Actor) (*TrackingView, error) {
	o, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	return &TrackingView{OrderID: o.ID, Status: o.Status, Tracking: o.Tracking}, nil
}

func (s *Service) find(ctx context.Context, id string) (*model.Order, error) {
	o, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return o, nil
}

// ============================================
// Status transitions
// ============================================

// Transition moves an order to target on behalf of an admin. The update is
// conditional on the status that was validated, so a concurrent change is
// detected and re-validated instead of overwritten.
func (s *Service) Transition(ctx context.Context, id, target string, actor model.Actor, tracking TrackingInput) (*Change, error) {
	to, ok := model.ParseStatus(strings.TrimSpace(target))
	if !ok {
		return nil, validationError(fmt.Sprintf("unknown status %q", target), "status")
	}
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	for attempt := 0; attempt < maxTransitionTries; attempt++ {
		o, err := s.find(ctx, id)
		if err != nil {
			return nil, err
		}

		allowed := adminTransitions(o.Status)
		if !slices.Contains(allowed, to) {
			return nil, &TransitionError{From: o.Status, To: to, Allowed: allowed}
		}

		now := s.now()
		patch := store.OrderPatch{Status: &to, UpdatedAt: now}
		if to == model.StatusShipped {
			patch.Tracking = shippingTracking(tracking, now)
		}

		updated, err := s.store.ConditionalUpdate(ctx, id, store.OrderMatch{StatusIn: []model.Status{o.Status}}, patch)
		switch {
		case err == nil:
			s.log.Info("order status changed", "order_id", id, "from", o.Status, "to", to, "actor", actor.UserID)
			return &Change{Order: updated, From: o.Status}, nil
		case errors.Is(err, store.ErrNoMatch):
			s.log.Debug("order changed concurrently, retrying transition", "order_id", id, "attempt", attempt+1)
			continue
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrNotFound
		default:
			return nil, fmt.Errorf("failed to update order status: %w", err)
		}
	}
	return nil, fmt.Errorf("%w: order %s is being modified concurrently", ErrInvalidState, id)
}

func shippingTracking(in TrackingInput, now time.Time) *model.Tracking {
	t := &model.Tracking{
		Carrier:        strings.TrimSpace(in.Carrier),
		TrackingNumber: strings.TrimSpace(in.TrackingNumber),
		UpdatedAt:      now,
	}
	if t.Carrier == "" {
		t.Carrier = DefaultCarrier
	}
	if t.TrackingNumber == "" {
		t.TrackingNumber = DefaultTrackingNumber
	}
	return t
}

// ============================================
// Receipt confirmation
// ============================================

// ConfirmReceived records the customer's confirmation that a delivered order
// arrived. It succeeds at most once per order.
func (s *Service) ConfirmReceived(ctx context.Context, id, userID string, in ReceiptInput) (*model.Order, error) {
	var missing []string
	if in.AllItemsReceived == nil {
		missing = append(missing, "allItemsReceived")
	}
	if in.ItemsInGoodCondition == nil {
		missing = append(missing, "itemsInGoodCondition")
	}
	if len(missing) > 0 {
		return nil, validationError("condition checks must be booleans", missing...)
	}
	note := strings.TrimSpace(in.Note)
	if utf8.RuneCountInString(note) > maxNoteLength {
		return nil, validationError(fmt.Sprintf("note must be at most %d characters", maxNoteLength), "note")
	}

	o, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkReceivable(o, userID); err != nil {
		return nil, err
	}

	now := s.now()
	received := model.StatusReceived
	unconfirmed := false
	updated, err := s.store.ConditionalUpdate(ctx, id,
		store.OrderMatch{
			StatusIn:         []model.Status{model.StatusDelivered},
			ReceiptConfirmed: &unconfirmed,
		},
		store.OrderPatch{
			Status: &received,
			ReceivedConfirmation: &model.ReceivedConfirmation{
				Confirmed:            true,
				ConfirmedAt:          now,
				Note:                 note,
				AllItemsReceived:     *in.AllItemsReceived,
				ItemsInGoodCondition: *in.ItemsInGoodCondition,
			},
			UpdatedAt: now,
		},
	)
	if err != nil {
		if errors.Is(err, store.ErrNoMatch) {
			// Lost a race with another confirmation or status change.
			current, ferr := s.find(ctx, id)
			if ferr != nil {
				return nil, ferr
			}
			if cerr := checkReceivable(current, userID); cerr != nil {
				return nil, cerr
			}
			return nil, ErrAlreadyConfirmed
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to confirm receipt: %w", err)
	}

	s.log.Info("order receipt confirmed", "order_id", id, "user_id", userID,
		"all_items_received", *in.AllItemsReceived, "items_in_good_condition", *in.ItemsInGoodCondition)
	return updated, nil
}

// checkReceivable applies the ownership and state rules of ConfirmReceived.
// A confirmed order reports ErrAlreadyConfirmed rather than ErrInvalidState
// so a double submission is recognisable as such.
func checkReceivable(o *model.Order, userID string) error {
	if o.UserID != userID {
		return ErrForbidden
	}
	if o.Confirmed() {
		return ErrAlreadyConfirmed
	}
	if o.Status != model.StatusDelivered {
		return fmt.Errorf("%w: order is %s, expected %s", ErrInvalidState, o.Status, model.StatusDelivered)
	}
	return nil
}
