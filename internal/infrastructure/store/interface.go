package store

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/example/ec-order-core/internal/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrNoMatch   = errors.New("record does not match expected state")
	ErrDuplicate = errors.New("record already exists")
)

// OrderStore persists orders. ConditionalUpdate is the only way to mutate a
// stored order: it applies the patch atomically if and only if the stored
// document still satisfies the match.
type OrderStore interface {
	Create(ctx context.Context, order *model.Order) error
	FindByID(ctx context.Context, id string) (*model.Order, error)
	FindByUserID(ctx context.Context, userID string) ([]*model.Order, error)
	FindAll(ctx context.Context) ([]*model.Order, error)
	FindByPaymentStatus(ctx context.Context, status model.PaymentStatus, updatedBefore time.Time, limit int) ([]*model.Order, error)
	ConditionalUpdate(ctx context.Context, id string, match OrderMatch, patch OrderPatch) (*model.Order, error)
}

// NotificationStore persists admin notifications.
type NotificationStore interface {
	Create(ctx context.Context, n *model.Notification) error
	List(ctx context.Context, unreadOnly bool) ([]*model.Notification, error)
	MarkRead(ctx context.Context, id string) (*model.Notification, error)
	MarkAllRead(ctx context.Context) (int64, error)
	CountUnread(ctx context.Context) (int64, error)
}

// OrderMatch is the expected pre-state of a conditional update. Empty fields
// are not checked.
type OrderMatch struct {
	StatusIn         []model.Status
	PaymentStatusIn  []model.PaymentStatus
	ReceiptConfirmed *bool
}

// Matches reports whether o satisfies m.
func (m OrderMatch) Matches(o *model.Order) bool {
	if len(m.StatusIn) > 0 && !slices.Contains(m.StatusIn, o.Status) {
		return false
	}
	if len(m.PaymentStatusIn) > 0 && !slices.Contains(m.PaymentStatusIn, o.PaymentDetails.Status) {
		return false
	}
	if m.ReceiptConfirmed != nil && *m.ReceiptConfirmed != o.Confirmed() {
		return false
	}
	return true
}

// OrderPatch lists the fields a conditional update sets. Nil fields are left
// untouched. UpdatedAt is always written.
type OrderPatch struct {
	Status               *model.Status
	Tracking             *model.Tracking
	ReceivedConfirmation *model.ReceivedConfirmation
	Payment              *PaymentPatch
	UpdatedAt            time.Time
}

type PaymentPatch struct {
	Status      *model.PaymentStatus
	Method      *string
	Reference   *string
	CheckoutURL *string
	Error       *string
	InitiatedAt *time.Time
	CompletedAt *time.Time
	VerifiedAt  *time.Time
	FailedAt    *time.Time
}

// Apply writes the patch onto o.
func (p OrderPatch) Apply(o *model.Order) {
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.Tracking != nil {
		t := *p.Tracking
		o.Tracking = &t
	}
	if p.ReceivedConfirmation != nil {
		r := *p.ReceivedConfirmation
		o.ReceivedConfirmation = &r
	}
	if p.Payment != nil {
		p.Payment.apply(&o.PaymentDetails)
	}
	o.UpdatedAt = p.UpdatedAt
}

func (p PaymentPatch) apply(d *model.PaymentDetails) {
	if p.Status != nil {
		d.Status = *p.Status
	}
	if p.Method != nil {
		d.Method = *p.Method
	}
	if p.Reference != nil {
		d.Reference = *p.Reference
	}
	if p.CheckoutURL != nil {
		d.CheckoutURL = *p.CheckoutURL
	}
	if p.Error != nil {
		d.Error = *p.Error
	}
	if p.InitiatedAt != nil {
		d.InitiatedAt = timePtr(*p.InitiatedAt)
	}
	if p.CompletedAt != nil {
		d.CompletedAt = timePtr(*p.CompletedAt)
	}
	if p.VerifiedAt != nil {
		d.VerifiedAt = timePtr(*p.VerifiedAt)
	}
	if p.FailedAt != nil {
		d.FailedAt = timePtr(*p.FailedAt)
	}
}

// fields returns the payment sub-record fields set by the patch, keyed by
// their document name.
func (p PaymentPatch) fields() map[string]any {
	f := make(map[string]any)
	if p.Status != nil {
		f["status"] = string(*p.Status)
	}
	if p.Method != nil {
		f["method"] = *p.Method
	}
	if p.Reference != nil {
		f["reference"] = *p.Reference
	}
	if p.CheckoutURL != nil {
		f["checkoutUrl"] = *p.CheckoutURL
	}
	if p.Error != nil {
		f["error"] = *p.Error
	}
	if p.InitiatedAt != nil {
		f["initiatedAt"] = *p.InitiatedAt
	}
	if p.CompletedAt != nil {
		f["completedAt"] = *p.CompletedAt
	}
	if p.VerifiedAt != nil {
		f["verifiedAt"] = *p.VerifiedAt
	}
	if p.FailedAt != nil {
		f["failedAt"] = *p.FailedAt
	}
	return f
}

func timePtr(t time.Time) *time.Time { return &t }
