package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/ec-order-core/internal/events"
	"github.com/example/ec-order-core/internal/infrastructure/chapa"
	"github.com/example/ec-order-core/internal/infrastructure/logger"
	"github.com/example/ec-order-core/internal/infrastructure/store"
	"github.com/example/ec-order-core/internal/model"
)

const MethodChapa = "chapa"

// Gateway is the external payment provider.
type Gateway interface {
	Initialize(ctx context.Context, req chapa.InitializeRequest) (*chapa.InitializeResult, error)
	Verify(ctx context.Context, txRef string) (*chapa.Verification, error)
}

// EventEmitter publishes domain events without blocking the caller.
type EventEmitter interface {
	Emit(ctx context.Context, orderID, eventType string, payload any)
}

type Config struct {
	Currency    string
	CallbackURL string
	ReturnURL   string
}

// Outcome classifies how a callback was reconciled. Unverified means the
// payment is completed but the gateway did not confirm it yet; the reconciler
// retries it later. Duplicate means another delivery already handled it.
type Outcome string

const (
	OutcomeVerified   Outcome = "verified"
	OutcomeFailed     Outcome = "failed"
	OutcomeUnverified Outcome = "unverified"
	OutcomeDuplicate  Outcome = "duplicate"
)

// CallbackResult reports a reconciliation. StatusChanged is set when
// verification moved the order to processing.
type CallbackResult struct {
	Outcome       Outcome
	Order         *model.Order
	StatusChanged bool
}

type InitiateResult struct {
	CheckoutURL string
	Order       *model.Order
}

type Service struct {
	store   store.OrderStore
	gateway Gateway
	events  EventEmitter
	cfg     Config
	log     *logger.Logger
	now     func() time.Time
}

func NewService(s store.OrderStore, gateway Gateway, emitter EventEmitter, cfg Config, log *logger.Logger) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "ETB"
	}
	return &Service{
		store:   s,
		gateway: gateway,
		events:  emitter,
		cfg:     cfg,
		log:     log.Component("payment"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ============================================
// Initiation
// ============================================

// Initiate opens a gateway checkout for a pending online order. The order id
// is the transaction reference. At most one caller gets past the
// pending -> initiated update, so the gateway is called once per order.
func (s *Service) Initiate(ctx context.Context, orderID string, actor model.Actor) (*InitiateResult, error) {
	o, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(o.UserID) {
		return nil, ErrForbidden
	}
	if err := checkPayable(o); err != nil {
		return nil, err
	}

	now := s.now()
	initiated := model.PaymentInitiated
	method := MethodChapa
	_, err = s.store.ConditionalUpdate(ctx, orderID,
		store.OrderMatch{
			StatusIn:        []model.Status{model.StatusPending},
			PaymentStatusIn: []model.PaymentStatus{model.PaymentPending},
		},
		store.OrderPatch{
			Payment:   &store.PaymentPatch{Status: &initiated, Method: &method, InitiatedAt: &now},
			UpdatedAt: now,
		},
	)
	if err != nil {
		if errors.Is(err, store.ErrNoMatch) {
			return nil, ErrAlreadyProcessing
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to mark payment initiated: %w", err)
	}

	res, err := s.gateway.Initialize(ctx, s.initializeRequest(o))
	if err != nil {
		s.markFailed(ctx, orderID, err)
		return nil, &GatewayError{Op: "initialize", Err: err}
	}

	reference := orderID
	checkoutURL := res.CheckoutURL
	updated, err := s.store.ConditionalUpdate(ctx, orderID,
		store.OrderMatch{PaymentStatusIn: []model.PaymentStatus{model.PaymentInitiated}},
		store.OrderPatch{
			Payment:   &store.PaymentPatch{Reference: &reference, CheckoutURL: &checkoutURL},
			UpdatedAt: s.now(),
		},
	)
	if err != nil {
		// A fast callback may already have moved the payment on; the
		// checkout URL is still valid for the customer.
		s.log.Warn("failed to record checkout url", "order_id", orderID, "error", err)
		updated = o
	}

	s.log.Info("payment initiated", "order_id", orderID, "amount", o.Total.StringFixed(2))
	s.emitPayment(ctx, updated)
	return &InitiateResult{CheckoutURL: checkoutURL, Order: updated}, nil
}

func checkPayable(o *model.Order) error {
	switch {
	case o.PaymentMethod != model.PaymentOnline:
		return fmt.Errorf("%w: payment method is %s", ErrOrderNotPayable, o.PaymentMethod)
	case o.Status != model.StatusPending:
		return fmt.Errorf("%w: order is %s", ErrOrderNotPayable, o.Status)
	case o.PaymentDetails.Status != model.PaymentPending:
		return fmt.Errorf("%w: payment is %s", ErrOrderNotPayable, o.PaymentDetails.Status)
	case !o.Total.IsPositive():
		return fmt.Errorf("%w: total must be positive", ErrOrderNotPayable)
	}
	return nil
}

func (s *Service) initializeRequest(o *model.Order) chapa.InitializeRequest {
	email := o.DeliveryInfo.Email
	if email == "" {
		email = o.Customer.Email
	}
	return chapa.InitializeRequest{
		TxRef:       o.ID,
		Amount:      o.Total,
		Currency:    s.cfg.Currency,
		Email:       email,
		FirstName:   o.DeliveryInfo.FirstName,
		LastName:    o.DeliveryInfo.LastName,
		Phone:       o.DeliveryInfo.Phone,
		CallbackURL: s.cfg.CallbackURL,
		ReturnURL:   s.cfg.ReturnURL,
	}
}

// markFailed records a failed initiation. It only logs its own errors.
func (s *Service) markFailed(ctx context.Context, orderID string, cause error) {
	now := s.now()
	failed := model.PaymentFailed
	msg := cause.Error()

	updated, err := s.store.ConditionalUpdate(context.WithoutCancel(ctx), orderID,
		store.OrderMatch{PaymentStatusIn: []model.PaymentStatus{model.PaymentInitiated}},
		store.OrderPatch{
			Payment:   &store.PaymentPatch{Status: &failed, Error: &msg, FailedAt: &now},
			UpdatedAt: now,
		},
	)
	if err != nil {
		s.log.Error("failed to record payment failure", "order_id", orderID, "cause", cause, "error", err)
		return
	}
	s.log.Warn("payment initiation failed", "order_id", orderID, "error", cause)
	s.emitPayment(ctx, updated)
}

// ============================================
// Callback reconciliation
// ============================================

// HandleCallback reconciles a gateway notification. Every write is
// conditional on the expected pre-state, so replays and out-of-order
// deliveries are detected and dropped. A non-success status is only recorded
// once the gateway confirms the failure.
func (s *Service) HandleCallback(ctx context.Context, txRef, externalStatus string) (*CallbackResult, error) {
	txRef = strings.TrimSpace(txRef)
	if txRef == "" {
		return nil, fmt.Errorf("%w: empty transaction reference", ErrNotFound)
	}
	log := s.log.With("order_id", txRef, "external_status", externalStatus)

	success := strings.EqualFold(strings.TrimSpace(externalStatus), chapa.StatusSuccess)
	if !success {
		res, confirmed, err := s.confirmFailure(ctx, txRef, log)
		if err != nil || res != nil {
			return res, err
		}
		success = confirmed
	}

	now := s.now()
	patch := &store.PaymentPatch{}
	if success {
		completed := model.PaymentCompleted
		patch.Status = &completed
		patch.CompletedAt = &now
	} else {
		failed := model.PaymentFailed
		msg := fmt.Sprintf("gateway reported status %q", externalStatus)
		patch.Status = &failed
		patch.Error = &msg
		patch.FailedAt = &now
	}

	updated, err := s.store.ConditionalUpdate(ctx, txRef,
		store.OrderMatch{PaymentStatusIn: []model.PaymentStatus{model.PaymentPending, model.PaymentInitiated}},
		store.OrderPatch{Payment: patch, UpdatedAt: now},
	)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNoMatch):
			log.Info("duplicate payment callback discarded")
			return &CallbackResult{Outcome: OutcomeDuplicate}, nil
		case errors.Is(err, store.ErrNotFound):
			log.Warn("payment callback for unknown order")
			return nil, ErrNotFound
		default:
			return nil, fmt.Errorf("failed to record payment callback: %w", err)
		}
	}
	s.emitPayment(ctx, updated)

	if !success {
		log.Warn("payment failed")
		return &CallbackResult{Outcome: OutcomeFailed, Order: updated}, nil
	}
	return s.verify(ctx, updated)
}

// confirmFailure checks a non-success callback against the gateway before
// anything is written. The callback itself carries no proof, so only a failure
// the gateway reports is recorded. A non-nil result ends the callback; otherwise
// confirmed reports whether the gateway already sees the payment as successful.
func (s *Service) confirmFailure(ctx context.Context, txRef string, log *logger.Logger) (*CallbackResult, bool, error) {
	o, err := s.find(ctx, txRef)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("payment callback for unknown order")
		}
		return nil, false, err
	}
	if o.PaymentDetails.Status != model.PaymentPending && o.PaymentDetails.Status != model.PaymentInitiated {
		log.Info("duplicate payment callback discarded", "payment_status", o.PaymentDetails.Status)
		return &CallbackResult{Outcome: OutcomeDuplicate, Order: o}, false, nil
	}

	v, err := s.gateway.Verify(ctx, txRef)
	switch {
	case err != nil:
		log.Warn("could not confirm payment failure", "error", &GatewayError{Op: "verify", Err: err})
		return &CallbackResult{Outcome: OutcomeUnverified, Order: o}, false, nil
	case v.Succeeded():
		log.Warn("gateway reports success despite failure callback")
		return nil, true, nil
	case v.Failed():
		return nil, false, nil
	default:
		log.Info("payment failure not confirmed by gateway", "verified_status", v.Status)
		return &CallbackResult{Outcome: OutcomeUnverified, Order: o}, false, nil
	}
}

// verify confirms a completed payment with the gateway and, when it checks
// out, marks it verified and moves a pending order to processing. Gateway
// problems leave the payment completed for a later sweep.
func (s *Service) verify(ctx context.Context, o *model.Order) (*CallbackResult, error) {
	log := s.log.With("order_id", o.ID)

	v, err := s.gateway.Verify(ctx, o.ID)
	if err != nil {
		log.Error("payment verification failed", "error", &GatewayError{Op: "verify", Err: err})
		return &CallbackResult{Outcome: OutcomeUnverified, Order: o}, nil
	}
	if !v.Succeeded() {
		log.Warn("gateway does not confirm payment", "verified_status", v.Status)
		return &CallbackResult{Outcome: OutcomeUnverified, Order: o}, nil
	}
	if !strings.EqualFold(strings.TrimSpace(v.Currency), s.cfg.Currency) {
		log.Error("verified currency does not match order currency",
			"verified_currency", v.Currency, "order_currency", s.cfg.Currency)
		return &CallbackResult{Outcome: OutcomeUnverified, Order: o}, nil
	}
	if !v.Amount.Round(2).Equal(o.Total.Round(2)) {
		log.Error("verified amount does not match order total",
			"verified_amount", v.Amount.StringFixed(2), "order_total", o.Total.StringFixed(2))
		return &CallbackResult{Outcome: OutcomeUnverified, Order: o}, nil
	}

	now := s.now()
	verified := model.PaymentVerified
	processing := model.StatusProcessing
	payment := &store.PaymentPatch{Status: &verified, VerifiedAt: &now}
	if v.Reference != "" {
		payment.Reference = &v.Reference
	}

	updated, err := s.store.ConditionalUpdate(ctx, o.ID,
		store.OrderMatch{
			StatusIn:        []model.Status{model.StatusPending},
			PaymentStatusIn: []model.PaymentStatus{model.PaymentCompleted},
		},
		store.OrderPatch{Status: &processing, Payment: payment, UpdatedAt: now},
	)
	if err == nil {
		log.Info("payment verified", "reference", v.Reference)
		s.emitPayment(ctx, updated)
		s.emitStatus(ctx, updated, model.StatusPending)
		return &CallbackResult{Outcome: OutcomeVerified, Order: updated, StatusChanged: true}, nil
	}
	if !errors.Is(err, store.ErrNoMatch) {
		log.Error("failed to mark payment verified", "error", err)
		return &CallbackResult{Outcome: OutcomeUnverified, Order: o}, nil
	}

	// The order left pending meanwhile (for example an admin cancelled it).
	// Record the verified payment without touching the order status.
	updated, err = s.store.ConditionalUpdate(ctx, o.ID,
		store.OrderMatch{PaymentStatusIn: []model.PaymentStatus{model.PaymentCompleted}},
		store.OrderPatch{Payment: payment, UpdatedAt: now},
	)
	switch {
	case err == nil:
		log.Warn("payment verified for an order that is no longer pending", "status", updated.Status)
		s.emitPayment(ctx, updated)
		return &CallbackResult{Outcome: OutcomeVerified, Order: updated}, nil
	case errors.Is(err, store.ErrNoMatch):
		log.Info("payment already verified by another worker")
		return &CallbackResult{Outcome: OutcomeDuplicate, Order: o}, nil
	default:
		log.Error("failed to mark payment verified", "error", err)
		return &CallbackResult{Outcome: OutcomeUnverified, Order: o}, nil
	}
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

func (s *Service) emitPayment(ctx context.Context, o *model.Order) {
	if s.events == nil || o == nil {
		return
	}
	s.events.Emit(ctx, o.ID, events.EventPaymentStatusChanged, events.NewPaymentStatusChanged(o))
}

func (s *Service) emitStatus(ctx context.Context, o *model.Order, from model.Status) {
	if s.events == nil {
		return
	}
	s.events.Emit(ctx, o.ID, events.EventOrderStatusChanged, events.NewOrderStatusChanged(o, from))
}
