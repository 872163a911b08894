package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/ec-order-core/internal/api/middleware"
	"github.com/example/ec-order-core/internal/command"
	"github.com/example/ec-order-core/internal/domain/order"
	"github.com/example/ec-order-core/internal/infrastructure/logger"
	"github.com/example/ec-order-core/internal/model"
	"github.com/example/ec-order-core/internal/query"
)

type Handlers struct {
	cmdHandler    *command.Handler
	queryHandler  *query.Handler
	dispatcher    *CallbackDispatcher
	webhookSecret string
	log           *logger.Logger
}

func NewHandlers(cmdHandler *command.Handler, queryHandler *query.Handler, dispatcher *CallbackDispatcher, webhookSecret string, log *logger.Logger) *Handlers {
	return &Handlers{
		cmdHandler:    cmdHandler,
		queryHandler:  queryHandler,
		dispatcher:    dispatcher,
		webhookSecret: webhookSecret,
		log:           log.Component("api"),
	}
}

// actor returns the authenticated caller. Routes using it sit behind
// AuthMiddleware, so a missing actor means the router is misconfigured.
func (h *Handlers) actor(w http.ResponseWriter, r *http.Request) (model.Actor, bool) {
	a, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
	}
	return a, ok
}

// Order Handlers

func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var cmd command.PlaceOrder
	if err := decodeJSON(r, &cmd); err != nil {
		writeError(w, h.log, err)
		return
	}

	o, err := h.cmdHandler.PlaceOrder(r.Context(), actor, cmd)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

func (h *Handlers) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	list, err := h.queryHandler.ListMyOrders(r.Context(), actor)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, list.Orders)
}

func (h *Handlers) GetAllOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	list, err := h.queryHandler.ListAllOrders(r.Context(), actor)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, list.Orders)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	o, err := h.queryHandler.GetOrder(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) GetOrderTracking(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	view, err := h.queryHandler.GetTracking(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var cmd command.UpdateOrderStatus
	if err := decodeJSON(r, &cmd); err != nil {
		writeError(w, h.log, err)
		return
	}
	if cmd.Status == "" {
		writeError(w, h.log, &order.ValidationError{Message: "status is required", Fields: []string{"status"}})
		return
	}
	cmd.OrderID = chi.URLParam(r, "id")

	o, err := h.cmdHandler.UpdateOrderStatus(r.Context(), actor, cmd)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"message": "Order status updated", "order": o})
}

func (h *Handlers) ConfirmReceived(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var cmd command.ConfirmReceived
	if err := decodeJSON(r, &cmd); err != nil {
		writeError(w, h.log, err)
		return
	}
	cmd.OrderID = chi.URLParam(r, "id")

	o, err := h.cmdHandler.ConfirmReceived(r.Context(), actor, cmd)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"message": "Order receipt confirmed", "order": o})
}

// Payment Handlers

func (h *Handlers) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var cmd command.InitiatePayment
	if err := decodeJSON(r, &cmd); err != nil {
		writeError(w, h.log, err)
		return
	}
	if cmd.OrderID == "" {
		writeError(w, h.log, &order.ValidationError{Message: "orderId is required", Fields: []string{"orderId"}})
		return
	}

	res, err := h.cmdHandler.InitiatePayment(r.Context(), actor, cmd)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"checkoutUrl": res.CheckoutURL})
}

// Notification Handlers

func (h *Handlers) GetNotifications(w http.ResponseWriter, r *http.Request) {
	unreadOnly := r.URL.Query().Get("unread") == "true"
	list, err := h.queryHandler.ListNotifications(r.Context(), unreadOnly)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handlers) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.queryHandler.UnreadNotificationCount(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, count)
}

func (h *Handlers) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.cmdHandler.MarkNotificationRead(r.Context(), command.MarkNotificationRead{NotificationID: chi.URLParam(r, "id")})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, n)
}

func (h *Handlers) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.cmdHandler.MarkAllNotificationsRead(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"updated": n})
}
