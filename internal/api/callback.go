package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/example/ec-order-core/internal/command"
	"github.com/example/ec-order-core/internal/domain/payment"
	"github.com/example/ec-order-core/internal/infrastructure/chapa"
	"github.com/example/ec-order-core/internal/infrastructure/logger"
)

// CallbackFunc reconciles one gateway callback.
type CallbackFunc func(ctx context.Context, cmd command.PaymentCallback) (*payment.CallbackResult, error)

// CallbackDispatcher runs callback reconciliation off the request path. Each
// job gets its own timeout and survives the request; Wait drains in-flight
// jobs during shutdown.
type CallbackDispatcher struct {
	handle  CallbackFunc
	timeout time.Duration
	log     *logger.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewCallbackDispatcher(handle CallbackFunc, timeout time.Duration, log *logger.Logger) *CallbackDispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CallbackDispatcher{handle: handle, timeout: timeout, log: log.Component("callback")}
}

// Dispatch schedules cmd and returns immediately. It reports false once the
// dispatcher is shutting down.
func (d *CallbackDispatcher) Dispatch(cmd command.PaymentCallback) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.log.Warn("dropping payment callback during shutdown", "tx_ref", cmd.TxRef)
		return false
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		res, err := d.handle(ctx, cmd)
		if err != nil {
			d.log.Error("payment callback failed", "tx_ref", cmd.TxRef, "status", cmd.Status, "error", err)
			return
		}
		d.log.Info("payment callback processed", "tx_ref", cmd.TxRef, "outcome", res.Outcome)
	}()
	return true
}

// Wait stops accepting new jobs and blocks until in-flight ones finish or
// ctx expires.
func (d *CallbackDispatcher) Wait(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type callbackPayload struct {
	TrxRef string `json:"trx_ref"`
	TxRef  string `json:"tx_ref"`
	Status string `json:"status"`
}

func (p callbackPayload) ref() string {
	if p.TrxRef != "" {
		return p.TrxRef
	}
	return p.TxRef
}

// PaymentCallback acknowledges every gateway callback with 200 and hands the
// work to the dispatcher. Rejected or unparseable callbacks are only logged;
// the gateway has nothing useful to do with an error response.
func (h *Handlers) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.parseCallback(r)
	if ok {
		h.dispatcher.Dispatch(command.PaymentCallback{TxRef: payload.ref(), Status: payload.Status})
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "callback received"})
}

func (h *Handlers) parseCallback(r *http.Request) (callbackPayload, bool) {
	log := h.log.With("method", r.Method)
	q := r.URL.Query()
	payload := callbackPayload{TrxRef: q.Get("trx_ref"), TxRef: q.Get("tx_ref"), Status: q.Get("status")}

	if r.Method == http.MethodPost {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			log.Warn("failed to read callback body", "error", err)
			return payload, false
		}
		if h.webhookSecret != "" {
			sig := r.Header.Get("Chapa-Signature")
			if sig == "" {
				sig = r.Header.Get("x-chapa-signature")
			}
			if !chapa.VerifySignature(h.webhookSecret, body, sig) {
				log.Warn("discarding callback with invalid signature")
				return payload, false
			}
		}
		if len(body) > 0 {
			var fromBody callbackPayload
			if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
				form, err := url.ParseQuery(string(body))
				if err == nil {
					fromBody = callbackPayload{TrxRef: form.Get("trx_ref"), TxRef: form.Get("tx_ref"), Status: form.Get("status")}
				}
			} else if err := json.Unmarshal(body, &fromBody); err != nil {
				log.Warn("discarding malformed callback body", "error", err)
				return payload, false
			}
			if fromBody.ref() != "" {
				payload = fromBody
			}
		}
	}

	if payload.ref() == "" {
		log.Warn("discarding callback without transaction reference")
		return payload, false
	}
	return payload, true
}
