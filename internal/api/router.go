package api

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/example/ec-order-core/internal/api/middleware"
	"github.com/example/ec-order-core/internal/auth"
	"github.com/example/ec-order-core/internal/infrastructure/logger"
	"github.com/example/ec-order-core/internal/model"
)

type RouterConfig struct {
	Handlers       *Handlers
	JWTService     *auth.JWTService
	AllowedOrigins []string
	// Health reports whether the backing store is reachable. Optional.
	Health func(ctx context.Context) error
	Logger *logger.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	h := cfg.Handlers
	log := cfg.Logger.Component("http")

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(withLogging(log))
	r.Use(chimw.Recoverer)
	r.Use(withCORS(cfg.AllowedOrigins))

	r.Get("/healthz", healthz(cfg.Health))

	// Gateway callbacks are unauthenticated; the amount and status are
	// re-verified server-side before anything changes.
	r.Get("/payment/callback", h.PaymentCallback)
	r.Post("/payment/callback", h.PaymentCallback)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg.JWTService))

		r.Post("/payment/initiate", h.InitiatePayment)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.PlaceOrder)
			r.Get("/user", h.GetMyOrders)
			r.Get("/{id}", h.GetOrder)
			r.Get("/{id}/tracking", h.GetOrderTracking)
			r.Put("/confirm-received/{id}", h.ConfirmReceived)

			r.With(middleware.RequireRole(model.RoleAdmin)).Get("/", h.GetAllOrders)
			r.With(middleware.RequireRole(model.RoleAdmin)).Put("/status/{id}", h.UpdateOrderStatus)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Use(middleware.RequireRole(model.RoleAdmin))
			r.Get("/", h.GetNotifications)
			r.Get("/unread-count", h.GetUnreadCount)
			r.Put("/read-all", h.MarkAllNotificationsRead)
			r.Put("/{id}/read", h.MarkNotificationRead)
		})
	})

	return r
}

func healthz(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func withLogging(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()))
		})
	}
}

// withCORS allows credentialed requests from the configured origins.
func withCORS(origins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (slices.Contains(origins, origin) || slices.Contains(origins, "*")) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				w.Header().Add("Vary", "Origin")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
