package httpx

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jcmexdev/orders-service/internal/pkg/interceptors"
	"github.com/jcmexdev/orders-service/internal/pkg/metrics"
)

// NewRouter wires the API. Health probes and /metrics are public; every
// order route requires the bearer token. m may be nil.
func NewRouter(handler *Handler, apiToken string, m *metrics.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(interceptors.RequestMetadata)
	r.Use(interceptors.TraceHTTP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if m != nil {
		r.Use(m.Server.Middleware)
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	r.Get("/", handler.Root)
	r.Get("/health", handler.Health)
	r.Get("/health/messaging", handler.MessagingHealth)

	r.Group(func(r chi.Router) {
		r.Use(RequireToken(apiToken))

		r.Post("/orders", handler.CreateOrder)
		r.Get("/orders", handler.ListOrders)
		r.Get("/orders/search", handler.SearchOrders)
		r.Get("/orders/status/{status}", handler.OrdersByStatus)
		r.Get("/orders/{order_id}", handler.GetOrder)
		r.Put("/orders/{order_id}", handler.UpdateOrder)
		r.Delete("/orders/{order_id}", handler.DeleteOrder)
		r.Put("/orders/{order_id}/status", handler.ChangeStatus)
		r.Post("/orders/{order_id}/cancel", handler.CancelOrder)
		r.Get("/orders/{order_id}/events", handler.OrderEvents)
		r.Get("/customers/{customer_id}/orders", handler.CustomerOrders)
		r.Get("/stats", handler.Stats)
	})
	return r
}

// RequireToken rejects requests whose "Authorization: Bearer" token does not
// match apiToken with 403, before any handler runs.
func RequireToken(apiToken string) func(http.Handler) http.Handler {
	want := []byte(apiToken)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || len(want) == 0 ||
				subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), want) != 1 {
				writeError(w, http.StatusForbidden, "forbidden", "invalid or missing API token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
