package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/orders-service/internal/order-service/domain"
	"github.com/jcmexdev/orders-service/internal/order-service/ports"
	"github.com/jcmexdev/orders-service/internal/pkg/interceptors"
)

const (
	dateLayout    = "2006-01-02"
	healthTimeout = 2 * time.Second
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the orders HTTP API on top of the lifecycle engine.
type Handler struct {
	orders      ports.OrderService
	store       Pinger
	channel     Pinger
	serviceName string
}

func NewHandler(orders ports.OrderService, store, channel Pinger, serviceName string) *Handler {
	return &Handler{orders: orders, store: store, channel: channel, serviceName: serviceName}
}

// CreateOrder creates a pending order. A repeated Idempotency-Key returns the
// order created by the first request.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	slog.InfoContext(r.Context(), "creating order",
		"request_id", interceptors.RequestID(r.Context()),
		"customer_id", req.CustomerID,
	)

	order, err := h.orders.Create(r.Context(), req.toDomain(), interceptors.IdempotencyKey(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapOrderToResponse(order))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Get(r.Context(), chi.URLParam(r, "order_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrderToResponse(order))
}

// UpdateOrder rejects any field other than the customer and shipping ones.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req UpdateOrderRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	order, err := h.orders.UpdateFields(r.Context(), chi.URLParam(r, "order_id"), req.toDomain())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrderToResponse(order))
}

func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	order, err := h.orders.ChangeStatus(r.Context(), chi.URLParam(r, "order_id"), req.Status, req.Notes)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrderToResponse(order))
}

// CancelOrder takes an optional ?reason= query parameter.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var reason *string
	if q := r.URL.Query(); q.Has("reason") {
		v := q.Get("reason")
		reason = &v
	}

	order, err := h.orders.Cancel(r.Context(), chi.URLParam(r, "order_id"), reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrderToResponse(order))
}

func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")
	if err := h.orders.Delete(r.Context(), orderID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Message: "Order deleted successfully", OrderID: orderID})
}

// ListOrders supports ?customer_id=, ?status=, ?skip= and ?limit=.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	f.CustomerID = q.Get("customer_id")
	f.Status = domain.OrderStatus(q.Get("status"))

	out, err := h.orders.List(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSummaries(out))
}

// SearchOrders supports ?q=, ?min_amount=, ?max_amount=, ?date_from= and
// ?date_to= (YYYY-MM-DD, both inclusive) on top of pagination.
func (h *Handler) SearchOrders(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	f.Query = q.Get("q")

	if f.MinAmount, err = parseAmount(q.Get("min_amount"), "min_amount"); err != nil {
		h.fail(w, r, err)
		return
	}
	if f.MaxAmount, err = parseAmount(q.Get("max_amount"), "max_amount"); err != nil {
		h.fail(w, r, err)
		return
	}
	if f.From, err = parseDate(q.Get("date_from"), "date_from", 0); err != nil {
		h.fail(w, r, err)
		return
	}
	if f.Until, err = parseDate(q.Get("date_to"), "date_to", 24*time.Hour); err != nil {
		h.fail(w, r, err)
		return
	}

	out, err := h.orders.List(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSummaries(out))
}

func (h *Handler) OrdersByStatus(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.orders.ListByStatus(r.Context(), chi.URLParam(r, "status"), f.Skip, f.Limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSummaries(out))
}

func (h *Handler) CustomerOrders(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.orders.ListByCustomer(r.Context(), chi.URLParam(r, "customer_id"), f.Skip, f.Limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSummaries(out))
}

// OrderEvents returns the audit trail, which outlives the order.
func (h *Handler) OrderEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.orders.Events(r.Context(), chi.URLParam(r, "order_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapEvents(events))
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orders.Stats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapStats(stats))
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "running", Service: h.serviceName})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		slog.WarnContext(ctx, "database health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Service: h.serviceName, Database: "disconnected"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Service: h.serviceName, Database: "connected"})
}

func (h *Handler) MessagingHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.channel.Ping(ctx); err != nil {
		slog.WarnContext(ctx, "messaging health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Service: h.serviceName, Messaging: "disconnected"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Service: h.serviceName, Messaging: "connected"})
}

// fail maps domain errors onto HTTP responses. Persistence details are
// logged, never returned.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, domain.ErrNotCancellable):
		writeError(w, http.StatusBadRequest, "not_cancellable", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", domain.ErrNotFound.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", "order already exists or a request with the same Idempotency-Key is in progress")
	default:
		slog.ErrorContext(r.Context(), "request failed",
			"request_id", interceptors.RequestID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func parseFilter(r *http.Request) (domain.Filter, error) {
	q := r.URL.Query()
	f := domain.Filter{Limit: domain.DefaultListLimit}

	if v := q.Get("skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, fmt.Errorf("%w: skip must be a non-negative integer", domain.ErrValidation)
		}
		f.Skip = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > domain.MaxListLimit {
			return f, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, domain.MaxListLimit)
		}
		f.Limit = n
	}
	return f, nil
}

func parseAmount(v, name string) (*decimal.Decimal, error) {
	if strings.TrimSpace(v) == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return nil, fmt.Errorf("%w: %s must be a non-negative amount", domain.ErrValidation, name)
	}
	return &d, nil
}

// parseDate reads a YYYY-MM-DD date as UTC midnight shifted by offset.
func parseDate(v, name string, offset time.Duration) (*time.Time, error) {
	if strings.TrimSpace(v) == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be formatted as YYYY-MM-DD", domain.ErrValidation, name)
	}
	t = t.Add(offset)
	return &t, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}
