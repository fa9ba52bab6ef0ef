// Package app holds the order lifecycle engine and the inbound event
// reconciler.
//
// Every mutation runs in exactly one store transaction. Domain events are
// published only after the commit, from a detached goroutine: a publish
// failure is logged and never rolls back or fails the mutation.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/orders-service/internal/order-service/auditlog"
	"github.com/jcmexdev/orders-service/internal/order-service/domain"
	"github.com/jcmexdev/orders-service/internal/order-service/ports"
	"github.com/jcmexdev/orders-service/internal/pkg/contracts"
)

const (
	tracerName = "github.com/jcmexdev/orders-service/internal/order-service/app"

	idempotencyTTL = 24 * time.Hour
	// pendingClaim marks an Idempotency-Key whose create has not committed yet.
	pendingClaim = "pending"
	publishTimeout = 10 * time.Second
)

type Engine struct {
	store     ports.Store
	publisher ports.Publisher
	cache     ports.Cache
	statuses  domain.StatusSet
	now       func() time.Time
	newID     func() string
	tracer    trace.Tracer

	pending sync.WaitGroup
}

type Option func(*Engine)

// WithStatusSet selects the state machine variant. Defaults to the full set.
func WithStatusSet(s domain.StatusSet) Option {
	return func(e *Engine) { e.statuses = s }
}

// WithCache enables Idempotency-Key replay on Create.
func WithCache(c ports.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

func NewEngine(store ports.Store, publisher ports.Publisher, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		publisher: publisher,
		statuses:  domain.FullStatusSet,
		now:       time.Now,
		newID:     NewOrderID,
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewOrderID returns "ORD-" followed by 8 upper-case hex characters.
func NewOrderID() string {
	return "ORD-" + strings.ToUpper(uuid.NewString()[:8])
}

func (e *Engine) StatusSet() domain.StatusSet {
	return e.statuses
}

// Wait blocks until every publish started so far has finished.
func (e *Engine) Wait() {
	e.pending.Wait()
}

type createdAudit struct {
	CustomerID  string `json:"customer_id"`
	TotalAmount string `json:"total_amount"`
	ItemsCount  int    `json:"items_count"`
}

// Create validates in, persists the order with its items and publishes
// order.created. A non-empty idempotencyKey is claimed before the insert: a
// key that already produced an order returns that order, and a key whose
// first request is still running fails with ErrConflict.
func (e *Engine) Create(ctx context.Context, in domain.NewOrder, idempotencyKey string) (_ *domain.Order, err error) {
	ctx, span := e.tracer.Start(ctx, "orders.Create")
	defer func() { endSpan(span, err) }()

	if err := in.Validate(); err != nil {
		return nil, err
	}

	claimed, replay, err := e.claim(ctx, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if replay != nil {
		span.SetAttributes(attribute.Bool("order.replayed", true))
		return replay, nil
	}

	now := e.now().UTC()
	order := in.Build(e.newID(), now)
	span.SetAttributes(attribute.String("order.id", order.OrderID))

	err = e.store.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		if err := tx.Insert(ctx, order); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, auditlog.NewEntry(ctx, order.OrderID, domain.AuditOrderCreated, createdAudit{
			CustomerID:  order.CustomerID,
			TotalAmount: order.TotalAmount.String(),
			ItemsCount:  len(order.Items),
		}, now))
	})
	if err != nil {
		if claimed {
			e.release(ctx, idempotencyKey)
		}
		return nil, err
	}

	slog.InfoContext(ctx, "order created",
		"order_id", order.OrderID,
		"customer_id", order.CustomerID,
		"total_amount", order.TotalAmount.String(),
	)
	if claimed {
		e.remember(ctx, idempotencyKey, order.OrderID)
	}

	items := make([]contracts.ItemSummary, len(order.Items))
	for i, it := range order.Items {
		items[i] = contracts.ItemSummary{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       it.UnitPrice,
		}
	}
	e.publish(ctx, contracts.EventOrderCreated, contracts.OrderCreated{
		OrderID:     order.OrderID,
		CustomerID:  order.CustomerID,
		TotalAmount: order.TotalAmount,
		Status:      string(order.Status),
		Items:       items,
		CreatedAt:   order.CreatedAt,
	})
	return order, nil
}

// claim reserves key for this request. It returns claimed=true when the
// caller owns the key, or the order a previous request created with it. Cache
// outages do not block creation.
func (e *Engine) claim(ctx context.Context, key string) (claimed bool, replay *domain.Order, err error) {
	if e.cache == nil || key == "" {
		return false, nil, nil
	}
	cacheKey := e.cache.GenerateKey("create", key)

	ok, err := e.cache.SetNX(ctx, cacheKey, pendingClaim, idempotencyTTL)
	if err != nil {
		slog.WarnContext(ctx, "idempotency claim failed", "error", err)
		return false, nil, nil
	}
	if ok {
		return true, nil, nil
	}

	orderID, err := e.cache.Get(ctx, cacheKey)
	if err != nil {
		return false, nil, fmt.Errorf("%w: idempotency key lookup: %w", domain.ErrConflict, err)
	}
	if orderID == "" || orderID == pendingClaim {
		return false, nil, fmt.Errorf("%w: a request with this Idempotency-Key is in progress", domain.ErrConflict)
	}

	order, err := e.store.Get(ctx, orderID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// The first order was deleted since; the key starts over.
		slog.WarnContext(ctx, "idempotent replay target deleted", "order_id", orderID)
		if err := e.cache.Set(ctx, cacheKey, pendingClaim, idempotencyTTL); err != nil {
			slog.WarnContext(ctx, "idempotency claim failed", "error", err)
			return false, nil, nil
		}
		return true, nil, nil
	case err != nil:
		return false, nil, err
	}
	slog.InfoContext(ctx, "idempotent create replayed", "order_id", orderID)
	return false, order, nil
}

func (e *Engine) remember(ctx context.Context, key, orderID string) {
	if err := e.cache.Set(ctx, e.cache.GenerateKey("create", key), orderID, idempotencyTTL); err != nil {
		slog.WarnContext(ctx, "idempotency store failed", "order_id", orderID, "error", err)
	}
}

// release frees a claim whose create failed so the client can retry.
func (e *Engine) release(ctx context.Context, key string) {
	if err := e.cache.Del(ctx, e.cache.GenerateKey("create", key)); err != nil {
		slog.WarnContext(ctx, "idempotency release failed", "error", err)
	}
}

type updatedAudit struct {
	OldValues map[string]any `json:"old_values"`
	Changes   map[string]any `json:"changes"`
}

// UpdateFields applies patch to the customer and shipping fields. Every call
// appends an audit row, even when nothing changes.
func (e *Engine) UpdateFields(ctx context.Context, orderID string, patch domain.Patch) (_ *domain.Order, err error) {
	ctx, span := e.tracer.Start(ctx, "orders.UpdateFields", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer func() { endSpan(span, err) }()

	now := e.now().UTC()
	var (
		order   *domain.Order
		changes map[string]any
	)
	err = e.store.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		if order, err = tx.GetByID(ctx, orderID); err != nil {
			return err
		}
		old := order.Snapshot()
		changes = order.Apply(patch)
		order.UpdatedAt = now

		if err := tx.Update(ctx, order, sortedKeys(changes)...); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, auditlog.NewEntry(ctx, order.OrderID, domain.AuditOrderUpdated,
			updatedAudit{OldValues: old, Changes: changes}, now))
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "order updated", "order_id", orderID, "fields", sortedKeys(changes))
	e.publish(ctx, contracts.EventOrderUpdated, contracts.OrderUpdated{
		OrderID:    order.OrderID,
		CustomerID: order.CustomerID,
		Changes:    changes,
		UpdatedAt:  order.UpdatedAt,
	})
	return order, nil
}

type statusAudit struct {
	OldStatus string  `json:"old_status"`
	NewStatus string  `json:"new_status"`
	Notes     *string `json:"notes"`
}

// ChangeStatus moves the order to status. Moving to the current status
// returns the order untouched without an audit row or event.
func (e *Engine) ChangeStatus(ctx context.Context, orderID, status string, notes *string) (_ *domain.Order, err error) {
	ctx, span := e.tracer.Start(ctx, "orders.ChangeStatus", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.status", status),
	))
	defer func() { endSpan(span, err) }()

	next, err := e.statuses.Parse(status)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	var (
		order *domain.Order
		old   domain.OrderStatus
		noop  bool
	)
	err = e.store.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		if order, err = tx.GetByID(ctx, orderID); err != nil {
			return err
		}
		old = order.Status

		fields := e.statuses.Transition(order, next, now)
		if fields == nil {
			noop = true
			return nil
		}
		if err := tx.Update(ctx, order, fields...); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, auditlog.NewEntry(ctx, order.OrderID, domain.AuditStatusChanged, statusAudit{
			OldStatus: string(old),
			NewStatus: string(next),
			Notes:     notes,
		}, now))
	})
	if err != nil {
		return nil, err
	}
	if noop {
		slog.DebugContext(ctx, "status unchanged", "order_id", orderID, "status", old)
		return order, nil
	}

	slog.InfoContext(ctx, "order status changed", "order_id", orderID, "old_status", old, "new_status", next)
	e.publish(ctx, contracts.EventOrderStatusChanged, contracts.OrderStatusChanged{
		OrderID:    order.OrderID,
		CustomerID: order.CustomerID,
		OldStatus:  string(old),
		NewStatus:  string(next),
		Notes:      notes,
		UpdatedAt:  order.UpdatedAt,
	})
	return order, nil
}

type cancelAudit struct {
	OldStatus string  `json:"old_status"`
	Reason    *string `json:"reason"`
}

// Cancel fails with domain.ErrNotCancellable when the order is in a terminal
// status.
func (e *Engine) Cancel(ctx context.Context, orderID string, reason *string) (_ *domain.Order, err error) {
	ctx, span := e.tracer.Start(ctx, "orders.Cancel", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer func() { endSpan(span, err) }()

	now := e.now().UTC()
	var order *domain.Order
	err = e.store.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		if order, err = tx.GetByID(ctx, orderID); err != nil {
			return err
		}
		old := order.Status
		if err := e.statuses.Cancel(order, now); err != nil {
			return err
		}
		if err := tx.Update(ctx, order, domain.FieldStatus); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, auditlog.NewEntry(ctx, order.OrderID, domain.AuditOrderCancelled,
			cancelAudit{OldStatus: string(old), Reason: reason}, now))
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "order cancelled", "order_id", orderID)
	e.publish(ctx, contracts.EventOrderCancelled, contracts.OrderCancelled{
		OrderID:     order.OrderID,
		CustomerID:  order.CustomerID,
		Reason:      reason,
		CancelledAt: now,
	})
	return order, nil
}

// Delete removes the order and its items. The audit history is kept and no
// event is published.
func (e *Engine) Delete(ctx context.Context, orderID string) (err error) {
	ctx, span := e.tracer.Start(ctx, "orders.Delete", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer func() { endSpan(span, err) }()

	err = e.store.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		return tx.Delete(ctx, orderID)
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "order deleted", "order_id", orderID)
	return nil
}

// publish hands the event to the publisher in the background. The request
// context is detached so the publish survives the HTTP response.
func (e *Engine) publish(ctx context.Context, topic string, payload any) {
	if e.publisher == nil {
		return
	}
	e.pending.Add(1)
	go func(ctx context.Context) {
		defer e.pending.Done()
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()

		if err := e.publisher.Publish(ctx, topic, payload); err != nil {
			slog.WarnContext(ctx, "event publish failed",
				"topic", topic,
				"error", fmt.Errorf("%w: %w", domain.ErrMessaging, err),
			)
			return
		}
		slog.DebugContext(ctx, "event published", "topic", topic)
	}(context.WithoutCancel(ctx))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		// Client mistakes are not span failures.
		if !errors.Is(err, domain.ErrValidation) && !errors.Is(err, domain.ErrNotFound) &&
			!errors.Is(err, domain.ErrNotCancellable) && !errors.Is(err, domain.ErrConflict) {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
