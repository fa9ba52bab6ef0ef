package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/orders-service/internal/order-service/domain"
	"github.com/jcmexdev/orders-service/internal/order-service/ports"
	"github.com/jcmexdev/orders-service/internal/pkg/contracts"
)

// Reconciler applies customer and product events from sibling services to
// the denormalized customer fields of stored orders. Line item snapshots,
// totals and statuses are never touched.
type Reconciler struct {
	store  ports.Store
	now    func() time.Time
	tracer trace.Tracer
}

func NewReconciler(store ports.Store, now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{store: store, now: now, tracer: otel.Tracer(tracerName)}
}

// Handle processes one inbound message. Malformed bodies and unknown event
// types are logged and dropped; only store failures are returned.
func (r *Reconciler) Handle(ctx context.Context, topic string, body []byte) (err error) {
	var env contracts.Inbound
	if err := json.Unmarshal(body, &env); err != nil {
		slog.WarnContext(ctx, "discarding malformed event", "topic", topic, "error", err)
		return nil
	}
	eventType := env.EventType
	if eventType == "" {
		eventType = topic
	}

	ctx, span := r.tracer.Start(ctx, "orders.Reconcile", trace.WithAttributes(
		attribute.String("messaging.destination", topic),
		attribute.String("event.type", eventType),
		attribute.String("event.source", env.Source()),
	))
	defer func() { endSpan(span, err) }()

	switch eventType {
	case contracts.EventCustomerUpdated, contracts.EventCustomerDeleted:
		var data contracts.CustomerData
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &data); err != nil {
				slog.WarnContext(ctx, "discarding malformed customer event", "event_type", eventType, "error", err)
				return nil
			}
		}
		if data.CustomerID == "" {
			slog.WarnContext(ctx, "customer event without customer_id", "event_type", eventType)
			return nil
		}
		if eventType == contracts.EventCustomerDeleted {
			return r.anonymize(ctx, data.CustomerID)
		}
		return r.refreshCustomer(ctx, data)

	case contracts.EventCustomerCreated:
		slog.InfoContext(ctx, "customer created", "source", env.Source())

	case contracts.EventProductCreated, contracts.EventProductUpdated, contracts.EventProductDeleted:
		var data contracts.ProductData
		_ = json.Unmarshal(env.Data, &data)
		slog.InfoContext(ctx, "product event received, line items keep their snapshot",
			"event_type", eventType, "product_id", data.ProductID)

	default:
		slog.DebugContext(ctx, "ignoring unknown event type", "event_type", eventType, "topic", topic)
	}
	return nil
}

func (r *Reconciler) refreshCustomer(ctx context.Context, data contracts.CustomerData) error {
	if data.Name == nil && data.Username == nil {
		slog.DebugContext(ctx, "customer update carries no order fields", "customer_id", data.CustomerID)
		return nil
	}
	n, err := r.rewriteCustomer(ctx, data.CustomerID, func(o *domain.Order) []string {
		var fields []string
		if data.Name != nil {
			o.CustomerName = *data.Name
			fields = append(fields, domain.FieldCustomerName)
		}
		if data.Username != nil {
			o.CustomerEmail = *data.Username
			fields = append(fields, domain.FieldCustomerEmail)
		}
		return fields
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "customer data refreshed on orders", "customer_id", data.CustomerID, "orders", n)
	return nil
}

func (r *Reconciler) anonymize(ctx context.Context, customerID string) error {
	n, err := r.rewriteCustomer(ctx, customerID, func(o *domain.Order) []string {
		o.CustomerName = domain.AnonymizedCustomerName(customerID)
		o.CustomerEmail = domain.AnonymizedCustomerEmail
		return []string{domain.FieldCustomerName, domain.FieldCustomerEmail}
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "customer anonymized on orders", "customer_id", customerID, "orders", n)
	return nil
}

// rewriteCustomer applies set to every order of the customer in a single
// transaction and returns how many orders were written.
func (r *Reconciler) rewriteCustomer(ctx context.Context, customerID string, set func(*domain.Order) []string) (int, error) {
	now := r.now().UTC()
	count := 0
	err := r.store.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		orders, err := tx.GetByCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		for _, o := range orders {
			fields := set(o)
			o.UpdatedAt = now
			if err := tx.Update(ctx, o, fields...); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
