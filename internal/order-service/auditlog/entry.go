// Package auditlog builds the append-only order_events rows written by the
// lifecycle engine.
//
// Every row carries the trace and span id of the span that was active when it
// was written, so an audit entry can be joined with the distributed trace of
// the request that produced it.
package auditlog

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/orders-service/internal/order-service/domain"
)

// TraceInfo holds the OTel identifiers extracted from a context.
type TraceInfo struct {
	// TraceID is the W3C trace ID (32 lowercase hex chars).
	TraceID string
	// SpanID is the W3C span ID (16 lowercase hex chars).
	SpanID string
}

// ExtractTraceInfo reads the active span from ctx. Both fields are empty when
// ctx carries no valid span, e.g. in unit tests.
func ExtractTraceInfo(ctx context.Context) TraceInfo {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return TraceInfo{}
	}
	return TraceInfo{
		TraceID: sc.TraceID().String(),
		SpanID:  sc.SpanID().String(),
	}
}

// NewEntry serialises data and builds an audit row for orderID.
//
//	entry := auditlog.NewEntry(ctx, order.OrderID, domain.AuditStatusChanged, data, now)
//	err := tx.AppendEvent(ctx, entry)
func NewEntry(ctx context.Context, orderID, kind string, data any, now time.Time) *domain.AuditEvent {
	ti := ExtractTraceInfo(ctx)

	payload := "{}"
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			payload = string(b)
		}
	}

	return &domain.AuditEvent{
		OrderID:   orderID,
		Kind:      kind,
		Data:      payload,
		CreatedAt: now.UTC(),
		CreatedBy: domain.DefaultActor,
		TraceID:   ti.TraceID,
		SpanID:    ti.SpanID,
	}
}
