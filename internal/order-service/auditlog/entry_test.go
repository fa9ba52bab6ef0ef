package auditlog_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/jcmexdev/orders-service/internal/order-service/auditlog"
	"github.com/jcmexdev/orders-service/internal/order-service/domain"
)

func TestNewEntryWithoutSpan(t *testing.T) {
	now := time.Now()
	entry := auditlog.NewEntry(context.Background(), "ORD-1", domain.AuditStatusChanged,
		map[string]any{"old_status": "pending", "new_status": "shipped"}, now)

	if entry.TraceID != "" || entry.SpanID != "" {
		t.Fatalf("expected empty trace info, got %q/%q", entry.TraceID, entry.SpanID)
	}
	if entry.CreatedBy != "system" {
		t.Fatalf("expected actor system, got %q", entry.CreatedBy)
	}

	var data map[string]string
	if err := json.Unmarshal([]byte(entry.Data), &data); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if data["new_status"] != "shipped" {
		t.Fatalf("unexpected payload: %v", data)
	}
}

func TestNewEntryCapturesSpan(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	entry := auditlog.NewEntry(ctx, "ORD-1", domain.AuditOrderCreated, nil, time.Now())

	if entry.TraceID != span.SpanContext().TraceID().String() {
		t.Fatalf("trace id mismatch: %q", entry.TraceID)
	}
	if len(entry.SpanID) != 16 {
		t.Fatalf("expected 16 hex span id, got %q", entry.SpanID)
	}
	if entry.Data != "{}" {
		t.Fatalf("expected empty object payload, got %q", entry.Data)
	}
}
