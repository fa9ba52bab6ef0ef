package domain

import "time"

// Audit event kinds.
const (
	AuditOrderCreated   = "order_created"
	AuditOrderUpdated   = "order_updated"
	AuditStatusChanged  = "status_changed"
	AuditOrderCancelled = "order_cancelled"
)

// AuditEvent is one row of the append-only order_events log. It is keyed by
// the public order id and outlives the order row.
type AuditEvent struct {
	ID        int64
	OrderID   string
	Kind      string
	Data      string
	CreatedAt time.Time
	CreatedBy string

	// TraceID and SpanID point at the span that was active when the row was
	// written. Empty when tracing is off.
	TraceID string
	SpanID  string
}
