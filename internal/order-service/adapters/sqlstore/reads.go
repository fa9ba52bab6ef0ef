package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jcmexdev/orders-service/internal/order-service/domain"
)

func (s *Store) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.reader().GetByID(ctx, orderID)
}

// List returns order summaries newest first.
func (s *Store) List(ctx context.Context, f domain.Filter) ([]domain.Summary, error) {
	skip, limit := f.Window()
	return s.summaries(ctx, f, &window{skip: skip, limit: limit})
}

type window struct{ skip, limit int }

func (s *Store) summaries(ctx context.Context, f domain.Filter, w *window) ([]domain.Summary, error) {
	var (
		where []string
		args  []any
	)
	if f.CustomerID != "" {
		where = append(where, "o.customer_id = ?")
		args = append(args, f.CustomerID)
	}
	if f.Status != "" {
		where = append(where, "o.status = ?")
		args = append(args, string(f.Status))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		where = append(where, `(LOWER(o.order_id) LIKE ? OR LOWER(o.customer_id) LIKE ?
			OR LOWER(o.customer_name) LIKE ? OR LOWER(o.customer_email) LIKE ?)`)
		pattern := "%" + strings.ToLower(q) + "%"
		args = append(args, pattern, pattern, pattern, pattern)
	}
	if f.MinAmount != nil {
		where = append(where, s.d.amountCmp(">="))
		args = append(args, f.MinAmount.String())
	}
	if f.MaxAmount != nil {
		where = append(where, s.d.amountCmp("<="))
		args = append(args, f.MaxAmount.String())
	}
	if f.From != nil {
		where = append(where, "o.created_at >= ?")
		args = append(args, s.d.encodeTime(*f.From))
	}
	if f.Until != nil {
		where = append(where, "o.created_at < ?")
		args = append(args, s.d.encodeTime(*f.Until))
	}

	q := `
		SELECT o.id, o.order_id, o.customer_id, o.customer_name, o.total_amount, o.status, o.created_at,
		       (SELECT COUNT(*) FROM order_items i WHERE i.order_pk = o.id)
		FROM   orders o`
	if len(where) > 0 {
		q += "\n\t\tWHERE  " + strings.Join(where, "\n\t\tAND    ")
	}
	q += "\n\t\tORDER  BY o.created_at DESC, o.id DESC"
	if w != nil {
		q += "\n\t\tLIMIT ? OFFSET ?"
		args = append(args, w.limit, w.skip)
	}

	rows, err := s.db.QueryContext(ctx, s.d.bind(q), args...)
	if err != nil {
		return nil, classify("list orders", err)
	}
	defer rows.Close()

	out := []domain.Summary{}
	for rows.Next() {
		var (
			sm        domain.Summary
			status    string
			createdAt dbTime
		)
		if err := rows.Scan(
			&sm.PK, &sm.OrderID, &sm.CustomerID, &sm.CustomerName,
			&sm.TotalAmount, &status, &createdAt, &sm.ItemsCount,
		); err != nil {
			return nil, classify("scan summary", err)
		}
		sm.Status = domain.OrderStatus(status)
		sm.CreatedAt = createdAt.Time
		out = append(out, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list orders", err)
	}
	return out, nil
}

// Events returns the audit history of orderID, oldest first. The history is
// still there after the order itself was deleted.
func (s *Store) Events(ctx context.Context, orderID string) ([]domain.AuditEvent, error) {
	q := s.d.bind(`
		SELECT id, order_id, event_type, event_data, created_by, trace_id, span_id, created_at
		FROM   order_events
		WHERE  order_id = ?
		ORDER  BY created_at, id`)

	rows, err := s.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, classify(fmt.Sprintf("events of %q", orderID), err)
	}
	defer rows.Close()

	events := []domain.AuditEvent{}
	for rows.Next() {
		var (
			e         domain.AuditEvent
			createdAt dbTime
		)
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Kind, &e.Data, &e.CreatedBy, &e.TraceID, &e.SpanID, &createdAt); err != nil {
			return nil, classify("scan event", err)
		}
		e.CreatedAt = createdAt.Time
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Sprintf("events of %q", orderID), err)
	}
	return events, nil
}

func (s *Store) Stats(ctx context.Context) (domain.Stats, error) {
	all, err := s.summaries(ctx, domain.Filter{}, nil)
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.ComputeStats(all, s.now()), nil
}
