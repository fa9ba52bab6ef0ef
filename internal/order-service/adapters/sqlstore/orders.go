package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jcmexdev/orders-service/internal/order-service/domain"
	"github.com/jcmexdev/orders-service/internal/order-service/ports"
)

const orderColumns = `
	o.id, o.order_id, o.customer_id, o.customer_name, o.customer_email,
	o.shipping_address, o.shipping_city, o.shipping_postal_code, o.shipping_country,
	o.currency, o.total_amount, o.status,
	o.created_at, o.updated_at, o.shipped_at, o.delivered_at`

// txn implements ports.Tx over either a transaction or the pool.
type txn struct {
	q querier
	d dialect
}

var _ ports.Tx = (*txn)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o                                          domain.Order
		status                                     string
		createdAt, updatedAt, shippedAt, delivered dbTime
	)
	err := row.Scan(
		&o.PK, &o.OrderID, &o.CustomerID, &o.CustomerName, &o.CustomerEmail,
		&o.Shipping.Address, &o.Shipping.City, &o.Shipping.PostalCode, &o.Shipping.Country,
		&o.Currency, &o.TotalAmount, &status,
		&createdAt, &updatedAt, &shippedAt, &delivered,
	)
	if err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	o.CreatedAt = createdAt.Time
	o.UpdatedAt = updatedAt.Time
	o.ShippedAt = shippedAt.Ptr()
	o.DeliveredAt = delivered.Ptr()
	return &o, nil
}

func (t *txn) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	q := t.d.bind(`SELECT` + orderColumns + ` FROM orders o WHERE o.order_id = ?`)

	o, err := scanOrder(t.q.QueryRowContext(ctx, q, orderID))
	if err != nil {
		return nil, classify(fmt.Sprintf("get order %q", orderID), err)
	}
	if o.Items, err = t.items(ctx, o.PK); err != nil {
		return nil, err
	}
	return o, nil
}

func (t *txn) GetByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error) {
	q := t.d.bind(`SELECT` + orderColumns + ` FROM orders o WHERE o.customer_id = ? ORDER BY o.id`)

	rows, err := t.q.QueryContext(ctx, q, customerID)
	if err != nil {
		return nil, classify("orders by customer", err)
	}
	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			_ = rows.Close()
			return nil, classify("scan order", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, classify("orders by customer", err)
	}
	// Drain the cursor before issuing item queries on the same connection.
	_ = rows.Close()

	for _, o := range orders {
		if o.Items, err = t.items(ctx, o.PK); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (t *txn) items(ctx context.Context, orderPK int64) ([]domain.LineItem, error) {
	q := t.d.bind(`
		SELECT id, product_id, product_name, product_sku, product_description,
		       unit_price, quantity, line_total, created_at
		FROM   order_items
		WHERE  order_pk = ?
		ORDER  BY id`)

	rows, err := t.q.QueryContext(ctx, q, orderPK)
	if err != nil {
		return nil, classify("load items", err)
	}
	defer rows.Close()

	items := []domain.LineItem{}
	for rows.Next() {
		var (
			it        domain.LineItem
			createdAt dbTime
		)
		if err := rows.Scan(
			&it.PK, &it.ProductID, &it.ProductName, &it.ProductSKU, &it.ProductDescription,
			&it.UnitPrice, &it.Quantity, &it.LineTotal, &createdAt,
		); err != nil {
			return nil, classify("scan item", err)
		}
		it.CreatedAt = createdAt.Time
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("load items", err)
	}
	return items, nil
}

// Insert writes the order and its items and fills in their storage ids.
func (t *txn) Insert(ctx context.Context, o *domain.Order) error {
	q := t.d.bind(`
		INSERT INTO orders
			(order_id, customer_id, customer_name, customer_email,
			 shipping_address, shipping_city, shipping_postal_code, shipping_country,
			 currency, total_amount, status, created_at, updated_at, shipped_at, delivered_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	err := t.q.QueryRowContext(ctx, q,
		o.OrderID, o.CustomerID, o.CustomerName, o.CustomerEmail,
		o.Shipping.Address, o.Shipping.City, o.Shipping.PostalCode, o.Shipping.Country,
		o.Currency, o.TotalAmount.String(), string(o.Status),
		t.d.encodeTime(o.CreatedAt), t.d.encodeTime(o.UpdatedAt),
		t.d.encodeTimePtr(o.ShippedAt), t.d.encodeTimePtr(o.DeliveredAt),
	).Scan(&o.PK)
	if err != nil {
		return classify(fmt.Sprintf("insert order %q", o.OrderID), err)
	}

	itemQ := t.d.bind(`
		INSERT INTO order_items
			(order_pk, product_id, product_name, product_sku, product_description,
			 unit_price, quantity, line_total, created_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	for i := range o.Items {
		it := &o.Items[i]
		err := t.q.QueryRowContext(ctx, itemQ,
			o.PK, it.ProductID, it.ProductName, it.ProductSKU, it.ProductDescription,
			it.UnitPrice.String(), it.Quantity, it.LineTotal.String(), t.d.encodeTime(it.CreatedAt),
		).Scan(&it.PK)
		if err != nil {
			return classify(fmt.Sprintf("insert item %d of %q", i, o.OrderID), err)
		}
	}
	return nil
}

func (t *txn) column(o *domain.Order, field string) (any, error) {
	switch field {
	case domain.FieldCustomerName:
		return o.CustomerName, nil
	case domain.FieldCustomerEmail:
		return o.CustomerEmail, nil
	case domain.FieldShippingAddress:
		return o.Shipping.Address, nil
	case domain.FieldShippingCity:
		return o.Shipping.City, nil
	case domain.FieldShippingPostalCode:
		return o.Shipping.PostalCode, nil
	case domain.FieldShippingCountry:
		return o.Shipping.Country, nil
	case domain.FieldStatus:
		return string(o.Status), nil
	case domain.FieldUpdatedAt:
		return t.d.encodeTime(o.UpdatedAt), nil
	case domain.FieldShippedAt:
		return t.d.encodeTimePtr(o.ShippedAt), nil
	case domain.FieldDeliveredAt:
		return t.d.encodeTimePtr(o.DeliveredAt), nil
	}
	return nil, fmt.Errorf("sqlstore: %w: field %q is not updatable", domain.ErrPersistence, field)
}

// Update writes the named fields. updated_at is always written.
func (t *txn) Update(ctx context.Context, o *domain.Order, fields ...string) error {
	seen := map[string]bool{domain.FieldUpdatedAt: true}
	sets := []string{domain.FieldUpdatedAt + " = ?"}
	args := []any{t.d.encodeTime(o.UpdatedAt)}

	for _, f := range fields {
		if seen[f] {
			continue
		}
		seen[f] = true
		v, err := t.column(o, f)
		if err != nil {
			return err
		}
		sets = append(sets, f+" = ?")
		args = append(args, v)
	}
	args = append(args, o.OrderID)

	q := t.d.bind(`UPDATE orders SET ` + strings.Join(sets, ", ") + ` WHERE order_id = ?`)
	res, err := t.q.ExecContext(ctx, q, args...)
	if err != nil {
		return classify(fmt.Sprintf("update order %q", o.OrderID), err)
	}
	return expectOne(res, o.OrderID)
}

// Delete removes the order; its items go with it through ON DELETE CASCADE.
func (t *txn) Delete(ctx context.Context, orderID string) error {
	res, err := t.q.ExecContext(ctx, t.d.bind(`DELETE FROM orders WHERE order_id = ?`), orderID)
	if err != nil {
		return classify(fmt.Sprintf("delete order %q", orderID), err)
	}
	return expectOne(res, orderID)
}

func (t *txn) AppendEvent(ctx context.Context, e *domain.AuditEvent) error {
	q := t.d.bind(`
		INSERT INTO order_events
			(order_id, event_type, event_data, created_by, trace_id, span_id, created_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	err := t.q.QueryRowContext(ctx, q,
		e.OrderID, e.Kind, e.Data, e.CreatedBy, e.TraceID, e.SpanID, t.d.encodeTime(e.CreatedAt),
	).Scan(&e.ID)
	if err != nil {
		return classify(fmt.Sprintf("append %s event for %q", e.Kind, e.OrderID), err)
	}
	return nil
}

type rowsAffected interface {
	RowsAffected() (int64, error)
}

func expectOne(res rowsAffected, orderID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return classify("rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("sqlstore: order %q: %w", orderID, domain.ErrNotFound)
	}
	return nil
}

