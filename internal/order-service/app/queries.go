package app

import (
	"context"

	"github.com/jcmexdev/orders-service/internal/order-service/domain"
)

func (e *Engine) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	return e.store.Get(ctx, orderID)
}

// List rejects a status filter that is not part of the configured set.
func (e *Engine) List(ctx context.Context, f domain.Filter) ([]domain.Summary, error) {
	if f.Status != "" {
		if _, err := e.statuses.Parse(string(f.Status)); err != nil {
			return nil, err
		}
	}
	return e.store.List(ctx, f)
}

// ListByStatus rejects statuses that are not part of the configured set.
func (e *Engine) ListByStatus(ctx context.Context, status string, skip, limit int) ([]domain.Summary, error) {
	st, err := e.statuses.Parse(status)
	if err != nil {
		return nil, err
	}
	return e.store.List(ctx, domain.Filter{Status: st, Skip: skip, Limit: limit})
}

func (e *Engine) ListByCustomer(ctx context.Context, customerID string, skip, limit int) ([]domain.Summary, error) {
	return e.store.List(ctx, domain.Filter{CustomerID: customerID, Skip: skip, Limit: limit})
}

func (e *Engine) Events(ctx context.Context, orderID string) ([]domain.AuditEvent, error) {
	return e.store.Events(ctx, orderID)
}

func (e *Engine) Stats(ctx context.Context) (domain.Stats, error) {
	return e.store.Stats(ctx)
}
