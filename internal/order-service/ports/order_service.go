package ports

import (
	"context"

	"github.com/jcmexdev/orders-service/internal/order-service/domain"
)

// OrderService is what the HTTP layer needs from the lifecycle engine.
type OrderService interface {
	Create(ctx context.Context, in domain.NewOrder, idempotencyKey string) (*domain.Order, error)
	UpdateFields(ctx context.Context, orderID string, patch domain.Patch) (*domain.Order, error)
	ChangeStatus(ctx context.Context, orderID, status string, notes *string) (*domain.Order, error)
	Cancel(ctx context.Context, orderID string, reason *string) (*domain.Order, error)
	Delete(ctx context.Context, orderID string) error

	Get(ctx context.Context, orderID string) (*domain.Order, error)
	List(ctx context.Context, f domain.Filter) ([]domain.Summary, error)
	ListByStatus(ctx context.Context, status string, skip, limit int) ([]domain.Summary, error)
	ListByCustomer(ctx context.Context, customerID string, skip, limit int) ([]domain.Summary, error)
	Events(ctx context.Context, orderID string) ([]domain.AuditEvent, error)
	Stats(ctx context.Context) (domain.Stats, error)
}
