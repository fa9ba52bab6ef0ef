package ports

import (
	"context"

	"github.com/jcmexdev/orders-service/internal/order-service/domain"
)

// Store is the port the lifecycle engine, the reconciler and the read
// handlers depend on. Lookups that miss fail with domain.ErrNotFound,
// uniqueness breaches with domain.ErrConflict and everything else with
// domain.ErrPersistence.
type Store interface {
	// InTx runs fn inside one transaction. It commits when fn returns nil
	// and rolls back otherwise, including on panic.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Reader

	Ping(ctx context.Context) error
	Close() error
}

// Tx is the transactional view of the store.
type Tx interface {
	GetByID(ctx context.Context, orderID string) (*domain.Order, error)
	GetByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error)
	Insert(ctx context.Context, order *domain.Order) error
	// Update writes only the named fields (see domain.Field*).
	Update(ctx context.Context, order *domain.Order, fields ...string) error
	Delete(ctx context.Context, orderID string) error
	AppendEvent(ctx context.Context, event *domain.AuditEvent) error
}

// Reader serves the read façade outside of any transaction.
type Reader interface {
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	List(ctx context.Context, filter domain.Filter) ([]domain.Summary, error)
	Events(ctx context.Context, orderID string) ([]domain.AuditEvent, error)
	Stats(ctx context.Context) (domain.Stats, error)
}
