package app_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/orders-service/internal/order-service/adapters/sqlstore"
	"github.com/jcmexdev/orders-service/internal/order-service/app"
	"github.com/jcmexdev/orders-service/internal/order-service/domain"
	"github.com/jcmexdev/orders-service/internal/order-service/ports"
)

type published struct {
	topic   string
	payload any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{topic, payload})
	return nil
}

func (p *fakePublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.topic
	}
	return out
}

func (p *fakePublisher) last() published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string]string
}

func (c *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = map[string]string{}
	}
	c.data[key] = value.(string)
	return nil
}

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *fakeCache) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = map[string]string{}
	}
	if _, ok := c.data[key]; ok {
		return false, nil
	}
	c.data[key] = value.(string)
	return true, nil
}

func (c *fakeCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *fakeCache) GenerateKey(operation, key string) string {
	return "test:" + operation + ":" + key
}

// failingStore makes every AppendEvent inside a transaction fail.
type failingStore struct {
	ports.Store
}

type failingTx struct {
	ports.Tx
}

func (failingTx) AppendEvent(context.Context, *domain.AuditEvent) error {
	return errors.Join(domain.ErrPersistence, errors.New("disk full"))
}

func (s failingStore) InTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	return s.Store.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		return fn(ctx, failingTx{tx})
	})
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
}

// Now advances one second per call so audit rows keep a stable order.
func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func openStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	s, err := sqlstore.Open(context.Background(), sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "orders.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type harness struct {
	engine *app.Engine
	store  *sqlstore.Store
	pub    *fakePublisher
	clock  *clock
}

func newHarness(t *testing.T, opts ...app.Option) *harness {
	t.Helper()
	h := &harness{store: openStore(t), pub: &fakePublisher{}, clock: newClock()}
	opts = append([]app.Option{app.WithClock(h.clock.Now)}, opts...)
	h.engine = app.NewEngine(h.store, h.pub, opts...)
	t.Cleanup(h.engine.Wait)
	return h
}

func validOrder(customerID string) domain.NewOrder {
	return domain.NewOrder{
		CustomerID:    customerID,
		CustomerName:  "Ada Lovelace",
		CustomerEmail: "ada@example.com",
		Shipping:      domain.ShippingInfo{Address: "1 Analytical St", City: "London", PostalCode: "N1", Country: "UK"},
		Items: []domain.NewLineItem{
			{ProductID: "P1", ProductName: "Notebook", UnitPrice: decimal.RequireFromString("15.99"), Quantity: 2},
			{ProductID: "P2", ProductName: "Pen", UnitPrice: decimal.RequireFromString("18.50"), Quantity: 1},
		},
	}
}

func (h *harness) create(t *testing.T, customerID string) *domain.Order {
	t.Helper()
	o, err := h.engine.Create(context.Background(), validOrder(customerID), "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return o
}

func (h *harness) events(t *testing.T, orderID string) []domain.AuditEvent {
	t.Helper()
	events, err := h.store.Events(context.Background(), orderID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	return events
}

func strPtr(s string) *string { return &s }
