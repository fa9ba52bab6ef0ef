package sqlstore_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/orders-service/internal/order-service/adapters/sqlstore"
	"github.com/jcmexdev/orders-service/internal/order-service/domain"
	"github.com/jcmexdev/orders-service/internal/order-service/ports"
)

var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func openStore(t *testing.T, opts ...sqlstore.Option) *sqlstore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.db")
	s, err := sqlstore.Open(context.Background(), sqlstore.DriverSQLite, path, opts...)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newOrder(id, customer string, at time.Time, prices ...string) *domain.Order {
	n := domain.NewOrder{
		CustomerID:    customer,
		CustomerName:  "Name " + customer,
		CustomerEmail: customer + "@example.com",
		Shipping:      domain.ShippingInfo{Address: "Main St 1", City: "Madrid", PostalCode: "28001", Country: "ES"},
	}
	for i, p := range prices {
		n.Items = append(n.Items, domain.NewLineItem{
			ProductID:   "P" + string(rune('1'+i)),
			ProductName: "Product",
			UnitPrice:   decimal.RequireFromString(p),
			Quantity:    i + 1,
		})
	}
	return n.Build(id, at)
}

func insert(t *testing.T, s *sqlstore.Store, orders ...*domain.Order) {
	t.Helper()
	err := s.InTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		for _, o := range orders {
			if err := tx.Insert(ctx, o); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func TestInsertAndGet(t *testing.T) {
	s := openStore(t)
	o := newOrder("ORD-00000001", "C1", base, "15.99", "18.50")
	insert(t, s, o)

	if o.PK == 0 || o.Items[0].PK == 0 {
		t.Fatal("storage ids should be filled in on insert")
	}

	got, err := s.Get(context.Background(), "ORD-00000001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CustomerEmail != "C1@example.com" || got.Shipping.City != "Madrid" || got.Currency != domain.DefaultCurrency {
		t.Fatalf("unexpected order: %+v", got)
	}
	// 15.99*1 + 18.50*2
	if !got.TotalAmount.Equal(decimal.RequireFromString("52.99")) {
		t.Fatalf("unexpected total %s", got.TotalAmount)
	}
	if len(got.Items) != 2 || got.Items[1].Quantity != 2 || !got.Items[1].LineTotal.Equal(decimal.RequireFromString("37")) {
		t.Fatalf("unexpected items: %+v", got.Items)
	}
	if !got.CreatedAt.Equal(base) || got.ShippedAt != nil || got.Status != domain.StatusPending {
		t.Fatalf("unexpected lifecycle fields: %+v", got)
	}
}

func TestGetMissingIsNotFound(t *testing.T) {
	s := openStore(t)
	if _, err := s.Get(context.Background(), "ORD-MISSING"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDuplicateOrderIDIsConflict(t *testing.T) {
	s := openStore(t)
	insert(t, s, newOrder("ORD-DUP", "C1", base, "1"))

	err := s.InTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		return tx.Insert(ctx, newOrder("ORD-DUP", "C2", base, "2"))
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestFailedInsertLeavesNothingBehind(t *testing.T) {
	s := openStore(t)
	o := newOrder("ORD-BROKEN", "C1", base, "10", "20")
	o.Items[1].Quantity = 0 // violates the CHECK constraint on the second item

	err := s.InTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		return tx.Insert(ctx, o)
	})
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if _, err := s.Get(context.Background(), "ORD-BROKEN"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("order row should have been rolled back, got %v", err)
	}
}

func TestInTxRollsBackOnPanic(t *testing.T) {
	s := openStore(t)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("panic should propagate")
			}
		}()
		_ = s.InTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
			if err := tx.Insert(ctx, newOrder("ORD-PANIC", "C1", base, "1")); err != nil {
				return err
			}
			panic("boom")
		})
	}()

	if _, err := s.Get(context.Background(), "ORD-PANIC"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected rollback, got %v", err)
	}
}

func TestUpdateWritesNamedFieldsOnly(t *testing.T) {
	s := openStore(t)
	o := newOrder("ORD-UPD", "C1", base, "5")
	insert(t, s, o)

	later := base.Add(time.Hour)
	err := s.InTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		cur, err := tx.GetByID(ctx, "ORD-UPD")
		if err != nil {
			return err
		}
		cur.Status = domain.StatusShipped
		cur.ShippedAt = &later
		cur.UpdatedAt = later
		cur.CustomerName = "not written"
		return tx.Update(ctx, cur, domain.FieldStatus, domain.FieldShippedAt)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := s.Get(context.Background(), "ORD-UPD")
	if got.Status != domain.StatusShipped || got.ShippedAt == nil || !got.ShippedAt.Equal(later) {
		t.Fatalf("status fields not written: %+v", got)
	}
	if !got.UpdatedAt.Equal(later) {
		t.Fatalf("updated_at should always be written, got %v", got.UpdatedAt)
	}
	if got.CustomerName != "Name C1" {
		t.Fatalf("unnamed field was written: %q", got.CustomerName)
	}
}

func TestUpdateMissingOrder(t *testing.T) {
	s := openStore(t)
	err := s.InTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		return tx.Update(ctx, &domain.Order{OrderID: "ORD-NONE", UpdatedAt: base}, domain.FieldStatus)
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteCascadesItemsButKeepsEvents(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	insert(t, s, newOrder("ORD-DEL", "C1", base, "1", "2"))

	err := s.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		return tx.AppendEvent(ctx, &domain.AuditEvent{
			OrderID: "ORD-DEL", Kind: domain.AuditOrderCreated, Data: `{"items_count":2}`,
			CreatedBy: domain.DefaultActor, CreatedAt: base,
		})
	})
	if err != nil {
		t.Fatalf("append event: %v", err)
	}

	err = s.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		return tx.Delete(ctx, "ORD-DEL")
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := s.Get(ctx, "ORD-DEL"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	events, err := s.Events(ctx, "ORD-DEL")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 1 || events[0].Kind != domain.AuditOrderCreated || events[0].Data != `{"items_count":2}` {
		t.Fatalf("audit history should survive delete: %+v", events)
	}

	err = s.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		return tx.Delete(ctx, "ORD-DEL")
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete should be ErrNotFound, got %v", err)
	}
}

func TestEventsAreOrderedAndCarryTrace(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	err := s.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		for i, kind := range []string{domain.AuditOrderCreated, domain.AuditStatusChanged, domain.AuditOrderCancelled} {
			e := &domain.AuditEvent{
				OrderID: "ORD-EV", Kind: kind, Data: "{}", CreatedBy: domain.DefaultActor,
				CreatedAt: base.Add(time.Duration(i) * time.Minute),
				TraceID:   "4bf92f3577b34da6a3ce929d0e0e4736", SpanID: "00f067aa0ba902b7",
			}
			if err := tx.AppendEvent(ctx, e); err != nil {
				return err
			}
			if e.ID == 0 {
				t.Error("event id should be filled in")
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	events, _ := s.Events(ctx, "ORD-EV")
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Kind != domain.AuditOrderCreated || events[2].Kind != domain.AuditOrderCancelled {
		t.Fatalf("events out of order: %+v", events)
	}
	if events[1].TraceID != "4bf92f3577b34da6a3ce929d0e0e4736" || events[1].SpanID != "00f067aa0ba902b7" {
		t.Fatalf("trace ids not stored: %+v", events[1])
	}

	none, err := s.Events(ctx, "ORD-NEVER")
	if err != nil || len(none) != 0 {
		t.Fatalf("unknown order should have an empty history, got %v (%v)", none, err)
	}
}

func TestGetByCustomer(t *testing.T) {
	s := openStore(t)
	insert(t, s,
		newOrder("ORD-A", "C1", base, "1"),
		newOrder("ORD-B", "C2", base, "2"),
		newOrder("ORD-C", "C1", base, "3", "4"),
	)

	var got []*domain.Order
	err := s.InTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		var err error
		got, err = tx.GetByCustomer(ctx, "C1")
		return err
	})
	if err != nil {
		t.Fatalf("by customer: %v", err)
	}
	if len(got) != 2 || got[0].OrderID != "ORD-A" || got[1].OrderID != "ORD-C" || len(got[1].Items) != 2 {
		t.Fatalf("unexpected orders: %+v", got)
	}
}

func TestListFilters(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	a := newOrder("ORD-AAAA0001", "C1", base, "10")
	b := newOrder("ORD-BBBB0002", "C2", base.Add(24*time.Hour), "50", "5")
	c := newOrder("ORD-CCCC0003", "C1", base.Add(48*time.Hour), "100")
	c.CustomerEmail = "Someone@Shop.test"
	c.Status = domain.StatusShipped
	insert(t, s, a, b, c)

	dec := func(v string) *decimal.Decimal {
		d := decimal.RequireFromString(v)
		return &d
	}
	day := func(offset int) *time.Time {
		d := base.Truncate(24 * time.Hour).Add(time.Duration(offset) * 24 * time.Hour)
		return &d
	}

	cases := []struct {
		name   string
		filter domain.Filter
		want   []string
	}{
		{"all newest first", domain.Filter{}, []string{"ORD-CCCC0003", "ORD-BBBB0002", "ORD-AAAA0001"}},
		{"customer", domain.Filter{CustomerID: "C1"}, []string{"ORD-CCCC0003", "ORD-AAAA0001"}},
		{"status", domain.Filter{Status: domain.StatusShipped}, []string{"ORD-CCCC0003"}},
		{"query on id", domain.Filter{Query: "bbbb"}, []string{"ORD-BBBB0002"}},
		{"query on email", domain.Filter{Query: "shop.TEST"}, []string{"ORD-CCCC0003"}},
		{"min amount", domain.Filter{MinAmount: dec("60.01")}, []string{"ORD-CCCC0003"}},
		{"amount range", domain.Filter{MinAmount: dec("10"), MaxAmount: dec("60")}, []string{"ORD-BBBB0002", "ORD-AAAA0001"}},
		{"date range", domain.Filter{From: day(1), Until: day(2)}, []string{"ORD-BBBB0002"}},
		{"window", domain.Filter{Skip: 1, Limit: 1}, []string{"ORD-BBBB0002"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.List(ctx, tc.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d orders, want %v", len(got), tc.want)
			}
			for i, id := range tc.want {
				if got[i].OrderID != id {
					t.Fatalf("position %d: got %s, want %s", i, got[i].OrderID, id)
				}
			}
		})
	}

	all, _ := s.List(ctx, domain.Filter{CustomerID: "C2"})
	if all[0].ItemsCount != 2 || !all[0].TotalAmount.Equal(decimal.RequireFromString("60")) {
		t.Fatalf("unexpected summary: %+v", all[0])
	}
}

func TestStats(t *testing.T) {
	now := base.Add(30 * 24 * time.Hour)
	s := openStore(t, sqlstore.WithClock(func() time.Time { return now }))

	old := newOrder("ORD-OLD", "C1", base, "10")
	recent := newOrder("ORD-NEW", "C1", now.Add(-time.Hour), "20")
	other := newOrder("ORD-OTH", "C2", now.Add(-2*time.Hour), "5")
	other.Status = domain.StatusCancelled
	insert(t, s, old, recent, other)

	st, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalOrders != 3 || st.RecentOrdersCount != 2 {
		t.Fatalf("unexpected counts: %+v", st)
	}
	if !st.TotalRevenue.Equal(decimal.RequireFromString("35")) {
		t.Fatalf("unexpected revenue %s", st.TotalRevenue)
	}
	if st.OrdersByStatus["pending"] != 2 || st.OrdersByStatus["cancelled"] != 1 {
		t.Fatalf("unexpected status counts: %v", st.OrdersByStatus)
	}
	if len(st.TopCustomers) != 2 || st.TopCustomers[0].CustomerID != "C1" || st.TopCustomers[0].OrderCount != 2 {
		t.Fatalf("unexpected top customers: %+v", st.TopCustomers)
	}
}

func TestPing(t *testing.T) {
	s := openStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := sqlstore.Open(context.Background(), "oracle", "x"); err == nil {
		t.Fatal("expected an error for an unknown driver")
	}
}
