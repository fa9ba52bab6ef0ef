package app_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jcmexdev/orders-service/internal/order-service/app"
	"github.com/jcmexdev/orders-service/internal/order-service/domain"
	"github.com/jcmexdev/orders-service/internal/pkg/broker"
	"github.com/jcmexdev/orders-service/internal/pkg/contracts"
)

func envelope(t *testing.T, eventType string, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	body, err := json.Marshal(contracts.Envelope{EventType: eventType, Service: "customers-api", Data: raw})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return body
}

func TestCustomerDeletedAnonymizesEveryOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var mine []*domain.Order
	for i := 0; i < 3; i++ {
		mine = append(mine, h.create(t, "C1"))
	}
	other := h.create(t, "C2")
	_, _ = h.engine.ChangeStatus(ctx, mine[1].OrderID, "shipped", nil)
	shipped, _ := h.engine.Get(ctx, mine[1].OrderID)

	r := app.NewReconciler(h.store, h.clock.Now)
	body := envelope(t, contracts.EventCustomerDeleted, map[string]string{"customer_id": "C1"})
	if err := r.Handle(ctx, contracts.EventCustomerDeleted, body); err != nil {
		t.Fatalf("handle: %v", err)
	}

	for _, o := range mine {
		got, err := h.engine.Get(ctx, o.OrderID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.CustomerName != "Deleted customer (C1)" || got.CustomerEmail != domain.AnonymizedCustomerEmail {
			t.Fatalf("order %s not anonymized: %q %q", o.OrderID, got.CustomerName, got.CustomerEmail)
		}
		if !got.TotalAmount.Equal(o.TotalAmount) || len(got.Items) != len(o.Items) {
			t.Fatalf("order %s facts changed", o.OrderID)
		}
		if !got.Items[0].UnitPrice.Equal(o.Items[0].UnitPrice) || got.Items[0].ProductName != o.Items[0].ProductName {
			t.Fatalf("order %s line items changed", o.OrderID)
		}
	}
	got, _ := h.engine.Get(ctx, mine[1].OrderID)
	if got.Status != domain.StatusShipped || !got.ShippedAt.Equal(*shipped.ShippedAt) {
		t.Fatalf("status should be untouched, got %s", got.Status)
	}

	untouched, _ := h.engine.Get(ctx, other.OrderID)
	if untouched.CustomerName != "Ada Lovelace" {
		t.Fatalf("other customers must not change, got %q", untouched.CustomerName)
	}
}

func TestCustomerEventsAcceptAnyTimestampShape(t *testing.T) {
	cases := []struct {
		name      string
		timestamp string
	}{
		{"naive iso", `"2024-05-01T10:00:00.123456"`},
		{"zoned iso", `"2024-05-01T10:00:00+02:00"`},
		{"epoch seconds", `1714557600`},
		{"epoch float", `1714557600.25`},
		{"null", `null`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			order := h.create(t, "C1")
			r := app.NewReconciler(h.store, h.clock.Now)

			updated := []byte(`{"event_type":"customer.updated","service":"customers-api",` +
				`"data":{"customer_id":"C1","name":"Augusta Ada"},"timestamp":` + tc.timestamp + `}`)
			if err := r.Handle(ctx, contracts.EventCustomerUpdated, updated); err != nil {
				t.Fatalf("handle updated: %v", err)
			}
			got, _ := h.engine.Get(ctx, order.OrderID)
			if got.CustomerName != "Augusta Ada" {
				t.Fatalf("customer.updated was dropped, name %q", got.CustomerName)
			}

			deleted := []byte(`{"event_type":"customer.deleted","service":"customers-api",` +
				`"data":{"customer_id":"C1"},"timestamp":` + tc.timestamp + `}`)
			if err := r.Handle(ctx, contracts.EventCustomerDeleted, deleted); err != nil {
				t.Fatalf("handle deleted: %v", err)
			}
			got, _ = h.engine.Get(ctx, order.OrderID)
			if got.CustomerName != "Deleted customer (C1)" || got.CustomerEmail != domain.AnonymizedCustomerEmail {
				t.Fatalf("customer.deleted was dropped: %q %q", got.CustomerName, got.CustomerEmail)
			}
		})
	}
}

func TestCustomerUpdatedRefreshesNameAndEmail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.create(t, "C1")
	b := h.create(t, "C1")
	r := app.NewReconciler(h.store, h.clock.Now)

	body := envelope(t, contracts.EventCustomerUpdated, map[string]string{"customer_id": "C1", "name": "Augusta Ada"})
	if err := r.Handle(ctx, contracts.EventCustomerUpdated, body); err != nil {
		t.Fatalf("handle: %v", err)
	}
	for _, id := range []string{a.OrderID, b.OrderID} {
		got, _ := h.engine.Get(ctx, id)
		if got.CustomerName != "Augusta Ada" || got.CustomerEmail != "ada@example.com" {
			t.Fatalf("unexpected customer fields on %s: %q %q", id, got.CustomerName, got.CustomerEmail)
		}
	}

	body = envelope(t, contracts.EventCustomerUpdated, map[string]string{"customer_id": "C1", "username": "augusta"})
	if err := r.Handle(ctx, contracts.EventCustomerUpdated, body); err != nil {
		t.Fatalf("handle: %v", err)
	}
	got, _ := h.engine.Get(ctx, a.OrderID)
	if got.CustomerName != "Augusta Ada" || got.CustomerEmail != "augusta" {
		t.Fatalf("username should map to customer_email: %+v", got)
	}
	if n := len(h.events(t, a.OrderID)); n != 1 {
		t.Fatalf("reconciliation does not write audit rows, got %d", n)
	}
}

func TestProductEventsNeverTouchLineItems(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.create(t, "C1")
	before, _ := h.engine.Get(ctx, order.OrderID)
	r := app.NewReconciler(h.store, h.clock.Now)

	for _, topic := range []string{contracts.EventProductUpdated, contracts.EventProductDeleted} {
		body := envelope(t, topic, map[string]any{"product_id": "P1", "name": "Renamed", "price": "99.99"})
		if err := r.Handle(ctx, topic, body); err != nil {
			t.Fatalf("handle %s: %v", topic, err)
		}
	}

	after, _ := h.engine.Get(ctx, order.OrderID)
	for i := range before.Items {
		b, a := before.Items[i], after.Items[i]
		if a.ProductName != b.ProductName || !a.UnitPrice.Equal(b.UnitPrice) || !a.LineTotal.Equal(b.LineTotal) ||
			a.Quantity != b.Quantity || a.ProductSKU != b.ProductSKU {
			t.Fatalf("line item %d changed: %+v -> %+v", i, b, a)
		}
	}
	if !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatal("product events must not touch the order")
	}
}

func TestMalformedAndUnknownEventsAreDropped(t *testing.T) {
	h := newHarness(t)
	r := app.NewReconciler(h.store, nil)
	ctx := context.Background()

	for _, body := range [][]byte{
		[]byte("{not json"),
		[]byte(`{"event_type":"customer.updated","data":"oops"}`),
		[]byte(`{"event_type":"customer.deleted","data":{}}`),
		[]byte(`{"event_type":"invoice.paid","data":{"id":1}}`),
	} {
		if err := r.Handle(ctx, "customer.updated", body); err != nil {
			t.Fatalf("handle %s: %v", body, err)
		}
	}
}

func TestSubscriptionSurvivesMalformedMessage(t *testing.T) {
	h := newHarness(t)
	order := h.create(t, "C1")

	ch := broker.NewMemory("customers-api")
	t.Cleanup(func() { _ = ch.Close() })

	r := app.NewReconciler(h.store, h.clock.Now)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := ch.Subscribe(ctx, contracts.InboundTopics(), r.Handle); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := ch.PublishRaw(ctx, contracts.EventCustomerDeleted, []byte("garbage")); err != nil {
		t.Fatalf("publish raw: %v", err)
	}
	if err := ch.Publish(ctx, contracts.EventCustomerDeleted, contracts.CustomerData{CustomerID: "C1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := h.store.Get(context.Background(), order.OrderID)
		if err == nil && got.CustomerEmail == domain.AnonymizedCustomerEmail {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("well-formed message after a malformed one was not processed: %+v (%v)", got, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
