package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultCurrency = "EUR"
	DefaultActor    = "system"
)

type Order struct {
	// PK is the storage row id. OrderID is the public identifier.
	PK         int64
	OrderID    string
	CustomerID string

	CustomerName  string
	CustomerEmail string

	Shipping ShippingInfo

	Currency    string
	TotalAmount decimal.Decimal
	Status      OrderStatus
	Items       []LineItem

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ShippedAt   *time.Time
	DeliveredAt *time.Time
}

type ShippingInfo struct {
	Address    string
	City       string
	PostalCode string
	Country    string
}

// LineItem is a snapshot of the product taken when the order was placed.
// It is never refreshed from the product catalog.
type LineItem struct {
	PK                 int64
	ProductID          string
	ProductName        string
	ProductSKU         string
	ProductDescription string
	UnitPrice          decimal.Decimal
	Quantity           int
	LineTotal          decimal.Decimal
	CreatedAt          time.Time
}

func (i LineItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ComputeTotal sums unit price times quantity over items. An empty list
// totals zero.
func ComputeTotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// NewOrder is the input accepted by the lifecycle engine on creation.
type NewOrder struct {
	CustomerID    string
	CustomerName  string
	CustomerEmail string
	Shipping      ShippingInfo
	Currency      string
	Items         []NewLineItem
}

type NewLineItem struct {
	ProductID          string
	ProductName        string
	ProductSKU         string
	ProductDescription string
	UnitPrice          decimal.Decimal
	Quantity           int
}

// Validate checks every creation constraint before anything is written.
func (n NewOrder) Validate() error {
	if strings.TrimSpace(n.CustomerID) == "" {
		return fmt.Errorf("%w: customer_id is required", ErrValidation)
	}
	if len(n.Currency) > 3 {
		return fmt.Errorf("%w: currency must be at most 3 characters", ErrValidation)
	}
	if len(n.Items) == 0 {
		return fmt.Errorf("%w: an order must contain at least one item", ErrValidation)
	}
	for i, it := range n.Items {
		if strings.TrimSpace(it.ProductID) == "" || strings.TrimSpace(it.ProductName) == "" {
			return fmt.Errorf("%w: item %d: product_id and product_name are required", ErrValidation, i)
		}
		if !it.UnitPrice.IsPositive() {
			return fmt.Errorf("%w: item %d: product_price must be greater than 0", ErrValidation, i)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: item %d: quantity must be greater than 0", ErrValidation, i)
		}
	}
	return nil
}

// Build turns a validated NewOrder into a pending Order with its line totals
// and order total computed.
func (n NewOrder) Build(orderID string, now time.Time) *Order {
	currency := n.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	items := make([]LineItem, len(n.Items))
	for i, it := range n.Items {
		items[i] = LineItem{
			ProductID:          it.ProductID,
			ProductName:        it.ProductName,
			ProductSKU:         it.ProductSKU,
			ProductDescription: it.ProductDescription,
			UnitPrice:          it.UnitPrice,
			Quantity:           it.Quantity,
			CreatedAt:          now,
		}
		items[i].LineTotal = items[i].Subtotal()
	}

	return &Order{
		OrderID:       orderID,
		CustomerID:    n.CustomerID,
		CustomerName:  n.CustomerName,
		CustomerEmail: n.CustomerEmail,
		Shipping:      n.Shipping,
		Currency:      currency,
		TotalAmount:   ComputeTotal(items),
		Status:        StatusPending,
		Items:         items,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Patch carries the fields a direct order update may change. Nil means
// "leave as is".
type Patch struct {
	CustomerName       *string
	CustomerEmail      *string
	ShippingAddress    *string
	ShippingCity       *string
	ShippingPostalCode *string
	ShippingCountry    *string
}

// Snapshot returns the current values of every patchable field.
func (o *Order) Snapshot() map[string]any {
	return map[string]any{
		FieldCustomerName:       o.CustomerName,
		FieldCustomerEmail:      o.CustomerEmail,
		FieldShippingAddress:    o.Shipping.Address,
		FieldShippingCity:       o.Shipping.City,
		FieldShippingPostalCode: o.Shipping.PostalCode,
		FieldShippingCountry:    o.Shipping.Country,
	}
}

// Apply assigns the set fields of p and returns them keyed by field name.
func (o *Order) Apply(p Patch) map[string]any {
	changes := make(map[string]any)
	set := func(field string, dst *string, v *string) {
		if v == nil {
			return
		}
		*dst = *v
		changes[field] = *v
	}
	set(FieldCustomerName, &o.CustomerName, p.CustomerName)
	set(FieldCustomerEmail, &o.CustomerEmail, p.CustomerEmail)
	set(FieldShippingAddress, &o.Shipping.Address, p.ShippingAddress)
	set(FieldShippingCity, &o.Shipping.City, p.ShippingCity)
	set(FieldShippingPostalCode, &o.Shipping.PostalCode, p.ShippingPostalCode)
	set(FieldShippingCountry, &o.Shipping.Country, p.ShippingCountry)
	return changes
}

// Field names of the mutable order columns.
const (
	FieldCustomerName       = "customer_name"
	FieldCustomerEmail      = "customer_email"
	FieldShippingAddress    = "shipping_address"
	FieldShippingCity       = "shipping_city"
	FieldShippingPostalCode = "shipping_postal_code"
	FieldShippingCountry    = "shipping_country"
	FieldStatus             = "status"
	FieldUpdatedAt          = "updated_at"
	FieldShippedAt          = "shipped_at"
	FieldDeliveredAt        = "delivered_at"
)

// Anonymized customer values written when the owning customer is deleted.
const AnonymizedCustomerEmail = "deleted.customer@anonymous.invalid"

func AnonymizedCustomerName(customerID string) string {
	return fmt.Sprintf("Deleted customer (%s)", customerID)
}

// Summary is the list representation of an order.
type Summary struct {
	PK           int64
	OrderID      string
	CustomerID   string
	CustomerName string
	TotalAmount  decimal.Decimal
	Status       OrderStatus
	ItemsCount   int
	CreatedAt    time.Time
}
