// Package contracts holds the wire shapes exchanged over the event channel.
package contracts

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Outbound topics.
const (
	EventOrderCreated       = "order.created"
	EventOrderUpdated       = "order.updated"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCancelled     = "order.cancelled"
)

// Inbound topics.
const (
	EventCustomerCreated = "customer.created"
	EventCustomerUpdated = "customer.updated"
	EventCustomerDeleted = "customer.deleted"
	EventProductCreated  = "product.created"
	EventProductUpdated  = "product.updated"
	EventProductDeleted  = "product.deleted"
)

// InboundTopics lists every topic the reconciler subscribes to.
func InboundTopics() []string {
	return []string{
		EventCustomerCreated, EventCustomerUpdated, EventCustomerDeleted,
		EventProductCreated, EventProductUpdated, EventProductDeleted,
	}
}

// Envelope wraps every message on the channel. Sibling services stamp their
// name in "service"; this service writes "service_name".
type Envelope struct {
	EventType   string          `json:"event_type"`
	ServiceName string          `json:"service_name,omitempty"`
	Service     string          `json:"service,omitempty"`
	Data        json.RawMessage `json:"data"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Source returns the name of the emitting service.
func (e Envelope) Source() string {
	return source(e.ServiceName, e.Service)
}

// Inbound is the decoding side of Envelope for messages from sibling
// services. Producers stamp "timestamp" as naive ISO strings, zoned ones or
// epoch numbers, so it is kept raw and never parsed.
type Inbound struct {
	EventType   string          `json:"event_type"`
	ServiceName string          `json:"service_name,omitempty"`
	Service     string          `json:"service,omitempty"`
	Data        json.RawMessage `json:"data"`
	Timestamp   json.RawMessage `json:"timestamp,omitempty"`
}

func (e Inbound) Source() string {
	return source(e.ServiceName, e.Service)
}

func source(serviceName, service string) string {
	if serviceName != "" {
		return serviceName
	}
	return service
}

type ItemSummary struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

type OrderCreated struct {
	OrderID     string          `json:"order_id"`
	CustomerID  string          `json:"customer_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      string          `json:"status"`
	Items       []ItemSummary   `json:"items"`
	CreatedAt   time.Time       `json:"created_at"`
}

type OrderUpdated struct {
	OrderID    string         `json:"order_id"`
	CustomerID string         `json:"customer_id"`
	Changes    map[string]any `json:"changes"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type OrderStatusChanged struct {
	OrderID    string    `json:"order_id"`
	CustomerID string    `json:"customer_id"`
	OldStatus  string    `json:"old_status"`
	NewStatus  string    `json:"new_status"`
	Notes      *string   `json:"notes"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type OrderCancelled struct {
	OrderID     string    `json:"order_id"`
	CustomerID  string    `json:"customer_id"`
	Reason      *string   `json:"reason"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// Keyed is implemented by payloads that must stay ordered per entity. The
// key selects the partition on transports that have them.
type Keyed interface {
	PartitionKey() string
}

func (e OrderCreated) PartitionKey() string       { return e.OrderID }
func (e OrderUpdated) PartitionKey() string       { return e.OrderID }
func (e OrderStatusChanged) PartitionKey() string { return e.OrderID }
func (e OrderCancelled) PartitionKey() string     { return e.OrderID }
func (e CustomerData) PartitionKey() string       { return e.CustomerID }

// CustomerData is the data block of customer.* events. Name and Username
// are optional on updates.
type CustomerData struct {
	CustomerID string  `json:"customer_id"`
	Name       *string `json:"name,omitempty"`
	Username   *string `json:"username,omitempty"`
}

type ProductData struct {
	ProductID string `json:"product_id"`
}
