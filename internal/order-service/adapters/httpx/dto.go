package httpx

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/orders-service/internal/order-service/domain"
)

type CreateOrderRequest struct {
	CustomerID         string               `json:"customer_id"`
	CustomerName       string               `json:"customer_name"`
	CustomerEmail      string               `json:"customer_email"`
	ShippingAddress    string               `json:"shipping_address"`
	ShippingCity       string               `json:"shipping_city"`
	ShippingPostalCode string               `json:"shipping_postal_code"`
	ShippingCountry    string               `json:"shipping_country"`
	Currency           string               `json:"currency"`
	Items              []CreateOrderItemDTO `json:"items"`
}

// CreateOrderItemDTO accepts product_price as a JSON number or string.
type CreateOrderItemDTO struct {
	ProductID          string          `json:"product_id"`
	ProductName        string          `json:"product_name"`
	ProductSKU         string          `json:"product_sku"`
	ProductDescription string          `json:"product_description"`
	ProductPrice       decimal.Decimal `json:"product_price"`
	Quantity           int             `json:"quantity"`
}

func (r CreateOrderRequest) toDomain() domain.NewOrder {
	items := make([]domain.NewLineItem, len(r.Items))
	for i, it := range r.Items {
		items[i] = domain.NewLineItem{
			ProductID:          it.ProductID,
			ProductName:        it.ProductName,
			ProductSKU:         it.ProductSKU,
			ProductDescription: it.ProductDescription,
			UnitPrice:          it.ProductPrice,
			Quantity:           it.Quantity,
		}
	}
	return domain.NewOrder{
		CustomerID:    r.CustomerID,
		CustomerName:  r.CustomerName,
		CustomerEmail: r.CustomerEmail,
		Shipping: domain.ShippingInfo{
			Address:    r.ShippingAddress,
			City:       r.ShippingCity,
			PostalCode: r.ShippingPostalCode,
			Country:    r.ShippingCountry,
		},
		Currency: r.Currency,
		Items:    items,
	}
}

// UpdateOrderRequest lists the only fields a direct update may change.
type UpdateOrderRequest struct {
	CustomerName       *string `json:"customer_name"`
	CustomerEmail      *string `json:"customer_email"`
	ShippingAddress    *string `json:"shipping_address"`
	ShippingCity       *string `json:"shipping_city"`
	ShippingPostalCode *string `json:"shipping_postal_code"`
	ShippingCountry    *string `json:"shipping_country"`
}

func (r UpdateOrderRequest) toDomain() domain.Patch {
	return domain.Patch{
		CustomerName:       r.CustomerName,
		CustomerEmail:      r.CustomerEmail,
		ShippingAddress:    r.ShippingAddress,
		ShippingCity:       r.ShippingCity,
		ShippingPostalCode: r.ShippingPostalCode,
		ShippingCountry:    r.ShippingCountry,
	}
}

type StatusUpdateRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes"`
}

type OrderResponse struct {
	ID                 int64               `json:"id"`
	OrderID            string              `json:"order_id"`
	CustomerID         string              `json:"customer_id"`
	CustomerName       string              `json:"customer_name"`
	CustomerEmail      string              `json:"customer_email"`
	ShippingAddress    string              `json:"shipping_address"`
	ShippingCity       string              `json:"shipping_city"`
	ShippingPostalCode string              `json:"shipping_postal_code"`
	ShippingCountry    string              `json:"shipping_country"`
	Currency           string              `json:"currency"`
	TotalAmount        decimal.Decimal     `json:"total_amount"`
	Status             string              `json:"status"`
	Items              []OrderItemResponse `json:"items"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
	ShippedAt          *time.Time          `json:"shipped_at"`
	DeliveredAt        *time.Time          `json:"delivered_at"`
}

type OrderItemResponse struct {
	ID                 int64           `json:"id"`
	ProductID          string          `json:"product_id"`
	ProductName        string          `json:"product_name"`
	ProductSKU         string          `json:"product_sku"`
	ProductDescription string          `json:"product_description"`
	ProductPrice       decimal.Decimal `json:"product_price"`
	Quantity           int             `json:"quantity"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	CreatedAt          time.Time       `json:"created_at"`
}

type OrderSummaryResponse struct {
	ID           int64           `json:"id"`
	OrderID      string          `json:"order_id"`
	CustomerID   string          `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Status       string          `json:"status"`
	ItemsCount   int             `json:"items_count"`
	CreatedAt    time.Time       `json:"created_at"`
}

type OrderEventResponse struct {
	ID        int64           `json:"id"`
	OrderID   string          `json:"order_id"`
	EventType string          `json:"event_type"`
	EventData json.RawMessage `json:"event_data"`
	CreatedAt time.Time       `json:"created_at"`
	CreatedBy string          `json:"created_by"`
	TraceID   string          `json:"trace_id,omitempty"`
	SpanID    string          `json:"span_id,omitempty"`
}

type StatsResponse struct {
	TotalOrders       int                     `json:"total_orders"`
	TotalRevenue      decimal.Decimal         `json:"total_revenue"`
	AverageOrderValue decimal.Decimal         `json:"average_order_value"`
	OrdersByStatus    map[string]int          `json:"orders_by_status"`
	RecentOrdersCount int                     `json:"recent_orders_count"`
	TopCustomers      []CustomerStatsResponse `json:"top_customers"`
}

type CustomerStatsResponse struct {
	CustomerID   string          `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	OrderCount   int             `json:"order_count"`
	TotalSpent   decimal.Decimal `json:"total_spent"`
}

type DeleteResponse struct {
	Message string `json:"message"`
	OrderID string `json:"order_id"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Database  string `json:"database,omitempty"`
	Messaging string `json:"messaging,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func mapOrderToResponse(o *domain.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemResponse{
			ID:                 it.PK,
			ProductID:          it.ProductID,
			ProductName:        it.ProductName,
			ProductSKU:         it.ProductSKU,
			ProductDescription: it.ProductDescription,
			ProductPrice:       it.UnitPrice,
			Quantity:           it.Quantity,
			Subtotal:           it.LineTotal,
			CreatedAt:          it.CreatedAt,
		}
	}
	return OrderResponse{
		ID:                 o.PK,
		OrderID:            o.OrderID,
		CustomerID:         o.CustomerID,
		CustomerName:       o.CustomerName,
		CustomerEmail:      o.CustomerEmail,
		ShippingAddress:    o.Shipping.Address,
		ShippingCity:       o.Shipping.City,
		ShippingPostalCode: o.Shipping.PostalCode,
		ShippingCountry:    o.Shipping.Country,
		Currency:           o.Currency,
		TotalAmount:        o.TotalAmount,
		Status:             string(o.Status),
		Items:              items,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
		ShippedAt:          o.ShippedAt,
		DeliveredAt:        o.DeliveredAt,
	}
}

func mapSummaries(in []domain.Summary) []OrderSummaryResponse {
	out := make([]OrderSummaryResponse, len(in))
	for i, s := range in {
		out[i] = OrderSummaryResponse{
			ID:           s.PK,
			OrderID:      s.OrderID,
			CustomerID:   s.CustomerID,
			CustomerName: s.CustomerName,
			TotalAmount:  s.TotalAmount,
			Status:       string(s.Status),
			ItemsCount:   s.ItemsCount,
			CreatedAt:    s.CreatedAt,
		}
	}
	return out
}

func mapEvents(in []domain.AuditEvent) []OrderEventResponse {
	out := make([]OrderEventResponse, len(in))
	for i, e := range in {
		data := json.RawMessage(e.Data)
		if !json.Valid(data) {
			data = json.RawMessage("{}")
		}
		out[i] = OrderEventResponse{
			ID:        e.ID,
			OrderID:   e.OrderID,
			EventType: e.Kind,
			EventData: data,
			CreatedAt: e.CreatedAt,
			CreatedBy: e.CreatedBy,
			TraceID:   e.TraceID,
			SpanID:    e.SpanID,
		}
	}
	return out
}

func mapStats(s domain.Stats) StatsResponse {
	top := make([]CustomerStatsResponse, len(s.TopCustomers))
	for i, c := range s.TopCustomers {
		top[i] = CustomerStatsResponse{
			CustomerID:   c.CustomerID,
			CustomerName: c.CustomerName,
			OrderCount:   c.OrderCount,
			TotalSpent:   c.TotalSpent,
		}
	}
	return StatsResponse{
		TotalOrders:       s.TotalOrders,
		TotalRevenue:      s.TotalRevenue,
		AverageOrderValue: s.AverageOrderValue,
		OrdersByStatus:    s.OrdersByStatus,
		RecentOrdersCount: s.RecentOrdersCount,
		TopCustomers:      top,
	}
}
