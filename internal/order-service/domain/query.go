package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// Filter narrows order listings. Zero values mean "no constraint".
type Filter struct {
	Query      string
	CustomerID string
	Status     OrderStatus
	MinAmount  *decimal.Decimal
	MaxAmount  *decimal.Decimal
	From       *time.Time
	// Until is exclusive.
	Until *time.Time
	Skip  int
	Limit int
}

type Stats struct {
	TotalOrders       int
	TotalRevenue      decimal.Decimal
	AverageOrderValue decimal.Decimal
	OrdersByStatus    map[string]int
	RecentOrdersCount int
	TopCustomers      []CustomerStats
}

type CustomerStats struct {
	CustomerID   string
	CustomerName string
	OrderCount   int
	TotalSpent   decimal.Decimal
}

// Window returns the offset and page size to apply, clamping the limit to
// [1, MaxListLimit] and defaulting it to DefaultListLimit.
func (f Filter) Window() (skip, limit int) {
	skip, limit = f.Skip, f.Limit
	if skip < 0 {
		skip = 0
	}
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	return skip, limit
}
