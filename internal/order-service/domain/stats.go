package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const (
	recentWindow    = 7 * 24 * time.Hour
	topCustomersMax = 10
	unknownCustomer = "Unknown name"
)

// ComputeStats aggregates order summaries. Customers are grouped by id and
// name, ranked by order count, then by amount spent.
func ComputeStats(orders []Summary, now time.Time) Stats {
	stats := Stats{
		TotalRevenue:      decimal.Zero,
		AverageOrderValue: decimal.Zero,
		OrdersByStatus:    make(map[string]int),
		TopCustomers:      []CustomerStats{},
	}

	type customerKey struct{ id, name string }
	byCustomer := make(map[customerKey]*CustomerStats)
	recentSince := now.Add(-recentWindow)

	for _, o := range orders {
		stats.TotalOrders++
		stats.TotalRevenue = stats.TotalRevenue.Add(o.TotalAmount)
		stats.OrdersByStatus[string(o.Status)]++
		if !o.CreatedAt.Before(recentSince) {
			stats.RecentOrdersCount++
		}

		key := customerKey{o.CustomerID, o.CustomerName}
		cs, ok := byCustomer[key]
		if !ok {
			name := o.CustomerName
			if name == "" {
				name = unknownCustomer
			}
			cs = &CustomerStats{CustomerID: o.CustomerID, CustomerName: name, TotalSpent: decimal.Zero}
			byCustomer[key] = cs
		}
		cs.OrderCount++
		cs.TotalSpent = cs.TotalSpent.Add(o.TotalAmount)
	}

	if stats.TotalOrders > 0 {
		stats.AverageOrderValue = stats.TotalRevenue.DivRound(decimal.NewFromInt(int64(stats.TotalOrders)), 2)
	}

	for _, cs := range byCustomer {
		stats.TopCustomers = append(stats.TopCustomers, *cs)
	}
	sort.Slice(stats.TopCustomers, func(i, j int) bool {
		a, b := stats.TopCustomers[i], stats.TopCustomers[j]
		if a.OrderCount != b.OrderCount {
			return a.OrderCount > b.OrderCount
		}
		if !a.TotalSpent.Equal(b.TotalSpent) {
			return a.TotalSpent.GreaterThan(b.TotalSpent)
		}
		return a.CustomerID < b.CustomerID
	})
	if len(stats.TopCustomers) > topCustomersMax {
		stats.TopCustomers = stats.TopCustomers[:topCustomersMax]
	}
	return stats
}
