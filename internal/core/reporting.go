package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStats aggregates order figures for the dashboard.
type OrderStats struct {
	TotalOrders  int
	TotalRevenue decimal.Decimal
	TotalPaid    decimal.Decimal
	Outstanding  decimal.Decimal
	AverageOrder decimal.Decimal
	ByStatus     map[OrderStatus]int
}

// StatsFilter bounds the stats window. Nil bounds are open.
type StatsFilter struct {
	From *time.Time
	To   *time.Time
}

// OrderStatsReport computes dashboard aggregates over orders placed within
// the filter window. Revenue sums order totals from snapshotted line prices;
// outstanding folds each order's remaining amount, which floors at zero per
// order so overpayments never offset other orders' debt.
func (s *Service) OrderStatsReport(ctx context.Context, filter StatsFilter) (OrderStats, error) {
	stats := OrderStats{
		TotalRevenue: decimal.Zero,
		TotalPaid:    decimal.Zero,
		Outstanding:  decimal.Zero,
		AverageOrder: decimal.Zero,
		ByStatus:     make(map[OrderStatus]int),
	}
	err := s.store.View(ctx, func(view TransactionView) error {
		for _, order := range view.ListOrders() {
			if filter.From != nil && order.CreatedAt.Before(*filter.From) {
				continue
			}
			if filter.To != nil && order.CreatedAt.After(*filter.To) {
				continue
			}
			stats.TotalOrders++
			stats.TotalRevenue = stats.TotalRevenue.Add(order.TotalPrice())
			stats.TotalPaid = stats.TotalPaid.Add(order.PaidAmount)
			stats.Outstanding = stats.Outstanding.Add(order.RemainingAmount())
			stats.ByStatus[order.Status]++
		}
		return nil
	})
	if err != nil {
		return OrderStats{}, err
	}
	if stats.TotalOrders > 0 {
		stats.AverageOrder = stats.TotalRevenue.Div(decimal.NewFromInt(int64(stats.TotalOrders))).Round(2)
	}
	return stats, nil
}
