package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestOrderTotalPrice(t *testing.T) {
	order := Order{Items: []OrderItem{
		{ProductID: "p1", Quantity: 3, Price: decimal.RequireFromString("12.50")},
		{ProductID: "p2", Quantity: 1, Price: decimal.RequireFromString("4.25")},
	}}
	if got := order.TotalPrice(); !got.Equal(decimal.RequireFromString("41.75")) {
		t.Fatalf("total price = %s, want 41.75", got)
	}
}

func TestOrderTotalPriceEmpty(t *testing.T) {
	var order Order
	if got := order.TotalPrice(); !got.IsZero() {
		t.Fatalf("empty order total = %s, want 0", got)
	}
}

func TestOrderRemainingAmountClampsToZero(t *testing.T) {
	order := Order{
		Items:      []OrderItem{{ProductID: "p1", Quantity: 2, Price: decimal.RequireFromString("10")}},
		PaidAmount: decimal.RequireFromString("25"),
	}
	if got := order.RemainingAmount(); !got.IsZero() {
		t.Fatalf("remaining = %s, want 0 for overpayment", got)
	}
	if !order.IsFullyPaid() {
		t.Fatalf("overpaid order should report fully paid")
	}
}

func TestOrderRemainingAmountPartial(t *testing.T) {
	order := Order{
		Items:      []OrderItem{{ProductID: "p1", Quantity: 2, Price: decimal.RequireFromString("10")}},
		PaidAmount: decimal.RequireFromString("7.50"),
	}
	if got := order.RemainingAmount(); !got.Equal(decimal.RequireFromString("12.50")) {
		t.Fatalf("remaining = %s, want 12.50", got)
	}
	if order.IsFullyPaid() {
		t.Fatalf("partially paid order should not report fully paid")
	}
}

func TestProductHasStock(t *testing.T) {
	product := Product{Stock: 3}
	if !product.HasStock(3) {
		t.Fatalf("expected stock 3 to satisfy quantity 3")
	}
	if product.HasStock(4) {
		t.Fatalf("expected stock 3 to reject quantity 4")
	}
}

func TestTotalDebtSumsOnlyCustomerOrders(t *testing.T) {
	orders := []Order{
		{
			CustomerID: "c1",
			Items:      []OrderItem{{ProductID: "p1", Quantity: 1, Price: decimal.RequireFromString("30")}},
			PaidAmount: decimal.RequireFromString("10"),
		},
		{
			CustomerID: "c1",
			Items:      []OrderItem{{ProductID: "p2", Quantity: 2, Price: decimal.RequireFromString("5")}},
			PaidAmount: decimal.RequireFromString("25"),
		},
		{
			CustomerID: "c2",
			Items:      []OrderItem{{ProductID: "p3", Quantity: 1, Price: decimal.RequireFromString("100")}},
		},
	}
	// First order owes 20, second is overpaid and contributes zero.
	if got := TotalDebt(orders, "c1"); !got.Equal(decimal.RequireFromString("20")) {
		t.Fatalf("debt for c1 = %s, want 20", got)
	}
	if got := TotalDebt(orders, "missing"); !got.IsZero() {
		t.Fatalf("debt for unknown customer = %s, want 0", got)
	}
}
