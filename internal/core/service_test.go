package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stockledger/pkg/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	return NewInMemoryService(NewDefaultRulesEngine(), opts...)
}

func seedProduct(t *testing.T, svc *Service, name, price string, stock int) Product {
	t.Helper()
	product, _, err := svc.CreateProduct(context.Background(), CreateProductInput{
		Name:  name,
		Price: dec(price),
		Stock: stock,
	})
	if err != nil {
		t.Fatalf("create product %s: %v", name, err)
	}
	return product
}

func seedCustomer(t *testing.T, svc *Service, name string) Customer {
	t.Helper()
	customer, _, err := svc.CreateCustomer(context.Background(), CreateCustomerInput{FullName: name})
	if err != nil {
		t.Fatalf("create customer %s: %v", name, err)
	}
	return customer
}

func TestCreateProductValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input CreateProductInput
	}{
		{"short name", CreateProductInput{Name: "ab", Price: dec("5"), Stock: 1}},
		{"zero price", CreateProductInput{Name: "Valid Name", Price: decimal.Zero, Stock: 1}},
		{"negative price", CreateProductInput{Name: "Valid Name", Price: dec("-1"), Stock: 1}},
		{"negative stock", CreateProductInput{Name: "Valid Name", Price: dec("5"), Stock: -1}},
	}
	for _, tc := range cases {
		if _, _, err := svc.CreateProduct(ctx, tc.input); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		} else {
			var vErr ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("%s: expected ValidationError, got %v", tc.name, err)
			}
		}
	}

	product, _, err := svc.CreateProduct(ctx, CreateProductInput{Name: "  Layer Feed  ", Price: dec("30"), Stock: 5})
	if err != nil {
		t.Fatalf("valid product rejected: %v", err)
	}
	if product.Name != "Layer Feed" {
		t.Fatalf("expected trimmed name, got %q", product.Name)
	}
}

func TestCreateCustomerValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	bad := "12345"
	if _, _, err := svc.CreateCustomer(ctx, CreateCustomerInput{FullName: "Jane Doe", PhoneNumber: &bad}); err == nil {
		t.Fatalf("expected short phone to be rejected")
	}
	alpha := "07123abc456"
	if _, _, err := svc.CreateCustomer(ctx, CreateCustomerInput{FullName: "Jane Doe", PhoneNumber: &alpha}); err == nil {
		t.Fatalf("expected non-digit phone to be rejected")
	}
	if _, _, err := svc.CreateCustomer(ctx, CreateCustomerInput{FullName: "ab"}); err == nil {
		t.Fatalf("expected short name to be rejected")
	}

	good := "+254 711 000 111"
	customer, _, err := svc.CreateCustomer(ctx, CreateCustomerInput{FullName: "Jane Doe", PhoneNumber: &good})
	if err != nil {
		t.Fatalf("valid customer rejected: %v", err)
	}
	if customer.PhoneNumber == nil || *customer.PhoneNumber != "+254711000111" {
		t.Fatalf("expected normalized phone, got %v", customer.PhoneNumber)
	}
}

func TestCustomerNamesAreUnique(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seedCustomer(t, svc, "Ahmed Mohamed")

	_, _, err := svc.CreateCustomer(ctx, CreateCustomerInput{FullName: "Ahmed Mohamed"})
	var dupErr domain.DuplicateCustomerError
	if !errors.As(err, &dupErr) || dupErr.FullName != "Ahmed Mohamed" {
		t.Fatalf("expected DuplicateCustomerError, got %v", err)
	}
	if customers := svc.ListCustomers(ctx); len(customers) != 1 {
		t.Fatalf("duplicate name committed: %+v", customers)
	}

	other := seedCustomer(t, svc, "Fatima Ali")
	_, _, err = svc.UpdateCustomer(ctx, other.ID, func(c *Customer) error {
		c.FullName = "Ahmed Mohamed"
		return nil
	})
	if !errors.As(err, &dupErr) {
		t.Fatalf("expected rename onto taken name to fail, got %v", err)
	}
	if got, _ := svc.GetCustomer(ctx, other.ID); got.FullName != "Fatima Ali" {
		t.Fatalf("rename leaked through: %+v", got)
	}

	// Updating without changing the name must not trip the guard.
	phone := "0501234567"
	if _, _, err := svc.UpdateCustomer(ctx, other.ID, func(c *Customer) error {
		c.PhoneNumber = &phone
		return nil
	}); err != nil {
		t.Fatalf("same-name update rejected: %v", err)
	}
}

func TestPlaceOrderHappyPath(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	feed := seedProduct(t, svc, "Layer Feed", "30", 10)
	mash := seedProduct(t, svc, "Chick Mash", "18.50", 4)
	customer := seedCustomer(t, svc, "Amina Yusuf")

	order, _, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
		CustomerID: customer.ID,
		PaidAmount: dec("50"),
		Notes:      "weekly delivery",
		Lines: []OrderLineInput{
			{ProductID: mash.ID, Quantity: 2},
			{ProductID: feed.ID, Quantity: 3},
		},
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if order.Status != OrderStatusCompleted {
		t.Fatalf("expected default completed status, got %s", order.Status)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(order.Items))
	}
	if !order.TotalPrice().Equal(dec("127")) {
		t.Fatalf("order total = %s, want 127", order.TotalPrice())
	}
	if !order.RemainingAmount().Equal(dec("77")) {
		t.Fatalf("remaining = %s, want 77", order.RemainingAmount())
	}

	if p, _ := svc.GetProduct(ctx, feed.ID); p.Stock != 7 {
		t.Fatalf("feed stock = %d, want 7", p.Stock)
	}
	if p, _ := svc.GetProduct(ctx, mash.ID); p.Stock != 2 {
		t.Fatalf("mash stock = %d, want 2", p.Stock)
	}
}

func TestPlaceOrderSnapshotsPrice(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	feed := seedProduct(t, svc, "Layer Feed", "30", 10)
	customer := seedCustomer(t, svc, "Amina Yusuf")

	order, _, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
		CustomerID: customer.ID,
		Lines:      []OrderLineInput{{ProductID: feed.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	if _, _, err := svc.UpdateProduct(ctx, feed.ID, func(p *Product) error {
		p.Price = dec("45")
		return nil
	}); err != nil {
		t.Fatalf("update price: %v", err)
	}

	stored, _ := svc.GetOrder(ctx, order.ID)
	if !stored.Items[0].Price.Equal(dec("30")) {
		t.Fatalf("line price drifted to %s after catalog change", stored.Items[0].Price)
	}
	if !stored.TotalPrice().Equal(dec("30")) {
		t.Fatalf("order total drifted to %s", stored.TotalPrice())
	}
}

func TestPlaceOrderValidationErrors(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	feed := seedProduct(t, svc, "Layer Feed", "30", 10)
	customer := seedCustomer(t, svc, "Amina Yusuf")

	_, _, err := svc.PlaceOrder(ctx, PlaceOrderRequest{CustomerID: customer.ID})
	var emptyErr domain.EmptyOrderError
	if !errors.As(err, &emptyErr) {
		t.Fatalf("expected EmptyOrderError, got %v", err)
	}

	_, _, err = svc.PlaceOrder(ctx, PlaceOrderRequest{
		CustomerID: customer.ID,
		Lines:      []OrderLineInput{{ProductID: feed.ID, Quantity: 0}},
	})
	var qtyErr domain.InvalidQuantityError
	if !errors.As(err, &qtyErr) {
		t.Fatalf("expected InvalidQuantityError, got %v", err)
	}

	_, _, err = svc.PlaceOrder(ctx, PlaceOrderRequest{
		CustomerID: customer.ID,
		Lines: []OrderLineInput{
			{ProductID: feed.ID, Quantity: 1},
			{ProductID: feed.ID, Quantity: 2},
		},
	})
	var dupErr domain.DuplicateProductError
	if !errors.As(err, &dupErr) {
		t.Fatalf("expected DuplicateProductError, got %v", err)
	}

	_, _, err = svc.PlaceOrder(ctx, PlaceOrderRequest{
		CustomerID: "missing",
		Lines:      []OrderLineInput{{ProductID: feed.ID, Quantity: 1}},
	})
	var nfErr domain.NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected NotFoundError for customer, got %v", err)
	}

	_, _, err = svc.PlaceOrder(ctx, PlaceOrderRequest{
		CustomerID: customer.ID,
		Lines:      []OrderLineInput{{ProductID: "missing", Quantity: 1}},
	})
	var pnfErr domain.ProductNotFoundError
	if !errors.As(err, &pnfErr) {
		t.Fatalf("expected ProductNotFoundError, got %v", err)
	}

	_, _, err = svc.PlaceOrder(ctx, PlaceOrderRequest{
		CustomerID: customer.ID,
		PaidAmount: dec("-5"),
		Lines:      []OrderLineInput{{ProductID: feed.ID, Quantity: 1}},
	})
	var vErr ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for negative payment, got %v", err)
	}
}

func TestPlaceOrderInsufficientStockLeavesNothingBehind(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	feed := seedProduct(t, svc, "Layer Feed", "30", 10)
	mash := seedProduct(t, svc, "Chick Mash", "18", 1)
	customer := seedCustomer(t, svc, "Amina Yusuf")

	_, _, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
		CustomerID: customer.ID,
		Lines: []OrderLineInput{
			{ProductID: feed.ID, Quantity: 5},
			{ProductID: mash.ID, Quantity: 3},
		},
	})
	var stockErr domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.Requested != 3 || stockErr.Available != 1 {
		t.Fatalf("unexpected shortfall %+v", stockErr)
	}

	// The partial decrement on the first line must not survive.
	if p, _ := svc.GetProduct(ctx, feed.ID); p.Stock != 10 {
		t.Fatalf("feed stock = %d after failed placement, want 10", p.Stock)
	}
	if orders := svc.ListOrders(ctx, OrderFilter{}); len(orders) != 0 {
		t.Fatalf("failed placement recorded an order: %+v", orders)
	}
}

func TestDeleteOrderRestoresStock(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	feed := seedProduct(t, svc, "Layer Feed", "30", 10)
	customer := seedCustomer(t, svc, "Amina Yusuf")

	order, _, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
		CustomerID: customer.ID,
		Lines:      []OrderLineInput{{ProductID: feed.ID, Quantity: 4}},
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if p, _ := svc.GetProduct(ctx, feed.ID); p.Stock != 6 {
		t.Fatalf("stock after placement = %d, want 6", p.Stock)
	}

	if _, err := svc.DeleteOrder(ctx, order.ID); err != nil {
		t.Fatalf("delete order: %v", err)
	}
	if p, _ := svc.GetProduct(ctx, feed.ID); p.Stock != 10 {
		t.Fatalf("stock after delete = %d, want 10", p.Stock)
	}
	if _, ok := svc.GetOrder(ctx, order.ID); ok {
		t.Fatalf("order still present after delete")
	}

	var nfErr domain.NotFoundError
	if _, err := svc.DeleteOrder(ctx, order.ID); !errors.As(err, &nfErr) {
		t.Fatalf("expected NotFoundError deleting twice, got %v", err)
	}
}

func TestUpdateOrderHeaderOnly(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	feed := seedProduct(t, svc, "Layer Feed", "30", 10)
	customer := seedCustomer(t, svc, "Amina Yusuf")

	order, _, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
		CustomerID: customer.ID,
		Lines:      []OrderLineInput{{ProductID: feed.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	cancelled := OrderStatusCancelled
	paid := dec("60")
	notes := "settled in cash"
	updated, _, err := svc.UpdateOrder(ctx, order.ID, UpdateOrderRequest{
		Status:     &cancelled,
		PaidAmount: &paid,
		Notes:      &notes,
	})
	if err != nil {
		t.Fatalf("update order: %v", err)
	}
	if updated.Status != OrderStatusCancelled || !updated.PaidAmount.Equal(dec("60")) || updated.Notes != notes {
		t.Fatalf("header update not applied: %+v", updated)
	}
	if len(updated.Items) != 1 || updated.Items[0].Quantity != 2 {
		t.Fatalf("line items changed by header update: %+v", updated.Items)
	}
	// Header updates never touch stock.
	if p, _ := svc.GetProduct(ctx, feed.ID); p.Stock != 8 {
		t.Fatalf("stock changed by header update: %d", p.Stock)
	}

	bogus := OrderStatus("shipped")
	if _, _, err := svc.UpdateOrder(ctx, order.ID, UpdateOrderRequest{Status: &bogus}); err == nil {
		t.Fatalf("expected invalid status to be rejected")
	}
	negative := dec("-1")
	if _, _, err := svc.UpdateOrder(ctx, order.ID, UpdateOrderRequest{PaidAmount: &negative}); err == nil {
		t.Fatalf("expected negative paid amount to be rejected")
	}
}

func TestDeleteGuardsThroughService(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	feed := seedProduct(t, svc, "Layer Feed", "30", 10)
	customer := seedCustomer(t, svc, "Amina Yusuf")

	if _, _, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
		CustomerID: customer.ID,
		Lines:      []OrderLineInput{{ProductID: feed.ID, Quantity: 1}},
	}); err != nil {
		t.Fatalf("place order: %v", err)
	}

	var refErr domain.ReferencedError
	if _, err := svc.DeleteProduct(ctx, feed.ID); !errors.As(err, &refErr) {
		t.Fatalf("expected ReferencedError deleting ordered product, got %v", err)
	}
	if _, err := svc.DeleteCustomer(ctx, customer.ID); !errors.As(err, &refErr) {
		t.Fatalf("expected ReferencedError deleting customer with orders, got %v", err)
	}
}

func TestCustomerDebt(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	feed := seedProduct(t, svc, "Layer Feed", "30", 20)
	amina := seedCustomer(t, svc, "Amina Yusuf")
	ben := seedCustomer(t, svc, "Ben Otieno")

	if _, _, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
		CustomerID: amina.ID,
		PaidAmount: dec("10"),
		Lines:      []OrderLineInput{{ProductID: feed.ID, Quantity: 1}},
	}); err != nil {
		t.Fatalf("order one: %v", err)
	}
	if _, _, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
		CustomerID: amina.ID,
		PaidAmount: dec("100"),
		Lines:      []OrderLineInput{{ProductID: feed.ID, Quantity: 2}},
	}); err != nil {
		t.Fatalf("order two: %v", err)
	}

	// 20 outstanding on the first order; the overpaid second contributes zero.
	debt, err := svc.CustomerDebt(ctx, amina.ID)
	if err != nil {
		t.Fatalf("debt: %v", err)
	}
	if !debt.Equal(dec("20")) {
		t.Fatalf("debt = %s, want 20", debt)
	}

	debt, err = svc.CustomerDebt(ctx, ben.ID)
	if err != nil {
		t.Fatalf("debt: %v", err)
	}
	if !debt.IsZero() {
		t.Fatalf("debt for customer without orders = %s, want 0", debt)
	}

	var nfErr domain.NotFoundError
	if _, err := svc.CustomerDebt(ctx, "missing"); !errors.As(err, &nfErr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestRestockProduct(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	feed := seedProduct(t, svc, "Layer Feed", "30", 2)

	updated, _, err := svc.RestockProduct(ctx, feed.ID, 8)
	if err != nil {
		t.Fatalf("restock: %v", err)
	}
	if updated.Stock != 10 {
		t.Fatalf("stock = %d, want 10", updated.Stock)
	}
	if _, _, err := svc.RestockProduct(ctx, feed.ID, 0); err == nil {
		t.Fatalf("expected zero quantity restock to fail")
	}
}

func TestListProductsFilterAndSort(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seedProduct(t, svc, "Layer Feed", "30", 10)
	seedProduct(t, svc, "Chick Mash", "18", 0)
	dairy, _, err := svc.CreateProduct(ctx, CreateProductInput{
		Name:        "Dairy Meal",
		Description: "high-yield dairy ration",
		Price:       dec("28"),
		Stock:       5,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	all := svc.ListProducts(ctx, ProductFilter{})
	if len(all) != 3 || all[0].Name != "Chick Mash" || all[2].Name != "Layer Feed" {
		t.Fatalf("unexpected name order: %+v", all)
	}

	inStock := svc.ListProducts(ctx, ProductFilter{InStockOnly: true})
	if len(inStock) != 2 {
		t.Fatalf("expected 2 in-stock products, got %d", len(inStock))
	}

	byPrice := svc.ListProducts(ctx, ProductFilter{SortBy: ProductSortPrice})
	if !byPrice[0].Price.Equal(dec("18")) || !byPrice[2].Price.Equal(dec("30")) {
		t.Fatalf("unexpected price order: %+v", byPrice)
	}

	search := svc.ListProducts(ctx, ProductFilter{Search: "dairy"})
	if len(search) != 1 || search[0].ID != dairy.ID {
		t.Fatalf("unexpected search result: %+v", search)
	}
}

func TestListOrdersFilters(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	step := 0
	clock := ClockFunc(func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Hour)
	})
	svc := newTestService(t, WithClock(clock))

	ctx := context.Background()
	feed := seedProduct(t, svc, "Layer Feed", "30", 20)
	amina := seedCustomer(t, svc, "Amina Yusuf")
	ben := seedCustomer(t, svc, "Ben Otieno")

	for i, customerID := range []string{amina.ID, ben.ID, amina.ID} {
		notes := ""
		if i == 1 {
			notes = "Friday delivery"
		}
		if _, _, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
			CustomerID: customerID,
			Notes:      notes,
			Lines:      []OrderLineInput{{ProductID: feed.ID, Quantity: 1}},
		}); err != nil {
			t.Fatalf("place order: %v", err)
		}
	}

	byCustomer := svc.ListOrders(ctx, OrderFilter{CustomerID: amina.ID})
	if len(byCustomer) != 2 {
		t.Fatalf("expected 2 orders for customer, got %d", len(byCustomer))
	}
	completed := svc.ListOrders(ctx, OrderFilter{Status: OrderStatusCompleted})
	if len(completed) != 3 {
		t.Fatalf("expected 3 completed orders, got %d", len(completed))
	}
	searched := svc.ListOrders(ctx, OrderFilter{Search: "friday"})
	if len(searched) != 1 || searched[0].CustomerID != ben.ID {
		t.Fatalf("unexpected search result: %+v", searched)
	}
	all := svc.ListOrders(ctx, OrderFilter{})
	for i := 1; i < len(all); i++ {
		if all[i-1].CreatedAt.Before(all[i].CreatedAt) {
			t.Fatalf("orders not newest-first: %+v", all)
		}
	}
}

func TestConcurrentPlacementsNeverOversell(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	feed := seedProduct(t, svc, "Layer Feed", "30", 10)
	amina := seedCustomer(t, svc, "Amina Hassan")

	const workers = 25
	var wg sync.WaitGroup
	placed := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
				CustomerID: amina.ID,
				PaidAmount: dec("30"),
				Lines:      []OrderLineInput{{ProductID: feed.ID, Quantity: 1}},
			})
			if err == nil {
				placed <- struct{}{}
				return
			}
			var stockErr domain.InsufficientStockError
			if !errors.As(err, &stockErr) {
				t.Errorf("unexpected placement error: %v", err)
			}
		}()
	}
	wg.Wait()
	close(placed)

	succeeded := 0
	for range placed {
		succeeded++
	}
	if succeeded != 10 {
		t.Fatalf("expected exactly 10 placements, got %d", succeeded)
	}
	product, ok := svc.GetProduct(ctx, feed.ID)
	if !ok || product.Stock != 0 {
		t.Fatalf("expected stock drained to 0, got %+v", product)
	}
	if orders := svc.ListOrders(ctx, OrderFilter{}); len(orders) != 10 {
		t.Fatalf("expected 10 orders, got %d", len(orders))
	}
}
