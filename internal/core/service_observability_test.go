package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stockledger/pkg/domain"
)

type captureAuditRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) has(operation string, status AuditStatus) (AuditEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range c.entries {
		if entry.Operation == operation && entry.Status == status {
			return entry, true
		}
	}
	return AuditEntry{}, false
}

type metricsSample struct {
	operation string
	success   bool
}

type captureMetricsRecorder struct {
	mu      sync.Mutex
	samples []metricsSample
}

func (c *captureMetricsRecorder) Observe(_ context.Context, operation string, success bool, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = append(c.samples, metricsSample{operation: operation, success: success})
}

type captureSpan struct {
	operation string
	err       error
	ended     bool
}

func (s *captureSpan) End(err error) {
	s.err = err
	s.ended = true
}

type captureTracer struct {
	mu    sync.Mutex
	spans []*captureSpan
}

func (c *captureTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	span := &captureSpan{operation: operation}
	c.spans = append(c.spans, span)
	return ctx, span
}

type captureLogger struct {
	mu     sync.Mutex
	errors []string
	debugs []string
}

func (c *captureLogger) Debug(msg string, _ ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debugs = append(c.debugs, msg)
}
func (c *captureLogger) Info(string, ...any) {}
func (c *captureLogger) Warn(string, ...any) {}
func (c *captureLogger) Error(msg string, _ ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, msg)
}

func TestServiceObservabilityPipeline(t *testing.T) {
	audit := &captureAuditRecorder{}
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}
	logger := &captureLogger{}
	fixed := time.Date(2026, 4, 12, 8, 30, 0, 0, time.UTC)

	svc := newTestService(t,
		WithAuditRecorder(audit),
		WithMetricsRecorder(metrics),
		WithTracer(tracer),
		WithLogger(logger),
		WithClock(ClockFunc(func() time.Time { return fixed })),
	)
	ctx := context.Background()

	product, _, err := svc.CreateProduct(ctx, CreateProductInput{
		Name:  "Layer Feed",
		Price: decimal.RequireFromString("30"),
		Stock: 5,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	entry, ok := audit.has("create_product", AuditStatusSuccess)
	if !ok {
		t.Fatalf("missing create_product audit entry: %+v", audit.entries)
	}
	if entry.Entity != domain.EntityProduct || entry.Action != domain.ActionCreate {
		t.Fatalf("unexpected audit classification: %+v", entry)
	}
	if entry.EntityID != product.ID {
		t.Fatalf("audit entity id = %q, want %q", entry.EntityID, product.ID)
	}
	if !entry.Timestamp.Equal(fixed) {
		t.Fatalf("audit timestamp = %s, want injected clock time", entry.Timestamp)
	}

	if _, _, err := svc.UpdateProduct(ctx, "missing", func(*Product) error { return nil }); err == nil {
		t.Fatalf("expected update of missing product to fail")
	}
	entry, ok = audit.has("update_product", AuditStatusError)
	if !ok {
		t.Fatalf("missing update_product error entry: %+v", audit.entries)
	}
	if entry.Error == "" {
		t.Fatalf("error audit entry has empty error text")
	}

	var sawSuccess, sawFailure bool
	for _, sample := range metrics.samples {
		switch {
		case sample.operation == "create_product" && sample.success:
			sawSuccess = true
		case sample.operation == "update_product" && !sample.success:
			sawFailure = true
		}
	}
	if !sawSuccess || !sawFailure {
		t.Fatalf("metrics missing expected samples: %+v", metrics.samples)
	}

	var createSpan, failedSpan *captureSpan
	for _, span := range tracer.spans {
		switch span.operation {
		case "create_product":
			createSpan = span
		case "update_product":
			failedSpan = span
		}
	}
	if createSpan == nil || !createSpan.ended || createSpan.err != nil {
		t.Fatalf("create_product span not ended cleanly: %+v", createSpan)
	}
	if failedSpan == nil || !failedSpan.ended || failedSpan.err == nil {
		t.Fatalf("update_product span missing error: %+v", failedSpan)
	}

	if len(logger.errors) == 0 {
		t.Fatalf("failed operation produced no error log")
	}
	if len(logger.debugs) == 0 {
		t.Fatalf("successful operation produced no debug log")
	}
}

func TestAuditCoversEveryOperation(t *testing.T) {
	audit := &captureAuditRecorder{}
	svc := newTestService(t, WithAuditRecorder(audit))
	ctx := context.Background()

	feed := seedProduct(t, svc, "Layer Feed", "30", 10)
	customer := seedCustomer(t, svc, "Amina Yusuf")
	if _, _, err := svc.UpdateProduct(ctx, feed.ID, func(p *Product) error {
		p.Description = "20kg bag"
		return nil
	}); err != nil {
		t.Fatalf("update product: %v", err)
	}
	if _, _, err := svc.RestockProduct(ctx, feed.ID, 5); err != nil {
		t.Fatalf("restock: %v", err)
	}
	if _, _, err := svc.UpdateCustomer(ctx, customer.ID, func(c *Customer) error {
		c.FullName = "Amina A. Yusuf"
		return nil
	}); err != nil {
		t.Fatalf("update customer: %v", err)
	}
	order, _, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
		CustomerID: customer.ID,
		Lines:      []OrderLineInput{{ProductID: feed.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	notes := "paid on pickup"
	if _, _, err := svc.UpdateOrder(ctx, order.ID, UpdateOrderRequest{Notes: &notes}); err != nil {
		t.Fatalf("update order: %v", err)
	}
	if _, err := svc.DeleteOrder(ctx, order.ID); err != nil {
		t.Fatalf("delete order: %v", err)
	}
	if _, err := svc.DeleteCustomer(ctx, customer.ID); err != nil {
		t.Fatalf("delete customer: %v", err)
	}
	if _, err := svc.DeleteProduct(ctx, feed.ID); err != nil {
		t.Fatalf("delete product: %v", err)
	}

	for _, operation := range []string{
		"create_product", "update_product", "restock_product", "delete_product",
		"create_customer", "update_customer", "delete_customer",
		"place_order", "update_order", "delete_order",
	} {
		if _, ok := audit.has(operation, AuditStatusSuccess); !ok {
			t.Fatalf("no success audit entry for %s", operation)
		}
	}
}

func TestNoopObservabilityDefaults(t *testing.T) {
	// A service without options must not panic on any observability path.
	svc := newTestService(t)
	ctx := context.Background()

	feed := seedProduct(t, svc, "Layer Feed", "30", 1)
	if _, _, err := svc.UpdateProduct(ctx, "missing", func(*Product) error { return nil }); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := svc.DeleteProduct(ctx, feed.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
}
