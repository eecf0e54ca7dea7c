package core

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stockledger/internal/blob"
	"stockledger/pkg/domain"
)

// Service exposes higher-level transactional operations over the catalog,
// customers, and orders. Every mutating operation runs inside a store
// transaction and is wrapped with tracing, metrics, and audit.
type Service struct {
	store   domain.PersistentStore
	blobs   blob.Store
	logger  Logger
	clock   Clock
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		logger:  noopLogger{},
		clock:   ClockFunc(func() time.Time { return time.Now().UTC() }),
		audit:   noopAuditRecorder{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
	}
	for _, opt := range opts {
		opt(s)
	}
	// Stores that stamp timestamps themselves follow the service clock.
	if setter, ok := store.(interface{ SetNowFunc(func() time.Time) }); ok {
		setter.SetNowFunc(s.clock.Now)
	}
	return s
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	return NewService(newMemoryStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

// CreateProduct validates and persists a new catalog product.
func (s *Service) CreateProduct(ctx context.Context, input CreateProductInput) (Product, Result, error) {
	var created Product
	var res Result
	err := s.run(ctx, "create_product", func(ctx context.Context) (string, error) {
		if err := validateProductInput(input); err != nil {
			return "", err
		}
		var txErr error
		res, txErr = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateProduct(Product{
				Name:        strings.TrimSpace(input.Name),
				Description: input.Description,
				Price:       input.Price,
				Stock:       input.Stock,
			})
			return err
		})
		return created.ID, txErr
	})
	return created, res, err
}

// UpdateProduct mutates a product using the provided mutator and re-validates
// the result before commit.
func (s *Service) UpdateProduct(ctx context.Context, id string, mutator func(*Product) error) (Product, Result, error) {
	var updated Product
	var res Result
	err := s.run(ctx, "update_product", func(ctx context.Context) (string, error) {
		var txErr error
		res, txErr = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateProduct(id, func(p *Product) error {
				if err := mutator(p); err != nil {
					return err
				}
				return validateProductInput(CreateProductInput{
					Name:        p.Name,
					Description: p.Description,
					Price:       p.Price,
					Stock:       p.Stock,
				})
			})
			return err
		})
		return id, txErr
	})
	return updated, res, err
}

// DeleteProduct removes a product. Deletion fails while any order line still
// references it.
func (s *Service) DeleteProduct(ctx context.Context, id string) (Result, error) {
	var res Result
	err := s.run(ctx, "delete_product", func(ctx context.Context) (string, error) {
		var txErr error
		res, txErr = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteProduct(id)
		})
		return id, txErr
	})
	return res, err
}

// RestockProduct adds quantity to a product's on-hand stock.
func (s *Service) RestockProduct(ctx context.Context, id string, quantity int) (Product, Result, error) {
	var updated Product
	var res Result
	err := s.run(ctx, "restock_product", func(ctx context.Context) (string, error) {
		var txErr error
		res, txErr = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.IncreaseProductStock(id, quantity)
			return err
		})
		return id, txErr
	})
	return updated, res, err
}

// GetProduct retrieves a product by id.
func (s *Service) GetProduct(_ context.Context, id string) (Product, bool) {
	return s.store.GetProduct(id)
}

// ProductSort selects the ordering of catalog listings.
type ProductSort string

const (
	// ProductSortName orders by case-insensitive product name.
	ProductSortName ProductSort = "name"
	// ProductSortPrice orders by ascending price.
	ProductSortPrice ProductSort = "price"
	// ProductSortStock orders by ascending stock count.
	ProductSortStock ProductSort = "stock"
)

// ProductFilter narrows and orders catalog listings.
type ProductFilter struct {
	// Search matches a case-insensitive substring of name or description.
	Search string
	// InStockOnly drops products with zero stock.
	InStockOnly bool
	// SortBy defaults to ProductSortName.
	SortBy ProductSort
}

// ListProducts returns catalog products matching the filter in a
// deterministic order.
func (s *Service) ListProducts(_ context.Context, filter ProductFilter) []Product {
	products := s.store.ListProducts()
	out := products[:0]
	needle := strings.ToLower(strings.TrimSpace(filter.Search))
	for _, p := range products {
		if filter.InStockOnly && p.Stock <= 0 {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(p.Name), needle) &&
			!strings.Contains(strings.ToLower(p.Description), needle) {
			continue
		}
		out = append(out, p)
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = ProductSortName
	}
	sort.SliceStable(out, func(i, j int) bool {
		switch sortBy {
		case ProductSortPrice:
			if !out[i].Price.Equal(out[j].Price) {
				return out[i].Price.LessThan(out[j].Price)
			}
		case ProductSortStock:
			if out[i].Stock != out[j].Stock {
				return out[i].Stock < out[j].Stock
			}
		}
		a := strings.ToLower(out[i].Name)
		b := strings.ToLower(out[j].Name)
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// CreateCustomer validates and persists a new customer.
func (s *Service) CreateCustomer(ctx context.Context, input CreateCustomerInput) (Customer, Result, error) {
	var created Customer
	var res Result
	err := s.run(ctx, "create_customer", func(ctx context.Context) (string, error) {
		if err := validateCustomerInput(input); err != nil {
			return "", err
		}
		var txErr error
		res, txErr = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateCustomer(Customer{
				FullName:    strings.TrimSpace(input.FullName),
				PhoneNumber: normalizePhone(input.PhoneNumber),
			})
			return err
		})
		return created.ID, txErr
	})
	return created, res, err
}

// UpdateCustomer mutates a customer and re-validates the result.
func (s *Service) UpdateCustomer(ctx context.Context, id string, mutator func(*Customer) error) (Customer, Result, error) {
	var updated Customer
	var res Result
	err := s.run(ctx, "update_customer", func(ctx context.Context) (string, error) {
		var txErr error
		res, txErr = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateCustomer(id, func(c *Customer) error {
				if err := mutator(c); err != nil {
					return err
				}
				return validateCustomerInput(CreateCustomerInput{
					FullName:    c.FullName,
					PhoneNumber: c.PhoneNumber,
				})
			})
			return err
		})
		return id, txErr
	})
	return updated, res, err
}

// DeleteCustomer removes a customer. Deletion fails while any order still
// references them.
func (s *Service) DeleteCustomer(ctx context.Context, id string) (Result, error) {
	var res Result
	err := s.run(ctx, "delete_customer", func(ctx context.Context) (string, error) {
		var txErr error
		res, txErr = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteCustomer(id)
		})
		return id, txErr
	})
	return res, err
}

// GetCustomer retrieves a customer by id.
func (s *Service) GetCustomer(_ context.Context, id string) (Customer, bool) {
	return s.store.GetCustomer(id)
}

// ListCustomers returns all customers ordered by name.
func (s *Service) ListCustomers(_ context.Context) []Customer {
	customers := s.store.ListCustomers()
	sort.SliceStable(customers, func(i, j int) bool {
		a := strings.ToLower(customers[i].FullName)
		b := strings.ToLower(customers[j].FullName)
		if a != b {
			return a < b
		}
		return customers[i].ID < customers[j].ID
	})
	return customers
}

// CustomerDebt computes the customer's outstanding balance across all of
// their orders. The customer must exist.
func (s *Service) CustomerDebt(ctx context.Context, id string) (decimal.Decimal, error) {
	debt := decimal.Zero
	err := s.store.View(ctx, func(view TransactionView) error {
		if _, ok := view.FindCustomer(id); !ok {
			return domain.NotFoundError{Entity: domain.EntityCustomer, ID: id}
		}
		debt = domain.TotalDebt(view.ListOrders(), id)
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return debt, nil
}

// GetOrder retrieves an order by id.
func (s *Service) GetOrder(_ context.Context, id string) (Order, bool) {
	return s.store.GetOrder(id)
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	CustomerID string
	Status     OrderStatus
	// Search matches case-insensitively against order id and notes.
	Search string
	// From and To bound CreatedAt inclusively when non-nil.
	From *time.Time
	To   *time.Time
}

// ListOrders returns orders matching the filter, newest first.
func (s *Service) ListOrders(_ context.Context, filter OrderFilter) []Order {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	orders := s.store.ListOrders()
	out := orders[:0]
	for _, o := range orders {
		if filter.CustomerID != "" && o.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(o.ID), search) &&
			!strings.Contains(strings.ToLower(o.Notes), search) {
			continue
		}
		if filter.From != nil && o.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && o.CreatedAt.After(*filter.To) {
			continue
		}
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
