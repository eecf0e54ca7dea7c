package domain

import "fmt"

// NotFoundError reports that a referenced entity does not exist.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ReferencedError reports that an entity cannot be deleted because another
// record still references it. Deletion of referenced products or customers
// must fail rather than cascade, preserving historical order integrity.
type ReferencedError struct {
	Entity EntityType
	ID     string
	By     EntityType
	ByID   string
}

func (e ReferencedError) Error() string {
	return fmt.Sprintf("%s %q still referenced by %s %q", e.Entity, e.ID, e.By, e.ByID)
}

// ProductNotFoundError reports an order line naming a product id that does
// not resolve to any catalog record.
type ProductNotFoundError struct {
	ProductID string
}

func (e ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %q not found", e.ProductID)
}

// InsufficientStockError reports a requested quantity exceeding the
// product's current stock. Requested and Available let callers render the
// exact shortfall.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %q: requested %d, available %d", e.Name, e.Requested, e.Available)
}

// DuplicateProductError reports the same product id appearing more than
// once in a single placement request. Duplicate lines are rejected, not
// merged; the caller is expected to combine quantities beforehand.
type DuplicateProductError struct {
	ProductID string
}

func (e DuplicateProductError) Error() string {
	return fmt.Sprintf("product %q listed more than once in order", e.ProductID)
}

// DuplicateCustomerError reports an attempt to store a second customer
// under an already-taken full name. Full names are the human key for
// customers, so the store keeps them unique.
type DuplicateCustomerError struct {
	FullName string
}

func (e DuplicateCustomerError) Error() string {
	return fmt.Sprintf("customer %q already exists", e.FullName)
}

// InvalidQuantityError reports a non-positive line quantity.
type InvalidQuantityError struct {
	ProductID string
	Quantity  int
}

func (e InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d for product %q: must be at least 1", e.Quantity, e.ProductID)
}

// EmptyOrderError reports a placement request with no line items.
type EmptyOrderError struct{}

func (EmptyOrderError) Error() string {
	return "order must contain at least one line item"
}
