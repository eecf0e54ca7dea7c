// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by stockledger.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityProduct identifies a catalog product record.
	EntityProduct EntityType = "product"
	// EntityCustomer identifies a customer record.
	EntityCustomer EntityType = "customer"
	// EntityOrder identifies an order record together with its owned line items.
	EntityOrder EntityType = "order"
)

// OrderStatus enumerates the order lifecycle states.
type OrderStatus string

// Canonical order statuses. An order is recorded as completed at placement
// time; cancellation is an explicit bookkeeping state.
const (
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Product represents a sellable catalog item with an on-hand stock count.
type Product struct {
	Base
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	ImageKey    *string         `json:"image_key,omitempty"`
}

// HasStock reports whether the product can satisfy the requested quantity.
func (p Product) HasStock(quantity int) bool {
	return p.Stock >= quantity
}

// Customer represents a buyer tracked for order and debt bookkeeping.
type Customer struct {
	Base
	FullName    string  `json:"full_name"`
	PhoneNumber *string `json:"phone_number,omitempty"`
}

// Order aggregates line items sold to a customer in a single placement.
// The order exclusively owns its items: they are created with it, stored
// inside it, and removed with it.
type Order struct {
	Base
	CustomerID string          `json:"customer_id"`
	Status     OrderStatus     `json:"status"`
	PaidAmount decimal.Decimal `json:"paid_amount"`
	Notes      string          `json:"notes"`
	Items      []OrderItem     `json:"items"`
}

// OrderItem is one product/quantity line within an order. Price is the
// product's price snapshotted at placement time; later catalog price
// changes never alter it.
type OrderItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// LineTotal returns quantity × snapshotted price.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// TotalPrice sums the order's line totals.
func (o Order) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// RemainingAmount returns the unpaid portion of the order, floored at zero.
// Overpayment is not tracked as credit; PaidAmount keeps the raw figure.
func (o Order) RemainingAmount() decimal.Decimal {
	remaining := o.TotalPrice().Sub(o.PaidAmount)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// IsFullyPaid reports whether nothing remains unpaid on the order.
func (o Order) IsFullyPaid() bool {
	return o.RemainingAmount().IsZero()
}

// TotalDebt folds the remaining amount of every order belonging to the
// customer. All debt figures displayed anywhere derive from this one
// computation.
func TotalDebt(orders []Order, customerID string) decimal.Decimal {
	debt := decimal.Zero
	for _, order := range orders {
		if order.CustomerID != customerID {
			continue
		}
		debt = debt.Add(order.RemainingAmount())
	}
	return debt
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
