package core

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"stockledger/pkg/domain"
)

// OrderLineInput is one requested product/quantity pair.
type OrderLineInput struct {
	ProductID string
	Quantity  int
}

// PlaceOrderRequest carries everything needed to place an order.
type PlaceOrderRequest struct {
	CustomerID string
	PaidAmount decimal.Decimal
	Notes      string
	// Status defaults to completed when empty.
	Status OrderStatus
	Lines  []OrderLineInput
}

func validatePlaceOrderRequest(req PlaceOrderRequest) error {
	if req.CustomerID == "" {
		return ValidationError{Field: "customer_id", Message: "is required"}
	}
	if len(req.Lines) == 0 {
		return domain.EmptyOrderError{}
	}
	if req.PaidAmount.IsNegative() {
		return ValidationError{Field: "paid_amount", Message: "must not be negative"}
	}
	switch req.Status {
	case "", OrderStatusCompleted, OrderStatusCancelled:
	default:
		return ValidationError{Field: "status", Message: "must be completed or cancelled"}
	}
	seen := make(map[string]struct{}, len(req.Lines))
	for _, line := range req.Lines {
		if line.ProductID == "" {
			return ValidationError{Field: "product_id", Message: "is required"}
		}
		if line.Quantity < 1 {
			return domain.InvalidQuantityError{ProductID: line.ProductID, Quantity: line.Quantity}
		}
		if _, dup := seen[line.ProductID]; dup {
			return domain.DuplicateProductError{ProductID: line.ProductID}
		}
		seen[line.ProductID] = struct{}{}
	}
	return nil
}

// PlaceOrder atomically checks and decrements stock for every requested line,
// snapshots each product's current price, and records the order. Either every
// line succeeds and the order commits, or nothing changes. Lines are processed
// in product-id order so placements touch products deterministically.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (Order, Result, error) {
	var placed Order
	var res Result
	err := s.run(ctx, "place_order", func(ctx context.Context) (string, error) {
		if err := validatePlaceOrderRequest(req); err != nil {
			return "", err
		}
		lines := make([]OrderLineInput, len(req.Lines))
		copy(lines, req.Lines)
		sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

		status := req.Status
		if status == "" {
			status = OrderStatusCompleted
		}

		var txErr error
		res, txErr = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			if _, ok := tx.FindCustomer(req.CustomerID); !ok {
				return domain.NotFoundError{Entity: domain.EntityCustomer, ID: req.CustomerID}
			}
			items := make([]OrderItem, 0, len(lines))
			for _, line := range lines {
				product, err := tx.DecreaseProductStock(line.ProductID, line.Quantity)
				if err != nil {
					return err
				}
				items = append(items, OrderItem{
					ProductID: product.ID,
					Quantity:  line.Quantity,
					Price:     product.Price,
				})
			}
			var err error
			placed, err = tx.CreateOrder(Order{
				CustomerID: req.CustomerID,
				Status:     status,
				PaidAmount: req.PaidAmount,
				Notes:      req.Notes,
				Items:      items,
			})
			return err
		})
		return placed.ID, txErr
	})
	return placed, res, err
}

// UpdateOrderRequest mutates order header fields. Nil fields are left
// untouched. Line items are immutable after placement; correcting a mistaken
// order means deleting it and placing it again.
type UpdateOrderRequest struct {
	CustomerID *string
	Status     *OrderStatus
	PaidAmount *decimal.Decimal
	Notes      *string
}

// UpdateOrder applies header-level changes to an existing order.
func (s *Service) UpdateOrder(ctx context.Context, id string, req UpdateOrderRequest) (Order, Result, error) {
	var updated Order
	var res Result
	err := s.run(ctx, "update_order", func(ctx context.Context) (string, error) {
		var txErr error
		res, txErr = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateOrder(id, func(o *Order) error {
				if req.CustomerID != nil {
					o.CustomerID = *req.CustomerID
				}
				if req.Status != nil {
					switch *req.Status {
					case OrderStatusCompleted, OrderStatusCancelled:
						o.Status = *req.Status
					default:
						return ValidationError{Field: "status", Message: "must be completed or cancelled"}
					}
				}
				if req.PaidAmount != nil {
					if req.PaidAmount.IsNegative() {
						return ValidationError{Field: "paid_amount", Message: "must not be negative"}
					}
					o.PaidAmount = *req.PaidAmount
				}
				if req.Notes != nil {
					o.Notes = *req.Notes
				}
				return nil
			})
			return err
		})
		return id, txErr
	})
	return updated, res, err
}

// DeleteOrder removes an order and returns every line's quantity to the
// owning product's stock in the same transaction. The delete guard on
// products means every referenced product still exists here.
func (s *Service) DeleteOrder(ctx context.Context, id string) (Result, error) {
	var res Result
	err := s.run(ctx, "delete_order", func(ctx context.Context) (string, error) {
		var txErr error
		res, txErr = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			order, ok := tx.FindOrder(id)
			if !ok {
				return domain.NotFoundError{Entity: domain.EntityOrder, ID: id}
			}
			for _, item := range order.Items {
				if _, err := tx.IncreaseProductStock(item.ProductID, item.Quantity); err != nil {
					return err
				}
			}
			return tx.DeleteOrder(id)
		})
		return id, txErr
	})
	return res, err
}
