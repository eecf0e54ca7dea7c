package core

import (
	"context"
	"fmt"

	"stockledger/pkg/domain"
)

// NewPaidAmountNonNegativeRule returns the in-transaction rule blocking orders
// recorded with a negative paid amount.
func NewPaidAmountNonNegativeRule() domain.Rule {
	return paidAmountNonNegativeRule{}
}

type paidAmountNonNegativeRule struct{}

func (paidAmountNonNegativeRule) Name() string { return "paid_amount_non_negative" }

func (paidAmountNonNegativeRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, order := range view.ListOrders() {
		if order.PaidAmount.IsNegative() {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "paid_amount_non_negative",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("order %s has negative paid amount: %s", order.ID, order.PaidAmount),
				Entity:   domain.EntityOrder,
				EntityID: order.ID,
			})
		}
	}
	return res, nil
}
