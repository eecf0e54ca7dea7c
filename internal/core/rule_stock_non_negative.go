package core

import (
	"context"
	"fmt"

	"stockledger/pkg/domain"
)

// NewStockNonNegativeRule returns the default in-transaction rule blocking any
// commit that would leave a product with negative stock. The transactional
// decrement primitive already refuses oversells; this rule is the backstop for
// direct mutations that bypass it.
func NewStockNonNegativeRule() domain.Rule {
	return stockNonNegativeRule{}
}

type stockNonNegativeRule struct{}

func (stockNonNegativeRule) Name() string { return "stock_non_negative" }

func (stockNonNegativeRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, product := range view.ListProducts() {
		if product.Stock < 0 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "stock_non_negative",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("product %s (%s) has negative stock: %d", product.Name, product.ID, product.Stock),
				Entity:   domain.EntityProduct,
				EntityID: product.ID,
			})
		}
	}
	return res, nil
}
