package core

import "stockledger/pkg/domain"

type (
	OrderStatus     = domain.OrderStatus
	Product         = domain.Product
	Customer        = domain.Customer
	Order           = domain.Order
	OrderItem       = domain.OrderItem
	Result          = domain.Result
	RulesEngine     = domain.RulesEngine
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
)

const (
	OrderStatusCompleted = domain.OrderStatusCompleted
	OrderStatusCancelled = domain.OrderStatusCancelled
)

// NewRulesEngine constructs an empty rules engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewStockNonNegativeRule())
	engine.Register(NewPaidAmountNonNegativeRule())
	return engine
}
