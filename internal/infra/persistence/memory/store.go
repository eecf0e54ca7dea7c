// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"stockledger/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Product aliases domain.Product for in-memory persistence operations.
	Product = domain.Product
	// Customer aliases domain.Customer.
	Customer = domain.Customer
	// Order aliases domain.Order together with its owned line items.
	Order = domain.Order
	// OrderItem aliases domain.OrderItem.
	OrderItem = domain.OrderItem
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore abstraction.
	PersistentStore = domain.PersistentStore
)

type memoryState struct {
	products  map[string]Product
	customers map[string]Customer
	orders    map[string]Order
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Products  map[string]Product  `json:"products"`
	Customers map[string]Customer `json:"customers"`
	Orders    map[string]Order    `json:"orders"`
}

func newMemoryState() memoryState {
	return memoryState{
		products:  make(map[string]Product),
		customers: make(map[string]Customer),
		orders:    make(map[string]Order),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Products:  make(map[string]Product, len(state.products)),
		Customers: make(map[string]Customer, len(state.customers)),
		Orders:    make(map[string]Order, len(state.orders)),
	}
	for k, v := range state.products {
		s.Products[k] = cloneProduct(v)
	}
	for k, v := range state.customers {
		s.Customers[k] = cloneCustomer(v)
	}
	for k, v := range state.orders {
		s.Orders[k] = cloneOrder(v)
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Products {
		state.products[k] = cloneProduct(v)
	}
	for k, v := range s.Customers {
		state.customers[k] = cloneCustomer(v)
	}
	for k, v := range s.Orders {
		state.orders[k] = cloneOrder(v)
	}
	return state
}

// migrateSnapshot normalizes snapshots loaded from older payloads: nil maps
// become empty and order lines missing a status fall back to completed.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Products == nil {
		snapshot.Products = map[string]Product{}
	}
	if snapshot.Customers == nil {
		snapshot.Customers = map[string]Customer{}
	}
	if snapshot.Orders == nil {
		snapshot.Orders = map[string]Order{}
	}
	for id, order := range snapshot.Orders {
		if _, ok := snapshot.Customers[order.CustomerID]; !ok {
			delete(snapshot.Orders, id)
			continue
		}
		if order.Status == "" {
			order.Status = domain.OrderStatusCompleted
			snapshot.Orders[id] = order
		}
	}
	return snapshot
}

func (s memoryState) clone() memoryState {
	out := newMemoryState()
	for k, v := range s.products {
		out.products[k] = cloneProduct(v)
	}
	for k, v := range s.customers {
		out.customers[k] = cloneCustomer(v)
	}
	for k, v := range s.orders {
		out.orders[k] = cloneOrder(v)
	}
	return out
}

func cloneProduct(p Product) Product {
	if p.ImageKey != nil {
		key := *p.ImageKey
		p.ImageKey = &key
	}
	return p
}

func cloneCustomer(c Customer) Customer {
	if c.PhoneNumber != nil {
		phone := *c.PhoneNumber
		c.PhoneNumber = &phone
	}
	return c
}

func cloneOrder(o Order) Order {
	if o.Items != nil {
		items := make([]OrderItem, len(o.Items))
		copy(items, o.Items)
		o.Items = items
	}
	return o
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc replaces the time provider. A nil argument restores the default.
func (s *Store) SetNowFunc(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	s.nowFn = now
}

// transaction represents a mutation set applied to the store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

// transactionView exposes a read-only snapshot of the transactional state to rules.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListProducts returns all products within the transaction snapshot.
func (v transactionView) ListProducts() []Product {
	out := make([]Product, 0, len(v.state.products))
	for _, p := range v.state.products {
		out = append(out, cloneProduct(p))
	}
	return out
}

// ListCustomers returns all customers.
func (v transactionView) ListCustomers() []Customer {
	out := make([]Customer, 0, len(v.state.customers))
	for _, c := range v.state.customers {
		out = append(out, cloneCustomer(c))
	}
	return out
}

// ListOrders returns all orders.
func (v transactionView) ListOrders() []Order {
	out := make([]Order, 0, len(v.state.orders))
	for _, o := range v.state.orders {
		out = append(out, cloneOrder(o))
	}
	return out
}

// FindProduct looks up a product by id.
func (v transactionView) FindProduct(id string) (Product, bool) {
	p, ok := v.state.products[id]
	if !ok {
		return Product{}, false
	}
	return cloneProduct(p), true
}

// FindCustomer looks up a customer by id.
func (v transactionView) FindCustomer(id string) (Customer, bool) {
	c, ok := v.state.customers[id]
	if !ok {
		return Customer{}, false
	}
	return cloneCustomer(c), true
}

// FindOrder looks up an order by id.
func (v transactionView) FindOrder(id string) (Order, bool) {
	o, ok := v.state.orders[id]
	if !ok {
		return Order{}, false
	}
	return cloneOrder(o), true
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The store-wide lock serializes writers, so a committed transaction observes
// no concurrent stock changes between its reads and its writes.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindProduct exposes product lookup within the transaction scope.
func (tx *transaction) FindProduct(id string) (Product, bool) {
	p, ok := tx.state.products[id]
	if !ok {
		return Product{}, false
	}
	return cloneProduct(p), true
}

// FindCustomer exposes customer lookup within the transaction scope.
func (tx *transaction) FindCustomer(id string) (Customer, bool) {
	c, ok := tx.state.customers[id]
	if !ok {
		return Customer{}, false
	}
	return cloneCustomer(c), true
}

// FindOrder exposes order lookup within the transaction scope.
func (tx *transaction) FindOrder(id string) (Order, bool) {
	o, ok := tx.state.orders[id]
	if !ok {
		return Order{}, false
	}
	return cloneOrder(o), true
}

// CreateProduct stores a new product within the transaction.
func (tx *transaction) CreateProduct(p Product) (Product, error) {
	if p.ID == "" {
		p.ID = tx.store.newID()
	}
	if _, exists := tx.state.products[p.ID]; exists {
		return Product{}, fmt.Errorf("product %q already exists", p.ID)
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.products[p.ID] = cloneProduct(p)
	tx.recordChange(Change{Entity: domain.EntityProduct, Action: domain.ActionCreate, After: cloneProduct(p)})
	return cloneProduct(p), nil
}

// UpdateProduct mutates a product using the provided mutator function.
func (tx *transaction) UpdateProduct(id string, mutator func(*Product) error) (Product, error) {
	current, ok := tx.state.products[id]
	if !ok {
		return Product{}, domain.NotFoundError{Entity: domain.EntityProduct, ID: id}
	}
	before := cloneProduct(current)
	if err := mutator(&current); err != nil {
		return Product{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.products[id] = cloneProduct(current)
	tx.recordChange(Change{Entity: domain.EntityProduct, Action: domain.ActionUpdate, Before: before, After: cloneProduct(current)})
	return cloneProduct(current), nil
}

// DeleteProduct removes a product from the transaction state. Products
// referenced by an order line cannot be deleted; the order keeps its
// snapshotted price history.
func (tx *transaction) DeleteProduct(id string) error {
	current, ok := tx.state.products[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityProduct, ID: id}
	}
	for _, order := range tx.state.orders {
		for _, item := range order.Items {
			if item.ProductID == id {
				return domain.ReferencedError{Entity: domain.EntityProduct, ID: id, By: domain.EntityOrder, ByID: order.ID}
			}
		}
	}
	delete(tx.state.products, id)
	tx.recordChange(Change{Entity: domain.EntityProduct, Action: domain.ActionDelete, Before: cloneProduct(current)})
	return nil
}

// DecreaseProductStock atomically checks availability and decrements stock.
// The check and the write happen against the same transactional state, so a
// committed transaction can never drive stock below zero.
func (tx *transaction) DecreaseProductStock(id string, quantity int) (Product, error) {
	current, ok := tx.state.products[id]
	if !ok {
		return Product{}, domain.ProductNotFoundError{ProductID: id}
	}
	if quantity < 1 {
		return Product{}, domain.InvalidQuantityError{ProductID: id, Quantity: quantity}
	}
	if !current.HasStock(quantity) {
		return Product{}, domain.InsufficientStockError{
			ProductID: id,
			Name:      current.Name,
			Requested: quantity,
			Available: current.Stock,
		}
	}
	before := cloneProduct(current)
	current.Stock -= quantity
	current.UpdatedAt = tx.now
	tx.state.products[id] = cloneProduct(current)
	tx.recordChange(Change{Entity: domain.EntityProduct, Action: domain.ActionUpdate, Before: before, After: cloneProduct(current)})
	return cloneProduct(current), nil
}

// IncreaseProductStock unconditionally adds quantity back to a product's
// stock, used when deleting an order.
func (tx *transaction) IncreaseProductStock(id string, quantity int) (Product, error) {
	current, ok := tx.state.products[id]
	if !ok {
		return Product{}, domain.ProductNotFoundError{ProductID: id}
	}
	if quantity < 1 {
		return Product{}, domain.InvalidQuantityError{ProductID: id, Quantity: quantity}
	}
	before := cloneProduct(current)
	current.Stock += quantity
	current.UpdatedAt = tx.now
	tx.state.products[id] = cloneProduct(current)
	tx.recordChange(Change{Entity: domain.EntityProduct, Action: domain.ActionUpdate, Before: before, After: cloneProduct(current)})
	return cloneProduct(current), nil
}

// CreateCustomer stores a new customer. Full names are unique across the
// ledger.
func (tx *transaction) CreateCustomer(c Customer) (Customer, error) {
	if c.ID == "" {
		c.ID = tx.store.newID()
	}
	if _, exists := tx.state.customers[c.ID]; exists {
		return Customer{}, fmt.Errorf("customer %q already exists", c.ID)
	}
	if err := tx.checkCustomerNameFree(c.FullName, c.ID); err != nil {
		return Customer{}, err
	}
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	tx.state.customers[c.ID] = cloneCustomer(c)
	tx.recordChange(Change{Entity: domain.EntityCustomer, Action: domain.ActionCreate, After: cloneCustomer(c)})
	return cloneCustomer(c), nil
}

// UpdateCustomer mutates an existing customer.
func (tx *transaction) UpdateCustomer(id string, mutator func(*Customer) error) (Customer, error) {
	current, ok := tx.state.customers[id]
	if !ok {
		return Customer{}, domain.NotFoundError{Entity: domain.EntityCustomer, ID: id}
	}
	before := cloneCustomer(current)
	if err := mutator(&current); err != nil {
		return Customer{}, err
	}
	if current.FullName != before.FullName {
		if err := tx.checkCustomerNameFree(current.FullName, id); err != nil {
			return Customer{}, err
		}
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.customers[id] = cloneCustomer(current)
	tx.recordChange(Change{Entity: domain.EntityCustomer, Action: domain.ActionUpdate, Before: before, After: cloneCustomer(current)})
	return cloneCustomer(current), nil
}

func (tx *transaction) checkCustomerNameFree(name, selfID string) error {
	for id, other := range tx.state.customers {
		if id != selfID && other.FullName == name {
			return domain.DuplicateCustomerError{FullName: name}
		}
	}
	return nil
}

// DeleteCustomer removes a customer from state. Customers with orders on
// file cannot be deleted.
func (tx *transaction) DeleteCustomer(id string) error {
	current, ok := tx.state.customers[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityCustomer, ID: id}
	}
	for _, order := range tx.state.orders {
		if order.CustomerID == id {
			return domain.ReferencedError{Entity: domain.EntityCustomer, ID: id, By: domain.EntityOrder, ByID: order.ID}
		}
	}
	delete(tx.state.customers, id)
	tx.recordChange(Change{Entity: domain.EntityCustomer, Action: domain.ActionDelete, Before: cloneCustomer(current)})
	return nil
}

// CreateOrder stores a new order with its line items.
func (tx *transaction) CreateOrder(o Order) (Order, error) {
	if o.ID == "" {
		o.ID = tx.store.newID()
	}
	if _, exists := tx.state.orders[o.ID]; exists {
		return Order{}, fmt.Errorf("order %q already exists", o.ID)
	}
	if _, ok := tx.state.customers[o.CustomerID]; !ok {
		return Order{}, domain.NotFoundError{Entity: domain.EntityCustomer, ID: o.CustomerID}
	}
	o.CreatedAt = tx.now
	o.UpdatedAt = tx.now
	tx.state.orders[o.ID] = cloneOrder(o)
	tx.recordChange(Change{Entity: domain.EntityOrder, Action: domain.ActionCreate, After: cloneOrder(o)})
	return cloneOrder(o), nil
}

// UpdateOrder mutates an existing order.
func (tx *transaction) UpdateOrder(id string, mutator func(*Order) error) (Order, error) {
	current, ok := tx.state.orders[id]
	if !ok {
		return Order{}, domain.NotFoundError{Entity: domain.EntityOrder, ID: id}
	}
	before := cloneOrder(current)
	if err := mutator(&current); err != nil {
		return Order{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	if _, ok := tx.state.customers[current.CustomerID]; !ok {
		return Order{}, domain.NotFoundError{Entity: domain.EntityCustomer, ID: current.CustomerID}
	}
	tx.state.orders[id] = cloneOrder(current)
	tx.recordChange(Change{Entity: domain.EntityOrder, Action: domain.ActionUpdate, Before: before, After: cloneOrder(current)})
	return cloneOrder(current), nil
}

// DeleteOrder removes an order and its owned line items from state.
func (tx *transaction) DeleteOrder(id string) error {
	current, ok := tx.state.orders[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityOrder, ID: id}
	}
	delete(tx.state.orders, id)
	tx.recordChange(Change{Entity: domain.EntityOrder, Action: domain.ActionDelete, Before: cloneOrder(current)})
	return nil
}

// GetProduct retrieves a product by ID.
func (s *Store) GetProduct(id string) (Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.products[id]
	if !ok {
		return Product{}, false
	}
	return cloneProduct(p), true
}

// ListProducts returns all products.
func (s *Store) ListProducts() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Product, 0, len(s.state.products))
	for _, p := range s.state.products {
		out = append(out, cloneProduct(p))
	}
	return out
}

// GetCustomer retrieves a customer by ID.
func (s *Store) GetCustomer(id string) (Customer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.state.customers[id]
	if !ok {
		return Customer{}, false
	}
	return cloneCustomer(c), true
}

// ListCustomers returns all customers.
func (s *Store) ListCustomers() []Customer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Customer, 0, len(s.state.customers))
	for _, c := range s.state.customers {
		out = append(out, cloneCustomer(c))
	}
	return out
}

// GetOrder retrieves an order by ID.
func (s *Store) GetOrder(id string) (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.state.orders[id]
	if !ok {
		return Order{}, false
	}
	return cloneOrder(o), true
}

// ListOrders returns all orders.
func (s *Store) ListOrders() []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Order, 0, len(s.state.orders))
	for _, o := range s.state.orders {
		out = append(out, cloneOrder(o))
	}
	return out
}
