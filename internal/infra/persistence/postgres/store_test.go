package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"stockledger/internal/infra/persistence/postgres/testutil"
	"stockledger/pkg/domain"
)

func TestNewStoreEnsuresTableAndLoadsSnapshot(t *testing.T) {
	db, conn := testutil.NewStubDB()
	payload, err := json.Marshal(map[string]domain.Product{
		"p1": {Base: domain.Base{ID: "p1"}, Name: "Layer Feed", Price: decimal.RequireFromString("30"), Stock: 7},
	})
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	conn.Seed("products", payload)

	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	product, ok := store.GetProduct("p1")
	if !ok || product.Stock != 7 {
		t.Fatalf("expected product hydrated from snapshot, got %+v ok=%v", product, ok)
	}
	var sawDDL bool
	for _, stmt := range conn.Execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE") {
			sawDDL = true
			break
		}
	}
	if !sawDDL {
		t.Fatalf("expected state table DDL, got execs: %v", conn.Execs)
	}
}

func TestRunInTransactionPersistsState(t *testing.T) {
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("ignored", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	var customerID string
	if _, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		customer, err := tx.CreateCustomer(domain.Customer{FullName: "Esther Moraa"})
		if err != nil {
			return err
		}
		customerID = customer.ID
		return nil
	}); err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}

	payload, ok := conn.Buckets["customers"]
	if !ok {
		t.Fatalf("expected customers bucket to persist, got %v", conn.Buckets)
	}
	var customers map[string]domain.Customer
	if err := json.Unmarshal(payload, &customers); err != nil {
		t.Fatalf("decode persisted customers: %v", err)
	}
	if _, ok := customers[customerID]; !ok {
		t.Fatalf("persisted payload missing customer %q: %v", customerID, customers)
	}
}

func TestRunInTransactionSurfacesPersistFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	conn.FailBegin = true
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateCustomer(domain.Customer{FullName: "Fail Case"})
		return err
	}); err == nil {
		t.Fatalf("expected persist failure to surface")
	}
}

func TestNewStorePingFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	if _, err := NewStore("", domain.NewRulesEngine()); err == nil {
		t.Fatalf("expected ping error")
	}
}
