package core

import (
	"fmt"
	"os"

	"stockledger/internal/infra/persistence/memory"
	"stockledger/internal/infra/persistence/postgres"
	"stockledger/internal/infra/persistence/sqlite"
	"stockledger/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenPersistentStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	STOCKLEDGER_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	STOCKLEDGER_SQLITE_PATH: path to sqlite file (default ./stockledger.db)
//	STOCKLEDGER_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore(engine *RulesEngine) (PersistentStore, error) {
	driver := os.Getenv("STOCKLEDGER_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return newMemoryStore(engine), nil
	case StorageSQLite:
		path := os.Getenv("STOCKLEDGER_SQLITE_PATH")
		return NewSQLiteStore(path, engine)
	case StoragePostgres:
		dsn := os.Getenv("STOCKLEDGER_POSTGRES_DSN")
		ps, err := NewPostgresStore(dsn, engine)
		if err != nil {
			return nil, err
		}
		return ps, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

func newMemoryStore(engine *domain.RulesEngine) *memory.Store {
	return memory.NewStore(engine)
}

// NewMemoryPersistentStore constructs an in-memory store without persistence.
func NewMemoryPersistentStore(engine *RulesEngine) *memory.Store {
	return newMemoryStore(engine)
}

// NewSQLiteStore constructs a SQLite-backed persistent store using the
// provided file path (may be empty for default) and rules engine.
func NewSQLiteStore(path string, engine *RulesEngine) (*sqlite.Store, error) {
	return sqlite.NewStore(path, engine)
}

// NewPostgresStore constructs a Postgres-backed store from the provided DSN.
func NewPostgresStore(dsn string, engine *RulesEngine) (*postgres.Store, error) {
	return postgres.NewStore(dsn, engine)
}
