package core

import (
	"path/filepath"
	"testing"

	"stockledger/internal/infra/persistence/memory"
	"stockledger/internal/infra/persistence/sqlite"
)

func TestOpenPersistentStoreMemory(t *testing.T) {
	t.Setenv("STOCKLEDGER_STORAGE_DRIVER", "memory")
	store, err := OpenPersistentStore(NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
}

func TestOpenPersistentStoreSQLiteDefault(t *testing.T) {
	t.Setenv("STOCKLEDGER_STORAGE_DRIVER", "")
	t.Setenv("STOCKLEDGER_SQLITE_PATH", filepath.Join(t.TempDir(), "ledger.db"))
	store, err := OpenPersistentStore(NewDefaultRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	sqliteStore, ok := store.(*sqlite.Store)
	if !ok {
		t.Fatalf("expected sqlite store, got %T", store)
	}
	defer sqliteStore.Close()
}

func TestOpenPersistentStoreUnknownDriver(t *testing.T) {
	t.Setenv("STOCKLEDGER_STORAGE_DRIVER", "oracle")
	if _, err := OpenPersistentStore(NewDefaultRulesEngine()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
