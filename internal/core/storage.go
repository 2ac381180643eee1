package core

import (
	"context"
	"fmt"
	"os"

	"nutrilog/internal/infra/persistence/memory"
	"nutrilog/internal/infra/persistence/postgres"
	"nutrilog/internal/infra/persistence/sqlite"
	"nutrilog/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// PersistentStore is the catalog plus log store the service runs on.
type PersistentStore = domain.PersistentStore

// OpenPersistentStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	NUTRILOG_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	NUTRILOG_SQLITE_PATH: path to sqlite file (default ./nutrilog.db)
//	NUTRILOG_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore(ctx context.Context) (PersistentStore, error) {
	driver := os.Getenv("NUTRILOG_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		return sqlite.NewStore(os.Getenv("NUTRILOG_SQLITE_PATH"))
	case StoragePostgres:
		return postgres.NewStore(ctx, os.Getenv("NUTRILOG_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
