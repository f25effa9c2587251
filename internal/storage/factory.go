package storage

import (
	"fmt"
)

// Driver names a Store implementation.
type Driver string

const (
	// DriverSQLite persists collections in a SQLite database file.
	DriverSQLite Driver = "sqlite"
	// DriverMemory keeps collections in memory. Good for tests and throwaway runs.
	DriverMemory Driver = "memory"
)

// New creates a Store for the given driver. path is ignored by the memory driver.
func New(driver string, path string) (Store, error) {
	switch Driver(driver) {
	case DriverSQLite, "":
		return NewSQLiteStore(path)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s (supported: sqlite, memory)", driver)
	}
}
