package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DataDirName is the per-project data directory.
const DataDirName = ".darkforest"

// DBFileName is the SQLite database file inside the data directory.
const DBFileName = "darkforest.db"

// GlobalDataPath returns ~/.darkforest (%USERPROFILE%\.darkforest on Windows).
func GlobalDataPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, DataDirName), nil
}

// LocalDataPath returns the data directory under root.
func LocalDataPath(root string) string {
	return filepath.Join(root, DataDirName)
}

// DefaultDBPath returns the database path under root.
func DefaultDBPath(root string) string {
	return filepath.Join(LocalDataPath(root), DBFileName)
}

// Open returns the store selected by driver. driver is "sqlite" (or empty)
// or "memory". For sqlite an empty dbPath means DefaultDBPath(root).
func Open(driver, root, dbPath string) (Store, error) {
	switch driver {
	case "", "sqlite":
		if dbPath == "" {
			dbPath = DefaultDBPath(root)
		}
		return NewSQLiteStore(dbPath)
	case "memory":
		return NewInMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q (valid: sqlite, memory)", driver)
	}
}
