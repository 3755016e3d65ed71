package benchmark

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	DefaultJSONPath   = ".delaycalc/history.json"
	DefaultSQLitePath = ".delaycalc/history.db"
)

// StoreConfig holds configuration for the storage backend
type StoreConfig struct {
	Type             string // "json", "sqlite" or "postgres"
	ConnectionString string // File path for JSON/SQLite, DSN for Postgres
}

// NewStore creates a new Store instance based on the provided configuration
func NewStore(config StoreConfig) (Store, error) {
	switch strings.ToLower(config.Type) {
	case "postgres", "postgresql":
		if config.ConnectionString == "" {
			return nil, fmt.Errorf("postgres connection string is required")
		}
		return NewPostgresStore(config.ConnectionString)
	case "sqlite", "sqlite3":
		path := config.ConnectionString
		if path == "" {
			path = DefaultSQLitePath
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
		return NewSQLiteStore(path)
	case "json", "":
		path := config.ConnectionString
		if path == "" {
			path = DefaultJSONPath
		}
		return NewFileStore(path)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
}
