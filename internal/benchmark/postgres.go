package benchmark

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	sqlStore
}

// NewPostgresStore connects to dsn and applies migrations
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{sqlStore{db: db, bind: dollarPlaceholders}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS sweep_runs (
			id BIGSERIAL PRIMARY KEY,
			variant TEXT NOT NULL,
			commit_hash TEXT NOT NULL DEFAULT '',
			created_at_ns BIGINT NOT NULL,
			cases TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sweep_runs_variant ON sweep_runs (variant, created_at_ns);`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			slog.Debug("postgres migration step failed", "error", err)
			return err
		}
	}
	return nil
}
