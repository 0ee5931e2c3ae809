// Package snapshot persists the last hydrated dataset in a local sqlite file
// so the admin tool can start read-only when the server is unreachable.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sitekeeper/internal/models"

	_ "modernc.org/sqlite"
)

// Store keeps one JSON-encoded document list per collection name.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the snapshot database at dsn and applies migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save upserts the document list for one collection.
func (s *Store) Save(ctx context.Context, name string, docs []models.Document) error {
	if docs == nil {
		docs = []models.Document{}
	}
	data, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	query := `INSERT INTO snapshots (name, data, saved_at) VALUES (?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET data = excluded.data, saved_at = excluded.saved_at`
	_, err = s.db.ExecContext(ctx, query, name, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LoadAll returns every saved collection keyed by name in one query; the
// cache seeds itself from it when the server is unreachable at startup.
func (s *Store) LoadAll(ctx context.Context) (map[string][]models.Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, data FROM snapshots`)
	if err != nil {
		return nil, fmt.Errorf("failed to select snapshots: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]models.Document)
	for rows.Next() {
		var name, data string
		if err := rows.Scan(&name, &data); err != nil {
			return nil, err
		}
		var docs []models.Document
		if err := json.Unmarshal([]byte(data), &docs); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot %q: %w", name, err)
		}
		result[name] = docs
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
