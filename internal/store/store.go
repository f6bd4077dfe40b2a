// Package store keeps documents, sheets and run history in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/glebarez/go-sqlite"

	"github.com/rahul/chainbench/internal/provider"
)

const memoryPath = ":memory:"

type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the database at dbPath and its tables. ":memory:"
// gives a private in-memory database.
func Open(dbPath string) (*Store, error) {
	if dbPath != memoryPath {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("%w: create %s: %w", provider.ErrTransport, dir, err)
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", provider.ErrTransport, dbPath, err)
	}
	// One connection: SQLite has a single writer and every in-memory
	// connection would otherwise see its own empty database.
	db.SetMaxOpenConns(1)

	queries := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			ref TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS cells (
			sheet TEXT NOT NULL,
			row_num INTEGER NOT NULL,
			col_num INTEGER NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (sheet, row_num, col_num)
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			chain_ref TEXT,
			chain TEXT,
			status TEXT,
			output TEXT,
			error TEXT,
			elapsed_ms INTEGER,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: create schema: %w", provider.ErrTransport, err)
		}
	}

	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// Workbook returns the tabular view of the store.
func (s *Store) Workbook() *Workbook {
	return &Workbook{db: s.DB}
}

// Documents returns the document view of the store.
func (s *Store) Documents() *DocumentStore {
	return &DocumentStore{db: s.DB}
}

// Runs returns the run history view of the store.
func (s *Store) Runs() *RunLog {
	return &RunLog{db: s.DB}
}
