package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rahul/chainbench/internal/provider"
)

// DocumentStore is a provider.DocumentProvider over the documents table.
// References go through provider.ParseRef, so a pasted document URL and its
// bare id address the same row.
type DocumentStore struct {
	db *sql.DB
}

var _ provider.DocumentProvider = (*DocumentStore)(nil)

func (d *DocumentStore) GetText(ctx context.Context, ref string) (string, error) {
	id, err := provider.ParseRef(ref)
	if err != nil {
		return "", err
	}

	var content string
	err = d.db.QueryRowContext(ctx, `SELECT content FROM documents WHERE ref = ?`, id).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: document %s not found", provider.ErrTransport, id)
	}
	if err != nil {
		return "", fmt.Errorf("%w: read document %s: %w", provider.ErrTransport, id, err)
	}
	return content, nil
}

// ReplaceText sets the document's content, creating it when missing.
func (d *DocumentStore) ReplaceText(ctx context.Context, ref, text string) error {
	id, err := provider.ParseRef(ref)
	if err != nil {
		return err
	}

	query := `INSERT INTO documents (ref, content, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(ref) DO UPDATE SET content = excluded.content, updated_at = CURRENT_TIMESTAMP`
	if _, err := d.db.ExecContext(ctx, query, id, text); err != nil {
		return fmt.Errorf("%w: write document %s: %w", provider.ErrTransport, id, err)
	}
	return nil
}

func (d *DocumentStore) AppendText(ctx context.Context, ref, text string) error {
	id, err := provider.ParseRef(ref)
	if err != nil {
		return err
	}

	query := `INSERT INTO documents (ref, content, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(ref) DO UPDATE SET content = documents.content || excluded.content, updated_at = CURRENT_TIMESTAMP`
	if _, err := d.db.ExecContext(ctx, query, id, text); err != nil {
		return fmt.Errorf("%w: append document %s: %w", provider.ErrTransport, id, err)
	}
	return nil
}

// List returns every stored reference in order.
func (d *DocumentStore) List(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT ref FROM documents ORDER BY ref`)
	if err != nil {
		return nil, fmt.Errorf("%w: list documents: %w", provider.ErrTransport, err)
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("%w: list documents: %w", provider.ErrTransport, err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// ImportDir stores every regular file under root, keyed by its slash
// separated path relative to root. Hidden files and directories are skipped.
func (d *DocumentStore) ImportDir(ctx context.Context, root string) ([]string, error) {
	var imported []string

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != root && strings.HasPrefix(entry.Name(), ".") {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		ref := filepath.ToSlash(rel)
		if err := d.ReplaceText(ctx, ref, string(content)); err != nil {
			return err
		}
		imported = append(imported, ref)
		return nil
	})
	if err != nil {
		return imported, fmt.Errorf("import %s: %w", root, err)
	}
	return imported, nil
}
