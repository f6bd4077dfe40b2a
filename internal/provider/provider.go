// Package provider defines the narrow interfaces chainbench uses to reach
// external document and tabular stores.
package provider

import (
	"context"
	"errors"
)

// ErrTransport wraps every failure reported by a document or tabular store:
// network, auth, not-found and storage errors alike.
var ErrTransport = errors.New("transport error")

// DocumentProvider fetches and edits the raw text of a document.
type DocumentProvider interface {
	GetText(ctx context.Context, ref string) (string, error)
	ReplaceText(ctx context.Context, ref string, text string) error
	AppendText(ctx context.Context, ref string, text string) error
}

// TabularProvider reads and writes sheet-like tables addressed with
// sheet!A1:C1 range notation. WriteRange overwrites the addressed rectangle.
type TabularProvider interface {
	ReadAll(ctx context.Context, tableRef string) ([]Row, error)
	ReadRange(ctx context.Context, rangeRef string) ([][]string, error)
	WriteRange(ctx context.Context, rangeRef string, values [][]string) error
}

// Appender is implemented by tabular stores that can append rows below the
// last used row atomically.
type Appender interface {
	AppendRows(ctx context.Context, sheet string, values [][]string) error
}

// Row is one data row of a table, keyed by the header row's column names.
type Row struct {
	Columns []string
	Values  []string
}

// Get returns the cell under column, or "" when the column is absent or the
// row is shorter than the header.
func (r Row) Get(column string) string {
	v, _ := r.Lookup(column)
	return v
}

// Lookup is Get with a presence flag for the column itself.
func (r Row) Lookup(column string) (string, bool) {
	for i, c := range r.Columns {
		if c != column {
			continue
		}
		if i < len(r.Values) {
			return r.Values[i], true
		}
		return "", true
	}
	return "", false
}

// RowsFromValues turns a 2D cell array with a header row into Rows. Returns
// nil when values holds no header.
func RowsFromValues(values [][]string) []Row {
	if len(values) == 0 {
		return nil
	}

	header := values[0]
	rows := make([]Row, 0, len(values)-1)
	for _, v := range values[1:] {
		rows = append(rows, Row{Columns: header, Values: v})
	}
	return rows
}
