package store

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/rahul/chainbench/internal/provider"
)

// Workbook is a provider.TabularProvider (and provider.Appender) over the
// cells table. Sheets spring into existence on first write. Empty strings
// are not stored, so a sheet's used area ends at its last non-empty cell.
type Workbook struct {
	db *sql.DB
}

var (
	_ provider.TabularProvider = (*Workbook)(nil)
	_ provider.Appender        = (*Workbook)(nil)
)

// ReadAll returns the data rows of a range, keyed by its first row.
func (w *Workbook) ReadAll(ctx context.Context, tableRef string) ([]provider.Row, error) {
	values, err := w.ReadRange(ctx, tableRef)
	if err != nil {
		return nil, err
	}
	return provider.RowsFromValues(values), nil
}

// ReadRange returns the addressed cells, one slice per row from the start
// row to the last used row. Trailing empty cells of each row are dropped.
func (w *Workbook) ReadRange(ctx context.Context, rangeRef string) ([][]string, error) {
	r, err := provider.ParseRange(rangeRef)
	if err != nil {
		return nil, err
	}

	startRow, startCol := max(r.StartRow, 1), max(r.StartCol, 1)
	query := `SELECT row_num, col_num, value FROM cells WHERE sheet = ? AND row_num >= ? AND col_num >= ?`
	args := []any{r.Sheet, startRow, startCol}
	if r.EndRow > 0 {
		query += ` AND row_num <= ?`
		args = append(args, r.EndRow)
	}
	if r.EndCol > 0 {
		query += ` AND col_num <= ?`
		args = append(args, r.EndCol)
	}
	query += ` ORDER BY row_num, col_num`

	rows, err := w.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", provider.ErrTransport, rangeRef, err)
	}
	defer rows.Close()

	var grid [][]string
	for rows.Next() {
		var row, col int
		var value string
		if err := rows.Scan(&row, &col, &value); err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", provider.ErrTransport, rangeRef, err)
		}

		i, j := row-startRow, col-startCol
		for len(grid) <= i {
			grid = append(grid, []string{})
		}
		for len(grid[i]) <= j {
			grid[i] = append(grid[i], "")
		}
		grid[i][j] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", provider.ErrTransport, rangeRef, err)
	}

	return grid, nil
}

// WriteRange overwrites the rectangle starting at the range's top-left cell.
// A single cell address is an anchor the values grow from; values that do
// not fit any other bounded range are rejected.
func (w *Workbook) WriteRange(ctx context.Context, rangeRef string, values [][]string) error {
	r, err := provider.ParseRange(rangeRef)
	if err != nil {
		return err
	}
	if r.StartRow == r.EndRow && r.StartCol == r.EndCol {
		r.EndRow, r.EndCol = 0, 0
	}

	startRow, startCol := max(r.StartRow, 1), max(r.StartCol, 1)
	if r.EndRow > 0 && startRow+len(values)-1 > r.EndRow {
		return fmt.Errorf("%w: %d rows do not fit %s", provider.ErrTransport, len(values), rangeRef)
	}
	for _, row := range values {
		if r.EndCol > 0 && startCol+len(row)-1 > r.EndCol {
			return fmt.Errorf("%w: %d columns do not fit %s", provider.ErrTransport, len(row), rangeRef)
		}
	}

	return w.tx(ctx, rangeRef, func(tx *sql.Tx) error {
		return writeCells(ctx, tx, r.Sheet, startRow, startCol, values)
	})
}

// AppendRows writes values below the last used row of sheet in one
// transaction.
func (w *Workbook) AppendRows(ctx context.Context, sheet string, values [][]string) error {
	return w.tx(ctx, sheet, func(tx *sql.Tx) error {
		last, err := lastRow(ctx, tx, sheet)
		if err != nil {
			return err
		}
		return writeCells(ctx, tx, sheet, last+1, 1, values)
	})
}

// RowCount reports the last used row of sheet, 0 for an empty sheet.
func (w *Workbook) RowCount(ctx context.Context, sheet string) (int, error) {
	n, err := lastRow(ctx, w.db, sheet)
	if err != nil {
		return 0, fmt.Errorf("%w: count %s: %w", provider.ErrTransport, sheet, err)
	}
	return n, nil
}

// Sheets lists the sheets holding at least one cell.
func (w *Workbook) Sheets(ctx context.Context) ([]string, error) {
	rows, err := w.db.QueryContext(ctx, `SELECT DISTINCT sheet FROM cells ORDER BY sheet`)
	if err != nil {
		return nil, fmt.Errorf("%w: list sheets: %w", provider.ErrTransport, err)
	}
	defer rows.Close()

	var sheets []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("%w: list sheets: %w", provider.ErrTransport, err)
		}
		sheets = append(sheets, s)
	}
	return sheets, rows.Err()
}

// ClearSheet removes every cell of sheet.
func (w *Workbook) ClearSheet(ctx context.Context, sheet string) error {
	if _, err := w.db.ExecContext(ctx, `DELETE FROM cells WHERE sheet = ?`, sheet); err != nil {
		return fmt.Errorf("%w: clear %s: %w", provider.ErrTransport, sheet, err)
	}
	return nil
}

// ImportCSV replaces sheet with the records read from r.
func (w *Workbook) ImportCSV(ctx context.Context, sheet string, r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("read csv: %w", err)
	}

	err = w.tx(ctx, sheet, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM cells WHERE sheet = ?`, sheet); err != nil {
			return err
		}
		return writeCells(ctx, tx, sheet, 1, 1, records)
	})
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// ExportCSV writes the used area of sheet to out.
func (w *Workbook) ExportCSV(ctx context.Context, sheet string, out io.Writer) error {
	values, err := w.ReadRange(ctx, sheet)
	if err != nil {
		return err
	}

	width := 0
	for _, row := range values {
		width = max(width, len(row))
	}

	cw := csv.NewWriter(out)
	for _, row := range values {
		padded := make([]string, width)
		copy(padded, row)
		if err := cw.Write(padded); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func (w *Workbook) tx(ctx context.Context, ref string, fn func(*sql.Tx) error) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: write %s: %w", provider.ErrTransport, ref, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: write %s: %w", provider.ErrTransport, ref, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: write %s: %w", provider.ErrTransport, ref, err)
	}
	return nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func lastRow(ctx context.Context, q querier, sheet string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(row_num), 0) FROM cells WHERE sheet = ?`, sheet).Scan(&n)
	return n, err
}

func writeCells(ctx context.Context, tx *sql.Tx, sheet string, startRow, startCol int, values [][]string) error {
	for i, row := range values {
		for j, value := range row {
			r, c := startRow+i, startCol+j
			var err error
			if value == "" {
				_, err = tx.ExecContext(ctx, `DELETE FROM cells WHERE sheet = ? AND row_num = ? AND col_num = ?`, sheet, r, c)
			} else {
				_, err = tx.ExecContext(ctx, `INSERT INTO cells (sheet, row_num, col_num, value) VALUES (?, ?, ?, ?)
					ON CONFLICT(sheet, row_num, col_num) DO UPDATE SET value = excluded.value`, sheet, r, c, value)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}
