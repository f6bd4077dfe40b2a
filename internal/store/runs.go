package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rahul/chainbench/internal/provider"
)

// Run is one recorded chain execution.
type Run struct {
	ID        int64
	RunID     string
	ChainRef  string
	Chain     string
	Status    string
	Output    string
	Error     string
	Elapsed   time.Duration
	Timestamp string
}

// RunLog appends chain executions to the runs table.
type RunLog struct {
	db *sql.DB
}

func (l *RunLog) Record(ctx context.Context, r Run) error {
	query := `INSERT INTO runs (run_id, chain_ref, chain, status, output, error, elapsed_ms) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := l.db.ExecContext(ctx, query, r.RunID, r.ChainRef, r.Chain, r.Status, r.Output, r.Error, r.Elapsed.Milliseconds())
	if err != nil {
		return fmt.Errorf("%w: record run: %w", provider.ErrTransport, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (l *RunLog) Recent(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, run_id, chain_ref, chain, status, output, error, elapsed_ms, timestamp
		FROM runs ORDER BY id DESC LIMIT ?`
	rows, err := l.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list runs: %w", provider.ErrTransport, err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var elapsed int64
		if err := rows.Scan(&r.ID, &r.RunID, &r.ChainRef, &r.Chain, &r.Status, &r.Output, &r.Error, &elapsed, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("%w: list runs: %w", provider.ErrTransport, err)
		}
		r.Elapsed = time.Duration(elapsed) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
