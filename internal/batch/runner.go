// Package batch runs one chain per row of a job table and appends the
// results to an output sheet.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rahul/chainbench/internal/chain"
	"github.com/rahul/chainbench/internal/observability"
	"github.com/rahul/chainbench/internal/provider"
	"github.com/rahul/chainbench/internal/store"
)

// Job table columns.
const (
	ColumnChainURL    = "chain_url"
	ColumnChainInput  = "chain_input"
	ColumnChainOutput = "chain_output"
)

// ErrJobTable reports a job table without the required columns.
var ErrJobTable = errors.New("invalid job table")

// Policy decides what a failed row does to the rest of the batch.
type Policy string

const (
	// PolicyHalt stops at the first failed row.
	PolicyHalt Policy = "halt"
	// PolicyContinue writes an error cell for the failed row and moves on.
	PolicyContinue Policy = "continue"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyHalt:
		return PolicyHalt, nil
	case PolicyContinue:
		return PolicyContinue, nil
	}
	return "", fmt.Errorf("unknown failure policy %q", s)
}

// Executor is the part of chain.Engine the runner drives.
type Executor interface {
	LoadRef(ctx context.Context, ref string) (*chain.Definition, error)
	Execute(ctx context.Context, def *chain.Definition, cc *chain.Context) (*chain.Context, error)
}

// EngineFactory builds a fresh engine for every row so no prompt cache or
// context leaks between chains.
type EngineFactory func() Executor

// Recorder persists the outcome of every row.
type Recorder interface {
	Record(ctx context.Context, r store.Run) error
}

type Job struct {
	Row        int
	ChainRef   string
	ChainInput string
}

type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

type Runner struct {
	tables      provider.TabularProvider
	factory     EngineFactory
	outputSheet string
	inputKey    string
	outputKey   string
	fullContext bool
	policy      Policy
	logger      *observability.Logger
	recorder    Recorder
}

type Option func(*Runner)

func WithOutputSheet(sheet string) Option {
	return func(r *Runner) { r.outputSheet = sheet }
}

// WithInputKey sets the context key the row's chain_input is seeded under.
func WithInputKey(key string) Option {
	return func(r *Runner) { r.inputKey = key }
}

// WithOutputKey sets the context key written to the chain_output column.
func WithOutputKey(key string) Option {
	return func(r *Runner) { r.outputKey = key }
}

// WithFullContext writes the whole final context as JSON instead of the
// output key.
func WithFullContext(full bool) Option {
	return func(r *Runner) { r.fullContext = full }
}

func WithPolicy(p Policy) Option {
	return func(r *Runner) { r.policy = p }
}

func WithLogger(l *observability.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

func NewRunner(tables provider.TabularProvider, factory EngineFactory, opts ...Option) *Runner {
	r := &Runner{
		tables:      tables,
		factory:     factory,
		outputSheet: "output",
		inputKey:    ColumnChainInput,
		outputKey:   ColumnChainOutput,
		policy:      PolicyHalt,
		logger:      observability.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every job of the table in order. Each result row is written
// as soon as its chain finishes, so a halted batch keeps the rows before
// the failure.
func (r *Runner) Run(ctx context.Context, jobTableRef string) (Summary, error) {
	jobs, err := r.readJobs(ctx, jobTableRef)
	if err != nil {
		return Summary{}, err
	}

	header := [][]string{{ColumnChainURL, ColumnChainInput, ColumnChainOutput}}
	if err := r.tables.WriteRange(ctx, provider.RowRange(r.outputSheet, 1, 3), header); err != nil {
		return Summary{}, err
	}

	observability.SetStatus(observability.PhaseBatch, jobTableRef)
	defer observability.SetStatus(observability.PhaseIdle, "")

	var sum Summary
	for _, job := range jobs {
		sum.Total++

		output, runErr := r.runJob(ctx, job)
		observability.Heartbeat()
		r.logger.LogBatchRow(job.Row, job.ChainRef, runErr)

		if runErr != nil {
			sum.Failed++
			if r.policy == PolicyHalt {
				err := fmt.Errorf("row %d (%s): %w", job.Row, job.ChainRef, runErr)
				r.logger.LogBatch(jobTableRef, sum.Total, sum.Succeeded, sum.Failed, err)
				return sum, err
			}
			output = "error: " + runErr.Error()
		} else {
			sum.Succeeded++
		}

		if err := r.appendRow(ctx, []string{job.ChainRef, job.ChainInput, output}); err != nil {
			r.logger.LogBatch(jobTableRef, sum.Total, sum.Succeeded, sum.Failed, err)
			return sum, err
		}
	}

	r.logger.LogBatch(jobTableRef, sum.Total, sum.Succeeded, sum.Failed, nil)
	return sum, nil
}

func (r *Runner) readJobs(ctx context.Context, jobTableRef string) ([]Job, error) {
	rows, err := r.tables.ReadAll(ctx, jobTableRef)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	for _, col := range []string{ColumnChainURL, ColumnChainInput} {
		if _, ok := rows[0].Lookup(col); !ok {
			return nil, fmt.Errorf("%w: %s has no %s column", ErrJobTable, jobTableRef, col)
		}
	}

	jobs := make([]Job, 0, len(rows))
	for i, row := range rows {
		// blank rows between jobs are skipped
		if row.Get(ColumnChainURL) == "" {
			continue
		}
		jobs = append(jobs, Job{
			Row:        i + 2,
			ChainRef:   row.Get(ColumnChainURL),
			ChainInput: row.Get(ColumnChainInput),
		})
	}
	return jobs, nil
}

func (r *Runner) runJob(ctx context.Context, job Job) (string, error) {
	start := time.Now()
	engine := r.factory()

	var output string
	def, err := engine.LoadRef(ctx, job.ChainRef)
	if err == nil {
		var cc *chain.Context
		cc, err = engine.Execute(ctx, def, chain.NewContext(map[string]chain.Value{
			r.inputKey: chain.Text(job.ChainInput),
		}))
		if err == nil {
			output, err = r.extract(cc)
		}
	}

	var runID string
	if ided, ok := engine.(interface{ LastRunID() string }); ok {
		runID = ided.LastRunID()
	}
	r.record(ctx, store.Run{
		RunID:    runID,
		ChainRef: job.ChainRef,
		Output:   output,
		Elapsed:  time.Since(start),
	}, job.Row, def, err)
	return output, err
}

func (r *Runner) extract(cc *chain.Context) (string, error) {
	if r.fullContext {
		data, err := json.Marshal(cc)
		if err != nil {
			return "", fmt.Errorf("encode context: %w", err)
		}
		return string(data), nil
	}

	v, _ := cc.Get(r.outputKey)
	return v.String(), nil
}

// appendRow writes one result row below the last used row of the output
// sheet, atomically when the provider can append.
func (r *Runner) appendRow(ctx context.Context, row []string) error {
	if a, ok := r.tables.(provider.Appender); ok {
		return a.AppendRows(ctx, r.outputSheet, [][]string{row})
	}

	current, err := r.tables.ReadRange(ctx, provider.Range{Sheet: r.outputSheet, StartCol: 1, EndCol: 3}.String())
	if err != nil {
		return err
	}
	return r.tables.WriteRange(ctx, provider.RowRange(r.outputSheet, len(current)+1, 3), [][]string{row})
}

func (r *Runner) record(ctx context.Context, run store.Run, row int, def *chain.Definition, runErr error) {
	if r.recorder == nil {
		return
	}

	run.Status = chain.StatusCompleted.String()
	if def != nil {
		run.Chain = def.Name
	}
	if runErr != nil {
		run.Status = chain.StatusFailed.String()
		run.Error = runErr.Error()
	}

	if err := r.recorder.Record(ctx, run); err != nil {
		r.logger.Zerolog().Warn().Err(err).Int("row", row).Msg("failed to record run")
	}
}
