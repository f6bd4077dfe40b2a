package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/rahul/chainbench/internal/batch"
)

// BatchCommand runs every row of a job table.
func BatchCommand() *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Usage:     "Run one chain per job table row and append the results",
		ArgsUsage: "[JOB_TABLE]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "policy",
				Usage: "What a failed row does: halt or continue (default: batch.on_error)",
			},
			&cli.StringFlag{
				Name:  "output-sheet",
				Usage: "Sheet the results are appended to (default: batch.output_sheet)",
			},
			&cli.BoolFlag{
				Name:  "clear-output",
				Usage: "Empty the output sheet before the first row runs",
			},
			&cli.BoolFlag{
				Name:  "full-context",
				Usage: "Write the whole final context as JSON into chain_output",
			},
			dryRunFlag,
		},
		Action: runBatch,
	}
}

func runBatch(c *cli.Context) error {
	rt, err := loadRuntime(c)
	if err != nil {
		return err
	}
	defer rt.close()

	cfg := rt.cfg.Batch
	jobTable := cfg.JobSheet
	if c.NArg() > 0 {
		jobTable = c.Args().First()
	}

	policyName := cfg.OnError
	if c.IsSet("policy") {
		policyName = c.String("policy")
	}
	policy, err := batch.ParsePolicy(policyName)
	if err != nil {
		return err
	}

	outputSheet := cfg.OutputSheet
	if c.IsSet("output-sheet") {
		outputSheet = c.String("output-sheet")
	}

	if c.Bool("clear-output") {
		if err := rt.tables.Workbook().ClearSheet(c.Context, outputSheet); err != nil {
			return err
		}
	}

	b, err := rt.backend(c.Context, c.Bool("dry-run"))
	if err != nil {
		return err
	}

	runner := batch.NewRunner(
		rt.tables.Workbook(),
		func() batch.Executor { return rt.newEngine(b) },
		batch.WithOutputSheet(outputSheet),
		batch.WithInputKey(cfg.InputKey),
		batch.WithOutputKey(cfg.OutputKey),
		batch.WithFullContext(cfg.FullContext || c.Bool("full-context")),
		batch.WithPolicy(policy),
		batch.WithLogger(rt.logger),
		batch.WithRecorder(rt.tables.Runs()),
	)

	sum, err := runner.Run(c.Context, jobTable)
	fmt.Fprintf(c.App.Writer, "%d rows: %d succeeded, %d failed\n", sum.Total, sum.Succeeded, sum.Failed)
	return err
}
