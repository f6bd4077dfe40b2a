package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/rahul/chainbench/internal/chain"
	"github.com/rahul/chainbench/internal/store"
)

// ValidateCommand loads a chain without running it.
func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check that a chain definition loads",
		ArgsUsage: "CHAIN_REF",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one CHAIN_REF, got %d arguments", c.NArg())
			}

			rt, err := loadRuntime(c)
			if err != nil {
				return err
			}
			defer rt.close()

			def, err := rt.newEngine(nil).LoadRef(c.Context, c.Args().First())
			if err != nil {
				return err
			}

			fmt.Fprintf(c.App.Writer, "Chain %q is valid (%d steps)\n", def.Name, len(def.Steps))
			tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			for i, step := range def.Steps {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s -> %s\t%s\n", i+1, step.Name, step.StepFunction,
					dash(step.InputKey), dash(step.OutputKey), strings.Join(step.PromptTemplates, ", "))
			}
			return tw.Flush()
		},
	}
}

// StepsCommand lists the registered step functions.
func StepsCommand() *cli.Command {
	return &cli.Command{
		Name:  "steps",
		Usage: "List the available step functions",
		Action: func(c *cli.Context) error {
			registry := chain.NewRegistry()
			chain.RegisterBuiltins(registry)
			for _, name := range registry.Names() {
				fmt.Fprintln(c.App.Writer, name)
			}
			return nil
		},
	}
}

// HistoryCommand prints the most recent recorded runs.
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "Show recent chain runs",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Value:   20,
			},
		},
		Action: func(c *cli.Context) error {
			rt, err := loadRuntime(c)
			if err != nil {
				return err
			}
			defer rt.close()

			runs, err := rt.tables.Runs().Recent(c.Context, c.Int("limit"))
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tCHAIN\tSTATUS\tELAPSED\tRUN ID\tERROR")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.Timestamp, dash(r.Chain), r.Status, r.Elapsed, dash(r.RunID), r.Error)
			}
			return tw.Flush()
		},
	}
}

// ListCommand shows what the local store holds.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List stored documents or sheets",
		Subcommands: []*cli.Command{
			{
				Name:   "docs",
				Usage:  "List document references in the sqlite document store",
				Action: runListDocs,
			},
			{
				Name:   "sheets",
				Usage:  "List sheets with their used row count",
				Action: runListSheets,
			},
		},
	}
}

func runListDocs(c *cli.Context) error {
	rt, err := loadRuntime(c)
	if err != nil {
		return err
	}
	defer rt.close()

	ds, ok := rt.docs.(*store.DocumentStore)
	if !ok {
		return fmt.Errorf("documents.type is %q, listing needs the sqlite document store", rt.cfg.Documents.Type)
	}

	refs, err := ds.List(c.Context)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		fmt.Fprintln(c.App.Writer, ref)
	}
	return nil
}

func runListSheets(c *cli.Context) error {
	rt, err := loadRuntime(c)
	if err != nil {
		return err
	}
	defer rt.close()

	wb := rt.tables.Workbook()
	sheets, err := wb.Sheets(c.Context)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SHEET\tROWS")
	for _, sheet := range sheets {
		n, err := wb.RowCount(c.Context, sheet)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%d\n", sheet, n)
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
