package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/rahul/chainbench/internal/store"
)

// ImportCommand loads documents and job tables into the local store.
func ImportCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import documents or tables into the local store",
		Subcommands: []*cli.Command{
			{
				Name:      "docs",
				Usage:     "Store every file under DIR as a document keyed by its relative path",
				ArgsUsage: "DIR",
				Action:    runImportDocs,
			},
			{
				Name:      "csv",
				Usage:     "Replace a sheet with the rows of a CSV file",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "sheet", Aliases: []string{"s"}, Usage: "Target sheet (default: batch.job_sheet)"},
				},
				Action: runImportCSV,
			},
		},
	}
}

// ExportCommand writes a sheet out as CSV.
func ExportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export data from the local store",
		Subcommands: []*cli.Command{
			{
				Name:      "csv",
				Usage:     "Write a sheet as CSV to FILE or stdout",
				ArgsUsage: "[FILE]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "sheet", Aliases: []string{"s"}, Usage: "Source sheet (default: batch.output_sheet)"},
				},
				Action: runExportCSV,
			},
		},
	}
}

func runImportDocs(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one DIR, got %d arguments", c.NArg())
	}

	rt, err := loadRuntime(c)
	if err != nil {
		return err
	}
	defer rt.close()

	ds, ok := rt.docs.(*store.DocumentStore)
	if !ok {
		return fmt.Errorf("documents.type is %q, import needs the sqlite document store", rt.cfg.Documents.Type)
	}

	refs, err := ds.ImportDir(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	for _, ref := range refs {
		fmt.Fprintln(c.App.Writer, ref)
	}
	fmt.Fprintf(c.App.Writer, "Imported %d documents\n", len(refs))
	return nil
}

func runImportCSV(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one FILE, got %d arguments", c.NArg())
	}

	rt, err := loadRuntime(c)
	if err != nil {
		return err
	}
	defer rt.close()

	sheet := rt.cfg.Batch.JobSheet
	if c.IsSet("sheet") {
		sheet = c.String("sheet")
	}

	f, err := os.Open(c.Args().First())
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", c.Args().First(), err)
	}
	defer f.Close()

	n, err := rt.tables.Workbook().ImportCSV(c.Context, sheet, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Imported %d rows into %s\n", n, sheet)
	return nil
}

func runExportCSV(c *cli.Context) error {
	rt, err := loadRuntime(c)
	if err != nil {
		return err
	}
	defer rt.close()

	sheet := rt.cfg.Batch.OutputSheet
	if c.IsSet("sheet") {
		sheet = c.String("sheet")
	}

	var out io.Writer = c.App.Writer
	if c.NArg() > 0 {
		f, err := os.Create(c.Args().First())
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", c.Args().First(), err)
		}
		defer f.Close()
		out = f
	}

	return rt.tables.Workbook().ExportCSV(c.Context, sheet, out)
}
