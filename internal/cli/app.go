// Package cli wires configuration, stores, providers and the chain engine
// into the chainbench command line.
package cli

import (
	"github.com/urfave/cli/v2"
)

// NewApp returns the chainbench command line application.
func NewApp(version string) *cli.App {
	return &cli.App{
		Name:    "chainbench",
		Usage:   "Run document-driven language model chains and batches",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE` (default: ./chainbench.toml, ~/.chainbench.toml)",
				EnvVars: []string{"CHAINBENCH_CONFIG"},
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Log every step and model exchange",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override log.level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			RunCommand(),
			BatchCommand(),
			ValidateCommand(),
			StepsCommand(),
			ImportCommand(),
			ExportCommand(),
			HistoryCommand(),
			ListCommand(),
			ConfigCommand(),
		},
	}
}
