package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/rahul/chainbench/internal/chain"
	"github.com/rahul/chainbench/internal/observability"
	"github.com/rahul/chainbench/internal/store"
)

var dryRunFlag = &cli.BoolFlag{
	Name:  "dry-run",
	Usage: "Answer every model call with the last prompt message instead of calling a provider",
}

// RunCommand executes one chain document.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Execute a chain definition",
		ArgsUsage: "CHAIN_REF",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Seed the context with `KEY=VALUE` (repeatable)",
			},
			&cli.StringFlag{
				Name:  "chain-input",
				Usage: "Seed batch.input_key with `TEXT`",
			},
			&cli.StringFlag{
				Name:  "output-key",
				Usage: "Print only this context key instead of the whole context",
			},
			dryRunFlag,
		},
		Action: runChain,
	}
}

func runChain(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one CHAIN_REF, got %d arguments", c.NArg())
	}
	ref := c.Args().First()

	rt, err := loadRuntime(c)
	if err != nil {
		return err
	}
	defer rt.close()

	seed, err := seedVars(c.StringSlice("input"))
	if err != nil {
		return err
	}
	if c.IsSet("chain-input") {
		seed[rt.cfg.Batch.InputKey] = chain.Text(c.String("chain-input"))
	}

	b, err := rt.backend(c.Context, c.Bool("dry-run"))
	if err != nil {
		return err
	}
	engine := rt.newEngine(b)

	observability.SetStatus(observability.PhaseChain, ref)
	defer observability.SetStatus(observability.PhaseIdle, "")

	start := time.Now()
	var cc *chain.Context
	def, err := engine.LoadRef(c.Context, ref)
	if err == nil {
		cc, err = engine.Execute(c.Context, def, chain.NewContext(seed))
	}

	run := store.Run{
		RunID:    engine.LastRunID(),
		ChainRef: ref,
		Status:   chain.StatusCompleted.String(),
		Elapsed:  time.Since(start),
	}
	if def != nil {
		run.Chain = def.Name
	}
	if err != nil {
		run.Status, run.Error = chain.StatusFailed.String(), err.Error()
		rt.record(c, run)
		return err
	}

	out, err := renderOutput(cc, c.String("output-key"))
	if err != nil {
		return err
	}
	run.Output = out
	rt.record(c, run)

	fmt.Fprintln(c.App.Writer, out)
	return nil
}

func (rt *runtime) record(c *cli.Context, run store.Run) {
	if err := rt.tables.Runs().Record(c.Context, run); err != nil {
		rt.logger.Zerolog().Warn().Err(err).Str("chain_ref", run.ChainRef).Msg("failed to record run")
	}
}

func seedVars(pairs []string) (map[string]chain.Value, error) {
	seed := make(map[string]chain.Value, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --input %q, expected KEY=VALUE", pair)
		}
		seed[k] = chain.Text(v)
	}
	return seed, nil
}

func renderOutput(cc *chain.Context, key string) (string, error) {
	if key != "" {
		v, ok := cc.Get(key)
		if !ok {
			return "", fmt.Errorf("%w: output key %q not in context", chain.ErrMissingInput, key)
		}
		return v.String(), nil
	}

	data, err := json.MarshalIndent(cc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode context: %w", err)
	}
	return string(data), nil
}
