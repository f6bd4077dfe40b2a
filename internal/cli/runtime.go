package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/rahul/chainbench/internal/backend"
	"github.com/rahul/chainbench/internal/chain"
	"github.com/rahul/chainbench/internal/docs"
	"github.com/rahul/chainbench/internal/governance"
	"github.com/rahul/chainbench/internal/observability"
	"github.com/rahul/chainbench/internal/prompt"
	"github.com/rahul/chainbench/internal/provider"
	"github.com/rahul/chainbench/internal/store"
	"github.com/rahul/chainbench/pkg/config"
)

// runtime holds what a command needs, built once from the global flags.
type runtime struct {
	cfg      *config.Config
	logger   *observability.Logger
	debug    bool
	registry *chain.Registry
	renderer prompt.Renderer
	policy   *governance.DefaultPolicyEngine

	tables *store.Store
	docs   provider.DocumentProvider
	closer []func() error
}

func loadRuntime(c *cli.Context) (*runtime, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level := cfg.Log.Level
	if l := c.String("log-level"); l != "" {
		level = l
	}
	debug := c.Bool("debug")
	if debug {
		level = "debug"
	}

	renderer, err := prompt.NewRenderer(cfg.Prompt.Format)
	if err != nil {
		return nil, err
	}

	policy, err := governance.New(cfg.Policy.DeniedSteps, cfg.Policy.DeniedRefs)
	if err != nil {
		return nil, err
	}

	registry := chain.NewRegistry()
	chain.RegisterBuiltins(registry)

	rt := &runtime{
		cfg:      cfg,
		logger:   observability.NewConsoleLogger(observability.WithLevel(level), observability.WithLLMLog(cfg.Log.LLMLog)),
		debug:    debug,
		registry: registry,
		renderer: renderer,
		policy:   policy,
	}

	tables, err := store.Open(cfg.Tables.Path)
	if err != nil {
		return nil, err
	}
	rt.tables = tables
	rt.closer = append(rt.closer, tables.Close)

	switch cfg.Documents.Type {
	case "sqlite":
		if cfg.Documents.Path == cfg.Tables.Path {
			rt.docs = tables.Documents()
			break
		}
		s, err := store.Open(cfg.Documents.Path)
		if err != nil {
			rt.close()
			return nil, err
		}
		rt.closer = append(rt.closer, s.Close)
		rt.docs = s.Documents()
	case "dir":
		rt.docs = docs.NewDirectory(cfg.Documents.Path)
	case "web":
		rt.docs = docs.NewWeb(cfg.Documents.BaseURL)
	}

	return rt, nil
}

func (rt *runtime) close() {
	for i := len(rt.closer) - 1; i >= 0; i-- {
		_ = rt.closer[i]()
	}
}

// backend returns the configured model, or the echo backend for dry runs.
func (rt *runtime) backend(ctx context.Context, dryRun bool) (backend.Backend, error) {
	if dryRun {
		return backend.Echo{}, nil
	}
	b, err := backend.FromConfig(ctx, rt.cfg)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// newEngine builds an engine with its own prompt cache.
func (rt *runtime) newEngine(b backend.Backend) *chain.Engine {
	return chain.NewEngine(
		rt.registry,
		prompt.NewComposer(rt.docs, rt.renderer),
		b,
		chain.WithDocuments(rt.docs),
		chain.WithLogger(rt.logger),
		chain.WithDebug(rt.debug),
		chain.WithPolicy(rt.policy),
	)
}
