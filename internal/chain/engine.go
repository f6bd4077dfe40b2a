// Package chain loads declarative chain definitions and executes their steps
// in order against a shared context.
package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rahul/chainbench/internal/backend"
	"github.com/rahul/chainbench/internal/governance"
	"github.com/rahul/chainbench/internal/observability"
	"github.com/rahul/chainbench/internal/prompt"
	"github.com/rahul/chainbench/internal/provider"
)

type Status int

const (
	StatusUnloaded Status = iota
	StatusLoaded
	StatusExecuting
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoaded:
		return "loaded"
	case StatusExecuting:
		return "executing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unloaded"
	}
}

// Composer renders template references into messages.
type Composer interface {
	Compose(ctx context.Context, refs []string, vars map[string]any) ([]prompt.Message, error)
}

// Accessor is what a step handler sees of the running chain.
type Accessor interface {
	Context() *Context
	Step() StepDefinition
	Composer() Composer
	Backend() backend.Backend
	Logger() *observability.Logger
	RunID() string
}

// Engine owns one chain definition and runs it.
type Engine struct {
	registry *Registry
	composer Composer
	backend  backend.Backend
	docs     provider.DocumentProvider
	logger   *observability.Logger
	policy   governance.PolicyEngine
	debug    bool

	def       *Definition
	status    Status
	lastRunID string
}

type Option func(*Engine)

func WithLogger(l *observability.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithDebug turns on per-step and model transcript logging.
func WithDebug(debug bool) Option {
	return func(e *Engine) { e.debug = debug }
}

// WithDocuments sets the provider LoadRef reads chain documents from.
func WithDocuments(docs provider.DocumentProvider) Option {
	return func(e *Engine) { e.docs = docs }
}

// WithPolicy checks every step of a chain before the first one runs.
func WithPolicy(p governance.PolicyEngine) Option {
	return func(e *Engine) { e.policy = p }
}

func NewEngine(registry *Registry, composer Composer, b backend.Backend, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		composer: composer,
		backend:  b,
		logger:   observability.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load parses and validates a chain definition. On failure the engine is
// left unloaded.
func (e *Engine) Load(text string) (*Definition, error) {
	def, err := Parse(text, e.registry)
	if err != nil {
		e.def, e.status = nil, StatusUnloaded
		return nil, err
	}

	e.def, e.status = def, StatusLoaded
	e.logger.LogChainLoad(def.Name, def.Description, len(def.Steps))
	return def, nil
}

// LoadRef fetches the chain document through the document provider and loads
// it. Provider errors are returned unchanged.
func (e *Engine) LoadRef(ctx context.Context, ref string) (*Definition, error) {
	if e.docs == nil {
		return nil, fmt.Errorf("%w: no document provider to load %s", ErrConfig, ref)
	}

	text, err := e.docs.GetText(ctx, ref)
	if err != nil {
		return nil, err
	}
	return e.Load(text)
}

func (e *Engine) Definition() *Definition {
	return e.def
}

func (e *Engine) Status() Status {
	return e.status
}

// LastRunID identifies the most recent Execute call, "" before the first.
func (e *Engine) LastRunID() string {
	return e.lastRunID
}

// Execute runs every step of def once, in order. A nil def runs the loaded
// definition and a nil cc starts from an empty context. Handler errors are
// returned as-is together with the context as it stood before the failing
// step.
func (e *Engine) Execute(ctx context.Context, def *Definition, cc *Context) (*Context, error) {
	if def == nil {
		def = e.def
	}
	if def == nil {
		return cc, ErrNotLoaded
	}
	if cc == nil {
		cc = NewContext(nil)
	}

	sc := &scope{engine: e, runID: uuid.NewString(), cc: cc}
	e.lastRunID = sc.runID
	start := time.Now()

	if err := e.authorize(ctx, def); err != nil {
		e.status = StatusFailed
		e.logger.LogRun(sc.runID, def.Name, time.Since(start), err)
		return cc, err
	}
	e.status = StatusExecuting

	for _, step := range def.Steps {
		if err := e.runStep(ctx, sc, def, step); err != nil {
			e.status = StatusFailed
			e.logger.LogStepFailed(sc.runID, def.Name, step.Name, err)
			e.logger.LogRun(sc.runID, def.Name, time.Since(start), err)
			return cc, err
		}
	}

	e.status = StatusCompleted
	e.logger.LogRun(sc.runID, def.Name, time.Since(start), nil)
	return cc, nil
}

func (e *Engine) authorize(ctx context.Context, def *Definition) error {
	if e.policy == nil {
		return nil
	}
	for _, step := range def.Steps {
		err := governance.Authorize(ctx, e.policy, governance.Request{
			Chain:        def.Name,
			Step:         step.Name,
			StepFunction: step.StepFunction,
			References:   step.PromptTemplates,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) runStep(ctx context.Context, sc *scope, def *Definition, step StepDefinition) error {
	h, err := e.registry.Lookup(step.StepFunction)
	if err != nil {
		return err
	}

	if e.debug {
		e.logger.LogStep(sc.runID, def.Name, step.Name, map[string]any{
			"input_key":        step.InputKey,
			"output_key":       step.OutputKey,
			"step_function":    step.StepFunction,
			"prompt_templates": step.PromptTemplates,
		})
	}

	sc.step = step
	v, err := h.Run(ctx, sc, step.PromptTemplates, e.debug)
	if err != nil {
		return err
	}

	if step.OutputKey != "" {
		sc.cc.Set(step.OutputKey, v)
	}
	return nil
}

type scope struct {
	engine *Engine
	runID  string
	cc     *Context
	step   StepDefinition
}

func (s *scope) Context() *Context             { return s.cc }
func (s *scope) Step() StepDefinition          { return s.step }
func (s *scope) Composer() Composer            { return s.engine.composer }
func (s *scope) Backend() backend.Backend      { return s.engine.backend }
func (s *scope) Logger() *observability.Logger { return s.engine.logger }
func (s *scope) RunID() string                 { return s.runID }
