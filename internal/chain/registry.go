package chain

import (
	"context"
	"fmt"
	"sort"
)

// Handler is a step function. The returned value is stored under the step's
// output_key when one is declared.
type Handler interface {
	Run(ctx context.Context, acc Accessor, templates []string, debug bool) (Value, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, acc Accessor, templates []string, debug bool) (Value, error)

func (f HandlerFunc) Run(ctx context.Context, acc Accessor, templates []string, debug bool) (Value, error) {
	return f(ctx, acc, templates, debug)
}

// Registry maps step-function names to handlers. It is filled once at
// startup and only read afterwards.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds or replaces the handler for name.
func (r *Registry) Register(name string, h Handler) {
	r.handlers[name] = h
}

func (r *Registry) RegisterFunc(name string, f HandlerFunc) {
	r.Register(name, f)
}

func (r *Registry) Lookup(name string) (Handler, error) {
	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %w: %q", ErrConfig, ErrUnknownStepFunction, name)
	}
	return h, nil
}

// Names returns the registered step functions in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
