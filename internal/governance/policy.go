// Package governance decides whether a chain may run before any of its steps
// execute.
package governance

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// ErrDenied reports a chain rejected by policy.
var ErrDenied = errors.New("denied by policy")

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Request describes one step of a chain about to run.
type Request struct {
	Chain        string
	Step         string
	StepFunction string
	References   []string
}

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

// PolicyEngine evaluates steps against a set of rules.
type PolicyEngine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// DefaultPolicyEngine denies listed step functions and any step whose prompt
// template references match a denied pattern.
type DefaultPolicyEngine struct {
	DeniedSteps map[string]bool
	DeniedRefs  []*regexp.Regexp
}

func NewDefaultPolicyEngine() *DefaultPolicyEngine {
	return &DefaultPolicyEngine{
		DeniedSteps: make(map[string]bool),
		DeniedRefs:  make([]*regexp.Regexp, 0),
	}
}

// New builds a DefaultPolicyEngine from configured step names and reference
// patterns.
func New(deniedSteps, deniedRefs []string) (*DefaultPolicyEngine, error) {
	e := NewDefaultPolicyEngine()
	for _, name := range deniedSteps {
		e.DenyStepFunction(name)
	}
	for _, pattern := range deniedRefs {
		if err := e.DenyReferences(pattern); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *DefaultPolicyEngine) DenyStepFunction(name string) {
	e.DeniedSteps[name] = true
}

func (e *DefaultPolicyEngine) DenyReferences(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid reference pattern %q: %w", pattern, err)
	}
	e.DeniedRefs = append(e.DeniedRefs, re)
	return nil
}

func (e *DefaultPolicyEngine) Evaluate(_ context.Context, req Request) (Result, error) {
	if e.DeniedSteps[req.StepFunction] {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("step function '%s' is restricted by policy", req.StepFunction),
		}, nil
	}

	for _, re := range e.DeniedRefs {
		for _, ref := range req.References {
			if re.MatchString(ref) {
				return Result{
					Effect: EffectDeny,
					Reason: fmt.Sprintf("reference %s matches restricted pattern %s", ref, re.String()),
				}, nil
			}
		}
	}

	return Result{Effect: EffectAllow, Reason: "approved by default policy"}, nil
}

// Authorize turns a deny result into an ErrDenied error.
func Authorize(ctx context.Context, p PolicyEngine, req Request) error {
	res, err := p.Evaluate(ctx, req)
	if err != nil {
		return fmt.Errorf("evaluate policy for step %s: %w", req.Step, err)
	}
	if res.Effect == EffectDeny {
		return fmt.Errorf("%w: step %s: %s", ErrDenied, req.Step, res.Reason)
	}
	return nil
}
