package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Built-in step function names.
const (
	StepProcessWithLLM = "process_with_llm"
	StepRenderPrompt   = "render_prompt"
	StepCopyInput      = "copy_input"
	StepParseJSON      = "parse_json"
)

// RegisterBuiltins adds the built-in step functions to r.
func RegisterBuiltins(r *Registry) {
	r.RegisterFunc(StepProcessWithLLM, processWithLLM)
	r.RegisterFunc(StepRenderPrompt, renderPrompt)
	r.RegisterFunc(StepCopyInput, copyInput)
	r.RegisterFunc(StepParseJSON, parseJSON)
}

// processWithLLM composes the step's templates against the current context
// and returns the model's reply.
func processWithLLM(ctx context.Context, acc Accessor, templates []string, debug bool) (Value, error) {
	if acc.Backend() == nil {
		return Value{}, fmt.Errorf("%w: step %s: no model backend configured", ErrConfig, acc.Step().Name)
	}

	msgs, err := acc.Composer().Compose(ctx, templates, acc.Context().Vars())
	if err != nil {
		return Value{}, err
	}

	out, err := acc.Backend().Generate(ctx, msgs)
	if err != nil {
		return Value{}, err
	}

	if debug {
		acc.Logger().LogLLM(acc.RunID(), acc.Step().Name, msgs, out)
	}
	return Text(out), nil
}

// renderPrompt returns the composed messages without calling the model.
func renderPrompt(ctx context.Context, acc Accessor, templates []string, _ bool) (Value, error) {
	msgs, err := acc.Composer().Compose(ctx, templates, acc.Context().Vars())
	if err != nil {
		return Value{}, err
	}

	items := make([]Value, len(msgs))
	for i, m := range msgs {
		items[i] = Record(map[string]Value{
			"role":    Text(string(m.Role)),
			"content": Text(m.Content),
		})
	}
	return List(items...), nil
}

func copyInput(_ context.Context, acc Accessor, _ []string, _ bool) (Value, error) {
	return input(acc)
}

// parseJSON decodes the text under input_key, repairing the usual model
// output damage (code fences, trailing commas, single quotes) first.
func parseJSON(_ context.Context, acc Accessor, _ []string, _ bool) (Value, error) {
	v, err := input(acc)
	if err != nil {
		return Value{}, err
	}

	raw := strings.TrimSpace(stripFences(v.String()))
	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return Value{}, fmt.Errorf("step %s: repair json: %w", acc.Step().Name, err)
	}

	var decoded any
	if err := json.Unmarshal([]byte(repaired), &decoded); err != nil {
		return Value{}, fmt.Errorf("step %s: decode json: %w", acc.Step().Name, err)
	}
	return FromAny(decoded)
}

func input(acc Accessor) (Value, error) {
	step := acc.Step()
	if step.InputKey == "" {
		return Value{}, fmt.Errorf("%w: step %s: %s requires input_key", ErrConfig, step.Name, step.StepFunction)
	}

	v, ok := acc.Context().Get(step.InputKey)
	if !ok {
		return Value{}, fmt.Errorf("%w: step %s: context has no %q", ErrMissingInput, step.Name, step.InputKey)
	}
	return v, nil
}

// stripFences returns the body of the first ``` code block, or s unchanged.
func stripFences(s string) string {
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}

	body := s[start+3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return body
}
