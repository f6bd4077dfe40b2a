package chain

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultChainName = "unnamed_chain"

// Definition is a parsed chain. Treat it as immutable once loaded.
type Definition struct {
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description" yaml:"description"`
	Steps       []StepDefinition `json:"steps" yaml:"steps"`
}

type StepDefinition struct {
	Name            string   `json:"name" yaml:"name"`
	InputKey        string   `json:"input_key,omitempty" yaml:"input_key,omitempty"`
	OutputKey       string   `json:"output_key,omitempty" yaml:"output_key,omitempty"`
	StepFunction    string   `json:"step_function" yaml:"step_function"`
	PromptTemplates []string `json:"prompt_templates,omitempty" yaml:"prompt_templates,omitempty"`
}

type rawChain struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Steps       yaml.Node `yaml:"steps"`
}

type rawStep struct {
	Name            string    `yaml:"name"`
	InputKey        string    `yaml:"input_key"`
	OutputKey       string    `yaml:"output_key"`
	StepFunction    string    `yaml:"step_function"`
	PromptTemplates yaml.Node `yaml:"prompt_templates"`
}

// Parse reads a chain definition and validates every step against the
// registry. Errors wrap ErrConfig; no partial definition is returned.
func Parse(text string, registry *Registry) (*Definition, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("%w: error loading chain configuration: %w", ErrConfig, err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: chain definition must be a mapping", ErrConfig)
	}

	var raw rawChain
	if err := doc.Content[0].Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: error loading chain configuration: %w", ErrConfig, err)
	}

	def := &Definition{
		Name:        strings.TrimSpace(raw.Name),
		Description: raw.Description,
	}
	if def.Name == "" {
		def.Name = defaultChainName
	}

	if raw.Steps.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%w: chain %s: steps must be a list", ErrConfig, def.Name)
	}

	for i, node := range raw.Steps.Content {
		step, err := parseStep(i+1, node, registry)
		if err != nil {
			return nil, err
		}
		def.Steps = append(def.Steps, step)
	}

	return def, nil
}

func parseStep(pos int, node *yaml.Node, registry *Registry) (StepDefinition, error) {
	if node.Kind != yaml.MappingNode {
		return StepDefinition{}, fmt.Errorf("%w: step %d must be a mapping", ErrConfig, pos)
	}

	var raw rawStep
	if err := node.Decode(&raw); err != nil {
		return StepDefinition{}, fmt.Errorf("%w: step %d: %w", ErrConfig, pos, err)
	}

	if _, err := registry.Lookup(raw.StepFunction); err != nil {
		return StepDefinition{}, fmt.Errorf("step %d: %w", pos, err)
	}
	if raw.Name == "" {
		return StepDefinition{}, fmt.Errorf("%w: %w: step %d", ErrConfig, ErrMissingStepName, pos)
	}

	refs, err := templateRefs(raw.Name, &raw.PromptTemplates)
	if err != nil {
		return StepDefinition{}, err
	}

	return StepDefinition{
		Name:            raw.Name,
		InputKey:        raw.InputKey,
		OutputKey:       raw.OutputKey,
		StepFunction:    raw.StepFunction,
		PromptTemplates: refs,
	}, nil
}

// templateRefs keeps only the reference of each prompt_templates entry. An
// entry is a bare string or a mapping with a url (or ref) key.
func templateRefs(step string, node *yaml.Node) ([]string, error) {
	if node.Kind == 0 || isNull(node) {
		return nil, nil
	}
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%w: step %s: prompt_templates must be a list", ErrConfig, step)
	}

	refs := make([]string, 0, len(node.Content))
	for i, item := range node.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			if isNull(item) || strings.TrimSpace(item.Value) == "" {
				return nil, fmt.Errorf("%w: %w: step %s prompt template %d is empty", ErrConfig, ErrMissingReference, step, i+1)
			}
			refs = append(refs, strings.TrimSpace(item.Value))
		case yaml.MappingNode:
			var entry map[string]any
			if err := item.Decode(&entry); err != nil {
				return nil, fmt.Errorf("%w: step %s prompt template %d: %w", ErrConfig, step, i+1, err)
			}
			ref := referenceOf(entry)
			if ref == "" {
				return nil, fmt.Errorf("%w: %w: missing 'url' key in prompt template for step %s", ErrConfig, ErrMissingReference, step)
			}
			refs = append(refs, ref)
		default:
			return nil, fmt.Errorf("%w: step %s prompt template %d must be a string or a mapping", ErrConfig, step, i+1)
		}
	}
	return refs, nil
}

func referenceOf(entry map[string]any) string {
	for _, key := range []string{"url", "ref"} {
		if s, ok := entry[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.Tag == "!!null"
}
