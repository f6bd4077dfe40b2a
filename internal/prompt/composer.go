package prompt

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rahul/chainbench/internal/provider"
)

// Composer loads prompt-template documents through a DocumentProvider,
// renders them and concatenates their messages in document order.
//
// Raw document text is cached by reference for the lifetime of the Composer.
// The cache is unbounded and never invalidated; build a new Composer or call
// Reset to force a re-fetch.
type Composer struct {
	docs     provider.DocumentProvider
	renderer Renderer
	cache    map[string]string
	fetches  int
}

func NewComposer(docs provider.DocumentProvider, renderer Renderer) *Composer {
	return &Composer{
		docs:     docs,
		renderer: renderer,
		cache:    make(map[string]string),
	}
}

// Compose renders every reference against vars and returns the combined
// message list. Document N's messages precede document N+1's.
func (c *Composer) Compose(ctx context.Context, refs []string, vars map[string]any) ([]Message, error) {
	var composed []Message

	for _, ref := range refs {
		content, err := c.Source(ctx, ref)
		if err != nil {
			return nil, err
		}

		rendered, err := c.renderer.Render(content, vars)
		if err != nil {
			return nil, fmt.Errorf("%w: render prompt doc %s: %w", ErrPromptFormat, ref, err)
		}

		msgs, err := parseMessages(strings.TrimSpace(rendered))
		if err != nil {
			return nil, fmt.Errorf("%w: prompt doc %s: %w", ErrPromptFormat, ref, err)
		}

		composed = append(composed, msgs...)
	}

	return composed, nil
}

// Source returns the raw text of ref, fetching it on first use only.
func (c *Composer) Source(ctx context.Context, ref string) (string, error) {
	if content, ok := c.cache[ref]; ok {
		return content, nil
	}

	content, err := c.docs.GetText(ctx, ref)
	if err != nil {
		return "", err
	}
	c.fetches++
	c.cache[ref] = content
	return content, nil
}

// Fetches reports how many documents were loaded from the provider.
func (c *Composer) Fetches() int {
	return c.fetches
}

// Reset drops every cached document.
func (c *Composer) Reset() {
	clear(c.cache)
}

type rawMessage struct {
	Role    string  `yaml:"role"`
	Content *string `yaml:"content"`
}

func parseMessages(text string) ([]Message, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse prompt as YAML: %w", err)
	}

	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("must contain a mapping or a list of mappings, got an empty document")
	}

	root := doc.Content[0]
	switch root.Kind {
	case yaml.MappingNode:
		msg, err := decodeMessage(root)
		if err != nil {
			return nil, err
		}
		return []Message{msg}, nil
	case yaml.SequenceNode:
		msgs := make([]Message, 0, len(root.Content))
		for i, item := range root.Content {
			if item.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("item %d must be a mapping", i+1)
			}
			msg, err := decodeMessage(item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i+1, err)
			}
			msgs = append(msgs, msg)
		}
		return msgs, nil
	default:
		return nil, fmt.Errorf("must contain a mapping or a list of mappings")
	}
}

func decodeMessage(node *yaml.Node) (Message, error) {
	var raw rawMessage
	if err := node.Decode(&raw); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}

	if raw.Content == nil {
		return Message{}, fmt.Errorf("message is missing content")
	}

	role := Role(strings.ToLower(strings.TrimSpace(raw.Role)))
	if role == "" {
		role = RoleUser
	}
	if !role.valid() {
		return Message{}, fmt.Errorf("unknown role %q", raw.Role)
	}

	return Message{Role: role, Content: *raw.Content}, nil
}
