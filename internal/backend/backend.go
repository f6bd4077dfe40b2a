// Package backend adapts composed prompt messages to a language model.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/chainbench/internal/prompt"
)

// ErrBackend wraps failed model calls and unusable model responses.
var ErrBackend = errors.New("backend error")

// Backend turns an ordered message list into generated text.
type Backend interface {
	Generate(ctx context.Context, messages []prompt.Message) (string, error)
}

// Func adapts a function to Backend.
type Func func(ctx context.Context, messages []prompt.Message) (string, error)

func (f Func) Generate(ctx context.Context, messages []prompt.Message) (string, error) {
	return f(ctx, messages)
}

const (
	DefaultMaxTokens   = 4096
	DefaultTemperature = 0.0
)

// Langchain sends messages to any langchaingo model. All system messages are
// merged into one leading system instruction; user and assistant turns keep
// their order.
type Langchain struct {
	model       llms.Model
	maxTokens   int
	temperature float64
}

type Option func(*Langchain)

func WithMaxTokens(n int) Option {
	return func(l *Langchain) {
		if n > 0 {
			l.maxTokens = n
		}
	}
}

func WithTemperature(t float64) Option {
	return func(l *Langchain) { l.temperature = t }
}

func NewLangchain(model llms.Model, opts ...Option) *Langchain {
	l := &Langchain{
		model:       model,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Langchain) Generate(ctx context.Context, messages []prompt.Message) (string, error) {
	system, turns := SplitSystem(messages)
	if len(turns) == 0 {
		return "", fmt.Errorf("%w: no user or assistant messages to send", ErrBackend)
	}

	var content []llms.MessageContent
	if system != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	for _, m := range turns {
		content = append(content, llms.TextParts(chatType(m.Role), m.Content))
	}

	resp, err := l.model.GenerateContent(ctx, content,
		llms.WithMaxTokens(l.maxTokens),
		llms.WithTemperature(l.temperature),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBackend, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: model returned no choices", ErrBackend)
	}

	return resp.Choices[0].Content, nil
}

// SplitSystem separates system messages, joined with a single space, from
// the remaining turns.
func SplitSystem(messages []prompt.Message) (string, []prompt.Message) {
	var system []string
	turns := make([]prompt.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == prompt.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	return strings.Join(system, " "), turns
}

func chatType(role prompt.Role) llms.ChatMessageType {
	if role == prompt.RoleAssistant {
		return llms.ChatMessageTypeAI
	}
	return llms.ChatMessageTypeHuman
}

// Echo returns the content of the last message. Used for dry runs and tests.
type Echo struct{}

func (Echo) Generate(_ context.Context, messages []prompt.Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("%w: no messages", ErrBackend)
	}
	return messages[len(messages)-1].Content, nil
}
