package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/chainbench/internal/prompt"
	"github.com/rahul/chainbench/pkg/config"
)

type fakeModel struct {
	got     []llms.MessageContent
	opts    llms.CallOptions
	reply   *llms.ContentResponse
	failure error
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.got = messages
	for _, opt := range options {
		opt(&f.opts)
	}
	if f.failure != nil {
		return nil, f.failure
	}
	return f.reply, nil
}

func (f *fakeModel) Call(ctx context.Context, text string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, text, options...)
}

func reply(text string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: text}}}
}

func TestSplitSystem(t *testing.T) {
	system, turns := SplitSystem([]prompt.Message{
		{Role: prompt.RoleSystem, Content: "be brief."},
		{Role: prompt.RoleUser, Content: "hi"},
		{Role: prompt.RoleSystem, Content: "be kind."},
		{Role: prompt.RoleAssistant, Content: "hello"},
	})

	assert.Equal(t, "be brief. be kind.", system)
	assert.Equal(t, []prompt.Message{
		{Role: prompt.RoleUser, Content: "hi"},
		{Role: prompt.RoleAssistant, Content: "hello"},
	}, turns)
}

func TestLangchainGenerate(t *testing.T) {
	model := &fakeModel{reply: reply("done")}
	b := NewLangchain(model)

	out, err := b.Generate(context.Background(), []prompt.Message{
		{Role: prompt.RoleUser, Content: "question"},
		{Role: prompt.RoleSystem, Content: "rules"},
		{Role: prompt.RoleAssistant, Content: "draft"},
	})
	require.NoError(t, err)
	assert.Equal(t, "done", out)

	require.Len(t, model.got, 3)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.got[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.got[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, model.got[2].Role)
	assert.Equal(t, llms.TextContent{Text: "rules"}, model.got[0].Parts[0])
	assert.Equal(t, DefaultMaxTokens, model.opts.MaxTokens)
	assert.Equal(t, 0.0, model.opts.Temperature)
}

func TestLangchainOptions(t *testing.T) {
	model := &fakeModel{reply: reply("ok")}
	b := NewLangchain(model, WithMaxTokens(256), WithTemperature(0.7), WithMaxTokens(0))

	_, err := b.Generate(context.Background(), []prompt.Message{{Role: prompt.RoleUser, Content: "x"}})
	require.NoError(t, err)
	assert.Equal(t, 256, model.opts.MaxTokens)
	assert.Equal(t, 0.7, model.opts.Temperature)
}

func TestLangchainErrors(t *testing.T) {
	user := []prompt.Message{{Role: prompt.RoleUser, Content: "x"}}

	tests := []struct {
		name     string
		model    *fakeModel
		messages []prompt.Message
	}{
		{"model failure", &fakeModel{failure: errors.New("rate limited")}, user},
		{"no choices", &fakeModel{reply: &llms.ContentResponse{}}, user},
		{"nil response", &fakeModel{}, user},
		{"system only", &fakeModel{reply: reply("x")}, []prompt.Message{{Role: prompt.RoleSystem, Content: "s"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLangchain(tt.model).Generate(context.Background(), tt.messages)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrBackend))
		})
	}
}

func TestEcho(t *testing.T) {
	out, err := Echo{}.Generate(context.Background(), []prompt.Message{
		{Role: prompt.RoleUser, Content: "first"},
		{Role: prompt.RoleUser, Content: "last"},
	})
	require.NoError(t, err)
	assert.Equal(t, "last", out)

	_, err = Echo{}.Generate(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrBackend))
}

func TestNewModelUnknownProvider(t *testing.T) {
	_, err := NewModel(context.Background(), "cohere", config.ProviderConfig{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBackend))

	_, err = FromConfig(context.Background(), &config.Config{})
	assert.True(t, errors.Is(err, ErrBackend))
}

func TestNewModelOllama(t *testing.T) {
	llm, err := NewModel(context.Background(), "ollama", config.ProviderConfig{Model: "llama3"})
	require.NoError(t, err)
	assert.NotNil(t, llm)
}
