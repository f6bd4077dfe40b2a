package governance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicyEngine_Evaluate(t *testing.T) {
	engine := NewDefaultPolicyEngine()
	ctx := context.Background()

	res, err := engine.Evaluate(ctx, Request{Step: "s", StepFunction: "process_with_llm"})
	require.NoError(t, err)
	assert.Equal(t, EffectAllow, res.Effect)

	engine.DenyStepFunction("process_with_llm")
	res, err = engine.Evaluate(ctx, Request{Step: "s", StepFunction: "process_with_llm"})
	require.NoError(t, err)
	assert.Equal(t, EffectDeny, res.Effect)
	assert.Contains(t, res.Reason, "process_with_llm")
}

func TestDenyReferences(t *testing.T) {
	engine, err := New(nil, []string{`^https?://`})
	require.NoError(t, err)
	ctx := context.Background()

	err = Authorize(ctx, engine, Request{Step: "local", References: []string{"prompts/a.yaml"}})
	assert.NoError(t, err)

	err = Authorize(ctx, engine, Request{Step: "remote", References: []string{"prompts/a.yaml", "https://example.com/p"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDenied))
	assert.Contains(t, err.Error(), "remote")

	_, err = New(nil, []string{"("})
	assert.Error(t, err)
}
