package chain

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLastRegistrationWins(t *testing.T) {
	r := NewRegistry()
	r.RegisterFunc("step", returning(Text("old")))
	r.RegisterFunc("step", returning(Text("new")))

	h, err := r.Lookup("step")
	require.NoError(t, err)

	v, err := h.Run(context.Background(), nil, nil, false)
	require.NoError(t, err)
	assert.Equal(t, Text("new"), v)
}

func TestRegistryLookupUnknown(t *testing.T) {
	_, err := NewRegistry().Lookup("missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))
	assert.True(t, errors.Is(err, ErrUnknownStepFunction))
	assert.Contains(t, err.Error(), "missing")
}

func TestRegistryNames(t *testing.T) {
	r := builtinRegistry()
	assert.Equal(t, []string{"copy_input", "parse_json", "process_with_llm", "render_prompt"}, r.Names())
}

func TestValueConversions(t *testing.T) {
	v, err := FromAny(map[string]any{
		"name":  "Ada",
		"age":   36,
		"score": 9.5,
		"ok":    true,
		"tags":  []any{"a", nil},
		"meta":  map[any]any{"k": "v"},
	})
	require.NoError(t, err)

	assert.Equal(t, KindRecord, v.Kind())
	assert.Equal(t, []string{"age", "meta", "name", "ok", "score", "tags"}, v.Keys())

	age, _ := v.Field("age")
	assert.Equal(t, "36", age.String())
	assert.Equal(t, 36, age.Any())

	tags, _ := v.Field("tags")
	require.Len(t, tags.Items(), 2)
	assert.True(t, tags.Items()[1].IsNull())

	assert.JSONEq(t, `{"name":"Ada","age":36,"score":9.5,"ok":true,"tags":["a",null],"meta":{"k":"v"}}`, v.String())

	_, err = FromAny(struct{}{})
	assert.Error(t, err)
}

func TestValueStrings(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Text("plain"), "plain"},
		{Null(), ""},
		{Number(2.5), "2.5"},
		{Bool(false), "false"},
		{List(Text("a"), Number(1)), `["a",1]`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.v.String())
	}

	s, ok := Text("x").Text()
	assert.True(t, ok)
	assert.Equal(t, "x", s)
	_, ok = Number(1).Text()
	assert.False(t, ok)
}

func TestContextJSON(t *testing.T) {
	seed := map[string]Value{"x": Text("hi")}
	cc := NewContext(seed)
	cc.Set("n", Number(3))
	cc.SetText("y", "there")
	seed["z"] = Text("not copied")

	data, err := json.Marshal(cc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":"hi","n":3,"y":"there"}`, string(data))

	var back Value
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, []string{"n", "x", "y"}, back.Keys())
}
