package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chainbench.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Documents.Type)
	assert.Equal(t, "output", cfg.Batch.OutputSheet)
	assert.Equal(t, "chain_input", cfg.Batch.InputKey)
	assert.Equal(t, "chain_output", cfg.Batch.OutputKey)
	assert.Equal(t, "halt", cfg.Batch.OnError)
	assert.Equal(t, "jinja2", cfg.Prompt.Format)
	assert.NoError(t, Validate(cfg))
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
[providers.openai]
api_key = "file-key"
model = "gpt-4o-mini"
enabled = true

[batch]
on_error = "continue"
`)
	t.Setenv("CHAINBENCH_PROVIDERS__OPENAI__API_KEY", "env-key")
	t.Setenv("CHAINBENCH_LOG__LEVEL", "debug")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	p := cfg.Providers["openai"]
	assert.Equal(t, "env-key", p.APIKey)
	assert.Equal(t, "gpt-4o-mini", p.Model)
	assert.True(t, p.Enabled)
	assert.Equal(t, "continue", cfg.Batch.OnError)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestGetDefaultProvider(t *testing.T) {
	cfg := &Config{Providers: map[string]ProviderConfig{
		"openai":    {Model: "gpt", Enabled: true},
		"anthropic": {Model: "claude", Enabled: true},
		"ollama":    {Model: "llama3"},
	}}

	name, p := cfg.GetDefaultProvider()
	assert.Equal(t, "anthropic", name)
	assert.Equal(t, "claude", p.Model)

	cfg.App.DefaultProvider = "openai"
	name, _ = cfg.GetDefaultProvider()
	assert.Equal(t, "openai", name)

	cfg.App.DefaultProvider = "ollama"
	name, _ = cfg.GetDefaultProvider()
	assert.Equal(t, "anthropic", name, "disabled default falls back")

	name, _ = (&Config{}).GetDefaultProvider()
	assert.Empty(t, name)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := LoadConfig(writeConfig(t, ""))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown documents type", func(c *Config) { c.Documents.Type = "ftp" }},
		{"web without url", func(c *Config) { c.Documents.Type = "web" }},
		{"bad failure policy", func(c *Config) { c.Batch.OnError = "retry" }},
		{"bad prompt format", func(c *Config) { c.Prompt.Format = "mustache" }},
		{"bad policy pattern", func(c *Config) { c.Policy.DeniedRefs = []string{"("} }},
		{"missing default provider", func(c *Config) { c.App.DefaultProvider = "openai" }},
		{"enabled provider without key", func(c *Config) {
			c.Providers = map[string]ProviderConfig{"openai": {Model: "gpt", Enabled: true}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chainbench.toml")
	require.NoError(t, InitConfig(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))

	name, _ := cfg.GetDefaultProvider()
	assert.Equal(t, "anthropic", name)

	assert.Error(t, InitConfig(path), "refuses to overwrite")
}
