package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "CHAINBENCH_"

type Config struct {
	App       AppConfig                 `koanf:"app"`
	Providers map[string]ProviderConfig `koanf:"providers"`
	Documents DocumentsConfig           `koanf:"documents"`
	Tables    TablesConfig              `koanf:"tables"`
	Batch     BatchConfig               `koanf:"batch"`
	Prompt    PromptConfig              `koanf:"prompt"`
	Log       LogConfig                 `koanf:"log"`
	Policy    PolicyConfig              `koanf:"policy"`
}

type AppConfig struct {
	Name            string `koanf:"name"`
	DefaultProvider string `koanf:"default_provider"`
}

type ProviderConfig struct {
	APIKey      string  `koanf:"api_key"`
	Model       string  `koanf:"model"`
	BaseURL     string  `koanf:"base_url"`
	Enabled     bool    `koanf:"enabled"`
	MaxTokens   int     `koanf:"max_tokens"`
	Temperature float64 `koanf:"temperature"`
}

// DocumentsConfig selects where chain and prompt documents are read from:
// "sqlite" (Path is the database), "dir" (Path is the root directory) or
// "web" (BaseURL is the export endpoint).
type DocumentsConfig struct {
	Type    string `koanf:"type"`
	Path    string `koanf:"path"`
	BaseURL string `koanf:"base_url"`
}

type TablesConfig struct {
	Path string `koanf:"path"`
}

type BatchConfig struct {
	JobSheet    string `koanf:"job_sheet"`
	OutputSheet string `koanf:"output_sheet"`
	InputKey    string `koanf:"input_key"`
	OutputKey   string `koanf:"output_key"`
	FullContext bool   `koanf:"full_context"`
	OnError     string `koanf:"on_error"`
}

type PromptConfig struct {
	Format string `koanf:"format"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	LLMLog string `koanf:"llm_log"`
}

// PolicyConfig lists step functions and prompt reference patterns (regular
// expressions) that chains may not use.
type PolicyConfig struct {
	DeniedSteps []string `koanf:"denied_steps"`
	DeniedRefs  []string `koanf:"denied_refs"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"app.name":           "chainbench",
		"documents.type":     "sqlite",
		"documents.path":     "data/chainbench.db",
		"tables.path":        "data/chainbench.db",
		"batch.job_sheet":    "jobs",
		"batch.output_sheet": "output",
		"batch.input_key":    "chain_input",
		"batch.output_key":   "chain_output",
		"batch.on_error":     "halt",
		"prompt.format":      "jinja2",
		"log.level":          "info",
		"log.llm_log":        "logs/llm.jsonl",
	}
}

// LoadConfig layers defaults, a TOML file and CHAINBENCH_ environment
// variables. With an empty path the default locations are tried and a
// missing file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		for _, path := range []string{"./chainbench.toml", "$HOME/.chainbench.toml"} {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, fmt.Errorf("error loading config %s: %w", path, err)
			}
			break
		}
	}

	// CHAINBENCH_LOG__LEVEL -> log.level; a double underscore separates
	// sections so that keys like api_key survive.
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// GetDefaultProvider returns app.default_provider when it is enabled, else
// the first enabled provider by name.
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	if p, ok := c.Providers[c.App.DefaultProvider]; ok && p.Enabled {
		return c.App.DefaultProvider, p
	}

	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if p := c.Providers[name]; p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// Validate validates the configuration
func Validate(cfg *Config) error {
	switch cfg.Documents.Type {
	case "sqlite", "dir":
		if cfg.Documents.Path == "" {
			return fmt.Errorf("documents.path is required for %s documents", cfg.Documents.Type)
		}
	case "web":
		if cfg.Documents.BaseURL == "" {
			return fmt.Errorf("documents.base_url is required for web documents")
		}
	default:
		return fmt.Errorf("unknown documents.type %q", cfg.Documents.Type)
	}

	if cfg.Tables.Path == "" {
		return fmt.Errorf("tables.path is required")
	}

	switch cfg.Batch.OnError {
	case "halt", "continue":
	default:
		return fmt.Errorf("batch.on_error must be halt or continue, got %q", cfg.Batch.OnError)
	}

	switch cfg.Prompt.Format {
	case "jinja2", "go-template", "f-string":
	default:
		return fmt.Errorf("unknown prompt.format %q", cfg.Prompt.Format)
	}

	for _, pattern := range cfg.Policy.DeniedRefs {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("invalid policy.denied_refs pattern %q: %w", pattern, err)
		}
	}

	if cfg.App.DefaultProvider != "" {
		if _, ok := cfg.Providers[cfg.App.DefaultProvider]; !ok {
			return fmt.Errorf("configuration for provider %s not found", cfg.App.DefaultProvider)
		}
	}

	for name, p := range cfg.Providers {
		if !p.Enabled {
			continue
		}
		if p.Model == "" {
			return fmt.Errorf("%s model is required", name)
		}
		if p.APIKey == "" && name != "ollama" {
			return fmt.Errorf("%s api_key is required", name)
		}
	}

	return nil
}

// InitConfig initializes a new configuration file
func InitConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sampleConfig := `# chainbench configuration

[app]
name = "chainbench"
default_provider = "anthropic"

[providers.anthropic]
api_key = "your-anthropic-api-key"
model = "claude-3-5-sonnet-latest"
enabled = true

[providers.openai]
api_key = "your-openai-api-key"
model = "gpt-4o-mini"
enabled = false

[providers.ollama]
base_url = "http://localhost:11434"
model = "llama3"
enabled = false

[documents]
# sqlite, dir or web
type = "sqlite"
path = "data/chainbench.db"

[tables]
path = "data/chainbench.db"

[batch]
job_sheet = "jobs"
output_sheet = "output"
input_key = "chain_input"
output_key = "chain_output"
full_context = false
# halt or continue
on_error = "halt"

[prompt]
# jinja2, go-template or f-string
format = "jinja2"

[log]
level = "info"
llm_log = "logs/llm.jsonl"

[policy]
# step functions and prompt reference patterns chains may not use
denied_steps = []
denied_refs = []
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}
