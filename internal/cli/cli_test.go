package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	dir    string
	config string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()

	db := filepath.ToSlash(filepath.Join(dir, "chainbench.db"))
	cfg := `
[documents]
type = "sqlite"
path = "` + db + `"

[tables]
path = "` + db + `"

[log]
level = "error"
llm_log = ""
`
	path := filepath.Join(dir, "chainbench.toml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))

	docs := filepath.Join(dir, "docs")
	require.NoError(t, os.MkdirAll(docs, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "shout.yaml"), []byte(`
name: shout
steps:
  - name: shout
    step_function: process_with_llm
    output_key: chain_output
    prompt_templates:
      - url: shout-prompt.yaml
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "shout-prompt.yaml"), []byte(
		`{role: user, content: "{{ chain_input | upper }}!"}`), 0644))

	return &harness{dir: dir, config: path}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := NewApp("test")
	app.Writer = &out
	app.ErrWriter = &out
	err := app.RunContext(context.Background(), append([]string{"chainbench", "--config", h.config}, args...))
	return out.String(), err
}

func TestCLIRoundTrip(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "import", "docs", filepath.Join(h.dir, "docs"))
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 documents")

	out, err = h.run(t, "validate", "shout.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, `Chain "shout" is valid (1 steps)`)

	out, err = h.run(t, "run", "--dry-run", "--chain-input", "hello", "--output-key", "chain_output", "shout.yaml")
	require.NoError(t, err)
	assert.Equal(t, "HELLO!\n", out)

	jobs := filepath.Join(h.dir, "jobs.csv")
	require.NoError(t, os.WriteFile(jobs, []byte("chain_url,chain_input\nshout.yaml,a\nshout.yaml,b\n"), 0644))
	out, err = h.run(t, "import", "csv", jobs)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 3 rows into jobs")

	out, err = h.run(t, "batch", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "2 rows: 2 succeeded, 0 failed")

	out, err = h.run(t, "export", "csv")
	require.NoError(t, err)
	assert.Equal(t, "chain_url,chain_input,chain_output\nshout.yaml,a,A!\nshout.yaml,b,B!\n", out)

	out, err = h.run(t, "runs", "--limit", "5")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 4)
	assert.Contains(t, lines[1], "completed")
}

func TestCLIListAndClearOutput(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "import", "docs", filepath.Join(h.dir, "docs"))
	require.NoError(t, err)

	out, err := h.run(t, "list", "docs")
	require.NoError(t, err)
	assert.Equal(t, "shout-prompt.yaml\nshout.yaml\n", out)

	jobs := filepath.Join(h.dir, "jobs.csv")
	require.NoError(t, os.WriteFile(jobs, []byte("chain_url,chain_input\nshout.yaml,a\n"), 0644))
	_, err = h.run(t, "import", "csv", jobs)
	require.NoError(t, err)

	_, err = h.run(t, "batch", "--dry-run")
	require.NoError(t, err)
	_, err = h.run(t, "batch", "--dry-run")
	require.NoError(t, err)

	out, err = h.run(t, "list", "sheets")
	require.NoError(t, err)
	assert.Regexp(t, `(?m)^jobs\s+2$`, out)
	assert.Regexp(t, `(?m)^output\s+3$`, out, "second batch appends below the first")

	_, err = h.run(t, "batch", "--dry-run", "--clear-output")
	require.NoError(t, err)
	out, err = h.run(t, "list", "sheets")
	require.NoError(t, err)
	assert.Regexp(t, `(?m)^output\s+2$`, out)
}

func TestCLIRunPrintsContext(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "import", "docs", filepath.Join(h.dir, "docs"))
	require.NoError(t, err)

	out, err := h.run(t, "run", "--dry-run", "--input", "chain_input=x", "shout.yaml")
	require.NoError(t, err)
	assert.JSONEq(t, `{"chain_input":"x","chain_output":"X!"}`, out)
}

func TestCLIRunErrors(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "run")
	assert.Error(t, err)

	_, err = h.run(t, "run", "--input", "novalue", "shout.yaml")
	assert.ErrorContains(t, err, "KEY=VALUE")

	_, err = h.run(t, "run", "--dry-run", "missing.yaml")
	assert.ErrorContains(t, err, "missing.yaml")

	out, err := h.run(t, "runs")
	require.NoError(t, err)
	assert.Contains(t, out, "failed")
}

func TestCLISteps(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, "steps")
	require.NoError(t, err)
	assert.Equal(t, "copy_input\nparse_json\nprocess_with_llm\nrender_prompt\n", out)
}

func TestCLIConfig(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")

	target := filepath.Join(h.dir, "new.toml")
	out, err = h.run(t, "config", "init", "--output", target)
	require.NoError(t, err)
	assert.Contains(t, out, target)

	_, err = h.run(t, "config", "init", "--output", target)
	assert.Error(t, err)
}
