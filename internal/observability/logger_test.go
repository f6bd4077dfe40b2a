package observability

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	return out
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	l.LogStep("run-1", "demo", "summarize", nil)
	l.LogChainLoad("demo", "a demo chain", 2)
	l.LogStepFailed("run-1", "demo", "summarize", errors.New("boom"))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2, "debug step event should be filtered at info level")

	assert.Equal(t, "chain_load", lines[0]["type"])
	assert.Equal(t, "info", lines[0]["level"])
	assert.EqualValues(t, 2, lines[0]["steps"])

	assert.Equal(t, "error", lines[1]["level"])
	assert.Equal(t, "boom", lines[1]["error"])
	assert.Equal(t, "run-1", lines[1]["run_id"])
}

func TestLoggerDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, WithLevel("debug"))

	l.LogStep("run-1", "demo", "summarize", map[string]any{"output_key": "summary"})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "debug", lines[0]["level"])
	assert.Equal(t, "summary", lines[0]["output_key"])
}

func TestLoggerLLMTranscript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "llm.jsonl")
	var buf bytes.Buffer
	l := NewLogger(&buf, WithLLMLog(path))

	l.LogLLM("run-1", "summarize", []string{"hello"}, "world")
	l.LogLLM("run-1", "summarize", []string{"again"}, "done")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var evt Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &evt))
	assert.Equal(t, EventTypeLLM, evt.Type)
	assert.Equal(t, "world", evt.Data["response"])
	assert.False(t, evt.Timestamp.IsZero())
}

func TestLoggerRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "llm.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 64)), 0644))

	l := NewLogger(&bytes.Buffer{}, WithLLMLog(path))
	l.maxSize = 16

	l.LogLLM("", "", "p", "r")

	_, err := os.Stat(path + ".old")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "\n"))
}

func TestNop(t *testing.T) {
	l := Nop()
	l.LogBatchRow(1, "doc", errors.New("ignored"))
	l.LogLLM("", "", nil, "")
}

func TestWriteBanner(t *testing.T) {
	var buf bytes.Buffer
	writeBanner(&buf, 120)
	assert.Contains(t, buf.String(), "PROMPT CHAINS")
}

func TestStatus(t *testing.T) {
	SetStatus(PhaseBatch, "jobs")
	Heartbeat()
	Heartbeat()

	phase, task, processed, beat := GetStatus()
	assert.Equal(t, PhaseBatch, phase)
	assert.Equal(t, "jobs", task)
	assert.Equal(t, 2, processed)
	assert.False(t, beat.IsZero())

	SetStatus(PhaseIdle, "")
	phase, _, processed, _ = GetStatus()
	assert.Equal(t, PhaseIdle, phase)
	assert.Zero(t, processed)
}

func TestLogBatchRowReportsProgress(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	SetStatus(PhaseBatch, "jobs")
	defer SetStatus(PhaseIdle, "")
	Heartbeat()
	l.LogBatchRow(2, "shout", nil)
	Heartbeat()
	l.LogBatchRow(3, "shout", errors.New("boom"))

	SetStatus(PhaseIdle, "")
	l.LogBatchRow(4, "shout", nil)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "jobs", lines[0]["table"])
	assert.EqualValues(t, 1, lines[0]["processed"])
	assert.EqualValues(t, 2, lines[1]["processed"])
	assert.Equal(t, "row failed", lines[1]["message"])
	assert.NotContains(t, lines[2], "processed")
}
