package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/chainbench/internal/provider"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestWorkbookWriteAndRead(t *testing.T) {
	ctx := context.Background()
	wb := openTestStore(t).Workbook()

	require.NoError(t, wb.WriteRange(ctx, "jobs!A1:B1", [][]string{{"chain_url", "chain_input"}}))
	require.NoError(t, wb.WriteRange(ctx, "jobs!A2", [][]string{{"chain-a", "hello"}, {"chain-b", "world"}}))

	values, err := wb.ReadRange(ctx, "jobs")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"chain_url", "chain_input"},
		{"chain-a", "hello"},
		{"chain-b", "world"},
	}, values)

	col, err := wb.ReadRange(ctx, "jobs!B2:B")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"hello"}, {"world"}}, col)

	rows, err := wb.ReadAll(ctx, "jobs")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "world", rows[1].Get("chain_input"))
}

func TestWorkbookOverwriteAndBounds(t *testing.T) {
	ctx := context.Background()
	wb := openTestStore(t).Workbook()

	require.NoError(t, wb.WriteRange(ctx, "s!A1", [][]string{{"a", "b", "c"}}))
	require.NoError(t, wb.WriteRange(ctx, "s!B1", [][]string{{"B", ""}}))

	values, err := wb.ReadRange(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "B"}}, values)

	err = wb.WriteRange(ctx, "s!A1:B1", [][]string{{"1", "2", "3"}})
	assert.True(t, errors.Is(err, provider.ErrTransport))
	err = wb.WriteRange(ctx, "s!A1:C1", [][]string{{"1"}, {"2"}})
	assert.True(t, errors.Is(err, provider.ErrTransport))

	_, err = wb.ReadRange(ctx, "!A1")
	assert.True(t, errors.Is(err, provider.ErrTransport))
}

func TestWorkbookAppendRows(t *testing.T) {
	ctx := context.Background()
	wb := openTestStore(t).Workbook()

	require.NoError(t, wb.WriteRange(ctx, "output!A1:C1", [][]string{{"chain_url", "chain_input", "chain_output"}}))
	require.NoError(t, wb.AppendRows(ctx, "output", [][]string{{"a", "1", "one"}}))
	require.NoError(t, wb.AppendRows(ctx, "output", [][]string{{"b", "2", "two"}}))

	n, err := wb.RowCount(ctx, "output")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rows, err := wb.ReadAll(ctx, "output")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "one", rows[0].Get("chain_output"))
	assert.Equal(t, "two", rows[1].Get("chain_output"))

	sheets, err := wb.Sheets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"output"}, sheets)

	require.NoError(t, wb.ClearSheet(ctx, "output"))
	n, err = wb.RowCount(ctx, "output")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWorkbookCSVRoundTrip(t *testing.T) {
	ctx := context.Background()
	wb := openTestStore(t).Workbook()

	in := "chain_url,chain_input\nchain-a,\"hello, world\"\nchain-b,\n"
	n, err := wb.ImportCSV(ctx, "jobs", strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var out bytes.Buffer
	require.NoError(t, wb.ExportCSV(ctx, "jobs", &out))
	assert.Equal(t, in, out.String())
}

func TestDocumentStore(t *testing.T) {
	ctx := context.Background()
	docs := openTestStore(t).Documents()

	_, err := docs.GetText(ctx, "missing")
	assert.True(t, errors.Is(err, provider.ErrTransport))

	require.NoError(t, docs.ReplaceText(ctx, "https://docs.google.com/document/d/abc-1_2/edit", "first"))
	require.NoError(t, docs.AppendText(ctx, "abc-1_2", " second"))

	text, err := docs.GetText(ctx, "abc-1_2")
	require.NoError(t, err)
	assert.Equal(t, "first second", text)

	require.NoError(t, docs.AppendText(ctx, "fresh", "new"))
	refs, err := docs.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"abc-1_2", "fresh"}, refs)
}

func TestDocumentStoreImportDir(t *testing.T) {
	ctx := context.Background()
	docs := openTestStore(t).Documents()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "prompts"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "chain.yaml"), []byte("name: demo"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "prompts", "greet.yaml"), []byte("role: user"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte("ref"), 0644))

	imported, err := docs.ImportDir(ctx, root)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"chain.yaml", "prompts/greet.yaml"}, imported)

	text, err := docs.GetText(ctx, "prompts/greet.yaml")
	require.NoError(t, err)
	assert.Equal(t, "role: user", text)
}

func TestRunLog(t *testing.T) {
	ctx := context.Background()
	runs := openTestStore(t).Runs()

	require.NoError(t, runs.Record(ctx, Run{RunID: "r1", ChainRef: "c", Chain: "demo", Status: "completed", Output: "ok", Elapsed: 1500 * time.Millisecond}))
	require.NoError(t, runs.Record(ctx, Run{RunID: "r2", ChainRef: "c", Chain: "demo", Status: "failed", Error: "boom"}))

	recent, err := runs.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "r2", recent[0].RunID)
	assert.Equal(t, "boom", recent[0].Error)
	assert.Equal(t, 1500*time.Millisecond, recent[1].Elapsed)
	assert.NotEmpty(t, recent[1].Timestamp)
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "chainbench.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}
