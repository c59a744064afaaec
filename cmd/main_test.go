package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"docqa/internal/config"
	"docqa/internal/models"
	"docqa/internal/rag"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}, args...))
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		jsonOutput = false
		explainFile = ""
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"ingest", "ask", "explain", "search", "snapshot"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestAsk_RejectsBlankQuery(t *testing.T) {
	_, err := execute(t, "ask", "   ")
	assert.ErrorIs(t, err, rag.ErrEmptyQuery)
}

func TestExplain_RejectsEmptySelection(t *testing.T) {
	_, err := execute(t, "explain")
	assert.ErrorIs(t, err, rag.ErrEmptySelection)
}

func TestIngest_RequiresPath(t *testing.T) {
	_, err := execute(t, "ingest")
	assert.Error(t, err)
}

func TestSnapshot_RejectsOtherBackends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vector_index:\n  backend: qdrant\n"), 0o644))

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"--config", path, "snapshot", "export"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chromem")
}

func TestReadHistory(t *testing.T) {
	turns, err := readHistory("")
	require.NoError(t, err)
	assert.Nil(t, turns)

	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"role": "user", "parts": ["What is a goroutine?"]},
		{"role": "assistant", "text": "A lightweight thread."}
	]`), 0o644))

	turns, err = readHistory(path)
	require.NoError(t, err)
	assert.Equal(t, []models.ChatTurn{
		{Role: "user", Text: "What is a goroutine?"},
		{Role: "assistant", Text: "A lightweight thread."},
	}, turns)

	require.NoError(t, os.WriteFile(path, []byte(`{"role": "user"}`), 0o644))
	_, err = readHistory(path)
	assert.Error(t, err)
}

func TestPrintResponse(t *testing.T) {
	resp := models.Response{
		Query:   "What is Go?",
		Answer:  "A language.",
		Sources: []models.ScoredResult{{Text: "Go is a\n\nprogramming language.", Source: "go.md", Score: 0.75}},
	}

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	jsonOutput = false
	require.NoError(t, printResponse(cmd, resp))
	out := buf.String()
	assert.Contains(t, out, "What is Go?")
	assert.Contains(t, out, "[1] go.md (0.750)")
	assert.Contains(t, out, "Go is a programming language.")
	assert.Contains(t, out, "A language.")

	buf.Reset()
	jsonOutput = true
	t.Cleanup(func() { jsonOutput = false })
	require.NoError(t, printResponse(cmd, resp))
	assert.Contains(t, buf.String(), `"source_documents"`)
	assert.Contains(t, buf.String(), `"response": "A language."`)
}

func TestOpenIndex_InMemoryChromem(t *testing.T) {
	c := config.Default()
	c.VectorIndex.Chromem.InMemory = true

	index, chromem, err := openIndex(c)
	require.NoError(t, err)
	assert.NotNil(t, index)
	assert.NotNil(t, chromem)
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "a b", snippet("a\n\n  b", 10))
	assert.Equal(t, "héllo...", snippet("héllo world", 5))
}
