package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "book_docs", cfg.Collection)
	assert.Equal(t, BackendChromem, cfg.VectorIndex.Backend)
	assert.Equal(t, 1024, cfg.VectorIndex.Dimensions)
	assert.Equal(t, 500, cfg.Chunking.ChunkSize)
	assert.Equal(t, 50, cfg.Chunking.Overlap())
	assert.Equal(t, []string{".md"}, cfg.Ingest.Extensions)
	assert.Equal(t, 700*time.Millisecond, cfg.Ingest.RateLimit.Interval)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
}

func TestLoadConfig_ExpandsEnvironment(t *testing.T) {
	t.Setenv("DOCQA_TEST_KEY", "secret-key")
	path := writeConfig(t, `
collection: handbook
embedding:
  remote:
    key: ${DOCQA_TEST_KEY}
    model: text-embedding-3-small
ingest:
  extensions: [md, ".TXT"]
  rate_limit:
    mode: token_bucket
    interval: 1s
chunking:
  chunk_size: 300
  chunk_overlap: 0
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "handbook", cfg.Collection)
	assert.Equal(t, "secret-key", cfg.Embedding.Remote.Key)
	assert.Equal(t, []string{".md", ".txt"}, cfg.Ingest.Extensions)
	assert.Equal(t, RateLimitTokenBucket, cfg.Ingest.RateLimit.Mode)
	assert.Equal(t, time.Second, cfg.Ingest.RateLimit.Interval)
	assert.Equal(t, 300, cfg.Chunking.ChunkSize)
	assert.Equal(t, 0, cfg.Chunking.Overlap())
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown backend", "vector_index:\n  backend: faiss\n"},
		{"pgvector without dsn", "vector_index:\n  backend: pgvector\n"},
		{"unknown llm", "llm:\n  provider: bard\n"},
		{"overlap too large", "chunking:\n  chunk_size: 40\n  chunk_overlap: 40\n"},
		{"bad yaml", "collection: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestDefault_IsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadConfig_ShippedExample(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, BackendChromem, cfg.VectorIndex.Backend)
	assert.Equal(t, "./chromemdb.gob", cfg.VectorIndex.Chromem.SnapshotPath)
	assert.True(t, cfg.Embedding.Local.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Ingest.WatchDebounce)
}
