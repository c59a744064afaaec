package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendChromem  = "chromem"
	BackendPGVector = "pgvector"
	BackendQdrant   = "qdrant"

	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	RateLimitInterval    = "interval"
	RateLimitTokenBucket = "token_bucket"
)

type Config struct {
	Collection  string            `yaml:"collection"`
	VectorIndex VectorIndexConfig `yaml:"vector_index"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	LLM         LLMConfig         `yaml:"llm"`
	Chunking    ChunkingConfig    `yaml:"chunking"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Log         LogConfig         `yaml:"log"`
}

type VectorIndexConfig struct {
	Backend    string         `yaml:"backend"`
	Dimensions int            `yaml:"dimensions"`
	Metric     string         `yaml:"metric"`
	Chromem    ChromemConfig  `yaml:"chromem"`
	PGVector   PGVectorConfig `yaml:"pgvector"`
	Qdrant     QdrantConfig   `yaml:"qdrant"`
}

type ChromemConfig struct {
	Path          string `yaml:"path"`
	InMemory      bool   `yaml:"in_memory"`
	Compress      bool   `yaml:"compress"`
	EncryptionKey string `yaml:"encryption_key"`
	SnapshotPath  string `yaml:"snapshot_path"`
}

type PGVectorConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	// Driver is "pgdriver" (default) or "pq".
	Driver string `yaml:"driver"`
	Debug  bool   `yaml:"debug"`
}

type QdrantConfig struct {
	Host    string        `yaml:"host"`
	Port    int           `yaml:"port"`
	APIKey  string        `yaml:"api_key"`
	UseTLS  bool          `yaml:"use_tls"`
	Timeout time.Duration `yaml:"timeout"`
}

type EmbeddingConfig struct {
	Local  LocalEmbeddingConfig  `yaml:"local"`
	Remote RemoteEmbeddingConfig `yaml:"remote"`
}

// LocalEmbeddingConfig points at an Ollama server.
type LocalEmbeddingConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// RemoteEmbeddingConfig points at an OpenAI compatible embeddings API.
type RemoteEmbeddingConfig struct {
	BaseURL string        `yaml:"base_url"`
	Key     string        `yaml:"key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	BaseURL     string        `yaml:"base_url"`
	Key         string        `yaml:"key"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

type ChunkingConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	// ChunkOverlap is a pointer so an explicit 0 survives defaulting.
	ChunkOverlap *int `yaml:"chunk_overlap"`
}

// Overlap returns the configured overlap in characters.
func (c ChunkingConfig) Overlap() int {
	if c.ChunkOverlap == nil {
		return 0
	}
	return *c.ChunkOverlap
}

type IngestConfig struct {
	Extensions        []string        `yaml:"extensions"`
	MarkdownPlainText bool            `yaml:"markdown_plain_text"`
	RateLimit         RateLimitConfig `yaml:"rate_limit"`
	WatchDebounce     time.Duration   `yaml:"watch_debounce"`
}

type RateLimitConfig struct {
	Mode     string        `yaml:"mode"`
	Interval time.Duration `yaml:"interval"`
	Burst    int           `yaml:"burst"`
}

type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// LoadConfig loads .env into the process environment, then reads the YAML
// file at path with ${VAR} references expanded. A missing file yields the
// defaults.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Collection == "" {
		cfg.Collection = "book_docs"
	}

	vi := &cfg.VectorIndex
	if vi.Backend == "" {
		vi.Backend = BackendChromem
	}
	if vi.Dimensions == 0 {
		vi.Dimensions = 1024
	}
	if vi.Metric == "" {
		vi.Metric = "cosine"
	}
	if vi.Chromem.Path == "" {
		vi.Chromem.Path = "./chromemdb"
	}
	if vi.Chromem.SnapshotPath == "" {
		vi.Chromem.SnapshotPath = "./chromemdb.gob"
	}
	if vi.PGVector.Driver == "" {
		vi.PGVector.Driver = "pgdriver"
	}
	if vi.Qdrant.Host == "" {
		vi.Qdrant.Host = "localhost"
	}
	if vi.Qdrant.Port == 0 {
		vi.Qdrant.Port = 6334
	}
	if vi.Qdrant.Timeout == 0 {
		vi.Qdrant.Timeout = 60 * time.Second
	}

	if cfg.Embedding.Local.BaseURL == "" {
		cfg.Embedding.Local.BaseURL = "http://localhost:11434"
	}
	if cfg.Embedding.Local.Model == "" {
		cfg.Embedding.Local.Model = "all-minilm"
	}
	if cfg.Embedding.Remote.Model == "" {
		cfg.Embedding.Remote.Model = "embed-english-v3.0"
	}
	if cfg.Embedding.Remote.Timeout == 0 {
		cfg.Embedding.Remote.Timeout = 30 * time.Second
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderOpenAI
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "command-r-plus-08-2024"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}

	if cfg.Chunking.ChunkSize <= 0 {
		cfg.Chunking.ChunkSize = 500
	}
	if cfg.Chunking.ChunkOverlap == nil || *cfg.Chunking.ChunkOverlap < 0 {
		overlap := 50
		cfg.Chunking.ChunkOverlap = &overlap
	}

	if len(cfg.Ingest.Extensions) == 0 {
		cfg.Ingest.Extensions = []string{".md"}
	}
	for i, ext := range cfg.Ingest.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.Ingest.Extensions[i] = ext
	}
	rl := &cfg.Ingest.RateLimit
	if rl.Mode == "" {
		rl.Mode = RateLimitInterval
	}
	if rl.Interval == 0 {
		// 90 calls per minute
		rl.Interval = 700 * time.Millisecond
	}
	if rl.Burst <= 0 {
		rl.Burst = 1
	}
	if cfg.Ingest.WatchDebounce == 0 {
		cfg.Ingest.WatchDebounce = 2 * time.Second
	}

	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = 5
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate reports settings no component could work with.
func (c *Config) Validate() error {
	switch c.VectorIndex.Backend {
	case BackendChromem, BackendPGVector, BackendQdrant:
	default:
		return fmt.Errorf("unknown vector index backend: %s", c.VectorIndex.Backend)
	}
	if c.VectorIndex.Dimensions < 0 {
		return fmt.Errorf("invalid vector dimensions: %d", c.VectorIndex.Dimensions)
	}
	if c.VectorIndex.Backend == BackendPGVector && c.VectorIndex.PGVector.DSN == "" {
		return errors.New("pgvector backend requires vector_index.pgvector.dsn")
	}
	switch c.VectorIndex.PGVector.Driver {
	case "pgdriver", "pq":
	default:
		return fmt.Errorf("unknown postgres driver: %s", c.VectorIndex.PGVector.Driver)
	}
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("unknown llm provider: %s", c.LLM.Provider)
	}
	switch c.Ingest.RateLimit.Mode {
	case RateLimitInterval, RateLimitTokenBucket:
	default:
		return fmt.Errorf("unknown rate limit mode: %s", c.Ingest.RateLimit.Mode)
	}
	if c.Chunking.Overlap() >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)", c.Chunking.Overlap(), c.Chunking.ChunkSize)
	}
	return nil
}
