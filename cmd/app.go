package main

import (
	"errors"
	"fmt"

	"docqa/internal/chromemdb"
	"docqa/internal/config"
	"docqa/internal/db"
	"docqa/internal/embedding"
	"docqa/internal/ingest"
	"docqa/internal/llmservice"
	"docqa/internal/parser"
	"docqa/internal/qdrantdb"
	"docqa/internal/rag"
	"docqa/internal/throttle"
	"docqa/internal/vectorindex"

	"github.com/rs/zerolog/log"
)

// App holds the long-lived handles shared by the commands.
type App struct {
	cfg      *config.Config
	index    vectorindex.Client
	chromem  *chromemdb.VectorDBManager
	embedder *embedding.Fallback
	chat     llmservice.ChatModel
}

// buildApp wires every handle from cfg. With requireIndex unset, an index
// that cannot be opened is logged and left nil so queries degrade.
func buildApp(cfg *config.Config, requireIndex bool) (*App, error) {
	app := &App{cfg: cfg}

	index, chromem, err := openIndex(cfg)
	switch {
	case err != nil && requireIndex:
		return nil, err
	case err != nil:
		log.Error().Err(err).Str("backend", cfg.VectorIndex.Backend).Msg("Vector index unavailable")
	default:
		app.index = index
		app.chromem = chromem
	}

	app.embedder = embedding.BuildProvider(&cfg.Embedding)

	chat, err := llmservice.NewClient(&cfg.LLM)
	if err != nil {
		log.Warn().Err(err).Msg("Chat model unavailable")
		app.chat = llmservice.Unavailable{Err: err}
	} else {
		app.chat = chat
	}
	return app, nil
}

func openIndex(cfg *config.Config) (vectorindex.Client, *chromemdb.VectorDBManager, error) {
	vi := cfg.VectorIndex
	switch vi.Backend {
	case config.BackendChromem:
		m, err := chromemdb.NewVectorDBManager(vi.Chromem.Path, vi.Chromem.InMemory, vi.Chromem.Compress, vi.Chromem.EncryptionKey)
		if err != nil {
			return nil, nil, err
		}
		return m, m, nil
	case config.BackendPGVector:
		s, err := db.Open(&vi.PGVector)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	case config.BackendQdrant:
		s, err := qdrantdb.NewStorage(&vi.Qdrant)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown vector index backend: %s", vi.Backend)
	}
}

func (a *App) collectionSpec() (vectorindex.CollectionSpec, error) {
	metric, err := vectorindex.ParseMetric(a.cfg.VectorIndex.Metric)
	if err != nil {
		return vectorindex.CollectionSpec{}, err
	}
	return vectorindex.CollectionSpec{Dimensions: a.cfg.VectorIndex.Dimensions, Metric: metric}, nil
}

func (a *App) Ingestor() (*ingest.Ingestor, error) {
	if a.index == nil {
		return nil, errors.New("vector index is not available")
	}
	spec, err := a.collectionSpec()
	if err != nil {
		return nil, err
	}
	limiter, err := throttle.New(a.cfg.Ingest.RateLimit)
	if err != nil {
		return nil, err
	}
	loader := parser.NewLoader(a.cfg.Ingest.Extensions, a.cfg.Ingest.MarkdownPlainText)

	return ingest.NewIngestor(a.index, a.embedder, limiter, loader, ingest.Config{
		Collection:   a.cfg.Collection,
		Spec:         spec,
		ChunkSize:    a.cfg.Chunking.ChunkSize,
		ChunkOverlap: a.cfg.Chunking.Overlap(),
	}), nil
}

func (a *App) RAG(topK int) *rag.RAG {
	if topK <= 0 {
		topK = a.cfg.Retrieval.TopK
	}
	retriever := rag.NewRetriever(a.index, a.embedder, a.cfg.Collection)
	return rag.NewRAG(retriever, rag.NewGenerator(a.chat), topK)
}

func (a *App) Close() {
	if a.index == nil {
		return
	}
	if err := a.index.Close(); err != nil {
		log.Warn().Err(err).Msg("Error closing vector index")
	}
}
