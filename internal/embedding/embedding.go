package embedding

import (
	"context"
	"net/http"
	"strings"

	"docqa/internal/config"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// Provider turns text into a vector. A nil result means every backend
// failed; callers skip the unit instead of storing a zero vector.
type Provider interface {
	Embed(ctx context.Context, text string) []float32
}

// Backend is one named embedding service.
type Backend struct {
	Name     string
	Embedder embeddings.Embedder
}

// Fallback tries its backends in order and returns the first non-empty
// vector.
type Fallback struct {
	backends []Backend
}

var _ Provider = (*Fallback)(nil)

func NewFallback(backends ...Backend) *Fallback {
	return &Fallback{backends: backends}
}

// Backends lists the backend names in priority order.
func (f *Fallback) Backends() []string {
	names := make([]string, len(f.backends))
	for i, b := range f.backends {
		names[i] = b.Name
	}
	return names
}

func (f *Fallback) Embed(ctx context.Context, text string) []float32 {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	for _, b := range f.backends {
		vec, err := b.Embedder.EmbedQuery(ctx, text)
		if err != nil {
			log.Warn().Err(err).Str("backend", b.Name).Msg("Embedding failed, trying next backend")
			continue
		}
		if len(vec) == 0 {
			log.Warn().Str("backend", b.Name).Msg("Embedding backend returned an empty vector")
			continue
		}
		return vec
	}

	log.Error().Int("backends", len(f.backends)).Msg("No embedding backend produced a vector")
	return nil
}

// NewOllamaEmbedder creates an embedder served by a local Ollama instance.
func NewOllamaEmbedder(cfg *config.LocalEmbeddingConfig) (*embeddings.EmbedderImpl, error) {
	log.Debug().Interface("config", map[string]string{
		"base_url":        cfg.BaseURL,
		"embedding_model": cfg.Model,
	}).Msg("Creating ollama embedder")

	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbedder(llm)
}

// NewRemoteEmbedder creates an embedder for an OpenAI compatible API.
func NewRemoteEmbedder(cfg *config.RemoteEmbeddingConfig) (*embeddings.EmbedderImpl, error) {
	log.Debug().Interface("config", map[string]string{
		"base_url":        cfg.BaseURL,
		"embedding_model": cfg.Model,
	}).Msg("Creating remote embedder")

	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithEmbeddingModel(cfg.Model),
		openai.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbedder(llm)
}

// BuildProvider wires the configured backends, local first. A backend that
// cannot be constructed is logged and left out.
func BuildProvider(cfg *config.EmbeddingConfig) *Fallback {
	var backends []Backend

	if cfg.Local.Enabled {
		e, err := NewOllamaEmbedder(&cfg.Local)
		if err != nil {
			log.Warn().Err(err).Msg("Local embedding backend unavailable")
		} else {
			backends = append(backends, Backend{Name: BackendLocal, Embedder: e})
		}
	}

	if cfg.Remote.Key != "" {
		e, err := NewRemoteEmbedder(&cfg.Remote)
		if err != nil {
			log.Warn().Err(err).Msg("Remote embedding backend unavailable")
		} else {
			backends = append(backends, Backend{Name: BackendRemote, Embedder: e})
		}
	}

	if len(backends) == 0 {
		log.Error().Msg("No embedding backend configured, every embedding will fail")
	}
	return NewFallback(backends...)
}
