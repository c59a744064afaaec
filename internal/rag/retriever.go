package rag

import (
	"context"

	"docqa/internal/embedding"
	"docqa/internal/models"
	"docqa/internal/vectorindex"

	"github.com/rs/zerolog/log"
)

const DefaultTopK = 5

// Retriever embeds a query and looks it up in the vector index. Every
// failure degrades to an empty result.
type Retriever struct {
	index      vectorindex.Client
	embedder   embedding.Provider
	collection string
}

func NewRetriever(index vectorindex.Client, embedder embedding.Provider, collection string) *Retriever {
	return &Retriever{index: index, embedder: embedder, collection: collection}
}

func (r *Retriever) Search(ctx context.Context, query string, topK int) []models.ScoredResult {
	if r.index == nil {
		log.Warn().Msg("Vector index unavailable, skipping retrieval")
		return nil
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	vec := r.embedder.Embed(ctx, query)
	if len(vec) == 0 {
		log.Warn().Msg("Query embedding failed, skipping retrieval")
		return nil
	}

	hits, err := r.index.Query(ctx, r.collection, vec, topK)
	if err != nil {
		log.Error().Err(err).Str("collection", r.collection).Msg("Vector search failed")
		return nil
	}

	results := make([]models.ScoredResult, len(hits))
	for i, h := range hits {
		results[i] = models.ScoredResult{
			Text:   h.Payload.Text,
			Source: h.Payload.Source,
			Score:  h.Score,
		}
	}
	log.Debug().Int("results", len(results)).Int("top_k", topK).Msg("Retrieved context")
	return results
}
