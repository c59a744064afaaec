package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docqa/internal/models"

	"github.com/rs/zerolog/log"
)

var (
	ErrEmptyQuery     = errors.New("query must not be empty")
	ErrEmptySelection = errors.New("selection must not be empty")
)

func ValidateQuery(q string) error {
	if strings.TrimSpace(q) == "" {
		return ErrEmptyQuery
	}
	return nil
}

func ValidateSelection(s string) error {
	if strings.TrimSpace(s) == "" {
		return ErrEmptySelection
	}
	return nil
}

// RAG composes retrieval and generation into the two request types.
type RAG struct {
	retriever *Retriever
	generator *Generator
	topK      int
}

func NewRAG(retriever *Retriever, generator *Generator, topK int) *RAG {
	return &RAG{retriever: retriever, generator: generator, topK: topK}
}

// Ask answers a free-form question. Without retrieved context the model
// is not called.
func (r *RAG) Ask(ctx context.Context, query string, history []models.ChatTurn) models.Response {
	docs := r.retriever.Search(ctx, query, r.topK)
	if len(docs) == 0 {
		log.Info().Msg("No relevant documents found")
		return models.Response{Query: query, Answer: models.NoRelevantInfoMessage, Sources: []models.ScoredResult{}}
	}

	log.Info().Int("sources", len(docs)).Msg("Generating grounded answer")
	return models.Response{
		Query:   query,
		Answer:  r.generator.Generate(ctx, query, docs, history),
		Sources: docs,
	}
}

// Explain asks the model to explain selection, using the selection itself
// as the only context.
func (r *RAG) Explain(ctx context.Context, selection string) models.Response {
	docs := []models.ScoredResult{{
		Text:   selection,
		Source: models.UserSelectionSrc,
		Score:  models.MaxScore,
	}}
	query := fmt.Sprintf(models.ExplainPromptTemplate, selection)

	return models.Response{
		Query:   query,
		Answer:  r.generator.Generate(ctx, query, docs, nil),
		Sources: docs,
	}
}

// Search returns the retrieved context without generating an answer.
func (r *RAG) Search(ctx context.Context, query string, topK int) []models.ScoredResult {
	if topK <= 0 {
		topK = r.topK
	}
	return r.retriever.Search(ctx, query, topK)
}
