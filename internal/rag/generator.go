package rag

import (
	"context"
	"fmt"
	"strings"

	"docqa/internal/llmservice"
	"docqa/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
)

type Generator struct {
	chat llmservice.ChatModel
}

func NewGenerator(chat llmservice.ChatModel) *Generator {
	return &Generator{chat: chat}
}

// Generate answers query from docs alone. It never fails: chat errors turn
// into models.GenerationErrorMessage.
func (g *Generator) Generate(ctx context.Context, query string, docs []models.ScoredResult, history []models.ChatTurn) string {
	prompt := BuildPrompt(query, docs)

	answer, err := g.chat.Chat(ctx, prompt, NormalizeHistory(history))
	if err != nil {
		log.Error().Err(err).Msg("Error generating answer")
		return models.GenerationErrorMessage
	}
	return answer
}

// BuildPrompt places the document texts, in order, inside the grounding
// template.
func BuildPrompt(query string, docs []models.ScoredResult) string {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	return fmt.Sprintf(models.GroundedPromptTemplate, strings.Join(texts, models.ContextSeparator), query)
}

// NormalizeHistory maps turns to chat messages and drops blank ones. It
// returns nil, not an empty slice, when nothing is left.
func NormalizeHistory(turns []models.ChatTurn) []llms.MessageContent {
	var out []llms.MessageContent
	for _, t := range turns {
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		role := llms.ChatMessageTypeAI
		if t.Role == models.RoleUser {
			role = llms.ChatMessageTypeHuman
		}
		out = append(out, llms.TextParts(role, t.Text))
	}
	return out
}
