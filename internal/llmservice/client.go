package llmservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"docqa/internal/config"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

var ErrEmptyResponse = errors.New("llm returned no choices")

// ChatModel answers a prompt given the prior conversation. A nil history
// means there is none.
type ChatModel interface {
	Chat(ctx context.Context, prompt string, history []llms.MessageContent) (string, error)
}

type Client struct {
	llm         llms.Model
	model       string
	temperature float64
}

var _ ChatModel = (*Client)(nil)

func New(llm llms.Model, model string, temperature float64) *Client {
	return &Client{llm: llm, model: model, temperature: temperature}
}

// NewClient builds the chat model named by cfg.Provider.
func NewClient(cfg *config.LLMConfig) (*Client, error) {
	log.Debug().Str("provider", cfg.Provider).Str("base_url", cfg.BaseURL).Str("model", cfg.Model).Msg("Creating chat model")

	httpClient := &http.Client{Timeout: cfg.Timeout}

	var (
		llm llms.Model
		err error
	)
	switch cfg.Provider {
	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithModel(cfg.Model),
			openai.WithHTTPClient(httpClient),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err = openai.New(opts...)
	case config.ProviderOllama:
		opts := []ollama.Option{
			ollama.WithModel(cfg.Model),
			ollama.WithHTTPClient(httpClient),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		llm, err = ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Provider, err)
	}
	return New(llm, cfg.Model, cfg.Temperature), nil
}

// Unavailable stands in for a chat model that could not be created.
type Unavailable struct {
	Err error
}

func (u Unavailable) Chat(context.Context, string, []llms.MessageContent) (string, error) {
	return "", u.Err
}

func (c *Client) Chat(ctx context.Context, prompt string, history []llms.MessageContent) (string, error) {
	messages := make([]llms.MessageContent, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	log.Debug().Int("history", len(history)).Str("model", c.model).Msg("Generating content")
	res, err := c.llm.GenerateContent(ctx, messages,
		llms.WithModel(c.model),
		llms.WithTemperature(c.temperature),
	)
	if err != nil {
		return "", err
	}
	if len(res.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return res.Choices[0].Content, nil
}
