package llmservice

import (
	"context"
	"errors"
	"testing"

	"docqa/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type fakeModel struct {
	messages []llms.MessageContent
	opts     llms.CallOptions
	resp     *llms.ContentResponse
	err      error
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, o := range options {
		o(&f.opts)
	}
	return f.resp, f.err
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestChat_AppendsPromptAfterHistory(t *testing.T) {
	m := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "answer"}}}}
	c := New(m, "command-r", 0.3)

	history := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, "hi"),
		llms.TextParts(llms.ChatMessageTypeAI, "hello"),
	}
	out, err := c.Chat(context.Background(), "what now?", history)

	require.NoError(t, err)
	assert.Equal(t, "answer", out)
	require.Len(t, m.messages, 3)
	assert.Equal(t, llms.ChatMessageTypeHuman, m.messages[2].Role)
	assert.Equal(t, llms.TextContent{Text: "what now?"}, m.messages[2].Parts[0])
	assert.Equal(t, "command-r", m.opts.Model)
	assert.InDelta(t, 0.3, m.opts.Temperature, 1e-9)
}

func TestChat_NilHistory(t *testing.T) {
	m := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "ok"}}}}

	_, err := New(m, "m", 0).Chat(context.Background(), "q", nil)

	require.NoError(t, err)
	assert.Len(t, m.messages, 1)
}

func TestChat_Errors(t *testing.T) {
	_, err := New(&fakeModel{err: errors.New("503")}, "m", 0).Chat(context.Background(), "q", nil)
	assert.EqualError(t, err, "503")

	_, err = New(&fakeModel{resp: &llms.ContentResponse{}}, "m", 0).Chat(context.Background(), "q", nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestNewClient(t *testing.T) {
	cfg := config.Default().LLM
	cfg.Key = "test-key"
	_, err := NewClient(&cfg)
	require.NoError(t, err)

	cfg.Provider = config.ProviderOllama
	_, err = NewClient(&cfg)
	require.NoError(t, err)

	cfg.Provider = "bard"
	_, err = NewClient(&cfg)
	assert.Error(t, err)
}

func TestUnavailable(t *testing.T) {
	cause := errors.New("missing api key")
	var m ChatModel = Unavailable{Err: cause}

	_, err := m.Chat(context.Background(), "q", nil)
	assert.ErrorIs(t, err, cause)
}
