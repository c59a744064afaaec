package embedding

import (
	"context"
	"errors"
	"testing"

	"docqa/internal/config"

	"github.com/stretchr/testify/assert"
)

type fakeEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.EmbedQuery(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	f.calls++
	return f.vec, f.err
}

func TestFallback_BlankInputSkipsBackends(t *testing.T) {
	local := &fakeEmbedder{vec: []float32{1}}
	f := NewFallback(Backend{Name: BackendLocal, Embedder: local})

	assert.Nil(t, f.Embed(context.Background(), ""))
	assert.Nil(t, f.Embed(context.Background(), " \n\t "))
	assert.Zero(t, local.calls)
}

func TestFallback_FirstSuccessShortCircuits(t *testing.T) {
	local := &fakeEmbedder{vec: []float32{0.1, 0.2}}
	remote := &fakeEmbedder{vec: []float32{0.9, 0.9}}
	f := NewFallback(Backend{Name: BackendLocal, Embedder: local}, Backend{Name: BackendRemote, Embedder: remote})

	assert.Equal(t, []float32{0.1, 0.2}, f.Embed(context.Background(), "hello"))
	assert.Equal(t, 1, local.calls)
	assert.Zero(t, remote.calls)
}

func TestFallback_LocalFailureFallsBackToRemote(t *testing.T) {
	tests := []struct {
		name  string
		local *fakeEmbedder
	}{
		{name: "error", local: &fakeEmbedder{err: errors.New("connection refused")}},
		{name: "empty vector", local: &fakeEmbedder{vec: []float32{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := &fakeEmbedder{vec: []float32{0.5}}
			f := NewFallback(Backend{Name: BackendLocal, Embedder: tt.local}, Backend{Name: BackendRemote, Embedder: remote})

			assert.Equal(t, []float32{0.5}, f.Embed(context.Background(), "hello"))
			assert.Equal(t, 1, tt.local.calls)
			assert.Equal(t, 1, remote.calls)
		})
	}
}

func TestFallback_AllFailing(t *testing.T) {
	local := &fakeEmbedder{err: errors.New("down")}
	remote := &fakeEmbedder{err: errors.New("quota")}
	f := NewFallback(Backend{Name: BackendLocal, Embedder: local}, Backend{Name: BackendRemote, Embedder: remote})

	assert.Nil(t, f.Embed(context.Background(), "hello"))
	assert.Nil(t, NewFallback().Embed(context.Background(), "hello"))
}

func TestBuildProvider_OmitsUnconfiguredBackends(t *testing.T) {
	cfg := config.Default().Embedding

	assert.Empty(t, BuildProvider(&cfg).Backends())

	cfg.Local.Enabled = true
	cfg.Remote.Key = "Bearer secret"
	assert.Equal(t, []string{BackendLocal, BackendRemote}, BuildProvider(&cfg).Backends())
}
