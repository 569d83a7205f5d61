package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"orienta-rag/internal/config"
)

// ErrEmbedding is returned when the backing model is unreachable or rejects
// the input. Callers must surface it instead of degrading to a zero vector.
var ErrEmbedding = errors.New("embedding failed")

// Embedder maps text to fixed-dimension vectors through a langchaingo
// embedding client. The model identifier is recorded so persisted indexes
// can reject vectors from a different model version.
type Embedder struct {
	impl    *embeddings.EmbedderImpl
	modelID string
}

// NewOllamaEmbedder creates an embedder backed by a local Ollama server.
func NewOllamaEmbedder(llmConfig *config.LLMConfig) (*Embedder, error) {
	log.Debug().
		Str("base_url", llmConfig.BaseURL).
		Str("embedding_model", llmConfig.Model).
		Msg("initializing ollama embedder")

	llm, err := ollama.New(
		ollama.WithServerURL(llmConfig.BaseURL),
		ollama.WithModel(llmConfig.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing ollama client: %w", err)
	}
	impl, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return &Embedder{impl: impl, modelID: llmConfig.Model}, nil
}

// NewOpenAIEmbedder creates an embedder backed by an OpenAI-compatible API.
func NewOpenAIEmbedder(llmConfig *config.LLMConfig) (*Embedder, error) {
	log.Debug().
		Str("base_url", llmConfig.BaseURL).
		Str("embedding_model", llmConfig.Model).
		Msg("initializing openai embedder")

	llm, err := openai.New(
		openai.WithBaseURL(llmConfig.BaseURL),
		openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		openai.WithModel(llmConfig.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing openai client: %w", err)
	}
	impl, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return &Embedder{impl: impl, modelID: llmConfig.Model}, nil
}

// ModelID identifies the embedding model version.
func (e *Embedder) ModelID() string { return e.modelID }

// EmbedQuery embeds a single text.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	return vec, nil
}

// EmbedDocuments embeds a batch of texts, preserving input order.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := e.impl.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbedding, len(vecs), len(texts))
	}
	return vecs, nil
}
