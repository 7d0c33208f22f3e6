// Package ollama embeds text with a local Ollama server through langchaingo.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms/ollama"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kbase/internal/domain"
	"github.com/kailas-cloud/kbase/internal/metrics"
)

const (
	providerName = "ollama"

	DefaultModel   = "nomic-embed-text"
	DefaultBaseURL = "http://localhost:11434"
)

// Config holds the Ollama connection settings.
type Config struct {
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// Embedder is an embedding provider backed by Ollama. Ollama reports no
// token usage, so results carry zero tokens.
type Embedder struct {
	llm    *ollama.LLM
	model  string
	logger *zap.Logger
}

// NewEmbedder creates an Ollama embedding provider. No request is made.
func NewEmbedder(cfg *Config) (*Embedder, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	llm, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("init ollama client: %w", err)
	}
	return &Embedder{llm: llm, model: model, logger: logger}, nil
}

// Model returns the embedding model name.
func (e *Embedder) Model() string { return e.model }

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	vectors, err := e.create(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: vectors[0]}, nil
}

// BatchEmbed implements domain.BatchEmbedder.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	vectors, err := e.create(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	return domain.BatchEmbeddingResult{Embeddings: vectors}, nil
}

func (e *Embedder) create(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vectors, err := e.llm.CreateEmbedding(ctx, texts)
	duration := time.Since(start)

	if err != nil {
		e.failed("api_error")
		e.logger.Debug("Ollama embedding failed", zap.String("model", e.model), zap.Error(err))
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("ollama embed cancelled: %w", err)
		}
		return nil, fmt.Errorf("ollama embed: %w: %w", domain.ErrEmbeddingProvider, err)
	}
	if len(vectors) != len(texts) {
		e.failed("count_mismatch")
		return nil, fmt.Errorf("ollama returned %d vectors for %d texts: %w",
			len(vectors), len(texts), domain.ErrEmbeddingProvider)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(providerName, e.model).Observe(duration.Seconds())
	return vectors, nil
}

func (e *Embedder) failed(kind string) {
	metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.model, "error").Inc()
	metrics.EmbeddingErrorsTotal.WithLabelValues(providerName, e.model, kind).Inc()
}
