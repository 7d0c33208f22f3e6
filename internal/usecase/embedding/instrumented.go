// Package embedding decorates embedding providers with batching, rate
// limiting and logging.
package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/kbase/internal/domain"
)

const (
	// DefaultMaxAPIBatchSize is the largest batch sent in one API request.
	DefaultMaxAPIBatchSize = 256
	// DefaultConcurrency bounds the in-flight sub-batches of one BatchEmbed.
	DefaultConcurrency = 4
)

// Option configures an InstrumentedEmbedder.
type Option func(*InstrumentedEmbedder)

// WithLimiter throttles provider requests. Each sub-batch takes one token.
func WithLimiter(l *rate.Limiter) Option {
	return func(p *InstrumentedEmbedder) { p.limiter = l }
}

// WithMaxBatchSize sets the sub-batch size.
func WithMaxBatchSize(n int) Option {
	return func(p *InstrumentedEmbedder) {
		if n > 0 {
			p.maxBatch = n
		}
	}
}

// WithConcurrency sets how many sub-batches run at once.
func WithConcurrency(n int) Option {
	return func(p *InstrumentedEmbedder) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// InstrumentedEmbedder wraps an Embedder with logging, rate limiting and
// sub-batching. Transport metrics (requests, duration, tokens) are recorded
// by the providers; the request's domain.EmbeddingUsage is filled by the
// vector store that asked for the embedding.
type InstrumentedEmbedder struct {
	inner       domain.Embedder
	provider    string
	model       string
	limiter     *rate.Limiter
	maxBatch    int
	concurrency int
	logger      *zap.Logger
}

var (
	_ domain.Embedder      = (*InstrumentedEmbedder)(nil)
	_ domain.BatchEmbedder = (*InstrumentedEmbedder)(nil)
	_ domain.HealthChecker = (*InstrumentedEmbedder)(nil)
)

// NewInstrumentedEmbedder wraps an embedder with observability.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string,
	logger *zap.Logger, opts ...Option,
) *InstrumentedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &InstrumentedEmbedder{
		inner:       inner,
		provider:    provider,
		model:       model,
		maxBatch:    DefaultMaxAPIBatchSize,
		concurrency: DefaultConcurrency,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Embed delegates to the inner embedder.
func (p *InstrumentedEmbedder) Embed(
	ctx context.Context, text string,
) (domain.EmbeddingResult, error) {
	if err := p.wait(ctx); err != nil {
		return domain.EmbeddingResult{}, err
	}

	start := time.Now()

	result, err := p.inner.Embed(ctx, text)

	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// BatchEmbed splits texts into sub-batches, embeds them concurrently and
// reassembles the vectors in input order.
func (p *InstrumentedEmbedder) BatchEmbed(
	ctx context.Context, texts []string,
) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()

	result, err := p.embedChunked(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}

	p.logger.Debug("Batch embedding completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

func (p *InstrumentedEmbedder) embedChunked(
	ctx context.Context, texts []string,
) (domain.BatchEmbeddingResult, error) {
	nChunks := (len(texts) + p.maxBatch - 1) / p.maxBatch
	results := make([]domain.BatchEmbeddingResult, nChunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for c := range nChunks {
		offset := c * p.maxBatch
		chunk := texts[offset:min(offset+p.maxBatch, len(texts))]
		g.Go(func() error {
			if err := p.wait(gctx); err != nil {
				return err
			}
			res, err := domain.EmbedAll(gctx, p.inner, chunk)
			if err != nil {
				p.logger.Error("Batch embedding request failed",
					zap.String("provider", p.provider),
					zap.String("model", p.model),
					zap.Int("chunk_offset", offset),
					zap.Int("chunk_size", len(chunk)),
					zap.Error(err),
				)
				return fmt.Errorf("batch embed (chunk %d): %w", offset, err)
			}
			results[c] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.BatchEmbeddingResult{}, err
	}

	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	for _, r := range results {
		out.Embeddings = append(out.Embeddings, r.Embeddings...)
		out.PromptTokens += r.PromptTokens
		out.TotalTokens += r.TotalTokens
	}
	return out, nil
}

func (p *InstrumentedEmbedder) wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("embedding rate limit: %w", err)
	}
	return nil
}

// HealthCheck delegates to the inner provider when it can check itself.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
