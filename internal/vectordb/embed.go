package vectordb

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/kbase/internal/domain"
	"github.com/kailas-cloud/kbase/internal/domain/document"
	"github.com/kailas-cloud/kbase/internal/domain/search/filter"
)

// embedConcurrency bounds parallel embedding requests for one write.
const embedConcurrency = 4

// Usage keys recorded on documents embedded during a write.
const (
	UsagePromptTokens = "prompt_tokens"
	UsageTotalTokens  = "total_tokens"
)

// EmbedDocuments vectorizes the content of every document. When the
// provider reports tokens, docs[i] gets a usage map with the counts and the
// request usage collector in ctx is updated.
func EmbedDocuments(ctx context.Context, e domain.Embedder, docs []document.Document) ([][]float32, error) {
	vectors := make([][]float32, len(docs))
	results := make([]domain.EmbeddingResult, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for i := range docs {
		g.Go(func() error {
			res, err := e.Embed(gctx, docs[i].Content())
			if err != nil {
				return fmt.Errorf("embed document %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, embedError("embed documents", err)
	}

	var total int
	for i, res := range results {
		vectors[i] = res.Embedding
		if res.TotalTokens > 0 || res.PromptTokens > 0 {
			docs[i].SetUsage(map[string]any{
				UsagePromptTokens: res.PromptTokens,
				UsageTotalTokens:  res.TotalTokens,
			})
		}
		total += res.TotalTokens
	}
	domain.UsageFromContext(ctx).AddTokens(total)
	return vectors, nil
}

// EmbedQuery vectorizes a search query.
func EmbedQuery(ctx context.Context, e domain.Embedder, query string) ([]float32, error) {
	res, err := e.Embed(ctx, query)
	if err != nil {
		return nil, embedError("embed query", err)
	}
	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)
	return res.Embedding, nil
}

// embedError classifies a provider failure. A rate limit is transient, so
// it is a connection error that still matches domain.ErrRateLimited.
func embedError(detail string, err error) error {
	if errors.Is(err, domain.ErrRateLimited) {
		return domain.ConnectionError(detail, err)
	}
	return domain.OperationFailed(detail, err)
}

// PrepareDocuments returns copies of docs with filters stamped into their
// metadata and any incoming reranking score removed.
func PrepareDocuments(docs []document.Document, filters filter.Filters) []document.Document {
	out := make([]document.Document, len(docs))
	for i, doc := range docs {
		c := doc.Clone()
		c.ClearRerankingScore()
		if !filters.IsEmpty() {
			c.SetMetaData(filters.Apply(c.MetaData()))
		}
		out[i] = c
	}
	return out
}
