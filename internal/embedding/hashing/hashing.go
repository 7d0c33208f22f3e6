// Package hashing implements a deterministic feature-hashing embedder.
//
// Each term is hashed into one of Dimensions buckets with a signed weight and
// the result is L2-normalized, so texts sharing terms get a positive cosine
// similarity. It needs no network access and is used for offline loads and
// tests.
package hashing

import (
	"context"
	"math"

	"github.com/minio/highwayhash"

	"github.com/kailas-cloud/kbase/internal/domain"
	"github.com/kailas-cloud/kbase/internal/domain/search/terms"
)

// DefaultDimensions is used when New gets a non-positive size.
const DefaultDimensions = 256

var hashKey = []byte("kbase-feature-hashing-embedder-1")

// Embedder maps text to fixed-size hashed term vectors.
type Embedder struct {
	dim int
}

var (
	_ domain.Embedder      = (*Embedder)(nil)
	_ domain.BatchEmbedder = (*Embedder)(nil)
	_ domain.HealthChecker = (*Embedder)(nil)
)

// New creates an embedder producing vectors of length dim.
func New(dim int) *Embedder {
	if dim <= 0 {
		dim = DefaultDimensions
	}
	return &Embedder{dim: dim}
}

// Dimensions returns the vector length.
func (e *Embedder) Dimensions() int { return e.dim }

// Embed vectorizes text. Token counts equal the number of terms.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.EmbeddingResult{}, err
	}
	tokens := terms.Tokenize(text)
	return domain.EmbeddingResult{
		Embedding:    e.vector(tokens),
		PromptTokens: len(tokens),
		TotalTokens:  len(tokens),
	}, nil
}

// BatchEmbed vectorizes every text.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	return domain.BatchFallback(ctx, e, texts)
}

// HealthCheck always succeeds.
func (e *Embedder) HealthCheck(context.Context) error { return nil }

func (e *Embedder) vector(tokens []string) []float32 {
	v := make([]float32, e.dim)
	for _, t := range tokens {
		h := highwayhash.Sum64([]byte(t), hashKey)
		idx := h % uint64(e.dim)
		if h>>63 == 1 {
			v[idx]--
		} else {
			v[idx]++
		}
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= inv
	}
	return v
}
