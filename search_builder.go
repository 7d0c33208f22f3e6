package kbase

import (
	"context"
	"fmt"
)

// Hit is a typed search result.
type Hit[T any] struct {
	Item  T
	Score float64 // 0 when the backend does not score
}

// SearchBuilder is a fluent builder for typed search queries.
type SearchBuilder[T any] struct {
	idx *Index[T]

	query    string
	mode     Mode
	filters  Filters
	limit    int
	minScore float64
}

// Query sets the search text.
func (b *SearchBuilder[T]) Query(q string) *SearchBuilder[T] {
	b.query = q
	return b
}

// Mode sets the search mode (vector, keyword, hybrid).
func (b *SearchBuilder[T]) Mode(m Mode) *SearchBuilder[T] {
	b.mode = m
	return b
}

// Where adds an exact-match metadata filter.
func (b *SearchBuilder[T]) Where(key string, value any) *SearchBuilder[T] {
	if b.filters == nil {
		b.filters = Filters{}
	}
	b.filters[key] = value
	return b
}

// Limit sets the maximum number of results.
func (b *SearchBuilder[T]) Limit(n int) *SearchBuilder[T] {
	b.limit = n
	return b
}

// MinScore drops results scoring below s.
func (b *SearchBuilder[T]) MinScore(s float64) *SearchBuilder[T] {
	b.minScore = s
	return b
}

// Do executes the search and returns typed results.
func (b *SearchBuilder[T]) Do(ctx context.Context) ([]Hit[T], error) {
	res, err := b.idx.client.Query(ctx, b.query, &SearchOptions{
		Mode:     b.mode,
		Filters:  b.filters,
		Limit:    b.limit,
		MinScore: b.minScore,
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	docs := res.Documents()
	hits := make([]Hit[T], 0, len(docs))
	for _, doc := range docs {
		item, ok := b.idx.item(doc)
		if !ok {
			continue
		}
		score, _ := doc.RerankingScore()
		hits = append(hits, Hit[T]{Item: item, Score: score})
	}
	return hits, nil
}
