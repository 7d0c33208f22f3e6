package redis

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	store "github.com/kailas-cloud/kbase/internal/db"
	"github.com/kailas-cloud/kbase/internal/domain"
	"github.com/kailas-cloud/kbase/internal/domain/document"
	"github.com/kailas-cloud/kbase/internal/domain/search/filter"
	"github.com/kailas-cloud/kbase/internal/domain/search/mode"
	"github.com/kailas-cloud/kbase/internal/domain/search/terms"
	"github.com/kailas-cloud/kbase/internal/vectordb"
)

// Search dispatches to the configured default mode. Unset, it picks the
// richest mode the server and embedder allow.
func (db *DB) Search(
	ctx context.Context, query string, limit int, filters filter.Filters,
) ([]document.Document, error) {
	switch db.searchMode() {
	case mode.Vector:
		return db.VectorSearch(ctx, query, limit, filters)
	case mode.Hybrid:
		return db.HybridSearch(ctx, query, limit, filters)
	default:
		return db.KeywordSearch(ctx, query, limit, filters)
	}
}

func (db *DB) searchMode() mode.Mode {
	if db.defaultMode != mode.Default {
		return db.defaultMode
	}
	text := db.store.SupportsTextSearch()
	switch {
	case db.embedder != nil && text:
		return mode.Hybrid
	case db.embedder != nil:
		return mode.Vector
	default:
		return mode.Keyword
	}
}

// VectorSearch runs a filtered KNN query. Scores are cosine similarities.
func (db *DB) VectorSearch(
	ctx context.Context, query string, limit int, filters filter.Filters,
) ([]document.Document, error) {
	if db.embedder == nil {
		return nil, domain.NotImplemented("vector search without an embedder")
	}
	if err := vectordb.CheckLimit(limit); err != nil {
		return nil, err
	}
	pre, err := db.compileFilters(filters)
	if err != nil {
		return nil, err
	}
	if err := db.ready(ctx); err != nil {
		return nil, err
	}
	if limit == 0 {
		return []document.Document{}, nil
	}
	qv, err := vectordb.EmbedQuery(ctx, db.embedder, query)
	if err != nil {
		return nil, err
	}
	if !nonZero(qv) {
		return []document.Document{}, nil
	}

	res, err := db.store.SearchKNN(ctx, &store.KNNQuery{
		IndexName:    db.indexName(),
		Filter:       pre,
		Vector:       qv,
		K:            min(limit, store.MaxSearchResults),
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, classify("vector search", err)
	}
	return collect(res, limit)
}

// KeywordSearch runs a BM25 OR query over the query terms. Valkey reports
// NotImplemented.
func (db *DB) KeywordSearch(
	ctx context.Context, query string, limit int, filters filter.Filters,
) ([]document.Document, error) {
	if !db.store.SupportsTextSearch() {
		return nil, domain.NotImplemented("keyword search without text search")
	}
	if err := vectordb.CheckLimit(limit); err != nil {
		return nil, err
	}
	pre, err := db.compileFilters(filters)
	if err != nil {
		return nil, err
	}
	if err := db.ready(ctx); err != nil {
		return nil, err
	}
	q := terms.Unique(terms.Tokenize(query))
	if limit == 0 || len(q) == 0 {
		return []document.Document{}, nil
	}

	res, err := db.store.SearchBM25(ctx, &store.TextQuery{
		IndexName:    db.indexName(),
		Field:        fieldContent,
		Terms:        q,
		Filter:       pre,
		TopK:         min(limit, store.MaxSearchResults),
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, classify("keyword search", err)
	}
	return collect(res, limit)
}

// HybridSearch runs both rankings concurrently and fuses them with RRF.
func (db *DB) HybridSearch(
	ctx context.Context, query string, limit int, filters filter.Filters,
) ([]document.Document, error) {
	if db.embedder == nil {
		return nil, domain.NotImplemented("hybrid search without an embedder")
	}
	if !db.store.SupportsTextSearch() {
		return nil, domain.NotImplemented("hybrid search without text search")
	}
	if err := vectordb.CheckLimit(limit); err != nil {
		return nil, err
	}
	if limit == 0 {
		return []document.Document{}, nil
	}

	fetch := vectordb.HybridFetch(limit)
	var vec, kw []document.Document
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vec, err = db.VectorSearch(gctx, query, fetch, filters)
		return err
	})
	g.Go(func() error {
		var err error
		kw, err = db.KeywordSearch(gctx, query, fetch, filters)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectordb.FuseRRF(vec, kw, limit), nil
}

// collect decodes hits ordered by score descending.
func collect(res *store.SearchResult, limit int) ([]document.Document, error) {
	entries := res.Entries
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })

	out := make([]document.Document, 0, min(len(entries), limit))
	for _, e := range entries {
		doc, err := decode(e.Fields, e.Score)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return vectordb.Truncate(out, limit), nil
}
