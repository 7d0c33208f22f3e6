package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/viant/sqlite-vec/vector"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/kbase/internal/domain"
	"github.com/kailas-cloud/kbase/internal/domain/document"
	"github.com/kailas-cloud/kbase/internal/domain/search/filter"
	"github.com/kailas-cloud/kbase/internal/domain/search/mode"
	"github.com/kailas-cloud/kbase/internal/domain/search/terms"
	"github.com/kailas-cloud/kbase/internal/vectordb"
)

// resultPrealloc bounds the up-front result allocation; larger result sets
// grow by append.
const resultPrealloc = 64

const selectColumns = `t.doc_id, t.name, t.content, t.meta_data, t.usage`

// Search dispatches to the configured default mode: hybrid with an embedder,
// keyword otherwise.
func (db *DB) Search(
	ctx context.Context, query string, limit int, filters filter.Filters,
) ([]document.Document, error) {
	m := db.defaultMode
	if m == mode.Default {
		m = mode.Keyword
		if db.embedder != nil {
			m = mode.Hybrid
		}
	}
	switch m {
	case mode.Vector:
		return db.VectorSearch(ctx, query, limit, filters)
	case mode.Hybrid:
		return db.HybridSearch(ctx, query, limit, filters)
	default:
		return db.KeywordSearch(ctx, query, limit, filters)
	}
}

// VectorSearch ranks by vec_cosine similarity to the query embedding.
func (db *DB) VectorSearch(
	ctx context.Context, query string, limit int, filters filter.Filters,
) ([]document.Document, error) {
	if db.embedder == nil {
		return nil, domain.NotImplemented("vector search without an embedder")
	}
	if err := vectordb.CheckLimit(limit); err != nil {
		return nil, err
	}
	if err := db.ready(ctx); err != nil {
		return nil, err
	}
	qv, err := vectordb.EmbedQuery(ctx, db.embedder, query)
	if err != nil {
		return nil, err
	}
	if limit == 0 || !nonZero(qv) {
		return []document.Document{}, nil
	}
	blob, err := vector.EncodeEmbedding(qv)
	if err != nil {
		return nil, domain.OperationFailed("encode query embedding", err)
	}

	stmt := fmt.Sprintf(`SELECT %s, vec_cosine(t.embedding, ?) AS score
FROM %s t
WHERE t.embedding IS NOT NULL
ORDER BY score DESC, t.rowid`, selectColumns, db.table)
	return db.query(ctx, stmt, limit, filters, func(s float64) float64 { return s }, blob)
}

// KeywordSearch ranks by FTS5 BM25. Documents sharing no query term are not
// returned.
func (db *DB) KeywordSearch(
	ctx context.Context, query string, limit int, filters filter.Filters,
) ([]document.Document, error) {
	if err := vectordb.CheckLimit(limit); err != nil {
		return nil, err
	}
	if err := db.ready(ctx); err != nil {
		return nil, err
	}
	tokens := terms.Unique(terms.Tokenize(query))
	if limit == 0 || len(tokens) == 0 {
		return []document.Document{}, nil
	}

	// bm25() is lower-is-better; the score is negated for callers
	stmt := fmt.Sprintf(`SELECT %[1]s, bm25(%[2]s_fts) AS rank
FROM %[2]s_fts f
JOIN %[2]s t ON t.identity = f.identity
WHERE %[2]s_fts MATCH ?
ORDER BY rank, t.rowid`, selectColumns, db.table)
	return db.query(ctx, stmt, limit, filters, func(s float64) float64 { return -s }, ftsQuery(tokens))
}

// HybridSearch runs both rankings concurrently and fuses them with RRF.
func (db *DB) HybridSearch(
	ctx context.Context, query string, limit int, filters filter.Filters,
) ([]document.Document, error) {
	if db.embedder == nil {
		return nil, domain.NotImplemented("hybrid search without an embedder")
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

// query runs a ranked statement, applies filters on decoded metadata and
// stops at limit. Without filters the limit is pushed into SQL.
func (db *DB) query(
	ctx context.Context, stmt string, limit int, filters filter.Filters,
	score func(float64) float64, args ...any,
) ([]document.Document, error) {
	if filters.IsEmpty() {
		stmt += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := db.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, classify("search", err)
	}
	defer rows.Close()

	out := make([]document.Document, 0, min(limit, resultPrealloc))
	for rows.Next() && len(out) < limit {
		var (
			id, name, usage sql.NullString
			content, meta   string
			raw             sql.NullFloat64
		)
		if err := rows.Scan(&id, &name, &content, &meta, &usage, &raw); err != nil {
			return nil, domain.OperationFailed("scan result", err)
		}
		doc, err := decode(id, name, content, meta, usage)
		if err != nil {
			return nil, err
		}
		if !filters.Matches(doc.MetaData()) {
			continue
		}
		doc.SetRerankingScore(score(raw.Float64))
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("read results", err)
	}
	return out, nil
}

func decode(id, name sql.NullString, content, meta string, usage sql.NullString) (document.Document, error) {
	doc := document.New(content)
	if id.Valid {
		doc.SetID(id.String)
	}
	if name.Valid {
		doc.SetName(name.String)
	}
	if err := doc.SetMetaDataFromJSON(meta); err != nil {
		return document.Document{}, domain.OperationFailed("decode meta_data", err)
	}
	if usage.Valid {
		u, err := document.ParseObject([]byte(usage.String))
		if err != nil {
			return document.Document{}, domain.OperationFailed("decode usage", err)
		}
		doc.SetUsage(u)
	}
	return doc, nil
}
