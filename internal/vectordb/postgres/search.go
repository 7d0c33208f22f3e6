package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/kbase/internal/domain"
	"github.com/kailas-cloud/kbase/internal/domain/document"
	"github.com/kailas-cloud/kbase/internal/domain/search/filter"
	"github.com/kailas-cloud/kbase/internal/domain/search/mode"
	"github.com/kailas-cloud/kbase/internal/domain/search/terms"
	"github.com/kailas-cloud/kbase/internal/vectordb"
)

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

// VectorSearch ranks by cosine similarity (1 - cosine distance).
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

	where, args, err := compileFilters(filters, 3)
	if err != nil {
		return nil, domain.OperationFailed("malformed filter", err)
	}
	stmt := fmt.Sprintf(`SELECT %s, 1 - (t.embedding <=> $1::vector) AS score
FROM %s t
WHERE t.embedding IS NOT NULL AND %s
ORDER BY t.embedding <=> $1::vector, t.seq
LIMIT $2`, selectColumns, db.table, where)

	return db.query(ctx, stmt, append([]any{pgvector.NewVector(qv), limit}, args...)...)
}

// KeywordSearch ranks by ts_rank_cd over the generated tsvector. Any query
// term matches.
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

	where, args, err := compileFilters(filters, 3)
	if err != nil {
		return nil, domain.OperationFailed("malformed filter", err)
	}
	// tokens hold only letters and digits, so they are safe tsquery lexemes
	stmt := fmt.Sprintf(`SELECT %s, ts_rank_cd(t.content_tsv, q) AS score
FROM %s t, to_tsquery('simple', $1) q
WHERE t.content_tsv @@ q AND %s
ORDER BY score DESC, t.seq
LIMIT $2`, selectColumns, db.table, where)

	return db.query(ctx, stmt, append([]any{strings.Join(tokens, " | "), limit}, args...)...)
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

type resultRow struct {
	ID       *string
	Name     *string
	Content  string
	MetaData []byte
	Usage    []byte
	Score    float64
}

func (db *DB) query(ctx context.Context, stmt string, args ...any) ([]document.Document, error) {
	rows, err := db.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, classify("search", err)
	}
	results, err := pgx.CollectRows(rows, pgx.RowToStructByPos[resultRow])
	if err != nil {
		return nil, classify("read results", err)
	}

	out := make([]document.Document, 0, len(results))
	for _, r := range results {
		doc, err := r.document()
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (r resultRow) document() (document.Document, error) {
	doc := document.New(r.Content, document.WithRerankingScore(r.Score))
	if r.ID != nil {
		doc.SetID(*r.ID)
	}
	if r.Name != nil {
		doc.SetName(*r.Name)
	}
	if err := doc.SetMetaDataFromJSON(string(r.MetaData)); err != nil {
		return document.Document{}, domain.OperationFailed("decode meta_data", err)
	}
	if r.Usage != nil {
		u, err := document.ParseObject(r.Usage)
		if err != nil {
			return document.Document{}, domain.OperationFailed("decode usage", err)
		}
		doc.SetUsage(u)
	}
	return doc, nil
}
