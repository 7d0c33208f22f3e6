package vectordb

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/kbase/internal/domain"
	"github.com/kailas-cloud/kbase/internal/domain/document"
	"github.com/kailas-cloud/kbase/internal/domain/search/filter"
	"github.com/kailas-cloud/kbase/internal/metrics"
)

// Operation names used in logs and metric labels.
const (
	OpCreate        = "create"
	OpDocExists     = "doc_exists"
	OpNameExists    = "name_exists"
	OpIDExists      = "id_exists"
	OpInsert        = "insert"
	OpUpsert        = "upsert"
	OpSearch        = "search"
	OpVectorSearch  = "vector_search"
	OpKeywordSearch = "keyword_search"
	OpHybridSearch  = "hybrid_search"
	OpDBExists      = "db_exists"
	OpOptimize      = "optimize"
	OpDropDB        = "drop_db"
	OpDelete        = "delete"
)

// Instrumented wraps a backend with the checks every backend must honor
// plus logging and metrics:
//   - Upsert on a backend without upsert fails with NotImplemented and never reaches it;
//   - negative limits and malformed filters fail with OperationFailed;
//   - search results are capped at the limit;
//   - errors outside the taxonomy are reported as OperationFailed.
type Instrumented struct {
	inner   VectorDB
	backend string
	logger  *zap.Logger
}

var _ VectorDB = (*Instrumented)(nil)

// NewInstrumented wraps inner. backend labels logs and metrics.
func NewInstrumented(inner VectorDB, backend string, logger *zap.Logger) *Instrumented {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Instrumented{inner: inner, backend: backend, logger: logger}
}

// Unwrap returns the decorated backend.
func (i *Instrumented) Unwrap() VectorDB { return i.inner }

// Create provisions the collection.
func (i *Instrumented) Create(ctx context.Context) error {
	start := time.Now()
	return i.observe(OpCreate, start, i.inner.Create(ctx))
}

// DocExists checks for a stored document with the same identity.
func (i *Instrumented) DocExists(ctx context.Context, doc document.Document) (bool, error) {
	start := time.Now()
	ok, err := i.inner.DocExists(ctx, doc)
	return ok, i.observe(OpDocExists, start, err)
}

// NameExists checks for a stored document with the given name.
func (i *Instrumented) NameExists(ctx context.Context, name string) (bool, error) {
	start := time.Now()
	ok, err := i.inner.NameExists(ctx, name)
	return ok, i.observe(OpNameExists, start, err)
}

// IDExists checks for a stored document with the given id.
func (i *Instrumented) IDExists(ctx context.Context, id string) (bool, error) {
	start := time.Now()
	ok, err := i.inner.IDExists(ctx, id)
	return ok, i.observe(OpIDExists, start, err)
}

// Insert adds new documents.
func (i *Instrumented) Insert(ctx context.Context, docs []document.Document, filters filter.Filters) error {
	start := time.Now()
	if err := CheckFilters(filters); err != nil {
		return i.observe(OpInsert, start, err)
	}
	err := i.inner.Insert(ctx, docs, filters)
	if err == nil {
		metrics.VectorDBDocumentsTotal.WithLabelValues(i.backend, OpInsert).Add(float64(len(docs)))
	}
	return i.observe(OpInsert, start, err)
}

// UpsertAvailable reports the backend capability.
func (i *Instrumented) UpsertAvailable() bool { return i.inner.UpsertAvailable() }

// Upsert inserts or replaces documents when the backend supports it.
func (i *Instrumented) Upsert(ctx context.Context, docs []document.Document, filters filter.Filters) error {
	start := time.Now()
	if !i.inner.UpsertAvailable() {
		return i.observe(OpUpsert, start, domain.NotImplemented("upsert"))
	}
	if err := CheckFilters(filters); err != nil {
		return i.observe(OpUpsert, start, err)
	}
	err := i.inner.Upsert(ctx, docs, filters)
	if err == nil {
		metrics.VectorDBDocumentsTotal.WithLabelValues(i.backend, OpUpsert).Add(float64(len(docs)))
	}
	return i.observe(OpUpsert, start, err)
}

// Search runs the backend's default search mode.
func (i *Instrumented) Search(
	ctx context.Context, query string, limit int, filters filter.Filters,
) ([]document.Document, error) {
	return i.search(ctx, OpSearch, i.inner.Search, query, limit, filters)
}

// VectorSearch ranks by embedding similarity.
func (i *Instrumented) VectorSearch(
	ctx context.Context, query string, limit int, filters filter.Filters,
) ([]document.Document, error) {
	return i.search(ctx, OpVectorSearch, i.inner.VectorSearch, query, limit, filters)
}

// KeywordSearch ranks by term relevance.
func (i *Instrumented) KeywordSearch(
	ctx context.Context, query string, limit int, filters filter.Filters,
) ([]document.Document, error) {
	return i.search(ctx, OpKeywordSearch, i.inner.KeywordSearch, query, limit, filters)
}

// HybridSearch fuses vector and keyword rankings.
func (i *Instrumented) HybridSearch(
	ctx context.Context, query string, limit int, filters filter.Filters,
) ([]document.Document, error) {
	return i.search(ctx, OpHybridSearch, i.inner.HybridSearch, query, limit, filters)
}

// DBExists reports whether the collection exists.
func (i *Instrumented) DBExists(ctx context.Context) (bool, error) {
	start := time.Now()
	ok, err := i.inner.DBExists(ctx)
	return ok, i.observe(OpDBExists, start, err)
}

// Optimize runs backend maintenance.
func (i *Instrumented) Optimize(ctx context.Context) error {
	start := time.Now()
	return i.observe(OpOptimize, start, i.inner.Optimize(ctx))
}

// DropDB destroys the collection.
func (i *Instrumented) DropDB(ctx context.Context) error {
	start := time.Now()
	return i.observe(OpDropDB, start, i.inner.DropDB(ctx))
}

// Delete removes the underlying resource.
func (i *Instrumented) Delete(ctx context.Context) (bool, error) {
	start := time.Now()
	ok, err := i.inner.Delete(ctx)
	return ok, i.observe(OpDelete, start, err)
}

func (i *Instrumented) search(
	ctx context.Context, op string, fn searchFunc,
	query string, limit int, filters filter.Filters,
) ([]document.Document, error) {
	start := time.Now()
	if err := CheckLimit(limit); err != nil {
		return nil, i.observe(op, start, err)
	}
	if err := CheckFilters(filters); err != nil {
		return nil, i.observe(op, start, err)
	}

	docs, err := fn(ctx, query, limit, filters)
	if err != nil {
		return nil, i.observe(op, start, err)
	}

	docs = Truncate(docs, limit)
	if docs == nil {
		docs = []document.Document{}
	}
	metrics.VectorDBDocumentsTotal.WithLabelValues(i.backend, op).Add(float64(len(docs)))
	i.logger.Debug("Vector store search completed",
		zap.String("backend", i.backend),
		zap.String("op", op),
		zap.Int("limit", limit),
		zap.Int("results", len(docs)),
		zap.Duration("duration", time.Since(start)),
	)
	return docs, i.observe(op, start, nil)
}

// observe classifies err, records metrics and logs failures.
func (i *Instrumented) observe(op string, start time.Time, err error) error {
	err = Classify(err)
	duration := time.Since(start)

	metrics.VectorDBOperationDuration.WithLabelValues(i.backend, op).Observe(duration.Seconds())
	metrics.VectorDBOperationsTotal.WithLabelValues(i.backend, op, statusLabel(err)).Inc()

	if err != nil {
		level := zap.WarnLevel
		if errors.Is(err, domain.ErrNotImplemented) {
			level = zap.DebugLevel
		}
		i.logger.Check(level, "Vector store operation failed").Write(
			zap.String("backend", i.backend),
			zap.String("op", op),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
	}
	return err
}

// Classify maps an arbitrary error into the taxonomy: errors already carrying
// a kind pass through, everything else becomes OperationFailed.
func Classify(err error) error {
	if err == nil || domain.KindOf(err) != nil {
		return err
	}
	return domain.OperationFailed("", err)
}

func statusLabel(err error) string {
	switch domain.KindOf(err) {
	case nil:
		return "ok"
	case domain.ErrNotImplemented:
		return "not_implemented"
	case domain.ErrConnection:
		return "connection"
	default:
		return "failed"
	}
}
