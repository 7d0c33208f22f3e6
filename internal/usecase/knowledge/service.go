// Package knowledge loads knowledge bases into a vector store and searches them.
package knowledge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/kbase/internal/domain"
	"github.com/kailas-cloud/kbase/internal/domain/document"
	domkb "github.com/kailas-cloud/kbase/internal/domain/knowledge"
	"github.com/kailas-cloud/kbase/internal/domain/search/filter"
	"github.com/kailas-cloud/kbase/internal/domain/search/mode"
	"github.com/kailas-cloud/kbase/internal/domain/search/request"
	"github.com/kailas-cloud/kbase/internal/domain/search/result"
)

// DefaultBatchSize is the number of documents written per store call.
const DefaultBatchSize = 32

// ProgressFunc reports how many documents of total have been processed.
type ProgressFunc func(done, total int)

// LoadOptions controls how a knowledge base is written.
type LoadOptions struct {
	// Recreate drops the collection before loading.
	Recreate bool
	// Upsert replaces stored documents by identity when the store supports it.
	Upsert bool
	// SkipExisting drops documents the store already holds instead of failing
	// the insert. Ignored when upserting.
	SkipExisting bool
	// Filters are stamped into every document's metadata.
	Filters    filter.Filters
	BatchSize  int
	OnProgress ProgressFunc
}

// LoadReport counts what a load did.
type LoadReport struct {
	Inserted int `json:"inserted"`
	Upserted int `json:"upserted"`
	Skipped  int `json:"skipped"`
	Batches  int `json:"batches"`
}

// Service loads and searches knowledge.
type Service struct {
	store  Store
	logger *zap.Logger
}

// New creates a knowledge service.
func New(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Load writes kb into the store batch by batch. A failed batch stops the
// load; batches written before it stay written.
func (s *Service) Load(ctx context.Context, kb *domkb.KnowledgeBase, opts LoadOptions) (LoadReport, error) {
	var report LoadReport
	if err := opts.Filters.Validate(); err != nil {
		return report, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	if opts.Recreate {
		s.logger.Info("Dropping collection before load")
		if err := s.store.DropDB(ctx); err != nil {
			return report, fmt.Errorf("drop collection: %w", err)
		}
	}
	if err := s.store.Create(ctx); err != nil {
		return report, fmt.Errorf("create collection: %w", err)
	}
	if kb == nil || kb.IsEmpty() {
		return report, nil
	}

	useUpsert := opts.Upsert && s.store.UpsertAvailable()
	if opts.Upsert && !useUpsert {
		s.logger.Warn("Upsert not available, inserting instead")
	}

	total := kb.Len()
	done := 0
	for batch := range kb.Batches(opts.BatchSize) {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Batches++

		if useUpsert {
			if err := s.store.Upsert(ctx, batch, opts.Filters); err != nil {
				return report, fmt.Errorf("upsert batch %d: %w", report.Batches, err)
			}
			report.Upserted += len(batch)
		} else {
			docs := batch
			if opts.SkipExisting {
				var err error
				if docs, err = s.missing(ctx, batch); err != nil {
					return report, fmt.Errorf("check batch %d: %w", report.Batches, err)
				}
				report.Skipped += len(batch) - len(docs)
			}
			if len(docs) > 0 {
				if err := s.store.Insert(ctx, docs, opts.Filters); err != nil {
					return report, fmt.Errorf("insert batch %d: %w", report.Batches, err)
				}
				report.Inserted += len(docs)
			}
		}

		done += len(batch)
		if opts.OnProgress != nil {
			opts.OnProgress(done, total)
		}
	}

	s.logger.Info("Knowledge loaded",
		zap.Int("inserted", report.Inserted),
		zap.Int("upserted", report.Upserted),
		zap.Int("skipped", report.Skipped),
		zap.Int("batches", report.Batches),
	)
	return report, nil
}

// missing keeps the documents the store does not hold yet, dropping
// repeats of an identity within the batch as well.
func (s *Service) missing(ctx context.Context, batch []document.Document) ([]document.Document, error) {
	seen := make(map[string]struct{}, len(batch))
	out := make([]document.Document, 0, len(batch))
	for _, doc := range batch {
		identity := doc.Identity()
		if _, dup := seen[identity]; dup {
			continue
		}
		seen[identity] = struct{}{}

		exists, err := s.store.DocExists(ctx, doc)
		if err != nil {
			return nil, err
		}
		if !exists {
			out = append(out, doc)
		}
	}
	return out, nil
}

// Search runs req against the store in the requested mode and collects the
// embedding tokens the query consumed.
func (s *Service) Search(ctx context.Context, req request.Request) (result.Set, error) {
	usage := domain.UsageFromContext(ctx)
	if usage == nil {
		ctx, usage = domain.NewContextWithUsage(ctx)
	}
	before := usage.TotalTokens

	var search func(context.Context, string, int, filter.Filters) ([]document.Document, error)
	switch req.Mode() {
	case mode.Vector:
		search = s.store.VectorSearch
	case mode.Keyword:
		search = s.store.KeywordSearch
	case mode.Hybrid:
		search = s.store.HybridSearch
	default:
		search = s.store.Search
	}

	docs, err := search(ctx, req.Query(), req.Limit(), req.Filters())
	if err != nil {
		return result.Set{}, fmt.Errorf("search %s: %w", req.Mode(), err)
	}

	s.logger.Debug("Search completed",
		zap.String("mode", req.Mode().String()),
		zap.Int("limit", req.Limit()),
		zap.Int("hits", len(docs)),
	)
	return result.New(req.Mode(), docs, usage.TotalTokens-before).AboveScore(req.MinScore()), nil
}
