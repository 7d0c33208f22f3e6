package vectordb

import (
	"context"

	"github.com/kailas-cloud/kbase/internal/domain"
	"github.com/kailas-cloud/kbase/internal/domain/document"
	"github.com/kailas-cloud/kbase/internal/domain/search/filter"
)

// Unimplemented provides the optional capabilities for backends that embed it.
// Upsert and the explicit search modes report NotImplemented, Optimize is a no-op.
type Unimplemented struct{}

// UpsertAvailable reports false.
func (Unimplemented) UpsertAvailable() bool { return false }

// Upsert is not supported.
func (Unimplemented) Upsert(context.Context, []document.Document, filter.Filters) error {
	return domain.NotImplemented("upsert")
}

// VectorSearch is not supported.
func (Unimplemented) VectorSearch(context.Context, string, int, filter.Filters) ([]document.Document, error) {
	return nil, domain.NotImplemented("vector search")
}

// KeywordSearch is not supported.
func (Unimplemented) KeywordSearch(context.Context, string, int, filter.Filters) ([]document.Document, error) {
	return nil, domain.NotImplemented("keyword search")
}

// HybridSearch is not supported.
func (Unimplemented) HybridSearch(context.Context, string, int, filter.Filters) ([]document.Document, error) {
	return nil, domain.NotImplemented("hybrid search")
}

// Optimize does nothing.
func (Unimplemented) Optimize(context.Context) error { return nil }
