// Package vectordb defines the storage contract shared by every document
// backend, plus the pieces all backends reuse: the capability defaults, the
// asynchronous form, contract enforcement and rank fusion.
package vectordb

import (
	"context"

	"github.com/kailas-cloud/kbase/internal/domain/document"
	"github.com/kailas-cloud/kbase/internal/domain/search/filter"
)

// VectorDB is the contract every storage backend implements.
//
// Errors are *domain.BackendError values classified as domain.ErrNotImplemented,
// domain.ErrConnection or domain.ErrOperationFailed. A single call either
// applies fully or fails without partial effects visible through the
// contract's own read operations.
//
//nolint:interfacebloat // the contract is the unit backends are swapped by
type VectorDB interface {
	// Create provisions the collection. Idempotent.
	Create(ctx context.Context) error

	// DocExists checks for a stored document with the same identity: the id
	// when set, otherwise the content hash. Absence is false, not an error.
	DocExists(ctx context.Context, doc document.Document) (bool, error)
	// NameExists checks for any stored document with the given name.
	NameExists(ctx context.Context, name string) (bool, error)
	// IDExists checks for a stored document with the given id.
	IDExists(ctx context.Context, id string) (bool, error)

	// Insert adds new documents. It fails without writing anything if any
	// document conflicts with a stored identity or with another document of
	// the batch. Filters are stamped into the stored metadata.
	Insert(ctx context.Context, docs []document.Document, filters filter.Filters) error
	// UpsertAvailable reports whether Upsert is supported. Pure and O(1).
	UpsertAvailable() bool
	// Upsert inserts or replaces documents by identity.
	Upsert(ctx context.Context, docs []document.Document, filters filter.Filters) error

	// Search runs the backend's default search mode.
	Search(ctx context.Context, query string, limit int, filters filter.Filters) ([]document.Document, error)
	// VectorSearch ranks by embedding similarity.
	VectorSearch(ctx context.Context, query string, limit int, filters filter.Filters) ([]document.Document, error)
	// KeywordSearch ranks by term relevance.
	KeywordSearch(ctx context.Context, query string, limit int, filters filter.Filters) ([]document.Document, error)
	// HybridSearch fuses vector and keyword rankings.
	HybridSearch(ctx context.Context, query string, limit int, filters filter.Filters) ([]document.Document, error)

	// DBExists reports whether the collection currently exists.
	DBExists(ctx context.Context) (bool, error)
	// Optimize runs backend maintenance. It never changes stored data.
	Optimize(ctx context.Context) error
	// DropDB destroys the collection. Idempotent.
	DropDB(ctx context.Context) error
	// Delete removes the underlying resource and reports whether one existed.
	Delete(ctx context.Context) (bool, error)
}
