package knowledge

import (
	"context"

	"github.com/kailas-cloud/kbase/internal/domain/document"
	"github.com/kailas-cloud/kbase/internal/domain/search/filter"
)

// Store is the slice of the VectorDB contract the service drives.
type Store interface {
	Create(ctx context.Context) error
	DBExists(ctx context.Context) (bool, error)
	DropDB(ctx context.Context) error
	DocExists(ctx context.Context, doc document.Document) (bool, error)
	Insert(ctx context.Context, docs []document.Document, filters filter.Filters) error
	UpsertAvailable() bool
	Upsert(ctx context.Context, docs []document.Document, filters filter.Filters) error
	Search(ctx context.Context, query string, limit int, filters filter.Filters) ([]document.Document, error)
	VectorSearch(ctx context.Context, query string, limit int, filters filter.Filters) ([]document.Document, error)
	KeywordSearch(ctx context.Context, query string, limit int, filters filter.Filters) ([]document.Document, error)
	HybridSearch(ctx context.Context, query string, limit int, filters filter.Filters) ([]document.Document, error)
}
