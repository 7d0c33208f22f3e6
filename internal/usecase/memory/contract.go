package memory

import (
	"context"

	"github.com/kailas-cloud/kbase/internal/domain/document"
	"github.com/kailas-cloud/kbase/internal/domain/search/filter"
)

// Store is the slice of the vector store the memory service needs.
type Store interface {
	Create(ctx context.Context) error
	Insert(ctx context.Context, docs []document.Document, filters filter.Filters) error
	Search(ctx context.Context, query string, limit int, filters filter.Filters) ([]document.Document, error)
}
