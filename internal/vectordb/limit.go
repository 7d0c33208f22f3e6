package vectordb

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/kbase/internal/domain"
	"github.com/kailas-cloud/kbase/internal/domain/document"
	"github.com/kailas-cloud/kbase/internal/domain/search/filter"
)

// CheckLimit rejects negative result limits.
func CheckLimit(limit int) error {
	if limit < 0 {
		return domain.OperationFailed(fmt.Sprintf("limit must not be negative, got %d", limit), nil)
	}
	return nil
}

// hybridOverfetch widens each hybrid branch before fusion.
const hybridOverfetch = 3

// HybridFetch is the per-branch limit for a hybrid search returning limit
// results. It saturates at math.MaxInt.
func HybridFetch(limit int) int {
	if limit > math.MaxInt/hybridOverfetch {
		return math.MaxInt
	}
	return limit * hybridOverfetch
}

// CheckFilters rejects malformed filter maps.
func CheckFilters(filters filter.Filters) error {
	if err := filters.Validate(); err != nil {
		return domain.OperationFailed("malformed filter", err)
	}
	return nil
}

// Truncate caps docs at limit entries.
func Truncate(docs []document.Document, limit int) []document.Document {
	if limit < 0 {
		limit = 0
	}
	if len(docs) > limit {
		return docs[:limit]
	}
	return docs
}

// CheckBatch rejects a batch where two documents share an identity and
// returns the identities in batch order.
func CheckBatch(docs []document.Document) ([]string, error) {
	ids := make([]string, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for i, doc := range docs {
		key := doc.Identity()
		if _, dup := seen[key]; dup {
			return nil, domain.OperationFailed(fmt.Sprintf("duplicate document %s in batch", key), nil)
		}
		seen[key] = struct{}{}
		ids[i] = key
	}
	return ids, nil
}

// ConflictError reports an insert that collides with a stored document.
func ConflictError(identity string) error {
	return domain.OperationFailed(fmt.Sprintf("document %s already exists", identity), nil)
}
