package request

import (
	"fmt"

	"github.com/kailas-cloud/kbase/internal/domain/search/filter"
	"github.com/kailas-cloud/kbase/internal/domain/search/mode"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 4096
	DefaultLimit   = 5
	MaxLimit       = 100
)

// Request is a validated search query.
type Request struct {
	query      string
	searchMode mode.Mode
	filters    filter.Filters
	limit      int
	minScore   float64
}

// New validates and normalizes search parameters.
// Defaults: mode=backend default, limit=5. Limit is clamped to MaxLimit.
func New(query string, m mode.Mode, filters filter.Filters, limit int, minScore float64) (Request, error) {
	if query == "" {
		return Request{}, fmt.Errorf("query is required")
	}
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}
	if !m.IsValid() {
		return Request{}, fmt.Errorf("invalid search mode: %q", m)
	}
	if err := filters.Validate(); err != nil {
		return Request{}, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if minScore < 0 {
		return Request{}, fmt.Errorf("min_score must not be negative")
	}

	return Request{
		query:      query,
		searchMode: m,
		filters:    filters.Clone(),
		limit:      limit,
		minScore:   minScore,
	}, nil
}

// Query returns the search query text.
func (r *Request) Query() string { return r.query }

// Mode returns the search strategy.
func (r *Request) Mode() mode.Mode { return r.searchMode }

// Filters returns the candidate constraints.
func (r *Request) Filters() filter.Filters { return r.filters }

// Limit returns the maximum results to return.
func (r *Request) Limit() int { return r.limit }

// MinScore returns the minimum relevance score; 0 disables the threshold.
func (r *Request) MinScore() float64 { return r.minScore }
