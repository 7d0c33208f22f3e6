package chi

import (
	"github.com/kailas-cloud/kbase/internal/domain/document"
	"github.com/kailas-cloud/kbase/internal/domain/search/filter"
	dommem "github.com/kailas-cloud/kbase/internal/domain/memory"
)

// CollectionResponse reports collection existence.
type CollectionResponse struct {
	Exists bool `json:"exists"`
}

// DeleteResponse reports whether Delete removed an existing resource.
type DeleteResponse struct {
	Existed bool `json:"existed"`
}

// InsertRequest is the body of POST /documents.
type InsertRequest struct {
	Documents []document.Document `json:"documents"`
	Filters   filter.Filters      `json:"filters,omitempty"`
}

// InsertResponse counts written documents.
type InsertResponse struct {
	Count    int  `json:"count"`
	Upserted bool `json:"upserted"`
}

// ExistsResponse answers the existence checks.
type ExistsResponse struct {
	Exists bool `json:"exists"`
}

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Query    string         `json:"query"`
	Mode     string         `json:"mode,omitempty"`
	Limit    int            `json:"limit,omitempty"`
	Filters  filter.Filters `json:"filters,omitempty"`
	MinScore float64        `json:"min_score,omitempty"`
}

// SearchResponse carries ranked documents.
type SearchResponse struct {
	Mode        string              `json:"mode"`
	TotalTokens int                 `json:"total_tokens"`
	Documents   []document.Document `json:"documents"`
}

// LoadRequest is the body of POST /knowledge/load.
type LoadRequest struct {
	Documents    []document.Document `json:"documents"`
	Filters      filter.Filters      `json:"filters,omitempty"`
	Recreate     bool                `json:"recreate,omitempty"`
	Upsert       bool                `json:"upsert,omitempty"`
	SkipExisting bool                `json:"skip_existing,omitempty"`
	BatchSize    int                 `json:"batch_size,omitempty"`
}

// MemoriesResponse lists recalled memories.
type MemoriesResponse struct {
	Retrieval dommem.Retrieval `json:"retrieval"`
	Memories  []dommem.Memory  `json:"memories"`
}

// UsageResponse is the body of GET /usage.
type UsageResponse struct {
	Period      string `json:"period"`
	PeriodStart int64  `json:"period_start,omitempty"`
	PeriodEnd   int64  `json:"period_end,omitempty"`
	Requests    int64  `json:"requests"`
	Tokens      int64  `json:"tokens"`
}
