package kbase

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/kbase/internal/domain/search/request"
)

// SearchOptions configures a search query.
type SearchOptions struct {
	Mode     Mode
	Filters  Filters
	Limit    int // default 5, at most 100
	MinScore float64
}

// Query searches the collection. A nil opts runs the backend's default
// mode with the default limit.
func (c *Client) Query(ctx context.Context, query string, opts *SearchOptions) (res Results, err error) {
	defer func(start time.Time) { c.obs.observe("query", start, err) }(time.Now())

	if opts == nil {
		opts = &SearchOptions{}
	}
	req, err := request.New(query, opts.Mode, opts.Filters, opts.Limit, opts.MinScore)
	if err != nil {
		return Results{}, fmt.Errorf("query: %w: %w", ErrInvalidRequest, err)
	}

	res, err = c.knowledge.Search(ctx, req)
	if err != nil {
		return Results{}, fmt.Errorf("query: %w", err)
	}
	return res, nil
}
