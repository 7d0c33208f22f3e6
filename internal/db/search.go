package db

// MaxSearchResults is the default MAXSEARCHRESULTS of Redis and Valkey
// search. FT.SEARCH rejects a LIMIT above it.
const MaxSearchResults = 10000

// KNNQuery is the input for vector similarity search. Filter is an FT.SEARCH
// pre-filter expression (see TagFilter); empty means no filter.
type KNNQuery struct {
	IndexName    string
	Filter       string
	Vector       []float32
	K            int
	ReturnFields []string
}

// TextQuery is the input for BM25 text search over Field.
type TextQuery struct {
	IndexName    string
	Field        string
	Terms        []string
	Filter       string
	TopK         int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
