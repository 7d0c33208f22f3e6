// Package db describes the key-value and FT search surface the Redis-family
// collection backend and the embedding cache run on.
package db

import (
	"context"
	"time"
)

// Store is everything a Redis or Valkey deployment offers kbase.
//
//nolint:interfacebloat // facade; consumers use the narrow sub-interfaces
type Store interface {
	Pinger
	HashStore
	KVStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem is one document hash written by HSetMulti. Replace clears
// the key first so stale fields (an old vector, a dropped filter) go away.
type HashSetItem struct {
	Key     string
	Fields  map[string]string
	Replace bool
}

// HashStore writes document hashes and checks identities. Both writers
// apply a batch as one MULTI/EXEC transaction.
type HashStore interface {
	HSetMulti(ctx context.Context, items []HashSetItem) error
	// HSetNew fails with a *KeyExistsError when any key is already present.
	HSetNew(ctx context.Context, items []HashSetItem) error
	Exists(ctx context.Context, key string) (bool, error)
	ExistsMulti(ctx context.Context, keys []string) ([]bool, error)
}

// KVStore is the byte store behind the embedding cache.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// IndexManager owns the FT index of a collection.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	// DropIndex removes the index; deleteDocs also removes the indexed hashes.
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	IndexExists(ctx context.Context, name string) (bool, error)
	// SupportsTextSearch is false on Valkey, which lacks TEXT fields and BM25.
	SupportsTextSearch() bool
}

// Searcher runs FT.SEARCH queries.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchBM25(ctx context.Context, q *TextQuery) (*SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}
