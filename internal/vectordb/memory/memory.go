// Package memory is the in-process reference backend. It keeps documents in
// insertion order, ranks keywords with BM25 and vectors by cosine similarity,
// and fuses both for hybrid search.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/viant/sqlite-vec/vector"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/kbase/internal/domain"
	"github.com/kailas-cloud/kbase/internal/domain/document"
	"github.com/kailas-cloud/kbase/internal/domain/search/filter"
	"github.com/kailas-cloud/kbase/internal/domain/search/mode"
	"github.com/kailas-cloud/kbase/internal/domain/search/terms"
	"github.com/kailas-cloud/kbase/internal/vectordb"
)

type entry struct {
	doc      document.Document
	meta     map[string]any
	key      string
	hash     string
	name     *string
	vector   []float32
	termFreq map[string]int
	length   int
}

// DB is a VectorDB held entirely in memory. Safe for concurrent use.
type DB struct {
	mu      sync.RWMutex
	state   vectordb.State
	entries []*entry
	byKey   map[string]*entry
	byHash  map[string]int
	index   termIndex

	embedder    domain.Embedder
	upsert      bool
	defaultMode mode.Mode
	autoCreate  bool
	logger      *zap.Logger
}

var _ vectordb.VectorDB = (*DB)(nil)

// New creates an uninitialized store.
func New(opts ...Option) *DB {
	db := &DB{upsert: true, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(db)
	}
	db.reset()
	return db
}

// State returns the collection lifecycle stage.
func (db *DB) State() vectordb.State {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.state
}

// Len returns the number of stored documents.
func (db *DB) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.entries)
}

// Create provisions the collection. Idempotent.
func (db *DB) Create(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return domain.OperationFailed("create", err)
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	db.createLocked()
	return nil
}

func (db *DB) createLocked() {
	if db.state.Exists() {
		return
	}
	db.reset()
	db.state = vectordb.Created
	db.logger.Debug("Collection created")
}

func (db *DB) reset() {
	db.entries = nil
	db.byKey = make(map[string]*entry)
	db.byHash = make(map[string]int)
	db.index = newTermIndex()
}

var errNoCollection = domain.OperationFailed("collection does not exist", nil)

// rlock takes the read lock on an existing collection, provisioning it first
// when auto-create is enabled. On success the caller must RUnlock.
func (db *DB) rlock() error {
	db.mu.RLock()
	if db.state.Exists() {
		return nil
	}
	db.mu.RUnlock()
	if !db.autoCreate {
		return errNoCollection
	}

	db.mu.Lock()
	db.createLocked()
	db.mu.Unlock()

	db.mu.RLock()
	if db.state.Exists() {
		return nil
	}
	db.mu.RUnlock()
	return errNoCollection
}

// lock takes the write lock on an existing collection. On success the caller
// must Unlock.
func (db *DB) lock() error {
	db.mu.Lock()
	if db.state.Exists() {
		return nil
	}
	if db.autoCreate {
		db.createLocked()
		return nil
	}
	db.mu.Unlock()
	return errNoCollection
}

// DocExists matches by id when set, otherwise by content hash.
func (db *DB) DocExists(_ context.Context, doc document.Document) (bool, error) {
	if err := db.rlock(); err != nil {
		return false, err
	}
	defer db.mu.RUnlock()

	if _, ok := doc.ID(); ok {
		_, found := db.byKey[doc.Identity()]
		return found, nil
	}
	return db.byHash[doc.ContentHash()] > 0, nil
}

// NameExists checks for any stored document with the given name.
func (db *DB) NameExists(_ context.Context, name string) (bool, error) {
	if err := db.rlock(); err != nil {
		return false, err
	}
	defer db.mu.RUnlock()

	for _, e := range db.entries {
		if e.name != nil && *e.name == name {
			return true, nil
		}
	}
	return false, nil
}

// IDExists checks for a stored document with the given id.
func (db *DB) IDExists(_ context.Context, id string) (bool, error) {
	if err := db.rlock(); err != nil {
		return false, err
	}
	defer db.mu.RUnlock()

	_, found := db.byKey[document.IDIdentity(id)]
	return found, nil
}

// Insert adds documents, failing without writes on any identity conflict.
func (db *DB) Insert(ctx context.Context, docs []document.Document, filters filter.Filters) error {
	keys, err := vectordb.CheckBatch(docs)
	if err != nil {
		return err
	}
	prepared, err := db.prepare(ctx, docs, keys, filters)
	if err != nil {
		return err
	}

	if err := db.lock(); err != nil {
		return err
	}
	defer db.mu.Unlock()

	for _, e := range prepared {
		if _, taken := db.byKey[e.key]; taken {
			return vectordb.ConflictError(e.key)
		}
	}
	if err := ctx.Err(); err != nil {
		return domain.OperationFailed("insert", err)
	}
	for _, e := range prepared {
		db.appendLocked(e)
	}
	db.markPopulatedLocked()
	db.logger.Debug("Documents inserted", zap.Int("count", len(prepared)))
	return nil
}

// UpsertAvailable reports whether upsert is enabled.
func (db *DB) UpsertAvailable() bool { return db.upsert }

// Upsert inserts documents or replaces stored ones in place by identity.
func (db *DB) Upsert(ctx context.Context, docs []document.Document, filters filter.Filters) error {
	if !db.upsert {
		return domain.NotImplemented("upsert")
	}
	keys, err := vectordb.CheckBatch(docs)
	if err != nil {
		return err
	}
	prepared, err := db.prepare(ctx, docs, keys, filters)
	if err != nil {
		return err
	}

	if err := db.lock(); err != nil {
		return err
	}
	defer db.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return domain.OperationFailed("upsert", err)
	}
	for _, e := range prepared {
		if old, ok := db.byKey[e.key]; ok {
			db.replaceLocked(old, e)
			continue
		}
		db.appendLocked(e)
	}
	db.markPopulatedLocked()
	db.logger.Debug("Documents upserted", zap.Int("count", len(prepared)))
	return nil
}

// prepare stamps filters, embeds and analyzes docs outside the lock.
func (db *DB) prepare(
	ctx context.Context, docs []document.Document, keys []string, filters filter.Filters,
) ([]*entry, error) {
	stored := vectordb.PrepareDocuments(docs, filters)

	var vectors [][]float32
	if db.embedder != nil && len(stored) > 0 {
		v, err := vectordb.EmbedDocuments(ctx, db.embedder, stored)
		if err != nil {
			return nil, err
		}
		vectors = v
	}

	out := make([]*entry, len(stored))
	for i, doc := range stored {
		tf, n := analyze(doc.Content())
		e := &entry{
			doc:      doc,
			meta:     doc.MetaData(),
			key:      keys[i],
			hash:     doc.ContentHash(),
			termFreq: tf,
			length:   n,
		}
		if name, ok := doc.Name(); ok {
			e.name = &name
		}
		if vectors != nil {
			e.vector = vectors[i]
		}
		out[i] = e
	}
	return out, nil
}

func (db *DB) appendLocked(e *entry) {
	db.entries = append(db.entries, e)
	db.byKey[e.key] = e
	db.byHash[e.hash]++
	db.index.add(e)
}

func (db *DB) replaceLocked(old, e *entry) {
	for i, cur := range db.entries {
		if cur == old {
			db.entries[i] = e
			break
		}
	}
	db.index.remove(old)
	db.byHash[old.hash]--
	if db.byHash[old.hash] <= 0 {
		delete(db.byHash, old.hash)
	}
	db.byKey[e.key] = e
	db.byHash[e.hash]++
	db.index.add(e)
}

func (db *DB) markPopulatedLocked() {
	if len(db.entries) > 0 {
		db.state = vectordb.Populated
	}
}

// Search dispatches to the configured default mode.
func (db *DB) Search(
	ctx context.Context, query string, limit int, filters filter.Filters,
) ([]document.Document, error) {
	switch db.searchMode() {
	case mode.Vector:
		return db.VectorSearch(ctx, query, limit, filters)
	case mode.Hybrid:
		return db.HybridSearch(ctx, query, limit, filters)
	default:
		return db.KeywordSearch(ctx, query, limit, filters)
	}
}

func (db *DB) searchMode() mode.Mode {
	if db.defaultMode != mode.Default {
		return db.defaultMode
	}
	if db.embedder != nil {
		return mode.Hybrid
	}
	return mode.Keyword
}

type hit struct {
	e     *entry
	score float64
}

// VectorSearch ranks candidates by cosine similarity to the query embedding.
func (db *DB) VectorSearch(
	ctx context.Context, query string, limit int, filters filter.Filters,
) ([]document.Document, error) {
	if db.embedder == nil {
		return nil, domain.NotImplemented("vector search without an embedder")
	}
	if err := vectordb.CheckLimit(limit); err != nil {
		return nil, err
	}
	qv, err := vectordb.EmbedQuery(ctx, db.embedder, query)
	if err != nil {
		return nil, err
	}

	if err := db.rlock(); err != nil {
		return nil, err
	}
	defer db.mu.RUnlock()

	hits := make([]hit, 0, len(db.entries))
	for _, e := range db.entries {
		if !filters.Matches(e.meta) || e.vector == nil {
			continue
		}
		if len(e.vector) != len(qv) {
			return nil, domain.OperationFailed(
				fmt.Sprintf("embedding dimension mismatch: stored %d, query %d", len(e.vector), len(qv)), nil)
		}
		sim, err := vector.CosineSimilarity(qv, e.vector)
		if err != nil {
			// zero-magnitude vector, nothing to compare
			continue
		}
		hits = append(hits, hit{e: e, score: sim})
	}
	return rank(hits, limit), nil
}

// KeywordSearch ranks candidates by BM25. Documents sharing no query term are
// not returned.
func (db *DB) KeywordSearch(
	_ context.Context, query string, limit int, filters filter.Filters,
) ([]document.Document, error) {
	if err := vectordb.CheckLimit(limit); err != nil {
		return nil, err
	}
	if err := db.rlock(); err != nil {
		return nil, err
	}
	defer db.mu.RUnlock()

	q := terms.Unique(terms.Tokenize(query))
	hits := make([]hit, 0, len(db.entries))
	for _, e := range db.entries {
		if !filters.Matches(e.meta) {
			continue
		}
		if s := db.index.score(q, e); s > 0 {
			hits = append(hits, hit{e: e, score: s})
		}
	}
	return rank(hits, limit), nil
}

// HybridSearch runs both rankings concurrently and fuses them with RRF.
func (db *DB) HybridSearch(
	ctx context.Context, query string, limit int, filters filter.Filters,
) ([]document.Document, error) {
	if db.embedder == nil {
		return nil, domain.NotImplemented("hybrid search without an embedder")
	}
	if err := vectordb.CheckLimit(limit); err != nil {
		return nil, err
	}
	if limit == 0 {
		return []document.Document{}, nil
	}

	fetch := vectordb.HybridFetch(limit)
	var vec, kw []document.Document
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vec, err = db.VectorSearch(gctx, query, fetch, filters)
		return err
	})
	g.Go(func() error {
		var err error
		kw, err = db.KeywordSearch(gctx, query, fetch, filters)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectordb.FuseRRF(vec, kw, limit), nil
}

// rank sorts hits by score descending, ties in insertion order, and returns
// scored copies of the top limit documents.
func rank(hits []hit, limit int) []document.Document {
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if limit < 0 {
		limit = 0
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]document.Document, len(hits))
	for i, h := range hits {
		out[i] = h.e.doc.WithScore(h.score)
	}
	return out
}

// DBExists reports whether the collection exists.
func (db *DB) DBExists(context.Context) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.state.Exists(), nil
}

// Optimize compacts the term statistics. Stored documents are unchanged.
func (db *DB) Optimize(context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if !db.state.Exists() {
		return nil
	}
	db.index.compact()
	if db.state == vectordb.Populated {
		db.state = vectordb.Optimized
	}
	return nil
}

// DropDB discards every document. Idempotent.
func (db *DB) DropDB(context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.dropLocked()
	return nil
}

// Delete discards the collection and reports whether it existed.
func (db *DB) Delete(context.Context) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	existed := db.state.Exists()
	db.dropLocked()
	return existed, nil
}

func (db *DB) dropLocked() {
	if db.state.Exists() {
		db.logger.Debug("Collection dropped", zap.Int("documents", len(db.entries)))
	}
	db.reset()
	db.state = vectordb.Dropped
}
