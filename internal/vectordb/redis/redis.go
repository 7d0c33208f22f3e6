// Package redis stores documents as hashes indexed by an FT index on Redis 8
// or Valkey with the search module. Declared metadata keys are TAG fields;
// content is a TEXT field where the server supports it.
package redis

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"go.uber.org/zap"

	store "github.com/kailas-cloud/kbase/internal/db"
	redisstore "github.com/kailas-cloud/kbase/internal/db/redis"
	"github.com/kailas-cloud/kbase/internal/domain"
	"github.com/kailas-cloud/kbase/internal/domain/document"
	"github.com/kailas-cloud/kbase/internal/domain/search/filter"
	"github.com/kailas-cloud/kbase/internal/domain/search/mode"
	"github.com/kailas-cloud/kbase/internal/vectordb"
)

// HNSW build parameters for the vector field.
const (
	hnswM           = 16
	hnswEFConstruct = 200
)

// DB is a Redis/Valkey-backed VectorDB.
type DB struct {
	store      store.Store
	collection string
	prefix     string
	owned      bool

	embedder     domain.Embedder
	dimsMu       sync.Mutex
	dims         int
	filterFields map[string]struct{}
	defaultMode  mode.Mode
	autoCreate   bool
	logger       *zap.Logger
}

var _ vectordb.VectorDB = (*DB)(nil)

// Connect dials the server and binds the store to the collection.
func Connect(cfg redisstore.Config, collection string, opts ...Option) (*DB, error) {
	s, err := redisstore.NewStore(cfg)
	if err != nil {
		return nil, domain.ConnectionError("connect redis", err)
	}
	db, err := New(s, collection, opts...)
	if err != nil {
		s.Close()
		return nil, err
	}
	db.owned = true
	return db, nil
}

// New binds the collection to an existing store. The caller keeps ownership.
func New(s store.Store, collection string, opts ...Option) (*DB, error) {
	db := &DB{
		store:        s,
		collection:   collection,
		prefix:       DefaultPrefix,
		filterFields: make(map[string]struct{}),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(db)
	}
	if !store.IsValidIdentifier(db.prefix + collection) {
		return nil, domain.OperationFailed(fmt.Sprintf("invalid collection name %q", collection), nil)
	}
	for key := range db.filterFields {
		if !store.IsValidIdentifier(key) {
			return nil, domain.OperationFailed(fmt.Sprintf("invalid filter field %q", key), nil)
		}
	}
	return db, nil
}

// Close releases the connection when the store opened it.
func (db *DB) Close() {
	if db.owned {
		db.store.Close()
	}
}

// Ping checks connectivity.
func (db *DB) Ping(ctx context.Context) error {
	return classify("ping redis", db.store.Ping(ctx))
}

func (db *DB) indexName() string { return db.prefix + db.collection + ":idx" }
func (db *DB) keyPrefix() string { return db.prefix + db.collection + ":doc:" }

// key addresses a document hash by a digest of its identity.
func (db *DB) key(identity string) string {
	return db.keyPrefix() + document.HashContent(identity)
}

func (db *DB) index(ctx context.Context) (*store.IndexDefinition, error) {
	b := store.NewIndex(db.indexName()).
		Prefix(db.keyPrefix()).
		Tag(fieldIdentity).
		Tag(fieldContentHash).
		Tag(fieldName)
	if db.store.SupportsTextSearch() {
		b = b.NoStopWords().Text(fieldContent)
	}
	for _, key := range slices.Sorted(maps.Keys(db.filterFields)) {
		b = b.TagList(filterField(key), tagSeparator)
	}
	if db.embedder != nil {
		n, err := db.dimensions(ctx)
		if err != nil {
			return nil, err
		}
		b = b.Vector(fieldVector, n, &store.HNSWParams{M: hnswM, EFConstruction: hnswEFConstruct})
	}
	return b.Build()
}

// dimensions returns the vector size, embedding a sample text once when it
// was not configured.
func (db *DB) dimensions(ctx context.Context) (int, error) {
	db.dimsMu.Lock()
	defer db.dimsMu.Unlock()
	if db.dims == 0 {
		v, err := vectordb.EmbedQuery(ctx, db.embedder, "dimension sample")
		if err != nil {
			return 0, err
		}
		db.dims = len(v)
	}
	return db.dims, nil
}

// Create provisions the FT index. Idempotent.
func (db *DB) Create(ctx context.Context) error {
	def, err := db.index(ctx)
	if err != nil {
		if domain.KindOf(err) != nil {
			return err
		}
		return domain.OperationFailed("build index", err)
	}
	if err := db.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, store.ErrIndexExists) {
		return classify("create collection", err)
	}
	db.logger.Debug("Collection created", zap.Stringer("index", def))
	return nil
}

var errNoCollection = domain.OperationFailed("collection does not exist", nil)

func (db *DB) ready(ctx context.Context) error {
	ok, err := db.store.IndexExists(ctx, db.indexName())
	if err != nil {
		return classify("check collection", err)
	}
	if ok {
		return nil
	}
	if db.autoCreate {
		return db.Create(ctx)
	}
	return errNoCollection
}

// DocExists matches by id when set, otherwise by content hash.
func (db *DB) DocExists(ctx context.Context, doc document.Document) (bool, error) {
	if _, ok := doc.ID(); ok {
		return db.keyExists(ctx, doc.Identity())
	}
	return db.count(ctx, store.TagFilter(fieldContentHash, doc.ContentHash()))
}

// NameExists checks for any stored document with the given name.
func (db *DB) NameExists(ctx context.Context, name string) (bool, error) {
	if name == "" {
		if err := db.ready(ctx); err != nil {
			return false, err
		}
		return false, nil
	}
	return db.count(ctx, store.TagFilter(fieldName, name))
}

// IDExists checks for a stored document with the given id.
func (db *DB) IDExists(ctx context.Context, id string) (bool, error) {
	return db.keyExists(ctx, document.IDIdentity(id))
}

func (db *DB) keyExists(ctx context.Context, identity string) (bool, error) {
	if err := db.ready(ctx); err != nil {
		return false, err
	}
	ok, err := db.store.Exists(ctx, db.key(identity))
	if err != nil {
		return false, classify("exists", err)
	}
	return ok, nil
}

func (db *DB) count(ctx context.Context, query string) (bool, error) {
	if err := db.ready(ctx); err != nil {
		return false, err
	}
	n, err := db.store.SearchCount(ctx, db.indexName(), query)
	if err != nil {
		return false, classify("exists", err)
	}
	return n > 0, nil
}

// Insert adds documents after an EXISTS pre-check. Any stored identity fails
// the whole batch before anything is written.
func (db *DB) Insert(ctx context.Context, docs []document.Document, filters filter.Filters) error {
	return db.write(ctx, docs, filters, false)
}

// UpsertAvailable reports true.
func (db *DB) UpsertAvailable() bool { return true }

// Upsert replaces documents by identity.
func (db *DB) Upsert(ctx context.Context, docs []document.Document, filters filter.Filters) error {
	return db.write(ctx, docs, filters, true)
}

func (db *DB) write(ctx context.Context, docs []document.Document, filters filter.Filters, upsert bool) error {
	identities, err := vectordb.CheckBatch(docs)
	if err != nil {
		return err
	}
	if err := db.ready(ctx); err != nil {
		return err
	}

	keys := make([]string, len(identities))
	for i, id := range identities {
		keys[i] = db.key(id)
	}
	// Fails fast before embedding; HSetNew rechecks under WATCH.
	if !upsert && len(keys) > 0 {
		found, err := db.store.ExistsMulti(ctx, keys)
		if err != nil {
			return classify("check conflict", err)
		}
		for i, ok := range found {
			if ok {
				return vectordb.ConflictError(identities[i])
			}
		}
	}

	stored := vectordb.PrepareDocuments(docs, filters)
	var vectors [][]float32
	if db.embedder != nil && len(stored) > 0 {
		if vectors, err = vectordb.EmbedDocuments(ctx, db.embedder, stored); err != nil {
			return err
		}
	}

	items := make([]store.HashSetItem, len(stored))
	for i, doc := range stored {
		var v []float32
		if vectors != nil {
			v = vectors[i]
		}
		fields, err := db.encode(doc, identities[i], v)
		if err != nil {
			return err
		}
		items[i] = store.HashSetItem{Key: keys[i], Fields: fields, Replace: upsert}
	}

	if err := ctx.Err(); err != nil {
		return domain.OperationFailed("write", err)
	}
	if upsert {
		err = db.store.HSetMulti(ctx, items)
	} else {
		err = db.store.HSetNew(ctx, items)
	}
	if err != nil {
		return writeError(err, keys, identities)
	}
	db.logger.Debug("Documents written",
		zap.String("index", db.indexName()),
		zap.Int("count", len(items)),
		zap.Bool("upsert", upsert),
	)
	return nil
}

// DBExists reports whether the FT index exists.
func (db *DB) DBExists(ctx context.Context) (bool, error) {
	ok, err := db.store.IndexExists(ctx, db.indexName())
	if err != nil {
		return false, classify("check collection", err)
	}
	return ok, nil
}

// Optimize is a no-op: FT indexes are maintained on write.
func (db *DB) Optimize(context.Context) error { return nil }

// DropDB drops the index together with its hashes. Idempotent.
func (db *DB) DropDB(ctx context.Context) error {
	err := db.store.DropIndex(ctx, db.indexName(), true)
	if err != nil && !errors.Is(err, store.ErrIndexNotFound) {
		return classify("drop collection", err)
	}
	return nil
}

// Delete drops the collection and reports whether it existed.
func (db *DB) Delete(ctx context.Context) (bool, error) {
	existed, err := db.DBExists(ctx)
	if err != nil {
		return false, err
	}
	if err := db.DropDB(ctx); err != nil {
		return false, err
	}
	return existed, nil
}
