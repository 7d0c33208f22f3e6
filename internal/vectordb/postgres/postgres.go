// Package postgres stores documents in PostgreSQL with pgvector for cosine
// similarity and a generated tsvector column for keyword ranking.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kbase/internal/domain"
	"github.com/kailas-cloud/kbase/internal/domain/document"
	"github.com/kailas-cloud/kbase/internal/domain/search/filter"
	"github.com/kailas-cloud/kbase/internal/domain/search/mode"
	"github.com/kailas-cloud/kbase/internal/vectordb"
)

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// DB is a PostgreSQL-backed VectorDB.
type DB struct {
	pool  *pgxpool.Pool
	table string
	owned bool

	embedder    domain.Embedder
	dims        int
	defaultMode mode.Mode
	autoCreate  bool
	logger      *zap.Logger
}

var _ vectordb.VectorDB = (*DB)(nil)

// Connect opens a pool for dsn and binds the store to the collection table.
func Connect(ctx context.Context, dsn, collection string, opts ...Option) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, domain.ConnectionError("connect postgres", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, classify("ping postgres", err)
	}
	db, err := New(pool, collection, opts...)
	if err != nil {
		pool.Close()
		return nil, err
	}
	db.owned = true
	return db, nil
}

// New binds the store to an existing pool. The caller keeps ownership.
func New(pool *pgxpool.Pool, collection string, opts ...Option) (*DB, error) {
	if !tableName.MatchString(collection) {
		return nil, domain.OperationFailed(fmt.Sprintf("invalid collection name %q", collection), nil)
	}
	db := &DB{pool: pool, table: collection, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// Close releases the pool when the store opened it.
func (db *DB) Close() {
	if db.owned {
		db.pool.Close()
	}
}

// Ping checks connectivity.
func (db *DB) Ping(ctx context.Context) error {
	return classify("ping postgres", db.pool.Ping(ctx))
}

func (db *DB) schema() []string {
	column := "vector"
	if db.dims > 0 {
		column = fmt.Sprintf("vector(%d)", db.dims)
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
	seq          BIGSERIAL,
	identity     TEXT PRIMARY KEY,
	doc_id       TEXT,
	name         TEXT,
	content      TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	meta_data    JSONB NOT NULL DEFAULT '{}',
	usage        JSONB,
	embedding    %[2]s,
	content_tsv  tsvector GENERATED ALWAYS AS (to_tsvector('simple', content)) STORED
)`, db.table, column),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_hash_idx ON %[1]s (content_hash)`, db.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_name_idx ON %[1]s (name)`, db.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_meta_idx ON %[1]s USING gin (meta_data jsonb_path_ops)`, db.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_tsv_idx ON %[1]s USING gin (content_tsv)`, db.table),
	}
	if db.dims > 0 {
		stmts = append(stmts, fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS %[1]s_embedding_idx ON %[1]s USING hnsw (embedding vector_cosine_ops)`,
			db.table))
	}
	return stmts
}

// Create provisions the extension, table and indexes. Idempotent.
func (db *DB) Create(ctx context.Context) error {
	for _, stmt := range db.schema() {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return classify("create collection", err)
		}
	}
	db.logger.Debug("Collection created", zap.String("table", db.table))
	return nil
}

func (db *DB) tableExists(ctx context.Context) (bool, error) {
	var ok bool
	err := db.pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, db.table).Scan(&ok)
	if err != nil {
		return false, classify("check collection", err)
	}
	return ok, nil
}

var errNoCollection = domain.OperationFailed("collection does not exist", nil)

func (db *DB) ready(ctx context.Context) error {
	ok, err := db.tableExists(ctx)
	if err != nil {
		return err
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
		return db.exists(ctx, "identity", doc.Identity())
	}
	return db.exists(ctx, "content_hash", doc.ContentHash())
}

// NameExists checks for any stored document with the given name.
func (db *DB) NameExists(ctx context.Context, name string) (bool, error) {
	return db.exists(ctx, "name", name)
}

// IDExists checks for a stored document with the given id.
func (db *DB) IDExists(ctx context.Context, id string) (bool, error) {
	return db.exists(ctx, "identity", document.IDIdentity(id))
}

func (db *DB) exists(ctx context.Context, column, value string) (bool, error) {
	if err := db.ready(ctx); err != nil {
		return false, err
	}
	var ok bool
	err := db.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1)`, db.table, column), value,
	).Scan(&ok)
	if err != nil {
		return false, classify("exists "+column, err)
	}
	return ok, nil
}

// Insert adds documents in one transaction. A stored identity or a unique
// violation fails the whole batch.
func (db *DB) Insert(ctx context.Context, docs []document.Document, filters filter.Filters) error {
	return db.write(ctx, docs, filters, false)
}

// UpsertAvailable reports true.
func (db *DB) UpsertAvailable() bool { return true }

// Upsert inserts or replaces documents by identity in one transaction.
func (db *DB) Upsert(ctx context.Context, docs []document.Document, filters filter.Filters) error {
	return db.write(ctx, docs, filters, true)
}

type row struct {
	key    string
	doc    document.Document
	meta   string
	usage  *string
	vector *pgvector.Vector
}

const insertSQL = `INSERT INTO %s (identity, doc_id, name, content, content_hash, meta_data, usage, embedding)
VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8::vector)`

const upsertSuffix = `
ON CONFLICT (identity) DO UPDATE SET
	doc_id = EXCLUDED.doc_id,
	name = EXCLUDED.name,
	content = EXCLUDED.content,
	content_hash = EXCLUDED.content_hash,
	meta_data = EXCLUDED.meta_data,
	usage = EXCLUDED.usage,
	embedding = EXCLUDED.embedding`

func (db *DB) write(ctx context.Context, docs []document.Document, filters filter.Filters, upsert bool) error {
	keys, err := vectordb.CheckBatch(docs)
	if err != nil {
		return err
	}
	if err := db.ready(ctx); err != nil {
		return err
	}
	rows, err := db.prepare(ctx, docs, keys, filters)
	if err != nil {
		return err
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return classify("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if !upsert {
		var taken string
		err := tx.QueryRow(ctx,
			fmt.Sprintf(`SELECT identity FROM %s WHERE identity = ANY($1) LIMIT 1`, db.table), keys,
		).Scan(&taken)
		if err == nil {
			return vectordb.ConflictError(taken)
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return classify("check conflict", err)
		}
	}

	stmt := fmt.Sprintf(insertSQL, db.table)
	if upsert {
		stmt += upsertSuffix
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		var id, name *string
		if v, ok := r.doc.ID(); ok {
			id = &v
		}
		if v, ok := r.doc.Name(); ok {
			name = &v
		}
		batch.Queue(stmt, r.key, id, name, r.doc.Content(), r.doc.ContentHash(), r.meta, r.usage, r.vector)
	}

	br := tx.SendBatch(ctx, batch)
	for range rows {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			if isUniqueViolation(err) {
				return domain.OperationFailed("document already exists", err)
			}
			return classify("write document", err)
		}
	}
	if err := br.Close(); err != nil {
		return classify("write documents", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classify("commit", err)
	}
	db.logger.Debug("Documents written",
		zap.String("table", db.table),
		zap.Int("count", len(rows)),
		zap.Bool("upsert", upsert),
	)
	return nil
}

func (db *DB) prepare(
	ctx context.Context, docs []document.Document, keys []string, filters filter.Filters,
) ([]row, error) {
	stored := vectordb.PrepareDocuments(docs, filters)

	var vectors [][]float32
	if db.embedder != nil && len(stored) > 0 {
		v, err := vectordb.EmbedDocuments(ctx, db.embedder, stored)
		if err != nil {
			return nil, err
		}
		vectors = v
	}

	rows := make([]row, len(stored))
	for i, doc := range stored {
		meta, err := doc.MetaDataJSON()
		if err != nil {
			return nil, domain.OperationFailed("encode meta_data", err)
		}
		r := row{key: keys[i], doc: doc, meta: meta}
		if u, ok := doc.Usage(); ok {
			b, err := json.Marshal(u)
			if err != nil {
				return nil, domain.OperationFailed("encode usage", err)
			}
			s := string(b)
			r.usage = &s
		}
		if vectors != nil && nonZero(vectors[i]) {
			v := pgvector.NewVector(vectors[i])
			r.vector = &v
		}
		rows[i] = r
	}
	return rows, nil
}

// DBExists reports whether the collection table exists.
func (db *DB) DBExists(ctx context.Context) (bool, error) {
	return db.tableExists(ctx)
}

// Optimize vacuums the table and refreshes planner statistics.
func (db *DB) Optimize(ctx context.Context) error {
	ok, err := db.tableExists(ctx)
	if err != nil || !ok {
		return err
	}
	if _, err := db.pool.Exec(ctx, fmt.Sprintf(`VACUUM (ANALYZE) %s`, db.table)); err != nil {
		return classify("optimize", err)
	}
	return nil
}

// DropDB drops the collection table. Idempotent.
func (db *DB) DropDB(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, db.table)); err != nil {
		return classify("drop collection", err)
	}
	return nil
}

// Delete drops the collection and reports whether it existed.
func (db *DB) Delete(ctx context.Context) (bool, error) {
	existed, err := db.tableExists(ctx)
	if err != nil {
		return false, err
	}
	if err := db.DropDB(ctx); err != nil {
		return false, err
	}
	return existed, nil
}

func nonZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return true
		}
	}
	return false
}
