// Package sqlite stores documents in an embedded SQLite database: one table
// per collection plus an FTS5 mirror for BM25 keyword search. Embeddings are
// little-endian float32 BLOBs ranked with the vec_cosine SQL function.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/viant/sqlite-vec/engine"
	"github.com/viant/sqlite-vec/vector"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kbase/internal/domain"
	"github.com/kailas-cloud/kbase/internal/domain/document"
	"github.com/kailas-cloud/kbase/internal/domain/search/filter"
	"github.com/kailas-cloud/kbase/internal/domain/search/mode"
	"github.com/kailas-cloud/kbase/internal/vectordb"
)

// DB is a SQLite-backed VectorDB.
type DB struct {
	conn  *sql.DB
	table string

	embedder    domain.Embedder
	defaultMode mode.Mode
	autoCreate  bool
	logger      *zap.Logger
}

var _ vectordb.VectorDB = (*DB)(nil)

// Open opens dsn (a file path or ":memory:") and binds the store to the
// collection table.
func Open(dsn, collection string, opts ...Option) (*DB, error) {
	if !tableName.MatchString(collection) {
		return nil, domain.OperationFailed(fmt.Sprintf("invalid collection name %q", collection), nil)
	}
	// registration is global and must precede the first connection
	if err := engine.RegisterVectorFunctions(nil); err != nil {
		return nil, domain.ConnectionError("register vector functions", err)
	}
	conn, err := engine.Open(dsn)
	if err != nil {
		return nil, domain.ConnectionError("open sqlite", err)
	}
	// one connection serializes writers and keeps ":memory:" databases shared
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, classify("ping sqlite", err)
	}

	db := &DB{conn: conn, table: collection, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// Close releases the database handle.
func (db *DB) Close() error { return db.conn.Close() }

var errNoCollection = domain.OperationFailed("collection does not exist", nil)

// ready verifies the collection exists, creating it when auto-create is on.
func (db *DB) ready(ctx context.Context) error {
	ok, err := db.tableExists(ctx)
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

// Create provisions the tables. Idempotent.
func (db *DB) Create(ctx context.Context) error {
	if err := db.createSchema(ctx); err != nil {
		return classify("create collection", err)
	}
	return nil
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
	var one int
	err := db.conn.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT 1 FROM %s WHERE %s = ? LIMIT 1`, db.table, column), value,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, classify("exists "+column, err)
	}
	return true, nil
}

// Insert adds documents in one transaction, failing on any identity conflict.
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
	key   string
	doc   document.Document
	meta  string
	usage sql.NullString
	blob  []byte
}

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

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if !upsert {
		for _, r := range rows {
			var one int
			err := tx.QueryRowContext(ctx,
				fmt.Sprintf(`SELECT 1 FROM %s WHERE identity = ?`, db.table), r.key,
			).Scan(&one)
			if err == nil {
				return vectordb.ConflictError(r.key)
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return classify("check conflict", err)
			}
		}
	}

	upsertSQL := fmt.Sprintf(`INSERT INTO %s (identity, doc_id, name, content, content_hash, meta_data, usage, embedding)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(identity) DO UPDATE SET
	doc_id = excluded.doc_id,
	name = excluded.name,
	content = excluded.content,
	content_hash = excluded.content_hash,
	meta_data = excluded.meta_data,
	usage = excluded.usage,
	embedding = excluded.embedding`, db.table)
	ftsDelete := fmt.Sprintf(`DELETE FROM %s_fts WHERE identity = ?`, db.table)
	ftsInsert := fmt.Sprintf(`INSERT INTO %s_fts (content, identity) VALUES (?, ?)`, db.table)

	for _, r := range rows {
		id, hasID := r.doc.ID()
		name, hasName := r.doc.Name()
		_, err := tx.ExecContext(ctx, upsertSQL,
			r.key, nullable(id, hasID), nullable(name, hasName), r.doc.Content(),
			r.doc.ContentHash(), r.meta, r.usage, r.blob)
		if err != nil {
			return classify("write document", err)
		}
		if _, err := tx.ExecContext(ctx, ftsDelete, r.key); err != nil {
			return classify("write fts", err)
		}
		if _, err := tx.ExecContext(ctx, ftsInsert, r.doc.Content(), r.key); err != nil {
			return classify("write fts", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return domain.OperationFailed("write", err)
	}
	if err := tx.Commit(); err != nil {
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
			r.usage = sql.NullString{String: string(b), Valid: true}
		}
		if vectors != nil && nonZero(vectors[i]) {
			blob, err := vector.EncodeEmbedding(vectors[i])
			if err != nil {
				return nil, domain.OperationFailed("encode embedding", err)
			}
			r.blob = blob
		}
		rows[i] = r
	}
	return rows, nil
}

// DBExists reports whether the collection table exists.
func (db *DB) DBExists(ctx context.Context) (bool, error) {
	ok, err := db.tableExists(ctx)
	if err != nil {
		return false, classify("check collection", err)
	}
	return ok, nil
}

// Optimize merges FTS segments and refreshes planner statistics.
func (db *DB) Optimize(ctx context.Context) error {
	ok, err := db.tableExists(ctx)
	if err != nil {
		return classify("check collection", err)
	}
	if !ok {
		return nil
	}
	stmt := fmt.Sprintf(`INSERT INTO %[1]s_fts(%[1]s_fts) VALUES('optimize'); ANALYZE %[1]s;`, db.table)
	if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
		return classify("optimize", err)
	}
	return nil
}

// DropDB drops the collection tables. Idempotent.
func (db *DB) DropDB(ctx context.Context) error {
	if err := db.dropSchema(ctx); err != nil {
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

func nullable(s string, valid bool) sql.NullString {
	return sql.NullString{String: s, Valid: valid}
}

func nonZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return true
		}
	}
	return false
}

// ftsQuery turns free text into an FTS5 OR query of quoted terms.
func ftsQuery(tokens []string) string {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}
