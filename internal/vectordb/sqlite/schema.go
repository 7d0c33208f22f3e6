package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// One row per document keyed by identity; rowid keeps insertion order and
// survives ON CONFLICT updates. The FTS5 table mirrors content for BM25.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS %[1]s (
	identity     TEXT PRIMARY KEY,
	doc_id       TEXT,
	name         TEXT,
	content      TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	meta_data    TEXT NOT NULL,
	usage        TEXT,
	embedding    BLOB
);
CREATE INDEX IF NOT EXISTS %[1]s_hash_idx ON %[1]s(content_hash);
CREATE INDEX IF NOT EXISTS %[1]s_name_idx ON %[1]s(name);
CREATE VIRTUAL TABLE IF NOT EXISTS %[1]s_fts USING fts5(content, identity UNINDEXED);
`

func (db *DB) createSchema(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, fmt.Sprintf(schemaDDL, db.table))
	return err
}

func (db *DB) tableExists(ctx context.Context) (bool, error) {
	var name string
	err := db.conn.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, db.table,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (db *DB) dropSchema(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, fmt.Sprintf(
		`DROP TABLE IF EXISTS %[1]s_fts; DROP TABLE IF EXISTS %[1]s;`, db.table))
	return err
}
