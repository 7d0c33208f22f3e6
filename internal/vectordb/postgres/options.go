package postgres

import (
	"go.uber.org/zap"

	"github.com/kailas-cloud/kbase/internal/domain"
	"github.com/kailas-cloud/kbase/internal/domain/search/mode"
)

// Option configures a DB.
type Option func(*DB)

// WithEmbedder enables vector and hybrid search.
func WithEmbedder(e domain.Embedder) Option {
	return func(db *DB) { db.embedder = e }
}

// WithDimensions fixes the embedding column size and enables the HNSW index.
func WithDimensions(n int) Option {
	return func(db *DB) { db.dims = n }
}

// WithDefaultMode sets the mode Search dispatches to.
func WithDefaultMode(m mode.Mode) Option {
	return func(db *DB) { db.defaultMode = m }
}

// WithAutoCreate creates the table on first use.
func WithAutoCreate() Option {
	return func(db *DB) { db.autoCreate = true }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(db *DB) { db.logger = l }
}
