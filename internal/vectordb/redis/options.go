package redis

import (
	"go.uber.org/zap"

	"github.com/kailas-cloud/kbase/internal/domain"
	"github.com/kailas-cloud/kbase/internal/domain/search/mode"
)

// DefaultPrefix namespaces keys and index names.
const DefaultPrefix = "kbase:"

// Option configures a DB.
type Option func(*DB)

// WithEmbedder enables vector search, and hybrid search on servers with
// text search.
func WithEmbedder(e domain.Embedder) Option {
	return func(db *DB) { db.embedder = e }
}

// WithDimensions fixes the vector field size. Without it Create embeds a
// sample string once to learn the size.
func WithDimensions(n int) Option {
	return func(db *DB) { db.dims = n }
}

// WithFilterFields declares metadata keys indexed as TAG fields. Only these
// keys can be used in search filters.
func WithFilterFields(keys ...string) Option {
	return func(db *DB) {
		for _, k := range keys {
			db.filterFields[k] = struct{}{}
		}
	}
}

// WithPrefix replaces DefaultPrefix.
func WithPrefix(p string) Option {
	return func(db *DB) { db.prefix = p }
}

// WithDefaultMode sets the mode Search dispatches to.
func WithDefaultMode(m mode.Mode) Option {
	return func(db *DB) { db.defaultMode = m }
}

// WithAutoCreate creates the index on first use.
func WithAutoCreate() Option {
	return func(db *DB) { db.autoCreate = true }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(db *DB) { db.logger = l }
}
