package memory

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

// WithUpsert toggles upsert support. Enabled by default.
func WithUpsert(enabled bool) Option {
	return func(db *DB) { db.upsert = enabled }
}

// WithDefaultMode sets the mode Search dispatches to. Without it Search uses
// hybrid when an embedder is configured and keyword otherwise.
func WithDefaultMode(m mode.Mode) Option {
	return func(db *DB) { db.defaultMode = m }
}

// WithAutoCreate provisions the collection on first use instead of failing.
func WithAutoCreate() Option {
	return func(db *DB) { db.autoCreate = true }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(db *DB) { db.logger = l }
}
