// Package factory builds the configured VectorDB and embedder.
package factory

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/kbase/internal/config"
	redisstore "github.com/kailas-cloud/kbase/internal/db/redis"
	"github.com/kailas-cloud/kbase/internal/domain"
	"github.com/kailas-cloud/kbase/internal/domain/search/mode"
	"github.com/kailas-cloud/kbase/internal/embedding/hashing"
	"github.com/kailas-cloud/kbase/internal/metrics"
	"github.com/kailas-cloud/kbase/internal/repository/embcache"
	"github.com/kailas-cloud/kbase/internal/transport/ollama"
	"github.com/kailas-cloud/kbase/internal/transport/openai"
	"github.com/kailas-cloud/kbase/internal/usecase/embedding"
	"github.com/kailas-cloud/kbase/internal/vectordb"
	"github.com/kailas-cloud/kbase/internal/vectordb/memory"
	"github.com/kailas-cloud/kbase/internal/vectordb/postgres"
	"github.com/kailas-cloud/kbase/internal/vectordb/redis"
	"github.com/kailas-cloud/kbase/internal/vectordb/sqlite"
)

// Backend is a built VectorDB plus the resources behind it.
type Backend struct {
	DB       *vectordb.Instrumented
	Embedder domain.Embedder // nil without an embedding provider
	Driver   string

	ping    func(ctx context.Context) error
	closers []func()
}

// Ping checks backend connectivity. In-process backends always succeed.
func (b *Backend) Ping(ctx context.Context) error {
	if b.ping == nil {
		return nil
	}
	return b.ping(ctx)
}

// Close releases connections in reverse order of acquisition.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// New builds the backend named by cfg.Backend.Driver. An explicit embedder
// overrides cfg.Embedding.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, emb domain.Embedder) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	bc := cfg.Backend
	b := &Backend{Driver: bc.Driver}

	defaultMode, err := mode.Parse(bc.DefaultMode)
	if err != nil {
		return nil, domain.OperationFailed("backend.default_mode", err)
	}

	// the redis store serves both the backend and the embedding cache
	var kv *redisstore.Store
	if bc.Driver == config.DriverRedis || bc.Driver == config.DriverValkey {
		kv, err = redisstore.NewStore(redisstore.Config{
			Addrs:      bc.Addrs,
			Username:   bc.Username,
			Password:   bc.Password,
			TextSearch: bc.Driver == config.DriverRedis,
		})
		if err != nil {
			return nil, domain.ConnectionError("connect "+bc.Driver, err)
		}
		b.closers = append(b.closers, kv.Close)
		timeout := time.Duration(bc.ReadinessTimeout) * time.Second
		if err := kv.WaitForReady(ctx, timeout); err != nil {
			b.Close()
			return nil, domain.ConnectionError(bc.Driver+" not ready", err)
		}
	}

	if emb == nil {
		emb, err = NewEmbedder(cfg.Embedding, kv, logger)
		if err != nil {
			b.Close()
			return nil, err
		}
	}
	b.Embedder = emb

	inner, err := b.open(ctx, cfg, kv, emb, defaultMode, logger)
	if err != nil {
		b.Close()
		return nil, err
	}

	metrics.RegisterVectorDBMetrics()
	b.DB = vectordb.NewInstrumented(inner, bc.Driver, logger)

	logger.Info("Vector store ready",
		zap.String("driver", bc.Driver),
		zap.String("collection", bc.Collection),
		zap.Bool("embedder", emb != nil),
	)
	return b, nil
}

func (b *Backend) open(
	ctx context.Context, cfg config.Config, kv *redisstore.Store,
	emb domain.Embedder, defaultMode mode.Mode, logger *zap.Logger,
) (vectordb.VectorDB, error) {
	bc := cfg.Backend
	named := logger.Named(bc.Driver)

	switch bc.Driver {
	case config.DriverMemory:
		opts := []memory.Option{memory.WithLogger(named), memory.WithDefaultMode(defaultMode)}
		if emb != nil {
			opts = append(opts, memory.WithEmbedder(emb))
		}
		if bc.Upsert != nil {
			opts = append(opts, memory.WithUpsert(*bc.Upsert))
		}
		if bc.AutoCreate {
			opts = append(opts, memory.WithAutoCreate())
		}
		return memory.New(opts...), nil

	case config.DriverSQLite:
		opts := []sqlite.Option{sqlite.WithLogger(named), sqlite.WithDefaultMode(defaultMode)}
		if emb != nil {
			opts = append(opts, sqlite.WithEmbedder(emb))
		}
		if bc.AutoCreate {
			opts = append(opts, sqlite.WithAutoCreate())
		}
		db, err := sqlite.Open(bc.DSN, bc.Collection, opts...)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = db.Close() })
		return db, nil

	case config.DriverPostgres:
		opts := []postgres.Option{
			postgres.WithLogger(named),
			postgres.WithDefaultMode(defaultMode),
			postgres.WithDimensions(bc.Dimensions),
		}
		if emb != nil {
			opts = append(opts, postgres.WithEmbedder(emb))
		}
		if bc.AutoCreate {
			opts = append(opts, postgres.WithAutoCreate())
		}
		db, err := postgres.Connect(ctx, bc.DSN, bc.Collection, opts...)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		b.ping = db.Ping
		return db, nil

	case config.DriverRedis, config.DriverValkey:
		opts := []redis.Option{
			redis.WithLogger(named),
			redis.WithPrefix(bc.KeyPrefix),
			redis.WithDimensions(bc.Dimensions),
			redis.WithFilterFields(bc.FilterFields...),
		}
		if emb != nil {
			opts = append(opts, redis.WithEmbedder(emb))
		}
		switch {
		case defaultMode != mode.Default:
			opts = append(opts, redis.WithDefaultMode(defaultMode))
		case bc.Driver == config.DriverValkey && emb != nil:
			opts = append(opts, redis.WithDefaultMode(mode.Vector))
		}
		if bc.AutoCreate {
			opts = append(opts, redis.WithAutoCreate())
		}
		db, err := redis.New(kv, bc.Collection, opts...)
		if err != nil {
			return nil, err
		}
		b.ping = db.Ping
		return db, nil
	}

	return nil, domain.OperationFailed(fmt.Sprintf("unknown backend driver %q", bc.Driver), nil)
}

// NewEmbedder builds the configured embedding provider wrapped in the
// instrumented decorator, and in the cache when enabled and kv is set.
// An empty provider returns nil.
func NewEmbedder(cfg config.EmbeddingConfig, kv *redisstore.Store, logger *zap.Logger) (domain.Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.RegisterEmbeddingMetrics()

	var inner domain.Embedder
	var opts []embedding.Option
	switch cfg.Provider {
	case config.ProviderNone:
		return nil, nil
	case config.ProviderHashing:
		inner = hashing.New(cfg.Dimensions)
	case config.ProviderOpenAI:
		inner = openai.NewEmbedder(&openai.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Logger:     logger,
		})
		// stays under the default tier's request rate
		opts = append(opts, embedding.WithLimiter(rate.NewLimiter(rate.Limit(50), 10)))
	case config.ProviderOllama:
		e, err := ollama.NewEmbedder(&ollama.Config{BaseURL: cfg.BaseURL, Model: cfg.Model, Logger: logger})
		if err != nil {
			return nil, domain.ConnectionError("ollama", err)
		}
		inner = e
		opts = append(opts, embedding.WithConcurrency(1))
	default:
		return nil, domain.OperationFailed(fmt.Sprintf("unknown embedding provider %q", cfg.Provider), nil)
	}

	if cfg.Cache.Enabled && kv != nil {
		inner = embcache.New(inner, kv, embcache.Config{
			Model: fmt.Sprintf("%s/%s/%d", cfg.Provider, cfg.Model, cfg.Dimensions),
			TTL:   time.Duration(cfg.Cache.TTLSec) * time.Second,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	return embedding.NewInstrumentedEmbedder(inner, cfg.Provider, cfg.Model, logger, opts...), nil
}
