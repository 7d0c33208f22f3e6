package kbase

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kbase/internal/config"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	backend   config.BackendConfig
	embedding config.EmbeddingConfig

	embedder         Embedder
	logger           *zap.Logger
	metricsReg       prometheus.Registerer
	readinessTimeout time.Duration
}

// WithMemory keeps documents in process memory. This is the default.
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.backend.Driver = config.DriverMemory
	})
}

// WithSQLite stores documents in a SQLite file. ":memory:" keeps the
// database in memory.
func WithSQLite(dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.backend.Driver = config.DriverSQLite
		c.backend.DSN = dsn
	})
}

// WithPostgres stores documents in PostgreSQL with pgvector.
func WithPostgres(dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.backend.Driver = config.DriverPostgres
		c.backend.DSN = dsn
	})
}

// WithRedis stores documents in Redis with the search module.
func WithRedis(addrs ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.backend.Driver = config.DriverRedis
		c.backend.Addrs = addrs
	})
}

// WithValkey stores documents in Valkey with valkey-search.
func WithValkey(addrs ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.backend.Driver = config.DriverValkey
		c.backend.Addrs = addrs
	})
}

// WithCredentials sets the Redis/Valkey ACL user and password.
func WithCredentials(username, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.backend.Username = username
		c.backend.Password = password
	})
}

// WithCollection names the collection (table, index) documents live in.
// Defaults to "documents".
func WithCollection(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.backend.Collection = name
	})
}

// WithDefaultMode sets the mode Search runs. Backends pick their own
// when unset.
func WithDefaultMode(m Mode) Option {
	return optionFunc(func(c *clientConfig) {
		c.backend.DefaultMode = string(m)
	})
}

// WithAutoCreate creates the collection on first write.
func WithAutoCreate() Option {
	return optionFunc(func(c *clientConfig) {
		c.backend.AutoCreate = true
	})
}

// WithEmbedder sets the embedding provider. Without one only keyword search
// is available.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithHashingEmbedder uses the built-in feature hashing embedder. It needs
// no network and suits tests and small corpora.
func WithHashingEmbedder(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedding.Provider = config.ProviderHashing
		c.embedding.Dimensions = dim
	})
}

// WithVectorDimensions overrides the vector width the backend provisions.
// Defaults to the embedder's.
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.backend.Dimensions = dim
	})
}

// WithLogger enables structured logging. Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}

// WithReadinessTimeout bounds how long New waits for the backend.
// Default: 10s.
func WithReadinessTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.readinessTimeout = d
	})
}

// toConfig turns the options into the service configuration.
func (c *clientConfig) toConfig() (config.Config, error) {
	cfg := config.Config{Backend: c.backend, Embedding: c.embedding}
	if c.readinessTimeout > 0 {
		cfg.Backend.ReadinessTimeout = int(c.readinessTimeout.Round(time.Second) / time.Second)
	}
	cfg.ApplyDefaults()
	if c.embedder != nil {
		// an explicit embedder replaces the configured provider
		cfg.Embedding.Provider = config.ProviderNone
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
