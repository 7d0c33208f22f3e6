package kbase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/kbase/internal/domain"
	"github.com/kailas-cloud/kbase/internal/vectordb/factory"
	knowledgeuc "github.com/kailas-cloud/kbase/internal/usecase/knowledge"
)

const defaultReadinessTimeout = 10 * time.Second

// Client is the kbase SDK entry point. It is a VectorDB over the configured
// backend plus knowledge loading and search helpers.
type Client struct {
	VectorDB

	backend   *factory.Backend
	knowledge *knowledgeuc.Service
	obs       *observer
}

// New creates a Client and connects to the configured backend (in-memory
// by default).
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{readinessTimeout: defaultReadinessTimeout}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	svcCfg, err := cfg.toConfig()
	if err != nil {
		return nil, fmt.Errorf("kbase: %w", err)
	}
	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.readinessTimeout)
	defer cancel()
	backend, err := factory.New(ctx, svcCfg, cfg.logger, cfg.embedder)
	if err != nil {
		return nil, fmt.Errorf("kbase: %w", err)
	}

	return wireClient(backend, cfg.logger, obs), nil
}

func wireClient(backend *factory.Backend, logger *zap.Logger, obs *observer) *Client {
	return &Client{
		VectorDB:  backend.DB,
		backend:   backend,
		knowledge: knowledgeuc.New(backend.DB, logger),
		obs:       obs,
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.backend != nil {
		c.backend.Close()
	}
}

// Ping checks backend connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.backend.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Driver names the backend in use.
func (c *Client) Driver() string { return c.backend.Driver }

// Embedder returns the embedder documents are vectorized with, or nil.
func (c *Client) Embedder() Embedder { return c.backend.Embedder }

// Load writes kb into the collection, creating it first.
func (c *Client) Load(ctx context.Context, kb *KnowledgeBase, opts LoadOptions) (report LoadReport, err error) {
	defer func(start time.Time) { c.obs.observe("load", start, err) }(time.Now())

	report, err = c.knowledge.Load(ctx, kb, opts)
	if err != nil {
		return report, fmt.Errorf("load: %w", err)
	}
	return report, nil
}

// Usage returns a context that collects the embedding tokens spent by
// the calls made with it, and a function reading the running total.
func Usage(ctx context.Context) (context.Context, func() int) {
	ctx, usage := domain.NewContextWithUsage(ctx)
	return ctx, func() int { return usage.TotalTokens }
}
