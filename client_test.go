package kbase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/kbase/internal/config"
	"github.com/kailas-cloud/kbase/internal/embedding/hashing"
)

func newMemoryClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	c, err := New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func sampleKB() *KnowledgeBase {
	return NewKnowledgeBase(
		NewDocument("Goroutines are lightweight threads managed by the Go runtime.", WithID("go-1")),
		NewDocument("Channels connect concurrent goroutines.", WithID("go-2")),
		NewDocument("Sourdough needs a mature starter and patience.", WithID("bread-1")),
	)
}

func TestNew_DefaultsToMemory(t *testing.T) {
	c := newMemoryClient(t)

	if c.Driver() != config.DriverMemory {
		t.Errorf("Driver() = %q, want memory", c.Driver())
	}
	if c.Embedder() != nil {
		t.Error("expected no embedder by default")
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"postgres without dsn", []Option{WithPostgres("")}},
		{"redis without addrs", []Option{WithRedis()}},
		{"unknown mode", []Option{WithDefaultMode(Mode("fuzzy"))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestClientOptions(t *testing.T) {
	cfg := &clientConfig{}
	for _, o := range []Option{
		WithValkey("localhost:6379", "localhost:6380"),
		WithCredentials("kb", "secret"),
		WithCollection("notes"),
		WithDefaultMode(ModeVector),
		WithAutoCreate(),
		WithVectorDimensions(768),
		WithReadinessTimeout(3 * time.Second),
	} {
		o.apply(cfg)
	}

	if cfg.backend.Driver != config.DriverValkey {
		t.Errorf("driver = %q, want valkey", cfg.backend.Driver)
	}
	if len(cfg.backend.Addrs) != 2 || cfg.backend.Addrs[1] != "localhost:6380" {
		t.Errorf("addrs = %v", cfg.backend.Addrs)
	}
	if cfg.backend.Username != "kb" || cfg.backend.Password != "secret" {
		t.Errorf("credentials = (%q, %q)", cfg.backend.Username, cfg.backend.Password)
	}
	if cfg.backend.Collection != "notes" || cfg.backend.DefaultMode != "vector" || !cfg.backend.AutoCreate {
		t.Errorf("backend = %+v", cfg.backend)
	}

	svc, err := cfg.toConfig()
	if err != nil {
		t.Fatalf("toConfig: %v", err)
	}
	if svc.Backend.Dimensions != 768 {
		t.Errorf("dimensions = %d, want 768", svc.Backend.Dimensions)
	}
	if svc.Backend.ReadinessTimeout != 3 {
		t.Errorf("readiness = %d, want 3", svc.Backend.ReadinessTimeout)
	}
}

func TestClientOptions_ExplicitEmbedderWins(t *testing.T) {
	cfg := &clientConfig{}
	WithHashingEmbedder(64).apply(cfg)
	WithEmbedder(hashing.New(32)).apply(cfg)

	svc, err := cfg.toConfig()
	if err != nil {
		t.Fatalf("toConfig: %v", err)
	}
	if svc.Embedding.Provider != config.ProviderNone {
		t.Errorf("provider = %q, want none", svc.Embedding.Provider)
	}
}

func TestClient_LoadAndQuery(t *testing.T) {
	ctx := context.Background()
	c := newMemoryClient(t, WithHashingEmbedder(64))

	report, err := c.Load(ctx, sampleKB(), LoadOptions{Filters: Filters{"source": "sdk"}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if report.Inserted != 3 {
		t.Errorf("Inserted = %d, want 3", report.Inserted)
	}

	res, err := c.Query(ctx, "goroutines", &SearchOptions{Mode: ModeKeyword, Limit: 2})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res.Len() == 0 {
		t.Fatal("expected keyword hits")
	}
	for _, doc := range res.Documents() {
		if v, _ := doc.MetaValue("source"); v != "sdk" {
			t.Errorf("source = %v, want sdk", v)
		}
		if id, _ := doc.ID(); id == "bread-1" {
			t.Error("unrelated document matched")
		}
	}
}

func TestClient_QueryCountsTokens(t *testing.T) {
	c := newMemoryClient(t, WithHashingEmbedder(64))
	if _, err := c.Load(context.Background(), sampleKB(), LoadOptions{}); err != nil {
		t.Fatalf("Load: %v", err)
	}

	ctx, total := Usage(context.Background())
	res, err := c.Query(ctx, "lightweight threads", &SearchOptions{Mode: ModeVector})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res.TotalTokens() != 2 {
		t.Errorf("TotalTokens() = %d, want 2", res.TotalTokens())
	}
	if total() != 2 {
		t.Errorf("usage total = %d, want 2", total())
	}
}

func TestClient_QueryErrors(t *testing.T) {
	ctx := context.Background()
	c := newMemoryClient(t)
	if err := c.Create(ctx); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := c.Query(ctx, "", nil); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("empty query: err = %v, want ErrInvalidRequest", err)
	}
	if _, err := c.Query(ctx, "threads", &SearchOptions{Mode: ModeVector}); !errors.Is(err, ErrNotImplemented) {
		t.Errorf("vector without embedder: err = %v, want ErrNotImplemented", err)
	}
}

func TestClient_ContractPassThrough(t *testing.T) {
	ctx := context.Background()
	c := newMemoryClient(t, WithCollection("notes"))

	if exists, err := c.DBExists(ctx); err != nil || exists {
		t.Fatalf("DBExists before create = (%v, %v)", exists, err)
	}
	if err := c.Create(ctx); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := c.Insert(ctx, []Document{NewDocument("hello", WithName("greeting"))}, nil); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if ok, err := c.NameExists(ctx, "greeting"); err != nil || !ok {
		t.Errorf("NameExists = (%v, %v), want true", ok, err)
	}
	existed, err := c.Delete(ctx)
	if err != nil || !existed {
		t.Errorf("Delete = (%v, %v), want true", existed, err)
	}
}

func TestClient_Close_NilBackend(t *testing.T) {
	c := &Client{}
	c.Close()
}
