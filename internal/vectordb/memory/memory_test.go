package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kailas-cloud/kbase/internal/domain"
	"github.com/kailas-cloud/kbase/internal/domain/document"
	"github.com/kailas-cloud/kbase/internal/domain/search/filter"
	"github.com/kailas-cloud/kbase/internal/domain/search/mode"
	"github.com/kailas-cloud/kbase/internal/embedding/hashing"
	"github.com/kailas-cloud/kbase/internal/vectordb"
	"github.com/kailas-cloud/kbase/internal/vectordb/vectordbtest"
)

func TestConformance(t *testing.T) {
	configs := map[string][]Option{
		"keyword only":   nil,
		"with embedder":  {WithEmbedder(hashing.New(128))},
		"without upsert": {WithUpsert(false)},
		"vector default": {WithEmbedder(hashing.New(64)), WithDefaultMode(mode.Vector)},
	}
	for name, opts := range configs {
		t.Run(name, func(t *testing.T) {
			vectordbtest.Run(t, func(*testing.T) vectordb.VectorDB { return New(opts...) })
		})
	}
}

func TestConformance_Instrumented(t *testing.T) {
	vectordbtest.Run(t, func(*testing.T) vectordb.VectorDB {
		return vectordb.NewInstrumented(New(WithEmbedder(hashing.New(64))), "memory", nil)
	})
}

func TestState(t *testing.T) {
	ctx := context.Background()
	db := New()

	steps := []struct {
		name string
		fn   func() error
		want vectordb.State
	}{
		{"new", func() error { return nil }, vectordb.Uninitialized},
		{"create", func() error { return db.Create(ctx) }, vectordb.Created},
		{"optimize empty", func() error { return db.Optimize(ctx) }, vectordb.Created},
		{"insert", func() error {
			return db.Insert(ctx, []document.Document{document.New("x")}, nil)
		}, vectordb.Populated},
		{"optimize", func() error { return db.Optimize(ctx) }, vectordb.Optimized},
		{"insert again", func() error {
			return db.Insert(ctx, []document.Document{document.New("y")}, nil)
		}, vectordb.Populated},
		{"drop", func() error { return db.DropDB(ctx) }, vectordb.Dropped},
		{"recreate", func() error { return db.Create(ctx) }, vectordb.Created},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			t.Fatalf("%s: %v", s.name, err)
		}
		if got := db.State(); got != s.want {
			t.Fatalf("%s: state = %s, want %s", s.name, got, s.want)
		}
	}
	if db.Len() != 0 {
		t.Errorf("Len() = %d after recreate", db.Len())
	}
}

func TestAutoCreate(t *testing.T) {
	db := New(WithAutoCreate())

	ok, err := db.NameExists(context.Background(), "x")
	if err != nil || ok {
		t.Fatalf("NameExists = %v, %v", ok, err)
	}
	if db.State() != vectordb.Created {
		t.Errorf("State() = %s, want created", db.State())
	}
}

func TestInsert_WithoutCollection(t *testing.T) {
	db := New()
	err := db.Insert(context.Background(), []document.Document{document.New("x")}, nil)
	if !errors.Is(err, domain.ErrOperationFailed) {
		t.Fatalf("expected ErrOperationFailed, got %v", err)
	}
}

func TestKeywordSearch_BM25Ranking(t *testing.T) {
	ctx := context.Background()
	db := New()
	_ = db.Create(ctx)
	docs := []document.Document{
		document.New("the cat sat on the mat", document.WithID("1")),
		document.New("rust ownership and borrowing", document.WithID("2")),
		document.New("rust rust rust async runtime", document.WithID("3")),
	}
	if err := db.Insert(ctx, docs, nil); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := db.KeywordSearch(ctx, "rust", 10, nil)
	if err != nil {
		t.Fatalf("KeywordSearch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (non-matching documents excluded)", len(got))
	}
	if id, _ := got[0].ID(); id != "3" {
		t.Errorf("top result = %s, want 3", id)
	}
}

func TestVectorSearch_NoEmbedder(t *testing.T) {
	db := New()
	_ = db.Create(context.Background())

	for name, fn := range map[string]func() error{
		"vector": func() error {
			_, err := db.VectorSearch(context.Background(), "q", 1, nil)
			return err
		},
		"hybrid": func() error {
			_, err := db.HybridSearch(context.Background(), "q", 1, nil)
			return err
		},
	} {
		if err := fn(); !errors.Is(err, domain.ErrNotImplemented) {
			t.Errorf("%s: expected ErrNotImplemented, got %v", name, err)
		}
	}
}

func TestVectorSearch_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	db := New(WithEmbedder(hashing.New(16)))
	_ = db.Create(ctx)
	if err := db.Insert(ctx, []document.Document{document.New("alpha")}, nil); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	db.embedder = hashing.New(32)

	_, err := db.VectorSearch(ctx, "alpha", 1, nil)
	if !errors.Is(err, domain.ErrOperationFailed) {
		t.Fatalf("expected ErrOperationFailed, got %v", err)
	}
}

func TestInsert_RecordsUsage(t *testing.T) {
	ctx, usage := domain.NewContextWithUsage(context.Background())
	db := New(WithEmbedder(hashing.New(16)))
	_ = db.Create(ctx)

	if err := db.Insert(ctx, []document.Document{document.New("three word text", document.WithID("u"))}, nil); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if usage.TotalTokens != 3 {
		t.Errorf("TotalTokens = %d, want 3", usage.TotalTokens)
	}

	got, err := db.VectorSearch(context.Background(), "three word text", 1, nil)
	if err != nil || len(got) != 1 {
		t.Fatalf("VectorSearch = %d, %v", len(got), err)
	}
	u, ok := got[0].Usage()
	if !ok || u[vectordb.UsageTotalTokens] != 3 {
		t.Errorf("Usage() = %v, %v", u, ok)
	}
}

func TestInsert_StampsFilters(t *testing.T) {
	ctx := context.Background()
	db := New()
	_ = db.Create(ctx)

	doc := document.New("scoped text")
	doc.SetMetaValue("source", "unit")
	if err := db.Insert(ctx, []document.Document{doc}, filter.Filters{"tenant": "t1"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, _ := db.KeywordSearch(ctx, "scoped", 1, filter.Filters{"tenant": "t1"})
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	meta := got[0].MetaData()
	if meta["tenant"] != "t1" || meta["source"] != "unit" {
		t.Errorf("MetaData() = %v", meta)
	}
	if _, ok := doc.MetaValue("tenant"); ok {
		t.Error("Insert mutated the caller's document")
	}
}

func TestUpsert_KeepsPosition(t *testing.T) {
	ctx := context.Background()
	db := New()
	_ = db.Create(ctx)
	_ = db.Insert(ctx, []document.Document{
		document.New("alpha one", document.WithID("a")),
		document.New("alpha two", document.WithID("b")),
	}, nil)

	if err := db.Upsert(ctx, []document.Document{document.New("alpha two", document.WithID("a"))}, nil); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if db.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", db.Len())
	}

	got, _ := db.KeywordSearch(ctx, "two", 10, nil)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	// equal scores keep insertion order
	if id, _ := got[0].ID(); id != "a" {
		t.Errorf("first = %s, want a", id)
	}
}

func TestHybridSearch_FusedScores(t *testing.T) {
	ctx := context.Background()
	db := New(WithEmbedder(hashing.New(128)))
	_ = db.Create(ctx)
	_ = db.Insert(ctx, []document.Document{
		document.New("postgres replication slots", document.WithID("pg")),
		document.New("redis streams consumer groups", document.WithID("rd")),
	}, nil)

	got, err := db.HybridSearch(ctx, "redis streams", 2, nil)
	if err != nil {
		t.Fatalf("HybridSearch: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("no results")
	}
	if id, _ := got[0].ID(); id != "rd" {
		t.Errorf("top = %s, want rd", id)
	}
	if s, _ := got[0].RerankingScore(); s <= 0 || s > 2.0/61 {
		t.Errorf("fused score = %v", s)
	}
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	db := New(WithEmbedder(hashing.New(32)))
	_ = db.Create(ctx)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			doc := document.New("concurrent text", document.WithID(string(rune('a'+i))))
			if err := db.Insert(ctx, []document.Document{doc}, nil); err != nil {
				t.Errorf("Insert: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := db.Search(ctx, "concurrent", 3, nil); err != nil {
				t.Errorf("Search: %v", err)
			}
		}()
	}
	wg.Wait()

	if db.Len() != 8 {
		t.Errorf("Len() = %d, want 8", db.Len())
	}
}
