// Package vectordbtest is the behavioral test suite every VectorDB backend
// must pass.
//
// Backends that index filters by declared field must declare the "tenant"
// field for Run.
package vectordbtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/kailas-cloud/kbase/internal/domain"
	"github.com/kailas-cloud/kbase/internal/domain/document"
	"github.com/kailas-cloud/kbase/internal/domain/search/filter"
	"github.com/kailas-cloud/kbase/internal/vectordb"
)

// Factory returns a fresh, uncreated store for one subtest.
type Factory func(t *testing.T) vectordb.VectorDB

type searchFunc func(ctx context.Context, query string, limit int, filters filter.Filters) ([]document.Document, error)

// Run executes the whole suite against stores built by newDB.
func Run(t *testing.T, newDB Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, db vectordb.VectorDB)
	}{
		{"Lifecycle", testLifecycle},
		{"ReadBeforeCreate", testReadBeforeCreate},
		{"Existence", testExistence},
		{"InsertConflict", testInsertConflict},
		{"InsertDuplicateInBatch", testInsertDuplicateInBatch},
		{"InsertCancelled", testInsertCancelled},
		{"Upsert", testUpsert},
		{"SearchBounds", testSearchBounds},
		{"SearchFilters", testSearchFilters},
		{"SearchReturnsStoredFields", testSearchReturnsStoredFields},
		{"ModesConsistent", testModesConsistent},
		{"Optimize", testOptimize},
		{"AsyncParity", testAsyncParity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newDB(t))
		})
	}
}

func ctx() context.Context { return context.Background() }

func mustCreate(t *testing.T, db vectordb.VectorDB) {
	t.Helper()
	if err := db.Create(ctx()); err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func mustInsert(t *testing.T, db vectordb.VectorDB, docs []document.Document, filters filter.Filters) {
	t.Helper()
	if err := db.Insert(ctx(), docs, filters); err != nil {
		t.Fatalf("Insert: %v", err)
	}
}

func wantKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("error = %v, want kind %v", err, kind)
	}
}

func corpus() []document.Document {
	return []document.Document{
		document.New("golang channels and goroutines for concurrency",
			document.WithID("go-1"), document.WithName("Concurrency")),
		document.New("golang interfaces and composition",
			document.WithID("go-2"), document.WithName("Interfaces")),
		document.New("golang error handling with wrapping",
			document.WithID("go-3"), document.WithName("Errors")),
		document.New("golang testing with table driven tests",
			document.WithID("go-4"), document.WithName("Testing")),
		document.New("golang modules and dependency management",
			document.WithID("go-5"), document.WithName("Modules")),
	}
}

func testLifecycle(t *testing.T, db vectordb.VectorDB) {
	if ok, err := db.DBExists(ctx()); err != nil || ok {
		t.Fatalf("DBExists before create = %v, %v", ok, err)
	}

	mustCreate(t, db)
	mustCreate(t, db)
	if ok, err := db.DBExists(ctx()); err != nil || !ok {
		t.Fatalf("DBExists after create = %v, %v", ok, err)
	}

	if err := db.DropDB(ctx()); err != nil {
		t.Fatalf("DropDB: %v", err)
	}
	if err := db.DropDB(ctx()); err != nil {
		t.Fatalf("second DropDB: %v", err)
	}
	if ok, err := db.DBExists(ctx()); err != nil || ok {
		t.Fatalf("DBExists after drop = %v, %v", ok, err)
	}
	if existed, err := db.Delete(ctx()); err != nil || existed {
		t.Fatalf("Delete after drop = %v, %v", existed, err)
	}

	mustCreate(t, db)
	mustInsert(t, db, corpus()[:1], nil)
	if existed, err := db.Delete(ctx()); err != nil || !existed {
		t.Fatalf("Delete after create = %v, %v", existed, err)
	}

	mustCreate(t, db)
	if ok, err := db.IDExists(ctx(), "go-1"); err != nil || ok {
		t.Fatalf("recreated collection kept documents: %v, %v", ok, err)
	}
}

// Reads before Create either fail with OperationFailed or auto-provision.
func testReadBeforeCreate(t *testing.T, db vectordb.VectorDB) {
	ok, err := db.IDExists(ctx(), "missing")
	if err != nil {
		wantKind(t, err, domain.ErrOperationFailed)
		return
	}
	if ok {
		t.Fatal("IDExists on a new collection = true")
	}
}

func testExistence(t *testing.T, db vectordb.VectorDB) {
	mustCreate(t, db)
	anon := document.New("a document without an id")
	mustInsert(t, db, []document.Document{corpus()[0], anon}, nil)

	checks := []struct {
		name string
		fn   func() (bool, error)
		want bool
	}{
		{"doc by id", func() (bool, error) { return db.DocExists(ctx(), corpus()[0]) }, true},
		{"doc by id, other content", func() (bool, error) {
			return db.DocExists(ctx(), document.New("changed", document.WithID("go-1")))
		}, true},
		{"doc by content", func() (bool, error) {
			return db.DocExists(ctx(), document.New("a document without an id"))
		}, true},
		{"doc missing", func() (bool, error) { return db.DocExists(ctx(), document.New("nope")) }, false},
		{"name", func() (bool, error) { return db.NameExists(ctx(), "Concurrency") }, true},
		{"name missing", func() (bool, error) { return db.NameExists(ctx(), "Nope") }, false},
		{"id", func() (bool, error) { return db.IDExists(ctx(), "go-1") }, true},
		{"id missing", func() (bool, error) { return db.IDExists(ctx(), "go-404") }, false},
	}
	for _, c := range checks {
		got, err := c.fn()
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if got != c.want {
			t.Errorf("%s = %v, want %v", c.name, got, c.want)
		}
	}
}

func testInsertConflict(t *testing.T, db vectordb.VectorDB) {
	mustCreate(t, db)
	docs := corpus()
	mustInsert(t, db, docs[:1], nil)

	err := db.Insert(ctx(), []document.Document{docs[1], docs[0]}, nil)
	wantKind(t, err, domain.ErrOperationFailed)

	if ok, err := db.IDExists(ctx(), "go-2"); err != nil || ok {
		t.Fatalf("conflicting batch was partially written: %v, %v", ok, err)
	}
}

func testInsertDuplicateInBatch(t *testing.T, db vectordb.VectorDB) {
	mustCreate(t, db)
	a := document.New("first", document.WithID("dup"))
	b := document.New("second", document.WithID("dup"))
	c := document.New("third", document.WithID("other"))

	wantKind(t, db.Insert(ctx(), []document.Document{c, a, b}, nil), domain.ErrOperationFailed)
	if ok, err := db.IDExists(ctx(), "other"); err != nil || ok {
		t.Fatalf("batch with duplicates was partially written: %v, %v", ok, err)
	}
}

func testInsertCancelled(t *testing.T, db vectordb.VectorDB) {
	mustCreate(t, db)
	cctx, cancel := context.WithCancel(ctx())
	cancel()

	if err := db.Insert(cctx, corpus()[:2], nil); err == nil {
		t.Fatal("Insert with cancelled context succeeded")
	}
	if ok, err := db.IDExists(ctx(), "go-1"); err != nil || ok {
		t.Fatalf("cancelled insert left documents behind: %v, %v", ok, err)
	}
}

func testUpsert(t *testing.T, db vectordb.VectorDB) {
	mustCreate(t, db)
	old := document.New("old body", document.WithID("u-1"))
	mustInsert(t, db, []document.Document{old}, nil)

	fresh := document.New("new body", document.WithID("u-1"))
	extra := document.New("extra body", document.WithID("u-2"))

	if !db.UpsertAvailable() {
		wantKind(t, db.Upsert(ctx(), []document.Document{fresh, extra}, nil), domain.ErrNotImplemented)
		if ok, err := db.IDExists(ctx(), "u-2"); err != nil || ok {
			t.Fatalf("unsupported upsert wrote documents: %v, %v", ok, err)
		}
		return
	}

	if err := db.Upsert(ctx(), []document.Document{fresh, extra}, nil); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if ok, _ := db.IDExists(ctx(), "u-2"); !ok {
		t.Error("upsert did not insert the new document")
	}
	if ok, _ := db.DocExists(ctx(), document.New("new body")); !ok {
		t.Error("upsert did not replace the content")
	}
	if ok, _ := db.DocExists(ctx(), document.New("old body")); ok {
		t.Error("replaced content is still stored")
	}

	// replaying the same upsert is idempotent
	if err := db.Upsert(ctx(), []document.Document{fresh}, nil); err != nil {
		t.Fatalf("repeated Upsert: %v", err)
	}
}

// supportedModes returns the search functions that do not report
// NotImplemented, always including the default Search.
func supportedModes(t *testing.T, db vectordb.VectorDB) map[string]searchFunc {
	t.Helper()
	all := map[string]searchFunc{
		"search":  db.Search,
		"vector":  db.VectorSearch,
		"keyword": db.KeywordSearch,
		"hybrid":  db.HybridSearch,
	}
	out := make(map[string]searchFunc, len(all))
	for name, fn := range all {
		_, err := fn(ctx(), "golang", 1, nil)
		if errors.Is(err, domain.ErrNotImplemented) {
			continue
		}
		if err != nil {
			t.Fatalf("%s support check: %v", name, err)
		}
		out[name] = fn
	}
	if _, ok := out["search"]; !ok {
		t.Fatal("default Search must be supported")
	}
	return out
}

func testSearchBounds(t *testing.T, db vectordb.VectorDB) {
	mustCreate(t, db)
	mustInsert(t, db, corpus(), nil)

	for name, fn := range supportedModes(t, db) {
		t.Run(name, func(t *testing.T) {
			got, err := fn(ctx(), "golang", 2, nil)
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if len(got) == 0 || len(got) > 2 {
				t.Fatalf("len = %d, want 1..2", len(got))
			}
			prev := 0.0
			for i, d := range got {
				score, ok := d.RerankingScore()
				if !ok {
					t.Fatalf("result %d has no reranking score", i)
				}
				if i > 0 && score > prev {
					t.Errorf("results not ordered by score: %v after %v", score, prev)
				}
				prev = score
			}

			empty, err := fn(ctx(), "golang", 0, nil)
			if err != nil || len(empty) != 0 {
				t.Errorf("limit 0 = %d results, %v", len(empty), err)
			}

			for _, huge := range []int{math.MaxInt / 2, math.MaxInt} {
				all, err := fn(ctx(), "golang", huge, nil)
				if err != nil {
					t.Fatalf("limit %d: %v", huge, err)
				}
				if len(all) < len(got) || len(all) > len(corpus()) {
					t.Errorf("limit %d = %d results, want %d..%d", huge, len(all), len(got), len(corpus()))
				}
			}

			_, err = fn(ctx(), "golang", -1, nil)
			wantKind(t, err, domain.ErrOperationFailed)
		})
	}
}

func testSearchFilters(t *testing.T, db vectordb.VectorDB) {
	mustCreate(t, db)
	docs := corpus()
	mustInsert(t, db, docs[:3], filter.Filters{"tenant": "a"})
	mustInsert(t, db, docs[3:], filter.Filters{"tenant": "b"})

	for name, fn := range supportedModes(t, db) {
		t.Run(name, func(t *testing.T) {
			got, err := fn(ctx(), "golang", 10, filter.Filters{"tenant": "b"})
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if len(got) == 0 || len(got) > 2 {
				t.Fatalf("len = %d, want 1..2", len(got))
			}
			for _, d := range got {
				if v, _ := d.MetaValue("tenant"); v != "b" {
					t.Errorf("document %s has tenant %v", d.Identity(), v)
				}
			}

			none, err := fn(ctx(), "golang", 10, filter.Filters{"tenant": "zzz"})
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if len(none) != 0 {
				t.Errorf("unmatched filter returned %d documents", len(none))
			}
		})
	}
}

func testSearchReturnsStoredFields(t *testing.T, db vectordb.VectorDB) {
	mustCreate(t, db)
	doc := document.New("golang generics and type parameters",
		document.WithID("g-1"), document.WithName("Generics"), document.WithRerankingScore(42))
	doc.SetMetaValue("source", "blog")
	mustInsert(t, db, []document.Document{doc}, nil)

	got, err := db.Search(ctx(), "golang generics", 1, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	d := got[0]
	if d.Content() != doc.Content() {
		t.Errorf("Content() = %q", d.Content())
	}
	if id, _ := d.ID(); id != "g-1" {
		t.Errorf("ID() = %q", id)
	}
	if name, _ := d.Name(); name != "Generics" {
		t.Errorf("Name() = %q", name)
	}
	if v, _ := d.MetaValue("source"); v != "blog" {
		t.Errorf("meta source = %v", v)
	}
	if s, _ := d.RerankingScore(); s == 42 {
		t.Error("stored reranking score leaked into search results")
	}
}

func testModesConsistent(t *testing.T, db vectordb.VectorDB) {
	mustCreate(t, db)
	mustInsert(t, db, corpus(), nil)

	modes := map[string]searchFunc{
		"vector":  db.VectorSearch,
		"keyword": db.KeywordSearch,
		"hybrid":  db.HybridSearch,
	}
	for name, fn := range modes {
		_, first := fn(ctx(), "golang", 3, nil)
		_, second := fn(ctx(), "golang", 3, nil)
		if errors.Is(first, domain.ErrNotImplemented) != errors.Is(second, domain.ErrNotImplemented) {
			t.Errorf("%s: capability changed between calls: %v then %v", name, first, second)
		}
		if first != nil && !errors.Is(first, domain.ErrNotImplemented) {
			t.Errorf("%s: unexpected error %v", name, first)
		}
	}
}

func testOptimize(t *testing.T, db vectordb.VectorDB) {
	if err := db.Optimize(ctx()); err != nil {
		t.Fatalf("Optimize before create: %v", err)
	}
	mustCreate(t, db)
	mustInsert(t, db, corpus(), nil)

	before, err := db.Search(ctx(), "golang", 5, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if err := db.Optimize(ctx()); err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	after, err := db.Search(ctx(), "golang", 5, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if identities(before) != identities(after) {
		t.Errorf("Optimize changed results:\n%s\n%s", identities(before), identities(after))
	}
}

func testAsyncParity(t *testing.T, db vectordb.VectorDB) {
	adb := vectordb.Async(db)
	if _, err := adb.Create(ctx()).Await(ctx()); err != nil {
		t.Fatalf("async Create: %v", err)
	}
	if _, err := adb.Insert(ctx(), corpus(), nil).Await(ctx()); err != nil {
		t.Fatalf("async Insert: %v", err)
	}

	ok, err := adb.IDExists(ctx(), "go-3").Await(ctx())
	if err != nil || !ok {
		t.Fatalf("async IDExists = %v, %v", ok, err)
	}

	syncRes, err := db.Search(ctx(), "golang testing", 3, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	asyncRes, err := adb.Search(ctx(), "golang testing", 3, nil).Await(ctx())
	if err != nil {
		t.Fatalf("async Search: %v", err)
	}
	if identities(syncRes) != identities(asyncRes) {
		t.Errorf("async results differ:\n%s\n%s", identities(syncRes), identities(asyncRes))
	}

	syncErr := db.Insert(ctx(), corpus()[:1], nil)
	_, asyncErr := adb.Insert(ctx(), corpus()[:1], nil).Await(ctx())
	if domain.KindOf(syncErr) != domain.KindOf(asyncErr) {
		t.Errorf("error kinds differ: sync %v, async %v", syncErr, asyncErr)
	}
	if adb.UpsertAvailable() != db.UpsertAvailable() {
		t.Error("UpsertAvailable differs between forms")
	}
}

func identities(docs []document.Document) string {
	s := ""
	for _, d := range docs {
		s += fmt.Sprintf("%s ", d.Identity())
	}
	return s
}
