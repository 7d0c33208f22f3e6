package kbase

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

type note struct {
	ID    string   `kbase:"id,id"`
	Title string   `kbase:"title,name"`
	Body  string   `kbase:"body,content"`
	Topic string   `kbase:"topic,meta"`
	Year  int      `kbase:"year"`
	Tags  []string `kbase:"tags,meta"`
	Draft bool     `kbase:"-"`
}

type bodyOnly struct {
	Text string `kbase:",content"`
}

func TestParseSchema_Valid(t *testing.T) {
	meta, err := parseSchema[note]()
	if err != nil {
		t.Fatalf("parseSchema: %v", err)
	}
	if meta.idIdx != 0 || meta.nameIdx != 1 || meta.contentIdx != 2 {
		t.Errorf("roles = id %d, name %d, content %d", meta.idIdx, meta.nameIdx, meta.contentIdx)
	}
	names := make([]string, len(meta.metaFields))
	for i, f := range meta.metaFields {
		names[i] = f.name
	}
	if !reflect.DeepEqual(names, []string{"topic", "year", "tags"}) {
		t.Errorf("meta fields = %v", names)
	}
	if meta.pointer {
		t.Error("value type parsed as pointer")
	}
}

func TestParseSchema_Errors(t *testing.T) {
	type noContent struct {
		ID string `kbase:"id,id"`
	}
	type dupContent struct {
		A string `kbase:"a,content"`
		B string `kbase:"b,content"`
	}
	type badRole struct {
		A string `kbase:"a,content"`
		B string `kbase:"b,vector"`
	}
	type intID struct {
		ID   int    `kbase:"id,id"`
		Body string `kbase:"body,content"`
	}
	type unexported struct {
		body string `kbase:"body,content"`
	}

	tests := []struct {
		name string
		fn   func() (*schemaMeta, error)
	}{
		{"no content", parseSchema[noContent]},
		{"duplicate content", parseSchema[dupContent]},
		{"unknown role", parseSchema[badRole]},
		{"non-string id", parseSchema[intID]},
		{"unexported field", parseSchema[unexported]},
		{"non-struct", parseSchema[int]},
		{"interface", parseSchema[any]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.fn(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestSchema_ToDocument(t *testing.T) {
	meta, err := parseSchema[note]()
	if err != nil {
		t.Fatal(err)
	}

	doc, err := meta.toDocument(note{
		ID: "n1", Title: "Goroutines", Body: "lightweight threads",
		Topic: "go", Year: 2024, Tags: []string{"concurrency"},
	})
	if err != nil {
		t.Fatalf("toDocument: %v", err)
	}
	if id, _ := doc.ID(); id != "n1" {
		t.Errorf("ID = %q", id)
	}
	if name, _ := doc.Name(); name != "Goroutines" {
		t.Errorf("Name = %q", name)
	}
	if doc.Content() != "lightweight threads" {
		t.Errorf("Content = %q", doc.Content())
	}
	if year, _ := doc.MetaValue("year"); year != json.Number("2024") {
		t.Errorf("year = %#v, want json.Number(2024)", year)
	}
	if tags, _ := doc.MetaValue("tags"); !reflect.DeepEqual(tags, []any{"concurrency"}) {
		t.Errorf("tags = %#v", tags)
	}
	if _, ok := doc.MetaValue("Draft"); ok {
		t.Error("skipped field stored")
	}
}

func TestSchema_EmptyIdentityFieldsStayAbsent(t *testing.T) {
	meta, err := parseSchema[note]()
	if err != nil {
		t.Fatal(err)
	}
	doc, err := meta.toDocument(note{Body: "anonymous"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := doc.ID(); ok {
		t.Error("empty id stored")
	}
	if _, ok := doc.Name(); ok {
		t.Error("empty name stored")
	}
}

func TestSchema_RoundTrip(t *testing.T) {
	in := note{ID: "n1", Title: "T", Body: "B", Topic: "go", Year: 2021, Tags: []string{"a", "b"}}

	t.Run("value", func(t *testing.T) {
		meta, err := parseSchema[note]()
		if err != nil {
			t.Fatal(err)
		}
		doc, err := meta.toDocument(in)
		if err != nil {
			t.Fatal(err)
		}
		out, ok := meta.fromDocument(doc).(note)
		if !ok {
			t.Fatalf("fromDocument returned %T", meta.fromDocument(doc))
		}
		if !reflect.DeepEqual(out, in) {
			t.Errorf("round trip = %+v, want %+v", out, in)
		}
	})

	t.Run("pointer", func(t *testing.T) {
		meta, err := parseSchema[*note]()
		if err != nil {
			t.Fatal(err)
		}
		doc, err := meta.toDocument(&in)
		if err != nil {
			t.Fatal(err)
		}
		out, ok := meta.fromDocument(doc).(*note)
		if !ok {
			t.Fatalf("fromDocument returned %T", meta.fromDocument(doc))
		}
		if !reflect.DeepEqual(*out, in) {
			t.Errorf("round trip = %+v, want %+v", *out, in)
		}
	})
}

func TestSchema_MismatchedMetaLeftZero(t *testing.T) {
	meta, err := parseSchema[note]()
	if err != nil {
		t.Fatal(err)
	}
	doc := NewDocument("body", WithID("x"))
	doc.SetMetaValue("year", "not a number")
	doc.SetMetaValue("topic", "go")

	out := meta.fromDocument(doc).(note)
	if out.Year != 0 {
		t.Errorf("Year = %d, want 0", out.Year)
	}
	if out.Topic != "go" {
		t.Errorf("Topic = %q, want go", out.Topic)
	}
}

func TestSearchBuilder_Chaining(t *testing.T) {
	idx, err := NewIndex[bodyOnly](nil)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}

	b := idx.Search().
		Query("hello world").
		Mode(ModeHybrid).
		Where("topic", "go").
		Where("year", 2024).
		Limit(20).
		MinScore(0.2)

	if b.query != "hello world" || b.mode != ModeHybrid {
		t.Errorf("query/mode = %q/%q", b.query, b.mode)
	}
	if b.limit != 20 || b.minScore != 0.2 {
		t.Errorf("limit/minScore = %d/%v", b.limit, b.minScore)
	}
	if len(b.filters) != 2 || b.filters["topic"] != "go" {
		t.Errorf("filters = %v", b.filters)
	}
}

func TestIndex_EndToEnd(t *testing.T) {
	ctx := context.Background()
	c := newMemoryClient(t, WithHashingEmbedder(64))
	idx, err := NewIndex[note](c)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Ensure(ctx); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	notes := []note{
		{ID: "n1", Title: "Goroutines", Body: "Goroutines are lightweight threads", Topic: "go", Year: 2024, Tags: []string{"concurrency"}},
		{ID: "n2", Title: "Channels", Body: "Channels pass values between goroutines", Topic: "go", Year: 2023},
		{ID: "n3", Title: "Bread", Body: "Sourdough bread with goroutines of yeast", Topic: "baking", Year: 2024},
	}
	if err := idx.Insert(ctx, notes...); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := idx.Insert(ctx, notes[0]); !errors.Is(err, ErrOperationFailed) {
		t.Errorf("duplicate Insert err = %v, want ErrOperationFailed", err)
	}

	updated := notes[1]
	updated.Title = "Channels, revisited"
	if err := idx.Upsert(ctx, updated); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if ok, err := idx.Exists(ctx, updated); err != nil || !ok {
		t.Errorf("Exists = (%v, %v), want true", ok, err)
	}

	hits, err := idx.Search().Query("goroutines").Mode(ModeKeyword).Where("topic", "go").Limit(5).Do(ctx)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("len(hits) = %d, want 2", len(hits))
	}
	for _, h := range hits {
		if h.Item.Topic != "go" {
			t.Errorf("hit topic = %q, want go", h.Item.Topic)
		}
		if h.Item.ID == "n2" && h.Item.Title != "Channels, revisited" {
			t.Errorf("n2 title = %q, want upserted title", h.Item.Title)
		}
	}

	hits, err = idx.Search().Query("goroutines").Mode(ModeKeyword).Where("year", 2024).Where("tags", "concurrency").Do(ctx)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Item.ID != "n1" {
		t.Errorf("hits = %+v, want only n1", hits)
	}
}
