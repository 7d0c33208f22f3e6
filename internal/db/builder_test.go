package db

import (
	"strings"
	"testing"
)

func mustBuild(t *testing.T, b *IndexBuilder) *IndexDefinition {
	t.Helper()
	def, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return def
}

func TestIndexBuilder_CollectionSchema(t *testing.T) {
	idx := mustBuild(t, NewIndex("kb:docs:idx").
		Prefix("kb:docs:doc:").
		Tag("identity").
		TagList("f_lang", "|").
		Text("content"))

	if idx.StorageType != StorageHash {
		t.Errorf("storage = %q, want HASH", idx.StorageType)
	}
	if len(idx.Fields) != 3 {
		t.Fatalf("fields count = %d, want 3", len(idx.Fields))
	}
	if f := idx.Fields[0]; f.Type != IndexFieldTag || !f.CaseSensitive || f.Separator != "" {
		t.Errorf("identity field = %+v", f)
	}
	if f := idx.Fields[1]; f.Separator != "|" || !f.CaseSensitive {
		t.Errorf("filter field = %+v", f)
	}
	if idx.Fields[2].Type != IndexFieldText {
		t.Errorf("content field = %+v, want TEXT", idx.Fields[2])
	}
}

func TestIndexBuilder_Vector(t *testing.T) {
	hnsw := mustBuild(t, NewIndex("a").Vector("vector", 768, &HNSWParams{M: 32, EFConstruction: 400}))
	f := hnsw.Fields[0]
	if f.Algorithm() != VectorHNSW || f.Dim != 768 || f.HNSW.M != 32 || f.HNSW.EFConstruction != 400 {
		t.Errorf("hnsw field = %+v", f)
	}

	flat := mustBuild(t, NewIndex("b").Vector("vector", 8, nil))
	if flat.Fields[0].Algorithm() != VectorFlat {
		t.Errorf("algorithm = %s, want FLAT", flat.Fields[0].Algorithm())
	}
}

func TestIndexBuilder_BuildCopiesFields(t *testing.T) {
	b := NewIndex("idx").Tag("identity")
	first := mustBuild(t, b)
	b.Tag("name")
	if len(first.Fields) != 1 {
		t.Errorf("built definition changed after further building: %d fields", len(first.Fields))
	}
}

func TestIndexBuilder_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		builder *IndexBuilder
		wantErr string
	}{
		{"empty name", NewIndex("").Tag("x"), "index name is required"},
		{"no fields", NewIndex("idx"), "at least one field"},
		{"vector without dim", NewIndex("idx").Vector("v", 0, nil), "positive DIM"},
		{"two vectors", NewIndex("idx").Vector("a", 4, nil).Vector("b", 4, nil), "one vector field"},
		{"invalid characters", NewIndex("idx with spaces").Tag("x"), "invalid characters"},
		{"duplicate field", NewIndex("idx").Tag("x").Text("x"), "duplicate field"},
		{"long separator", NewIndex("idx").TagList("x", "||"), "single character"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got error %q, want containing %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestIndexDefinition_String(t *testing.T) {
	idx := mustBuild(t, NewIndex("kb:notes:idx").
		Prefix("kb:notes:doc:").
		NoStopWords().
		Tag("identity").
		Text("content").
		Vector("vector", 64, nil))

	want := "FT.CREATE kb:notes:idx ON HASH PREFIX kb:notes:doc: STOPWORDS 0 SCHEMA identity TAG content TEXT vector VECTOR FLAT DIM 64"
	if s := idx.String(); s != want {
		t.Errorf("String() = %q, want %q", s, want)
	}
}

func TestIsValidIdentifier(t *testing.T) {
	for _, s := range []string{"docs", "kb:docs", "my-kb_2"} {
		if !IsValidIdentifier(s) {
			t.Errorf("IsValidIdentifier(%q) = false", s)
		}
	}
	for _, s := range []string{"", "a b", "kb/docs", "ünï"} {
		if IsValidIdentifier(s) {
			t.Errorf("IsValidIdentifier(%q) = true", s)
		}
	}
}

func TestTagFilter(t *testing.T) {
	tests := []struct {
		field  string
		values []string
		want   string
	}{
		{"f_tenant", []string{"a"}, "@f_tenant:{a}"},
		{"f_tags", []string{"x", "y"}, "@f_tags:{x | y}"},
		{"f_src", []string{"a b-c.d"}, `@f_src:{a\ b\-c\.d}`},
		{"f_pipe", []string{"a|b"}, `@f_pipe:{a\|b}`},
	}
	for _, tt := range tests {
		if got := TagFilter(tt.field, tt.values...); got != tt.want {
			t.Errorf("TagFilter(%q, %q) = %q, want %q", tt.field, tt.values, got, tt.want)
		}
	}
}

func TestEscapeText(t *testing.T) {
	if got := EscapeText("go-lang"); got != `go\-lang` {
		t.Errorf("EscapeText = %q", got)
	}
	if got := EscapeText("plain"); got != "plain" {
		t.Errorf("EscapeText = %q", got)
	}
}
