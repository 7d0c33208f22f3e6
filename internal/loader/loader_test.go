package loader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/kailas-cloud/kbase/internal/domain/document"
	"github.com/kailas-cloud/kbase/internal/domain/knowledge"
)

func newLoader(t *testing.T, size, overlap int) *Loader {
	t.Helper()
	l, err := New(Config{ChunkSize: size, ChunkOverlap: overlap, RequestsPerSec: 1000})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func docs(kb *knowledge.KnowledgeBase) []document.Document {
	var out []document.Document
	for d := range kb.Documents() {
		out = append(out, d)
	}
	return out
}

func TestNew_InvalidOverlap(t *testing.T) {
	if _, err := New(Config{ChunkSize: 10, ChunkOverlap: 10}); err == nil {
		t.Fatal("expected error for overlap >= chunk size")
	}
}

func TestText_Chunks(t *testing.T) {
	l := newLoader(t, 40, 0)
	text := strings.Repeat("alpha beta gamma delta. ", 10)

	kb, err := l.Text("notes.txt", text)
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if kb.Len() < 2 {
		t.Fatalf("expected several chunks, got %d", kb.Len())
	}

	for i, d := range docs(kb) {
		name, _ := d.Name()
		id, _ := d.ID()
		want := "notes.txt#" + strconv.Itoa(i)
		if name != want || id != want {
			t.Errorf("chunk %d: name %q id %q, want %q", i, name, id, want)
		}
		if len([]rune(d.Content())) > 40 {
			t.Errorf("chunk %d longer than chunk size: %q", i, d.Content())
		}
		if src, _ := d.MetaValue(MetaSource); src != "notes.txt" {
			t.Errorf("chunk %d source = %v", i, src)
		}
		if n, _ := d.MetaValue(MetaChunk); n != i {
			t.Errorf("chunk %d chunk meta = %v", i, n)
		}
	}
}

func TestText_Blank(t *testing.T) {
	kb, err := newLoader(t, 100, 0).Text("empty.txt", "  \n\t ")
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if !kb.IsEmpty() {
		t.Errorf("expected no chunks, got %d", kb.Len())
	}
}

func TestHTML_MainContent(t *testing.T) {
	tests := []struct {
		name string
		page string
		want string
	}{
		{
			name: "main wins",
			page: `<html><head><title>Guide</title></head><body><nav>menu</nav><main>Main text</main><footer>foot</footer></body></html>`,
			want: "Main text",
		},
		{
			name: "article",
			page: `<html><body><div>side</div><article>Article text</article></body></html>`,
			want: "Article text",
		},
		{
			name: "content class",
			page: `<html><body><div class="content">Class text</div><div>other</div></body></html>`,
			want: "Class text",
		},
		{
			name: "body fallback drops scripts",
			page: `<html><body><script>var x = 1;</script><p>Body   text</p></body></html>`,
			want: "Body text",
		},
	}

	l := newLoader(t, 1000, 0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kb, err := l.HTML("page.html", strings.NewReader(tt.page))
			if err != nil {
				t.Fatalf("HTML: %v", err)
			}
			if kb.Len() != 1 {
				t.Fatalf("expected 1 chunk, got %d", kb.Len())
			}
			d, _ := kb.At(0)
			if d.Content() != tt.want {
				t.Errorf("content = %q, want %q", d.Content(), tt.want)
			}
		})
	}
}

func TestHTML_TitleNamesChunks(t *testing.T) {
	page := `<html><head><title> Go  Guide </title></head><body><main>Channels</main></body></html>`
	kb, err := newLoader(t, 1000, 0).HTML("docs/guide.html", strings.NewReader(page))
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	d, _ := kb.At(0)
	if name, _ := d.Name(); name != "Go Guide#0" {
		t.Errorf("name = %q", name)
	}
	if id, _ := d.ID(); id != "docs/guide.html#0" {
		t.Errorf("id = %q", id)
	}
	if title, _ := d.MetaValue(MetaTitle); title != "Go Guide" {
		t.Errorf("title = %v", title)
	}
}

func TestDirectory(t *testing.T) {
	root := t.TempDir()
	write := func(rel, content string) {
		t.Helper()
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("a.txt", "first file")
	write("sub/b.md", "# second file")
	write("sub/c.html", "<html><body><main>third file</main></body></html>")
	write("image.png", "not text")
	write(".git/config", "hidden")
	write(".hidden.txt", "hidden")

	kb, err := newLoader(t, 1000, 0).Directory(context.Background(), root)
	if err != nil {
		t.Fatalf("Directory: %v", err)
	}

	var sources []string
	for _, d := range docs(kb) {
		src, _ := d.MetaValue(MetaSource)
		sources = append(sources, src.(string))
	}
	want := []string{"a.txt", "sub/b.md", "sub/c.html"}
	if strings.Join(sources, ",") != strings.Join(want, ",") {
		t.Errorf("sources = %v, want %v", sources, want)
	}
}

func TestDirectory_Missing(t *testing.T) {
	_, err := newLoader(t, 100, 0).Directory(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestFile_Unsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	if err := os.WriteFile(path, []byte{1, 2}, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := newLoader(t, 100, 0).File(path)
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Remote</title></head><body><article>Remote text</article></body></html>`))
	})
	mux.HandleFunc("/plain", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("<b>not parsed</b>"))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	l := newLoader(t, 1000, 0)
	ctx := context.Background()

	kb, err := l.URL(ctx, server.URL+"/page")
	if err != nil {
		t.Fatalf("URL page: %v", err)
	}
	d, _ := kb.At(0)
	if d.Content() != "Remote text" {
		t.Errorf("content = %q", d.Content())
	}
	if src, _ := d.MetaValue(MetaSource); src != server.URL+"/page" {
		t.Errorf("source = %v", src)
	}

	kb, err = l.URL(ctx, server.URL+"/plain")
	if err != nil {
		t.Fatalf("URL plain: %v", err)
	}
	d, _ = kb.At(0)
	if d.Content() != "<b>not parsed</b>" {
		t.Errorf("plain content = %q", d.Content())
	}

	if _, err := l.URL(ctx, server.URL+"/gone"); err == nil {
		t.Error("expected error for 404")
	}
}

func TestURL_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newLoader(t, 100, 0).URL(ctx, "http://127.0.0.1:1/"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestPath_Dispatch(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "one.txt")
	if err := os.WriteFile(file, []byte("single"), 0o644); err != nil {
		t.Fatal(err)
	}
	l := newLoader(t, 100, 0)

	kb, err := l.Path(context.Background(), file)
	if err != nil || kb.Len() != 1 {
		t.Fatalf("file: kb=%v err=%v", kb, err)
	}
	kb, err = l.Path(context.Background(), root)
	if err != nil || kb.Len() != 1 {
		t.Fatalf("dir: kb=%v err=%v", kb, err)
	}
	if _, err := l.Path(context.Background(), filepath.Join(root, "missing.txt")); err == nil {
		t.Fatal("expected error for missing path")
	}
}
