package vectordb

import (
	"math"
	"testing"

	"github.com/kailas-cloud/kbase/internal/domain/document"
)

func makeDoc(id string) document.Document {
	return document.New("content-"+id, document.WithID(id))
}

func makeDocs(ids ...string) []document.Document {
	out := make([]document.Document, len(ids))
	for i, id := range ids {
		out[i] = makeDoc(id)
	}
	return out
}

func docID(d document.Document) string {
	id, _ := d.ID()
	return id
}

func docScore(d document.Document) float64 {
	s, _ := d.RerankingScore()
	return s
}

func TestFuseRRF_DisjointLists(t *testing.T) {
	results := FuseRRF(makeDocs("a", "b"), makeDocs("c", "d"), 10)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}

	// rank 1 of each list ties; vector results come first
	want := []string{"a", "c", "b", "d"}
	for i, r := range results {
		if docID(r) != want[i] {
			t.Errorf("results[%d] = %s, want %s", i, docID(r), want[i])
		}
	}
}

func TestFuseRRF_OverlappingLists(t *testing.T) {
	vec := makeDocs("a", "b", "c")
	kw := makeDocs("b", "d", "a")

	results := FuseRRF(vec, kw, 10)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}

	// "a": 1/61 + 1/63, "b": 1/62 + 1/61
	if docID(results[0]) != "b" {
		t.Errorf("expected 'b' first, got %s", docID(results[0]))
	}
	wantB := 1.0/62 + 1.0/61
	if math.Abs(docScore(results[0])-wantB) > 1e-12 {
		t.Errorf("score(b) = %v, want %v", docScore(results[0]), wantB)
	}

	overlap := docScore(results[1])
	for _, r := range results[2:] {
		if docScore(r) >= overlap {
			t.Errorf("single-list %s scored %v >= overlap %v", docID(r), docScore(r), overlap)
		}
	}
}

func TestFuseRRF_EmptyInputs(t *testing.T) {
	t.Run("both empty", func(t *testing.T) {
		if results := FuseRRF(nil, nil, 10); len(results) != 0 {
			t.Fatalf("expected 0 results, got %d", len(results))
		}
	})

	t.Run("vector empty", func(t *testing.T) {
		results := FuseRRF(nil, makeDocs("a"), 10)
		if len(results) != 1 || docID(results[0]) != "a" {
			t.Fatalf("unexpected results: %v", results)
		}
	})

	t.Run("keyword empty", func(t *testing.T) {
		results := FuseRRF(makeDocs("a", "b"), nil, 10)
		if len(results) != 2 || docID(results[0]) != "a" {
			t.Fatalf("unexpected results: %v", results)
		}
	})
}

func TestFuseRRF_Limit(t *testing.T) {
	results := FuseRRF(makeDocs("a", "b", "c"), makeDocs("d", "e", "f"), 2)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results := FuseRRF(makeDocs("a"), nil, 0); len(results) != 0 {
		t.Fatalf("limit 0 returned %d results", len(results))
	}
}

func TestFuseRRF_IdentityWithoutIDs(t *testing.T) {
	vec := []document.Document{document.New("same text"), document.New("other")}
	kw := []document.Document{document.New("same text")}

	results := FuseRRF(vec, kw, 10)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Content() != "same text" {
		t.Errorf("content-identical documents were not merged: %q first", results[0].Content())
	}
}

func TestFuseRRF_DoesNotMutateInputs(t *testing.T) {
	vec := makeDocs("a")
	_ = FuseRRF(vec, nil, 1)
	if _, ok := vec[0].RerankingScore(); ok {
		t.Error("input document gained a score")
	}
}
