package knowledge

import (
	"iter"

	"github.com/kailas-cloud/kbase/internal/domain/document"
)

// KnowledgeBase is an ordered collection of documents staged for, or
// retrieved from, a vector store. It keeps insertion order and duplicates.
// Not safe for concurrent mutation.
type KnowledgeBase struct {
	documents []document.Document
}

// New creates a knowledge base that takes ownership of documents.
func New(documents []document.Document) *KnowledgeBase {
	return &KnowledgeBase{documents: documents}
}

// AddDocument appends a document.
func (kb *KnowledgeBase) AddDocument(doc document.Document) {
	kb.documents = append(kb.documents, doc)
}

// Len returns the number of documents.
func (kb *KnowledgeBase) Len() int { return len(kb.documents) }

// IsEmpty reports whether the knowledge base holds no documents.
func (kb *KnowledgeBase) IsEmpty() bool { return len(kb.documents) == 0 }

// At returns a copy of the i-th document.
func (kb *KnowledgeBase) At(i int) (document.Document, bool) {
	if i < 0 || i >= len(kb.documents) {
		return document.Document{}, false
	}
	return kb.documents[i].Clone(), true
}

// Documents yields copies of the documents in insertion order.
func (kb *KnowledgeBase) Documents() iter.Seq[document.Document] {
	return func(yield func(document.Document) bool) {
		for _, doc := range kb.documents {
			if !yield(doc.Clone()) {
				return
			}
		}
	}
}

// DocumentLists yields every document wrapped in its own single-element
// slice, in insertion order.
func (kb *KnowledgeBase) DocumentLists() iter.Seq[[]document.Document] {
	return kb.Batches(1)
}

// Batches yields consecutive groups of at most size documents. A size
// below 1 is treated as 1.
func (kb *KnowledgeBase) Batches(size int) iter.Seq[[]document.Document] {
	if size < 1 {
		size = 1
	}
	return func(yield func([]document.Document) bool) {
		for start := 0; start < len(kb.documents); start += size {
			end := min(start+size, len(kb.documents))
			group := make([]document.Document, 0, end-start)
			for _, doc := range kb.documents[start:end] {
				group = append(group, doc.Clone())
			}
			if !yield(group) {
				return
			}
		}
	}
}
