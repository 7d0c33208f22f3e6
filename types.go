package kbase

import (
	"github.com/kailas-cloud/kbase/internal/domain"
	"github.com/kailas-cloud/kbase/internal/domain/document"
	"github.com/kailas-cloud/kbase/internal/domain/knowledge"
	"github.com/kailas-cloud/kbase/internal/domain/search/filter"
	"github.com/kailas-cloud/kbase/internal/domain/search/mode"
	"github.com/kailas-cloud/kbase/internal/domain/search/result"
	knowledgeuc "github.com/kailas-cloud/kbase/internal/usecase/knowledge"
	"github.com/kailas-cloud/kbase/internal/vectordb"
)

type (
	// VectorDB is the storage contract every backend implements.
	VectorDB = vectordb.VectorDB
	// Document is a unit of knowledge: content plus optional id, name,
	// metadata, usage and reranking score.
	Document = document.Document
	// DocumentOption sets an optional Document field at construction.
	DocumentOption = document.Option
	// KnowledgeBase is an ordered list of documents.
	KnowledgeBase = knowledge.KnowledgeBase
	// Filters are exact-match metadata constraints.
	Filters = filter.Filters
	// Mode selects the search strategy.
	Mode = mode.Mode
	// Results is a ranked search result set.
	Results = result.Set

	// LoadOptions controls how Client.Load writes a knowledge base.
	LoadOptions = knowledgeuc.LoadOptions
	// LoadReport counts what Client.Load did.
	LoadReport = knowledgeuc.LoadReport

	// Embedder converts text to vector embeddings.
	Embedder = domain.Embedder
	// BatchEmbedder embeds many texts in one call. Optional.
	BatchEmbedder = domain.BatchEmbedder
	// EmbeddingResult carries one vector and its token counts.
	EmbeddingResult = domain.EmbeddingResult
	// BatchEmbeddingResult carries many vectors and aggregate token counts.
	BatchEmbeddingResult = domain.BatchEmbeddingResult
)

// Search modes.
const (
	ModeDefault = mode.Default
	ModeVector  = mode.Vector
	ModeKeyword = mode.Keyword
	ModeHybrid  = mode.Hybrid
)

var (
	// NewDocument creates a Document with empty metadata.
	NewDocument = document.New
	// WithID sets the document id.
	WithID = document.WithID
	// WithName sets the document name.
	WithName = document.WithName
	// DocumentFromJSON parses a Document from its JSON form.
	DocumentFromJSON = document.FromJSON
)

// NewKnowledgeBase creates a knowledge base holding docs in order.
func NewKnowledgeBase(docs ...Document) *KnowledgeBase {
	return knowledge.New(docs)
}

// ParseMode parses "vector", "keyword", "hybrid" or "" (backend default).
func ParseMode(s string) (Mode, error) {
	return mode.Parse(s)
}
