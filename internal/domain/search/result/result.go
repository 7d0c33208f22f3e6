// Package result holds the outcome of a search request.
package result

import (
	"github.com/kailas-cloud/kbase/internal/domain/document"
	"github.com/kailas-cloud/kbase/internal/domain/knowledge"
	"github.com/kailas-cloud/kbase/internal/domain/search/mode"
)

// Set is a ranked list of documents plus the mode that produced it.
type Set struct {
	mode        mode.Mode
	docs        []document.Document
	totalTokens int
}

// New creates a result set. docs must already be ranked.
func New(m mode.Mode, docs []document.Document, totalTokens int) Set {
	return Set{mode: m, docs: docs, totalTokens: totalTokens}
}

// Mode returns the mode the search ran with.
func (s Set) Mode() mode.Mode { return s.mode }

// Len returns the number of hits.
func (s Set) Len() int { return len(s.docs) }

// TotalTokens returns the embedding tokens the query consumed.
func (s Set) TotalTokens() int { return s.totalTokens }

// Documents returns copies of the hits in rank order.
func (s Set) Documents() []document.Document {
	out := make([]document.Document, len(s.docs))
	for i, d := range s.docs {
		out[i] = d.Clone()
	}
	return out
}

// KnowledgeBase collects the hits into a knowledge base, keeping rank order.
func (s Set) KnowledgeBase() *knowledge.KnowledgeBase {
	return knowledge.New(s.Documents())
}

// AboveScore keeps hits whose relevance score is at least minScore.
// Unscored hits are dropped. A non-positive minScore keeps everything.
func (s Set) AboveScore(minScore float64) Set {
	if minScore <= 0 {
		return s
	}
	kept := make([]document.Document, 0, len(s.docs))
	for _, d := range s.docs {
		if score, ok := d.RerankingScore(); ok && score >= minScore {
			kept = append(kept, d)
		}
	}
	return Set{mode: s.mode, docs: kept, totalTokens: s.totalTokens}
}
