package memory

import (
	"math"

	"github.com/kailas-cloud/kbase/internal/domain/search/terms"
)

// BM25 parameters.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// termIndex keeps the collection-wide statistics BM25 needs.
type termIndex struct {
	docFreq  map[string]int
	totalLen int
	docs     int
}

func newTermIndex() termIndex {
	return termIndex{docFreq: make(map[string]int)}
}

func (ix *termIndex) add(e *entry) {
	for t := range e.termFreq {
		ix.docFreq[t]++
	}
	ix.totalLen += e.length
	ix.docs++
}

func (ix *termIndex) remove(e *entry) {
	for t := range e.termFreq {
		ix.docFreq[t]--
	}
	ix.totalLen -= e.length
	ix.docs--
}

// compact drops terms no document references any more.
func (ix *termIndex) compact() {
	for t, n := range ix.docFreq {
		if n <= 0 {
			delete(ix.docFreq, t)
		}
	}
}

// score returns the BM25 relevance of e for the query terms.
func (ix *termIndex) score(query []string, e *entry) float64 {
	if ix.docs == 0 || e.length == 0 {
		return 0
	}
	avgLen := float64(ix.totalLen) / float64(ix.docs)
	n := float64(ix.docs)

	var s float64
	for _, t := range query {
		tf := float64(e.termFreq[t])
		if tf == 0 {
			continue
		}
		df := float64(ix.docFreq[t])
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		norm := tf + bm25K1*(1-bm25B+bm25B*float64(e.length)/avgLen)
		s += idf * tf * (bm25K1 + 1) / norm
	}
	return s
}

func analyze(content string) (map[string]int, int) {
	tokens := terms.Tokenize(content)
	return terms.Frequencies(tokens), len(tokens)
}
